package bridge

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// healthProbeTimeout bounds each per-channel reachability probe.
const healthProbeTimeout = 5 * time.Second

// ChannelConfigFlag reports configuration presence for one channel,
// including channels configured in the file but not enabled.
type ChannelConfigFlag struct {
	Name       string
	Configured bool
	Enabled    bool
}

// ConfigFlags carries configuration presence into the status snapshot.
// Secret values never appear here, only whether they are set.
type ConfigFlags struct {
	GatewayTokenSet bool
	Channels        []ChannelConfigFlag
}

// ChannelStatus is one channel's slice of the status snapshot.
type ChannelStatus struct {
	Name       string `json:"name"`
	Configured bool   `json:"configured"`
	Enabled    bool   `json:"enabled"`
	Reachable  bool   `json:"reachable"`
	Error      string `json:"error,omitempty"`
}

// Status is the read-only operational snapshot reported by /status and the
// status.get method. Building it never mutates core state.
type Status struct {
	Uptime           time.Duration   `json:"-"`
	UptimeSeconds    int64           `json:"uptimeSeconds"`
	GatewayConnected bool            `json:"gatewayConnected"`
	GatewayTokenSet  bool            `json:"gatewayTokenSet"`
	Pending          int             `json:"pending"`
	Processed        int64           `json:"processed"`
	Channels         []ChannelStatus `json:"channels"`
}

// Status probes channel reachability and collects counters and config
// presence. Channels configured but not enabled appear without a probe.
func (s *Service) Status(ctx context.Context) Status {
	st := Status{
		Uptime:           time.Since(s.startedAt),
		GatewayConnected: s.gw.Connected(),
		GatewayTokenSet:  s.cfgFlags.GatewayTokenSet,
		Pending:          s.store.PendingCount(),
		Processed:        s.store.ProcessedCount(),
	}
	st.UptimeSeconds = int64(st.Uptime.Seconds())

	flagged := make(map[string]bool)
	for _, f := range s.cfgFlags.Channels {
		flagged[f.Name] = true
		st.Channels = append(st.Channels, s.channelStatus(ctx, f))
	}
	// Senders registered without flags still show up, as configured+enabled.
	for _, name := range s.registry.Names() {
		if flagged[name] {
			continue
		}
		st.Channels = append(st.Channels, s.channelStatus(ctx, ChannelConfigFlag{
			Name: name, Configured: true, Enabled: true,
		}))
	}
	return st
}

func (s *Service) channelStatus(ctx context.Context, f ChannelConfigFlag) ChannelStatus {
	cs := ChannelStatus{Name: f.Name, Configured: f.Configured, Enabled: f.Enabled}

	sender, ok := s.registry.Get(f.Name)
	if !ok {
		return cs
	}

	probeCtx, cancel := context.WithTimeout(ctx, healthProbeTimeout)
	defer cancel()
	if err := sender.Healthy(probeCtx); err != nil {
		cs.Error = err.Error()
	} else {
		cs.Reachable = true
	}
	return cs
}

// StatusText renders the snapshot as plain text for chat commands.
func (s *Service) StatusText(ctx context.Context) string {
	st := s.Status(ctx)

	var b strings.Builder
	b.WriteString("clawrelay status\n")
	fmt.Fprintf(&b, "Uptime: %s\n", st.Uptime.Round(time.Second))
	fmt.Fprintf(&b, "Gateway: %s\n", boolWord(st.GatewayConnected, "connected", "disconnected"))
	fmt.Fprintf(&b, "Gateway token: %s\n", boolWord(st.GatewayTokenSet, "set", "missing"))
	fmt.Fprintf(&b, "Pending approvals: %d\n", st.Pending)
	fmt.Fprintf(&b, "Processed approvals: %d\n", st.Processed)
	for _, cs := range st.Channels {
		switch {
		case !cs.Configured:
			fmt.Fprintf(&b, "Channel %s: not configured\n", cs.Name)
		case !cs.Enabled:
			fmt.Fprintf(&b, "Channel %s: configured, disabled\n", cs.Name)
		default:
			fmt.Fprintf(&b, "Channel %s: %s", cs.Name, boolWord(cs.Reachable, "reachable", "unreachable"))
			if cs.Error != "" {
				fmt.Fprintf(&b, " (%s)", cs.Error)
			}
			b.WriteString("\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func boolWord(v bool, yes, no string) string {
	if v {
		return yes
	}
	return no
}
