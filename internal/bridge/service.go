// Package bridge wires gateway message events to the approval core: it
// decides per event whether the original text passes through or is
// suppressed in favor of an interactive channel message, and keeps the
// pending set in sync with resolutions and TTL expiry.
package bridge

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nextlevelbuilder/clawrelay/internal/approval"
	"github.com/nextlevelbuilder/clawrelay/internal/channels"
	"github.com/nextlevelbuilder/clawrelay/pkg/protocol"
)

// updateTimeout bounds the platform edits triggered by expiry and button
// resolutions, which run outside any event's own context.
const updateTimeout = 10 * time.Second

// Gateway is the slice of the gateway client the bridge needs.
type Gateway interface {
	ResolveHook(ctx context.Context, hookID, decision string) error
	ResolveApproval(ctx context.Context, id string, action approval.Action) error
	Connected() bool
}

// Service is the approval lifecycle coordinator.
type Service struct {
	store     *approval.Store
	registry  *channels.Registry
	gw        Gateway
	cfgFlags  ConfigFlags
	startedAt time.Time
}

// NewService creates the coordinator and its backing store.
func NewService(gw Gateway, registry *channels.Registry, ttl time.Duration) *Service {
	s := &Service{
		registry:  registry,
		gw:        gw,
		startedAt: time.Now(),
	}
	s.store = approval.NewStore(ttl, s.handleExpired)
	return s
}

// Store exposes the approval store for lifecycle control and status reads.
func (s *Service) Store() *approval.Store { return s.store }

// SetConfigFlags records configuration presence for status reporting. Call
// before Start.
func (s *Service) SetConfigFlags(f ConfigFlags) { s.cfgFlags = f }

// Start launches the store's TTL sweep.
func (s *Service) Start() { s.store.Start() }

// Stop halts the sweep.
func (s *Service) Stop() { s.store.Stop() }

// HandleEvent is the gateway event entry point.
func (s *Service) HandleEvent(ctx context.Context, event string, payload json.RawMessage) {
	switch event {
	case protocol.EventMessageSending:
		var msg protocol.MessageSendingPayload
		if err := json.Unmarshal(payload, &msg); err != nil {
			slog.Warn("malformed message.sending payload", "error", err)
			return
		}
		decision := s.Decide(ctx, msg.Channel, msg.Text)
		if err := s.gw.ResolveHook(ctx, msg.HookID, decision); err != nil {
			slog.Warn("hook.resolve failed", "hook_id", msg.HookID, "decision", decision, "error", err)
		}

	case protocol.EventShutdown:
		slog.Info("gateway announced shutdown")
	}
}

// Decide classifies one outgoing message on a channel and performs the
// side effects its classification requires. The returned decision tells the
// gateway whether to send the original text.
//
// Order matters: a resolution confirmation can contain the approval marker
// phrase, so detection against the pending set runs before parsing.
func (s *Service) Decide(ctx context.Context, channelTag, text string) string {
	// Resolution of a pending approval delivered on this channel.
	if id, action, ok := approval.Detect(text, s.pendingOn(channelTag)); ok {
		if p := s.store.Resolve(id); p != nil {
			s.pushResolved(ctx, p, action)
		}
		// The confirmation text itself passes through untouched.
		return protocol.DecisionPass
	}

	info := approval.Parse(text)
	if info == nil {
		return protocol.DecisionPass
	}

	// Duplicate guard: the richer message for this ID is already out.
	if s.store.Has(info.ID) {
		slog.Debug("duplicate approval prompt suppressed", "id", info.ID)
		return protocol.DecisionSuppress
	}

	sender, ok := s.registry.Get(channelTag)
	if !ok {
		slog.Warn("approval prompt for unbridged channel passes through", "channel", channelTag)
		return protocol.DecisionPass
	}

	handle, err := sender.DeliverRequest(ctx, *info)
	if err != nil {
		// Degrade to the original plain text; no entry is created.
		slog.Warn("approval delivery failed, passing original through",
			"id", info.ID, "channel", channelTag, "error", err)
		return protocol.DecisionPass
	}

	s.store.Add(info.ID, channelTag, handle, *info)
	return protocol.DecisionSuppress
}

// Resolver returns the callback interactive channels invoke on button
// presses. The gateway is told first; only a successful gateway resolution
// closes the local entry, so a failed call leaves the buttons active.
func (s *Service) Resolver() channels.Resolver {
	return func(ctx context.Context, id string, action approval.Action) error {
		if err := s.gw.ResolveApproval(ctx, id, action); err != nil {
			return err
		}
		if p := s.store.Resolve(id); p != nil {
			s.pushResolved(ctx, p, action)
		}
		return nil
	}
}

// pendingOn filters the pending snapshot down to one channel.
func (s *Service) pendingOn(channelTag string) map[string]*approval.Pending {
	entries := s.store.Entries()
	for id, p := range entries {
		if p.Channel != channelTag {
			delete(entries, id)
		}
	}
	return entries
}

func (s *Service) pushResolved(ctx context.Context, p *approval.Pending, action approval.Action) {
	sender, ok := s.registry.Get(p.Channel)
	if !ok {
		return
	}
	if err := sender.UpdateResolved(ctx, p.Handle, p.Info, action); err != nil {
		slog.Warn("failed to update resolved approval message",
			"id", p.Info.ID, "channel", p.Channel, "error", err)
	}
}

// handleExpired is the store's expiry callback.
func (s *Service) handleExpired(p *approval.Pending) {
	sender, ok := s.registry.Get(p.Channel)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), updateTimeout)
	defer cancel()

	slog.Info("approval expired", "id", p.Info.ID, "channel", p.Channel,
		"age", time.Since(p.SentAt).Round(time.Second))
	if err := sender.UpdateExpired(ctx, p.Handle, p.Info); err != nil {
		slog.Warn("failed to update expired approval message",
			"id", p.Info.ID, "channel", p.Channel, "error", err)
	}
}
