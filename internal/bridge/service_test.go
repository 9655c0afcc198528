package bridge

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/nextlevelbuilder/clawrelay/internal/approval"
	"github.com/nextlevelbuilder/clawrelay/internal/channels"
	"github.com/nextlevelbuilder/clawrelay/pkg/protocol"
)

const prompt = "Exec approval required\nID: abc-123\nCommand: ls -la\n"

type fakeSender struct {
	name string

	deliverErr error
	delivered  []approval.Info
	resolved   []approval.Action
	expired    []string
	healthyErr error
}

func (f *fakeSender) Name() string { return f.name }

func (f *fakeSender) DeliverRequest(_ context.Context, info approval.Info) (approval.Handle, error) {
	if f.deliverErr != nil {
		return nil, f.deliverErr
	}
	f.delivered = append(f.delivered, info)
	return approval.TelegramHandle{ChatID: 1, MessageID: len(f.delivered)}, nil
}

func (f *fakeSender) UpdateResolved(_ context.Context, _ approval.Handle, _ approval.Info, action approval.Action) error {
	f.resolved = append(f.resolved, action)
	return nil
}

func (f *fakeSender) UpdateExpired(_ context.Context, _ approval.Handle, info approval.Info) error {
	f.expired = append(f.expired, info.ID)
	return nil
}

func (f *fakeSender) Healthy(context.Context) error { return f.healthyErr }

type fakeGateway struct {
	hooks      map[string]string // hookID → decision
	approvals  []string
	approveErr error
	connected  bool
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{hooks: make(map[string]string), connected: true}
}

func (g *fakeGateway) ResolveHook(_ context.Context, hookID, decision string) error {
	g.hooks[hookID] = decision
	return nil
}

func (g *fakeGateway) ResolveApproval(_ context.Context, id string, _ approval.Action) error {
	if g.approveErr != nil {
		return g.approveErr
	}
	g.approvals = append(g.approvals, id)
	return nil
}

func (g *fakeGateway) Connected() bool { return g.connected }

func newTestService(senders ...*fakeSender) (*Service, *fakeGateway) {
	reg := channels.NewRegistry()
	for _, s := range senders {
		reg.Register(s)
	}
	gw := newFakeGateway()
	return NewService(gw, reg, 2*time.Minute), gw
}

func TestDecide_FreshApprovalSuppressed(t *testing.T) {
	sender := &fakeSender{name: channels.Telegram}
	svc, _ := newTestService(sender)

	decision := svc.Decide(context.Background(), channels.Telegram, prompt)
	if decision != protocol.DecisionSuppress {
		t.Fatalf("decision = %q, want suppress", decision)
	}
	if len(sender.delivered) != 1 {
		t.Fatalf("delivered = %d messages, want 1", len(sender.delivered))
	}
	if sender.delivered[0].ID != "abc-123" {
		t.Errorf("delivered ID = %q, want abc-123", sender.delivered[0].ID)
	}
	if !svc.Store().Has("abc-123") {
		t.Error("store has no entry after successful delivery")
	}
}

func TestDecide_NonApprovalPassesThrough(t *testing.T) {
	sender := &fakeSender{name: channels.Telegram}
	svc, _ := newTestService(sender)

	decision := svc.Decide(context.Background(), channels.Telegram, "task finished, all good")
	if decision != protocol.DecisionPass {
		t.Fatalf("decision = %q, want pass", decision)
	}
	if len(sender.delivered) != 0 {
		t.Errorf("delivered = %d messages, want 0", len(sender.delivered))
	}
}

func TestDecide_DuplicateSuppressedWithoutRedelivery(t *testing.T) {
	sender := &fakeSender{name: channels.Telegram}
	svc, _ := newTestService(sender)

	svc.Decide(context.Background(), channels.Telegram, prompt)
	decision := svc.Decide(context.Background(), channels.Telegram, prompt)

	if decision != protocol.DecisionSuppress {
		t.Fatalf("duplicate decision = %q, want suppress", decision)
	}
	if len(sender.delivered) != 1 {
		t.Errorf("delivered = %d messages, want 1 (no redelivery)", len(sender.delivered))
	}
}

func TestDecide_DeliveryFailureFallsBackToPassThrough(t *testing.T) {
	sender := &fakeSender{name: channels.Telegram, deliverErr: errors.New("telegram down")}
	svc, _ := newTestService(sender)

	decision := svc.Decide(context.Background(), channels.Telegram, prompt)
	if decision != protocol.DecisionPass {
		t.Fatalf("decision = %q, want pass on delivery failure", decision)
	}
	if svc.Store().Has("abc-123") {
		t.Error("store entry created despite delivery failure")
	}
}

func TestDecide_ResolutionConfirmationClosesEntry(t *testing.T) {
	sender := &fakeSender{name: channels.Telegram}
	svc, _ := newTestService(sender)

	svc.Decide(context.Background(), channels.Telegram, prompt)
	decision := svc.Decide(context.Background(), channels.Telegram, "approved abc-123")

	if decision != protocol.DecisionPass {
		t.Fatalf("confirmation decision = %q, want pass", decision)
	}
	if svc.Store().Has("abc-123") {
		t.Error("entry still pending after resolution")
	}
	if got := svc.Store().ProcessedCount(); got != 1 {
		t.Errorf("ProcessedCount = %d, want 1", got)
	}
	if len(sender.resolved) != 1 || sender.resolved[0] != approval.ActionAllowOnce {
		t.Errorf("resolved updates = %v, want [allow-once]", sender.resolved)
	}
}

func TestDecide_ResolutionScopedToChannel(t *testing.T) {
	tg := &fakeSender{name: channels.Telegram}
	sl := &fakeSender{name: channels.Slack}
	svc, _ := newTestService(tg, sl)

	svc.Decide(context.Background(), channels.Telegram, prompt)

	// The same confirmation text on the other channel must not resolve the
	// Telegram entry; with no pending Slack entries it parses as a fresh
	// prompt instead (and the marker is absent here, so it passes through).
	svc.Decide(context.Background(), channels.Slack, "approved abc-123")
	if !svc.Store().Has("abc-123") {
		t.Error("confirmation on an unrelated channel resolved the entry")
	}
}

func TestDecide_UnbridgedChannelPassesThrough(t *testing.T) {
	svc, _ := newTestService() // no senders registered

	decision := svc.Decide(context.Background(), "discord", prompt)
	if decision != protocol.DecisionPass {
		t.Fatalf("decision = %q, want pass for unbridged channel", decision)
	}
}

func TestHandleEvent_MessageSending(t *testing.T) {
	sender := &fakeSender{name: channels.Telegram}
	svc, gw := newTestService(sender)

	payload := []byte(`{"hookId":"h1","channel":"telegram","text":"Exec approval required\nID: abc-123\nCommand: ls\n"}`)
	svc.HandleEvent(context.Background(), protocol.EventMessageSending, payload)

	if got := gw.hooks["h1"]; got != protocol.DecisionSuppress {
		t.Errorf("hook h1 resolved %q, want suppress", got)
	}
}

func TestResolver_GatewayFirst(t *testing.T) {
	sender := &fakeSender{name: channels.Telegram}
	svc, gw := newTestService(sender)
	svc.Decide(context.Background(), channels.Telegram, prompt)

	resolve := svc.Resolver()
	if err := resolve(context.Background(), "abc-123", approval.ActionDeny); err != nil {
		t.Fatalf("resolver returned error: %v", err)
	}
	if len(gw.approvals) != 1 || gw.approvals[0] != "abc-123" {
		t.Errorf("gateway approvals = %v, want [abc-123]", gw.approvals)
	}
	if svc.Store().Has("abc-123") {
		t.Error("entry still pending after button resolution")
	}
	if len(sender.resolved) != 1 || sender.resolved[0] != approval.ActionDeny {
		t.Errorf("resolved updates = %v, want [deny]", sender.resolved)
	}
}

func TestResolver_GatewayFailureKeepsEntry(t *testing.T) {
	sender := &fakeSender{name: channels.Telegram}
	svc, gw := newTestService(sender)
	gw.approveErr = errors.New("gateway unavailable")
	svc.Decide(context.Background(), channels.Telegram, prompt)

	if err := svc.Resolver()(context.Background(), "abc-123", approval.ActionAllowOnce); err == nil {
		t.Fatal("resolver swallowed the gateway error")
	}
	if !svc.Store().Has("abc-123") {
		t.Error("entry closed although the gateway never confirmed")
	}
}

func TestExpiryPushesUpdate(t *testing.T) {
	sender := &fakeSender{name: channels.Telegram}
	svc, _ := newTestService(sender)
	svc.Decide(context.Background(), channels.Telegram, prompt)

	// Age the entry past the TTL by rewriting its SentAt.
	p := svc.Store().Get("abc-123")
	p.SentAt = p.SentAt.Add(-time.Hour)

	if n := svc.Store().CleanStale(); n != 1 {
		t.Fatalf("CleanStale = %d, want 1", n)
	}
	if len(sender.expired) != 1 || sender.expired[0] != "abc-123" {
		t.Errorf("expired updates = %v, want [abc-123]", sender.expired)
	}
	if got := svc.Store().ProcessedCount(); got != 0 {
		t.Errorf("ProcessedCount = %d, want 0", got)
	}
}

func TestStatus_Snapshot(t *testing.T) {
	sender := &fakeSender{name: channels.Telegram}
	svc, gw := newTestService(sender)
	svc.Decide(context.Background(), channels.Telegram, prompt)

	st := svc.Status(context.Background())
	if !st.GatewayConnected {
		t.Error("GatewayConnected = false")
	}
	if st.Pending != 1 {
		t.Errorf("Pending = %d, want 1", st.Pending)
	}
	if len(st.Channels) != 1 || !st.Channels[0].Reachable {
		t.Errorf("Channels = %+v, want one reachable channel", st.Channels)
	}
	// Registered without flags: reported as configured and enabled.
	if !st.Channels[0].Configured || !st.Channels[0].Enabled {
		t.Errorf("channel flags = %+v, want configured and enabled", st.Channels[0])
	}

	gw.connected = false
	sender.healthyErr = errors.New("401")
	st = svc.Status(context.Background())
	if st.GatewayConnected {
		t.Error("GatewayConnected = true after disconnect")
	}
	if st.Channels[0].Reachable || st.Channels[0].Error == "" {
		t.Errorf("channel status = %+v, want unreachable with error", st.Channels[0])
	}
}

func TestStatus_ConfigPresenceFlags(t *testing.T) {
	sender := &fakeSender{name: channels.Telegram}
	svc, _ := newTestService(sender)
	svc.SetConfigFlags(ConfigFlags{
		GatewayTokenSet: true,
		Channels: []ChannelConfigFlag{
			{Name: channels.Telegram, Configured: true, Enabled: true},
			{Name: channels.Slack, Configured: true, Enabled: false},
		},
	})

	st := svc.Status(context.Background())
	if !st.GatewayTokenSet {
		t.Error("GatewayTokenSet = false")
	}
	if len(st.Channels) != 2 {
		t.Fatalf("Channels = %d entries, want 2", len(st.Channels))
	}

	byName := make(map[string]ChannelStatus, len(st.Channels))
	for _, cs := range st.Channels {
		byName[cs.Name] = cs
	}

	tg := byName[channels.Telegram]
	if !tg.Configured || !tg.Enabled || !tg.Reachable {
		t.Errorf("telegram status = %+v, want configured, enabled, reachable", tg)
	}
	// Configured but disabled: no sender is registered, so no probe runs.
	sl := byName[channels.Slack]
	if !sl.Configured || sl.Enabled || sl.Reachable {
		t.Errorf("slack status = %+v, want configured, disabled, unprobed", sl)
	}
}

func TestStatusText_ReportsConfigPresence(t *testing.T) {
	svc, _ := newTestService(&fakeSender{name: channels.Telegram})
	svc.SetConfigFlags(ConfigFlags{
		GatewayTokenSet: false,
		Channels: []ChannelConfigFlag{
			{Name: channels.Telegram, Configured: true, Enabled: true},
			{Name: channels.Slack, Configured: true, Enabled: false},
		},
	})

	text := svc.StatusText(context.Background())
	for _, want := range []string{
		"Gateway token: missing",
		"Channel telegram: reachable",
		"Channel slack: configured, disabled",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("StatusText missing %q:\n%s", want, text)
		}
	}
}
