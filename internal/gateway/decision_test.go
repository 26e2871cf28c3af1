package gateway

import (
	"context"
	"testing"
	"time"

	"github.com/atmoslabs/atmos-core/internal/registry"
	"github.com/atmoslabs/atmos-core/internal/session"
)

func floatPtr(f float64) *float64 { return &f }
func strPtr(s string) *string     { return &s }

func TestDecisionFlow(t *testing.T) {
	ctx := context.Background()

	t.Run("aggregated targets receive the shared environment", func(t *testing.T) {
		h := newTestHarness(t)

		h.gateway.Dispatch(ctx, event(t, EventUserJoined, UserJoinedPayload{UserID: "u1"}))
		h.gateway.Dispatch(ctx, event(t, EventUserJoined, UserJoinedPayload{UserID: "u2"}))
		h.gateway.Dispatch(ctx, event(t, EventUserPreference, UserPreferencePayload{
			UserID: "u1", Environment: registry.Environment{Temperature: floatPtr(20)},
		}))
		h.gateway.Dispatch(ctx, event(t, EventUserPreference, UserPreferencePayload{
			UserID: "u2", Environment: registry.Environment{Temperature: floatPtr(26)},
		}))

		if err := h.gateway.Dispatch(ctx, event(t, EventDecisionMade, DecisionMadePayload{})); err != nil {
			t.Fatalf("decision dispatch failed: %v", err)
		}

		decisions := h.broadcaster.byType(BroadcastDeviceDecision)
		if len(decisions) != 2 {
			t.Fatalf("expected 2 device.decision broadcasts, got %d", len(decisions))
		}
		for _, d := range decisions {
			db := d.Payload.(DecisionBroadcast)
			if db.Environment.Temperature == nil || *db.Environment.Temperature != 23 {
				t.Errorf("expected shared temperature 23, got %+v", db.Environment.Temperature)
			}
		}

		snap, err := h.registry.GetSnapshot("entrance")
		if err != nil {
			t.Fatalf("GetSnapshot failed: %v", err)
		}
		if *snap.Applied.Temperature != 23 {
			t.Errorf("expected snapshot temperature 23, got %v", *snap.Applied.Temperature)
		}
		if snap.DecisionID == "" {
			t.Error("expected decision id on snapshot")
		}

		if _, stage := h.scheduler.Current(); stage != session.StageOrchestrated {
			t.Errorf("expected orchestrated stage, got %s", stage)
		}
	})

	t.Run("personal targets receive individual results", func(t *testing.T) {
		h := newTestHarness(t)

		h.gateway.Dispatch(ctx, event(t, EventUserJoined, UserJoinedPayload{UserID: "u1"}))
		h.gateway.Dispatch(ctx, event(t, EventUserJoined, UserJoinedPayload{UserID: "u2"}))
		h.gateway.Dispatch(ctx, event(t, EventUserPreference, UserPreferencePayload{
			UserID: "u1", Environment: registry.Environment{Temperature: floatPtr(18), Music: strPtr("jazz")},
		}))

		h.gateway.Dispatch(ctx, event(t, EventDecisionMade, DecisionMadePayload{}))

		personal := h.broadcaster.byType(BroadcastUserDecision)
		if len(personal) != 2 {
			t.Fatalf("expected a user.decision per active user, got %d", len(personal))
		}

		byChannel := make(map[string]DecisionBroadcast)
		for _, p := range personal {
			byChannel[p.Channel] = p.Payload.(DecisionBroadcast)
		}
		u1 := byChannel[UserChannel("u1")]
		if u1.Environment.Temperature == nil || *u1.Environment.Temperature != 18 {
			t.Errorf("expected u1's own temperature 18, got %+v", u1.Environment.Temperature)
		}
		u2 := byChannel[UserChannel("u2")]
		if u2.Environment.Temperature == nil || *u2.Environment.Temperature != 18 {
			// u2 has no opinion: they see the shared result, which is
			// u1's 18 since u1 is the only opinionated user.
			t.Errorf("expected shared temperature for u2, got %+v", u2.Environment.Temperature)
		}
	})

	t.Run("individual result wins on the submitter's personal target", func(t *testing.T) {
		h := newTestHarness(t)

		h.gateway.Dispatch(ctx, event(t, EventUserJoined, UserJoinedPayload{UserID: "u1"}))
		h.gateway.Dispatch(ctx, event(t, EventUserPreference, UserPreferencePayload{
			UserID: "u1", Environment: registry.Environment{Temperature: floatPtr(18)},
		}))

		h.gateway.Dispatch(ctx, event(t, EventDecisionMade, DecisionMadePayload{
			UserID:           "u1",
			AggregatedParams: &registry.Environment{Temperature: floatPtr(24)},
			IndividualResult: &registry.Environment{Temperature: floatPtr(22)},
		}))

		// Shared targets show the aggregate, the submitter's personal
		// target shows their individual result, not the stored
		// preference.
		snap, err := h.registry.GetSnapshot("entrance")
		if err != nil {
			t.Fatalf("GetSnapshot failed: %v", err)
		}
		if *snap.Applied.Temperature != 24 {
			t.Errorf("expected aggregated temperature 24 on shared target, got %v", *snap.Applied.Temperature)
		}
		personal, err := h.registry.GetSnapshot("personal:u1")
		if err != nil {
			t.Fatalf("GetSnapshot failed: %v", err)
		}
		if *personal.Applied.Temperature != 22 {
			t.Errorf("expected individual temperature 22 on personal target, got %v", *personal.Applied.Temperature)
		}
	})

	t.Run("broadcasts carry reason, merge sources and both env values", func(t *testing.T) {
		h := newTestHarness(t)

		h.gateway.Dispatch(ctx, event(t, EventUserJoined, UserJoinedPayload{UserID: "u1"}))
		h.gateway.Dispatch(ctx, event(t, EventUserPreference, UserPreferencePayload{
			UserID: "u1", Environment: registry.Environment{Temperature: floatPtr(18)},
		}))

		h.gateway.Dispatch(ctx, event(t, EventDecisionMade, DecisionMadePayload{
			UserID:           "u1",
			AggregatedParams: &registry.Environment{Temperature: floatPtr(24)},
			IndividualResult: &registry.Environment{Temperature: floatPtr(22)},
			Reason:           "calm evening",
		}))

		devices := h.broadcaster.byType(BroadcastDeviceDecision)
		if len(devices) == 0 {
			t.Fatal("expected device.decision broadcasts")
		}
		db := devices[0].Payload.(DecisionBroadcast)
		if db.Reason != "calm evening" {
			t.Errorf("expected reason on device.decision, got %q", db.Reason)
		}
		if len(db.MergedFrom) != 1 || db.MergedFrom[0] != "u1" {
			t.Errorf("expected merged_from [u1], got %v", db.MergedFrom)
		}

		echoes := h.broadcaster.byType(BroadcastUserDecision)
		if len(echoes) != 1 {
			t.Fatalf("expected 1 user.decision echo, got %d", len(echoes))
		}
		echo := echoes[0].Payload.(DecisionBroadcast)
		if echo.Environment.Temperature == nil || *echo.Environment.Temperature != 22 {
			t.Errorf("expected personal temperature 22 on echo, got %+v", echo.Environment.Temperature)
		}
		if echo.Aggregated == nil || echo.Aggregated.Temperature == nil || *echo.Aggregated.Temperature != 24 {
			t.Errorf("expected aggregated temperature 24 alongside on echo, got %+v", echo.Aggregated)
		}
	})

	t.Run("explicit environment overrides the merge", func(t *testing.T) {
		h := newTestHarness(t)

		h.gateway.Dispatch(ctx, event(t, EventUserJoined, UserJoinedPayload{UserID: "u1"}))
		h.gateway.Dispatch(ctx, event(t, EventUserPreference, UserPreferencePayload{
			UserID: "u1", Environment: registry.Environment{Temperature: floatPtr(20)},
		}))

		h.gateway.Dispatch(ctx, event(t, EventDecisionMade, DecisionMadePayload{
			AggregatedParams: &registry.Environment{Temperature: floatPtr(27)},
		}))

		snap, _ := h.registry.GetSnapshot("entrance")
		if *snap.Applied.Temperature != 27 {
			t.Errorf("expected override temperature 27, got %v", *snap.Applied.Temperature)
		}
	})

	t.Run("empty room decision uses defaults", func(t *testing.T) {
		h := newTestHarness(t)
		h.scheduler.StartNewSession("restart")

		if err := h.gateway.Dispatch(ctx, event(t, EventDecisionMade, DecisionMadePayload{})); err != nil {
			t.Fatalf("decision dispatch failed: %v", err)
		}

		snap, _ := h.registry.GetSnapshot("entrance")
		if snap.Applied.Temperature == nil || *snap.Applied.Temperature != 21 {
			t.Error("expected default temperature 21 for empty room")
		}
	})

	t.Run("lighting applied and acked", func(t *testing.T) {
		h := newTestHarness(t)

		h.gateway.Dispatch(ctx, event(t, EventUserJoined, UserJoinedPayload{UserID: "u1"}))
		h.gateway.Dispatch(ctx, event(t, EventUserPreference, UserPreferencePayload{
			UserID: "u1", Environment: registry.Environment{LightColor: strPtr("#3399FF")},
		}))

		h.gateway.Dispatch(ctx, event(t, EventDecisionMade, DecisionMadePayload{}))

		select {
		case <-h.lighting.applied:
		case <-time.After(time.Second):
			t.Fatal("lighting apply never ran")
		}
		if got := h.lighting.applies[0].Color; got != "#3399FF" {
			t.Errorf("expected color #3399FF, got %s", got)
		}

		// The broadcast and ack follow the apply asynchronously.
		waitFor(t, func() bool {
			return len(h.broadcaster.byType(BroadcastLightingApplied)) == 1
		}, "lighting.applied broadcast")
		waitFor(t, func() bool {
			h.publisher.mu.Lock()
			defer h.publisher.mu.Unlock()
			return len(h.publisher.messages["atmos/ack/lighting"]) == 1
		}, "mqtt lighting ack")
	})
}

// waitFor polls until the condition holds or a second passes.
func waitFor(t *testing.T, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
