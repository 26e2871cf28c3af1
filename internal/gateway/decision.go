package gateway

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/atmoslabs/atmos-core/internal/aggregate"
	"github.com/atmoslabs/atmos-core/internal/bridges/hue"
	"github.com/atmoslabs/atmos-core/internal/registry"
)

// DecisionBroadcast is the body of device.decision and user.decision
// broadcasts. Environment is what the addressed target shows; on
// user.decision it is the user's personal result and Aggregated
// carries the shared room result alongside it. MergedFrom lists the
// users whose preferences went into the merge.
type DecisionBroadcast struct {
	DecisionID  string                `json:"decision_id"`
	SessionID   string                `json:"session_id,omitempty"`
	Target      string                `json:"target"`
	Environment registry.Environment  `json:"environment"`
	Aggregated  *registry.Environment `json:"aggregated,omitempty"`
	Reason      string                `json:"reason,omitempty"`
	MergedFrom  []string              `json:"merged_from"`
	At          time.Time             `json:"at"`
}

// LightingAppliedPayload is the body of lighting.applied broadcasts
// and MQTT acks.
type LightingAppliedPayload struct {
	DecisionID string          `json:"decision_id"`
	Color      string          `json:"color"`
	Result     hue.ApplyResult `json:"result"`
	At         time.Time       `json:"at"`
}

// handleDecisionMade resolves one decision: merge active preferences,
// route an environment to every configured target, advance the
// timeline, and kick off the lighting apply.
func (g *Gateway) handleDecisionMade(env Envelope) error {
	p, err := decodePayload[DecisionMadePayload](env)
	if err != nil {
		return err
	}

	users := g.deps.Registry.ActiveUsers(g.cfg.ActiveWindow)
	shared := aggregate.FairAverage(users, g.cfg.Policy, g.cfg.Defaults)
	if p.AggregatedParams != nil {
		// An explicit environment from the decision collaborator
		// overrides the merged one field by field.
		shared = overlay(shared, *p.AggregatedParams)
	}
	mergedFrom := make([]string, 0, len(users))
	for _, u := range users {
		mergedFrom = append(mergedFrom, u.ID)
	}

	decisionID := uuid.New().String()
	sessionID, _ := g.deps.Scheduler.Current()
	now := time.Now()

	for _, t := range g.cfg.Targets {
		switch t.Mode {
		case ModePersonal:
			// Personal targets show each user their own preferences
			// laid over the shared room result. The submitting user's
			// individual result, when present, wins over both.
			for _, u := range users {
				personal := aggregate.Individual(u, shared)
				if p.IndividualResult != nil && u.ID == p.UserID {
					personal = overlay(personal, *p.IndividualResult)
				}
				g.deps.Registry.UpdateApplied(t.Name+":"+u.ID, personal, decisionID)
				g.deps.Broadcaster.Broadcast(UserChannel(u.ID), BroadcastUserDecision, DecisionBroadcast{
					DecisionID:  decisionID,
					SessionID:   sessionID,
					Target:      t.Name,
					Environment: personal,
					Aggregated:  &shared,
					Reason:      p.Reason,
					MergedFrom:  mergedFrom,
					At:          now,
				})
			}
		default:
			g.deps.Registry.UpdateApplied(t.Name, shared, decisionID)
			channel := t.Channel
			if channel == "" {
				channel = DisplayChannel(t.Name)
			}
			g.deps.Broadcaster.Broadcast(channel, BroadcastDeviceDecision, DecisionBroadcast{
				DecisionID:  decisionID,
				SessionID:   sessionID,
				Target:      t.Name,
				Environment: shared,
				Reason:      p.Reason,
				MergedFrom:  mergedFrom,
				At:          now,
			})
		}
	}

	if err := g.deps.Scheduler.DecisionRecorded(); err != nil {
		g.deps.Logger.Warn("decision without live session", "decision_id", decisionID, "error", err)
	}

	if g.deps.Telemetry != nil {
		if shared.Temperature != nil {
			g.deps.Telemetry.WriteDecisionField(decisionID, "temperature", *shared.Temperature)
		}
		if shared.Humidity != nil {
			g.deps.Telemetry.WriteDecisionField(decisionID, "humidity", *shared.Humidity)
		}
	}

	if shared.LightColor != nil && g.deps.Lighting != nil {
		go g.applyLighting(decisionID, *shared.LightColor)
	}

	g.deps.Logger.Info("decision orchestrated",
		"decision_id", decisionID,
		"session_id", sessionID,
		"active_users", len(users),
		"reason", p.Reason,
		"emotion", p.EmotionKeyword)
	return nil
}

// applyLighting drives one lighting change and announces the outcome.
// Runs in its own goroutine; concurrent decisions race and the last
// write wins, which is acceptable for ambient light.
func (g *Gateway) applyLighting(decisionID, color string) {
	ctx, cancel := context.WithTimeout(context.Background(), g.cfg.LightingTimeout)
	defer cancel()

	result, err := g.deps.Lighting.Apply(ctx, hue.ApplyRequest{Color: color})
	if err != nil {
		g.deps.Logger.Warn("lighting apply failed", "decision_id", decisionID, "error", err)
	}

	payload := LightingAppliedPayload{
		DecisionID: decisionID,
		Color:      color,
		Result:     result,
		At:         time.Now(),
	}
	g.deps.Broadcaster.Broadcast(ChannelControl, BroadcastLightingApplied, payload)

	if g.deps.Publisher != nil && g.lightingAckTopic != "" {
		if err := g.deps.Publisher.PublishJSON(g.lightingAckTopic, payload); err != nil {
			g.deps.Logger.Warn("lighting ack publish failed", "error", err)
		}
	}
	if g.deps.Telemetry != nil && !result.Disabled {
		g.deps.Telemetry.WriteLightingResult(result.OK, result.Fallback, result.Retries)
	}
}

// overlay lays non-nil fields of over on top of base.
func overlay(base, over registry.Environment) registry.Environment {
	if over.Temperature != nil {
		base.Temperature = over.Temperature
	}
	if over.Humidity != nil {
		base.Humidity = over.Humidity
	}
	if over.LightColor != nil {
		base.LightColor = over.LightColor
	}
	if over.Music != nil {
		base.Music = over.Music
	}
	return base
}
