package gateway

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/atmoslabs/atmos-core/internal/registry"
)

// Inbound event types, sent by clients over the websocket.
const (
	EventUserJoined     = "user.joined"
	EventUserName       = "user.name"
	EventUserPreference = "user.preference"
	EventVoiceCaptured  = "voice.captured"
	EventDecisionMade   = "decision.made"
	EventUserExit       = "user.exit"
)

// Outbound broadcast types.
const (
	BroadcastTimelineStage   = "timeline.stage"
	BroadcastDeviceDecision  = "device.decision"
	BroadcastUserDecision    = "user.decision"
	BroadcastLightingApplied = "lighting.applied"
	BroadcastPresenceJoined  = "presence.joined"
	BroadcastPresenceLeft    = "presence.left"
	BroadcastDeviceError     = "device.error"
)

// Envelope is the wire form of every inbound event. The UUID is the
// sender-assigned idempotency key; on redelivery the same UUID arrives
// again and the event is dropped. Events that arrive without a UUID
// are assigned one server-side, which makes them observable but not
// deduplicable across redeliveries.
type Envelope struct {
	UUID    string          `json:"uuid"`
	TS      time.Time       `json:"ts"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// UserJoinedPayload announces a user entering the space.
type UserJoinedPayload struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name,omitempty"`
}

// UserNamePayload sets or corrects a user's display name.
type UserNamePayload struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
}

// UserPreferencePayload carries a user's environment preference. The
// whole submission replaces the user's previous one.
type UserPreferencePayload struct {
	UserID      string               `json:"user_id"`
	Environment registry.Environment `json:"environment"`
}

// VoiceCapturedPayload reports that a voice utterance was captured for
// a user. The transcript is informational; interpretation happens in
// the decision-making collaborator.
type VoiceCapturedPayload struct {
	UserID     string `json:"user_id"`
	Transcript string `json:"transcript,omitempty"`
}

// DecisionMadePayload asks for a decision to be orchestrated. A nil
// AggregatedParams means "derive the shared environment from the
// active users' preferences"; a non-nil one overrides the merged
// result field by field. IndividualResult is the submitting user's
// own outcome and wins on that user's personal target only.
type DecisionMadePayload struct {
	UserID           string                `json:"user_id,omitempty"`
	AggregatedParams *registry.Environment `json:"aggregated_params,omitempty"`
	IndividualResult *registry.Environment `json:"individual_result,omitempty"`
	Reason           string                `json:"reason,omitempty"`
	EmotionKeyword   string                `json:"emotion_keyword,omitempty"`
}

// UserExitPayload announces a deliberate exit.
type UserExitPayload struct {
	UserID string `json:"user_id"`
}

// decodePayload parses one event payload, failing closed on malformed
// JSON.
func decodePayload[T any](env Envelope) (T, error) {
	var p T
	if len(env.Payload) == 0 {
		return p, fmt.Errorf("%w: %s: missing payload", ErrInvalidEvent, env.Type)
	}
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return p, fmt.Errorf("%w: %s: %v", ErrInvalidEvent, env.Type, err)
	}
	return p, nil
}
