package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/atmoslabs/atmos-core/internal/aggregate"
	"github.com/atmoslabs/atmos-core/internal/bridges/hue"
	"github.com/atmoslabs/atmos-core/internal/idempotency"
	"github.com/atmoslabs/atmos-core/internal/registry"
	"github.com/atmoslabs/atmos-core/internal/session"
)

// Logger defines the logging interface used by the Gateway.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Broadcaster fans an event out to every subscriber of a channel.
type Broadcaster interface {
	Broadcast(channel, eventType string, payload any)
}

// Lighting is the slice of the Hue adapter the gateway drives.
type Lighting interface {
	Apply(ctx context.Context, req hue.ApplyRequest) (hue.ApplyResult, error)
	Enabled() bool
}

// Publisher publishes acknowledgements to the device plane. May be nil
// when MQTT is disabled.
type Publisher interface {
	PublishJSON(topic string, v any) error
}

// Telemetry records orchestration measurements. May be nil when the
// telemetry backend is disabled.
type Telemetry interface {
	WriteStageTransition(sessionID, stage, cause string)
	WriteDecisionField(decisionID, field string, value float64)
	WriteLightingResult(ok, fallback bool, retries int)
}

// Target modes.
const (
	ModeAggregated = "aggregated"
	ModePersonal   = "personal"
)

// Target is one logical display routing entry.
type Target struct {
	Name    string
	Mode    string
	Channel string
}

// Config holds the gateway's routing and aggregation settings.
type Config struct {
	Targets []Target

	// ActiveWindow bounds how recently a user must have been seen to
	// count as active.
	ActiveWindow time.Duration

	// Policy resolves categorical preference conflicts.
	Policy aggregate.CategoricalPolicy

	// Defaults is the environment used where nobody has an opinion.
	Defaults registry.Environment

	// LightingTimeout bounds one lighting apply end to end.
	LightingTimeout time.Duration
}

// Deps carries the gateway's collaborators.
type Deps struct {
	Registry    *registry.Registry
	Scheduler   *session.Scheduler
	Guard       *idempotency.Guard
	Broadcaster Broadcaster
	Lighting    Lighting
	Publisher   Publisher
	Telemetry   Telemetry
	Logger      Logger
}

// Gateway is the event core: every inbound client event passes through
// Dispatch exactly once per idempotency key, mutates the registry and
// timeline, and fans resulting announcements out to display, user and
// control channels.
type Gateway struct {
	cfg  Config
	deps Deps

	// lightingAckTopic is where MQTT lighting acknowledgements go.
	lightingAckTopic string
}

// New creates a gateway and registers itself as the scheduler's
// transition listener.
func New(cfg Config, deps Deps) *Gateway {
	if deps.Logger == nil {
		deps.Logger = noopLogger{}
	}
	if cfg.LightingTimeout <= 0 {
		cfg.LightingTimeout = 10 * time.Second
	}
	g := &Gateway{cfg: cfg, deps: deps}
	deps.Scheduler.SetListener(g.onStageChange)
	return g
}

// SetLightingAckTopic sets the MQTT topic for lighting acks. Empty
// disables the ack publish.
func (g *Gateway) SetLightingAckTopic(topic string) {
	g.lightingAckTopic = topic
}

// Dispatch processes one inbound event. Transport is at-least-once, so
// redeliveries are expected: the {type}:{uuid} pair is checked against
// the idempotency ledger and duplicates are dropped without error.
// Malformed events fail closed with ErrInvalidEvent and mutate nothing.
func (g *Gateway) Dispatch(ctx context.Context, env Envelope) error {
	if env.Type == "" {
		return fmt.Errorf("%w: missing type", ErrInvalidEvent)
	}
	if env.UUID == "" {
		// Without a sender key the event cannot be deduplicated
		// across redeliveries; a server key at least makes it unique
		// within this process.
		env.UUID = uuid.New().String()
		g.deps.Logger.Debug("event arrived without uuid", "type", env.Type)
	}

	key := env.Type + ":" + env.UUID
	if !g.deps.Guard.FirstSeen(key) {
		g.deps.Logger.Debug("duplicate event dropped", "key", key)
		return nil
	}

	switch env.Type {
	case EventUserJoined:
		return g.handleUserJoined(env)
	case EventUserName:
		return g.handleUserName(env)
	case EventUserPreference:
		return g.handleUserPreference(env)
	case EventVoiceCaptured:
		return g.handleVoiceCaptured(env)
	case EventDecisionMade:
		return g.handleDecisionMade(env)
	case EventUserExit:
		return g.handleUserExit(env)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownEventType, env.Type)
	}
}

func (g *Gateway) handleUserJoined(env Envelope) error {
	p, err := decodePayload[UserJoinedPayload](env)
	if err != nil {
		return err
	}
	if p.UserID == "" {
		return fmt.Errorf("%w: %s: missing user_id", ErrInvalidEvent, env.Type)
	}

	joined, err := g.deps.Registry.Connect(p.UserID, p.DisplayName)
	if err != nil {
		return err
	}
	if _, _, err := g.deps.Scheduler.UserJoined(); err != nil {
		return err
	}
	if joined {
		g.broadcastPresence(BroadcastPresenceJoined, p.UserID, p.DisplayName)
	}
	return nil
}

func (g *Gateway) handleUserName(env Envelope) error {
	p, err := decodePayload[UserNamePayload](env)
	if err != nil {
		return err
	}
	if p.UserID == "" || p.DisplayName == "" {
		return fmt.Errorf("%w: %s: missing user_id or display_name", ErrInvalidEvent, env.Type)
	}
	return g.deps.Registry.SetDisplayName(p.UserID, p.DisplayName)
}

func (g *Gateway) handleUserPreference(env Envelope) error {
	p, err := decodePayload[UserPreferencePayload](env)
	if err != nil {
		return err
	}
	if p.UserID == "" {
		return fmt.Errorf("%w: %s: missing user_id", ErrInvalidEvent, env.Type)
	}
	return g.deps.Registry.StorePreference(p.UserID, p.Environment, env.UUID)
}

func (g *Gateway) handleVoiceCaptured(env Envelope) error {
	p, err := decodePayload[VoiceCapturedPayload](env)
	if err != nil {
		return err
	}
	if p.UserID == "" {
		return fmt.Errorf("%w: %s: missing user_id", ErrInvalidEvent, env.Type)
	}
	return g.deps.Scheduler.VoiceCaptured()
}

func (g *Gateway) handleUserExit(env Envelope) error {
	p, err := decodePayload[UserExitPayload](env)
	if err != nil {
		return err
	}
	if p.UserID == "" {
		return fmt.Errorf("%w: %s: missing user_id", ErrInvalidEvent, env.Type)
	}

	if g.deps.Registry.ExitUser(p.UserID) {
		g.broadcastPresence(BroadcastPresenceLeft, p.UserID, "")
		g.endSessionIfEmpty()
	}
	return nil
}

// ConnectionClosed reports a transport-level disconnect for a user,
// called by the websocket hub when a socket dies without an explicit
// exit event.
func (g *Gateway) ConnectionClosed(userID string) {
	if userID == "" {
		return
	}
	if g.deps.Registry.Disconnect(userID) {
		g.broadcastPresence(BroadcastPresenceLeft, userID, "")
		g.endSessionIfEmpty()
	}
}

// endSessionIfEmpty ends the live session when the last user is gone.
func (g *Gateway) endSessionIfEmpty() {
	if len(g.deps.Registry.ActiveUsers(g.cfg.ActiveWindow)) == 0 {
		g.deps.Scheduler.EndSession("room_empty")
	}
}

// PresencePayload is the body of presence.joined / presence.left
// broadcasts.
type PresencePayload struct {
	UserID      string    `json:"user_id"`
	DisplayName string    `json:"display_name,omitempty"`
	ActiveCount int       `json:"active_count"`
	At          time.Time `json:"at"`
}

// broadcastPresence announces a presence edge on every display channel
// and the control channel.
func (g *Gateway) broadcastPresence(eventType, userID, displayName string) {
	payload := PresencePayload{
		UserID:      userID,
		DisplayName: displayName,
		ActiveCount: len(g.deps.Registry.ActiveUsers(g.cfg.ActiveWindow)),
		At:          time.Now(),
	}
	g.broadcastToDisplays(eventType, payload)
}

// broadcastToDisplays sends to every display channel plus control.
func (g *Gateway) broadcastToDisplays(eventType string, payload any) {
	for _, t := range g.cfg.Targets {
		if t.Channel != "" {
			g.deps.Broadcaster.Broadcast(t.Channel, eventType, payload)
		}
	}
	g.deps.Broadcaster.Broadcast(ChannelControl, eventType, payload)
}

// onStageChange fans a timeline transition out to displays and the
// telemetry backend. Invoked by the scheduler outside its lock.
func (g *Gateway) onStageChange(change session.StageChange) {
	g.broadcastToDisplays(BroadcastTimelineStage, change)
	if g.deps.Telemetry != nil {
		g.deps.Telemetry.WriteStageTransition(change.SessionID, string(change.Stage), change.Cause)
	}
}
