package registry

import "time"

// Environment is one set of ambient parameters for a display target or
// the lighting subsystem. Nil fields mean "no opinion": they are skipped
// during aggregation and omitted on the wire.
type Environment struct {
	Temperature *float64 `json:"temperature,omitempty"`
	Humidity    *float64 `json:"humidity,omitempty"`
	LightColor  *string  `json:"light_color,omitempty"`
	Music       *string  `json:"music,omitempty"`
}

// DeepCopy clones the environment including its pointer fields, so
// the copy shares no memory with the original.
func (e Environment) DeepCopy() Environment {
	if e.Temperature != nil {
		v := *e.Temperature
		e.Temperature = &v
	}
	if e.Humidity != nil {
		v := *e.Humidity
		e.Humidity = &v
	}
	if e.LightColor != nil {
		v := *e.LightColor
		e.LightColor = &v
	}
	if e.Music != nil {
		v := *e.Music
		e.Music = &v
	}
	return e
}

// Preference is a user's last-submitted environment preference.
// It is a single slot, not a history: only the latest submission per
// user participates in aggregation.
type Preference struct {
	Environment
	SubmittedAt time.Time `json:"submitted_at"`

	// EventID is the idempotency key of the submission that produced
	// this preference, kept for tracing.
	EventID string `json:"event_id,omitempty"`
}

// User is a logical participant. One logical user may hold several
// concurrent connections (phone plus display session); presence events
// fire only on the 0↔1 connection edge.
type User struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name,omitempty"`
	LastSeenAt  time.Time `json:"last_seen_at"`

	// ConnectionRefCount counts live connections for this logical user.
	ConnectionRefCount int `json:"connection_ref_count"`

	LastPreference *Preference `json:"last_preference,omitempty"`
}

// DeepCopy creates an independent copy of the User so cache internals
// are never exposed to callers.
func (u *User) DeepCopy() *User {
	if u == nil {
		return nil
	}
	cpy := *u
	if u.LastPreference != nil {
		pref := *u.LastPreference
		pref.Environment = pref.Environment.DeepCopy()
		cpy.LastPreference = &pref
	}
	return &cpy
}

// DeviceStatus is the health state of a display controller.
type DeviceStatus string

// Device statuses.
const (
	DeviceOnline DeviceStatus = "online"
	DeviceError  DeviceStatus = "error"
)

// DeviceHealth is the liveness record for one physical display controller.
type DeviceHealth struct {
	DeviceID        string       `json:"device_id"`
	Status          DeviceStatus `json:"status"`
	LastHeartbeatAt time.Time    `json:"last_heartbeat_at"`
	LastError       *string      `json:"last_error,omitempty"`
}

// Snapshot is the last environment applied to one logical display
// target. It is overwritten on every relevant decision and always
// carries the decision id that produced it, so a late reader can tell
// how stale it is.
type Snapshot struct {
	Target     string      `json:"target"`
	Applied    Environment `json:"applied"`
	DecisionID string      `json:"decision_id"`
	AppliedAt  time.Time   `json:"applied_at"`
}
