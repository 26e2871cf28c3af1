package hue

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Logger defines the logging interface used by the Adapter.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}

// stateSetter is the slice of the bridge client the adapter needs,
// split out so tests can substitute a fake bridge.
type stateSetter interface {
	SetGroupState(ctx context.Context, groupID string, state lightState) error
	SetLightState(ctx context.Context, lightID string, state lightState) error
}

// Config holds the adapter settings.
type Config struct {
	Enabled  bool
	Host     string
	Username string

	// GroupID is the light group addressed first on every apply.
	GroupID string

	// LightIDs are the individual lights used as a fallback when the
	// group resource is missing on the bridge.
	LightIDs []string

	// RetryAttempts is how many extra attempts follow a failed apply.
	RetryAttempts int

	// DefaultTransitionMS is the fade duration used when a request
	// does not carry its own.
	DefaultTransitionMS int

	Timeout time.Duration
}

// ApplyRequest asks for one lighting change.
type ApplyRequest struct {
	// Color is the requested color in #RRGGBB, rgb() or hsl() form.
	Color string

	// Brightness sets the lights' brightness, 1..254. Nil omits the
	// field entirely: the lights keep their current brightness and
	// only the color changes.
	Brightness *int

	// TransitionMS overrides the configured default fade duration.
	TransitionMS *int
}

// ApplyResult reports what one apply actually did.
type ApplyResult struct {
	OK       bool    `json:"ok"`
	Disabled bool    `json:"disabled,omitempty"`
	Fallback bool    `json:"fallback,omitempty"`
	Retries  int     `json:"retries,omitempty"`
	Applied  XYColor `json:"applied,omitempty"`
	Error    string  `json:"error,omitempty"`
}

// Adapter translates color decisions into Hue bridge calls.
//
// Applies address the configured group first; when the bridge reports
// the group resource missing, the adapter falls back to addressing
// each configured light individually. A disabled adapter answers every
// apply with a soft not-ok result instead of an error, so callers
// never need to special-case deployments without lighting hardware.
type Adapter struct {
	cfg    Config
	client stateSetter
	logger Logger
}

// NewAdapter creates an adapter from config. A disabled config yields
// a working adapter whose applies are soft no-ops.
func NewAdapter(cfg Config) *Adapter {
	a := &Adapter{cfg: cfg, logger: noopLogger{}}
	if cfg.Enabled {
		a.client = NewClient(cfg.Host, cfg.Username, cfg.Timeout)
	}
	return a
}

// SetLogger sets the logger for the adapter.
func (a *Adapter) SetLogger(logger Logger) {
	a.logger = logger
}

// Enabled reports whether the adapter talks to real hardware.
func (a *Adapter) Enabled() bool {
	return a.cfg.Enabled
}

// Apply performs one lighting change. The returned result is always
// populated; the error is non-nil only for caller mistakes (a bad
// color) or when every attempt against the bridge failed.
func (a *Adapter) Apply(ctx context.Context, req ApplyRequest) (ApplyResult, error) {
	if !a.cfg.Enabled {
		return ApplyResult{OK: false, Disabled: true}, nil
	}

	color, err := ParseColor(req.Color)
	if err != nil {
		return ApplyResult{Error: err.Error()}, err
	}

	state := lightState{On: true, XY: [2]float64{color.X, color.Y}}
	if req.Brightness != nil {
		bri := clampBrightness(*req.Brightness)
		state.Bri = &bri
		color.Bri = bri
	}
	if ticks, ok := transitionTicks(req.TransitionMS, a.cfg.DefaultTransitionMS); ok {
		state.TransitionTime = &ticks
	}

	result := ApplyResult{Applied: color}
	attempts := 1 + a.cfg.RetryAttempts
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			result.Retries++
			a.logger.Debug("retrying lighting apply", "attempt", attempt+1)
		}

		fallback, err := a.applyOnce(ctx, state)
		if err == nil {
			result.OK = true
			result.Fallback = fallback
			return result, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}

	result.Error = lastErr.Error()
	a.logger.Warn("lighting apply failed", "error", lastErr, "retries", result.Retries)
	return result, fmt.Errorf("%w: %v", ErrApplyFailed, lastErr)
}

// applyOnce tries the group, then falls back to individual lights when
// the group resource is missing. Returns whether the fallback path was
// used.
func (a *Adapter) applyOnce(ctx context.Context, state lightState) (fallback bool, err error) {
	err = a.client.SetGroupState(ctx, a.cfg.GroupID, state)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, ErrResourceNotFound) {
		return false, err
	}

	a.logger.Debug("group missing, applying per light", "group_id", a.cfg.GroupID)
	applied := 0
	var lastErr error
	for _, id := range a.cfg.LightIDs {
		if err := a.client.SetLightState(ctx, id, state); err != nil {
			// A missing individual light is skipped, not fatal.
			if errors.Is(err, ErrResourceNotFound) {
				a.logger.Debug("light missing, skipped", "light_id", id)
				continue
			}
			lastErr = err
			continue
		}
		applied++
	}
	if applied == 0 {
		if lastErr == nil {
			lastErr = fmt.Errorf("%w: no addressable lights", ErrResourceNotFound)
		}
		return true, lastErr
	}
	return true, nil
}

// clampBrightness forces a brightness override onto the bridge's
// 1..254 scale.
func clampBrightness(bri int) uint8 {
	if bri < 1 {
		return 1
	}
	if bri > 254 {
		return 254
	}
	return uint8(bri)
}

// transitionTicks converts a fade duration in milliseconds to the
// bridge's 100ms ticks, floored at 1. A zero or negative duration
// means "no transition field".
func transitionTicks(override *int, defaultMS int) (int, bool) {
	ms := defaultMS
	if override != nil {
		ms = *override
	}
	if ms <= 0 {
		return 0, false
	}
	ticks := ms / 100
	if ticks < 1 {
		ticks = 1
	}
	return ticks, true
}
