package registry

import (
	"sync"
)

// Logger defines the logging interface used by the Registry.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}

// Registry tracks the session's participants and devices in memory.
//
// It holds three maps: logical users (presence refcounts plus last
// preference), device health records (controller heartbeats), and
// per-target applied snapshots. All state is process-lifetime only; a
// restart starts empty by design.
//
// All public methods are thread-safe. Returned records are deep copies;
// callers can safely modify them.
type Registry struct {
	users     map[string]*User
	devices   map[string]*DeviceHealth
	snapshots map[string]*Snapshot
	mu        sync.RWMutex

	logger Logger
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		users:     make(map[string]*User),
		devices:   make(map[string]*DeviceHealth),
		snapshots: make(map[string]*Snapshot),
		logger:    noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// Reset clears all users, devices, and snapshots. Used by tests and the
// control surface's full-restart path.
func (r *Registry) Reset() {
	r.mu.Lock()
	r.users = make(map[string]*User)
	r.devices = make(map[string]*DeviceHealth)
	r.snapshots = make(map[string]*Snapshot)
	r.mu.Unlock()

	r.logger.Info("registry reset")
}

// Stats returns registry counters for monitoring.
type Stats struct {
	Users     int `json:"users"`
	Connected int `json:"connected"`
	Devices   int `json:"devices"`
	Snapshots int `json:"snapshots"`
}

// GetStats returns current registry statistics.
func (r *Registry) GetStats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := Stats{
		Users:     len(r.users),
		Devices:   len(r.devices),
		Snapshots: len(r.snapshots),
	}
	for _, u := range r.users {
		if u.ConnectionRefCount > 0 {
			stats.Connected++
		}
	}
	return stats
}
