package registry

import (
	"sort"
	"time"
)

// UpdateHeartbeat marks a display controller as online, creating the
// health record on first sight.
func (r *Registry) UpdateHeartbeat(deviceID string) {
	if deviceID == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.devices[deviceID]
	if !ok {
		d = &DeviceHealth{DeviceID: deviceID}
		r.devices[deviceID] = d
		r.logger.Info("device discovered", "device_id", deviceID)
	}
	d.Status = DeviceOnline
	d.LastHeartbeatAt = time.Now()
	d.LastError = nil
}

// RecordDeviceError marks a controller as errored with the given
// message. The record is created if the error arrives before any
// heartbeat.
func (r *Registry) RecordDeviceError(deviceID, message string) {
	if deviceID == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.devices[deviceID]
	if !ok {
		d = &DeviceHealth{DeviceID: deviceID}
		r.devices[deviceID] = d
	}
	d.Status = DeviceError
	d.LastError = &message

	r.logger.Warn("device error", "device_id", deviceID, "error", message)
}

// GetDevice returns a copy of the device health record, or nil when
// the device is unknown.
func (r *Registry) GetDevice(deviceID string) *DeviceHealth {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.devices[deviceID]
	if !ok {
		return nil
	}
	cpy := *d
	if d.LastError != nil {
		msg := *d.LastError
		cpy.LastError = &msg
	}
	return &cpy
}

// ListDevices returns copies of all device health records, ordered by
// device id.
func (r *Registry) ListDevices() []*DeviceHealth {
	r.mu.RLock()
	defer r.mu.RUnlock()

	devices := make([]*DeviceHealth, 0, len(r.devices))
	for _, d := range r.devices {
		cpy := *d
		if d.LastError != nil {
			msg := *d.LastError
			cpy.LastError = &msg
		}
		devices = append(devices, &cpy)
	}
	sort.Slice(devices, func(i, j int) bool {
		return devices[i].DeviceID < devices[j].DeviceID
	})
	return devices
}

// UpdateApplied overwrites the snapshot for one logical target with the
// environment just applied by a decision.
func (r *Registry) UpdateApplied(target string, applied Environment, decisionID string) {
	if target == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.snapshots[target] = &Snapshot{
		Target:     target,
		Applied:    applied.DeepCopy(),
		DecisionID: decisionID,
		AppliedAt:  time.Now(),
	}

	r.logger.Debug("snapshot updated", "target", target, "decision_id", decisionID)
}

// GetSnapshot returns a copy of the last-applied snapshot for a target.
func (r *Registry) GetSnapshot(target string) (*Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.snapshots[target]
	if !ok {
		return nil, ErrSnapshotNotFound
	}
	cpy := *s
	cpy.Applied = s.Applied.DeepCopy()
	return &cpy, nil
}

// ListSnapshots returns copies of all target snapshots, ordered by
// target name.
func (r *Registry) ListSnapshots() []*Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snaps := make([]*Snapshot, 0, len(r.snapshots))
	for _, s := range r.snapshots {
		cpy := *s
		cpy.Applied = s.Applied.DeepCopy()
		snaps = append(snaps, &cpy)
	}
	sort.Slice(snaps, func(i, j int) bool {
		return snaps[i].Target < snaps[j].Target
	})
	return snaps
}
