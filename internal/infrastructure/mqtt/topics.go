package mqtt

import (
	"fmt"
	"strings"
)

// Topic prefixes for the Atmos device plane.
//
// Display controllers and the lighting subsystem communicate with Core
// over a flat scheme: atmos/{category}/{id}
const (
	// TopicPrefix is the base for all Atmos topics.
	TopicPrefix = "atmos"

	// TopicSystemStatus carries Core's online/offline status (retained, LWT-backed).
	TopicSystemStatus = TopicPrefix + "/system/status"
)

// Topics provides builders for Atmos MQTT topics.
// Using these helpers keeps topic naming consistent across the codebase.
type Topics struct{}

// Heartbeat returns the topic a display controller publishes liveness on.
//
// Example: atmos/heartbeat/display-entrance-01
func (Topics) Heartbeat(deviceID string) string {
	return fmt.Sprintf("%s/heartbeat/%s", TopicPrefix, deviceID)
}

// AllHeartbeats returns the wildcard subscription for controller heartbeats.
func (Topics) AllHeartbeats() string {
	return TopicPrefix + "/heartbeat/+"
}

// DeviceError returns the topic a display controller reports faults on.
//
// Example: atmos/error/display-living-02
func (Topics) DeviceError(deviceID string) string {
	return fmt.Sprintf("%s/error/%s", TopicPrefix, deviceID)
}

// AllDeviceErrors returns the wildcard subscription for controller faults.
func (Topics) AllDeviceErrors() string {
	return TopicPrefix + "/error/+"
}

// LightingAck returns the topic Core publishes lighting apply results on.
func (Topics) LightingAck() string {
	return TopicPrefix + "/ack/lighting"
}

// SystemStatus returns the retained Core status topic.
func (Topics) SystemStatus() string {
	return TopicSystemStatus
}

// DeviceIDFromTopic extracts the trailing device id from a heartbeat or
// error topic. Returns "" if the topic does not match the flat
// atmos/{category}/{device_id} scheme.
func DeviceIDFromTopic(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) != 3 || parts[0] != TopicPrefix || parts[2] == "" {
		return ""
	}
	return parts[2]
}
