package gateway

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/atmoslabs/atmos-core/internal/infrastructure/mqtt"
)

// deviceErrorMessage is the body display controllers publish on their
// error topic.
type deviceErrorMessage struct {
	Message string `json:"message"`
}

// DeviceErrorPayload is the body of device.error broadcasts on the
// control channel.
type DeviceErrorPayload struct {
	DeviceID string    `json:"device_id"`
	Message  string    `json:"message"`
	At       time.Time `json:"at"`
}

// BindDevicePlane subscribes the gateway to the controller heartbeat
// and error topics. Call once after the MQTT client is connected.
func (g *Gateway) BindDevicePlane(client *mqtt.Client, qos byte) error {
	var topics mqtt.Topics

	if err := client.Subscribe(topics.AllHeartbeats(), qos, g.handleHeartbeat); err != nil {
		return fmt.Errorf("subscribing heartbeats: %w", err)
	}
	if err := client.Subscribe(topics.AllDeviceErrors(), qos, g.handleDeviceError); err != nil {
		return fmt.Errorf("subscribing device errors: %w", err)
	}
	g.lightingAckTopic = topics.LightingAck()
	return nil
}

func (g *Gateway) handleHeartbeat(topic string, _ []byte) error {
	deviceID := mqtt.DeviceIDFromTopic(topic)
	if deviceID == "" {
		return fmt.Errorf("%w: heartbeat topic %q", ErrInvalidEvent, topic)
	}
	g.deps.Registry.UpdateHeartbeat(deviceID)
	return nil
}

func (g *Gateway) handleDeviceError(topic string, payload []byte) error {
	deviceID := mqtt.DeviceIDFromTopic(topic)
	if deviceID == "" {
		return fmt.Errorf("%w: device error topic %q", ErrInvalidEvent, topic)
	}

	var msg deviceErrorMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		msg.Message = string(payload)
	}
	g.deps.Registry.RecordDeviceError(deviceID, msg.Message)

	g.deps.Broadcaster.Broadcast(ChannelControl, BroadcastDeviceError, DeviceErrorPayload{
		DeviceID: deviceID,
		Message:  msg.Message,
		At:       time.Now(),
	})
	return nil
}
