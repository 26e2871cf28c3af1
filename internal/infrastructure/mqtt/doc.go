// Package mqtt provides the MQTT client for the Atmos device plane.
//
// Fixed-display controllers are headless machines driving the physical
// screens; they report over MQTT rather than WebSocket so that liveness
// survives browser restarts on the display surface itself:
//
//   - atmos/heartbeat/{device_id} — periodic controller liveness
//   - atmos/error/{device_id}    — controller fault reports
//   - atmos/ack/lighting         — lighting apply results from Core
//   - atmos/system/status        — Core online/offline (retained, LWT-backed)
//
// The client wraps eclipse/paho.mqtt.golang with subscription tracking
// (restored on reconnect), Last Will and Testament for crash detection,
// and panic-recovering handler wrappers.
//
// Thread Safety: all methods are safe for concurrent use.
package mqtt
