// Package telemetry writes Atmos Core operational metrics to InfluxDB.
//
// Recorded measurements:
//   - timeline_stage: one point per stage transition (tagged by stage and cause)
//   - decision_env:   one point per numeric field of a merged decision
//   - lighting_apply: one point per lighting bridge apply attempt
//
// Telemetry is optional and strictly best-effort: writes are batched and
// non-blocking, and every write method is a no-op when disconnected. The
// orchestration path never waits on this package.
package telemetry
