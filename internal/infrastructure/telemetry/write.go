package telemetry

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteStageTransition records a timeline stage change.
//
// The write is non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - sessionID: The session the transition belongs to
//   - stage: The stage entered (e.g. "t3")
//   - cause: What drove the transition ("event" or "fallback")
func (c *Client) WriteStageTransition(sessionID, stage, cause string) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"timeline_stage",
		map[string]string{
			"stage": stage,
			"cause": cause,
		},
		map[string]interface{}{
			"session_id": sessionID,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteDecisionField records one numeric field of a merged decision
// environment.
//
// Parameters:
//   - decisionID: The decision that produced the value
//   - field: The environment field name (e.g. "temperature")
//   - value: The merged numeric value
func (c *Client) WriteDecisionField(decisionID, field string, value float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"decision_env",
		map[string]string{
			"field": field,
		},
		map[string]interface{}{
			"decision_id": decisionID,
			"value":       value,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteLightingResult records the outcome of a lighting bridge apply.
//
// Parameters:
//   - ok: Whether the apply succeeded
//   - fallback: Whether per-light fallback was used instead of the group
//   - retries: How many retries the apply consumed
func (c *Client) WriteLightingResult(ok, fallback bool, retries int) {
	if !c.IsConnected() {
		return
	}

	okVal := 0.0
	if ok {
		okVal = 1.0
	}
	fbVal := 0.0
	if fallback {
		fbVal = 1.0
	}

	point := write.NewPoint(
		"lighting_apply",
		nil,
		map[string]interface{}{
			"ok":       okVal,
			"fallback": fbVal,
			"retries":  retries,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}
