package hue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Hue API error type for unavailable resources.
const errTypeResourceNotFound = 3

// lightState is the body of a Hue group-action or light-state PUT. A
// nil Bri leaves the lights' current brightness untouched, so a pure
// color change never alters perceived intensity.
type lightState struct {
	On             bool       `json:"on"`
	XY             [2]float64 `json:"xy"`
	Bri            *uint8     `json:"bri,omitempty"`
	TransitionTime *int       `json:"transitiontime,omitempty"`
}

// apiResult is one element of the array the bridge returns for every
// state change.
type apiResult struct {
	Success map[string]any `json:"success,omitempty"`
	Error   *apiError      `json:"error,omitempty"`
}

type apiError struct {
	Type        int    `json:"type"`
	Address     string `json:"address"`
	Description string `json:"description"`
}

// Client talks to one Hue bridge over its local HTTP API.
type Client struct {
	host     string
	username string
	http     *http.Client
}

// NewClient creates a client for the bridge at host (hostname or
// hostname:port) authenticated with the given application username.
func NewClient(host, username string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		host:     host,
		username: username,
		http:     &http.Client{Timeout: timeout},
	}
}

// SetGroupState applies a state to a whole light group.
func (c *Client) SetGroupState(ctx context.Context, groupID string, state lightState) error {
	path := fmt.Sprintf("/groups/%s/action", groupID)
	return c.put(ctx, path, state)
}

// SetLightState applies a state to a single light.
func (c *Client) SetLightState(ctx context.Context, lightID string, state lightState) error {
	path := fmt.Sprintf("/lights/%s/state", lightID)
	return c.put(ctx, path, state)
}

// put sends one state change and folds the bridge's per-field result
// array into a single error.
func (c *Client) put(ctx context.Context, path string, state lightState) error {
	body, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("%w: encode state: %v", ErrApplyFailed, err)
	}

	url := fmt.Sprintf("http://%s/api/%s%s", c.host, c.username, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: build request: %v", ErrApplyFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrApplyFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrApplyFailed, resp.StatusCode)
	}

	var results []apiResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrApplyFailed, err)
	}
	for _, r := range results {
		if r.Error == nil {
			continue
		}
		if r.Error.Type == errTypeResourceNotFound {
			return fmt.Errorf("%w: %s", ErrResourceNotFound, r.Error.Address)
		}
		return fmt.Errorf("%w: type %d at %s: %s", ErrBridgeError, r.Error.Type, r.Error.Address, r.Error.Description)
	}
	return nil
}
