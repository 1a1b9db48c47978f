// Package miru provides a typed HTTP client for the MiruSuite server API.
package miru

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bbernstein/mirusuite-bridge/internal/services/status"
)

// ErrNotInitialized is returned when a call is made on a nil client.
var ErrNotInitialized = errors.New("client not initialized")

// StatusError is returned when the server answers with a non-2xx code.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: backend returned code %d - %s", e.Method, e.Path, e.Code, e.Status)
}

// Config holds client connection settings.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	Timeout  time.Duration
}

// Client talks to one MiruSuite server.
type Client struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client
	tracker    *status.Tracker
}

// NewClient creates a client. The tracker (optional) receives connection
// status updates for every request.
func NewClient(cfg Config, tracker *status.Tracker) *Client {
	if tracker != nil {
		tracker.Set(status.StatusConnecting, "")
	}

	host := strings.TrimSpace(cfg.Host)
	if host == "localhost" || host == "" {
		host = "127.0.0.1"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	c := &Client{
		baseURL:  fmt.Sprintf("http://%s:%d", host, cfg.Port),
		username: cfg.Username,
		password: cfg.Password,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		tracker: tracker,
	}
	log.Printf("Setting up backend for base url %s", c.baseURL)
	return c
}

// BaseURL returns the server base URL, e.g. http://127.0.0.1:8080.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) setStatus(s status.Status, msg string) {
	if c.tracker != nil {
		c.tracker.Set(s, msg)
	}
}

// do performs a request and decodes a JSON response into out (if non-nil).
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	if c == nil {
		return ErrNotInitialized
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	if c.username != "" && c.password != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.setStatus(status.StatusConnectionFailure, err.Error())
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Printf("Backend returned code %d - %s", resp.StatusCode, http.StatusText(resp.StatusCode))
		c.setStatus(status.StatusConnectionFailure, fmt.Sprintf("Backend returned code %d", resp.StatusCode))
		return &StatusError{Method: method, Path: path, Code: resp.StatusCode, Status: http.StatusText(resp.StatusCode)}
	}
	c.setStatus(status.StatusOK, "")

	if out == nil {
		return nil
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}

// Devices returns every device configured on the server.
func (c *Client) Devices(ctx context.Context) ([]Device, error) {
	var devices []Device
	if err := c.do(ctx, http.MethodGet, "/api/devices", nil, &devices); err != nil {
		return nil, err
	}
	return devices, nil
}

// Faces returns the persistent face identities.
func (c *Client) Faces(ctx context.Context) ([]Face, error) {
	var faces []Face
	if err := c.do(ctx, http.MethodGet, "/api/faces/persistent", nil, &faces); err != nil {
		return nil, err
	}
	return faces, nil
}

// Presets returns the presets of the active project without preview images.
func (c *Client) Presets(ctx context.Context) ([]Preset, error) {
	var project Project
	if err := c.do(ctx, http.MethodGet, "/api/projects/active", nil, &project); err != nil {
		return nil, err
	}
	presets := make([]Preset, len(project.Presets))
	for i, p := range project.Presets {
		p.PreviewBase64 = ""
		presets[i] = p
	}
	return presets, nil
}

// ActivePresetMap returns the active preset per device id.
func (c *Client) ActivePresetMap(ctx context.Context) (map[int]ActivePreset, error) {
	active := make(map[int]ActivePreset)
	if err := c.do(ctx, http.MethodGet, "/api/projects/active/presets/active", nil, &active); err != nil {
		return nil, err
	}
	return active, nil
}

// LiveInputs returns the switcher program inputs, empty when the switcher is
// not connected.
func (c *Client) LiveInputs(ctx context.Context) ([]string, error) {
	var sw SwitcherStatus
	if err := c.do(ctx, http.MethodGet, "/api/switcher", nil, &sw); err != nil {
		return nil, err
	}
	if sw.ConnectionStatus != "CONNECTED" {
		log.Println("Warning: switcher not connected")
		return []string{}, nil
	}
	if sw.Programs == nil {
		return []string{}, nil
	}
	return sw.Programs, nil
}

// AutoCutRunning reports whether AutoCut is running.
func (c *Client) AutoCutRunning(ctx context.Context) (bool, error) {
	var ac AutoCutStatus
	if err := c.do(ctx, http.MethodGet, "/api/autocut", nil, &ac); err != nil {
		return false, err
	}
	return ac.Running, nil
}

// FaceImage downloads the preview image of a face.
func (c *Client) FaceImage(ctx context.Context, faceID int) ([]byte, error) {
	if c == nil {
		return nil, ErrNotInitialized
	}
	path := fmt.Sprintf("/api/faces/%d/img", faceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	if c.username != "" && c.password != "" {
		req.SetBasicAuth(c.username, c.password)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Method: http.MethodGet, Path: path, Code: resp.StatusCode, Status: http.StatusText(resp.StatusCode)}
	}
	return io.ReadAll(resp.Body)
}

// SetDirector enables or disables the director component of a device.
// A nil enabled toggles based on the component's current state.
func (c *Client) SetDirector(ctx context.Context, device *Device, enabled *bool) error {
	if device == nil {
		return nil
	}
	component := device.ComponentOfType("DIRECTOR")
	if component == "" {
		return nil
	}
	enable := device.ComponentState(component) != StateRunning
	if enabled != nil {
		enable = *enabled
	}
	verb := "disable"
	if enable {
		verb = "enable"
	}
	path := fmt.Sprintf("/api/devices/%d/%s/%s", device.ID, url.PathEscape(component), verb)
	return c.do(ctx, http.MethodPost, path, nil, nil)
}

type devicePatch struct {
	Patch map[string]ComponentSettings `json:"patch"`
}

// SetShotSize sets the target shot size of a device's head tracking director.
func (c *Client) SetShotSize(ctx context.Context, device *Device, size ShotSize) error {
	if device == nil || device.Components.HeadTrackingDirector == nil {
		return nil
	}
	settings := device.Components.HeadTrackingDirector.With("targetShotSize", string(size))
	body := devicePatch{Patch: map[string]ComponentSettings{"headTrackingDirector": settings}}
	return c.do(ctx, http.MethodPut, "/api/devices/"+strconv.Itoa(device.ID), body, nil)
}

// SetTrackingMode sets the tracking mode and target face of a device's person tracker.
func (c *Client) SetTrackingMode(ctx context.Context, device *Device, mode TrackingMode, faceID int) error {
	if device == nil || device.Components.PersonTracker == nil {
		return nil
	}
	settings := device.Components.PersonTracker.
		With("trackingMode", string(mode)).
		With("targetFaceId", faceID)
	body := devicePatch{Patch: map[string]ComponentSettings{"personTracker": settings}}
	return c.do(ctx, http.MethodPut, "/api/devices/"+strconv.Itoa(device.ID), body, nil)
}

// LearnTargetFace learns the face of the person currently tracked by a device.
func (c *Client) LearnTargetFace(ctx context.Context, device *Device) error {
	if device == nil {
		return nil
	}
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/api/devices/%d/tracker/learn", device.ID), nil, nil)
}

// PlayPreset plays a preset of the active project.
func (c *Client) PlayPreset(ctx context.Context, presetID int) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/api/projects/active/presets/%d/play", presetID), nil, nil)
}

// OverwritePreset stores the current device position into a preset.
func (c *Client) OverwritePreset(ctx context.Context, presetID int) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/api/projects/active/presets/%d/overwrite", presetID), nil, nil)
}

// ReapplyActivePreset returns a device to its active preset.
func (c *Client) ReapplyActivePreset(ctx context.Context, deviceID int) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/api/projects/active/presets/reapply/%d", deviceID), nil, nil)
}

// TriggerRandomMove starts a random move on an auto-move director.
func (c *Client) TriggerRandomMove(ctx context.Context, deviceID int) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/api/devices/%d/director/automove", deviceID), nil, nil)
}

// TriggerPresetMove moves towards a nearby preset on an auto-move director.
func (c *Client) TriggerPresetMove(ctx context.Context, deviceID int) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/api/devices/%d/director/presetmove", deviceID), nil, nil)
}

// StopAutoMove stops auto-movement of a device.
func (c *Client) StopAutoMove(ctx context.Context, deviceID int) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/api/devices/%d/director/stop", deviceID), nil, nil)
}

// ReturnToHome sends a device's PTZ controller to its home position.
func (c *Client) ReturnToHome(ctx context.Context, deviceID int) error {
	body := map[string]bool{"returnToHome": true}
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/api/devices/%d/controller/control", deviceID), body, nil)
}

// ExitSteadyMode leaves steady mode on a head tracking director.
func (c *Client) ExitSteadyMode(ctx context.Context, deviceID int) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/api/devices/%d/director/steady/exit", deviceID), nil, nil)
}

// SetAutoCut starts or stops AutoCut.
func (c *Client) SetAutoCut(ctx context.Context, running bool) error {
	path := "/api/autocut/stop"
	if running {
		path = "/api/autocut/start"
	}
	return c.do(ctx, http.MethodPut, path, nil, nil)
}

// CutTo cuts the switcher program to an input.
func (c *Client) CutTo(ctx context.Context, input string) error {
	return c.do(ctx, http.MethodPost, "/api/switcher/program/"+url.PathEscape(input), nil, nil)
}
