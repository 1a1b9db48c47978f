// Package events listens to the MiruSuite GUI update stream and refreshes the
// matching part of the catalog for each update.
package events

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// Event is one GUI update pushed by the server.
type Event struct {
	Type     string `json:"type"`
	DeviceID *int   `json:"deviceId,omitempty"`
}

// Kind groups event types by the catalog data they invalidate.
type Kind int

const (
	KindUnknown Kind = iota
	KindDevices
	KindPresets
	KindLiveInputs
	KindAutoCut
)

func (k Kind) String() string {
	switch k {
	case KindDevices:
		return "devices"
	case KindPresets:
		return "presets"
	case KindLiveInputs:
		return "liveInputs"
	case KindAutoCut:
		return "autoCut"
	}
	return "unknown"
}

// Classify maps an event type to the kind of data it invalidates.
func Classify(eventType string) Kind {
	t := strings.ToUpper(eventType)
	switch {
	case strings.HasPrefix(t, "DEVICE"):
		return KindDevices
	case strings.HasPrefix(t, "PRESET"), strings.HasPrefix(t, "PROJECT"):
		return KindPresets
	case strings.HasPrefix(t, "SWITCHER"):
		return KindLiveInputs
	case strings.HasPrefix(t, "AUTOCUT"):
		return KindAutoCut
	}
	return KindUnknown
}

// Refresher reloads parts of the catalog.
type Refresher interface {
	RefreshDevices(ctx context.Context) error
	RefreshPresets(ctx context.Context) error
	RefreshActivePresets(ctx context.Context) error
	RefreshLiveInputs(ctx context.Context) error
	RefreshAutoCut(ctx context.Context) error
}

// Dispatcher applies events to a Refresher and reports each refreshed kind.
type Dispatcher struct {
	refresher Refresher
	onRefresh func(kind Kind)
}

// NewDispatcher creates a dispatcher. onRefresh may be nil.
func NewDispatcher(refresher Refresher, onRefresh func(kind Kind)) *Dispatcher {
	return &Dispatcher{refresher: refresher, onRefresh: onRefresh}
}

// Handle refreshes the data an event invalidates. Unknown events are ignored.
func (d *Dispatcher) Handle(ctx context.Context, ev Event) error {
	kind := Classify(ev.Type)
	var err error
	switch kind {
	case KindDevices:
		err = d.refresher.RefreshDevices(ctx)
	case KindPresets:
		if err = d.refresher.RefreshPresets(ctx); err == nil {
			err = d.refresher.RefreshActivePresets(ctx)
		}
	case KindLiveInputs:
		err = d.refresher.RefreshLiveInputs(ctx)
	case KindAutoCut:
		err = d.refresher.RefreshAutoCut(ctx)
	default:
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to refresh %s after %s: %w", kind, ev.Type, err)
	}
	if d.onRefresh != nil {
		d.onRefresh(kind)
	}
	return nil
}

// Config configures the listener.
type Config struct {
	Host           string
	Port           int
	Path           string
	Username       string
	Password       string
	ReconnectDelay time.Duration
}

// URL returns the websocket URL of the update stream.
func (c Config) URL() string {
	path := c.Path
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	u := url.URL{
		Scheme: "ws",
		Host:   c.Host + ":" + strconv.Itoa(c.Port),
		Path:   path,
	}
	return u.String()
}

// Listener keeps a connection to the update stream open.
type Listener struct {
	cfg     Config
	dialer  *websocket.Dialer
	handler func(ctx context.Context, ev Event)
}

// NewListener creates a listener that calls handler for every event.
func NewListener(cfg Config, handler func(ctx context.Context, ev Event)) *Listener {
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 5 * time.Second
	}
	return &Listener{
		cfg:     cfg,
		dialer:  &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		handler: handler,
	}
}

// Run connects and reads events until ctx is cancelled, reconnecting after
// the configured delay whenever the connection drops.
func (l *Listener) Run(ctx context.Context) {
	for {
		err := l.listen(ctx)
		if ctx.Err() != nil {
			return
		}
		log.Printf("Warning: event stream %s disconnected: %v", l.cfg.URL(), err)

		select {
		case <-ctx.Done():
			return
		case <-time.After(l.cfg.ReconnectDelay):
		}
	}
}

func (l *Listener) header() http.Header {
	h := http.Header{}
	if l.cfg.Username != "" || l.cfg.Password != "" {
		token := base64.StdEncoding.EncodeToString([]byte(l.cfg.Username + ":" + l.cfg.Password))
		h.Set("Authorization", "Basic "+token)
	}
	return h
}

func (l *Listener) listen(ctx context.Context) error {
	conn, _, err := l.dialer.DialContext(ctx, l.cfg.URL(), l.header())
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()
	log.Printf("Connected to event stream %s", l.cfg.URL())

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil {
			log.Printf("Warning: ignoring malformed event: %v", err)
			continue
		}
		if ev.Type == "" {
			continue
		}
		l.handler(ctx, ev)
	}
}
