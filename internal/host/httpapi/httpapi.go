// Package httpapi exposes a host instance over HTTP: definitions, action and
// feedback invocation, variables, status and configuration, plus a websocket
// that pushes feedback rechecks, variable changes and status updates.
package httpapi

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/bbernstein/mirusuite-bridge/internal/host"
	"github.com/bbernstein/mirusuite-bridge/internal/services/pubsub"
)

const (
	requestTimeout = 30 * time.Second
	pingInterval   = 10 * time.Second
	writeWait      = 5 * time.Second
	sendBuffer     = 64
)

// Handler serves one host instance.
type Handler struct {
	instance *host.Instance
	upgrader websocket.Upgrader
}

// NewHandler creates a handler for an instance.
func NewHandler(instance *host.Instance) *Handler {
	return &Handler{
		instance: instance,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins for WebSocket
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// Routes returns the router. The websocket route is kept out of the request
// timeout.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(requestTimeout))

		r.Get("/definitions/actions", h.listActions)
		r.Get("/definitions/feedbacks", h.listFeedbacks)
		r.Get("/definitions/variables", h.listVariables)
		r.Get("/definitions/presets", h.listPresets)

		r.Post("/actions/{actionID}", h.runAction)
		r.Post("/feedbacks/{feedbackID}", h.runFeedback)

		r.Get("/variables", h.variableValues)
		r.Get("/variables/{variableID}", h.variableValue)

		r.Get("/status", h.status)
		r.Get("/config", h.config)
		r.Post("/config", h.updateConfig)
		r.Post("/refresh", h.refresh)
	})

	r.Get("/ws", h.serveWS)
	return r
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Warning: failed to write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, errorResponse{Error: err.Error()})
}

// statusFor maps handler errors to HTTP status codes. Anything else came
// from the MiruSuite server.
func statusFor(err error) int {
	switch {
	case errors.Is(err, host.ErrUnknownAction), errors.Is(err, host.ErrUnknownFeedback):
		return http.StatusNotFound
	case errors.Is(err, host.ErrInvalidOptions):
		return http.StatusUnprocessableEntity
	case errors.Is(err, host.ErrHandlerPanic):
		return http.StatusInternalServerError
	}
	return http.StatusBadGateway
}

func (h *Handler) listActions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.instance.Actions())
}

func (h *Handler) listFeedbacks(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.instance.Feedbacks())
}

func (h *Handler) listVariables(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.instance.Variables())
}

func (h *Handler) listPresets(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.instance.Presets())
}

func decodeBody(r *http.Request, v any) error {
	if r.ContentLength == 0 {
		return nil
	}
	return json.NewDecoder(r.Body).Decode(v)
}

func (h *Handler) runAction(w http.ResponseWriter, r *http.Request) {
	var ev host.ActionEvent
	if err := decodeBody(r, &ev); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.instance.RunAction(r.Context(), chi.URLParam(r, "actionID"), ev); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) runFeedback(w http.ResponseWriter, r *http.Request) {
	var ev host.FeedbackEvent
	if err := decodeBody(r, &ev); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	res, err := h.instance.RunFeedback(r.Context(), chi.URLParam(r, "feedbackID"), ev)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) variableValues(w http.ResponseWriter, r *http.Request) {
	values, err := h.instance.VariableValues(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, values)
}

type variableResponse struct {
	ID    string `json:"variableId"`
	Value string `json:"value"`
}

func (h *Handler) variableValue(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "variableID")
	value, ok, err := h.instance.GetVariableValue(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, errors.New("variable not set: "+id))
		return
	}
	writeJSON(w, http.StatusOK, variableResponse{ID: id, Value: value})
}

func (h *Handler) status(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.instance.Tracker().Get())
}

func (h *Handler) config(w http.ResponseWriter, _ *http.Request) {
	cfg := h.instance.Config()
	if cfg.Password != "" {
		cfg.Password = "********"
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (h *Handler) updateConfig(w http.ResponseWriter, r *http.Request) {
	var cfg host.Config
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.instance.ConfigUpdated(r.Context(), cfg); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	writeJSON(w, http.StatusOK, h.instance.Tracker().Get())
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	h.instance.UpdateConfiguration(r.Context())
	writeJSON(w, http.StatusOK, h.instance.Tracker().Get())
}

var pushTopics = []pubsub.Topic{
	pubsub.TopicCheckFeedbacks,
	pubsub.TopicVariables,
	pubsub.TopicStatus,
	pubsub.TopicDefinitions,
}

// serveWS pushes host notifications to one client until it disconnects.
func (h *Handler) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Warning: websocket upgrade failed: %v", err)
		return
	}
	defer func() { _ = conn.Close() }()

	bus := h.instance.PubSub()
	out := make(chan any, sendBuffer)
	subs := make([]*pubsub.Subscriber, 0, len(pushTopics))
	for _, topic := range pushTopics {
		sub := bus.Subscribe(topic, "", sendBuffer)
		subs = append(subs, sub)
		go func() {
			for msg := range sub.Channel {
				select {
				case out <- msg:
				default:
				}
			}
		}()
	}
	defer func() {
		for _, sub := range subs {
			bus.Unsubscribe(sub)
		}
	}()

	// Reads only detect the close; clients do not send anything.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	send := func(msg any) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(msg) == nil
	}
	if !send(host.StatusMessage{Type: "status", Status: h.instance.Tracker().Get()}) {
		return
	}

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-closed:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case msg := <-out:
			if !send(msg) {
				return
			}
		}
	}
}
