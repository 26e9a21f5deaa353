package webchart

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Single-origin deployment; the reverse proxy enforces origin policy.
	CheckOrigin: func(*http.Request) bool { return true },
}

type chatRequest struct {
	Prompt        string   `json:"prompt"`
	ConvID        string   `json:"conv_id"`
	AttachmentIDs []string `json:"attachment_ids,omitempty"`
}

type chatResponse struct {
	ConvID string `json:"conv_id"`
}

type convRequest struct {
	ConvID string `json:"conv_id"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Handlers mounts the HTTP surface over a ChatService.
type Handlers struct {
	service *ChatService
	logger  zerolog.Logger
}

func NewHandlers(service *ChatService, logger zerolog.Logger) *Handlers {
	return &Handlers{
		service: service,
		logger:  logger.With().Str("component", "http").Logger(),
	}
}

// Mount registers all routes on mux.
func (h *Handlers) Mount(mux *http.ServeMux) {
	mux.HandleFunc("POST /chat", h.handleChat)
	mux.HandleFunc("GET /ws", h.handleWS)
	mux.HandleFunc("GET /api/state", h.handleState)
	mux.HandleFunc("POST /api/stop", h.handleStop)
	mux.HandleFunc("POST /api/reset", h.handleReset)
}

func (h *Handlers) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, errors.Wrap(err, "invalid request body"))
		return
	}
	convID, err := h.service.SubmitPrompt(r.Context(), req.ConvID, req.Prompt, req.AttachmentIDs)
	switch {
	case errors.Is(err, ErrConversationBusy):
		writeJSONError(w, http.StatusConflict, err)
		return
	case err != nil:
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusAccepted, chatResponse{ConvID: convID})
}

func (h *Handlers) handleWS(w http.ResponseWriter, r *http.Request) {
	convID := r.URL.Query().Get("conv_id")
	if convID == "" {
		writeJSONError(w, http.StatusBadRequest, errors.New("conv_id query parameter is required"))
		return
	}
	conv, err := h.service.manager.GetOrCreate(convID)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Str("conv_id", convID).Msg("websocket upgrade failed")
		return
	}
	conv.ensureForwarder(h.service.manager.bus)
	conv.Pool.Add(conn)
	h.logger.Debug().Str("conv_id", convID).Int("connections", conv.Pool.Count()).Msg("websocket attached")

	// Clients only listen; the read loop exists to notice disconnects.
	go func() {
		defer conv.Pool.Remove(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *Handlers) handleState(w http.ResponseWriter, r *http.Request) {
	convID := r.URL.Query().Get("conv_id")
	if convID == "" {
		writeJSONError(w, http.StatusBadRequest, errors.New("conv_id query parameter is required"))
		return
	}
	snap, err := h.service.Snapshot(convID)
	if err != nil {
		writeJSONError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *Handlers) handleStop(w http.ResponseWriter, r *http.Request) {
	var req convRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, errors.Wrap(err, "invalid request body"))
		return
	}
	if err := h.service.Stop(req.ConvID); err != nil {
		writeJSONError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"stopped": true})
}

func (h *Handlers) handleReset(w http.ResponseWriter, r *http.Request) {
	var req convRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, errors.Wrap(err, "invalid request body"))
		return
	}
	if err := h.service.Reset(r.Context(), req.ConvID); err != nil {
		writeJSONError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"reset": true})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeJSONError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}
