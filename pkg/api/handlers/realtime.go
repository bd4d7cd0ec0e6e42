package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/obsync/obsync/internal/logger"
	"github.com/obsync/obsync/pkg/auth"
	"github.com/obsync/obsync/pkg/metrics"
	"github.com/obsync/obsync/pkg/model"
	"github.com/obsync/obsync/pkg/realtime"
	"github.com/obsync/obsync/pkg/store"
)

// WebsocketAuthProtocol is the subprotocol name under which realtime clients
// carry their bearer token: Sec-WebSocket-Protocol: obsync-auth, <token>.
const WebsocketAuthProtocol = "obsync-auth"

// writeWait bounds how long a single websocket write may take before the
// connection is considered dead.
const writeWait = 10 * time.Second

// PrincipalResolver authenticates a realtime request. Auth failures are
// reported over the established socket, not with an HTTP status, so the
// handler resolves the principal itself after the upgrade.
type PrincipalResolver func(r *http.Request) (*auth.Principal, error)

// RealtimeHandler serves the websocket subscription endpoint. Each accepted
// connection gets a backlog envelope first, then live events in seq order,
// with keepalives while idle.
type RealtimeHandler struct {
	store    store.Store
	bus      *realtime.Bus
	gate     *auth.Gate
	resolve  PrincipalResolver
	upgrader websocket.Upgrader
}

// NewRealtimeHandler creates a realtime handler.
func NewRealtimeHandler(st store.Store, bus *realtime.Bus, gate *auth.Gate, resolve PrincipalResolver) *RealtimeHandler {
	return &RealtimeHandler{
		store:   st,
		bus:     bus,
		gate:    gate,
		resolve: resolve,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			Subprotocols:    []string{WebsocketAuthProtocol},
			// Desktop and mobile vault clients connect from app origins.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Subscribe handles GET /v1/vaults/{vaultId}/realtime.
//
// The subscription is registered on the bus before the backlog is read, so
// an op appended between the two shows up either in the backlog or on the
// live channel; duplicates across that boundary are filtered by seq.
func (h *RealtimeHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	vaultID := chi.URLParam(r, "vaultId")
	since, err := parseInt64(r.URL.Query().Get("since"), 0)
	if err != nil || since < 0 {
		WriteError(w, r, http.StatusBadRequest, CodeInvalidPushPayload,
			"since must be a non-negative integer", "", nil)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		logger.Debug("websocket upgrade rejected", "error", err, "remote_addr", r.RemoteAddr)
		return
	}
	defer conn.Close()

	principal, err := h.resolve(r)
	if err == nil {
		_, err = h.gate.Admit(r.Context(), principal, vaultID, auth.ScopeRead)
	}
	if err != nil {
		// Auth and access failures are reported in-band before close.
		h.closeWithError(conn, err)
		return
	}

	sub := h.bus.Subscribe(vaultID)
	defer h.bus.Unsubscribe(sub)

	metrics.RealtimeSubscribers.Inc()
	defer metrics.RealtimeSubscribers.Dec()

	backlog, err := h.store.ReadOpsSince(r.Context(), vaultID, since, realtime.BacklogCap)
	if err != nil {
		h.closeWithError(conn, err)
		return
	}

	entries := make([]realtime.BacklogEntry, len(backlog))
	lastSeq := since
	for i, op := range backlog {
		entries[i] = realtime.BacklogEntry{
			Seq:       op.Seq,
			OpType:    string(op.OpType),
			Payload:   op.Payload,
			CreatedAt: op.CreatedAt,
		}
		lastSeq = op.Seq
	}
	if err := h.writeJSON(conn, realtime.NewBacklogEnvelope(entries)); err != nil {
		return
	}

	logger.Debug("realtime subscription established",
		"vault_id", vaultID,
		"since", since,
		"backlog", len(entries),
	)

	// Reader goroutine: we never expect client frames, but reading is what
	// surfaces close frames and dead peers.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	keepalive := time.NewTicker(realtime.KeepaliveInterval)
	defer keepalive.Stop()

	for {
		select {
		case ev, ok := <-sub.C():
			if !ok {
				// Dropped for falling behind; the client reconnects and
				// reconciles via pull.
				return
			}
			if ev.Seq <= lastSeq {
				continue
			}
			lastSeq = ev.Seq
			if err := h.writeJSON(conn, realtime.NewEventEnvelope(ev)); err != nil {
				return
			}

		case <-keepalive.C:
			if err := h.writeJSON(conn, realtime.NewKeepaliveEnvelope(time.Now())); err != nil {
				return
			}

		case <-done:
			return

		case <-r.Context().Done():
			return
		}
	}
}

// closeWithError sends an error envelope and closes the socket.
func (h *RealtimeHandler) closeWithError(conn *websocket.Conn, err error) {
	env := realtime.ErrorEnvelope{Type: realtime.EnvelopeError}
	switch {
	case errors.Is(err, auth.ErrUnauthorized),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken):
		env.Code = CodeUnauthorized
		env.Message = "authentication required"
		env.Remediation = "reconnect with a valid bearer token"
	case errors.Is(err, auth.ErrForbidden):
		env.Code = CodeForbidden
		env.Message = "insufficient scope for realtime subscription"
	case errors.Is(err, model.ErrVaultNotFound):
		env.Code = CodeVaultNotFound
		env.Message = "vault not found"
	default:
		env.Code = CodeInternalError
		env.Message = "internal error"
		env.Remediation = "reconnect with exponential backoff"
	}

	_ = h.writeJSON(conn, env)
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, env.Code),
		time.Now().Add(writeWait))
}

func (h *RealtimeHandler) writeJSON(conn *websocket.Conn, v any) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(v)
}
