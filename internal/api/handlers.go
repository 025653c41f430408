package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Audatic07/collab-notes/internal/accounts"
	"github.com/Audatic07/collab-notes/internal/config"
	"github.com/Audatic07/collab-notes/internal/metrics"
	"github.com/Audatic07/collab-notes/internal/models"
	"github.com/Audatic07/collab-notes/internal/session"
	"github.com/Audatic07/collab-notes/internal/utils"
)

type Handlers struct {
	log        *zap.Logger
	verifier   session.CredentialVerifier
	manager    *session.Manager
	upgrader   websocket.Upgrader
	clientOpts session.ClientOptions
}

func NewHandlers(log *zap.Logger, verifier session.CredentialVerifier, manager *session.Manager, cfg config.Config) *Handlers {
	h := &Handlers{
		log:      log,
		verifier: verifier,
		manager:  manager,
		clientOpts: session.ClientOptions{
			SendBuffer:     cfg.SendBuffer,
			MaxMessageSize: cfg.MaxMessageBytes,
			PingInterval:   cfg.PingInterval,
		},
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(cfg),
	}
	return h
}

func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	_, _ = w.Write([]byte("ok"))
}

// NotePresence returns who is currently in a note's room.
func (h *Handlers) NotePresence(w http.ResponseWriter, r *http.Request) {
	token, err := utils.ExtractTokenFromHeader(r.Header.Get("Authorization"))
	if err != nil {
		utils.JSONError(w, http.StatusUnauthorized, err.Error())
		return
	}
	if _, err := h.verifier.Verify(token); err != nil {
		utils.JSONError(w, http.StatusUnauthorized, "invalid or expired token")
		return
	}

	documentID := chi.URLParam(r, "id")
	if strings.TrimSpace(documentID) == "" {
		utils.JSONError(w, http.StatusBadRequest, "note id is required")
		return
	}

	users, err := h.manager.Presence(r.Context(), documentID)
	if err != nil {
		h.log.Warn("presence query failed", zap.String("document", documentID), zap.Error(err))
		utils.JSONError(w, http.StatusServiceUnavailable, "presence unavailable")
		return
	}
	utils.JSON(w, http.StatusOK, models.PresenceUpdate{DocumentID: documentID, Users: users})
}

// CollabWS authenticates before upgrading, then pumps frames between the
// socket and the session manager until the connection ends.
func (h *Handlers) CollabWS(w http.ResponseWriter, r *http.Request) {
	token := utils.TokenFromRequest(r)
	if token == "" {
		metrics.HandshakeRejected("missing_token")
		utils.JSONError(w, http.StatusUnauthorized, accounts.ErrMissingToken.Error())
		return
	}

	s, err := session.Authenticate(r.Context(), h.verifier, token)
	if err != nil {
		h.rejectHandshake(w, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		metrics.HandshakeRejected("upgrade")
		h.log.Info("websocket upgrade failed", zap.Error(err))
		return
	}

	client := session.NewClient(conn, h.log.With(zap.String("session", s.ID), zap.String("user", s.UserID)), h.clientOpts)
	s.Attach(client)
	go client.WritePump()

	if err := h.manager.Register(s); err != nil {
		h.log.Warn("failed to register session", zap.Error(err))
		client.Close()
		return
	}

	client.ReadPump(func(raw []byte) error {
		ev, err := session.ParseEvent(s, raw)
		if err != nil {
			client.Send(session.ErrorFrame(err.Error()))
			return nil
		}
		return h.manager.Submit(ev)
	})

	if err := h.manager.Submit(session.Disconnect{Session: s}); err != nil {
		client.Close()
	}
}

func (h *Handlers) rejectHandshake(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, accounts.ErrMissingToken), errors.Is(err, accounts.ErrInvalidToken):
		metrics.HandshakeRejected("invalid_token")
		utils.JSONError(w, http.StatusUnauthorized, "invalid or expired token")
	case errors.Is(err, accounts.ErrUserNotFound):
		metrics.HandshakeRejected("unknown_user")
		utils.JSONError(w, http.StatusUnauthorized, accounts.ErrUserNotFound.Error())
	default:
		metrics.HandshakeRejected("lookup_failed")
		h.log.Error("handshake user lookup failed", zap.Error(err))
		utils.JSONError(w, http.StatusInternalServerError, "failed to authenticate")
	}
}

func originChecker(cfg config.Config) func(*http.Request) bool {
	if cfg.AllowsAnyOrigin() {
		return func(*http.Request) bool { return true }
	}
	allowed := make(map[string]struct{}, len(cfg.AllowedOrigins))
	for _, origin := range cfg.AllowedOrigins {
		allowed[strings.TrimRight(origin, "/")] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := allowed[strings.TrimRight(origin, "/")]
		return ok
	}
}
