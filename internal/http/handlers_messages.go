package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/skypost/mailing-service/internal/cache"
	"github.com/skypost/mailing-service/internal/core"
)

type messageRequest struct {
	Title string `json:"title" validate:"required"`
	Body  string `json:"body" validate:"required"`
}

func (s *Server) listMessages(w http.ResponseWriter, r *http.Request) {
	u := userFrom(r.Context())
	items, err := cache.FetchList(r.Context(), s.cache, cache.Key("message", u.ID), s.cacheTTL,
		func(ctx context.Context) ([]core.Message, error) { return s.Store.ListMessages(ctx, u.ID) })
	if err != nil {
		storeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) refillMessages(ctx context.Context, ownerID string) {
	cache.RefillList(ctx, s.cache, cache.Key("message", ownerID), s.cacheTTL,
		func(ctx context.Context) ([]core.Message, error) { return s.Store.ListMessages(ctx, ownerID) })
}

func (s *Server) createMessage(w http.ResponseWriter, r *http.Request) {
	var in messageRequest
	if !s.decode(w, r, &in) {
		return
	}
	u := userFrom(r.Context())
	m := &core.Message{Title: in.Title, Body: in.Body, OwnerID: u.ID}
	if err := s.Store.CreateMessage(r.Context(), m); err != nil {
		storeErr(w, err)
		return
	}
	s.refillMessages(r.Context(), u.ID)
	writeJSON(w, http.StatusCreated, m)
}

func (s *Server) getMessage(w http.ResponseWriter, r *http.Request) {
	m, err := s.Store.MessageByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		storeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) updateMessage(w http.ResponseWriter, r *http.Request) {
	var in messageRequest
	if !s.decode(w, r, &in) {
		return
	}
	u := userFrom(r.Context())
	m := &core.Message{ID: chi.URLParam(r, "id"), Title: in.Title, Body: in.Body, OwnerID: u.ID}
	if err := s.Store.UpdateMessage(r.Context(), m, u.ID); err != nil {
		storeErr(w, err)
		return
	}
	s.refillMessages(r.Context(), u.ID)
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) deleteMessage(w http.ResponseWriter, r *http.Request) {
	u := userFrom(r.Context())
	if err := s.Store.DeleteMessage(r.Context(), chi.URLParam(r, "id"), u.ID); err != nil {
		storeErr(w, err)
		return
	}
	s.refillMessages(r.Context(), u.ID)
	// Newsletters referencing the message keep existing with a null
	// message; their cached lists carry the message id, so refresh.
	s.refillNewsletters(r.Context(), u.ID)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
