package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/skypost/mailing-service/internal/cache"
	"github.com/skypost/mailing-service/internal/core"
)

type newsletterRequest struct {
	Name         string   `json:"name" validate:"required"`
	MessageID    *string  `json:"message_id" validate:"omitempty,uuid"`
	RecipientIDs []string `json:"recipient_ids" validate:"omitempty,dive,uuid"`
}

func (s *Server) listNewsletters(w http.ResponseWriter, r *http.Request) {
	u := userFrom(r.Context())
	items, err := cache.FetchList(r.Context(), s.cache, cache.Key("newsletter", u.ID), s.cacheTTL,
		func(ctx context.Context) ([]core.Newsletter, error) { return s.Store.ListNewsletters(ctx, u.ID) })
	if err != nil {
		storeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) refillNewsletters(ctx context.Context, ownerID string) {
	cache.RefillList(ctx, s.cache, cache.Key("newsletter", ownerID), s.cacheTTL,
		func(ctx context.Context) ([]core.Newsletter, error) { return s.Store.ListNewsletters(ctx, ownerID) })
}

func (s *Server) createNewsletter(w http.ResponseWriter, r *http.Request) {
	var in newsletterRequest
	if !s.decode(w, r, &in) {
		return
	}
	u := userFrom(r.Context())
	n := &core.Newsletter{Name: in.Name, MessageID: in.MessageID, OwnerID: u.ID}
	if err := s.Store.CreateNewsletter(r.Context(), n, in.RecipientIDs); err != nil {
		storeErr(w, err)
		return
	}
	s.refillNewsletters(r.Context(), u.ID)
	writeJSON(w, http.StatusCreated, n)
}

func (s *Server) getNewsletter(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	n, err := s.Store.NewsletterByID(r.Context(), id)
	if err != nil {
		storeErr(w, err)
		return
	}
	recipientIDs, err := s.Store.NewsletterRecipientIDs(r.Context(), id)
	if err != nil {
		storeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"newsletter": n, "recipient_ids": recipientIDs})
}

func (s *Server) updateNewsletter(w http.ResponseWriter, r *http.Request) {
	var in newsletterRequest
	if !s.decode(w, r, &in) {
		return
	}
	u := userFrom(r.Context())
	n := &core.Newsletter{ID: chi.URLParam(r, "id"), Name: in.Name, MessageID: in.MessageID, OwnerID: u.ID}
	if err := s.Store.UpdateNewsletter(r.Context(), n, in.RecipientIDs, u.ID); err != nil {
		storeErr(w, err)
		return
	}
	s.refillNewsletters(r.Context(), u.ID)
	writeJSON(w, http.StatusOK, n)
}

func (s *Server) deleteNewsletter(w http.ResponseWriter, r *http.Request) {
	u := userFrom(r.Context())
	if err := s.Store.DeleteNewsletter(r.Context(), chi.URLParam(r, "id"), u.ID); err != nil {
		storeErr(w, err)
		return
	}
	s.refillNewsletters(r.Context(), u.ID)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// sendNewsletter runs the dispatch engine for an owned newsletter. The
// transport outcome is always a 200 carrying the attempt; only
// precondition failures produce error statuses.
func (s *Server) sendNewsletter(w http.ResponseWriter, r *http.Request) {
	u := userFrom(r.Context())
	id := chi.URLParam(r, "id")

	n, err := s.Store.NewsletterByID(r.Context(), id)
	if err != nil {
		storeErr(w, err)
		return
	}
	if n.OwnerID != u.ID {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "forbidden"})
		return
	}

	att, err := s.Dispatcher.Dispatch(r.Context(), id)
	switch {
	case errors.Is(err, core.ErrNewsletterInactive):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "newsletter_inactive"})
		return
	case errors.Is(err, core.ErrNewsletterCompleted):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "newsletter_completed"})
		return
	case errors.Is(err, core.ErrNewsletterNoMessage):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "newsletter_has_no_message"})
		return
	case err != nil:
		storeErr(w, err)
		return
	}

	s.refillNewsletters(r.Context(), u.ID)

	if att.Success {
		writeJSON(w, http.StatusOK, map[string]any{"message": "newsletter sent successfully", "attempt": att})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"error": "newsletter dispatch failed: " + att.ServerResponse, "attempt": att})
}

func (s *Server) listAttempts(w http.ResponseWriter, r *http.Request) {
	u := userFrom(r.Context())
	items, err := s.Store.ListAttempts(r.Context(), u.ID)
	if err != nil {
		storeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}
