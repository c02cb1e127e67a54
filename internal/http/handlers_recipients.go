package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/skypost/mailing-service/internal/cache"
	"github.com/skypost/mailing-service/internal/core"
)

type recipientRequest struct {
	FirstName  string `json:"first_name" validate:"required"`
	LastName   string `json:"last_name" validate:"required"`
	Patronymic string `json:"patronymic"`
	Email      string `json:"email" validate:"required,email"`
	Comment    string `json:"comment"`
	Slug       string `json:"slug"`
}

func (s *Server) listRecipients(w http.ResponseWriter, r *http.Request) {
	u := userFrom(r.Context())
	items, err := cache.FetchList(r.Context(), s.cache, cache.Key("recipient", u.ID), s.cacheTTL,
		func(ctx context.Context) ([]core.Recipient, error) { return s.Store.ListRecipients(ctx, u.ID) })
	if err != nil {
		storeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) refillRecipients(ctx context.Context, ownerID string) {
	cache.RefillList(ctx, s.cache, cache.Key("recipient", ownerID), s.cacheTTL,
		func(ctx context.Context) ([]core.Recipient, error) { return s.Store.ListRecipients(ctx, ownerID) })
}

func (s *Server) createRecipient(w http.ResponseWriter, r *http.Request) {
	var in recipientRequest
	if !s.decode(w, r, &in) {
		return
	}
	u := userFrom(r.Context())
	rec := &core.Recipient{
		FirstName:  in.FirstName,
		LastName:   in.LastName,
		Patronymic: in.Patronymic,
		Email:      in.Email,
		Comment:    in.Comment,
		Slug:       in.Slug,
		OwnerID:    &u.ID,
	}
	if err := s.Store.CreateRecipient(r.Context(), rec); err != nil {
		storeErr(w, err)
		return
	}
	s.refillRecipients(r.Context(), u.ID)
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) getRecipient(w http.ResponseWriter, r *http.Request) {
	rec, err := s.Store.RecipientBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		storeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) updateRecipient(w http.ResponseWriter, r *http.Request) {
	var in recipientRequest
	if !s.decode(w, r, &in) {
		return
	}
	u := userFrom(r.Context())
	rec, err := s.Store.RecipientBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		storeErr(w, err)
		return
	}
	rec.FirstName = in.FirstName
	rec.LastName = in.LastName
	rec.Patronymic = in.Patronymic
	rec.Email = in.Email
	rec.Comment = in.Comment
	rec.Slug = in.Slug
	if err := s.Store.UpdateRecipient(r.Context(), rec, u.ID); err != nil {
		storeErr(w, err)
		return
	}
	s.refillRecipients(r.Context(), u.ID)
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) deleteRecipient(w http.ResponseWriter, r *http.Request) {
	u := userFrom(r.Context())
	rec, err := s.Store.RecipientBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		storeErr(w, err)
		return
	}
	if err := s.Store.DeleteRecipient(r.Context(), rec.ID, u.ID); err != nil {
		storeErr(w, err)
		return
	}
	s.refillRecipients(r.Context(), u.ID)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
