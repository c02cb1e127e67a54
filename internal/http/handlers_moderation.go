package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/skypost/mailing-service/internal/cache"
	"github.com/skypost/mailing-service/internal/core"
)

// Moderator list views are cached under their own owner segment so
// they can never be served to, or polluted by, a regular user's slot.

func (s *Server) moderationRecipients(w http.ResponseWriter, r *http.Request) {
	items, err := cache.FetchList(r.Context(), s.cache, cache.Key("recipient", cache.AllOwners), s.cacheTTL,
		func(ctx context.Context) ([]core.Recipient, error) { return s.Store.ListAllRecipients(ctx) })
	if err != nil {
		storeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) moderationNewsletters(w http.ResponseWriter, r *http.Request) {
	items, err := cache.FetchList(r.Context(), s.cache, cache.Key("newsletter", cache.AllOwners), s.cacheTTL,
		func(ctx context.Context) ([]core.Newsletter, error) { return s.Store.ListAllNewsletters(ctx) })
	if err != nil {
		storeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) moderationUsers(w http.ResponseWriter, r *http.Request) {
	items, err := cache.FetchList(r.Context(), s.cache, cache.Key("user", cache.AllOwners), s.cacheTTL,
		func(ctx context.Context) ([]core.User, error) { return s.Store.ListUsers(ctx) })
	if err != nil {
		storeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// disableNewsletter turns the is_active flag off, which suppresses any
// further dispatch. Disabling an already disabled newsletter is a
// no-op success.
func (s *Server) disableNewsletter(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	n, err := s.Store.NewsletterByID(r.Context(), id)
	if err != nil {
		storeErr(w, err)
		return
	}
	if err := s.Store.DisableNewsletter(r.Context(), id); err != nil {
		storeErr(w, err)
		return
	}
	s.log.Info("newsletter disabled",
		zap.String("newsletter_id", id),
		zap.String("moderator", userFrom(r.Context()).ID),
	)
	// The owner's cached list and the moderation slot both show the
	// flag; refresh both.
	s.refillNewsletters(r.Context(), n.OwnerID)
	cache.RefillList(r.Context(), s.cache, cache.Key("newsletter", cache.AllOwners), s.cacheTTL,
		func(ctx context.Context) ([]core.Newsletter, error) { return s.Store.ListAllNewsletters(ctx) })
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "message": "newsletter disabled"})
}

// blockUser deactivates an account. There is no unblock path.
func (s *Server) blockUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.Store.BlockUser(r.Context(), id); err != nil {
		storeErr(w, err)
		return
	}
	s.log.Info("user blocked",
		zap.String("user_id", id),
		zap.String("moderator", userFrom(r.Context()).ID),
	)
	cache.RefillList(r.Context(), s.cache, cache.Key("user", cache.AllOwners), s.cacheTTL,
		func(ctx context.Context) ([]core.User, error) { return s.Store.ListUsers(ctx) })
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "message": "user blocked"})
}
