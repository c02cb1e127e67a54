package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/skypost/mailing-service/internal/cache"
	"github.com/skypost/mailing-service/internal/core"
	"github.com/skypost/mailing-service/internal/mailer"
)

type Options struct {
	Cache     cache.Cache
	Mailer    mailer.Sender
	Log       *zap.Logger
	JWTSecret string
	TokenTTL  time.Duration
	CacheTTL  time.Duration
}

type Server struct {
	Store      *core.Store
	Dispatcher *core.Dispatcher

	cache     cache.Cache
	mailer    mailer.Sender
	log       *zap.Logger
	jwtSecret string
	tokenTTL  time.Duration
	cacheTTL  time.Duration

	validate     *validator.Validate
	loginLimiter *ipLimiter
}

func NewServer(db *pgxpool.Pool, opt Options) *Server {
	if opt.Log == nil {
		opt.Log = zap.NewNop()
	}
	if opt.TokenTTL == 0 {
		opt.TokenTTL = 24 * time.Hour
	}
	if opt.CacheTTL == 0 {
		opt.CacheTTL = cache.DefaultTTL
	}
	if opt.Cache == nil {
		opt.Cache = cache.NewMemory()
	}
	if opt.Mailer == nil {
		opt.Mailer = mailer.NewDummy()
	}
	store := &core.Store{DB: db}
	return &Server{
		Store:        store,
		Dispatcher:   &core.Dispatcher{Store: store, Sender: opt.Mailer},
		cache:        opt.Cache,
		mailer:       opt.Mailer,
		log:          opt.Log,
		jwtSecret:    opt.JWTSecret,
		tokenTTL:     opt.TokenTTL,
		cacheTTL:     opt.CacheTTL,
		validate:     validator.New(),
		loginLimiter: newIPLimiter(),
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, s.logRequests, middleware.Recoverer, instrument)

	s.mountHealth(r)
	s.mountMetrics(r)
	s.mountDocs(r)

	// Public surface
	r.Get("/", s.home)
	r.Post("/auth/register", s.register)
	r.With(s.throttleLogin).Post("/auth/login", s.login)
	r.Get("/recipients/{slug}", s.getRecipient)
	r.Get("/messages/{id}", s.getMessage)
	r.Get("/newsletters/{id}", s.getNewsletter)

	// Owner surface
	r.Group(func(pr chi.Router) {
		pr.Use(s.authenticate)

		pr.Get("/profile", s.getProfile)
		pr.Put("/profile", s.updateProfile)

		pr.Get("/recipients", s.listRecipients)
		pr.Post("/recipients", s.createRecipient)
		pr.Put("/recipients/{slug}", s.updateRecipient)
		pr.Delete("/recipients/{slug}", s.deleteRecipient)

		pr.Get("/messages", s.listMessages)
		pr.Post("/messages", s.createMessage)
		pr.Put("/messages/{id}", s.updateMessage)
		pr.Delete("/messages/{id}", s.deleteMessage)

		pr.Get("/newsletters", s.listNewsletters)
		pr.Post("/newsletters", s.createNewsletter)
		pr.Put("/newsletters/{id}", s.updateNewsletter)
		pr.Delete("/newsletters/{id}", s.deleteNewsletter)
		pr.Post("/newsletters/{id}/send", s.sendNewsletter)

		pr.Get("/attempts", s.listAttempts)

		// Moderator surface
		pr.Group(func(mr chi.Router) {
			mr.Use(s.requireModerator)
			mr.Get("/moderation/recipients", s.moderationRecipients)
			mr.Get("/moderation/newsletters", s.moderationNewsletters)
			mr.Get("/moderation/users", s.moderationUsers)
			mr.Post("/moderation/newsletters/{id}/disable", s.disableNewsletter)
			mr.Post("/moderation/users/{id}/block", s.blockUser)
		})
	})
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decode parses and validates a JSON request body. It writes the error
// response itself and reports whether the caller may proceed.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_body"})
		return false
	}
	if err := s.validate.Struct(v); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "validation_failed", "detail": err.Error()})
		return false
	}
	return true
}

// storeErr maps store sentinels onto HTTP responses.
func storeErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found"})
	case errors.Is(err, core.ErrDuplicate):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "duplicate_value", "detail": err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}
