package httpapi

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/skypost/mailing-service/internal/auth"
	"github.com/skypost/mailing-service/internal/core"
	"github.com/skypost/mailing-service/internal/metrics"
)

type registerRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Username    string `json:"username" validate:"required"`
	PhoneNumber string `json:"phone_number" validate:"omitempty,numeric"`
	Password    string `json:"password" validate:"required,min=8"`
}

const welcomeSubject = "Welcome to the mailing service"
const welcomeBody = "Thank you for registering. You can now create recipients, messages and newsletters."

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var in registerRequest
	if !s.decode(w, r, &in) {
		return
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	u := &core.User{
		Email:        in.Email,
		Username:     in.Username,
		PhoneNumber:  in.PhoneNumber,
		PasswordHash: hash,
	}
	if err := s.Store.CreateUser(r.Context(), u); err != nil {
		storeErr(w, err)
		return
	}

	// The account exists either way; a failed welcome mail is logged,
	// not surfaced.
	if err := s.mailer.Send(r.Context(), u.Email, welcomeSubject, welcomeBody); err != nil {
		s.log.Warn("welcome mail failed", zap.String("email", u.Email), zap.Error(err))
	}

	writeJSON(w, http.StatusCreated, u)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var in loginRequest
	if !s.decode(w, r, &in) {
		return
	}
	u, err := s.Store.UserByEmail(r.Context(), in.Email)
	if err != nil || !auth.CheckPassword(in.Password, u.PasswordHash) {
		metrics.LoginTotal.WithLabelValues("bad_credentials").Inc()
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid_credentials"})
		return
	}
	if !u.IsActive {
		metrics.LoginTotal.WithLabelValues("blocked").Inc()
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "account_disabled"})
		return
	}
	token, err := auth.GenerateToken(u.ID, s.jwtSecret, s.tokenTTL)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	metrics.LoginTotal.WithLabelValues("ok").Inc()
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (s *Server) getProfile(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, userFrom(r.Context()))
}

type profileRequest struct {
	Username    string `json:"username" validate:"required"`
	PhoneNumber string `json:"phone_number" validate:"omitempty,numeric"`
}

func (s *Server) updateProfile(w http.ResponseWriter, r *http.Request) {
	var in profileRequest
	if !s.decode(w, r, &in) {
		return
	}
	u := userFrom(r.Context())
	u.Username = in.Username
	u.PhoneNumber = in.PhoneNumber
	if err := s.Store.UpdateProfile(r.Context(), u); err != nil {
		storeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}
