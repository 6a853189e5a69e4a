// Package auth exposes registration, login, social sign-in, email
// verification, and password recovery over HTTP.
package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/versecraft/api/modules/respond"
	"github.com/versecraft/api/pkg/binder"
	"github.com/versecraft/api/pkg/jwt"
	"github.com/versecraft/api/svc/user"
)

const accessTokenTTL = 7 * 24 * time.Hour

// Module wires the user service to the auth routes.
type Module struct {
	users *user.Service
	jwt   *jwt.Service
	log   *slog.Logger
}

func NewModule(users *user.Service, jwtSvc *jwt.Service, log *slog.Logger) *Module {
	if users == nil {
		panic("auth module: user service is required")
	}
	if jwtSvc == nil {
		panic("auth module: jwt service is required")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Module{users: users, jwt: jwtSvc, log: log}
}

// Router mounts the public auth endpoints.
func (m *Module) Router() chi.Router {
	r := chi.NewRouter()
	r.Post("/register", m.handleRegister)
	r.Post("/login", m.handleLogin)
	r.Post("/google", m.handleGoogle)
	r.Get("/verify-email/{token}", m.handleVerifyEmail)
	r.Post("/forgot-password", m.handleForgotPassword)
	r.Post("/reset-password/{token}", m.handleResetPassword)
	return r
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type googleRequest struct {
	GoogleID string `json:"googleId"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	Picture  string `json:"picture"`
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Password string `json:"password"`
}

type authResponse struct {
	Token string       `json:"token"`
	User  user.Profile `json:"user"`
}

func (m *Module) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := binder.BindJSON(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	u, err := m.users.Register(r.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		m.writeAuthError(w, r, err)
		return
	}
	m.respondWithToken(w, r, u, http.StatusCreated)
}

func (m *Module) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := binder.BindJSON(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	u, err := m.users.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		m.writeAuthError(w, r, err)
		return
	}
	m.respondWithToken(w, r, u, http.StatusOK)
}

func (m *Module) handleGoogle(w http.ResponseWriter, r *http.Request) {
	var req googleRequest
	if err := binder.BindJSON(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	u, err := m.users.GoogleSignIn(r.Context(), req.GoogleID, req.Email, req.Name, req.Picture)
	if err != nil {
		m.writeAuthError(w, r, err)
		return
	}
	m.respondWithToken(w, r, u, http.StatusOK)
}

func (m *Module) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	if err := m.users.VerifyEmail(r.Context(), token); err != nil {
		m.writeAuthError(w, r, err)
		return
	}
	respond.Message(w, http.StatusOK, "Email verified successfully")
}

func (m *Module) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := binder.BindJSON(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := m.users.ForgotPassword(r.Context(), req.Email); err != nil {
		m.writeAuthError(w, r, err)
		return
	}
	respond.Message(w, http.StatusOK, "Password reset instructions sent to your email")
}

func (m *Module) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := binder.BindJSON(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	token := chi.URLParam(r, "token")
	if err := m.users.ResetPassword(r.Context(), token, req.Password); err != nil {
		m.writeAuthError(w, r, err)
		return
	}
	respond.Message(w, http.StatusOK, "Password reset successful")
}

func (m *Module) respondWithToken(w http.ResponseWriter, r *http.Request, u *user.User, status int) {
	now := time.Now()
	token, err := m.jwt.Generate(jwt.AccessClaims{
		StandardClaims: jwt.StandardClaims{
			Subject:   u.ID,
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(accessTokenTTL).Unix(),
		},
		Email: u.Email,
		Plan:  string(u.Plan),
	})
	if err != nil {
		m.log.ErrorContext(r.Context(), "failed to issue access token", slog.Any("error", err))
		respond.Error(w, http.StatusInternalServerError, "could not issue access token")
		return
	}
	respond.Data(w, status, authResponse{Token: token, User: u.Profile()})
}

// writeAuthError maps service errors to HTTP statuses. Validation problems
// are 400, credential problems 401, duplicates 409; anything unexpected is
// logged and hidden behind a 500.
func (m *Module) writeAuthError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, user.ErrInvalidEmail),
		errors.Is(err, user.ErrWeakPassword),
		errors.Is(err, user.ErrInvalidToken),
		errors.Is(err, user.ErrTokenExpired):
		respond.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, user.ErrInvalidCredentials),
		errors.Is(err, user.ErrPasswordLoginOnly):
		respond.Error(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, user.ErrEmailTaken):
		respond.Error(w, http.StatusConflict, err.Error())
	default:
		m.log.ErrorContext(r.Context(), "auth request failed", slog.Any("error", err))
		respond.Error(w, http.StatusInternalServerError, "internal server error")
	}
}
