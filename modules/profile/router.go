// Package profile exposes the authenticated account endpoints: viewing
// and updating the profile, avatar upload, password change, and account
// stats.
package profile

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

// maxAvatarMemory bounds how much of the multipart body is buffered in
// memory before spilling to disk.
const maxAvatarMemory = 4 << 20

// Module wires the user service to the profile routes. All routes require
// a valid access token.
type Module struct {
	users *user.Service
	guard func(http.Handler) http.Handler
	log   *slog.Logger
}

func NewModule(users *user.Service, guard func(http.Handler) http.Handler, log *slog.Logger) *Module {
	if users == nil {
		panic("profile module: user service is required")
	}
	if guard == nil {
		panic("profile module: auth middleware is required")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Module{users: users, guard: guard, log: log}
}

// Router mounts the profile endpoints behind the auth guard.
func (m *Module) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(m.guard)
	r.Get("/", m.handleGet)
	r.Patch("/update", m.handleUpdate)
	r.Patch("/avatar", m.handleAvatar)
	r.Post("/change-password", m.handleChangePassword)
	r.Get("/stats", m.handleStats)
	return r
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type avatarResponse struct {
	Avatar string `json:"avatar"`
}

type statsResponse struct {
	PoemCredits      int       `json:"poemCredits"`
	SubscriptionPlan string    `json:"subscriptionPlan"`
	IsEmailVerified  bool      `json:"isEmailVerified"`
	JoinedDate       time.Time `json:"joinedDate"`
}

func (m *Module) handleGet(w http.ResponseWriter, r *http.Request) {
	p, err := m.users.Profile(r.Context(), jwt.UserID(r.Context()))
	if err != nil {
		m.writeProfileError(w, r, err)
		return
	}
	respond.Data(w, http.StatusOK, p)
}

func (m *Module) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var upd user.ProfileUpdate
	if err := binder.BindJSON(r, &upd); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	p, err := m.users.UpdateProfile(r.Context(), jwt.UserID(r.Context()), upd)
	if err != nil {
		m.writeProfileError(w, r, err)
		return
	}
	respond.Data(w, http.StatusOK, p)
}

func (m *Module) handleAvatar(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxAvatarMemory); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid multipart request")
		return
	}
	_, fh, err := r.FormFile("avatar")
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "please provide an image")
		return
	}

	p, err := m.users.UploadAvatar(r.Context(), jwt.UserID(r.Context()), fh)
	if err != nil {
		m.writeProfileError(w, r, err)
		return
	}
	respond.Data(w, http.StatusOK, avatarResponse{Avatar: p.AvatarURL})
}

func (m *Module) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := binder.BindJSON(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := m.users.ChangePassword(r.Context(), jwt.UserID(r.Context()), req.CurrentPassword, req.NewPassword)
	if err != nil {
		m.writeProfileError(w, r, err)
		return
	}
	respond.Message(w, http.StatusOK, "Password updated successfully")
}

func (m *Module) handleStats(w http.ResponseWriter, r *http.Request) {
	p, err := m.users.Profile(r.Context(), jwt.UserID(r.Context()))
	if err != nil {
		m.writeProfileError(w, r, err)
		return
	}
	respond.Data(w, http.StatusOK, statsResponse{
		PoemCredits:      p.PoemCredits,
		SubscriptionPlan: string(p.Plan),
		IsEmailVerified:  p.EmailVerified,
		JoinedDate:       p.CreatedAt,
	})
}

func (m *Module) writeProfileError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, user.ErrUserNotFound):
		respond.Error(w, http.StatusNotFound, err.Error())
	case errors.Is(err, user.ErrInvalidCredentials),
		errors.Is(err, user.ErrPasswordLoginOnly),
		errors.Is(err, user.ErrWeakPassword),
		errors.Is(err, user.ErrAvatarTooLarge),
		errors.Is(err, user.ErrAvatarNotAnImage):
		respond.Error(w, http.StatusBadRequest, err.Error())
	default:
		m.log.ErrorContext(r.Context(), "profile request failed", slog.Any("error", err))
		respond.Error(w, http.StatusInternalServerError, "internal server error")
	}
}
