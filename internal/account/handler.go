package account

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/parleyhq/parley/internal/authz"
	"github.com/parleyhq/parley/internal/platform/httpx"
	"github.com/parleyhq/parley/internal/session"
	"github.com/parleyhq/parley/internal/shared"
)

// Handler wires HTTP endpoints for the account flows: registration,
// login/logout, and password reset.
type Handler struct {
	logger     *slog.Logger
	service    *Service
	cookieName string
	cookieTTL  time.Duration
	secure     bool
	guard      authz.Middleware
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, cookieName string, cookieTTL time.Duration, secure bool, guard authz.Middleware) *Handler {
	return &Handler{
		logger:     logger,
		service:    service,
		cookieName: cookieName,
		cookieTTL:  cookieTTL,
		secure:     secure,
		guard:      guard,
	}
}

// MountRoutes registers account routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/register", h.handleRegister)
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
	r.Post("/reset-password", h.handleResetPassword)
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireSession())
		r.Post("/change-password", h.handleChangePassword)
	})
}

type registerRequest struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	id, err := h.service.Register(r.Context(), RegisterInput{
		Username:        req.Username,
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"id": id, "status": string(StatusPending)})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}

	priorToken := h.tokenFromRequest(r)
	user, rec, err := h.service.Login(r.Context(), req.Email, req.Password, priorToken, authz.ClientIP(r), r.UserAgent())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	h.setSessionCookie(w, rec.ID)
	httpx.JSON(w, http.StatusOK, map[string]any{
		"id":         user.ID,
		"username":   user.Username,
		"email":      user.Email,
		"role":       user.Role,
		"locale":     rec.Locale(),
		"csrf_token": rec.Value(shared.CSRFSessionKey),
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	token := h.tokenFromRequest(r)
	if err := h.service.Logout(r.Context(), token); err != nil {
		h.logger.Warn("logout", slog.Any("error", err))
	}
	h.clearSessionCookie(w)
	httpx.JSON(w, http.StatusOK, map[string]string{"result": "success"})
}

type resetRequest struct {
	Email string `json:"email"`
}

func (h *Handler) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if err := h.service.RequestPasswordReset(r.Context(), req.Email); err != nil {
		httpx.RespondError(w, err)
		return
	}
	// Same answer whether or not the email exists.
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "please check your email to reset your password"})
}

type changePasswordRequest struct {
	Password string `json:"password"`
}

func (h *Handler) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	rec := session.RecordFromContext(r.Context())
	if rec == nil || !rec.Authorized() {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthenticated", "please log in again")
		return
	}
	var req changePasswordRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if err := h.service.ChangePassword(r.Context(), rec.UserID, req.Password); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"result": "success"})
}

func (h *Handler) tokenFromRequest(r *http.Request) string {
	if cookie, err := r.Cookie(h.cookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	return r.Header.Get(authz.TokenHeader)
}

func (h *Handler) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteStrictMode,
		Expires:  time.Now().Add(h.cookieTTL),
	})
}

func (h *Handler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteStrictMode,
	})
}
