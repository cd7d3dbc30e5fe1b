// Package httpapi exposes registration, login, and OTP verification over
// JSON HTTP, plus the bearer-token middleware guarding other routes.
package httpapi

import (
	"net/http"
	"strings"
	"time"

	apperrors "github.com/vmitra/vmitra/internal/platform/errors"
	"github.com/vmitra/vmitra/internal/platform/httpx"
	"github.com/vmitra/vmitra/internal/platform/requestctx"
	"github.com/vmitra/vmitra/internal/services/auth/app"
	"github.com/vmitra/vmitra/internal/services/auth/user"
)

// AccessTokenParam carries the token on websocket upgrades, where browsers
// cannot set an Authorization header.
const AccessTokenParam = "access_token"

// Handler serves auth endpoints.
type Handler struct {
	service *app.Service
}

// NewHandler builds a handler over service.
func NewHandler(service *app.Service) *Handler {
	return &Handler{service: service}
}

// Register mounts the auth routes. The caller route is wrapped with protect.
func (h *Handler) Register(mux *http.ServeMux, protect httpx.Middleware) {
	if protect == nil {
		protect = h.Middleware(true)
	}
	mux.HandleFunc("POST /api/auth/register", h.handleRegister)
	mux.HandleFunc("POST /api/auth/login", h.handleLogin)
	mux.HandleFunc("POST /api/auth/verify-otp", h.handleVerifyOTP)
	mux.Handle("GET /api/auth/me", protect(http.HandlerFunc(h.handleMe)))
}

// Middleware attaches the caller identity from a bearer token. When
// required is set, requests without a valid token are rejected with 401.
func (h *Handler) Middleware(required bool) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" {
				if required {
					httpx.WriteError(w, apperrors.New(apperrors.CodeUnauthorized, "authentication required"))
					return
				}
				next.ServeHTTP(w, r)
				return
			}
			caller, err := h.service.Authenticate(raw)
			if err != nil {
				if required {
					httpx.WriteError(w, err)
					return
				}
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(requestctx.WithUser(r.Context(), caller)))
		})
	}
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if scheme, value, ok := strings.Cut(header, " "); ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(value)
	}
	return strings.TrimSpace(r.URL.Query().Get(AccessTokenParam))
}

type registerRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type verifyRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type userResponse struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Verified bool   `json:"verified"`
}

type sessionResponse struct {
	User        userResponse `json:"user"`
	AccessToken string       `json:"accessToken"`
	TokenType   string       `json:"tokenType"`
	ExpiresAt   time.Time    `json:"expiresAt"`
}

func newUserResponse(u user.User) userResponse {
	return userResponse{Email: u.Email, Name: u.Name, Verified: u.Verified}
}

func newSessionResponse(session app.Session) sessionResponse {
	return sessionResponse{
		User:        newUserResponse(session.User),
		AccessToken: session.AccessToken,
		TokenType:   "Bearer",
		ExpiresAt:   session.ExpiresAt,
	}
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.WriteError(w, err)
		return
	}
	message, err := h.service.Register(r.Context(), user.RegisterInput{Email: req.Email, Name: req.Name, Password: req.Password})
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	_ = httpx.WriteJSON(w, http.StatusOK, messageResponse{Message: message})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.WriteError(w, err)
		return
	}
	session, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	_ = httpx.WriteJSON(w, http.StatusOK, newSessionResponse(session))
}

func (h *Handler) handleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.WriteError(w, err)
		return
	}
	session, err := h.service.VerifyOTP(r.Context(), req.Email, req.OTP)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	_ = httpx.WriteJSON(w, http.StatusOK, newSessionResponse(session))
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	caller, ok := requestctx.UserFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, apperrors.New(apperrors.CodeUnauthorized, "authentication required"))
		return
	}
	_ = httpx.WriteJSON(w, http.StatusOK, userResponse{Email: caller.Email, Name: caller.Name, Verified: true})
}
