package api

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"ecoindex/internal/auth"
	"ecoindex/internal/core"
)

const maxUserBytes = 16 << 10

type credentialsRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

func bearer(token string) tokenResponse {
	return tokenResponse{AccessToken: token, TokenType: "bearer"}
}

type registerResponse struct {
	auth.User
	AccessToken tokenResponse `json:"access_token"`
}

type updateRoleRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func (h *Handler) userRoutes(r chi.Router) {
	r.Post("/", h.handleRegister)
	r.Post("/login/token", h.handleLogin)
	r.Post("/forgotpassword", h.handleForgotPassword)
	r.Put("/resetpassword", h.handleResetPassword)

	r.Group(func(r chi.Router) {
		r.Use(authenticate(h.cfg.Users, h.logger))
		r.Get("/me", h.handleMe)
		r.Group(func(r chi.Router) {
			r.Use(requireRole(auth.RoleAdmin, h.logger))
			r.Get("/", h.handleListUsers)
			r.Put("/updaterole", h.handleUpdateRole)
			r.Put("/disableuser", h.handleDisableUser)
		})
	})
}

// decodeJSON reads a JSON body into v. Malformed input is a validation error.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	body := http.MaxBytesReader(w, r.Body, maxUserBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return core.NewValidationError("body", "request body required")
		}
		return core.NewValidationError("body", "invalid request payload: %v", err)
	}
	return nil
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeErr(w, r, h.logger, err)
		return
	}
	user, token, err := h.cfg.Users.Register(r.Context(), firstNonEmpty(req.Email, req.Username), req.Password)
	if err != nil {
		writeErr(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, registerResponse{User: user, AccessToken: bearer(token)})
}

// handleLogin accepts the OAuth2 password form (username, password) or the
// same fields as JSON.
func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		r.Body = http.MaxBytesReader(w, r.Body, maxUserBytes)
		parse := r.ParseForm
		if mediaType == "multipart/form-data" {
			parse = func() error { return r.ParseMultipartForm(maxUserBytes) }
		}
		if err := parse(); err != nil {
			writeErr(w, r, h.logger, core.NewValidationError("body", "invalid form payload"))
			return
		}
		req.Username = r.PostFormValue("username")
		req.Password = r.PostFormValue("password")
	default:
		if err := decodeJSON(w, r, &req); err != nil {
			writeErr(w, r, h.logger, err)
			return
		}
	}
	email := firstNonEmpty(req.Username, req.Email)
	if email == "" || req.Password == "" {
		writeErr(w, r, h.logger, core.NewValidationError("username", "username and password are required"))
		return
	}
	token, err := h.cfg.Users.Login(r.Context(), email, req.Password)
	if err != nil {
		writeErr(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, bearer(token))
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	user, _ := currentUser(r.Context())
	writeJSON(w, http.StatusOK, user)
}

func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	actor, _ := currentUser(r.Context())
	users, err := h.cfg.Users.ListUsers(r.Context(), actor)
	if err != nil {
		writeErr(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *Handler) handleUpdateRole(w http.ResponseWriter, r *http.Request) {
	var req updateRoleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeErr(w, r, h.logger, err)
		return
	}
	actor, _ := currentUser(r.Context())
	user, err := h.cfg.Users.UpdateRole(r.Context(), actor, req.Email, req.Role)
	if err != nil {
		writeErr(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *Handler) handleDisableUser(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeErr(w, r, h.logger, err)
		return
	}
	actor, _ := currentUser(r.Context())
	user, err := h.cfg.Users.ToggleDisabled(r.Context(), actor, req.Email)
	if err != nil {
		writeErr(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *Handler) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeErr(w, r, h.logger, err)
		return
	}
	if err := h.cfg.Users.RequestPasswordReset(r.Context(), req.Email); err != nil {
		writeErr(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusAccepted, messageResponse{Message: "if the account exists a reset link has been sent"})
}

func (h *Handler) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeErr(w, r, h.logger, err)
		return
	}
	token := firstNonEmpty(req.Token, r.URL.Query().Get("token"))
	if token == "" {
		writeErr(w, r, h.logger, core.Unauthorizedf("reset token required"))
		return
	}
	if err := h.cfg.Users.ResetPassword(r.Context(), token, req.Password); err != nil {
		writeErr(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "password updated"})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
