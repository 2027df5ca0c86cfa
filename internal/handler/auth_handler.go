package handler

import (
	"errors"
	"net/http"

	"blog-client/internal/domain"
	"blog-client/internal/middleware"
	"blog-client/internal/service"
)

// AuthHandler handles token, registration, profile and password reset endpoints
type AuthHandler struct {
	authService *service.AuthService
	media       *MediaStore
}

// NewAuthHandler creates a new authentication handler
func NewAuthHandler(authService *service.AuthService, media *MediaStore) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		media:       media,
	}
}

// RegisterRequest represents registration request
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterResponse represents registration response
type RegisterResponse struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

// TokenRequest represents the credentials posted to the token endpoint
type TokenRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

type resetRequest struct {
	Email string `json:"email"`
}

type resetConfirmRequest struct {
	Token           string `json:"token"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
}

// Register handles user registration
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	account, err := h.authService.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, RegisterResponse{
		Username: account.Username,
		Email:    account.Email,
	})
}

// ObtainToken exchanges credentials for an access/refresh pair
func (h *AuthHandler) ObtainToken(w http.ResponseWriter, r *http.Request) {
	var req TokenRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	pair, err := h.authService.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

// RefreshToken issues a new access token
func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	access, err := h.authService.Refresh(r.Context(), req.Refresh)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"access": access})
}

// Profile returns the authenticated user
func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	username, _ := middleware.GetUsername(r.Context())

	account, err := h.authService.Account(r.Context(), username)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, account.UserProfile())
}

// UpdateProfile applies a multipart profile update. Fields absent from the
// form are left unchanged.
func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	if !parseMultipart(w, r) {
		return
	}
	username, _ := middleware.GetUsername(r.Context())

	var u service.ProfileUpdate
	u.Email, _ = formValue(r, "email")
	u.FirstName, _ = formValue(r, "first_name")
	u.LastName, _ = formValue(r, "last_name")
	u.Bio, _ = formValue(r, "bio")

	picture, ok, err := h.media.SaveUpload(r, "profile_picture", "profile_pictures")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if ok {
		u.ProfilePicture = &picture
	}

	account, err := h.authService.UpdateProfile(r.Context(), username, u)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, account.UserProfile())
}

// RequestPasswordReset issues a reset token for the given email
func (h *AuthHandler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if _, err := h.authService.RequestPasswordReset(r.Context(), req.Email); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Password reset link sent to your email."})
}

// ConfirmPasswordReset sets a new password from a reset token
func (h *AuthHandler) ConfirmPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req resetConfirmRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	err := h.authService.ConfirmPasswordReset(r.Context(), req.Token, req.Password, req.PasswordConfirm)
	switch {
	case errors.Is(err, domain.ErrInvalidToken):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid or expired token"})
	case errors.Is(err, domain.ErrPasswordMismatch):
		writeJSON(w, http.StatusBadRequest, service.Fields("password_confirm", "Passwords do not match"))
	case err != nil:
		writeError(w, r, err)
	default:
		writeJSON(w, http.StatusOK, map[string]string{"message": "Password has been reset successfully."})
	}
}
