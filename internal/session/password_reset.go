package session

import (
	"context"
	"log/slog"
	"net/http"

	"blog-client/internal/api"
	"blog-client/internal/domain"
	"blog-client/internal/observability"
)

type messageResponse struct {
	Message string `json:"message"`
}

// RequestPasswordReset asks the API to email a reset link. No session is
// required.
func (m *Manager) RequestPasswordReset(ctx context.Context, email string) domain.Result[struct{}] {
	var resp messageResponse
	_, err := m.client.Send(ctx, &api.Request{
		Method: http.MethodPost,
		Path:   "/password-reset-request/",
		JSON:   map[string]string{"email": email},
		Public: true,
	}, &resp)
	if err != nil {
		msg := api.FieldMessage(err, "email", "error")
		if msg == "" {
			msg = "Failed to send reset email. Please try again."
		}
		observability.FromContext(ctx).Warn("password reset request failed", slog.String("error", err.Error()))
		return domain.Fail[struct{}](msg)
	}

	return domain.Result[struct{}]{Success: true, Message: resp.Message}
}

// ConfirmPasswordReset sets a new password using the emailed token. A
// confirmation mismatch is rejected locally.
func (m *Manager) ConfirmPasswordReset(ctx context.Context, token, password, confirm string) domain.Result[struct{}] {
	if password != confirm {
		return domain.Fail[struct{}]("Passwords do not match")
	}

	var resp messageResponse
	_, err := m.client.Send(ctx, &api.Request{
		Method: http.MethodPost,
		Path:   "/password-reset-confirm/",
		JSON: map[string]string{
			"token":            token,
			"password":         password,
			"password_confirm": confirm,
		},
		Public: true,
	}, &resp)
	if err != nil {
		msg := api.FieldMessage(err, "error", "password", "password_confirm")
		if msg == "" {
			msg = "Failed to reset password. Please try again."
		}
		return domain.Fail[struct{}](msg)
	}

	return domain.Result[struct{}]{Success: true, Message: resp.Message}
}
