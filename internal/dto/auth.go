package dto

// RefreshRequest captures POST /auth/refresh payload.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}
