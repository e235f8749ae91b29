package dto

// GenerateRequest captures POST /schedules/:id/generate payload. Timeout is
// in seconds; omitted applies the configured default, zero is honored
// literally.
type GenerateRequest struct {
	Timeout *int `json:"timeout" validate:"omitempty,min=0"`
}

// GenerateResponse reports one generation run. Success false covers the
// infeasible and timed-out outcomes; EntriesCount is null unless entries
// were written.
type GenerateResponse struct {
	Success      bool     `json:"success"`
	Message      string   `json:"message"`
	EntriesCount *int     `json:"entries_count"`
	Warnings     []string `json:"warnings,omitempty"`
}
