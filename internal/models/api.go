package models

// User is the caller as resolved by the server.
type User struct {
	Login       string `json:"login"`
	DisplayName string `json:"displayName"`
	Pro         bool   `json:"pro"`

	// DraftDebounceMs is the draft save window editors should use.
	DraftDebounceMs int64 `json:"draftDebounceMs,omitempty"`
}

// StartSessionRequest is the body of POST /api/v1/sessions.
type StartSessionRequest struct {
	TemplateID string `json:"templateId,omitempty"`
}

// ItemsPayload carries flat items: the finish-workout body and the
// session/template item responses.
type ItemsPayload struct {
	Items []FlatItem `json:"items"`
}

// FinishResponse is returned by POST /api/v1/sessions/{id}/finish.
type FinishResponse struct {
	Session SessionRow `json:"session"`
	Saved   int        `json:"saved"`
	Skipped int        `json:"skipped"`
}

// TemplateRequest is the body of template create and update.
type TemplateRequest struct {
	Name  string     `json:"name"`
	Items []FlatItem `json:"items"`
}
