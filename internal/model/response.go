package model

// ErrorResponse is the envelope for every error answered by the API.
type ErrorResponse struct {
	Error string `json:"error"`
}

// MessageResponse is the envelope for plain confirmations.
type MessageResponse struct {
	Message string `json:"message"`
}
