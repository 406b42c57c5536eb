// Package api provides HTTP handlers for the REST API endpoints.
package api

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	// Field names the offending element of a rejected script
	Field string `json:"field,omitempty"`
}

// DeleteResponse represents a successful delete operation
type DeleteResponse struct {
	Message string `json:"message"`
}
