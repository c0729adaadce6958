// Package types holds the wire envelopes shared by every API response.
package types

// SuccessEnvelope wraps every 2xx body under a data key.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError is the public error shape. Details is only populated for codes
// whose metadata allows it.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorEnvelope wraps every non-2xx body under an error key.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
