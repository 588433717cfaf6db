package autherr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// ProblemDetails is an RFC 7807 body as returned by the identity server.
type ProblemDetails struct {
	Type     string              `json:"type,omitempty"`
	Title    string              `json:"title,omitempty"`
	Status   int                 `json:"status,omitempty"`
	Detail   string              `json:"detail,omitempty"`
	Instance string              `json:"instance,omitempty"`
	Code     string              `json:"code,omitempty"`
	Errors   map[string][]string `json:"errors,omitempty"`
}

// APIError is a non 2xx response from the identity server.
type APIError struct {
	StatusCode int
	Details    *ProblemDetails // nil when the body was not a problem document
	Body       []byte
}

// NewAPIError decodes body as problem details when possible.
func NewAPIError(statusCode int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: statusCode, Body: body}
	var details ProblemDetails
	if len(body) > 0 && json.Unmarshal(body, &details) == nil && (details.Title != "" || details.Detail != "" || len(details.Errors) > 0) {
		apiErr.Details = &details
	}
	return apiErr
}

func (e *APIError) Error() string {
	if e.Details != nil {
		msg := e.Details.Title
		if e.Details.Detail != "" {
			msg = e.Details.Detail
		}
		return fmt.Sprintf("api error %d: %s", e.StatusCode, msg)
	}
	return fmt.Sprintf("api error %d: %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// IsStatus reports whether err is an *APIError carrying statusCode.
func IsStatus(err error, statusCode int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == statusCode
}
