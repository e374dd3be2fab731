package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Common errors returned by the client.
var (
	// ErrMalformedResponse is returned when a successful response body is not a JSON array.
	ErrMalformedResponse = errors.New("malformed response")

	// ErrRequest is returned when the request could not be built or sent.
	ErrRequest = errors.New("request failed")
)

// APIError is a non-2xx answer from the posts endpoint.
type APIError struct {
	StatusCode int
	ErrorClass ErrorClass
	// Code is the machine readable code, e.g. "rest_post_invalid_page_number".
	Code    string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("WP %s error (status %d): %s: %v",
			e.ErrorClass, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("WP %s error (status %d): %s",
		e.ErrorClass, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// errorBody is the REST error envelope.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Data    struct {
		Status int `json:"status"`
	} `json:"data"`
}

// newAPIError builds an APIError from a failed response body. A body that is
// not an error envelope keeps the HTTP status text as message.
func newAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{
		StatusCode: status,
		ErrorClass: classifyStatus(status),
		Message:    http.StatusText(status),
	}

	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		apiErr.Err = fmt.Errorf("%w: error body: %v", ErrMalformedResponse, err)
		return apiErr
	}
	if msg := strings.TrimSpace(eb.Message); msg != "" {
		apiErr.Message = msg
	}
	apiErr.Code = eb.Code
	return apiErr
}

// classifyStatus maps an HTTP status to an error class.
func classifyStatus(status int) ErrorClass {
	switch {
	case status >= 400 && status < 500:
		return ErrorClassClient
	case status >= 500:
		return ErrorClassServer
	default:
		// 1xx and 3xx answers are outside the success band too.
		return ErrorClassUnexpected
	}
}
