// Package rapiderr defines the error taxonomy of the rAPId SDK.
//
// Every failure reported by the remote API is an *APIError whose Kind is one
// of the sentinel errors below. Use errors.Is to branch on the kind and
// errors.As to reach the status code and decoded server payload.
package rapiderr

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrCannotFindCredential is returned when a credential is neither passed
	// explicitly nor present in the environment.
	ErrCannotFindCredential = errors.New("cannot find credential")

	// ErrAuthentication is returned when the token endpoint rejects the credentials.
	ErrAuthentication = errors.New("authentication failed")

	ErrListDatasetsFailed        = errors.New("list datasets failed")
	ErrUnableToFetchJobStatus    = errors.New("unable to fetch job status")
	ErrJobFailed                 = errors.New("job failed")
	ErrDataFrameUploadValidation = errors.New("dataframe upload validation failed")
	ErrDataFrameUploadFailed     = errors.New("dataframe upload failed")
	ErrSchemaGenerationFailed    = errors.New("schema generation failed")
	ErrDatasetInfoFailed         = errors.New("dataset info failed")
	ErrSchemaCreateFailed        = errors.New("schema create failed")
	ErrSchemaUpdateFailed        = errors.New("schema update failed")
	ErrQueryFailed               = errors.New("query failed")

	// ErrSchemaInitialisation is returned when column input is neither all typed
	// columns nor all raw mappings, or a raw mapping is malformed.
	ErrSchemaInitialisation = errors.New("schema initialisation failed")

	// ErrInvalidMetadata is returned when schema metadata is incomplete.
	ErrInvalidMetadata = errors.New("invalid schema metadata")
)

// APIError is a failed call to the rAPId API.
type APIError struct {
	Kind       error
	Message    string
	StatusCode int
	Body       string
	// Data is the decoded JSON payload returned by the server, if any.
	Data any
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" && e.Kind != nil {
		msg = e.Kind.Error()
	}

	if e.Data != nil {
		return fmt.Sprintf("%s (status %d): %v", msg, e.StatusCode, e.Data)
	}

	if e.Body != "" {
		return fmt.Sprintf("%s (status %d): %s", msg, e.StatusCode, e.Body)
	}

	return fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
}

func (e *APIError) Unwrap() error {
	return e.Kind
}

// IsConflict reports whether the server answered 409 Conflict.
func (e *APIError) IsConflict() bool {
	return e.StatusCode == http.StatusConflict
}

// New builds an *APIError of the given kind.
func New(kind error, message string, statusCode int, body []byte, data any) *APIError {
	return &APIError{
		Kind:       kind,
		Message:    message,
		StatusCode: statusCode,
		Body:       string(body),
		Data:       data,
	}
}

// CannotFindCredentialError names the environment variable that was consulted.
type CannotFindCredentialError struct {
	EnvVar string
}

func (e *CannotFindCredentialError) Error() string {
	return fmt.Sprintf("no value passed for %s, could not authenticate to rAPId", e.EnvVar)
}

func (e *CannotFindCredentialError) Unwrap() error {
	return ErrCannotFindCredential
}

// AuthenticationError wraps the underlying token exchange failure.
type AuthenticationError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *AuthenticationError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("auth not configured, could not connect to instance of rAPId at %s (status %d)", e.URL, e.StatusCode)
	}

	return fmt.Sprintf("auth not configured, could not connect to instance of rAPId at %s: %v", e.URL, e.Err)
}

// Is matches ErrAuthentication as well as the wrapped cause.
func (e *AuthenticationError) Is(target error) bool {
	return target == ErrAuthentication
}

func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

// Payload returns the decoded server payload carried by err, if any.
func Payload(err error) any {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Data
	}

	return nil
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}

	return 0
}
