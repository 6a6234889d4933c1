// Package types defines common types used across the SDK.
package types

import "fmt"

// Sensitivity classifies a dataset. It appears in schema and upload endpoint paths.
type Sensitivity string

const (
	SensitivityPublic    Sensitivity = "PUBLIC"
	SensitivityPrivate   Sensitivity = "PRIVATE"
	SensitivityProtected Sensitivity = "PROTECTED"
)

// Valid reports whether s is one of the known sensitivity levels.
func (s Sensitivity) Valid() bool {
	switch s {
	case SensitivityPublic, SensitivityPrivate, SensitivityProtected:
		return true
	}

	return false
}

// ParseSensitivity converts a string into a Sensitivity.
func ParseSensitivity(s string) (Sensitivity, error) {
	v := Sensitivity(s)
	if !v.Valid() {
		return "", fmt.Errorf("unknown sensitivity %q: use PUBLIC, PRIVATE or PROTECTED", s)
	}

	return v, nil
}

// UpdateBehaviour controls how new uploads combine with existing data.
type UpdateBehaviour string

const (
	UpdateBehaviourAppend    UpdateBehaviour = "APPEND"
	UpdateBehaviourOverwrite UpdateBehaviour = "OVERWRITE"
)

// JobStatus is the state of a server-side job. Anything other than
// JobStatusSuccess and JobStatusFailed is non-terminal.
type JobStatus string

const (
	JobStatusSuccess JobStatus = "SUCCESS"
	JobStatusFailed  JobStatus = "FAILED"
)

// Terminal reports whether polling can stop.
func (s JobStatus) Terminal() bool {
	return s == JobStatusSuccess || s == JobStatusFailed
}

// Result is the non-failure outcome of a schema operation. Failures are
// reported through the error return.
type Result int

const (
	ResultSuccess Result = iota
	// ResultAlreadyExists means the server already holds a schema for the dataset.
	ResultAlreadyExists
	// ResultNoChange means the proposed columns match the server's, so nothing was sent.
	ResultNoChange
	// ResultFailed accompanies a non-nil error.
	ResultFailed
)

func (r Result) String() string {
	switch r {
	case ResultSuccess:
		return "success"
	case ResultAlreadyExists:
		return "already-exists"
	case ResultNoChange:
		return "no-change"
	case ResultFailed:
		return "failed"
	}

	return fmt.Sprintf("Result(%d)", int(r))
}
