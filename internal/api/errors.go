package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrTransport matches every failure that is not a structured conflict:
// unreachable server, non-success status, undecodable body.
var ErrTransport = errors.New("transport failure")

// Conflict codes carried by 409 responses.
const (
	CodeDuplicateContent = "DUPLICATE_CONTENT"
	CodeDuplicateGroup   = "DUPLICATE_GROUP"
	CodeDuplicateName    = "DUPLICATE_NAME"
	CodeDuplicateVersion = "DUPLICATE_VERSION"
)

// TransportError wraps a network-level failure.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// StatusError is a non-success, non-conflict response.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("server returned %d", e.StatusCode)
}

func (e *StatusError) Is(target error) bool { return target == ErrTransport }

// ConflictError is a 409 response with a machine-readable code.
type ConflictError struct {
	Code              string `json:"code"`
	Message           string `json:"message"`
	DuplicateFileID   FlexID `json:"duplicateFileId"`
	DuplicateFileName string `json:"duplicateFileName"`
	DuplicateVersion  string `json:"duplicateVersion"`
	DuplicateGroupID  FlexID `json:"duplicateGroupId"`
}

func (e *ConflictError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("conflict %s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("conflict %s", e.Code)
}

// FlexID decodes an identifier sent either as a JSON number or a string.
// Zero means absent.
type FlexID int64

func (id *FlexID) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*id = 0
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid id %s: %w", data, err)
	}
	*id = FlexID(n)
	return nil
}

func (id FlexID) MarshalJSON() ([]byte, error) {
	if id == 0 {
		return []byte("null"), nil
	}
	return json.Marshal(int64(id))
}
