package rxerrors

import (
	"errors"
	"fmt"
	"strings"
)

// Configuration (C) Errors, rejected before a VM instance exists.
var (
	ErrCConfigWordCount = errors.New("C1|ConfigWordCount: Program configuration must hold exactly 16 words.")
	ErrCSeedTooLong     = errors.New("C2|SeedTooLong: Generator seed must not exceed 60 bytes.")
	ErrCProgramSize     = errors.New("C3|ProgramSize: Program buffer must hold 128 entropy bytes and 256 instructions.")
	ErrCEmptyKey        = errors.New("C4|EmptyKey: Cache key must not be empty.")
	ErrCWorkerCount     = errors.New("C5|WorkerCount: Dataset build needs at least one worker.")
)

// Resource (R) Errors
var (
	ErrRCacheAlloc    = errors.New("R1|CacheAlloc: Could not allocate cache memory.")
	ErrRDatasetAlloc  = errors.New("R2|DatasetAlloc: Could not allocate dataset memory.")
	ErrRCacheMismatch = errors.New("R3|CacheMismatch: Stored cache does not match the requested size.")
	ErrRClosed        = errors.New("R4|Closed: Resource already released.")
)

// Hash (H) Errors
var (
	ErrHMismatch = errors.New("H1|Mismatch: Computed hash differs from the expected value.")
)

// InvariantError reports a programming defect inside the execution core.
// It is raised with panic and never returned.
type InvariantError struct {
	Op     string
	Detail string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("I0|InvariantViolation: %s: %s", e.Op, e.Detail)
}

// Invariant panics with an InvariantError.
func Invariant(op string, format string, args ...interface{}) {
	panic(&InvariantError{Op: op, Detail: fmt.Sprintf(format, args...)})
}

// root returns the innermost error carrying a "Code|Name: desc" message.
func root(err error) error {
	for err != nil {
		if strings.Contains(err.Error(), "|") && !strings.Contains(strings.SplitN(err.Error(), "|", 2)[0], " ") {
			return err
		}
		next := errors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
	return err
}

// GetErrorName extracts the error name from the error message.
func GetErrorName(err error) string {
	if err == nil {
		return "No Error"
	}
	errStr := root(err).Error()
	if !strings.Contains(errStr, "|") || !strings.Contains(errStr, ":") {
		return errStr
	}
	parts := strings.SplitN(errStr, "|", 2)
	nameParts := strings.SplitN(parts[1], ":", 2)
	return strings.TrimSpace(nameParts[0])
}

// GetErrorCode extracts the error code from the error message.
func GetErrorCode(err error) string {
	if err == nil {
		return ""
	}
	errStr := root(err).Error()
	if !strings.Contains(errStr, "|") {
		return ""
	}
	parts := strings.SplitN(errStr, "|", 2)
	return strings.TrimSpace(parts[0])
}

// GetErrorCodeWithName returns the error code and name in the format "Code_ErrorName".
func GetErrorCodeWithName(err error) string {
	code := GetErrorCode(err)
	name := GetErrorName(err)
	if code == "" || name == "" {
		return ""
	}
	return code + "_" + name
}
