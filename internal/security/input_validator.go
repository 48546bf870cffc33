package security

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/cortexvms/vms-core/internal/logging"
)

// InputValidator provides request-parameter validation and sanitization for
// the Control Surface's REST handlers: camera id format, pagination bounds,
// and filename safety for the file-serving routes (HLS segments,
// recordings, snapshots).
type InputValidator struct {
	logger *logging.Logger
}

// NewInputValidator builds an InputValidator.
func NewInputValidator(logger *logging.Logger) *InputValidator {
	return &InputValidator{logger: logger}
}

// ValidationError is one field-level validation failure.
type ValidationError struct {
	Field   string
	Message string
	Value   string
}

func (ve *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field %q: %s (value: %q)", ve.Field, ve.Message, ve.Value)
}

// ValidateCameraID reports whether id is a well-formed camera identifier.
// Camera ids are UUIDs (see internal/store/sqlstore, google/uuid).
func (iv *InputValidator) ValidateCameraID(id string) error {
	if id == "" {
		return &ValidationError{Field: "camera_id", Message: "cannot be empty"}
	}
	if _, err := uuid.Parse(id); err != nil {
		return &ValidationError{Field: "camera_id", Message: "not a valid id", Value: id}
	}
	return nil
}

// ValidateLimit parses and bounds a pagination limit query parameter.
// An empty string yields the default with no error.
func (iv *InputValidator) ValidateLimit(raw string, def, max int) (int, error) {
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 || v > max {
		return 0, &ValidationError{Field: "limit", Message: fmt.Sprintf("must be an integer between 1 and %d", max), Value: raw}
	}
	return v, nil
}

// ValidateOffset parses and bounds a pagination offset query parameter.
func (iv *InputValidator) ValidateOffset(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, &ValidationError{Field: "offset", Message: "must be a non-negative integer", Value: raw}
	}
	return v, nil
}

// SanitizeString strips control characters (other than tab/LF/CR) and
// trims surrounding whitespace.
func (iv *InputValidator) SanitizeString(input string) string {
	sanitized := strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, input)
	return strings.TrimSpace(sanitized)
}

// ValidateFilename rejects path-traversal attempts and shell/filesystem
// metacharacters before a filename reaches a file-serving handler, since
// recordings/snapshots/HLS segments are served directly off disk by name
// (see internal/control's file routes).
func (iv *InputValidator) ValidateFilename(filename string) error {
	if filename == "" {
		return &ValidationError{Field: "filename", Message: "cannot be empty"}
	}
	if len(filename) > 255 {
		return &ValidationError{Field: "filename", Message: "too long (max 255 characters)", Value: filename}
	}
	clean := iv.SanitizeString(filename)
	if clean != filename {
		return &ValidationError{Field: "filename", Message: "contains control characters", Value: filename}
	}
	if strings.Contains(filename, "..") || strings.ContainsAny(filename, "/\\") {
		return &ValidationError{Field: "filename", Message: "contains a path traversal attempt", Value: filename}
	}
	const dangerous = `<>:"|?*`
	if strings.ContainsAny(filename, dangerous) {
		return &ValidationError{Field: "filename", Message: "contains an invalid character", Value: filename}
	}
	return nil
}
