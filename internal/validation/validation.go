// Package validation provides input validation middleware for the Vaultbreak API.
package validation

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
)

// MaxRequestSize is the maximum request body size (1MB)
const MaxRequestSize = 1 << 20 // 1MB

// MaxStringLength is the maximum length for string fields
const MaxStringLength = 10000

// playerIDRegex validates player identifiers: 1-64 word characters, dots,
// or hyphens. Covers UUIDs and external account IDs.
var playerIDRegex = regexp.MustCompile(`^[A-Za-z0-9._-]{1,64}$`)

// RequestSizeMiddleware limits request body size
func RequestSizeMiddleware(maxSize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)
		c.Next()
	}
}

// IsValidPlayerID checks if a string is a well-formed player identifier
func IsValidPlayerID(id string) bool {
	return playerIDRegex.MatchString(id)
}

// SanitizeString removes dangerous characters and limits length
func SanitizeString(s string, maxLen int) string {
	// Trim whitespace
	s = strings.TrimSpace(s)

	// Limit length
	if len(s) > maxLen {
		s = s[:maxLen]
	}

	// Remove null bytes
	s = strings.ReplaceAll(s, "\x00", "")

	return s
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "validation failed"
	}
	return e[0].Field + ": " + e[0].Message
}

// Validate validates a request and returns errors
func Validate(validators ...func() *ValidationError) ValidationErrors {
	var errors ValidationErrors
	for _, v := range validators {
		if err := v(); err != nil {
			errors = append(errors, *err)
		}
	}
	return errors
}

// Required checks if a field is non-empty
func Required(field, value string) func() *ValidationError {
	return func() *ValidationError {
		if strings.TrimSpace(value) == "" {
			return &ValidationError{Field: field, Message: "is required"}
		}
		return nil
	}
}

// ValidPlayerID checks if a field is a well-formed player identifier
func ValidPlayerID(field, value string) func() *ValidationError {
	return func() *ValidationError {
		if value == "" {
			return nil // Use Required for required fields
		}
		if !IsValidPlayerID(value) {
			return &ValidationError{Field: field, Message: "must be 1-64 characters of [A-Za-z0-9._-]"}
		}
		return nil
	}
}

// MaxLength checks if a field exceeds max length
func MaxLength(field, value string, max int) func() *ValidationError {
	return func() *ValidationError {
		if len(value) > max {
			return &ValidationError{Field: field, Message: "exceeds maximum length"}
		}
		return nil
	}
}

// PlayerIDParamMiddleware validates the :id URL parameter on routes that use
// it. Apply to route groups that include :id params to reject malformed
// identifiers early.
func PlayerIDParamMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		if id != "" && !IsValidPlayerID(id) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_player_id",
				"message": "player id must be 1-64 characters of [A-Za-z0-9._-]",
			})
			return
		}
		c.Next()
	}
}
