package validator

import (
	"fmt"
	"regexp"
	"strings"

	"stayguard/internal/models"
)

var (
	hashRegex      = regexp.MustCompile(`^[a-fA-F0-9]{16,128}$`)
	visitorIDRegex = regexp.MustCompile(`^(fp|sv)_[a-f0-9]{16}$`)
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

type Validator struct {
	errors []ValidationError
}

func New() *Validator {
	return &Validator{
		errors: make([]ValidationError, 0),
	}
}

func (v *Validator) AddError(field, message string) {
	v.errors = append(v.errors, ValidationError{Field: field, Message: message})
}

func (v *Validator) IsValid() bool {
	return len(v.errors) == 0
}

func (v *Validator) ErrorMap() map[string]string {
	result := make(map[string]string)
	for _, err := range v.errors {
		result[err.Field] = err.Message
	}
	return result
}

func ValidateAssessRequest(req models.AssessRequest) error {
	v := New()

	if strings.TrimSpace(req.Booking.GuestEmail) == "" {
		v.AddError("guest_email", "required")
	} else if len(req.Booking.GuestEmail) > 320 {
		v.AddError("guest_email", "too long")
	}

	if len(req.Booking.GuestName) > 200 {
		v.AddError("guest_name", "too long")
	}

	if req.Booking.Amount < 0 {
		v.AddError("amount", "must not be negative")
	}

	if req.Booking.DurationDays < 0 {
		v.AddError("duration_days", "must not be negative")
	}

	validateIdentitySignals(v, req.Booking.VisitorID, req.Booking.FingerprintHash, req.Booking.FingerprintConfidence)

	if !v.IsValid() {
		return fmt.Errorf("validation failed: %v", v.ErrorMap())
	}
	return nil
}

func ValidateIdentifyRequest(req models.IdentifyRequest) error {
	v := New()

	validateIdentitySignals(v, req.VisitorID, req.FingerprintHash, req.FingerprintConfidence)

	if req.VisitorID == "" && req.FingerprintHash == "" && req.Meta.UserAgent == "" {
		v.AddError("request", "no identifying signal supplied")
	}

	if !v.IsValid() {
		return fmt.Errorf("validation failed: %v", v.ErrorMap())
	}
	return nil
}

func ValidateFingerprintRequest(req models.FingerprintRequest) error {
	v := New()

	if req.StoredID != "" && !visitorIDRegex.MatchString(req.StoredID) {
		v.AddError("stored_id", "invalid format")
	}

	if req.Components.Browser != nil && len(req.Components.Browser.UserAgent) > 1000 {
		v.AddError("user_agent", "too long")
	}

	if !v.IsValid() {
		return fmt.Errorf("validation failed: %v", v.ErrorMap())
	}
	return nil
}

func validateIdentitySignals(v *Validator, visitorID, hash string, confidence int) {
	if visitorID != "" && !visitorIDRegex.MatchString(visitorID) {
		v.AddError("visitor_id", "invalid format")
	}
	if hash != "" && !hashRegex.MatchString(hash) {
		v.AddError("fingerprint_hash", "invalid format")
	}
	if confidence < 0 || confidence > 100 {
		v.AddError("fingerprint_confidence", "out of range")
	}
}

func SanitizeString(s string) string {
	s = strings.ReplaceAll(s, "\x00", "")
	var result strings.Builder
	for _, r := range s {
		if r >= 32 || r == '\n' || r == '\t' {
			result.WriteRune(r)
		}
	}
	return result.String()
}
