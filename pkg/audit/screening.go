package audit

import (
	"context"
	"fmt"

	libinjection "github.com/corazawaf/libinjection-go"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zelta-inc/zelta-engine/pkg/apperrors"
)

// excerptLimit caps how much of a rejected value is carried into logs.
const excerptLimit = 120

// ScreenResult describes an injection pattern found in user-supplied text.
type ScreenResult struct {
	Field       string // which input field was checked
	Excerpt     string // leading slice of the offending value
	Kind        string // sql_injection or xss
	Fingerprint string // libinjection fingerprint (empty for XSS)
}

// CheckFreeText runs libinjection's SQLi and XSS detectors over a
// user-supplied free-text value. Returns nil when the value is clean.
func CheckFreeText(field, value string) *ScreenResult {
	if isSQLi, fingerprint := libinjection.IsSQLi(value); isSQLi {
		return &ScreenResult{
			Field:       field,
			Excerpt:     excerpt(value),
			Kind:        "sql_injection",
			Fingerprint: string(fingerprint),
		}
	}

	if libinjection.IsXSS(value) {
		return &ScreenResult{
			Field:   field,
			Excerpt: excerpt(value),
			Kind:    "xss",
		}
	}

	return nil
}

func excerpt(value string) string {
	if len(value) > excerptLimit {
		return value[:excerptLimit]
	}
	return value
}

// Screener validates user-supplied free text before it reaches prompts or
// storage. Hits are logged as security events and rejected as validation
// errors.
type Screener struct {
	auditor *SecurityAuditor
}

// NewScreener creates a screener backed by a security auditor.
func NewScreener(logger *zap.Logger) *Screener {
	return &Screener{auditor: NewSecurityAuditor(logger)}
}

// ScreenField checks one named free-text field. On a hit it logs a security
// event and returns a validation error naming the field; clean values
// return nil.
func (s *Screener) ScreenField(ctx context.Context, projectID uuid.UUID, field, value string) error {
	result := CheckFreeText(field, value)
	if result == nil {
		return nil
	}

	s.auditor.LogInjectionAttempt(ctx, projectID, InjectionDetails{
		Field:       result.Field,
		Excerpt:     result.Excerpt,
		Kind:        result.Kind,
		Fingerprint: result.Fingerprint,
	})

	return fmt.Errorf("%s contains disallowed content: %w", field, apperrors.ErrValidation)
}
