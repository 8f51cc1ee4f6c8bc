// Package audit screens user-supplied free text for injection patterns and
// emits the resulting security events as structured JSON for SIEM ingestion.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zelta-inc/zelta-engine/pkg/auth"
)

// SecurityEventType categorizes security events for filtering and alerting.
type SecurityEventType string

const (
	// EventInjectionAttempt is logged when libinjection flags SQL injection
	// or XSS patterns in a screened field, such as a problem domain or a
	// custom problem statement.
	EventInjectionAttempt SecurityEventType = "injection_attempt"
)

// SecurityEvent is the JSON envelope a SIEM consumes. OwnerID comes from the
// request's JWT claims and may be empty on unauthenticated paths.
type SecurityEvent struct {
	Timestamp time.Time         `json:"timestamp"`
	EventType SecurityEventType `json:"event_type"`
	ProjectID uuid.UUID         `json:"project_id,omitempty"`
	OwnerID   string            `json:"owner_id,omitempty"`
	Details   any               `json:"details"`
	Severity  string            `json:"severity"` // info, warning, critical
}

// InjectionDetails carries the specifics of a rejected value.
type InjectionDetails struct {
	Field       string `json:"field"`
	Excerpt     string `json:"excerpt"`
	Kind        string `json:"kind"`        // sql_injection or xss
	Fingerprint string `json:"fingerprint"` // libinjection fingerprint, empty for XSS
}

// SecurityAuditor writes security events under a dedicated logger namespace
// so SIEM pipelines can route on logger name alone.
type SecurityAuditor struct {
	logger *zap.Logger
}

// NewSecurityAuditor creates an auditor logging under "security_audit".
func NewSecurityAuditor(logger *zap.Logger) *SecurityAuditor {
	return &SecurityAuditor{logger: logger.Named("security_audit")}
}

// LogInjectionAttempt records a screener hit at ERROR level with critical
// severity. The full event is serialized into a single field alongside the
// flattened keys SIEM rules typically match on.
func (a *SecurityAuditor) LogInjectionAttempt(
	ctx context.Context,
	projectID uuid.UUID,
	details InjectionDetails,
) {
	ownerID := auth.OwnerIDFromContext(ctx)

	event := SecurityEvent{
		Timestamp: time.Now().UTC(),
		EventType: EventInjectionAttempt,
		ProjectID: projectID,
		OwnerID:   ownerID,
		Details:   details,
		Severity:  "critical",
	}

	// Marshaling a struct of known types cannot fail.
	eventJSON, _ := json.Marshal(event)

	a.logger.Error("Injection attempt detected",
		zap.String("event_json", string(eventJSON)),
		zap.String("project_id", projectID.String()),
		zap.String("field", details.Field),
		zap.String("kind", details.Kind),
		zap.String("fingerprint", details.Fingerprint),
		zap.String("owner_id", ownerID),
		zap.String("severity", "critical"),
	)
}
