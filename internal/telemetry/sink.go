package telemetry

import (
	"context"

	"tenant-platform/backend/internal/telemetry/domain"
)

// AuditWriter is the subset of the audit logger the sink needs.
type AuditWriter interface {
	LogEvent(ctx context.Context, orgID, principalID, action, resource, metadata string)
}

// SecuritySink receives session-security callbacks and turns them into
// emitted events plus audit rows. Satisfies session.EventSink.
type SecuritySink struct {
	emitter EventEmitter
	audit   AuditWriter
}

// NewSecuritySink returns a SecuritySink. emitter and audit may each be nil.
func NewSecuritySink(emitter EventEmitter, audit AuditWriter) *SecuritySink {
	return &SecuritySink{emitter: emitter, audit: audit}
}

// TokenRotated records a successful refresh rotation. Emitted only, not
// audited; rotations are routine.
func (s *SecuritySink) TokenRotated(ctx context.Context, principalID string) {
	EmitAsync(s.emitter, ctx, domain.NewEvent(domain.EventTokenRotated, principalID, ""))
}

// TokenReuseDetected records a refresh token replay. The whole session family
// has already been invalidated by the caller; this is observability only.
func (s *SecuritySink) TokenReuseDetected(ctx context.Context, principalID string) {
	EmitAsync(s.emitter, ctx, domain.NewEvent(domain.EventTokenReuse, principalID, ""))
	if s.audit != nil {
		s.audit.LogEvent(ctx, "", principalID, "token_reuse_detected", "session", "")
	}
}
