package egress

import (
	"context"

	"github.com/stagegate/stagegate/pkg/logger"
	"github.com/stagegate/stagegate/pkg/types"
)

// AuditEvent describes one caller-facing action for the audit trail.
type AuditEvent struct {
	Action  string
	Subject string
	Outcome string
	Detail  string
}

// Auditor records audit events. Recording is fire-and-forget: it never
// blocks and its failures never propagate to the operation.
type Auditor interface {
	RecordAsync(ctx context.Context, rc *types.RequestContext, ev AuditEvent)
}

// LogAuditor writes audit events to the structured log.
type LogAuditor struct{}

func (LogAuditor) RecordAsync(ctx context.Context, rc *types.RequestContext, ev AuditEvent) {
	e := logger.Ctx(ctx).Info().
		Str("audit_action", ev.Action).
		Str("audit_subject", ev.Subject).
		Str("audit_outcome", ev.Outcome)
	if rc != nil {
		e = e.Str("actor", rc.Principal.UID).Str("request_id", rc.RequestID)
	}
	if ev.Detail != "" {
		e = e.Str("detail", ev.Detail)
	}
	e.Msg("audit")
}
