// Package audit appends immutable security events. Writes are best-effort:
// a logging outage must never block the primary authentication or data
// flow, so Record swallows repository errors after logging them.
package audit

import (
	"context"
	"log/slog"
	"sync"

	"github.com/datavault/datavault/model"
)

var auditRepo AuditEventRepository
var initOnce sync.Once

func Initialize(repo AuditEventRepository) {
	initOnce.Do(func() {
		auditRepo = repo
	})
}

type Record struct {
	UserID    uint
	Email     string
	Action    string
	Method    string
	Success   bool
	IP        string
	UserAgent string
	Details   string
}

// Log appends one event. Fire-and-forget by contract.
func Log(ctx context.Context, record Record) {
	if auditRepo == nil {
		return
	}
	event := &model.AuditEvent{
		UserID:    record.UserID,
		Email:     record.Email,
		Action:    record.Action,
		Method:    record.Method,
		Success:   record.Success,
		IP:        record.IP,
		UserAgent: record.UserAgent,
		Details:   record.Details,
	}
	if err := auditRepo.RecordEvent(ctx, event); err != nil {
		slog.Warn("Failed to record audit event", "action", record.Action, "user", record.UserID, "error", err)
	}
}

func LogLogin(ctx context.Context, record Record) {
	record.Action = model.AuditActionLogin
	Log(ctx, record)
}

func LogLogout(ctx context.Context, record Record) {
	record.Action = model.AuditActionLogout
	Log(ctx, record)
}

func LogBiometricAuth(ctx context.Context, record Record) {
	record.Action = model.AuditActionBiometricAuth
	record.Method = model.AuditMethodBiometric
	Log(ctx, record)
}

// Query lists recorded events for the security-logs view.
func Query(ctx context.Context, filter Filter) ([]*model.AuditEvent, error) {
	if auditRepo == nil {
		return nil, nil
	}
	return auditRepo.FindEvents(ctx, filter)
}
