package service

import (
	"context"
	"log"
)

// Audit actions recorded by the delivery engine
const (
	AuditActionCreated         = "CREATED"
	AuditActionUpdated         = "UPDATED"
	AuditActionSent            = "SENT"
	AuditActionFailed          = "FAILED"
	AuditActionDeleted         = "DELETED"
	AuditActionBlockedByPolicy = "BLOCKED_BY_POLICY"
)

// AuditDiff is the change description attached to an audit event:
// {after} for creation, {changes: {field: {before, after}}} for
// updates, {before} for deletion.
type AuditDiff struct {
	Before  map[string]interface{} `json:"before,omitempty"`
	After   map[string]interface{} `json:"after,omitempty"`
	Changes map[string]AuditChange `json:"changes,omitempty"`
}

// AuditChange is one changed field inside an update diff
type AuditChange struct {
	Before interface{} `json:"before"`
	After  interface{} `json:"after"`
}

// AuditSink receives audit events from the delivery engine. The real
// audit-event store lives outside this engine; callers wire their own
// implementation.
type AuditSink interface {
	Record(ctx context.Context, orgID, entityType string, entityID int, action string, diff *AuditDiff)
}

// LogAuditSink is the default sink, writing events to the process log
type LogAuditSink struct{}

// Record logs the audit event
func (s *LogAuditSink) Record(ctx context.Context, orgID, entityType string, entityID int, action string, diff *AuditDiff) {
	log.Printf("AUDIT org=%s %s/%d action=%s", orgID, entityType, entityID, action)
}
