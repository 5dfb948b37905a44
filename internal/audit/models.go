package audit

import (
	"time"

	"github.com/google/uuid"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so sinks can fan out.
type Event struct {
	ID        uuid.UUID         `json:"id"`
	Timestamp time.Time         `json:"timestamp"`
	Action    string            `json:"action"`
	Subject   string            `json:"subject"`
	Decision  string            `json:"decision,omitempty"`
	Reason    string            `json:"reason,omitempty"`
	ActorID   string            `json:"actor_id,omitempty"`
	ActorName string            `json:"actor_name,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
	ClientIP  string            `json:"client_ip,omitempty"`
	Device    string            `json:"device,omitempty"`
	Details   map[string]string `json:"details,omitempty"`
}

type AuditEvent string

const (
	// Vehicle registry events
	EventVehicleRegistered AuditEvent = "vehicle_registered"
	EventVehicleUpdated    AuditEvent = "vehicle_updated"
	EventVehicleDeleted    AuditEvent = "vehicle_deleted"

	// Inspection events
	EventInspectionRecorded AuditEvent = "inspection_recorded"
	EventInspectionCleared  AuditEvent = "inspection_cleared"

	// Configuration events
	EventThresholdsUpdated AuditEvent = "thresholds_updated"

	// User events
	EventUserCreated     AuditEvent = "user_created"
	EventUserRoleChanged AuditEvent = "user_role_changed"
	EventUserDeleted     AuditEvent = "user_deleted"
	EventLoginSucceeded  AuditEvent = "login_succeeded"
	EventLoginFailed     AuditEvent = "login_failed"
	EventLoginLocked     AuditEvent = "login_locked"
)

func (e AuditEvent) String() string {
	return string(e)
}
