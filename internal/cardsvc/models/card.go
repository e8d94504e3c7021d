package models

import "time"

// Card statuses. DISABLED is terminal; a disabled card never returns to
// circulation.
const (
	CardAvailable = "AVAILABLE"
	CardAssigned  = "ASSIGNED"
	CardDisabled  = "DISABLED"
)

// Card represents one physical RFID card in the inventory table.
type Card struct {
	ID               int64     `json:"id"`
	UID              string    `json:"uid"`
	TenantId         int64     `json:"tenant_id"`
	BranchId         int64     `json:"branch_id"`
	Status           string    `json:"status"`
	BatchId          string    `json:"batch_id,omitempty"`
	AssignedMemberId *int64    `json:"assigned_member_id,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}
