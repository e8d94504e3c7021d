package models

import "time"

// Member is the read-only view of a member this service needs for card
// operations. Membership CRUD lives elsewhere.
type Member struct {
	MemberId  int64     `json:"member_id"`
	TenantId  int64     `json:"tenant_id"`
	BranchId  int64     `json:"branch_id"`
	Name      string    `json:"name"`
	Status    string    `json:"status,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
