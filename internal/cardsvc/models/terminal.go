package models

import "time"

// Terminal is an authenticated kiosk endpoint bound to one branch. The secret
// is stored only as a salted hash; plaintext is handed out exactly once at
// registration or rotation.
type Terminal struct {
	ID         int64      `json:"id"`
	TenantId   int64      `json:"tenant_id"`
	BranchId   int64      `json:"branch_id"`
	Name       string     `json:"name"`
	SecretHash string     `json:"-"`
	SecretSalt string     `json:"-"`
	IsActive   bool       `json:"is_active"`
	LastSeenAt *time.Time `json:"last_seen_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}
