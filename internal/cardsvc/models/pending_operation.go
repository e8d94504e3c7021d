package models

import (
	"strings"
	"time"
)

// Operation purposes.
const (
	PurposeOnboard = "ONBOARD"
	PurposeReplace = "REPLACE"
	PurposeReclaim = "RECLAIM"
)

// Tap resolutions. Ignored is a valid outcome, not an error: a tap with no
// pending operation behind it must never jam the kiosk.
const (
	TapMatched  = "matched"
	TapRejected = "rejected"
	TapIgnored  = "ignored"
)

// OperationWindow is how long a pending operation is considered fresh. The
// deadline is advisory: an expired operation still occupies the branch slot
// until an admin cancels or restarts it.
const OperationWindow = 10 * time.Minute

// Mismatch records the most recent tap that did not satisfy the pending
// operation's matching rule. UIDs are stored masked so the record is safe to
// surface in logs and dashboards.
type Mismatch struct {
	TappedUidMasked   string    `json:"tapped_uid_masked"`
	ExpectedUidMasked string    `json:"expected_uid_masked"`
	At                time.Time `json:"at"`
}

// PendingOperation is the exclusive, time-boxed coordination record. At most
// one exists per branch; the unique index on branch_id is what enforces it.
type PendingOperation struct {
	BranchId    int64     `json:"branch_id"`
	TenantId    int64     `json:"tenant_id"`
	MemberId    int64     `json:"member_id"`
	Purpose     string    `json:"purpose"`
	ExpectedUid string    `json:"-"` // full UID, kiosk path only
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
	Mismatch    *Mismatch `json:"mismatch,omitempty"`
}

// IsExpired is a read-time fact, never an event. Nothing in the system frees
// the slot on expiry.
func (op *PendingOperation) IsExpired(now time.Time) bool {
	return now.After(op.ExpiresAt)
}

// MaskUID redacts the middle of a card UID for non-kiosk consumers. Short
// UIDs are fully redacted rather than leak most of their characters.
func MaskUID(uid string) string {
	if uid == "" {
		return ""
	}
	if len(uid) <= 4 {
		return strings.Repeat("*", len(uid))
	}
	return uid[:2] + strings.Repeat("*", len(uid)-4) + uid[len(uid)-2:]
}
