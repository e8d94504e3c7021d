package comm

import (
	"encoding/json"
	"time"
)

// WSMessage is the envelope shared between monitorsvc and its dashboard
// sockets, and reused for NATS payload framing.
type WSMessage struct {
	Type     string          `json:"type"` // e.g. "watch", "card-event"
	Data     json.RawMessage `json:"data"`
	SocketId string          `json:"socketid"`
}

// CardEvent types published on the card.events subject.
const (
	EventOperationCreated   = "operation-created"
	EventOperationCancelled = "operation-cancelled"
	EventOperationRestarted = "operation-restarted"
	EventTap                = "tap"
)

// CardEvent is the masked, dashboard-safe record of something happening to a
// branch's card slot. Full UIDs never travel through here.
type CardEvent struct {
	Type       string    `json:"type"`
	TenantId   int64     `json:"tenant_id"`
	BranchId   int64     `json:"branch_id"`
	MemberId   int64     `json:"member_id,omitempty"`
	TerminalId int64     `json:"terminal_id,omitempty"`
	Purpose    string    `json:"purpose,omitempty"`
	Resolution string    `json:"resolution,omitempty"`
	UidMasked  string    `json:"uid_masked,omitempty"`
	At         time.Time `json:"at"`
}

// WatchRequest is a dashboard socket asking to follow one branch.
type WatchRequest struct {
	BranchId int64 `json:"branch_id"`
}
