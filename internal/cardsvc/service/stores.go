package service

import (
	"context"
	"time"

	"github.com/tapgate/card-services/internal/cardsvc/models"
	"github.com/tapgate/card-services/internal/cardsvc/store"
	"github.com/tapgate/card-services/internal/comm"
)

// Store interfaces consumed by the services. The pg implementations live in
// the store package; tests substitute in-memory fakes.

type CardStore interface {
	GetByUID(ctx context.Context, tenantId, branchId int64, uid string) (*models.Card, error)
	GetAssignedToMember(ctx context.Context, branchId, memberId int64) (*models.Card, error)
	BulkInsert(ctx context.Context, tenantId, branchId int64, uids []string, batchId string) (int, error)
	List(ctx context.Context, tenantId, branchId int64, status, batchId string) ([]*models.Card, error)
	Disable(ctx context.Context, tenantId, branchId int64, uid string) error
}

type MemberStore interface {
	GetByID(ctx context.Context, memberId int64) (*models.Member, error)
}

type OperationStore interface {
	Create(ctx context.Context, op *models.PendingOperation) error
	Get(ctx context.Context, branchId int64) (*models.PendingOperation, error)
	Delete(ctx context.Context, branchId int64) error
	Restart(ctx context.Context, branchId, memberId int64, expiresAt time.Time) (*models.PendingOperation, error)
	RecordMismatch(ctx context.Context, branchId int64, m models.Mismatch) error
	CompleteOnboard(ctx context.Context, op *models.PendingOperation, uid string) error
	CompleteReplace(ctx context.Context, op *models.PendingOperation, newUid string) error
	CompleteReclaim(ctx context.Context, op *models.PendingOperation) error
}

type TerminalStore interface {
	Create(ctx context.Context, t *models.Terminal) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.Terminal, error)
	UpdateSecret(ctx context.Context, id int64, hash, salt string) error
	SetActive(ctx context.Context, id int64, active bool) error
	TouchLastSeen(ctx context.Context, id int64) error
	List(ctx context.Context, tenantId, branchId int64) ([]*models.Terminal, error)
}

type TapLog interface {
	Insert(ctx context.Context, entry store.TapLogEntry) error
}

type EventPublisher interface {
	PublishCardEvent(ev comm.CardEvent)
}
