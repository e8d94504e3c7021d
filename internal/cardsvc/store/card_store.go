package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/tapgate/card-services/internal/cardsvc/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type CardStore struct {
	db *pgxpool.Pool
}

func NewCardStore(db *pgxpool.Pool) *CardStore {
	return &CardStore{db: db}
}

func (s *CardStore) GetByUID(ctx context.Context, tenantId, branchId int64, uid string) (*models.Card, error) {
	query := `
		SELECT id, uid, tenant_id, branch_id, status, batch_id, assigned_member_id, created_at, updated_at
		FROM cards
		WHERE tenant_id = $1 AND branch_id = $2 AND uid = $3
		LIMIT 1
	`

	var card models.Card
	err := s.db.QueryRow(ctx, query, tenantId, branchId, uid).Scan(
		&card.ID,
		&card.UID,
		&card.TenantId,
		&card.BranchId,
		&card.Status,
		&card.BatchId,
		&card.AssignedMemberId,
		&card.CreatedAt,
		&card.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get card by uid: %w", err)
	}

	return &card, nil
}

// GetAssignedToMember returns the member's currently assigned card at the
// branch, or nil when the member holds none.
func (s *CardStore) GetAssignedToMember(ctx context.Context, branchId, memberId int64) (*models.Card, error) {
	query := `
		SELECT id, uid, tenant_id, branch_id, status, batch_id, assigned_member_id, created_at, updated_at
		FROM cards
		WHERE branch_id = $1 AND assigned_member_id = $2 AND status = 'ASSIGNED'
		LIMIT 1
	`

	var card models.Card
	err := s.db.QueryRow(ctx, query, branchId, memberId).Scan(
		&card.ID,
		&card.UID,
		&card.TenantId,
		&card.BranchId,
		&card.Status,
		&card.BatchId,
		&card.AssignedMemberId,
		&card.CreatedAt,
		&card.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get assigned card: %w", err)
	}

	return &card, nil
}

// BulkInsert creates the given UIDs as AVAILABLE cards, silently skipping any
// UID already present for the tenant+branch. Returns how many rows were
// actually created.
func (s *CardStore) BulkInsert(ctx context.Context, tenantId, branchId int64, uids []string, batchId string) (int, error) {
	batch := &pgx.Batch{}
	query := `
		INSERT INTO cards (uid, tenant_id, branch_id, status, batch_id)
		VALUES ($1, $2, $3, 'AVAILABLE', $4)
		ON CONFLICT (tenant_id, branch_id, uid) DO NOTHING
	`
	for _, uid := range uids {
		batch.Queue(query, uid, tenantId, branchId, batchId)
	}

	results := s.db.SendBatch(ctx, batch)
	defer results.Close()

	created := 0
	for range uids {
		tag, err := results.Exec()
		if err != nil {
			return created, fmt.Errorf("bulk insert cards: %w", err)
		}
		created += int(tag.RowsAffected())
	}

	return created, nil
}

func (s *CardStore) List(ctx context.Context, tenantId, branchId int64, status, batchId string) ([]*models.Card, error) {
	query := `
		SELECT id, uid, tenant_id, branch_id, status, batch_id, assigned_member_id, created_at, updated_at
		FROM cards
		WHERE tenant_id = $1 AND branch_id = $2
	`
	args := []interface{}{tenantId, branchId}

	if status != "" {
		args = append(args, status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if batchId != "" {
		args = append(args, batchId)
		query += fmt.Sprintf(" AND batch_id = $%d", len(args))
	}
	query += " ORDER BY uid"

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list cards: %w", err)
	}
	defer rows.Close()

	var cards []*models.Card
	for rows.Next() {
		var card models.Card
		err := rows.Scan(
			&card.ID,
			&card.UID,
			&card.TenantId,
			&card.BranchId,
			&card.Status,
			&card.BatchId,
			&card.AssignedMemberId,
			&card.CreatedAt,
			&card.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		cards = append(cards, &card)
	}

	return cards, rows.Err()
}

// Disable retires a card outside the tap protocol. It refuses while a live
// pending operation expects this UID: disabling under an in-flight reclaim or
// replace would strand the operation in an unresolvable mismatch loop.
func (s *CardStore) Disable(ctx context.Context, tenantId, branchId int64, uid string) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var pending bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM pending_card_operations
			WHERE branch_id = $1 AND expected_uid = $2
		)
	`, branchId, uid).Scan(&pending)
	if err != nil {
		return fmt.Errorf("check pending operation: %w", err)
	}
	if pending {
		return models.Conflict("card %s is expected by a pending operation, cancel it first", models.MaskUID(uid))
	}

	tag, err := tx.Exec(ctx, `
		UPDATE cards
		SET status = 'DISABLED', assigned_member_id = NULL, updated_at = now()
		WHERE tenant_id = $1 AND branch_id = $2 AND uid = $3
	`, tenantId, branchId, uid)
	if err != nil {
		return fmt.Errorf("disable card: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.NotFound("card %s not found", models.MaskUID(uid))
	}

	return tx.Commit(ctx)
}
