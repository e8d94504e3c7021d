package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tapgate/card-services/internal/cardsvc/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// OperationStore persists the per-branch pending operation slot. The primary
// key on branch_id is the exclusivity invariant; everything else here is
// conditional writes so concurrent resolvers fall out as zero-row updates
// instead of double mutations.
type OperationStore struct {
	db *pgxpool.Pool
}

func NewOperationStore(db *pgxpool.Pool) *OperationStore {
	return &OperationStore{db: db}
}

// Create claims the branch slot. A second concurrent create loses on the
// primary key and gets a conflict.
func (s *OperationStore) Create(ctx context.Context, op *models.PendingOperation) error {
	query := `
		INSERT INTO pending_card_operations (branch_id, tenant_id, member_id, purpose, expected_uid, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.db.Exec(ctx, query,
		op.BranchId, op.TenantId, op.MemberId, op.Purpose, op.ExpectedUid, op.CreatedAt, op.ExpiresAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return models.Conflict("branch %d already has a pending card operation", op.BranchId)
		}
		return fmt.Errorf("create pending operation: %w", err)
	}

	return nil
}

func (s *OperationStore) Get(ctx context.Context, branchId int64) (*models.PendingOperation, error) {
	query := `
		SELECT branch_id, tenant_id, member_id, purpose, expected_uid, created_at, expires_at,
		       mismatch_tapped_uid, mismatch_expected_uid, mismatch_at
		FROM pending_card_operations
		WHERE branch_id = $1
	`

	var op models.PendingOperation
	var tapped, expected *string
	var at *time.Time
	err := s.db.QueryRow(ctx, query, branchId).Scan(
		&op.BranchId,
		&op.TenantId,
		&op.MemberId,
		&op.Purpose,
		&op.ExpectedUid,
		&op.CreatedAt,
		&op.ExpiresAt,
		&tapped,
		&expected,
		&at,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get pending operation: %w", err)
	}

	if at != nil {
		op.Mismatch = &models.Mismatch{
			TappedUidMasked:   *tapped,
			ExpectedUidMasked: *expected,
			At:                *at,
		}
	}

	return &op, nil
}

// Delete frees the branch slot. Deleting a slot that is already empty is a
// no-op success: dashboards race to cancel after optimistic local updates.
func (s *OperationStore) Delete(ctx context.Context, branchId int64) error {
	_, err := s.db.Exec(ctx, `DELETE FROM pending_card_operations WHERE branch_id = $1`, branchId)
	if err != nil {
		return fmt.Errorf("delete pending operation: %w", err)
	}
	return nil
}

// Restart pushes the deadline out and clears any recorded mismatch, keeping
// purpose, member and expected UID intact. Only a RECLAIM belonging to the
// given member qualifies.
func (s *OperationStore) Restart(ctx context.Context, branchId, memberId int64, expiresAt time.Time) (*models.PendingOperation, error) {
	query := `
		UPDATE pending_card_operations
		SET expires_at = $1, mismatch_tapped_uid = NULL, mismatch_expected_uid = NULL, mismatch_at = NULL
		WHERE branch_id = $2 AND member_id = $3 AND purpose = 'RECLAIM'
		RETURNING branch_id, tenant_id, member_id, purpose, expected_uid, created_at, expires_at
	`

	var op models.PendingOperation
	err := s.db.QueryRow(ctx, query, expiresAt, branchId, memberId).Scan(
		&op.BranchId,
		&op.TenantId,
		&op.MemberId,
		&op.Purpose,
		&op.ExpectedUid,
		&op.CreatedAt,
		&op.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrSlotGone
		}
		return nil, fmt.Errorf("restart pending operation: %w", err)
	}

	return &op, nil
}

func (s *OperationStore) RecordMismatch(ctx context.Context, branchId int64, m models.Mismatch) error {
	_, err := s.db.Exec(ctx, `
		UPDATE pending_card_operations
		SET mismatch_tapped_uid = $1, mismatch_expected_uid = $2, mismatch_at = $3
		WHERE branch_id = $4
	`, m.TappedUidMasked, m.ExpectedUidMasked, m.At, branchId)
	if err != nil {
		return fmt.Errorf("record mismatch: %w", err)
	}
	return nil
}

// lockOperation re-locks the exact operation the caller read, matching on the
// full identity including member_id and created_at. Purpose and expected_uid
// alone are not enough: a cancel plus a fresh create for another member can
// occupy the slot with an identical-looking row between the read and this
// transaction, and completing against that row would mutate cards for the
// cancelled operation. Any identity mismatch is ErrSlotGone.
func lockOperation(ctx context.Context, tx pgx.Tx, op *models.PendingOperation) error {
	var branchId int64
	err := tx.QueryRow(ctx, `
		SELECT branch_id
		FROM pending_card_operations
		WHERE branch_id = $1 AND member_id = $2 AND purpose = $3 AND expected_uid = $4 AND created_at = $5
		FOR UPDATE
	`, op.BranchId, op.MemberId, op.Purpose, op.ExpectedUid, op.CreatedAt).Scan(&branchId)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.ErrSlotGone
		}
		return fmt.Errorf("lock pending operation: %w", err)
	}
	return nil
}

// CompleteOnboard assigns the tapped card to the operation's member and frees
// the slot, atomically. The card must still be AVAILABLE when the transaction
// runs.
func (s *OperationStore) CompleteOnboard(ctx context.Context, op *models.PendingOperation, uid string) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := lockOperation(ctx, tx, op); err != nil {
		return err
	}

	tag, err := tx.Exec(ctx, `
		UPDATE cards
		SET status = 'ASSIGNED', assigned_member_id = $1, updated_at = now()
		WHERE tenant_id = $2 AND branch_id = $3 AND uid = $4 AND status = 'AVAILABLE'
	`, op.MemberId, op.TenantId, op.BranchId, uid)
	if err != nil {
		return fmt.Errorf("assign card: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.Conflict("card %s is no longer available", models.MaskUID(uid))
	}

	if _, err := tx.Exec(ctx, `DELETE FROM pending_card_operations WHERE branch_id = $1`, op.BranchId); err != nil {
		return fmt.Errorf("free slot: %w", err)
	}

	return tx.Commit(ctx)
}

// CompleteReplace assigns the new card, disables the old one and frees the
// slot in one transaction, so a crash can never leave the member holding both
// cards or neither.
func (s *OperationStore) CompleteReplace(ctx context.Context, op *models.PendingOperation, newUid string) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := lockOperation(ctx, tx, op); err != nil {
		return err
	}

	tag, err := tx.Exec(ctx, `
		UPDATE cards
		SET status = 'ASSIGNED', assigned_member_id = $1, updated_at = now()
		WHERE tenant_id = $2 AND branch_id = $3 AND uid = $4 AND status = 'AVAILABLE'
	`, op.MemberId, op.TenantId, op.BranchId, newUid)
	if err != nil {
		return fmt.Errorf("assign new card: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.Conflict("card %s is no longer available", models.MaskUID(newUid))
	}

	tag, err = tx.Exec(ctx, `
		UPDATE cards
		SET status = 'DISABLED', assigned_member_id = NULL, updated_at = now()
		WHERE tenant_id = $1 AND branch_id = $2 AND uid = $3 AND status = 'ASSIGNED'
	`, op.TenantId, op.BranchId, op.ExpectedUid)
	if err != nil {
		return fmt.Errorf("disable old card: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.Conflict("old card %s is not assigned anymore", models.MaskUID(op.ExpectedUid))
	}

	if _, err := tx.Exec(ctx, `DELETE FROM pending_card_operations WHERE branch_id = $1`, op.BranchId); err != nil {
		return fmt.Errorf("free slot: %w", err)
	}

	return tx.Commit(ctx)
}

// CompleteReclaim returns the expected card to the AVAILABLE pool and frees
// the slot.
func (s *OperationStore) CompleteReclaim(ctx context.Context, op *models.PendingOperation) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := lockOperation(ctx, tx, op); err != nil {
		return err
	}

	tag, err := tx.Exec(ctx, `
		UPDATE cards
		SET status = 'AVAILABLE', assigned_member_id = NULL, updated_at = now()
		WHERE tenant_id = $1 AND branch_id = $2 AND uid = $3 AND status = 'ASSIGNED'
	`, op.TenantId, op.BranchId, op.ExpectedUid)
	if err != nil {
		return fmt.Errorf("reclaim card: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.Conflict("card %s is not assigned anymore", models.MaskUID(op.ExpectedUid))
	}

	if _, err := tx.Exec(ctx, `DELETE FROM pending_card_operations WHERE branch_id = $1`, op.BranchId); err != nil {
		return fmt.Errorf("free slot: %w", err)
	}

	return tx.Commit(ctx)
}
