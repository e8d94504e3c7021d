package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/tapgate/card-services/internal/cardsvc/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type TerminalStore struct {
	db *pgxpool.Pool
}

func NewTerminalStore(db *pgxpool.Pool) *TerminalStore {
	return &TerminalStore{db: db}
}

func (s *TerminalStore) Create(ctx context.Context, t *models.Terminal) (int64, error) {
	var id int64
	query := `
		INSERT INTO terminals (tenant_id, branch_id, name, secret_hash, secret_salt, is_active)
		VALUES ($1, $2, $3, $4, $5, true)
		RETURNING id
	`
	err := s.db.QueryRow(ctx, query, t.TenantId, t.BranchId, t.Name, t.SecretHash, t.SecretSalt).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("could not create terminal: %w", err)
	}

	return id, nil
}

func (s *TerminalStore) GetByID(ctx context.Context, id int64) (*models.Terminal, error) {
	query := `
		SELECT id, tenant_id, branch_id, name, secret_hash, secret_salt, is_active, last_seen_at, created_at, updated_at
		FROM terminals
		WHERE id = $1
	`

	var t models.Terminal
	err := s.db.QueryRow(ctx, query, id).Scan(
		&t.ID,
		&t.TenantId,
		&t.BranchId,
		&t.Name,
		&t.SecretHash,
		&t.SecretSalt,
		&t.IsActive,
		&t.LastSeenAt,
		&t.CreatedAt,
		&t.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get terminal: %w", err)
	}

	return &t, nil
}

// UpdateSecret swaps the stored hash in a single statement, so there is no
// window where both the old and the new secret authenticate.
func (s *TerminalStore) UpdateSecret(ctx context.Context, id int64, hash, salt string) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE terminals
		SET secret_hash = $1, secret_salt = $2, updated_at = now()
		WHERE id = $3
	`, hash, salt, id)
	if err != nil {
		return fmt.Errorf("rotate terminal secret: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.NotFound("terminal %d not found", id)
	}
	return nil
}

func (s *TerminalStore) SetActive(ctx context.Context, id int64, active bool) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE terminals
		SET is_active = $1, updated_at = now()
		WHERE id = $2
	`, active, id)
	if err != nil {
		return fmt.Errorf("set terminal active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.NotFound("terminal %d not found", id)
	}
	return nil
}

// TouchLastSeen is the heartbeat, bumped on every authenticated tap call.
func (s *TerminalStore) TouchLastSeen(ctx context.Context, id int64) error {
	_, err := s.db.Exec(ctx, `
		UPDATE terminals
		SET last_seen_at = now()
		WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("touch terminal: %w", err)
	}
	return nil
}

func (s *TerminalStore) List(ctx context.Context, tenantId, branchId int64) ([]*models.Terminal, error) {
	query := `
		SELECT id, tenant_id, branch_id, name, secret_hash, secret_salt, is_active, last_seen_at, created_at, updated_at
		FROM terminals
		WHERE tenant_id = $1
	`
	args := []interface{}{tenantId}

	if branchId != 0 {
		args = append(args, branchId)
		query += fmt.Sprintf(" AND branch_id = $%d", len(args))
	}
	query += " ORDER BY id"

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list terminals: %w", err)
	}
	defer rows.Close()

	var terminals []*models.Terminal
	for rows.Next() {
		var t models.Terminal
		err := rows.Scan(
			&t.ID,
			&t.TenantId,
			&t.BranchId,
			&t.Name,
			&t.SecretHash,
			&t.SecretSalt,
			&t.IsActive,
			&t.LastSeenAt,
			&t.CreatedAt,
			&t.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		terminals = append(terminals, &t)
	}

	return terminals, rows.Err()
}
