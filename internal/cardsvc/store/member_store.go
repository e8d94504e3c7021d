package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/tapgate/card-services/internal/cardsvc/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type MemberStore struct {
	db *pgxpool.Pool
}

func NewMemberStore(db *pgxpool.Pool) *MemberStore {
	return &MemberStore{db: db}
}

func (s *MemberStore) GetByID(ctx context.Context, memberId int64) (*models.Member, error) {
	query := `
		SELECT member_id, tenant_id, branch_id, name, status, created_at, updated_at
		FROM members
		WHERE member_id = $1
	`

	var m models.Member
	err := s.db.QueryRow(ctx, query, memberId).Scan(
		&m.MemberId,
		&m.TenantId,
		&m.BranchId,
		&m.Name,
		&m.Status,
		&m.CreatedAt,
		&m.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get member: %w", err)
	}

	return &m, nil
}
