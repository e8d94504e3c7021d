package service

import (
	"context"
	"time"

	"github.com/tapgate/card-services/internal/cardsvc/models"

	log "github.com/sirupsen/logrus"
)

type TerminalService struct {
	store TerminalStore
	now   func() time.Time
}

func NewTerminalService(store TerminalStore) *TerminalService {
	return &TerminalService{store: store, now: time.Now}
}

// Register creates a terminal and returns its plaintext secret exactly once.
// Only the salted hash is persisted; there is no way to read the secret back.
func (s *TerminalService) Register(ctx context.Context, tenantId, branchId int64, name string) (*models.Terminal, string, error) {
	secret, err := generateSecret()
	if err != nil {
		return nil, "", err
	}

	hash, salt, err := hashSecret(secret)
	if err != nil {
		return nil, "", err
	}

	t := &models.Terminal{
		TenantId:   tenantId,
		BranchId:   branchId,
		Name:       name,
		SecretHash: hash,
		SecretSalt: salt,
		IsActive:   true,
	}

	id, err := s.store.Create(ctx, t)
	if err != nil {
		return nil, "", err
	}
	t.ID = id

	return t, secret, nil
}

// RotateSecret replaces the terminal secret. The swap is a single row update,
// so the old secret stops working in the same instant the new one starts.
func (s *TerminalService) RotateSecret(ctx context.Context, terminalId int64) (string, error) {
	t, err := s.store.GetByID(ctx, terminalId)
	if err != nil {
		return "", err
	}
	if t == nil {
		return "", models.NotFound("terminal %d not found", terminalId)
	}

	secret, err := generateSecret()
	if err != nil {
		return "", err
	}
	hash, salt, err := hashSecret(secret)
	if err != nil {
		return "", err
	}

	if err := s.store.UpdateSecret(ctx, terminalId, hash, salt); err != nil {
		return "", err
	}

	return secret, nil
}

// Authenticate verifies the presented secret in constant time and bumps the
// heartbeat. Inactive terminals fail regardless of the secret, with the same
// error shape as a bad secret.
func (s *TerminalService) Authenticate(ctx context.Context, terminalId int64, presented string) (*models.Terminal, error) {
	t, err := s.store.GetByID(ctx, terminalId)
	if err != nil {
		return nil, err
	}
	if t == nil || !t.IsActive || !verifySecret(presented, t.SecretSalt, t.SecretHash) {
		return nil, models.AuthFailed("terminal authentication failed")
	}

	if err := s.store.TouchLastSeen(ctx, terminalId); err != nil {
		log.Errorf("terminal %d heartbeat: %v", terminalId, err)
	}
	now := s.now()
	t.LastSeenAt = &now

	return t, nil
}

func (s *TerminalService) SetActive(ctx context.Context, terminalId int64, active bool) error {
	return s.store.SetActive(ctx, terminalId, active)
}

func (s *TerminalService) List(ctx context.Context, tenantId, branchId int64) ([]*models.Terminal, error) {
	return s.store.List(ctx, tenantId, branchId)
}
