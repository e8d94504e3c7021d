package service

import (
	"context"

	"github.com/tapgate/card-services/internal/cardsvc/models"

	"github.com/google/uuid"
)

type CardService struct {
	store CardStore
}

func NewCardService(store CardStore) *CardService {
	return &CardService{store: store}
}

// BulkResult reports a bulk inventory upload. skipped counts both in-batch
// duplicates and UIDs already present for the tenant+branch, so re-uploading
// the same batch file is harmless.
type BulkResult struct {
	Created int    `json:"created"`
	Skipped int    `json:"skipped"`
	BatchId string `json:"batch_id"`
}

func (s *CardService) BulkUpload(ctx context.Context, tenantId, branchId int64, uids []string, batchId string) (*BulkResult, error) {
	if len(uids) == 0 {
		return nil, models.InvalidState("no card uids submitted")
	}
	if batchId == "" {
		batchId = uuid.NewString()
	}

	// dedupe within the batch, keeping first occurrence order
	seen := make(map[string]bool, len(uids))
	unique := make([]string, 0, len(uids))
	for _, uid := range uids {
		if uid == "" || seen[uid] {
			continue
		}
		seen[uid] = true
		unique = append(unique, uid)
	}

	created, err := s.store.BulkInsert(ctx, tenantId, branchId, unique, batchId)
	if err != nil {
		return nil, err
	}

	return &BulkResult{
		Created: created,
		Skipped: len(uids) - created,
		BatchId: batchId,
	}, nil
}

func (s *CardService) List(ctx context.Context, tenantId, branchId int64, status, batchId string) ([]*models.Card, error) {
	return s.store.List(ctx, tenantId, branchId, status, batchId)
}

func (s *CardService) Query(ctx context.Context, tenantId, branchId int64, uid string) (*models.Card, error) {
	card, err := s.store.GetByUID(ctx, tenantId, branchId, uid)
	if err != nil {
		return nil, err
	}
	if card == nil {
		return nil, models.NotFound("card %s not found", models.MaskUID(uid))
	}
	return card, nil
}

func (s *CardService) Disable(ctx context.Context, tenantId, branchId int64, uid string) error {
	return s.store.Disable(ctx, tenantId, branchId, uid)
}
