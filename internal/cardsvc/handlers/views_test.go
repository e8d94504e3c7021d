package handlers

import (
	"testing"
	"time"

	"github.com/tapgate/card-services/internal/cardsvc/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPendingOperationViewMasksExpectedUid(t *testing.T) {
	now := time.Now()
	op := &models.PendingOperation{
		BranchId:    1,
		TenantId:    1,
		MemberId:    10,
		Purpose:     models.PurposeReclaim,
		ExpectedUid: "04A1B2C3",
		CreatedAt:   now.Add(-models.OperationWindow - time.Minute),
		ExpiresAt:   now.Add(-time.Minute),
		Mismatch: &models.Mismatch{
			TappedUidMasked:   models.MaskUID("WRONG001"),
			ExpectedUidMasked: models.MaskUID("04A1B2C3"),
			At:                now,
		},
	}

	view := newPendingOperationView(op)

	assert.Equal(t, "04****C3", view.ExpectedUidMasked)
	assert.NotContains(t, view.ExpectedUidMasked, op.ExpectedUid)
	assert.True(t, view.IsExpired)
	require.NotNil(t, view.Mismatch)
	assert.Equal(t, "WR****01", view.Mismatch.TappedUidMasked)
}

func TestCardViewMasksUid(t *testing.T) {
	memberId := int64(10)
	card := &models.Card{
		ID:               5,
		UID:              "04A1B2C3",
		TenantId:         1,
		BranchId:         1,
		Status:           models.CardAssigned,
		BatchId:          "batch-1",
		AssignedMemberId: &memberId,
	}

	view := newCardView(card)

	assert.Equal(t, "04****C3", view.UidMasked)
	assert.NotContains(t, view.UidMasked, card.UID)
	assert.Equal(t, models.CardAssigned, view.Status)
	require.NotNil(t, view.AssignedMemberId)
	assert.Equal(t, int64(10), *view.AssignedMemberId)
}
