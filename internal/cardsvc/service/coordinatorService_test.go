package service

import (
	"context"
	"testing"
	"time"

	"github.com/tapgate/card-services/internal/cardsvc/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type coordinatorFixture struct {
	cards    *fakeCardStore
	ops      *fakeOperationStore
	members  *fakeMemberStore
	taps     *fakeTapLog
	events   *fakePublisher
	svc      *CoordinatorService
	terminal *models.Terminal
}

func newCoordinatorFixture(t *testing.T) *coordinatorFixture {
	t.Helper()
	cards := newFakeCardStore()
	ops := newFakeOperationStore(cards)
	members := newFakeMemberStore()
	taps := &fakeTapLog{}
	events := &fakePublisher{}

	svc := NewCoordinatorService(ops, cards, members, taps, events)

	return &coordinatorFixture{
		cards:   cards,
		ops:     ops,
		members: members,
		taps:    taps,
		events:  events,
		svc:     svc,
		terminal: &models.Terminal{
			ID: 7, TenantId: 1, BranchId: 1, Name: "front-desk", IsActive: true,
		},
	}
}

func TestCreateOperationClaimsSlotExclusively(t *testing.T) {
	f := newCoordinatorFixture(t)
	f.members.add(10)
	f.members.add(11)
	ctx := context.Background()

	op, err := f.svc.CreateOperation(ctx, 1, 10, models.PurposeOnboard)
	require.NoError(t, err)
	assert.Equal(t, models.PurposeOnboard, op.Purpose)
	assert.Empty(t, op.ExpectedUid)
	assert.Equal(t, op.CreatedAt.Add(models.OperationWindow), op.ExpiresAt)

	// second create for the same branch loses, regardless of member
	_, err = f.svc.CreateOperation(ctx, 1, 11, models.PurposeOnboard)
	require.Error(t, err)
	assert.Equal(t, models.KindConflict, models.KindOf(err))
}

func TestCreateOperationUnknownMember(t *testing.T) {
	f := newCoordinatorFixture(t)

	_, err := f.svc.CreateOperation(context.Background(), 1, 99, models.PurposeOnboard)
	require.Error(t, err)
	assert.Equal(t, models.KindNotFound, models.KindOf(err))
}

func TestCreateReplaceRequiresAssignedCard(t *testing.T) {
	f := newCoordinatorFixture(t)
	f.members.add(10)

	_, err := f.svc.CreateOperation(context.Background(), 1, 10, models.PurposeReplace)
	require.Error(t, err)
	assert.Equal(t, models.KindInvalidState, models.KindOf(err))
}

func TestCreateReclaimCapturesExpectedUid(t *testing.T) {
	f := newCoordinatorFixture(t)
	f.members.add(10)
	memberId := int64(10)
	f.cards.add("CARD0001", models.CardAssigned, &memberId)

	op, err := f.svc.CreateOperation(context.Background(), 1, 10, models.PurposeReclaim)
	require.NoError(t, err)
	assert.Equal(t, "CARD0001", op.ExpectedUid)
}

func TestCancelOperationIsIdempotent(t *testing.T) {
	f := newCoordinatorFixture(t)
	f.members.add(10)
	ctx := context.Background()

	_, err := f.svc.CreateOperation(ctx, 1, 10, models.PurposeOnboard)
	require.NoError(t, err)

	require.NoError(t, f.svc.CancelOperation(ctx, 1))
	// cancelling an empty slot is still a success, twice in a row
	require.NoError(t, f.svc.CancelOperation(ctx, 1))
	require.NoError(t, f.svc.CancelOperation(ctx, 1))
}

func TestCancelDoesNotTouchCards(t *testing.T) {
	f := newCoordinatorFixture(t)
	f.members.add(10)
	f.cards.add("CARD0001", models.CardAvailable, nil)
	ctx := context.Background()

	_, err := f.svc.CreateOperation(ctx, 1, 10, models.PurposeOnboard)
	require.NoError(t, err)
	require.NoError(t, f.svc.CancelOperation(ctx, 1))

	assert.Equal(t, models.CardAvailable, f.cards.cards["CARD0001"].Status)
}

func TestResolveTapIgnoredOnIdleKiosk(t *testing.T) {
	f := newCoordinatorFixture(t)
	f.cards.add("CARD0001", models.CardAvailable, nil)

	res, err := f.svc.ResolveTap(context.Background(), f.terminal, "CARD0001")
	require.NoError(t, err)
	assert.Equal(t, models.TapIgnored, res.Resolution)
	// tap is logged even when nothing happens
	require.Len(t, f.taps.entries, 1)
	assert.Equal(t, models.TapIgnored, f.taps.entries[0].Resolution)
	// no inventory mutation
	assert.Equal(t, models.CardAvailable, f.cards.cards["CARD0001"].Status)
}

func TestResolveTapOnboardMatchThenReplayIgnored(t *testing.T) {
	f := newCoordinatorFixture(t)
	f.members.add(10)
	f.cards.add("CARD0001", models.CardAvailable, nil)
	ctx := context.Background()

	_, err := f.svc.CreateOperation(ctx, 1, 10, models.PurposeOnboard)
	require.NoError(t, err)

	res, err := f.svc.ResolveTap(ctx, f.terminal, "CARD0001")
	require.NoError(t, err)
	assert.Equal(t, models.TapMatched, res.Resolution)

	card := f.cards.cards["CARD0001"]
	assert.Equal(t, models.CardAssigned, card.Status)
	require.NotNil(t, card.AssignedMemberId)
	assert.Equal(t, int64(10), *card.AssignedMemberId)

	op, err := f.svc.GetOperation(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, op)

	// flaky kiosk retry: same tap again must not mutate anything
	res, err = f.svc.ResolveTap(ctx, f.terminal, "CARD0001")
	require.NoError(t, err)
	assert.Equal(t, models.TapIgnored, res.Resolution)
	assert.Equal(t, int64(10), *f.cards.cards["CARD0001"].AssignedMemberId)
}

func TestResolveTapOnboardRejectsTakenCard(t *testing.T) {
	f := newCoordinatorFixture(t)
	f.members.add(10)
	otherId := int64(42)
	f.cards.add("TAKEN001", models.CardAssigned, &otherId)
	ctx := context.Background()

	_, err := f.svc.CreateOperation(ctx, 1, 10, models.PurposeOnboard)
	require.NoError(t, err)

	res, err := f.svc.ResolveTap(ctx, f.terminal, "TAKEN001")
	require.NoError(t, err)
	assert.Equal(t, models.TapRejected, res.Resolution)
	require.NotNil(t, res.Mismatch)
	assert.Equal(t, models.MaskUID("TAKEN001"), res.Mismatch.TappedUidMasked)

	// slot stays occupied with the mismatch recorded for the admin
	op, err := f.svc.GetOperation(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, op)
	require.NotNil(t, op.Mismatch)

	// the taken card is untouched
	assert.Equal(t, int64(42), *f.cards.cards["TAKEN001"].AssignedMemberId)
}

func TestReplaceScenario(t *testing.T) {
	f := newCoordinatorFixture(t)
	f.members.add(10)
	memberId := int64(10)
	f.cards.add("OLD123", models.CardAssigned, &memberId)
	f.cards.add("NEW456", models.CardAvailable, nil)
	f.cards.add("BYSTANDER", models.CardAvailable, nil)
	ctx := context.Background()

	op, err := f.svc.CreateOperation(ctx, 1, 10, models.PurposeReplace)
	require.NoError(t, err)
	assert.Equal(t, "OLD123", op.ExpectedUid)

	// tapping the old card back is not a replacement
	res, err := f.svc.ResolveTap(ctx, f.terminal, "OLD123")
	require.NoError(t, err)
	assert.Equal(t, models.TapRejected, res.Resolution)

	pending, err := f.svc.GetOperation(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, pending)
	require.NotNil(t, pending.Mismatch)

	// fresh card completes the swap
	res, err = f.svc.ResolveTap(ctx, f.terminal, "NEW456")
	require.NoError(t, err)
	assert.Equal(t, models.TapMatched, res.Resolution)

	newCard := f.cards.cards["NEW456"]
	assert.Equal(t, models.CardAssigned, newCard.Status)
	assert.Equal(t, int64(10), *newCard.AssignedMemberId)

	oldCard := f.cards.cards["OLD123"]
	assert.Equal(t, models.CardDisabled, oldCard.Status)
	assert.Nil(t, oldCard.AssignedMemberId)

	// no third card is touched
	assert.Equal(t, models.CardAvailable, f.cards.cards["BYSTANDER"].Status)

	pending, err = f.svc.GetOperation(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, pending)
}

func TestReclaimRoundTrip(t *testing.T) {
	f := newCoordinatorFixture(t)
	f.members.add(10)
	memberId := int64(10)
	f.cards.add("CARD0001", models.CardAssigned, &memberId)
	ctx := context.Background()

	_, err := f.svc.CreateOperation(ctx, 1, 10, models.PurposeReclaim)
	require.NoError(t, err)

	// a different card is never good enough for a reclaim
	f.cards.add("WRONG001", models.CardAvailable, nil)
	res, err := f.svc.ResolveTap(ctx, f.terminal, "WRONG001")
	require.NoError(t, err)
	assert.Equal(t, models.TapRejected, res.Resolution)
	require.NotNil(t, res.Mismatch)
	assert.Equal(t, models.MaskUID("CARD0001"), res.Mismatch.ExpectedUidMasked)

	res, err = f.svc.ResolveTap(ctx, f.terminal, "CARD0001")
	require.NoError(t, err)
	assert.Equal(t, models.TapMatched, res.Resolution)

	card := f.cards.cards["CARD0001"]
	assert.Equal(t, models.CardAvailable, card.Status)
	assert.Nil(t, card.AssignedMemberId)
}

func TestExpiredOperationStillResolves(t *testing.T) {
	f := newCoordinatorFixture(t)
	f.members.add(10)
	memberId := int64(10)
	f.cards.add("CARD0001", models.CardAssigned, &memberId)
	ctx := context.Background()

	_, err := f.svc.CreateOperation(ctx, 1, 10, models.PurposeReclaim)
	require.NoError(t, err)

	// push the clock past the soft deadline; the slot stays occupied and the
	// late tap still resolves
	f.svc.now = func() time.Time { return time.Now().Add(models.OperationWindow + time.Minute) }

	op, err := f.svc.GetOperation(ctx, 1)
	require.NoError(t, err)
	assert.True(t, op.IsExpired(f.svc.now()))

	res, err := f.svc.ResolveTap(ctx, f.terminal, "CARD0001")
	require.NoError(t, err)
	assert.Equal(t, models.TapMatched, res.Resolution)
}

func TestRestartResetsTimerPreservesIdentity(t *testing.T) {
	f := newCoordinatorFixture(t)
	f.members.add(10)
	memberId := int64(10)
	f.cards.add("CARD0001", models.CardAssigned, &memberId)
	ctx := context.Background()

	created, err := f.svc.CreateOperation(ctx, 1, 10, models.PurposeReclaim)
	require.NoError(t, err)

	// leave a mismatch behind, restart must clear it
	f.cards.add("WRONG001", models.CardAvailable, nil)
	_, err = f.svc.ResolveTap(ctx, f.terminal, "WRONG001")
	require.NoError(t, err)

	f.svc.now = func() time.Time { return time.Now().Add(30 * time.Minute) }

	restarted, err := f.svc.RestartOperation(ctx, 1, 10)
	require.NoError(t, err)
	assert.True(t, restarted.ExpiresAt.After(created.ExpiresAt))
	assert.Equal(t, created.Purpose, restarted.Purpose)
	assert.Equal(t, created.MemberId, restarted.MemberId)
	assert.Equal(t, created.ExpectedUid, restarted.ExpectedUid)
	assert.Nil(t, restarted.Mismatch)
}

func TestRestartRejectsNonReclaim(t *testing.T) {
	f := newCoordinatorFixture(t)
	f.members.add(10)
	ctx := context.Background()

	_, err := f.svc.CreateOperation(ctx, 1, 10, models.PurposeOnboard)
	require.NoError(t, err)

	_, err = f.svc.RestartOperation(ctx, 1, 10)
	require.Error(t, err)
	assert.Equal(t, models.KindInvalidState, models.KindOf(err))
}

func TestRestartRejectsOtherMembersOperation(t *testing.T) {
	f := newCoordinatorFixture(t)
	f.members.add(10)
	f.members.add(11)
	memberId := int64(10)
	f.cards.add("CARD0001", models.CardAssigned, &memberId)
	ctx := context.Background()

	_, err := f.svc.CreateOperation(ctx, 1, 10, models.PurposeReclaim)
	require.NoError(t, err)

	_, err = f.svc.RestartOperation(ctx, 1, 11)
	require.Error(t, err)
	assert.Equal(t, models.KindInvalidState, models.KindOf(err))
}

func TestRestartWithoutOperation(t *testing.T) {
	f := newCoordinatorFixture(t)
	f.members.add(10)

	_, err := f.svc.RestartOperation(context.Background(), 1, 10)
	require.Error(t, err)
	assert.Equal(t, models.KindNotFound, models.KindOf(err))
}

func TestCompletionAgainstRecreatedSlotIgnored(t *testing.T) {
	f := newCoordinatorFixture(t)
	f.members.add(10)
	f.members.add(11)
	f.cards.add("CARD0001", models.CardAvailable, nil)
	ctx := context.Background()

	// an already-read operation gets cancelled and the slot is re-claimed for
	// another member before completion runs
	stale, err := f.svc.CreateOperation(ctx, 1, 10, models.PurposeOnboard)
	require.NoError(t, err)
	require.NoError(t, f.svc.CancelOperation(ctx, 1))
	_, err = f.svc.CreateOperation(ctx, 1, 11, models.PurposeOnboard)
	require.NoError(t, err)

	// completing with the stale read must not touch the new operation or the card
	err = f.ops.CompleteOnboard(ctx, stale, "CARD0001")
	assert.ErrorIs(t, err, models.ErrSlotGone)

	assert.Equal(t, models.CardAvailable, f.cards.cards["CARD0001"].Status)
	assert.Nil(t, f.cards.cards["CARD0001"].AssignedMemberId)

	current, err := f.svc.GetOperation(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, int64(11), current.MemberId)
}

func TestTapEventsArePublishedMasked(t *testing.T) {
	f := newCoordinatorFixture(t)
	f.members.add(10)
	f.cards.add("CARD0001", models.CardAvailable, nil)
	ctx := context.Background()

	_, err := f.svc.CreateOperation(ctx, 1, 10, models.PurposeOnboard)
	require.NoError(t, err)

	_, err = f.svc.ResolveTap(ctx, f.terminal, "CARD0001")
	require.NoError(t, err)

	require.NotEmpty(t, f.events.events)
	for _, ev := range f.events.events {
		assert.NotContains(t, ev.UidMasked, "CARD0001")
	}
}
