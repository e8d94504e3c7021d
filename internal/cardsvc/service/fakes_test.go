package service

import (
	"context"
	"time"

	"github.com/tapgate/card-services/internal/cardsvc/models"
	"github.com/tapgate/card-services/internal/cardsvc/store"
	"github.com/tapgate/card-services/internal/comm"
)

// In-memory fakes mirroring the conditional-write semantics of the pg stores.

type fakeCardStore struct {
	cards map[string]*models.Card // keyed by uid, single tenant in tests
	ops   *fakeOperationStore
}

func newFakeCardStore() *fakeCardStore {
	return &fakeCardStore{cards: make(map[string]*models.Card)}
}

func (f *fakeCardStore) add(uid string, status string, memberId *int64) *models.Card {
	card := &models.Card{UID: uid, TenantId: 1, BranchId: 1, Status: status, AssignedMemberId: memberId}
	f.cards[uid] = card
	return card
}

func (f *fakeCardStore) GetByUID(ctx context.Context, tenantId, branchId int64, uid string) (*models.Card, error) {
	return f.cards[uid], nil
}

func (f *fakeCardStore) GetAssignedToMember(ctx context.Context, branchId, memberId int64) (*models.Card, error) {
	for _, c := range f.cards {
		if c.BranchId == branchId && c.Status == models.CardAssigned &&
			c.AssignedMemberId != nil && *c.AssignedMemberId == memberId {
			return c, nil
		}
	}
	return nil, nil
}

func (f *fakeCardStore) BulkInsert(ctx context.Context, tenantId, branchId int64, uids []string, batchId string) (int, error) {
	created := 0
	for _, uid := range uids {
		if _, exists := f.cards[uid]; exists {
			continue
		}
		f.cards[uid] = &models.Card{
			UID: uid, TenantId: tenantId, BranchId: branchId,
			Status: models.CardAvailable, BatchId: batchId,
		}
		created++
	}
	return created, nil
}

func (f *fakeCardStore) List(ctx context.Context, tenantId, branchId int64, status, batchId string) ([]*models.Card, error) {
	var out []*models.Card
	for _, c := range f.cards {
		if status != "" && c.Status != status {
			continue
		}
		if batchId != "" && c.BatchId != batchId {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (f *fakeCardStore) Disable(ctx context.Context, tenantId, branchId int64, uid string) error {
	if f.ops != nil {
		for _, op := range f.ops.ops {
			if op.BranchId == branchId && op.ExpectedUid == uid {
				return models.Conflict("card %s is expected by a pending operation, cancel it first", models.MaskUID(uid))
			}
		}
	}
	card := f.cards[uid]
	if card == nil {
		return models.NotFound("card %s not found", models.MaskUID(uid))
	}
	card.Status = models.CardDisabled
	card.AssignedMemberId = nil
	return nil
}

type fakeOperationStore struct {
	cards *fakeCardStore
	ops   map[int64]*models.PendingOperation
}

func newFakeOperationStore(cards *fakeCardStore) *fakeOperationStore {
	f := &fakeOperationStore{cards: cards, ops: make(map[int64]*models.PendingOperation)}
	if cards != nil {
		cards.ops = f
	}
	return f
}

func (f *fakeOperationStore) Create(ctx context.Context, op *models.PendingOperation) error {
	if _, exists := f.ops[op.BranchId]; exists {
		return models.Conflict("branch %d already has a pending card operation", op.BranchId)
	}
	cp := *op
	f.ops[op.BranchId] = &cp
	return nil
}

func (f *fakeOperationStore) Get(ctx context.Context, branchId int64) (*models.PendingOperation, error) {
	op, ok := f.ops[branchId]
	if !ok {
		return nil, nil
	}
	cp := *op
	return &cp, nil
}

func (f *fakeOperationStore) Delete(ctx context.Context, branchId int64) error {
	delete(f.ops, branchId)
	return nil
}

func (f *fakeOperationStore) Restart(ctx context.Context, branchId, memberId int64, expiresAt time.Time) (*models.PendingOperation, error) {
	op, ok := f.ops[branchId]
	if !ok || op.MemberId != memberId || op.Purpose != models.PurposeReclaim {
		return nil, models.ErrSlotGone
	}
	op.ExpiresAt = expiresAt
	op.Mismatch = nil
	cp := *op
	return &cp, nil
}

func (f *fakeOperationStore) RecordMismatch(ctx context.Context, branchId int64, m models.Mismatch) error {
	if op, ok := f.ops[branchId]; ok {
		op.Mismatch = &m
	}
	return nil
}

// sameOperation mirrors the identity predicate of the pg lock: the slot must
// still hold the exact operation the caller read, not a recreated lookalike.
func sameOperation(cur, op *models.PendingOperation) bool {
	return cur != nil &&
		cur.MemberId == op.MemberId &&
		cur.Purpose == op.Purpose &&
		cur.ExpectedUid == op.ExpectedUid &&
		cur.CreatedAt.Equal(op.CreatedAt)
}

func (f *fakeOperationStore) CompleteOnboard(ctx context.Context, op *models.PendingOperation, uid string) error {
	if !sameOperation(f.ops[op.BranchId], op) {
		return models.ErrSlotGone
	}
	card := f.cards.cards[uid]
	if card == nil || card.Status != models.CardAvailable {
		return models.Conflict("card %s is no longer available", models.MaskUID(uid))
	}
	memberId := op.MemberId
	card.Status = models.CardAssigned
	card.AssignedMemberId = &memberId
	delete(f.ops, op.BranchId)
	return nil
}

func (f *fakeOperationStore) CompleteReplace(ctx context.Context, op *models.PendingOperation, newUid string) error {
	if !sameOperation(f.ops[op.BranchId], op) {
		return models.ErrSlotGone
	}
	newCard := f.cards.cards[newUid]
	if newCard == nil || newCard.Status != models.CardAvailable {
		return models.Conflict("card %s is no longer available", models.MaskUID(newUid))
	}
	oldCard := f.cards.cards[op.ExpectedUid]
	if oldCard == nil || oldCard.Status != models.CardAssigned {
		return models.Conflict("old card %s is not assigned anymore", models.MaskUID(op.ExpectedUid))
	}
	memberId := op.MemberId
	newCard.Status = models.CardAssigned
	newCard.AssignedMemberId = &memberId
	oldCard.Status = models.CardDisabled
	oldCard.AssignedMemberId = nil
	delete(f.ops, op.BranchId)
	return nil
}

func (f *fakeOperationStore) CompleteReclaim(ctx context.Context, op *models.PendingOperation) error {
	if !sameOperation(f.ops[op.BranchId], op) {
		return models.ErrSlotGone
	}
	card := f.cards.cards[op.ExpectedUid]
	if card == nil || card.Status != models.CardAssigned {
		return models.Conflict("card %s is not assigned anymore", models.MaskUID(op.ExpectedUid))
	}
	card.Status = models.CardAvailable
	card.AssignedMemberId = nil
	delete(f.ops, op.BranchId)
	return nil
}

type fakeMemberStore struct {
	members map[int64]*models.Member
}

func newFakeMemberStore() *fakeMemberStore {
	return &fakeMemberStore{members: make(map[int64]*models.Member)}
}

func (f *fakeMemberStore) add(memberId int64) *models.Member {
	m := &models.Member{MemberId: memberId, TenantId: 1, BranchId: 1, Name: "member"}
	f.members[memberId] = m
	return m
}

func (f *fakeMemberStore) GetByID(ctx context.Context, memberId int64) (*models.Member, error) {
	return f.members[memberId], nil
}

type fakeTapLog struct {
	entries []store.TapLogEntry
}

func (f *fakeTapLog) Insert(ctx context.Context, entry store.TapLogEntry) error {
	f.entries = append(f.entries, entry)
	return nil
}

type fakePublisher struct {
	events []comm.CardEvent
}

func (f *fakePublisher) PublishCardEvent(ev comm.CardEvent) {
	f.events = append(f.events, ev)
}

type fakeTerminalStore struct {
	terminals map[int64]*models.Terminal
	nextId    int64
}

func newFakeTerminalStore() *fakeTerminalStore {
	return &fakeTerminalStore{terminals: make(map[int64]*models.Terminal)}
}

func (f *fakeTerminalStore) Create(ctx context.Context, t *models.Terminal) (int64, error) {
	f.nextId++
	cp := *t
	cp.ID = f.nextId
	f.terminals[cp.ID] = &cp
	return cp.ID, nil
}

func (f *fakeTerminalStore) GetByID(ctx context.Context, id int64) (*models.Terminal, error) {
	t, ok := f.terminals[id]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (f *fakeTerminalStore) UpdateSecret(ctx context.Context, id int64, hash, salt string) error {
	t, ok := f.terminals[id]
	if !ok {
		return models.NotFound("terminal %d not found", id)
	}
	t.SecretHash = hash
	t.SecretSalt = salt
	return nil
}

func (f *fakeTerminalStore) SetActive(ctx context.Context, id int64, active bool) error {
	t, ok := f.terminals[id]
	if !ok {
		return models.NotFound("terminal %d not found", id)
	}
	t.IsActive = active
	return nil
}

func (f *fakeTerminalStore) TouchLastSeen(ctx context.Context, id int64) error {
	if t, ok := f.terminals[id]; ok {
		now := time.Now()
		t.LastSeenAt = &now
	}
	return nil
}

func (f *fakeTerminalStore) List(ctx context.Context, tenantId, branchId int64) ([]*models.Terminal, error) {
	var out []*models.Terminal
	for _, t := range f.terminals {
		if branchId != 0 && t.BranchId != branchId {
			continue
		}
		cp := *t
		out = append(out, &cp)
	}
	return out, nil
}
