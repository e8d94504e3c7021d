package service

import (
	"context"
	"time"

	"github.com/tapgate/card-services/internal/cardsvc/models"
	"github.com/tapgate/card-services/internal/cardsvc/store"
	"github.com/tapgate/card-services/internal/comm"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// TapResolution is the outcome of one ingested tap. Every tap lands on
// exactly one of matched / rejected / ignored; none of them is an error.
type TapResolution struct {
	Resolution string           `json:"resolution"`
	Mismatch   *models.Mismatch `json:"mismatch,omitempty"`
}

// CoordinatorService owns the pending-operation state machine. All slot
// mutations for one branch funnel through the operation store's conditional
// writes, which is what serializes concurrent admins and kiosks.
type CoordinatorService struct {
	ops     OperationStore
	cards   CardStore
	members MemberStore
	taps    TapLog         // optional
	events  EventPublisher // optional
	now     func() time.Time
}

func NewCoordinatorService(ops OperationStore, cards CardStore, members MemberStore, taps TapLog, events EventPublisher) *CoordinatorService {
	return &CoordinatorService{
		ops:     ops,
		cards:   cards,
		members: members,
		taps:    taps,
		events:  events,
		now:     time.Now,
	}
}

// CreateOperation claims the branch slot for the member. A slot occupied by
// any operation, expired or not, is a conflict: the caller must cancel or
// restart first.
func (s *CoordinatorService) CreateOperation(ctx context.Context, branchId, memberId int64, purpose string) (*models.PendingOperation, error) {
	member, err := s.members.GetByID(ctx, memberId)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, models.NotFound("member %d not found", memberId)
	}
	if branchId == 0 {
		branchId = member.BranchId
	}

	expectedUid := ""
	switch purpose {
	case models.PurposeOnboard:
		// any AVAILABLE card tapped at the branch is acceptable
	case models.PurposeReplace, models.PurposeReclaim:
		assigned, err := s.cards.GetAssignedToMember(ctx, branchId, memberId)
		if err != nil {
			return nil, err
		}
		if assigned == nil {
			return nil, models.InvalidState("member %d has no assigned card at branch %d", memberId, branchId)
		}
		expectedUid = assigned.UID
	default:
		return nil, models.InvalidState("unknown purpose %q", purpose)
	}

	now := s.now()
	op := &models.PendingOperation{
		BranchId:    branchId,
		TenantId:    member.TenantId,
		MemberId:    memberId,
		Purpose:     purpose,
		ExpectedUid: expectedUid,
		CreatedAt:   now,
		ExpiresAt:   now.Add(models.OperationWindow),
	}

	if err := s.ops.Create(ctx, op); err != nil {
		return nil, err
	}

	s.publish(comm.CardEvent{
		Type:      comm.EventOperationCreated,
		TenantId:  op.TenantId,
		BranchId:  branchId,
		MemberId:  memberId,
		Purpose:   purpose,
		UidMasked: models.MaskUID(expectedUid),
		At:        now,
	})

	return op, nil
}

// CancelOperation frees the branch slot. Cancelling an empty slot succeeds:
// dashboards fire cancels optimistically and may double-send. No card state
// is touched; cancel is a pure abort.
func (s *CoordinatorService) CancelOperation(ctx context.Context, branchId int64) error {
	op, err := s.ops.Get(ctx, branchId)
	if err != nil {
		return err
	}

	if err := s.ops.Delete(ctx, branchId); err != nil {
		return err
	}

	if op != nil {
		s.publish(comm.CardEvent{
			Type:     comm.EventOperationCancelled,
			TenantId: op.TenantId,
			BranchId: branchId,
			MemberId: op.MemberId,
			Purpose:  op.Purpose,
			At:       s.now(),
		})
	}

	return nil
}

// RestartOperation gives a RECLAIM a fresh deadline and wipes the recorded
// mismatch. Purpose, member and expected UID survive unchanged. Only RECLAIM
// restarts: there the admin waits on the member walking back with the card,
// while a stale ONBOARD/REPLACE is cancelled and recreated instead.
func (s *CoordinatorService) RestartOperation(ctx context.Context, branchId, memberId int64) (*models.PendingOperation, error) {
	if branchId == 0 {
		member, err := s.members.GetByID(ctx, memberId)
		if err != nil {
			return nil, err
		}
		if member == nil {
			return nil, models.NotFound("member %d not found", memberId)
		}
		branchId = member.BranchId
	}

	op, err := s.ops.Get(ctx, branchId)
	if err != nil {
		return nil, err
	}
	if op == nil {
		return nil, models.NotFound("no pending card operation for branch %d", branchId)
	}
	if op.Purpose != models.PurposeReclaim {
		return nil, models.InvalidState("only RECLAIM operations can be restarted")
	}
	if op.MemberId != memberId {
		return nil, models.InvalidState("pending operation belongs to another member")
	}

	restarted, err := s.ops.Restart(ctx, branchId, memberId, s.now().Add(models.OperationWindow))
	if err != nil {
		if err == models.ErrSlotGone {
			return nil, models.Conflict("pending operation changed, reload and retry")
		}
		return nil, err
	}

	s.publish(comm.CardEvent{
		Type:     comm.EventOperationRestarted,
		TenantId: restarted.TenantId,
		BranchId: branchId,
		MemberId: memberId,
		Purpose:  restarted.Purpose,
		At:       s.now(),
	})

	return restarted, nil
}

// GetOperation reads the branch slot; nil means the slot is free.
func (s *CoordinatorService) GetOperation(ctx context.Context, branchId int64) (*models.PendingOperation, error) {
	return s.ops.Get(ctx, branchId)
}

// ResolveTap matches a kiosk-reported UID against the branch's pending
// operation. The terminal is already authenticated; its branch decides which
// slot the tap can touch. An expired operation is still resolvable here: a
// card physically tapped a second after the soft deadline is never dropped.
func (s *CoordinatorService) ResolveTap(ctx context.Context, terminal *models.Terminal, uid string) (*TapResolution, error) {
	op, err := s.ops.Get(ctx, terminal.BranchId)
	if err != nil {
		return nil, err
	}
	if op == nil {
		// random tap on an idle kiosk, log it and move on
		return s.finishTap(ctx, terminal, uid, "", &TapResolution{Resolution: models.TapIgnored}), nil
	}

	switch op.Purpose {
	case models.PurposeOnboard:
		card, err := s.cards.GetByUID(ctx, op.TenantId, op.BranchId, uid)
		if err != nil {
			return nil, err
		}
		if card == nil || card.Status != models.CardAvailable {
			return s.reject(ctx, terminal, op, uid), nil
		}
		return s.complete(ctx, terminal, op, uid, s.ops.CompleteOnboard(ctx, op, uid)), nil

	case models.PurposeReplace:
		if uid == op.ExpectedUid {
			// the old card came back instead of a fresh one
			return s.reject(ctx, terminal, op, uid), nil
		}
		card, err := s.cards.GetByUID(ctx, op.TenantId, op.BranchId, uid)
		if err != nil {
			return nil, err
		}
		if card == nil || card.Status != models.CardAvailable {
			return s.reject(ctx, terminal, op, uid), nil
		}
		return s.complete(ctx, terminal, op, uid, s.ops.CompleteReplace(ctx, op, uid)), nil

	case models.PurposeReclaim:
		if uid != op.ExpectedUid {
			return s.reject(ctx, terminal, op, uid), nil
		}
		return s.complete(ctx, terminal, op, uid, s.ops.CompleteReclaim(ctx, op)), nil
	}

	log.Errorf("pending operation for branch %d has unknown purpose %q", op.BranchId, op.Purpose)
	return s.finishTap(ctx, terminal, uid, op.Purpose, &TapResolution{Resolution: models.TapIgnored}), nil
}

// complete maps the conditional-write outcome onto a resolution. A vanished
// slot means another resolver or a cancel already won; the replay resolves as
// ignored, never as a second mutation.
func (s *CoordinatorService) complete(ctx context.Context, terminal *models.Terminal, op *models.PendingOperation, uid string, err error) *TapResolution {
	switch {
	case err == nil:
		return s.finishTap(ctx, terminal, uid, op.Purpose, &TapResolution{Resolution: models.TapMatched})
	case err == models.ErrSlotGone:
		return s.finishTap(ctx, terminal, uid, op.Purpose, &TapResolution{Resolution: models.TapIgnored})
	case models.KindOf(err) == models.KindConflict:
		// the card changed state under us, keep the slot and surface a mismatch
		return s.reject(ctx, terminal, op, uid)
	default:
		log.Errorf("resolve tap for branch %d: %v", op.BranchId, err)
		return s.finishTap(ctx, terminal, uid, op.Purpose, &TapResolution{Resolution: models.TapIgnored})
	}
}

// reject records the mismatch and keeps the slot occupied so a human can
// decide. Mismatches are never fatal.
func (s *CoordinatorService) reject(ctx context.Context, terminal *models.Terminal, op *models.PendingOperation, uid string) *TapResolution {
	m := models.Mismatch{
		TappedUidMasked:   models.MaskUID(uid),
		ExpectedUidMasked: models.MaskUID(op.ExpectedUid),
		At:                s.now(),
	}

	if err := s.ops.RecordMismatch(ctx, op.BranchId, m); err != nil {
		log.Errorf("record mismatch for branch %d: %v", op.BranchId, err)
	}

	return s.finishTap(ctx, terminal, uid, op.Purpose, &TapResolution{Resolution: models.TapRejected, Mismatch: &m})
}

// finishTap writes the audit entry and publishes the dashboard event,
// best-effort on both.
func (s *CoordinatorService) finishTap(ctx context.Context, terminal *models.Terminal, uid, purpose string, res *TapResolution) *TapResolution {
	at := s.now()

	if s.taps != nil {
		entry := store.TapLogEntry{
			ID:         uuid.NewString(),
			TerminalId: terminal.ID,
			TenantId:   terminal.TenantId,
			BranchId:   terminal.BranchId,
			UidMasked:  models.MaskUID(uid),
			Purpose:    purpose,
			Resolution: res.Resolution,
			At:         at,
		}
		if err := s.taps.Insert(ctx, entry); err != nil {
			log.Errorf("tap log insert: %v", err)
		}
	}

	s.publish(comm.CardEvent{
		Type:       comm.EventTap,
		TenantId:   terminal.TenantId,
		BranchId:   terminal.BranchId,
		TerminalId: terminal.ID,
		Purpose:    purpose,
		Resolution: res.Resolution,
		UidMasked:  models.MaskUID(uid),
		At:         at,
	})

	return res
}

func (s *CoordinatorService) publish(ev comm.CardEvent) {
	if s.events != nil {
		s.events.PublishCardEvent(ev)
	}
}
