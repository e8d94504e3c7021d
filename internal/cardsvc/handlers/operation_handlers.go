package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/tapgate/card-services/internal/cardsvc/models"
)

// PendingOperationView is the masked projection returned to admin clients.
// Masking happens here at the boundary; stored data keeps the full UID for
// the kiosk path.
type PendingOperationView struct {
	BranchId          int64            `json:"branch_id"`
	MemberId          int64            `json:"member_id"`
	Purpose           string           `json:"purpose"`
	ExpectedUidMasked string           `json:"expected_uid_masked,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
	ExpiresAt         time.Time        `json:"expires_at"`
	IsExpired         bool             `json:"is_expired"`
	Mismatch          *models.Mismatch `json:"mismatch,omitempty"`
}

func newPendingOperationView(op *models.PendingOperation) *PendingOperationView {
	return &PendingOperationView{
		BranchId:          op.BranchId,
		MemberId:          op.MemberId,
		Purpose:           op.Purpose,
		ExpectedUidMasked: models.MaskUID(op.ExpectedUid),
		CreatedAt:         op.CreatedAt,
		ExpiresAt:         op.ExpiresAt,
		IsExpired:         op.IsExpired(time.Now()),
		Mismatch:          op.Mismatch,
	}
}

type createOperationRequest struct {
	BranchId int64 `json:"branch_id"`
}

func (h *Handler) createOperation(w http.ResponseWriter, r *http.Request, purpose string) {
	memberId, ok := urlParamInt64(r, "memberId")
	if !ok {
		h.badRequest(w, "invalid member id")
		return
	}

	var req createOperationRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.badRequest(w, "invalid request body")
			return
		}
	}

	op, err := h.coordinator.CreateOperation(r.Context(), req.BranchId, memberId, purpose)
	if err != nil {
		h.writeError(w, err, "")
		return
	}

	h.CreateResponse(w, Response{
		Message: "pending card operation created",
		Code:    http.StatusCreated,
		Data:    newPendingOperationView(op),
	})
}

func (h *Handler) AssignCardHandler(w http.ResponseWriter, r *http.Request) {
	h.createOperation(w, r, models.PurposeOnboard)
}

func (h *Handler) ReplaceCardHandler(w http.ResponseWriter, r *http.Request) {
	h.createOperation(w, r, models.PurposeReplace)
}

func (h *Handler) ReclaimCardHandler(w http.ResponseWriter, r *http.Request) {
	h.createOperation(w, r, models.PurposeReclaim)
}

func (h *Handler) RestartOperationHandler(w http.ResponseWriter, r *http.Request) {
	memberId, ok := urlParamInt64(r, "memberId")
	if !ok {
		h.badRequest(w, "invalid member id")
		return
	}

	var req createOperationRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.badRequest(w, "invalid request body")
			return
		}
	}

	op, err := h.coordinator.RestartOperation(r.Context(), req.BranchId, memberId)
	if err != nil {
		h.writeError(w, err, "")
		return
	}

	h.CreateResponse(w, Response{
		Message: "pending card operation restarted",
		Code:    http.StatusOK,
		Data:    newPendingOperationView(op),
	})
}

func (h *Handler) GetPendingOperationHandler(w http.ResponseWriter, r *http.Request) {
	branchId, ok := urlParamInt64(r, "branchId")
	if !ok {
		h.badRequest(w, "invalid branch id")
		return
	}

	op, err := h.coordinator.GetOperation(r.Context(), branchId)
	if err != nil {
		h.writeError(w, err, "")
		return
	}

	if op == nil {
		h.CreateResponse(w, Response{
			Message: "no pending card operation",
			Code:    http.StatusOK,
			Data:    nil,
		})
		return
	}

	h.CreateResponse(w, Response{
		Message: "pending card operation",
		Code:    http.StatusOK,
		Data:    newPendingOperationView(op),
	})
}

func (h *Handler) CancelOperationHandler(w http.ResponseWriter, r *http.Request) {
	branchId, ok := urlParamInt64(r, "branchId")
	if !ok {
		h.badRequest(w, "invalid branch id")
		return
	}

	if err := h.coordinator.CancelOperation(r.Context(), branchId); err != nil {
		h.writeError(w, err, "")
		return
	}

	h.CreateResponse(w, Response{
		Message: "pending card operation cancelled",
		Code:    http.StatusOK,
	})
}
