package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/tapgate/card-services/internal/cardsvc/models"

	"github.com/go-chi/chi"
)

// CardView hides the full UID from admin clients.
type CardView struct {
	UidMasked        string `json:"uid_masked"`
	TenantId         int64  `json:"tenant_id"`
	BranchId         int64  `json:"branch_id"`
	Status           string `json:"status"`
	BatchId          string `json:"batch_id,omitempty"`
	AssignedMemberId *int64 `json:"assigned_member_id,omitempty"`
}

func newCardView(c *models.Card) *CardView {
	return &CardView{
		UidMasked:        models.MaskUID(c.UID),
		TenantId:         c.TenantId,
		BranchId:         c.BranchId,
		Status:           c.Status,
		BatchId:          c.BatchId,
		AssignedMemberId: c.AssignedMemberId,
	}
}

type bulkUploadRequest struct {
	TenantId int64    `json:"tenant_id"`
	BranchId int64    `json:"branch_id"`
	Uids     []string `json:"uids"`
	BatchId  string   `json:"batch_id"`
}

func (h *Handler) BulkUploadHandler(w http.ResponseWriter, r *http.Request) {
	var req bulkUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, "invalid request body")
		return
	}
	if req.TenantId <= 0 || req.BranchId <= 0 {
		h.badRequest(w, "tenant_id and branch_id are required")
		return
	}

	result, err := h.cards.BulkUpload(r.Context(), req.TenantId, req.BranchId, req.Uids, req.BatchId)
	if err != nil {
		h.writeError(w, err, "")
		return
	}

	h.CreateResponse(w, Response{
		Message: "inventory batch uploaded",
		Code:    http.StatusCreated,
		Data:    result,
	})
}

func (h *Handler) ListCardsHandler(w http.ResponseWriter, r *http.Request) {
	tenantId := queryInt64(r, "tenantId")
	branchId := queryInt64(r, "branchId")
	if tenantId <= 0 || branchId <= 0 {
		h.badRequest(w, "tenantId and branchId are required")
		return
	}

	cards, err := h.cards.List(r.Context(), tenantId, branchId,
		r.URL.Query().Get("status"), r.URL.Query().Get("batchId"))
	if err != nil {
		h.writeError(w, err, "")
		return
	}

	views := make([]*CardView, 0, len(cards))
	for _, c := range cards {
		views = append(views, newCardView(c))
	}

	h.CreateResponse(w, Response{
		Message: "inventory cards",
		Code:    http.StatusOK,
		Data:    views,
	})
}

func (h *Handler) GetCardHandler(w http.ResponseWriter, r *http.Request) {
	tenantId := queryInt64(r, "tenantId")
	branchId := queryInt64(r, "branchId")
	uid := chi.URLParam(r, "uid")
	if tenantId <= 0 || branchId <= 0 || uid == "" {
		h.badRequest(w, "tenantId, branchId and uid are required")
		return
	}

	card, err := h.cards.Query(r.Context(), tenantId, branchId, uid)
	if err != nil {
		h.writeError(w, err, "")
		return
	}

	h.CreateResponse(w, Response{
		Message: "inventory card",
		Code:    http.StatusOK,
		Data:    newCardView(card),
	})
}

func (h *Handler) DisableCardHandler(w http.ResponseWriter, r *http.Request) {
	tenantId := queryInt64(r, "tenantId")
	branchId := queryInt64(r, "branchId")
	uid := chi.URLParam(r, "uid")
	if tenantId <= 0 || branchId <= 0 || uid == "" {
		h.badRequest(w, "tenantId, branchId and uid are required")
		return
	}

	if err := h.cards.Disable(r.Context(), tenantId, branchId, uid); err != nil {
		h.writeError(w, err, "")
		return
	}

	h.CreateResponse(w, Response{
		Message: "card disabled",
		Code:    http.StatusOK,
	})
}
