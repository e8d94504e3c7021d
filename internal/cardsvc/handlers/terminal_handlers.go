package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/tapgate/card-services/internal/cardsvc/models"
)

type TerminalView struct {
	ID         int64      `json:"id"`
	TenantId   int64      `json:"tenant_id"`
	BranchId   int64      `json:"branch_id"`
	Name       string     `json:"name"`
	IsActive   bool       `json:"is_active"`
	LastSeenAt *time.Time `json:"last_seen_at,omitempty"`
}

func newTerminalView(t *models.Terminal) *TerminalView {
	return &TerminalView{
		ID:         t.ID,
		TenantId:   t.TenantId,
		BranchId:   t.BranchId,
		Name:       t.Name,
		IsActive:   t.IsActive,
		LastSeenAt: t.LastSeenAt,
	}
}

type registerTerminalRequest struct {
	TenantId int64  `json:"tenant_id"`
	BranchId int64  `json:"branch_id"`
	Name     string `json:"name"`
}

// registeredTerminal carries the plaintext secret exactly once. It is not
// retrievable afterwards.
type registeredTerminal struct {
	Terminal *TerminalView `json:"terminal"`
	Secret   string        `json:"secret"`
}

func (h *Handler) RegisterTerminalHandler(w http.ResponseWriter, r *http.Request) {
	var req registerTerminalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, "invalid request body")
		return
	}
	if req.TenantId <= 0 || req.BranchId <= 0 || req.Name == "" {
		h.badRequest(w, "tenant_id, branch_id and name are required")
		return
	}

	terminal, secret, err := h.terminals.Register(r.Context(), req.TenantId, req.BranchId, req.Name)
	if err != nil {
		h.writeError(w, err, "")
		return
	}

	h.CreateResponse(w, Response{
		Message: "terminal registered",
		Code:    http.StatusCreated,
		Data: registeredTerminal{
			Terminal: newTerminalView(terminal),
			Secret:   secret,
		},
	})
}

func (h *Handler) ListTerminalsHandler(w http.ResponseWriter, r *http.Request) {
	tenantId := queryInt64(r, "tenantId")
	if tenantId <= 0 {
		h.badRequest(w, "tenantId is required")
		return
	}

	terminals, err := h.terminals.List(r.Context(), tenantId, queryInt64(r, "branchId"))
	if err != nil {
		h.writeError(w, err, "")
		return
	}

	views := make([]*TerminalView, 0, len(terminals))
	for _, t := range terminals {
		views = append(views, newTerminalView(t))
	}

	h.CreateResponse(w, Response{
		Message: "terminals",
		Code:    http.StatusOK,
		Data:    views,
	})
}

func (h *Handler) RotateSecretHandler(w http.ResponseWriter, r *http.Request) {
	terminalId, ok := urlParamInt64(r, "terminalId")
	if !ok {
		h.badRequest(w, "invalid terminal id")
		return
	}

	secret, err := h.terminals.RotateSecret(r.Context(), terminalId)
	if err != nil {
		h.writeError(w, err, "")
		return
	}

	h.CreateResponse(w, Response{
		Message: "terminal secret rotated",
		Code:    http.StatusOK,
		Data:    map[string]string{"secret": secret},
	})
}

type setActiveRequest struct {
	IsActive bool `json:"is_active"`
}

func (h *Handler) SetActiveTerminalHandler(w http.ResponseWriter, r *http.Request) {
	terminalId, ok := urlParamInt64(r, "terminalId")
	if !ok {
		h.badRequest(w, "invalid terminal id")
		return
	}

	var req setActiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, "invalid request body")
		return
	}

	if err := h.terminals.SetActive(r.Context(), terminalId, req.IsActive); err != nil {
		h.writeError(w, err, "")
		return
	}

	h.CreateResponse(w, Response{
		Message: "terminal updated",
		Code:    http.StatusOK,
	})
}
