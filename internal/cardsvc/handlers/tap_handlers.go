package handlers

import (
	"encoding/json"
	"net/http"
)

type tapRequest struct {
	Uid string `json:"uid"`
}

// TapHandler is the kiosk ingestion path. The terminal authenticates with its
// secret header; authentication also doubles as the heartbeat. Every
// authenticated tap answers 200 with a resolution, never a hard failure that
// could jam the device.
func (h *Handler) TapHandler(w http.ResponseWriter, r *http.Request) {
	terminalId, ok := urlParamInt64(r, "terminalId")
	if !ok {
		h.badRequest(w, "invalid terminal id")
		return
	}

	terminal, err := h.terminals.Authenticate(r.Context(), terminalId, r.Header.Get("X-Terminal-Secret"))
	if err != nil {
		h.writeError(w, err, "")
		return
	}

	var req tapRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Uid == "" {
		h.badRequest(w, "invalid tap payload")
		return
	}

	resolution, err := h.coordinator.ResolveTap(r.Context(), terminal, req.Uid)
	if err != nil {
		h.writeError(w, err, "")
		return
	}

	h.CreateResponse(w, Response{
		Message: "tap " + resolution.Resolution,
		Code:    http.StatusOK,
		Data:    resolution,
	})
}
