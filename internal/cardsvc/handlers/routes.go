package handlers

import (
	"os"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/jwtauth"
	log "github.com/sirupsen/logrus"
)

func (h *Handler) SetRoutes(r *chi.Mux) {
	r.Route("/v1", func(r chi.Router) {

		// kiosk-facing, authenticated by terminal secret header
		r.Post("/terminals/{terminalId}/tap", h.TapHandler)

		// Secure admin routes
		r.Group(func(r chi.Router) {
			r.Use(jwtauth.Verifier(h.tokenAuth))
			r.Use(jwtauth.Authenticator)

			r.Get("/health", h.HealthHandler)

			r.Post("/members/{memberId}/card:assign", h.AssignCardHandler)
			r.Post("/members/{memberId}/card:replace", h.ReplaceCardHandler)
			r.Post("/members/{memberId}/card:reclaim", h.ReclaimCardHandler)
			r.Post("/members/{memberId}/pending-card-operation:restart", h.RestartOperationHandler)

			r.Get("/branches/{branchId}/pending-card-operation", h.GetPendingOperationHandler)
			r.Post("/branches/{branchId}/pending-card-operation:cancel", h.CancelOperationHandler)

			r.Post("/inventory-cards/bulk", h.BulkUploadHandler)
			r.Get("/inventory-cards", h.ListCardsHandler)
			r.Get("/inventory-cards/{uid}", h.GetCardHandler)
			r.Post("/inventory-cards/{uid}:disable", h.DisableCardHandler)

			r.Post("/terminals", h.RegisterTerminalHandler)
			r.Get("/terminals", h.ListTerminalsHandler)
			r.Post("/terminals/{terminalId}/rotate-secret", h.RotateSecretHandler)
			r.Post("/terminals/{terminalId}/set-active", h.SetActiveTerminalHandler)
		})
	})
}

func (h *Handler) InitAuth() {
	var jwtKey = os.Getenv("JWT_SECRET_KEY")
	h.tokenAuth = jwtauth.New("HS256", []byte(jwtKey), nil)

	expirationTime := time.Now().Add(7 * 24 * time.Hour).Unix()

	_, tokenString, _ := h.tokenAuth.Encode(map[string]interface{}{
		"service_id": 8003022,
		"exp":        expirationTime,
	})

	// For debugging only, comment it out in production
	log.Infof("DEBUG: JWT for testing expires soon : %s", tokenString)
}
