package handlers

import (
	"encoding/json"
	"net/http"
	"os"
	"strconv"

	"github.com/tapgate/card-services/internal/cardsvc/models"
	"github.com/tapgate/card-services/internal/cardsvc/service"

	"github.com/go-chi/chi"
	"github.com/go-chi/jwtauth"
)

type Handler struct {
	tokenAuth   *jwtauth.JWTAuth
	coordinator *service.CoordinatorService
	cards       *service.CardService
	terminals   *service.TerminalService
}

func NewHandler(coordinator *service.CoordinatorService, cards *service.CardService, terminals *service.TerminalService) *Handler {
	return &Handler{
		coordinator: coordinator,
		cards:       cards,
		terminals:   terminals,
	}
}

type Response struct {
	Message string      `json:"message"`
	Code    int         `json:"code"`
	Data    interface{} `json:"data"`
	Error   string      `json:"error"`
}

func (h *Handler) CreateResponse(w http.ResponseWriter, rsp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(rsp.Code)

	json.NewEncoder(w).Encode(rsp)
}

// writeError maps the domain error kinds onto status codes; the dashboard
// branches on the stable kind string in the error field.
func (h *Handler) writeError(w http.ResponseWriter, err error, msg string) {
	code := http.StatusInternalServerError
	kind := "internal"

	switch models.KindOf(err) {
	case models.KindConflict:
		code = http.StatusConflict
		kind = models.KindConflict
	case models.KindNotFound:
		code = http.StatusNotFound
		kind = models.KindNotFound
	case models.KindInvalidState:
		code = http.StatusUnprocessableEntity
		kind = models.KindInvalidState
	case models.KindAuth:
		code = http.StatusUnauthorized
		kind = models.KindAuth
	}

	if msg == "" {
		msg = err.Error()
	}

	h.CreateResponse(w, Response{
		Message: msg,
		Code:    code,
		Error:   kind,
	})
}

func (h *Handler) badRequest(w http.ResponseWriter, msg string) {
	h.CreateResponse(w, Response{
		Message: msg,
		Code:    http.StatusBadRequest,
		Error:   "bad_request",
	})
}

func urlParamInt64(r *http.Request, key string) (int64, bool) {
	v, err := strconv.ParseInt(chi.URLParam(r, key), 10, 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

func queryInt64(r *http.Request, key string) int64 {
	v, err := strconv.ParseInt(r.URL.Query().Get(key), 10, 64)
	if err != nil {
		return 0
	}
	return v
}

func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	rsp := Response{
		Message: "card service is running at port " + os.Getenv("CARD_SERVICE_PORT"),
		Code:    200,
		Data:    nil,
	}
	json.NewEncoder(w).Encode(rsp)
}
