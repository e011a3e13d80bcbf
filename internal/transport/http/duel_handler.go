package http

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"quiz-duel-service/internal/app"
)

// Handler serves the duel REST API and the websocket endpoint.
type Handler struct {
	service  *app.DuelService
	hub      *app.Hub
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

func NewHandler(service *app.DuelService, hub *app.Hub, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		service: service,
		hub:     hub,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type answerRequest struct {
	Answer string `json:"answer"`
}

func (h *Handler) connect(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Join(r.Context(), participantFrom(r.Context()))
	if err != nil {
		h.serviceErrorResponse(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, summary)
}

func (h *Handler) myCurrent(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.CurrentDuel(r.Context(), participantFrom(r.Context()))
	if err != nil {
		h.serviceErrorResponse(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, summary)
}

func (h *Handler) duelByID(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.DuelByID(r.Context(), chi.URLParam(r, "id"), participantFrom(r.Context()))
	if err != nil {
		h.serviceErrorResponse(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, summary)
}

func (h *Handler) submitAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := readJSON(w, r, &req); err != nil {
		h.badRequestResponse(w, err)
		return
	}
	result, err := h.service.SubmitAnswer(r.Context(), participantFrom(r.Context()), req.Answer)
	if err != nil {
		h.serviceErrorResponse(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, result)
}

func (h *Handler) myDuels(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	page, err := h.service.ListDuels(r.Context(), participantFrom(r.Context()), app.DuelListQuery{
		Pagination:    paginationFrom(query),
		SortBy:        query.Get("sortBy"),
		SortDirection: app.ParseSortDirection(query.Get("sortDirection")),
	})
	if err != nil {
		h.serviceErrorResponse(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, page)
}

func (h *Handler) myStatistic(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Statistics(r.Context(), participantFrom(r.Context()))
	if err != nil {
		h.serviceErrorResponse(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, stats)
}

func (h *Handler) top(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	page, err := h.service.Leaderboard(r.Context(), app.LeaderboardQuery{
		Pagination: paginationFrom(query),
		Sort:       app.ParseLeaderboardSort(query["sort"]),
	})
	if err != nil {
		h.serviceErrorResponse(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, page)
}

func (h *Handler) respond(w http.ResponseWriter, status int, data interface{}) {
	if err := writeJSON(w, status, data); err != nil {
		h.logger.Error("write response", zap.Error(err))
	}
}

// paginationFrom reads pageNumber/pageSize; invalid values fall back to defaults.
func paginationFrom(query url.Values) app.Pagination {
	number, _ := strconv.Atoi(query.Get("pageNumber"))
	size, _ := strconv.Atoi(query.Get("pageSize"))
	return app.Pagination{PageNumber: number, PageSize: size}
}
