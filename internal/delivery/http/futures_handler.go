package http

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"signalhub/internal/domain"
	"signalhub/internal/middleware"
	"signalhub/internal/usecase"
	"signalhub/pkg/logger"
)

// SettingsUsecase reads and writes futures settings
type SettingsUsecase interface {
	Get(ctx context.Context) (*domain.FuturesSettings, error)
	Update(ctx context.Context, actor domain.Actor, changes map[string]string) (*domain.FuturesSettings, error)
}

// LeaderboardUsecase manages traders and the leaderboard refresh
type LeaderboardUsecase interface {
	Refresh(ctx context.Context, force bool) (*usecase.RefreshReport, error)
	ListTraders(ctx context.Context, filter domain.TraderFilter) ([]*domain.Trader, error)
	Leaderboard(ctx context.Context, limit int) ([]*domain.Trader, error)
	ToggleFollow(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.Trader, error)
	ReleaseLock(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.Trader, error)
	TraderSignals(ctx context.Context, id uuid.UUID, filter domain.SignalFilter) ([]*domain.Signal, error)
	Stats(ctx context.Context) (*usecase.FuturesStats, error)
}

// FuturesHandler serves /api/futures
type FuturesHandler struct {
	base
	settings    SettingsUsecase
	leaderboard LeaderboardUsecase
}

// NewFuturesHandler creates a new FuturesHandler
func NewFuturesHandler(settings SettingsUsecase, leaderboard LeaderboardUsecase, log *logger.Logger) *FuturesHandler {
	return &FuturesHandler{base: base{logger: log}, settings: settings, leaderboard: leaderboard}
}

// GetSettings returns the typed futures settings
// GET /api/futures/settings
func (h *FuturesHandler) GetSettings(c echo.Context) error {
	settings, err := h.settings.Get(c.Request().Context())
	if err != nil {
		return h.respondError(c, err)
	}
	return SuccessResponse(c, settings)
}

// UpdateSettings merges the posted keys over the stored settings
// PUT /api/futures/settings
func (h *FuturesHandler) UpdateSettings(c echo.Context) error {
	var body map[string]interface{}
	if err := c.Bind(&body); err != nil {
		return BadRequestResponse(c, "Invalid request payload")
	}
	if len(body) == 0 {
		return BadRequestResponse(c, "No settings supplied")
	}

	changes := make(map[string]string, len(body))
	for key, value := range body {
		changes[key] = settingValue(value)
	}

	settings, err := h.settings.Update(c.Request().Context(), middleware.Actor(c), changes)
	if err != nil {
		return h.respondError(c, err)
	}
	return SuccessResponse(c, settings)
}

// settingValue flattens a JSON value into the stored string form. Lists
// become comma separated.
func settingValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case []interface{}:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			parts = append(parts, settingValue(item))
		}
		return strings.Join(parts, ",")
	default:
		return fmt.Sprint(val)
	}
}

// ListTraders returns stored traders
// GET /api/futures/traders
func (h *FuturesHandler) ListTraders(c echo.Context) error {
	return h.listTraders(c, false)
}

// ListFollowed returns followed traders
// GET /api/futures/traders/followed
func (h *FuturesHandler) ListFollowed(c echo.Context) error {
	return h.listTraders(c, true)
}

func (h *FuturesHandler) listTraders(c echo.Context, followedOnly bool) error {
	limit, offset := pageQuery(c)
	filter := domain.TraderFilter{
		FollowedOnly: followedOnly,
		OrderBy:      domain.RankCriterion(c.QueryParam("order_by")),
		Limit:        limit,
		Offset:       offset,
	}
	traders, err := h.leaderboard.ListTraders(c.Request().Context(), filter)
	if err != nil {
		return h.respondError(c, err)
	}
	return SuccessResponse(c, traders)
}

// ToggleFollow flips the followed flag and locks it
// POST /api/futures/traders/:id/follow
func (h *FuturesHandler) ToggleFollow(c echo.Context) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return h.respondError(c, err)
	}
	trader, err := h.leaderboard.ToggleFollow(c.Request().Context(), middleware.Actor(c), id)
	if err != nil {
		return h.respondError(c, err)
	}
	return SuccessResponse(c, trader)
}

// ReleaseLock hands the trader back to the automatic follow policy
// DELETE /api/futures/traders/:id/follow-lock
func (h *FuturesHandler) ReleaseLock(c echo.Context) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return h.respondError(c, err)
	}
	trader, err := h.leaderboard.ReleaseLock(c.Request().Context(), middleware.Actor(c), id)
	if err != nil {
		return h.respondError(c, err)
	}
	return SuccessResponse(c, trader)
}

// TraderSignals returns futures signals copied from a trader
// GET /api/futures/traders/:id/signals
func (h *FuturesHandler) TraderSignals(c echo.Context) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return h.respondError(c, err)
	}
	limit, offset := pageQuery(c)
	signals, err := h.leaderboard.TraderSignals(c.Request().Context(), id, domain.SignalFilter{
		Status: c.QueryParam("status"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		return h.respondError(c, err)
	}
	return SuccessResponse(c, signals)
}

// Leaderboard returns traders ranked by the configured criterion
// GET /api/futures/leaderboard
func (h *FuturesHandler) Leaderboard(c echo.Context) error {
	limit, _ := pageQuery(c)
	traders, err := h.leaderboard.Leaderboard(c.Request().Context(), limit)
	if err != nil {
		return h.respondError(c, err)
	}
	return SuccessResponse(c, traders)
}

// Sync refreshes the leaderboard now, ignoring the update interval
// POST /api/futures/leaderboard/sync
func (h *FuturesHandler) Sync(c echo.Context) error {
	report, err := h.leaderboard.Refresh(c.Request().Context(), true)
	if err != nil {
		return h.respondError(c, err)
	}
	return SuccessMessageResponse(c, "Leaderboard refreshed", report)
}

// Stats returns the futures summary
// GET /api/futures/stats
func (h *FuturesHandler) Stats(c echo.Context) error {
	stats, err := h.leaderboard.Stats(c.Request().Context())
	if err != nil {
		return h.respondError(c, err)
	}
	return SuccessResponse(c, stats)
}
