package http

import (
	"context"

	"github.com/labstack/echo/v4"

	"signalhub/internal/domain"
	"signalhub/pkg/logger"
)

// MarketUsecase reads market data
type MarketUsecase interface {
	Price(ctx context.Context, symbol string) (domain.Price, error)
	Sentiment(ctx context.Context) (domain.Sentiment, error)
}

// MarketHandler serves /api/market
type MarketHandler struct {
	base
	market MarketUsecase
}

// NewMarketHandler creates a new MarketHandler
func NewMarketHandler(market MarketUsecase, log *logger.Logger) *MarketHandler {
	return &MarketHandler{base: base{logger: log}, market: market}
}

// Price returns the latest quote
// GET /api/market/price/:symbol
func (h *MarketHandler) Price(c echo.Context) error {
	price, err := h.market.Price(c.Request().Context(), c.Param("symbol"))
	if err != nil {
		return h.respondError(c, err)
	}
	return SuccessResponse(c, price)
}

// Sentiment returns the fear and greed index
// GET /api/market/sentiment
func (h *MarketHandler) Sentiment(c echo.Context) error {
	s, err := h.market.Sentiment(c.Request().Context())
	if err != nil {
		return h.respondError(c, err)
	}
	return SuccessResponse(c, s)
}
