package ports

import (
	"context"
	"time"

	"sniperBot/internal/domain"
)

// TradingRepository stores Trade aggregates together with their Orders.
type TradingRepository interface {
	SaveTrade(ctx context.Context, trade *domain.Trade) error
	// FindTradeByID returns nil, nil if the trade does not exist.
	FindTradeByID(ctx context.Context, id string) (*domain.Trade, error)
	// FindTradesByUserID returns the newest trades first; limit <= 0 means no limit.
	FindTradesByUserID(ctx context.Context, userID string, limit int) ([]*domain.Trade, error)
	FindTradesBySymbol(ctx context.Context, symbol string, limit int) ([]*domain.Trade, error)
	// FindActiveTradesByUserID returns the user's PENDING and EXECUTING trades.
	FindActiveTradesByUserID(ctx context.Context, userID string) ([]*domain.Trade, error)
	// UpdateTrade returns an error wrapping ErrNotFound for unknown trades.
	UpdateTrade(ctx context.Context, trade *domain.Trade) error
	DeleteTrade(ctx context.Context, id string) error
	// GetTradingMetrics aggregates trades created in [from, to]; zero times are open bounds.
	GetTradingMetrics(ctx context.Context, userID string, from, to time.Time) (*domain.TradingMetrics, error)
}
