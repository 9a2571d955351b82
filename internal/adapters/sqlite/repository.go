package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"sniperBot/internal/domain"
	"sniperBot/internal/ports"
	"sniperBot/internal/strategy/analytics"

	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
)

// Repository implements ports.TradingRepository using SQLite. A trade and its
// orders are always written in one transaction.
type Repository struct {
	db     *sql.DB
	logger ports.Logger
}

// Config holds configuration for the SQLite repository.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// NewRepository opens (and if needed creates) the database at cfg.DBPath.
func NewRepository(cfg Config) (*Repository, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite repository")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/sniper_bot.db"
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		err = fmt.Errorf("failed to open database at '%s': %w: %w", dbPath, ports.ErrDBConnection, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("failed to ping database at '%s': %w: %w", dbPath, ports.ErrDBConnection, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cfg.Logger.Info(context.Background(), "SQLite database connection established", map[string]interface{}{"path": dbPath})

	repo := &Repository{db: db, logger: cfg.Logger}
	if err := repo.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize database schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}
	return repo, nil
}

func (r *Repository) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS trades (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		symbol TEXT NOT NULL,
		status TEXT NOT NULL,
		is_auto_snipe INTEGER NOT NULL,
		confidence_score REAL NOT NULL,
		paper_trade INTEGER NOT NULL,
		strategy TEXT NOT NULL DEFAULT '',
		stop_loss_percent REAL NOT NULL DEFAULT 0,
		take_profit_percent REAL NOT NULL DEFAULT 0,
		position_size_usdt REAL NOT NULL DEFAULT 0,
		quantity REAL NOT NULL DEFAULT 0,
		entry_price TEXT NULL,
		exit_price TEXT NULL,
		total_cost TEXT NULL,
		total_revenue TEXT NULL,
		realized_pnl TEXT NULL,
		error_message TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		execution_started_at TIMESTAMP NULL,
		execution_completed_at TIMESTAMP NULL
	);

	CREATE TABLE IF NOT EXISTS orders (
		id TEXT PRIMARY KEY,
		trade_id TEXT NOT NULL REFERENCES trades(id) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		symbol TEXT NOT NULL,
		side TEXT NOT NULL,
		type TEXT NOT NULL,
		status TEXT NOT NULL,
		quantity REAL NOT NULL DEFAULT 0,
		quote_order_qty REAL NOT NULL DEFAULT 0,
		price REAL NOT NULL DEFAULT 0,
		stop_price REAL NOT NULL DEFAULT 0,
		time_in_force TEXT NOT NULL DEFAULT '',
		client_order_id TEXT NOT NULL DEFAULT '',
		exchange_order_id TEXT NOT NULL DEFAULT '',
		executed_qty REAL NOT NULL DEFAULT 0,
		avg_price REAL NOT NULL DEFAULT 0,
		fees REAL NOT NULL DEFAULT 0,
		strategy TEXT NOT NULL DEFAULT '',
		confidence_score REAL NOT NULL DEFAULT 0,
		reject_reason TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_trades_user_created ON trades (user_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_trades_symbol_created ON trades (symbol, created_at);
	CREATE INDEX IF NOT EXISTS idx_trades_user_status ON trades (user_id, status);
	CREATE INDEX IF NOT EXISTS idx_orders_trade ON orders (trade_id, seq);
	`
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	if r.db != nil {
		r.logger.Info(context.Background(), "Closing SQLite database connection")
		return r.db.Close()
	}
	return nil
}

const tradeColumns = `id, user_id, symbol, status, is_auto_snipe, confidence_score, paper_trade, strategy,
	stop_loss_percent, take_profit_percent, position_size_usdt, quantity,
	entry_price, exit_price, total_cost, total_revenue, realized_pnl, error_message,
	created_at, updated_at, execution_started_at, execution_completed_at`

const orderColumns = `id, symbol, side, type, status, quantity, quote_order_qty, price, stop_price,
	time_in_force, client_order_id, exchange_order_id, executed_qty, avg_price, fees,
	strategy, confidence_score, reject_reason, created_at, updated_at`

// SaveTrade inserts a new trade with its orders.
func (r *Repository) SaveTrade(ctx context.Context, trade *domain.Trade) error {
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		const query = `INSERT INTO trades (` + tradeColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
		if _, err := tx.ExecContext(ctx, query, tradeArgs(trade)...); err != nil {
			return err
		}
		return insertOrders(ctx, tx, trade)
	})
	if err != nil {
		if isConstraintViolation(err) {
			return fmt.Errorf("failed to save trade %s: %w: %w", trade.ID, ports.ErrDuplicateEntry, err)
		}
		return fmt.Errorf("failed to save trade %s: %w: %w", trade.ID, ports.ErrQueryFailed, err)
	}
	r.logger.Debug(ctx, "Trade saved", map[string]interface{}{"tradeID": trade.ID, "symbol": trade.Symbol, "status": trade.Status})
	return nil
}

// UpdateTrade replaces the stored trade row and its orders.
func (r *Repository) UpdateTrade(ctx context.Context, trade *domain.Trade) error {
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		const query = `UPDATE trades SET
			user_id = ?, symbol = ?, status = ?, is_auto_snipe = ?, confidence_score = ?, paper_trade = ?, strategy = ?,
			stop_loss_percent = ?, take_profit_percent = ?, position_size_usdt = ?, quantity = ?,
			entry_price = ?, exit_price = ?, total_cost = ?, total_revenue = ?, realized_pnl = ?, error_message = ?,
			created_at = ?, updated_at = ?, execution_started_at = ?, execution_completed_at = ?
		WHERE id = ?`
		args := append(tradeArgs(trade)[1:], trade.ID)
		result, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			return fmt.Errorf("trade %s: %w", trade.ID, ports.ErrNotFound)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM orders WHERE trade_id = ?`, trade.ID); err != nil {
			return err
		}
		return insertOrders(ctx, tx, trade)
	})
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return fmt.Errorf("failed to update trade: %w", err)
		}
		return fmt.Errorf("failed to update trade %s: %w: %w", trade.ID, ports.ErrUpdateFailed, err)
	}
	r.logger.Debug(ctx, "Trade updated", map[string]interface{}{"tradeID": trade.ID, "status": trade.Status, "orders": len(trade.Orders)})
	return nil
}

// DeleteTrade removes a trade and, by cascade, its orders.
func (r *Repository) DeleteTrade(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM trades WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete trade %s: %w: %w", id, ports.ErrDeleteFailed, err)
	}
	return nil
}

// FindTradeByID returns nil, nil when no trade has the id.
func (r *Repository) FindTradeByID(ctx context.Context, id string) (*domain.Trade, error) {
	trades, err := r.queryTrades(ctx, `SELECT `+tradeColumns+` FROM trades WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(trades) == 0 {
		return nil, nil
	}
	return trades[0], nil
}

// FindTradesByUserID returns the user's trades, newest first.
func (r *Repository) FindTradesByUserID(ctx context.Context, userID string, limit int) ([]*domain.Trade, error) {
	return r.queryTrades(ctx, `SELECT `+tradeColumns+` FROM trades WHERE user_id = ? ORDER BY created_at DESC LIMIT ?`, userID, sqlLimit(limit))
}

// FindTradesBySymbol returns trades on symbol, newest first.
func (r *Repository) FindTradesBySymbol(ctx context.Context, symbol string, limit int) ([]*domain.Trade, error) {
	return r.queryTrades(ctx, `SELECT `+tradeColumns+` FROM trades WHERE symbol = ? ORDER BY created_at DESC LIMIT ?`, symbol, sqlLimit(limit))
}

// FindActiveTradesByUserID returns PENDING and EXECUTING trades.
func (r *Repository) FindActiveTradesByUserID(ctx context.Context, userID string) ([]*domain.Trade, error) {
	return r.queryTrades(ctx,
		`SELECT `+tradeColumns+` FROM trades WHERE user_id = ? AND status IN (?, ?) ORDER BY created_at DESC`,
		userID, domain.TradeStatusPending, domain.TradeStatusExecuting)
}

// GetTradingMetrics summarises the user's trades created within [from, to].
func (r *Repository) GetTradingMetrics(ctx context.Context, userID string, from, to time.Time) (*domain.TradingMetrics, error) {
	var (
		clauses = []string{"user_id = ?"}
		args    = []interface{}{userID}
	)
	if !from.IsZero() {
		clauses = append(clauses, "created_at >= ?")
		args = append(args, from.UTC())
	}
	if !to.IsZero() {
		clauses = append(clauses, "created_at <= ?")
		args = append(args, to.UTC())
	}
	query := `SELECT ` + tradeColumns + ` FROM trades WHERE ` + strings.Join(clauses, " AND ") + ` ORDER BY created_at ASC`

	trades, err := r.queryTrades(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return analytics.Summarize(userID, trades, from, to), nil
}

// --- helpers ---

func (r *Repository) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w: %w", ports.ErrDBConnection, err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (r *Repository) queryTrades(ctx context.Context, query string, args ...interface{}) ([]*domain.Trade, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w: %w", ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	var trades []*domain.Trade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w: %w", ports.ErrQueryFailed, err)
		}
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trade rows: %w: %w", ports.ErrQueryFailed, err)
	}
	rows.Close()

	for _, t := range trades {
		orders, err := r.loadOrders(ctx, t.ID)
		if err != nil {
			return nil, err
		}
		t.Orders = orders
	}
	return trades, nil
}

func (r *Repository) loadOrders(ctx context.Context, tradeID string) ([]*domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE trade_id = ? ORDER BY seq ASC`, tradeID)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders for trade %s: %w: %w", tradeID, ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		var o domain.Order
		if err := rows.Scan(
			&o.ID, &o.Symbol, &o.Side, &o.Type, &o.Status, &o.Quantity, &o.QuoteOrderQty, &o.Price, &o.StopPrice,
			&o.TimeInForce, &o.ClientOrderID, &o.ExchangeOrderID, &o.ExecutedQty, &o.AvgPrice, &o.Fees,
			&o.Strategy, &o.ConfidenceScore, &o.RejectReason, &o.CreatedAt, &o.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan order for trade %s: %w: %w", tradeID, ports.ErrQueryFailed, err)
		}
		orders = append(orders, &o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating order rows: %w: %w", ports.ErrQueryFailed, err)
	}
	return orders, nil
}

func insertOrders(ctx context.Context, tx *sql.Tx, trade *domain.Trade) error {
	if len(trade.Orders) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO orders (trade_id, seq, `+orderColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, o := range trade.Orders {
		if _, err := stmt.ExecContext(ctx,
			trade.ID, i,
			o.ID, o.Symbol, o.Side, o.Type, o.Status, o.Quantity, o.QuoteOrderQty, o.Price, o.StopPrice,
			o.TimeInForce, o.ClientOrderID, o.ExchangeOrderID, o.ExecutedQty, o.AvgPrice, o.Fees,
			o.Strategy, o.ConfidenceScore, o.RejectReason, o.CreatedAt, o.UpdatedAt,
		); err != nil {
			return fmt.Errorf("insert order %s: %w", o.ID, err)
		}
	}
	return nil
}

func tradeArgs(t *domain.Trade) []interface{} {
	return []interface{}{
		t.ID, t.UserID, t.Symbol, t.Status, t.IsAutoSnipe, t.ConfidenceScore, t.PaperTrade, t.Strategy,
		t.StopLossPercent, t.TakeProfitPercent, t.PositionSizeUSDT, t.Quantity,
		moneyValue(t.EntryPrice), moneyValue(t.ExitPrice), moneyValue(t.TotalCost), moneyValue(t.TotalRevenue), moneyValue(t.RealizedPnL),
		t.ErrorMessage, t.CreatedAt, t.UpdatedAt, nullTime(t.ExecutionStartedAt), nullTime(t.ExecutionCompletedAt),
	}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTrade(row rowScanner) (*domain.Trade, error) {
	var (
		t                               domain.Trade
		entry, exit, cost, revenue, pnl sql.NullString
		startedAt, completedAt          sql.NullTime
	)
	if err := row.Scan(
		&t.ID, &t.UserID, &t.Symbol, &t.Status, &t.IsAutoSnipe, &t.ConfidenceScore, &t.PaperTrade, &t.Strategy,
		&t.StopLossPercent, &t.TakeProfitPercent, &t.PositionSizeUSDT, &t.Quantity,
		&entry, &exit, &cost, &revenue, &pnl, &t.ErrorMessage,
		&t.CreatedAt, &t.UpdatedAt, &startedAt, &completedAt,
	); err != nil {
		return nil, err
	}

	var err error
	if t.EntryPrice, err = parseMoney(entry); err != nil {
		return nil, err
	}
	if t.ExitPrice, err = parseMoney(exit); err != nil {
		return nil, err
	}
	if t.TotalCost, err = parseMoney(cost); err != nil {
		return nil, err
	}
	if t.TotalRevenue, err = parseMoney(revenue); err != nil {
		return nil, err
	}
	if t.RealizedPnL, err = parseMoney(pnl); err != nil {
		return nil, err
	}
	if startedAt.Valid {
		ts := startedAt.Time.UTC()
		t.ExecutionStartedAt = &ts
	}
	if completedAt.Valid {
		ts := completedAt.Time.UTC()
		t.ExecutionCompletedAt = &ts
	}
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
	return &t, nil
}

// moneyValue stores amounts as exact decimal strings.
func moneyValue(m *domain.Money) sql.NullString {
	if m == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: m.Amount.String(), Valid: true}
}

func parseMoney(s sql.NullString) (*domain.Money, error) {
	if !s.Valid {
		return nil, nil
	}
	d, err := decimal.NewFromString(s.String)
	if err != nil {
		return nil, fmt.Errorf("parse amount %q: %w", s.String, err)
	}
	return &domain.Money{Amount: d, Currency: domain.QuoteAsset}, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

// sqlLimit maps "no limit" to SQLite's LIMIT -1.
func sqlLimit(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}

func isConstraintViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrConstraint
	}
	return false
}
