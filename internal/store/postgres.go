package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"rental-platform/internal/model"
)

// Postgres is the shared-database store. Transactions take row locks on the
// products they touch, so the booking protocol stays correct across any
// number of stateless service processes.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(ctx context.Context, connString string) (*Postgres, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	config.MaxConns = 25
	config.MinConns = 5
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Postgres{pool: pool}, nil
}

func (p *Postgres) Close() {
	p.pool.Close()
}

func (p *Postgres) Migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS products (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			total_quantity INTEGER NOT NULL CHECK (total_quantity >= 0),
			maintenance_quantity INTEGER NOT NULL DEFAULT 0,
			base_rate DOUBLE PRECISION NOT NULL DEFAULT 0,
			min_rental_days INTEGER NOT NULL DEFAULT 0,
			max_rental_days INTEGER NOT NULL DEFAULT 0,
			active BOOLEAN NOT NULL DEFAULT true
		)`,

		`CREATE TABLE IF NOT EXISTS bookings (
			id UUID PRIMARY KEY,
			order_number TEXT NOT NULL UNIQUE,
			customer_id TEXT NOT NULL,
			start_date DATE NOT NULL,
			end_date DATE NOT NULL,
			status TEXT NOT NULL,
			subtotal DOUBLE PRECISION NOT NULL,
			discount DOUBLE PRECISION NOT NULL DEFAULT 0,
			tax DOUBLE PRECISION NOT NULL,
			total DOUBLE PRECISION NOT NULL,
			cancel_reason TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_customer_id ON bookings(customer_id)`,

		`CREATE TABLE IF NOT EXISTS booking_items (
			booking_id UUID NOT NULL REFERENCES bookings(id) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			product_id TEXT NOT NULL REFERENCES products(id),
			quantity INTEGER NOT NULL CHECK (quantity > 0),
			unit_rate DOUBLE PRECISION NOT NULL,
			line_total DOUBLE PRECISION NOT NULL,
			PRIMARY KEY (booking_id, position)
		)`,

		`CREATE TABLE IF NOT EXISTS reservation_windows (
			id UUID PRIMARY KEY,
			product_id TEXT NOT NULL REFERENCES products(id),
			booking_id UUID NOT NULL REFERENCES bookings(id) ON DELETE CASCADE,
			start_date DATE NOT NULL,
			end_date DATE NOT NULL,
			quantity INTEGER NOT NULL CHECK (quantity > 0),
			status TEXT NOT NULL,
			CHECK (start_date <= end_date)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_windows_product_active
			ON reservation_windows(product_id, status, start_date, end_date)`,
		`CREATE INDEX IF NOT EXISTS idx_windows_booking_id ON reservation_windows(booking_id)`,

		`CREATE TABLE IF NOT EXISTS order_counters (
			scope TEXT PRIMARY KEY,
			value INTEGER NOT NULL
		)`,
	}

	for _, migration := range migrations {
		if _, err := p.pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("failed to run migration: %w", err)
		}
	}

	return nil
}

func (p *Postgres) UpsertProduct(ctx context.Context, prod *model.Product) error {
	query := `
		INSERT INTO products (id, name, total_quantity, maintenance_quantity, base_rate, min_rental_days, max_rental_days, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			total_quantity = EXCLUDED.total_quantity,
			maintenance_quantity = EXCLUDED.maintenance_quantity,
			base_rate = EXCLUDED.base_rate,
			min_rental_days = EXCLUDED.min_rental_days,
			max_rental_days = EXCLUDED.max_rental_days,
			active = EXCLUDED.active
	`
	_, err := p.pool.Exec(ctx, query,
		prod.ID, prod.Name, prod.TotalQuantity, prod.MaintenanceQuantity,
		prod.BaseRate, prod.MinRentalDays, prod.MaxRentalDays, prod.Active)
	if err != nil {
		return &model.PersistenceError{Op: "upsert product", Err: err}
	}
	return nil
}

func (p *Postgres) Product(ctx context.Context, id string) (*model.Product, error) {
	return getProduct(ctx, p.pool, id)
}

func (p *Postgres) Booking(ctx context.Context, id string) (*model.Booking, error) {
	return getBooking(ctx, p.pool, id)
}

func (p *Postgres) OverlappingWindows(ctx context.Context, productID string, start, end time.Time, excludeBookingID string) ([]model.ReservationWindow, error) {
	return getOverlappingWindows(ctx, p.pool, productID, start, end, excludeBookingID)
}

func (p *Postgres) RunInTx(ctx context.Context, productIDs []string, fn func(tx Tx) error) error {
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return &model.PersistenceError{Op: "begin transaction", Err: err}
	}
	defer tx.Rollback(ctx)

	// Products are locked in sorted order so two bookings sharing items
	// cannot deadlock against each other.
	ids := uniqueSorted(productIDs)
	if len(ids) > 0 {
		rows, err := tx.Query(ctx, `SELECT id FROM products WHERE id = ANY($1) ORDER BY id FOR UPDATE`, ids)
		if err != nil {
			return mapTxError("lock products", err)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return mapTxError("lock products", err)
		}
	}

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return mapTxError("commit transaction", err)
	}

	return nil
}

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) Product(ctx context.Context, id string) (*model.Product, error) {
	return getProduct(ctx, t.tx, id)
}

func (t *pgTx) Booking(ctx context.Context, id string) (*model.Booking, error) {
	return getBooking(ctx, t.tx, id)
}

func (t *pgTx) OverlappingWindows(ctx context.Context, productID string, start, end time.Time, excludeBookingID string) ([]model.ReservationWindow, error) {
	return getOverlappingWindows(ctx, t.tx, productID, start, end, excludeBookingID)
}

func (t *pgTx) InsertBooking(ctx context.Context, b *model.Booking) error {
	query := `
		INSERT INTO bookings (id, order_number, customer_id, start_date, end_date, status,
		                      subtotal, discount, tax, total, cancel_reason, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := t.tx.Exec(ctx, query,
		b.ID, b.OrderNumber, b.CustomerID, b.StartDate, b.EndDate, b.Status,
		b.Subtotal, b.Discount, b.Tax, b.Total, b.CancelReason, b.CreatedAt, b.UpdatedAt)
	if err != nil {
		return mapTxError("insert booking", err)
	}

	for i, item := range b.Items {
		_, err := t.tx.Exec(ctx,
			`INSERT INTO booking_items (booking_id, position, product_id, quantity, unit_rate, line_total)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			b.ID, i, item.ProductID, item.Quantity, item.UnitRate, item.LineTotal)
		if err != nil {
			return mapTxError("insert booking item", err)
		}
	}

	return nil
}

func (t *pgTx) InsertWindow(ctx context.Context, w *model.ReservationWindow) error {
	query := `
		INSERT INTO reservation_windows (id, product_id, booking_id, start_date, end_date, quantity, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := t.tx.Exec(ctx, query,
		w.ID, w.ProductID, w.BookingID, w.StartDate, w.EndDate, w.Quantity, w.Status)
	if err != nil {
		return mapTxError("insert reservation window", err)
	}
	return nil
}

func (t *pgTx) UpdateBookingStatus(ctx context.Context, bookingID string, status model.BookingStatus, reason string) error {
	query := `
		UPDATE bookings
		SET status = $2,
		    cancel_reason = CASE WHEN $3 = '' THEN cancel_reason ELSE $3 END,
		    updated_at = NOW()
		WHERE id = $1
	`
	tag, err := t.tx.Exec(ctx, query, bookingID, status, reason)
	if err != nil {
		return mapTxError("update booking status", err)
	}
	if tag.RowsAffected() == 0 {
		return &model.BookingNotFoundError{BookingID: bookingID}
	}
	return nil
}

func (t *pgTx) UpdateWindowStatus(ctx context.Context, bookingID string, status model.WindowStatus) error {
	_, err := t.tx.Exec(ctx,
		`UPDATE reservation_windows SET status = $2 WHERE booking_id = $1`,
		bookingID, status)
	if err != nil {
		return mapTxError("update window status", err)
	}
	return nil
}

func (t *pgTx) NextOrderSequence(ctx context.Context, scope string) (int, error) {
	var value int
	err := t.tx.QueryRow(ctx, `
		INSERT INTO order_counters (scope, value) VALUES ($1, 1)
		ON CONFLICT (scope) DO UPDATE SET value = order_counters.value + 1
		RETURNING value
	`, scope).Scan(&value)
	if err != nil {
		return 0, mapTxError("increment order counter", err)
	}
	return value, nil
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func getProduct(ctx context.Context, q querier, id string) (*model.Product, error) {
	query := `
		SELECT id, name, total_quantity, maintenance_quantity, base_rate, min_rental_days, max_rental_days, active
		FROM products WHERE id = $1
	`
	var p model.Product
	err := q.QueryRow(ctx, query, id).Scan(
		&p.ID, &p.Name, &p.TotalQuantity, &p.MaintenanceQuantity,
		&p.BaseRate, &p.MinRentalDays, &p.MaxRentalDays, &p.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &model.ProductNotFoundError{ProductID: id}
	}
	if err != nil {
		return nil, &model.PersistenceError{Op: "load product", Err: err}
	}
	return &p, nil
}

func getBooking(ctx context.Context, q querier, id string) (*model.Booking, error) {
	query := `
		SELECT id, order_number, customer_id, start_date, end_date, status,
		       subtotal, discount, tax, total, cancel_reason, created_at, updated_at
		FROM bookings WHERE id = $1
	`
	var b model.Booking
	err := q.QueryRow(ctx, query, id).Scan(
		&b.ID, &b.OrderNumber, &b.CustomerID, &b.StartDate, &b.EndDate, &b.Status,
		&b.Subtotal, &b.Discount, &b.Tax, &b.Total, &b.CancelReason, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &model.BookingNotFoundError{BookingID: id}
	}
	if err != nil {
		return nil, &model.PersistenceError{Op: "load booking", Err: err}
	}

	rows, err := q.Query(ctx,
		`SELECT product_id, quantity, unit_rate, line_total
		 FROM booking_items WHERE booking_id = $1 ORDER BY position`, id)
	if err != nil {
		return nil, &model.PersistenceError{Op: "load booking items", Err: err}
	}
	defer rows.Close()

	for rows.Next() {
		var item model.LineItem
		if err := rows.Scan(&item.ProductID, &item.Quantity, &item.UnitRate, &item.LineTotal); err != nil {
			return nil, &model.PersistenceError{Op: "scan booking item", Err: err}
		}
		b.Items = append(b.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, &model.PersistenceError{Op: "load booking items", Err: err}
	}

	return &b, nil
}

func getOverlappingWindows(ctx context.Context, q querier, productID string, start, end time.Time, excludeBookingID string) ([]model.ReservationWindow, error) {
	query := `
		SELECT id, product_id, booking_id, start_date, end_date, quantity, status
		FROM reservation_windows
		WHERE product_id = $1
		  AND status = 'active'
		  AND start_date <= $3
		  AND end_date >= $2
		  AND ($4 = '' OR booking_id::text <> $4)
	`
	rows, err := q.Query(ctx, query, productID, start, end, excludeBookingID)
	if err != nil {
		return nil, &model.PersistenceError{Op: "query reservation windows", Err: err}
	}
	defer rows.Close()

	var windows []model.ReservationWindow
	for rows.Next() {
		var w model.ReservationWindow
		if err := rows.Scan(&w.ID, &w.ProductID, &w.BookingID, &w.StartDate, &w.EndDate, &w.Quantity, &w.Status); err != nil {
			return nil, &model.PersistenceError{Op: "scan reservation window", Err: err}
		}
		windows = append(windows, w)
	}
	if err := rows.Err(); err != nil {
		return nil, &model.PersistenceError{Op: "query reservation windows", Err: err}
	}

	return windows, nil
}

func mapTxError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// serialization_failure and deadlock_detected are retryable
		if pgErr.Code == "40001" || pgErr.Code == "40P01" {
			return &model.ConcurrencyConflictError{Err: err}
		}
	}
	return &model.PersistenceError{Op: op, Err: err}
}

func uniqueSorted(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
