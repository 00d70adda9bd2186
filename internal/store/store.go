package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"fulfillment-service/internal/models"

	"github.com/jmoiron/sqlx"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when an insert loses a uniqueness race, such
// as two intakes drawing the same order number. The write is safe to
// retry as a whole.
var ErrConflict = errors.New("conflict")

// Tx is the set of operations available inside one atomic fulfillment
// transaction. Every write performed through a Tx commits or rolls back
// as a unit.
type Tx interface {
	// Orders and lines
	OrderForUpdate(ctx context.Context, orderID int64) (*models.Order, error)
	LinesByOrder(ctx context.Context, orderID int64) ([]models.OrderLine, error)
	UpdateOrderStatus(ctx context.Context, orderID int64, status string, at time.Time) error
	UpdateLineStatus(ctx context.Context, lineID int64, status string) error
	InsertOrder(ctx context.Context, order *models.Order) error
	InsertLine(ctx context.Context, line *models.OrderLine) error
	DeleteOrder(ctx context.Context, orderID int64) error
	LastOrderNo(ctx context.Context, prefix string, from, to time.Time) (string, error)

	// Catalog
	GetProduct(ctx context.Context, productID int64) (*models.Product, error)
	// FindOption resolves a line to a stock-tracked option by attribute
	// equality. Returns nil (no error) when nothing matches.
	FindOption(ctx context.Context, productID int64, sph, cyl string) (*models.SkuOption, error)
	OptionForUpdate(ctx context.Context, optionID int64) (*models.SkuOption, error)
	UpdateOptionStock(ctx context.Context, optionID int64, stock int) error

	// Ledgers
	InsertInventoryMovement(ctx context.Context, m *models.InventoryMovement) error
	AccountForUpdate(ctx context.Context, counterpartyID int64) (*models.CounterpartyAccount, error)
	UpdateAccountBalance(ctx context.Context, counterpartyID int64, balance int64) error
	TouchLastPayment(ctx context.Context, counterpartyID int64, at time.Time) error
	InsertAccountMovement(ctx context.Context, m *models.AccountMovement) error

	// Audit
	InsertWorkLog(ctx context.Context, w *models.WorkLog) error
}

// Datastore is the persistence boundary consumed by the service layer.
type Datastore interface {
	// Transact runs fn inside one transaction. If fn returns an error
	// the transaction is rolled back and no writes are visible.
	Transact(ctx context.Context, fn func(tx Tx) error) error

	GetOrder(ctx context.Context, orderID int64) (*models.Order, error)
	GetOrderLines(ctx context.Context, orderID int64) ([]models.OrderLine, error)
	GetOption(ctx context.Context, optionID int64) (*models.SkuOption, error)
	GetCounterparty(ctx context.Context, counterpartyID int64) (*models.CounterpartyAccount, error)
	MovementsByOrder(ctx context.Context, orderID int64) ([]models.InventoryMovement, error)
	AccountMovements(ctx context.Context, counterpartyID int64, limit int) ([]models.AccountMovement, error)
	SumAccountMovements(ctx context.Context, counterpartyID int64) (int64, error)
	ListActiveOptions(ctx context.Context) ([]models.SkuOption, error)
	ListCounterparties(ctx context.Context) ([]models.CounterpartyAccount, error)
}

// Store is the Postgres-backed datastore.
type Store struct {
	db *sqlx.DB
}

var _ Datastore = (*Store)(nil)

// NewStore connects to the database and returns a Store.
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Transact runs fn within a single database transaction.
func (s *Store) Transact(ctx context.Context, fn func(tx Tx) error) error {
	txx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer txx.Rollback()

	if err := fn(&sqlTx{tx: txx}); err != nil {
		return err
	}

	if err := txx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// sqlTx implements Tx over an open sqlx transaction.
type sqlTx struct {
	tx *sqlx.Tx
}

var _ Tx = (*sqlTx)(nil)

func notFoundOr(err error, wrap string) error {
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	return fmt.Errorf("%s: %w", wrap, err)
}
