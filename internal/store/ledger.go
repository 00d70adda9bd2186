package store

import (
	"context"
	"database/sql"
	"time"

	"fulfillment-service/internal/models"
)

// ---- catalog ----

func (t *sqlTx) GetProduct(ctx context.Context, productID int64) (*models.Product, error) {
	var product models.Product
	err := t.tx.GetContext(ctx, &product, "SELECT * FROM products WHERE id = $1", productID)
	if err != nil {
		return nil, notFoundOr(err, "get product")
	}
	return &product, nil
}

// FindOption matches a line to a stock-tracked option by attributes.
// The match is re-resolved on every transition rather than stored, so a
// line keeps working when catalog data changed after order creation.
func (t *sqlTx) FindOption(ctx context.Context, productID int64, sph, cyl string) (*models.SkuOption, error) {
	var option models.SkuOption
	err := t.tx.GetContext(ctx, &option, `
		SELECT * FROM sku_options
		WHERE product_id = $1 AND sph = $2 AND cyl = $3 AND is_active = true
		ORDER BY id LIMIT 1`, productID, sph, cyl)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &option, nil
}

func (t *sqlTx) OptionForUpdate(ctx context.Context, optionID int64) (*models.SkuOption, error) {
	var option models.SkuOption
	err := t.tx.GetContext(ctx, &option,
		"SELECT * FROM sku_options WHERE id = $1 FOR UPDATE", optionID)
	if err != nil {
		return nil, notFoundOr(err, "lock sku option")
	}
	return &option, nil
}

func (t *sqlTx) UpdateOptionStock(ctx context.Context, optionID int64, stock int) error {
	_, err := t.tx.ExecContext(ctx,
		"UPDATE sku_options SET stock = $1, updated_at = NOW() WHERE id = $2",
		stock, optionID)
	return err
}

// ---- inventory movements ----

func (t *sqlTx) InsertInventoryMovement(ctx context.Context, m *models.InventoryMovement) error {
	query := `
		INSERT INTO inventory_movements
			(product_id, sku_option_id, type, reason, quantity, stock_before, stock_after,
			 order_id, order_no, unit_price, line_total, memo, processed_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, created_at`

	return t.tx.GetContext(ctx, m, query,
		m.ProductID, m.SkuOptionID, m.Type, m.Reason, m.Quantity,
		m.StockBefore, m.StockAfter, m.OrderID, m.OrderNo,
		m.UnitPrice, m.LineTotal, m.Memo, m.ProcessedBy)
}

// ---- counterparty accounts ----

func (t *sqlTx) AccountForUpdate(ctx context.Context, counterpartyID int64) (*models.CounterpartyAccount, error) {
	var account models.CounterpartyAccount
	err := t.tx.GetContext(ctx, &account,
		"SELECT * FROM counterparties WHERE id = $1 FOR UPDATE", counterpartyID)
	if err != nil {
		return nil, notFoundOr(err, "lock counterparty")
	}
	return &account, nil
}

func (t *sqlTx) UpdateAccountBalance(ctx context.Context, counterpartyID int64, balance int64) error {
	_, err := t.tx.ExecContext(ctx,
		"UPDATE counterparties SET outstanding_amount = $1 WHERE id = $2",
		balance, counterpartyID)
	return err
}

func (t *sqlTx) TouchLastPayment(ctx context.Context, counterpartyID int64, at time.Time) error {
	_, err := t.tx.ExecContext(ctx,
		"UPDATE counterparties SET last_payment_at = $1 WHERE id = $2",
		at, counterpartyID)
	return err
}

func (t *sqlTx) InsertAccountMovement(ctx context.Context, m *models.AccountMovement) error {
	query := `
		INSERT INTO account_movements
			(counterparty_id, type, amount, balance_after, order_id, order_no,
			 payment_method, memo, processed_by, processed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`

	return t.tx.GetContext(ctx, &m.ID, query,
		m.CounterpartyID, m.Type, m.Amount, m.BalanceAfter, m.OrderID,
		m.OrderNo, m.PaymentMethod, m.Memo, m.ProcessedBy, m.ProcessedAt)
}

// ---- audit ----

func (t *sqlTx) InsertWorkLog(ctx context.Context, w *models.WorkLog) error {
	query := `
		INSERT INTO work_logs (work_type, target_type, target_id, target_no, description, details, user_name)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`

	return t.tx.GetContext(ctx, w, query,
		w.WorkType, w.TargetType, w.TargetID, w.TargetNo,
		w.Description, w.Details, w.UserName)
}

// ---- read-side ledger queries ----

func (s *Store) GetCounterparty(ctx context.Context, counterpartyID int64) (*models.CounterpartyAccount, error) {
	var account models.CounterpartyAccount
	err := s.db.GetContext(ctx, &account,
		"SELECT * FROM counterparties WHERE id = $1", counterpartyID)
	if err != nil {
		return nil, notFoundOr(err, "get counterparty")
	}
	return &account, nil
}

func (s *Store) MovementsByOrder(ctx context.Context, orderID int64) ([]models.InventoryMovement, error) {
	var movements []models.InventoryMovement
	err := s.db.SelectContext(ctx, &movements,
		"SELECT * FROM inventory_movements WHERE order_id = $1 ORDER BY id", orderID)
	return movements, err
}

func (s *Store) AccountMovements(ctx context.Context, counterpartyID int64, limit int) ([]models.AccountMovement, error) {
	var movements []models.AccountMovement
	err := s.db.SelectContext(ctx, &movements, `
		SELECT * FROM account_movements
		WHERE counterparty_id = $1
		ORDER BY processed_at DESC, id DESC LIMIT $2`, counterpartyID, limit)
	return movements, err
}

// SumAccountMovements folds a counterparty's movement log. The live
// outstanding_amount counter must reconcile against this sum.
func (s *Store) SumAccountMovements(ctx context.Context, counterpartyID int64) (int64, error) {
	var sum int64
	err := s.db.GetContext(ctx, &sum,
		"SELECT COALESCE(SUM(amount), 0) FROM account_movements WHERE counterparty_id = $1",
		counterpartyID)
	return sum, err
}

func (s *Store) GetOption(ctx context.Context, optionID int64) (*models.SkuOption, error) {
	var option models.SkuOption
	err := s.db.GetContext(ctx, &option, "SELECT * FROM sku_options WHERE id = $1", optionID)
	if err != nil {
		return nil, notFoundOr(err, "get sku option")
	}
	return &option, nil
}

func (s *Store) ListActiveOptions(ctx context.Context) ([]models.SkuOption, error) {
	var options []models.SkuOption
	err := s.db.SelectContext(ctx, &options,
		"SELECT * FROM sku_options WHERE is_active = true ORDER BY id")
	return options, err
}

func (s *Store) ListCounterparties(ctx context.Context) ([]models.CounterpartyAccount, error) {
	var accounts []models.CounterpartyAccount
	err := s.db.SelectContext(ctx, &accounts, "SELECT * FROM counterparties ORDER BY id")
	return accounts, err
}
