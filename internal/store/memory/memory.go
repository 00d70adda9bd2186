// Package memory provides an in-memory Datastore used by tests. It
// mirrors the transactional semantics of the Postgres store: Transact
// takes a snapshot of all state and restores it when the callback
// fails, so a failed transition leaves nothing behind.
package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"fulfillment-service/internal/models"
	"fulfillment-service/internal/store"
)

// ErrInjected is returned by writes that were told to fail. Tests use
// it to simulate a persistence failure mid-transaction.
var ErrInjected = errors.New("injected write failure")

// Store is an in-memory implementation of store.Datastore.
type Store struct {
	mu sync.Mutex

	products       map[int64]models.Product
	options        map[int64]models.SkuOption
	orders         map[int64]models.Order
	lines          map[int64]models.OrderLine
	invMovements   []models.InventoryMovement
	acctMovements  []models.AccountMovement
	counterparties map[int64]models.CounterpartyAccount
	workLogs       []models.WorkLog

	nextID int64

	// failInvInsertAt makes the Nth InsertInventoryMovement of the next
	// transaction fail (1-based). 0 disables injection.
	failInvInsertAt int

	// conflictOrderInsert makes the next InsertOrder report a uniqueness
	// conflict, as if a concurrent intake committed the same order
	// number first.
	conflictOrderInsert bool
}

var _ store.Datastore = (*Store)(nil)

// New returns an empty in-memory store.
func New() *Store {
	return &Store{
		products:       make(map[int64]models.Product),
		options:        make(map[int64]models.SkuOption),
		orders:         make(map[int64]models.Order),
		lines:          make(map[int64]models.OrderLine),
		counterparties: make(map[int64]models.CounterpartyAccount),
		nextID:         1,
	}
}

// FailInventoryInsertAt arranges for the nth inventory movement insert
// of the next transaction to fail. Pass 0 to disable.
func (s *Store) FailInventoryInsertAt(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failInvInsertAt = n
}

// ConflictNextOrderInsert arranges for the next order insert to lose
// the order-number uniqueness race.
func (s *Store) ConflictNextOrderInsert() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conflictOrderInsert = true
}

func (s *Store) allocID() int64 {
	id := s.nextID
	s.nextID++
	return id
}

// ---- seeding helpers for tests ----

func (s *Store) SeedProduct(p models.Product) models.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == 0 {
		p.ID = s.allocID()
	}
	s.products[p.ID] = p
	return p
}

func (s *Store) SeedOption(o models.SkuOption) models.SkuOption {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o.ID == 0 {
		o.ID = s.allocID()
	}
	s.options[o.ID] = o
	return o
}

func (s *Store) SeedCounterparty(c models.CounterpartyAccount) models.CounterpartyAccount {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == 0 {
		c.ID = s.allocID()
	}
	s.counterparties[c.ID] = c
	return c
}

// OptionStock returns the current stock for an option. Test helper.
func (s *Store) OptionStock(optionID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.options[optionID].Stock
}

// InventoryMovements returns all recorded stock movements. Test helper.
func (s *Store) InventoryMovements() []models.InventoryMovement {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.InventoryMovement, len(s.invMovements))
	copy(out, s.invMovements)
	return out
}

// WorkLogs returns all recorded audit entries. Test helper.
func (s *Store) WorkLogs() []models.WorkLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.WorkLog, len(s.workLogs))
	copy(out, s.workLogs)
	return out
}

// ---- snapshot / rollback ----

type snapshot struct {
	options        map[int64]models.SkuOption
	orders         map[int64]models.Order
	lines          map[int64]models.OrderLine
	invMovements   []models.InventoryMovement
	acctMovements  []models.AccountMovement
	counterparties map[int64]models.CounterpartyAccount
	workLogs       []models.WorkLog
	nextID         int64
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *Store) snapshot() snapshot {
	return snapshot{
		options:        copyMap(s.options),
		orders:         copyMap(s.orders),
		lines:          copyMap(s.lines),
		invMovements:   append([]models.InventoryMovement(nil), s.invMovements...),
		acctMovements:  append([]models.AccountMovement(nil), s.acctMovements...),
		counterparties: copyMap(s.counterparties),
		workLogs:       append([]models.WorkLog(nil), s.workLogs...),
		nextID:         s.nextID,
	}
}

func (s *Store) restore(snap snapshot) {
	s.options = snap.options
	s.orders = snap.orders
	s.lines = snap.lines
	s.invMovements = snap.invMovements
	s.acctMovements = snap.acctMovements
	s.counterparties = snap.counterparties
	s.workLogs = snap.workLogs
	s.nextID = snap.nextID
}

// Transact serializes all transactions behind one mutex, which also
// stands in for the row locks of the SQL store.
func (s *Store) Transact(ctx context.Context, fn func(tx store.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	tx := &memTx{s: s, failInvInsertAt: s.failInvInsertAt, conflictOrderInsert: s.conflictOrderInsert}
	s.failInvInsertAt = 0
	s.conflictOrderInsert = false

	if err := fn(tx); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

// memTx implements store.Tx directly against the locked store.
type memTx struct {
	s                   *Store
	invInserts          int
	failInvInsertAt     int
	conflictOrderInsert bool
}

var _ store.Tx = (*memTx)(nil)

func (t *memTx) OrderForUpdate(ctx context.Context, orderID int64) (*models.Order, error) {
	order, ok := t.s.orders[orderID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &order, nil
}

func (t *memTx) LinesByOrder(ctx context.Context, orderID int64) ([]models.OrderLine, error) {
	return t.s.linesByOrder(orderID), nil
}

func (s *Store) linesByOrder(orderID int64) []models.OrderLine {
	var out []models.OrderLine
	for _, l := range s.lines {
		if l.OrderID == orderID {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Seq != out[j].Seq {
			return out[i].Seq < out[j].Seq
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (t *memTx) UpdateOrderStatus(ctx context.Context, orderID int64, status string, at time.Time) error {
	order, ok := t.s.orders[orderID]
	if !ok {
		return store.ErrNotFound
	}
	order.Status = status
	switch status {
	case models.OrderStatusConfirmed:
		order.ConfirmedAt = &at
	case models.OrderStatusShipped:
		order.ShippedAt = &at
	case models.OrderStatusDelivered:
		order.DeliveredAt = &at
	}
	t.s.orders[orderID] = order
	return nil
}

func (t *memTx) UpdateLineStatus(ctx context.Context, lineID int64, status string) error {
	line, ok := t.s.lines[lineID]
	if !ok {
		return store.ErrNotFound
	}
	line.Status = status
	t.s.lines[lineID] = line
	return nil
}

func (t *memTx) InsertOrder(ctx context.Context, order *models.Order) error {
	if t.conflictOrderInsert {
		t.conflictOrderInsert = false
		return store.ErrConflict
	}
	for _, o := range t.s.orders {
		if o.OrderNo == order.OrderNo && sameMonth(o.OrderedAt, order.OrderedAt) {
			return store.ErrConflict
		}
	}
	order.ID = t.s.allocID()
	t.s.orders[order.ID] = *order
	return nil
}

func sameMonth(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month()
}

func (t *memTx) InsertLine(ctx context.Context, line *models.OrderLine) error {
	line.ID = t.s.allocID()
	t.s.lines[line.ID] = *line
	return nil
}

func (t *memTx) DeleteOrder(ctx context.Context, orderID int64) error {
	for id, l := range t.s.lines {
		if l.OrderID == orderID {
			delete(t.s.lines, id)
		}
	}
	delete(t.s.orders, orderID)
	return nil
}

func (t *memTx) LastOrderNo(ctx context.Context, prefix string, from, to time.Time) (string, error) {
	last := ""
	for _, o := range t.s.orders {
		if !strings.HasPrefix(o.OrderNo, prefix) {
			continue
		}
		if o.OrderedAt.Before(from) || !o.OrderedAt.Before(to) {
			continue
		}
		if len(o.OrderNo) > len(last) || (len(o.OrderNo) == len(last) && o.OrderNo > last) {
			last = o.OrderNo
		}
	}
	return last, nil
}

func (t *memTx) GetProduct(ctx context.Context, productID int64) (*models.Product, error) {
	product, ok := t.s.products[productID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &product, nil
}

func (t *memTx) FindOption(ctx context.Context, productID int64, sph, cyl string) (*models.SkuOption, error) {
	var found *models.SkuOption
	for _, o := range t.s.options {
		o := o
		if o.ProductID == productID && o.Sph == sph && o.Cyl == cyl && o.IsActive {
			if found == nil || o.ID < found.ID {
				found = &o
			}
		}
	}
	return found, nil
}

func (t *memTx) OptionForUpdate(ctx context.Context, optionID int64) (*models.SkuOption, error) {
	option, ok := t.s.options[optionID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &option, nil
}

func (t *memTx) UpdateOptionStock(ctx context.Context, optionID int64, stock int) error {
	option, ok := t.s.options[optionID]
	if !ok {
		return store.ErrNotFound
	}
	option.Stock = stock
	option.UpdatedAt = time.Now()
	t.s.options[optionID] = option
	return nil
}

func (t *memTx) InsertInventoryMovement(ctx context.Context, m *models.InventoryMovement) error {
	t.invInserts++
	if t.failInvInsertAt > 0 && t.invInserts >= t.failInvInsertAt {
		return ErrInjected
	}
	m.ID = t.s.allocID()
	m.CreatedAt = time.Now()
	t.s.invMovements = append(t.s.invMovements, *m)
	return nil
}

func (t *memTx) AccountForUpdate(ctx context.Context, counterpartyID int64) (*models.CounterpartyAccount, error) {
	account, ok := t.s.counterparties[counterpartyID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &account, nil
}

func (t *memTx) UpdateAccountBalance(ctx context.Context, counterpartyID int64, balance int64) error {
	account, ok := t.s.counterparties[counterpartyID]
	if !ok {
		return store.ErrNotFound
	}
	account.OutstandingAmount = balance
	t.s.counterparties[counterpartyID] = account
	return nil
}

func (t *memTx) TouchLastPayment(ctx context.Context, counterpartyID int64, at time.Time) error {
	account, ok := t.s.counterparties[counterpartyID]
	if !ok {
		return store.ErrNotFound
	}
	account.LastPaymentAt = &at
	t.s.counterparties[counterpartyID] = account
	return nil
}

func (t *memTx) InsertAccountMovement(ctx context.Context, m *models.AccountMovement) error {
	m.ID = t.s.allocID()
	t.s.acctMovements = append(t.s.acctMovements, *m)
	return nil
}

func (t *memTx) InsertWorkLog(ctx context.Context, w *models.WorkLog) error {
	w.ID = t.s.allocID()
	w.CreatedAt = time.Now()
	t.s.workLogs = append(t.s.workLogs, *w)
	return nil
}

// ---- read side ----

func (s *Store) GetOrder(ctx context.Context, orderID int64) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[orderID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &order, nil
}

func (s *Store) GetOrderLines(ctx context.Context, orderID int64) ([]models.OrderLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.linesByOrder(orderID), nil
}

func (s *Store) GetCounterparty(ctx context.Context, counterpartyID int64) (*models.CounterpartyAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.counterparties[counterpartyID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &account, nil
}

func (s *Store) MovementsByOrder(ctx context.Context, orderID int64) ([]models.InventoryMovement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.InventoryMovement
	for _, m := range s.invMovements {
		if m.OrderID != nil && *m.OrderID == orderID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *Store) AccountMovements(ctx context.Context, counterpartyID int64, limit int) ([]models.AccountMovement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.AccountMovement
	for i := len(s.acctMovements) - 1; i >= 0 && len(out) < limit; i-- {
		if s.acctMovements[i].CounterpartyID == counterpartyID {
			out = append(out, s.acctMovements[i])
		}
	}
	return out, nil
}

func (s *Store) SumAccountMovements(ctx context.Context, counterpartyID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var sum int64
	for _, m := range s.acctMovements {
		if m.CounterpartyID == counterpartyID {
			sum += m.Amount
		}
	}
	return sum, nil
}

func (s *Store) GetOption(ctx context.Context, optionID int64) (*models.SkuOption, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	option, ok := s.options[optionID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &option, nil
}

func (s *Store) ListActiveOptions(ctx context.Context) ([]models.SkuOption, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.SkuOption
	for _, o := range s.options {
		if o.IsActive {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) ListCounterparties(ctx context.Context) ([]models.CounterpartyAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.CounterpartyAccount
	for _, c := range s.counterparties {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
