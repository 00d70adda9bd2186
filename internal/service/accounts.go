package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fulfillment-service/internal/ledger"
	"fulfillment-service/internal/models"
	"fulfillment-service/internal/store"
	"fulfillment-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AccountService handles counterparty balance operations outside the
// fulfillment flow: deposits and ledger reconciliation.
type AccountService struct {
	store     store.Datastore
	accounts  *ledger.AccountBalance
	journal   *ledger.TransactionLedger
	publisher Publisher
	logger    *zap.Logger
}

// NewAccountService creates a new account service. publisher may be nil.
func NewAccountService(st store.Datastore, accounts *ledger.AccountBalance, journal *ledger.TransactionLedger, publisher Publisher) *AccountService {
	return &AccountService{
		store:     st,
		accounts:  accounts,
		journal:   journal,
		publisher: publisher,
		logger:    util.GetLogger(),
	}
}

// DepositRequest records one incoming payment from a counterparty.
type DepositRequest struct {
	CounterpartyID int64  `json:"counterparty_id" binding:"required"`
	Amount         int64  `json:"amount" binding:"required"`
	PaymentMethod  string `json:"payment_method"`
	Memo           string `json:"memo"`
	Actor          string `json:"actor"`
}

// DepositResult reports the committed deposit.
type DepositResult struct {
	MovementID   int64 `json:"movement_id"`
	Amount       int64 `json:"amount"`
	BalanceAfter int64 `json:"balance_after"`
}

// RecordDeposit reduces a counterparty's outstanding balance and
// appends a deposit-typed account movement. The movement amount is
// recorded negative so the balance always equals the movement sum.
func (s *AccountService) RecordDeposit(ctx context.Context, req *DepositRequest) (*DepositResult, error) {
	ctx, span := util.StartSpan(ctx, "AccountService.RecordDeposit")
	defer span.End()

	if req.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if req.PaymentMethod == "" {
		req.PaymentMethod = "transfer"
	}

	var result *DepositResult
	err := s.store.Transact(ctx, func(tx store.Tx) error {
		now := time.Now()

		change, err := s.accounts.ApplyDelta(ctx, tx, req.CounterpartyID, -req.Amount)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrCounterpartyNotFound
			}
			return persistenceErr(err)
		}

		m := models.AccountMovement{
			CounterpartyID: req.CounterpartyID,
			Type:           models.AccountTypeDeposit,
			Amount:         -req.Amount,
			BalanceAfter:   change.BalanceAfter,
			PaymentMethod:  req.PaymentMethod,
			Memo:           req.Memo,
			ProcessedBy:    req.Actor,
			ProcessedAt:    now,
		}
		if err := s.journal.RecordAccountMovement(ctx, tx, &m); err != nil {
			return persistenceErr(err)
		}

		if err := tx.TouchLastPayment(ctx, req.CounterpartyID, now); err != nil {
			return persistenceErr(err)
		}

		if err := tx.InsertWorkLog(ctx, &models.WorkLog{
			WorkType:    models.WorkTypePayment,
			TargetType:  "counterparty",
			TargetID:    req.CounterpartyID,
			Description: fmt.Sprintf("deposit recorded: %d (%s)", req.Amount, req.PaymentMethod),
			Details: fmt.Sprintf(`{"amount":%d,"balance_before":%d,"balance_after":%d}`,
				req.Amount, change.BalanceBefore, change.BalanceAfter),
			UserName: req.Actor,
		}); err != nil {
			return persistenceErr(err)
		}

		result = &DepositResult{
			MovementID:   m.ID,
			Amount:       req.Amount,
			BalanceAfter: change.BalanceAfter,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	util.DepositsTotal.Inc()
	s.logger.Info("Deposit recorded",
		zap.Int64("counterparty_id", req.CounterpartyID),
		zap.Int64("amount", req.Amount),
		zap.Int64("balance_after", result.BalanceAfter))

	if s.publisher != nil {
		event := &models.DepositRecordedEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeDepositRecorded,
				Timestamp: time.Now(),
			},
			CounterpartyID: req.CounterpartyID,
			Amount:         req.Amount,
			BalanceAfter:   result.BalanceAfter,
			PaymentMethod:  req.PaymentMethod,
		}
		if err := s.publisher.PublishDepositRecorded(ctx, event); err != nil {
			s.logger.Error("Failed to publish DepositRecorded event", zap.Error(err))
		}
	}

	return result, nil
}

// DiscountRequest forgives part of a counterparty's outstanding balance.
type DiscountRequest struct {
	CounterpartyID int64  `json:"counterparty_id" binding:"required"`
	Amount         int64  `json:"amount" binding:"required"`
	Memo           string `json:"memo"`
	Actor          string `json:"actor"`
}

// RecordDiscount reduces a counterparty's outstanding balance without a
// payment and appends an adjustment-typed account movement. Like
// deposits, the movement amount is recorded negative.
func (s *AccountService) RecordDiscount(ctx context.Context, req *DiscountRequest) (*DepositResult, error) {
	ctx, span := util.StartSpan(ctx, "AccountService.RecordDiscount")
	defer span.End()

	if req.Amount <= 0 {
		return nil, ErrInvalidAmount
	}

	var result *DepositResult
	err := s.store.Transact(ctx, func(tx store.Tx) error {
		change, err := s.accounts.ApplyDelta(ctx, tx, req.CounterpartyID, -req.Amount)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrCounterpartyNotFound
			}
			return persistenceErr(err)
		}

		m := models.AccountMovement{
			CounterpartyID: req.CounterpartyID,
			Type:           models.AccountTypeAdjustment,
			Amount:         -req.Amount,
			BalanceAfter:   change.BalanceAfter,
			Memo:           req.Memo,
			ProcessedBy:    req.Actor,
			ProcessedAt:    time.Now(),
		}
		if err := s.journal.RecordAccountMovement(ctx, tx, &m); err != nil {
			return persistenceErr(err)
		}

		if err := tx.InsertWorkLog(ctx, &models.WorkLog{
			WorkType:    models.WorkTypeDiscount,
			TargetType:  "counterparty",
			TargetID:    req.CounterpartyID,
			Description: fmt.Sprintf("discount applied: %d", req.Amount),
			Details: fmt.Sprintf(`{"amount":%d,"balance_before":%d,"balance_after":%d}`,
				req.Amount, change.BalanceBefore, change.BalanceAfter),
			UserName: req.Actor,
		}); err != nil {
			return persistenceErr(err)
		}

		result = &DepositResult{
			MovementID:   m.ID,
			Amount:       req.Amount,
			BalanceAfter: change.BalanceAfter,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Discount recorded",
		zap.Int64("counterparty_id", req.CounterpartyID),
		zap.Int64("amount", req.Amount),
		zap.Int64("balance_after", result.BalanceAfter))

	return result, nil
}

// GetBalance returns a counterparty's live outstanding balance.
func (s *AccountService) GetBalance(ctx context.Context, counterpartyID int64) (*models.CounterpartyAccount, error) {
	account, err := s.store.GetCounterparty(ctx, counterpartyID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrCounterpartyNotFound
		}
		return nil, persistenceErr(err)
	}
	return account, nil
}

// RecentMovements returns a counterparty's latest account movements,
// newest first.
func (s *AccountService) RecentMovements(ctx context.Context, counterpartyID int64, limit int) ([]models.AccountMovement, error) {
	if limit <= 0 {
		limit = 50
	}
	if _, err := s.store.GetCounterparty(ctx, counterpartyID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrCounterpartyNotFound
		}
		return nil, persistenceErr(err)
	}
	return s.store.AccountMovements(ctx, counterpartyID, limit)
}

// ReconcileResult compares the live balance counter with the fold of
// the movement log.
type ReconcileResult struct {
	CounterpartyID int64 `json:"counterparty_id"`
	Balance        int64 `json:"balance"`
	MovementSum    int64 `json:"movement_sum"`
	Consistent     bool  `json:"consistent"`
}

// Reconcile checks that a counterparty's outstanding balance equals
// the sum of its recorded account movements. The movement log is
// authoritative; a mismatch means the counter has drifted.
func (s *AccountService) Reconcile(ctx context.Context, counterpartyID int64) (*ReconcileResult, error) {
	account, err := s.GetBalance(ctx, counterpartyID)
	if err != nil {
		return nil, err
	}

	sum, err := s.store.SumAccountMovements(ctx, counterpartyID)
	if err != nil {
		return nil, persistenceErr(err)
	}

	return &ReconcileResult{
		CounterpartyID: counterpartyID,
		Balance:        account.OutstandingAmount,
		MovementSum:    sum,
		Consistent:     account.OutstandingAmount == sum,
	}, nil
}
