package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const snapshotTTL = 24 * time.Hour

// Client is a thin Redis wrapper holding read-side snapshots of
// option stock and counterparty balances. The database remains the
// source of truth; every value here is rebuildable.
type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client.
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

func stockKey(optionID int64) string {
	return fmt.Sprintf("stock:%d", optionID)
}

func balanceKey(counterpartyID int64) string {
	return fmt.Sprintf("balance:%d", counterpartyID)
}

// SetStock caches the current stock level of an option.
func (c *Client) SetStock(ctx context.Context, optionID int64, stock int) error {
	return c.rdb.Set(ctx, stockKey(optionID), stock, snapshotTTL).Err()
}

// GetStock returns the cached stock level of an option.
func (c *Client) GetStock(ctx context.Context, optionID int64) (int, error) {
	return c.rdb.Get(ctx, stockKey(optionID)).Int()
}

// SetBalance caches a counterparty's outstanding balance.
func (c *Client) SetBalance(ctx context.Context, counterpartyID int64, balance int64) error {
	return c.rdb.Set(ctx, balanceKey(counterpartyID), balance, snapshotTTL).Err()
}

// GetBalance returns a counterparty's cached outstanding balance.
func (c *Client) GetBalance(ctx context.Context, counterpartyID int64) (int64, error) {
	return c.rdb.Get(ctx, balanceKey(counterpartyID)).Int64()
}
