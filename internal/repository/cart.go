package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"

	"github.com/xenking/agrikart/internal/domain/cart"
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository stores carts in Redis as JSON documents keyed by buyer.
// Carts are working state, not records: they expire after ttl of
// inactivity and vanish entirely at checkout.
type CartRepository struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewCartRepository returns a CartRepository with the given expiry.
func NewCartRepository(rdb *redis.Client, ttl time.Duration) *CartRepository {
	return &CartRepository{rdb: rdb, ttl: ttl}
}

// Get loads a buyer's cart.
func (r *CartRepository) Get(ctx context.Context, buyerID string) (*cart.Cart, error) {
	raw, err := r.rdb.Get(ctx, cartKey(buyerID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, cart.ErrNotFound
		}
		return nil, fmt.Errorf("getting cart for %q: %w", buyerID, err)
	}
	var c cart.Cart
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("unmarshaling cart for %q: %w", buyerID, err)
	}
	return &c, nil
}

// Save stores the cart and resets its expiry.
func (r *CartRepository) Save(ctx context.Context, c *cart.Cart) error {
	raw, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling cart for %q: %w", c.BuyerID, err)
	}
	if err := r.rdb.Set(ctx, cartKey(c.BuyerID), raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("saving cart for %q: %w", c.BuyerID, err)
	}
	return nil
}

// Delete removes a buyer's cart. Deleting an absent cart is not an error.
func (r *CartRepository) Delete(ctx context.Context, buyerID string) error {
	if err := r.rdb.Del(ctx, cartKey(buyerID)).Err(); err != nil {
		return fmt.Errorf("deleting cart for %q: %w", buyerID, err)
	}
	return nil
}

func cartKey(buyerID string) string {
	return "cart:" + buyerID
}
