// Command seed-db loads a demo catalog and API keys for local development.
// Plaintext API keys are printed once so they can be used against the API.
package main

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/agrikart/internal/domain/product"
	"github.com/xenking/agrikart/internal/repository"
)

const insertProductSQL = `INSERT INTO products
	(id, sku, name, category, unit, hsn_code, unit_price, gst_rate,
	 bulk_tiers, stock_total, min_order_qty, max_order_qty, active)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, TRUE)
	ON CONFLICT (sku) DO NOTHING`

const insertAPIKeySQL = `INSERT INTO api_keys (id, key_hash, actor_id, name, role, active)
	VALUES ($1, $2, $3, $4, $5, TRUE)
	ON CONFLICT (key_hash) DO NOTHING`

type seedKey struct {
	key     string
	actorID string
	name    string
	role    string
}

func main() {
	var (
		databaseURL string
		pepper      string
	)
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&pepper, "pepper", "", "HMAC pepper for API key hashing (must match the server)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, pepper); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed")
}

func run(ctx context.Context, databaseURL, pepper string) error {
	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	for _, p := range demoProducts() {
		tiers, err := json.Marshal(p.BulkTiers)
		if err != nil {
			return errors.Wrap(err, "marshal tiers")
		}
		_, err = pool.Exec(ctx, insertProductSQL,
			p.ID, p.SKU, p.Name, p.Category, p.Unit, p.HSNCode,
			p.UnitPrice, p.GSTRate, tiers, p.StockTotal, p.MinOrderQty, p.MaxOrderQty,
		)
		if err != nil {
			return errors.Wrapf(err, "insert product %s", p.SKU)
		}
	}
	slog.Info("products seeded", slog.Int("count", len(demoProducts())))

	keys := []seedKey{
		{key: "dev-buyer-key", actorID: "buyer-demo", name: "Demo Buyer", role: "buyer"},
		{key: "dev-staff-key", actorID: "staff-demo", name: "Demo Staff", role: "staff"},
	}
	for _, k := range keys {
		mac := hmac.New(sha256.New, []byte(pepper))
		mac.Write([]byte(k.key))
		hash := hex.EncodeToString(mac.Sum(nil))

		if _, err := pool.Exec(ctx, insertAPIKeySQL, uuid.NewString(), hash, k.actorID, k.name, k.role); err != nil {
			return errors.Wrapf(err, "insert api key for %s", k.actorID)
		}
		slog.Info("api key seeded",
			slog.String("actor", k.actorID),
			slog.String("role", k.role),
			slog.String("key", k.key),
		)
	}
	return nil
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func demoProducts() []product.Product {
	return []product.Product{
		{
			ID: uuid.NewString(), SKU: "UREA-46-50KG", Name: "Urea 46% N", Category: "fertilizer",
			Unit: "50kg bag", HSNCode: "31021000", UnitPrice: dec("266.50"), GSTRate: 5,
			StockTotal: 500, MinOrderQty: 5, MaxOrderQty: 200,
			BulkTiers: []product.BulkTier{
				{MinQty: 20, MaxQty: 49, UnitPrice: dec("259.00"), DiscountPct: dec("2.8"), Label: "20+ bags"},
				{MinQty: 50, UnitPrice: dec("251.00"), DiscountPct: dec("5.8"), Label: "50+ bags"},
			},
		},
		{
			ID: uuid.NewString(), SKU: "DAP-18-46-50KG", Name: "DAP 18-46-0", Category: "fertilizer",
			Unit: "50kg bag", HSNCode: "31053000", UnitPrice: dec("1350.00"), GSTRate: 5,
			StockTotal: 300, MinOrderQty: 2, MaxOrderQty: 100,
			BulkTiers: []product.BulkTier{
				{MinQty: 10, UnitPrice: dec("1315.00"), DiscountPct: dec("2.6"), Label: "10+ bags"},
			},
		},
		{
			ID: uuid.NewString(), SKU: "GLYPHO-41-1L", Name: "Glyphosate 41% SL", Category: "herbicide",
			Unit: "1L bottle", HSNCode: "38083010", UnitPrice: dec("420.00"), GSTRate: 18,
			StockTotal: 150, MinOrderQty: 1, MaxOrderQty: 48,
			BulkTiers: []product.BulkTier{
				{MinQty: 12, UnitPrice: dec("395.00"), DiscountPct: dec("6"), Label: "case of 12"},
			},
		},
		{
			ID: uuid.NewString(), SKU: "DRIP-16MM-100M", Name: "Drip Lateral 16mm", Category: "irrigation",
			Unit: "100m roll", HSNCode: "39173990", UnitPrice: dec("850.00"), GSTRate: 18,
			StockTotal: 80, MinOrderQty: 1,
		},
		{
			ID: uuid.NewString(), SKU: "SEED-MAIZE-4KG", Name: "Hybrid Maize Seed", Category: "seeds",
			Unit: "4kg pack", HSNCode: "10051000", UnitPrice: dec("1200.00"), GSTRate: 0,
			StockTotal: 200, MinOrderQty: 1, MaxOrderQty: 50,
			BulkTiers: []product.BulkTier{
				{MinQty: 10, UnitPrice: dec("1140.00"), DiscountPct: dec("5"), Label: "10+ packs"},
			},
		},
	}
}
