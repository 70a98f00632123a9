// Command catalog-ingest bulk-loads supplier catalog feeds into the
// products table. Feeds are gzip-compressed JSONL files, one product per
// line; files are processed concurrently and SKUs already ingested in the
// run are skipped via a bloom filter, so overlapping supplier feeds do not
// produce duplicate upserts.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/agrikart/internal/repository"
)

const (
	bloomCapacity = 10_000_000
	bloomFPR      = 0.001
	progressEvery = 10_000
)

const upsertProductSQL = `INSERT INTO products
	(id, sku, name, category, unit, hsn_code, unit_price, gst_rate,
	 bulk_tiers, stock_total, min_order_qty, max_order_qty, active)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, TRUE)
	ON CONFLICT (sku) DO UPDATE SET
		name = EXCLUDED.name,
		category = EXCLUDED.category,
		unit = EXCLUDED.unit,
		hsn_code = EXCLUDED.hsn_code,
		unit_price = EXCLUDED.unit_price,
		gst_rate = EXCLUDED.gst_rate,
		bulk_tiers = EXCLUDED.bulk_tiers,
		min_order_qty = EXCLUDED.min_order_qty,
		max_order_qty = EXCLUDED.max_order_qty,
		active = TRUE,
		updated_at = NOW()`

// feedTier mirrors one bulk pricing tier in a supplier feed line.
type feedTier struct {
	MinQty      int    `json:"min_qty"`
	MaxQty      int    `json:"max_qty"`
	UnitPrice   string `json:"unit_price"`
	DiscountPct string `json:"discount_pct"`
	Label       string `json:"label"`
}

// feedProduct is one line of a supplier JSONL feed.
type feedProduct struct {
	SKU         string     `json:"sku"`
	Name        string     `json:"name"`
	Category    string     `json:"category"`
	Unit        string     `json:"unit"`
	HSNCode     string     `json:"hsn_code"`
	UnitPrice   string     `json:"unit_price"`
	GSTRate     int        `json:"gst_rate"`
	BulkTiers   []feedTier `json:"bulk_tiers"`
	Stock       int        `json:"stock"`
	MinOrderQty int        `json:"min_order_qty"`
	MaxOrderQty int        `json:"max_order_qty"`
}

func main() {
	var (
		dataDir     string
		databaseURL string
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing *.jsonl.gz supplier feeds")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
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

	if err := run(ctx, dataDir, databaseURL); err != nil {
		slog.Error("catalog ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("catalog ingest completed successfully")
}

func run(ctx context.Context, dataDir, databaseURL string) error {
	files, err := filepath.Glob(filepath.Join(dataDir, "*.jsonl.gz"))
	if err != nil {
		return errors.Wrap(err, "list feeds")
	}
	if len(files) == 0 {
		return errors.Errorf("no *.jsonl.gz feeds in %s", dataDir)
	}

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("ingesting feeds", slog.Int("files", len(files)))

	// One shared filter dedupes SKUs across overlapping supplier feeds;
	// the first feed to carry a SKU wins for this run.
	var (
		mu   sync.Mutex
		seen = bloom.NewWithEstimates(bloomCapacity, bloomFPR)
	)

	g, ctx := errgroup.WithContext(ctx)
	for _, f := range files {
		g.Go(ingestFeed(ctx, pool, f, seen, &mu))
	}
	return g.Wait()
}

func ingestFeed(ctx context.Context, pool *pgxpool.Pool, path string, seen *bloom.BloomFilter, mu *sync.Mutex) func() error {
	return func() error {
		var ingested, skipped uint64

		err := streamGzFile(ctx, path, func(line []byte) error {
			var p feedProduct
			if err := json.Unmarshal(line, &p); err != nil {
				return errors.Wrap(err, "parse feed line")
			}
			if p.SKU == "" || p.Name == "" {
				return errors.Errorf("feed line missing sku or name: %q", line)
			}

			mu.Lock()
			dup := seen.TestString(p.SKU)
			if !dup {
				seen.AddString(p.SKU)
			}
			mu.Unlock()
			if dup {
				skipped++
				return nil
			}

			if err := upsertProduct(ctx, pool, p); err != nil {
				return errors.Wrapf(err, "upsert %s", p.SKU)
			}
			ingested++
			if ingested%progressEvery == 0 {
				slog.Info("ingest progress",
					slog.String("feed", filepath.Base(path)),
					slog.Uint64("products", ingested),
				)
			}
			return nil
		})
		if err != nil {
			return errors.Wrapf(err, "ingest %s", path)
		}

		slog.Info("feed complete",
			slog.String("feed", filepath.Base(path)),
			slog.Uint64("ingested", ingested),
			slog.Uint64("skipped", skipped),
		)
		return nil
	}
}

func upsertProduct(ctx context.Context, pool *pgxpool.Pool, p feedProduct) error {
	price, err := decimal.NewFromString(p.UnitPrice)
	if err != nil {
		return errors.Wrap(err, "parse unit price")
	}

	tiers, err := json.Marshal(p.BulkTiers)
	if err != nil {
		return errors.Wrap(err, "marshal tiers")
	}

	minQty := p.MinOrderQty
	if minQty < 1 {
		minQty = 1
	}

	_, err = pool.Exec(ctx, upsertProductSQL,
		uuid.NewString(), p.SKU, p.Name, p.Category, p.Unit, p.HSNCode,
		price, p.GSTRate, tiers, p.Stock, minQty, p.MaxOrderQty,
	)
	return err
}

// streamGzFile opens a gzip-compressed file and calls fn for each line.
func streamGzFile(ctx context.Context, path string, fn func(line []byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 0, 1<<20), 1<<20)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if err := fn(line); err != nil {
			return err
		}
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}
	return nil
}
