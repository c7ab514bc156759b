// Command seed-menu loads tables and menu items into the database from a JSON
// seed file, optionally gzip-compressed. Existing rows are upserted so the
// tool can be re-run after menu edits.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/tableflow/internal/storage/postgres"
)

type tableJSON struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Seats int    `json:"seats"`
}

type modifierJSON struct {
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

type menuItemJSON struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Category  string          `json:"category"`
	Available *bool           `json:"available"`
	Modifiers []modifierJSON  `json:"modifiers"`
}

type seedJSON struct {
	Tables []tableJSON    `json:"tables"`
	Menu   []menuItemJSON `json:"menu"`
}

func main() {
	var (
		databaseURL string
		seedFile    string
		workers     int
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&seedFile, "seed-file", "db/seed/menu.json", "path to seed JSON file (.gz supported)")
	flag.IntVar(&workers, "workers", 4, "concurrent upsert workers")
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

	if err := run(ctx, databaseURL, seedFile, workers); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, databaseURL, seedFile string, workers int) error {
	seed, err := readSeed(seedFile)
	if err != nil {
		return err
	}

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	for _, t := range seed.Tables {
		seats := t.Seats
		if seats == 0 {
			seats = 4
		}
		_, err := pool.Exec(ctx, `INSERT INTO tables (id, name, seats)
			VALUES ($1, $2, $3)
			ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, seats = EXCLUDED.seats`,
			t.ID, t.Name, seats)
		if err != nil {
			return errors.Wrapf(err, "upsert table %s", t.ID)
		}
	}

	items := make(chan menuItemJSON)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(items)
		for _, m := range seed.Menu {
			select {
			case items <- m:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})
	for range workers {
		g.Go(func() error {
			for m := range items {
				mods, err := json.Marshal(m.Modifiers)
				if err != nil {
					return errors.Wrapf(err, "marshal modifiers for %s", m.ID)
				}
				if m.Modifiers == nil {
					mods = []byte("[]")
				}
				available := true
				if m.Available != nil {
					available = *m.Available
				}
				_, err = pool.Exec(gctx, `INSERT INTO menu_items (id, name, price, category, available, modifiers)
					VALUES ($1, $2, $3, $4, $5, $6)
					ON CONFLICT (id) DO UPDATE SET
						name = EXCLUDED.name, price = EXCLUDED.price, category = EXCLUDED.category,
						available = EXCLUDED.available, modifiers = EXCLUDED.modifiers`,
					m.ID, m.Name, m.Price, m.Category, available, mods)
				if err != nil {
					return errors.Wrapf(err, "upsert menu item %s", m.ID)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	slog.Info("seed complete",
		slog.Int("tables", len(seed.Tables)),
		slog.Int("menu_items", len(seed.Menu)),
	)
	return nil
}

func readSeed(path string) (*seedJSON, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open seed file")
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := pgzip.NewReader(f)
		if err != nil {
			return nil, errors.Wrap(err, "open gzip reader")
		}
		defer gz.Close()
		r = gz
	}

	var seed seedJSON
	if err := json.NewDecoder(r).Decode(&seed); err != nil {
		return nil, errors.Wrap(err, "decode seed")
	}
	return &seed, nil
}
