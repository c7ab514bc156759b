package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/tableflow/internal/domain/catalog"
)

var _ catalog.Repository = (*CatalogRepository)(nil)

// CatalogRepository implements catalog.Repository backed by PostgreSQL.
// Modifier options are stored as a JSONB list on the menu item row.
type CatalogRepository struct {
	pool *pgxpool.Pool
}

// NewCatalogRepository returns a CatalogRepository that uses the given pool.
func NewCatalogRepository(pool *pgxpool.Pool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

const menuColumns = `id, name, price, category, available, modifiers`

// List returns the full menu ordered by category and name.
func (r *CatalogRepository) List(ctx context.Context) ([]catalog.MenuItem, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+menuColumns+` FROM menu_items ORDER BY category, name`)
	if err != nil {
		return nil, fmt.Errorf("listing menu items: %w", err)
	}
	defer rows.Close()

	return collectMenuItems(rows)
}

// GetByID returns a single menu item.
func (r *CatalogRepository) GetByID(ctx context.Context, id string) (*catalog.MenuItem, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+menuColumns+` FROM menu_items WHERE id = $1`, id)
	m, err := scanMenuItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrNotFound
		}
		return nil, fmt.Errorf("getting menu item %q: %w", id, err)
	}
	return m, nil
}

// GetByIDs returns the menu items matching ids in a single query. Missing ids
// are simply absent from the result; the caller decides whether that is an
// error.
func (r *CatalogRepository) GetByIDs(ctx context.Context, ids []string) ([]catalog.MenuItem, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+menuColumns+` FROM menu_items WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("getting menu items: %w", err)
	}
	defer rows.Close()

	return collectMenuItems(rows)
}

func collectMenuItems(rows pgx.Rows) ([]catalog.MenuItem, error) {
	var items []catalog.MenuItem
	for rows.Next() {
		m, err := scanMenuItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning menu item: %w", err)
		}
		items = append(items, *m)
	}
	return items, rows.Err()
}

func scanMenuItem(row pgx.Row) (*catalog.MenuItem, error) {
	var (
		m    catalog.MenuItem
		mods []byte
	)
	if err := row.Scan(&m.ID, &m.Name, &m.Price, &m.Category, &m.Available, &mods); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(mods, &m.Modifiers); err != nil {
		return nil, fmt.Errorf("unmarshal modifier options: %w", err)
	}
	return &m, nil
}
