package model

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/orbiodesigns/themestore/internal/obs"
)

type CatalogService struct {
	db     *sql.DB
	logger *obs.Logger
}

func NewCatalogService(db *sql.DB, logger *obs.Logger) *CatalogService {
	return &CatalogService{db: db, logger: logger}
}

// --- layouts ---

const layoutCols = `id, name, description, base_price, price_1mo, price_3mo, price_6mo, price_1yr, thumbnail_url, is_active`

func scanLayout(rows *sql.Rows) (Layout, error) {
	var (
		l     Layout
		desc  sql.NullString
		thumb sql.NullString
	)
	err := rows.Scan(&l.ID, &l.Name, &desc, &l.BasePrice, &l.Price1Mo, &l.Price3Mo,
		&l.Price6Mo, &l.Price1Yr, &thumb, &l.IsActive)
	l.Description = desc.String
	l.ThumbnailURL = thumb.String
	return l, err
}

// ListPublicLayouts returns the store page: active layouts only.
func (s *CatalogService) ListPublicLayouts(ctx context.Context) ([]Layout, error) {
	return s.listLayouts(ctx, true)
}

// ListLayouts returns everything, for the admin console.
func (s *CatalogService) ListLayouts(ctx context.Context) ([]Layout, error) {
	return s.listLayouts(ctx, false)
}

func (s *CatalogService) listLayouts(ctx context.Context, activeOnly bool) ([]Layout, error) {
	q := `SELECT ` + layoutCols + ` FROM layouts`
	if activeOnly {
		q += ` WHERE is_active = 1`
	}
	q += ` ORDER BY id;`

	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Layout{}
	for rows.Next() {
		l, err := scanLayout(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// CreateLayout inserts a layout, defaulting unset tier prices from the
// base price with the store's historical multipliers.
func (s *CatalogService) CreateLayout(ctx context.Context, l Layout) error {
	if l.ID == "" || l.Name == "" || l.BasePrice < 0 {
		return ErrMissingFields
	}
	if l.Price1Mo <= 0 {
		l.Price1Mo = l.BasePrice
	}
	if l.Price3Mo <= 0 {
		l.Price3Mo = l.BasePrice * 2.5
	}
	if l.Price6Mo <= 0 {
		l.Price6Mo = l.BasePrice * 4.5
	}
	if l.Price1Yr <= 0 {
		l.Price1Yr = l.BasePrice * 8
	}

	_, err := s.db.ExecContext(ctx, `
INSERT INTO layouts (id, name, description, base_price, price_1mo, price_3mo, price_6mo, price_1yr, thumbnail_url, is_active)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 1);
`, l.ID, l.Name, l.Description, l.BasePrice, l.Price1Mo, l.Price3Mo, l.Price6Mo, l.Price1Yr, l.ThumbnailURL)
	if isSQLiteConstraint(err) {
		return ErrLayoutExists
	}
	return err
}

// LayoutUpdate carries partial updates; nil means leave the column
// alone.
type LayoutUpdate struct {
	BasePrice    *float64
	Price1Mo     *float64
	Price3Mo     *float64
	Price6Mo     *float64
	Price1Yr     *float64
	IsActive     *bool
	ThumbnailURL *string
}

func (s *CatalogService) UpdateLayout(ctx context.Context, id string, upd LayoutUpdate) error {
	sets := []string{}
	args := []interface{}{}

	addF := func(col string, v *float64) {
		if v != nil {
			sets = append(sets, col+" = ?")
			args = append(args, *v)
		}
	}
	addF("base_price", upd.BasePrice)
	addF("price_1mo", upd.Price1Mo)
	addF("price_3mo", upd.Price3Mo)
	addF("price_6mo", upd.Price6Mo)
	addF("price_1yr", upd.Price1Yr)
	if upd.IsActive != nil {
		sets = append(sets, "is_active = ?")
		args = append(args, boolToInt(*upd.IsActive))
	}
	if upd.ThumbnailURL != nil {
		sets = append(sets, "thumbnail_url = ?")
		args = append(args, *upd.ThumbnailURL)
	}

	if len(sets) == 0 {
		return ErrNoFields
	}
	args = append(args, id)

	res, err := s.db.ExecContext(ctx,
		`UPDATE layouts SET `+strings.Join(sets, ", ")+` WHERE id = ?;`, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- products ---

const productCols = `id, name, description, price, file_url, file_type, thumbnail_url, is_active, created_at_ns`

func scanProduct(scan func(dest ...interface{}) error) (Product, error) {
	var (
		p         Product
		desc      sql.NullString
		ftype     sql.NullString
		thumb     sql.NullString
		createdNs int64
	)
	err := scan(&p.ID, &p.Name, &desc, &p.Price, &p.FileURL, &ftype, &thumb, &p.IsActive, &createdNs)
	p.Description = desc.String
	p.FileType = ftype.String
	p.ThumbnailURL = thumb.String
	p.CreatedAt = time.Unix(0, createdNs)
	return p, err
}

func (s *CatalogService) ListPublicProducts(ctx context.Context) ([]Product, error) {
	return s.listProducts(ctx, true)
}

func (s *CatalogService) ListProducts(ctx context.Context) ([]Product, error) {
	return s.listProducts(ctx, false)
}

func (s *CatalogService) listProducts(ctx context.Context, activeOnly bool) ([]Product, error) {
	q := `SELECT ` + productCols + ` FROM products`
	if activeOnly {
		q += ` WHERE is_active = 1`
	}
	q += ` ORDER BY created_at_ns DESC;`

	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Product{}
	for rows.Next() {
		p, err := scanProduct(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *CatalogService) GetProduct(ctx context.Context, id int64) (Product, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+productCols+` FROM products WHERE id = ? AND is_active = 1;`, id)
	p, err := scanProduct(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return Product{}, ErrNotFound
	}
	return p, err
}

func (s *CatalogService) CreateProduct(ctx context.Context, p Product, now time.Time) (int64, error) {
	if p.Name == "" || p.FileURL == "" || p.Price < 0 {
		return 0, ErrMissingFields
	}
	res, err := s.db.ExecContext(ctx, `
INSERT INTO products (name, description, price, file_url, file_type, thumbnail_url, is_active, created_at_ns)
VALUES (?, ?, ?, ?, ?, ?, ?, ?);
`, p.Name, p.Description, p.Price, p.FileURL, p.FileType, p.ThumbnailURL,
		boolToInt(p.IsActive), nowOr(now).UnixNano())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

type ProductUpdate struct {
	Name         *string
	Description  *string
	Price        *float64
	FileURL      *string
	FileType     *string
	ThumbnailURL *string
	IsActive     *bool
}

func (s *CatalogService) UpdateProduct(ctx context.Context, id int64, upd ProductUpdate) error {
	sets := []string{}
	args := []interface{}{}

	addS := func(col string, v *string) {
		if v != nil {
			sets = append(sets, col+" = ?")
			args = append(args, *v)
		}
	}
	addS("name", upd.Name)
	addS("description", upd.Description)
	if upd.Price != nil {
		sets = append(sets, "price = ?")
		args = append(args, *upd.Price)
	}
	addS("file_url", upd.FileURL)
	addS("file_type", upd.FileType)
	addS("thumbnail_url", upd.ThumbnailURL)
	if upd.IsActive != nil {
		sets = append(sets, "is_active = ?")
		args = append(args, boolToInt(*upd.IsActive))
	}

	if len(sets) == 0 {
		return ErrNoFields
	}
	args = append(args, id)

	res, err := s.db.ExecContext(ctx,
		`UPDATE products SET `+strings.Join(sets, ", ")+` WHERE id = ?;`, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *CatalogService) DeleteProduct(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = ?;`, id)
	return err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
