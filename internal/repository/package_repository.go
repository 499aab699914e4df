package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/studio-booking/internal/model"
)

// PackageRepo persists the photography package catalog.  Features and
// image URLs are stored as JSON arrays.
type PackageRepo struct {
	db *sql.DB
}

func NewPackageRepo(db *sql.DB) *PackageRepo { return &PackageRepo{db: db} }

// PackageFilter narrows List.  Zero values match everything.
type PackageFilter struct {
	Category string
	Query    string
}

const packageColumns = `id, name, category, description, price_cents, features, duration, duration_unit, images, created_at, updated_at`

func scanPackage(rs rowScanner) (model.Package, error) {
	var (
		p              model.Package
		features, imgs string
	)
	if err := rs.Scan(&p.ID, &p.Name, &p.Category, &p.Description, &p.PriceCents, &features,
		&p.Duration, &p.DurationUnit, &imgs, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return model.Package{}, err
	}
	if err := json.Unmarshal([]byte(features), &p.Features); err != nil {
		return model.Package{}, err
	}
	if err := json.Unmarshal([]byte(imgs), &p.Images); err != nil {
		return model.Package{}, err
	}
	return p, nil
}

func encodeList(v []string) string {
	if v == nil {
		v = []string{}
	}
	b, _ := json.Marshal(v)
	return string(b)
}

// Create inserts a package and sets its ID.
func (r *PackageRepo) Create(ctx context.Context, p *model.Package) error {
	now := time.Now().UTC().Truncate(time.Second)
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO packages (name, category, description, price_cents, features, duration, duration_unit, images, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Name, p.Category, p.Description, p.PriceCents, encodeList(p.Features), p.Duration, p.DurationUnit,
		encodeList(p.Images), now, now)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID, p.CreatedAt, p.UpdatedAt = uint64(id), now, now
	return nil
}

// GetByID fetches a package by id.
func (r *PackageRepo) GetByID(ctx context.Context, id uint64) (model.Package, error) {
	p, err := scanPackage(r.db.QueryRowContext(ctx, `SELECT `+packageColumns+` FROM packages WHERE id = ? LIMIT 1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Package{}, ErrPackageNotFound
	}
	return p, err
}

// List returns packages newest first.
func (r *PackageRepo) List(ctx context.Context, f PackageFilter) ([]model.Package, error) {
	var (
		where []string
		args  []any
	)
	if c := strings.TrimSpace(f.Category); c != "" {
		where = append(where, "category = ?")
		args = append(args, c)
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		where = append(where, "(name LIKE ? OR description LIKE ?)")
		like := "%" + q + "%"
		args = append(args, like, like)
	}
	query := `SELECT ` + packageColumns + ` FROM packages`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Package{}
	for rows.Next() {
		p, err := scanPackage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Update overwrites the editable fields of a package.
func (r *PackageRepo) Update(ctx context.Context, p *model.Package) error {
	now := time.Now().UTC().Truncate(time.Second)
	res, err := r.db.ExecContext(ctx,
		`UPDATE packages SET name = ?, category = ?, description = ?, price_cents = ?, features = ?,
		 duration = ?, duration_unit = ?, images = ?, updated_at = ? WHERE id = ?`,
		p.Name, p.Category, p.Description, p.PriceCents, encodeList(p.Features), p.Duration, p.DurationUnit,
		encodeList(p.Images), now, p.ID)
	if err != nil {
		return err
	}
	// MySQL reports zero affected rows for an unchanged update, so
	// existence is checked separately.
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := r.GetByID(ctx, p.ID); err != nil {
			return err
		}
	}
	p.UpdatedAt = now
	return nil
}

// Delete removes a package.  Packages referenced by bookings are kept and
// ErrConflict is returned.
func (r *PackageRepo) Delete(ctx context.Context, id uint64) error {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM bookings WHERE package_id = ?`, id).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return ErrConflict
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM packages WHERE id = ?`, id)
	ok, err := affectedOne(res, err)
	if err != nil {
		return err
	}
	if !ok {
		return ErrPackageNotFound
	}
	return nil
}
