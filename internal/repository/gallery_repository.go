package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/studio-booking/internal/model"
)

// GalleryRepo persists gallery photos and reels.
type GalleryRepo struct {
	db *sql.DB
}

func NewGalleryRepo(db *sql.DB) *GalleryRepo { return &GalleryRepo{db: db} }

const galleryColumns = `id, type, src, thumbnail, title, alt, category, created_at`

func scanGallery(rs rowScanner) (model.GalleryItem, error) {
	var g model.GalleryItem
	err := rs.Scan(&g.ID, &g.Type, &g.Src, &g.Thumbnail, &g.Title, &g.Alt, &g.Category, &g.CreatedAt)
	return g, err
}

// Create inserts a gallery item.
func (r *GalleryRepo) Create(ctx context.Context, g *model.GalleryItem) error {
	now := time.Now().UTC().Truncate(time.Second)
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO gallery_items (type, src, thumbnail, title, alt, category, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		g.Type, g.Src, g.Thumbnail, g.Title, g.Alt, g.Category, now)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	g.ID, g.CreatedAt = uint64(id), now
	return nil
}

// List returns items newest first, optionally filtered by type and category.
func (r *GalleryRepo) List(ctx context.Context, kind, category string) ([]model.GalleryItem, error) {
	q := `SELECT ` + galleryColumns + ` FROM gallery_items WHERE (? = '' OR type = ?) AND (? = '' OR category = ?) ORDER BY id DESC`
	rows, err := r.db.QueryContext(ctx, q, kind, kind, category, category)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.GalleryItem{}
	for rows.Next() {
		g, err := scanGallery(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// GetByID fetches one item.
func (r *GalleryRepo) GetByID(ctx context.Context, id uint64) (model.GalleryItem, error) {
	g, err := scanGallery(r.db.QueryRowContext(ctx, `SELECT `+galleryColumns+` FROM gallery_items WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.GalleryItem{}, ErrGalleryItemNotFound
	}
	return g, err
}

// Delete removes one item.
func (r *GalleryRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM gallery_items WHERE id = ?`, id)
	ok, err := affectedOne(res, err)
	if err != nil {
		return err
	}
	if !ok {
		return ErrGalleryItemNotFound
	}
	return nil
}
