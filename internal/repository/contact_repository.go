package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/studio-booking/internal/model"
)

type ContactRepo struct{ DB *sql.DB }

func NewContactRepo(db *sql.DB) *ContactRepo { return &ContactRepo{DB: db} }

// Create stores a contact form message.
func (r *ContactRepo) Create(ctx context.Context, m *model.ContactMessage) error {
	now := time.Now().UTC().Truncate(time.Second)
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO contact_messages (name, email, mobile, subject, message, created_at) VALUES (?,?,?,?,?,?)",
		m.Name, m.Email, m.Mobile, m.Subject, m.Message, now)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	m.ID, m.CreatedAt = uint64(id), now
	return nil
}

// List returns messages newest first.
func (r *ContactRepo) List(ctx context.Context) ([]model.ContactMessage, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT id,name,email,mobile,subject,message,created_at FROM contact_messages ORDER BY id DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.ContactMessage{}
	for rows.Next() {
		var m model.ContactMessage
		if err := rows.Scan(&m.ID, &m.Name, &m.Email, &m.Mobile, &m.Subject, &m.Message, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
