package core

import (
	"context"

	"github.com/jackc/pgx/v5"
)

func scanMessage(row pgx.Row) (*Message, error) {
	var m Message
	if err := row.Scan(&m.ID, &m.Title, &m.Body, &m.OwnerID); err != nil {
		return nil, mapErr(err)
	}
	return &m, nil
}

func (s *Store) CreateMessage(ctx context.Context, m *Message) error {
	err := s.DB.QueryRow(ctx, `
		INSERT INTO messages(title, body, owner_id) VALUES($1,$2,$3) RETURNING id
	`, m.Title, m.Body, m.OwnerID).Scan(&m.ID)
	return mapErr(err)
}

func (s *Store) ListMessages(ctx context.Context, ownerID string) ([]Message, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT id, title, body, owner_id FROM messages WHERE owner_id=$1 ORDER BY title
	`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Message{}
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.Title, &m.Body, &m.OwnerID); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) MessageByID(ctx context.Context, id string) (*Message, error) {
	return scanMessage(s.DB.QueryRow(ctx, `SELECT id, title, body, owner_id FROM messages WHERE id=$1`, id))
}

func (s *Store) UpdateMessage(ctx context.Context, m *Message, ownerID string) error {
	tag, err := s.DB.Exec(ctx, `
		UPDATE messages SET title=$3, body=$4 WHERE id=$1 AND owner_id=$2
	`, m.ID, ownerID, m.Title, m.Body)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteMessage removes an owned message. Newsletters referencing it
// keep existing with a null message (FK SET NULL).
func (s *Store) DeleteMessage(ctx context.Context, id, ownerID string) error {
	tag, err := s.DB.Exec(ctx, `DELETE FROM messages WHERE id=$1 AND owner_id=$2`, id, ownerID)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
