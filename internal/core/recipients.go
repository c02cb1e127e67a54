package core

import (
	"context"

	"github.com/jackc/pgx/v5"
)

const recipientCols = `id, first_name, last_name, coalesce(patronymic,''), email, coalesce(comment,''), slug, owner_id, created_at`

func scanRecipient(row pgx.Row) (*Recipient, error) {
	var r Recipient
	err := row.Scan(&r.ID, &r.FirstName, &r.LastName, &r.Patronymic, &r.Email, &r.Comment, &r.Slug, &r.OwnerID, &r.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &r, nil
}

func collectRecipients(rows pgx.Rows) ([]Recipient, error) {
	defer rows.Close()
	out := []Recipient{}
	for rows.Next() {
		var r Recipient
		if err := rows.Scan(&r.ID, &r.FirstName, &r.LastName, &r.Patronymic, &r.Email, &r.Comment, &r.Slug, &r.OwnerID, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) CreateRecipient(ctx context.Context, r *Recipient) error {
	r.EnsureSlug()
	err := s.DB.QueryRow(ctx, `
		INSERT INTO recipients(first_name, last_name, patronymic, email, comment, slug, owner_id)
		VALUES($1,$2,$3,$4,$5,$6,$7)
		RETURNING id, created_at
	`, r.FirstName, r.LastName, r.Patronymic, r.Email, r.Comment, r.Slug, r.OwnerID).
		Scan(&r.ID, &r.CreatedAt)
	return mapErr(err)
}

// ListRecipients returns the recipients owned by a user, ordered by
// last name as on the recipient list page.
func (s *Store) ListRecipients(ctx context.Context, ownerID string) ([]Recipient, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT `+recipientCols+` FROM recipients WHERE owner_id=$1 ORDER BY last_name, first_name
	`, ownerID)
	if err != nil {
		return nil, err
	}
	return collectRecipients(rows)
}

// ListAllRecipients is the moderator view over every owner.
func (s *Store) ListAllRecipients(ctx context.Context) ([]Recipient, error) {
	rows, err := s.DB.Query(ctx, `SELECT `+recipientCols+` FROM recipients ORDER BY last_name, first_name`)
	if err != nil {
		return nil, err
	}
	return collectRecipients(rows)
}

func (s *Store) RecipientBySlug(ctx context.Context, slug string) (*Recipient, error) {
	return scanRecipient(s.DB.QueryRow(ctx, `SELECT `+recipientCols+` FROM recipients WHERE slug=$1`, slug))
}

// UpdateRecipient mutates an owned recipient. A non-owner gets
// ErrNotFound rather than a hint that the row exists.
func (s *Store) UpdateRecipient(ctx context.Context, r *Recipient, ownerID string) error {
	r.EnsureSlug()
	tag, err := s.DB.Exec(ctx, `
		UPDATE recipients
		SET first_name=$3, last_name=$4, patronymic=$5, email=$6, comment=$7, slug=$8
		WHERE id=$1 AND owner_id=$2
	`, r.ID, ownerID, r.FirstName, r.LastName, r.Patronymic, r.Email, r.Comment, r.Slug)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteRecipient removes an owned recipient. Membership rows in any
// newsletter's recipient set go with it (FK cascade).
func (s *Store) DeleteRecipient(ctx context.Context, id, ownerID string) error {
	tag, err := s.DB.Exec(ctx, `DELETE FROM recipients WHERE id=$1 AND owner_id=$2`, id, ownerID)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
