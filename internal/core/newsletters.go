package core

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
)

const newsletterCols = `id, name, status, message_id, is_active, first_dispatch, end_dispatch, owner_id`

func scanNewsletter(row pgx.Row) (*Newsletter, error) {
	var n Newsletter
	err := row.Scan(&n.ID, &n.Name, &n.Status, &n.MessageID, &n.IsActive, &n.FirstDispatch, &n.EndDispatch, &n.OwnerID)
	if err != nil {
		return nil, mapErr(err)
	}
	return &n, nil
}

func collectNewsletters(rows pgx.Rows) ([]Newsletter, error) {
	defer rows.Close()
	out := []Newsletter{}
	for rows.Next() {
		var n Newsletter
		if err := rows.Scan(&n.ID, &n.Name, &n.Status, &n.MessageID, &n.IsActive, &n.FirstDispatch, &n.EndDispatch, &n.OwnerID); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// CreateNewsletter inserts the newsletter and its recipient set in one
// transaction.
func (s *Store) CreateNewsletter(ctx context.Context, n *Newsletter, recipientIDs []string) error {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx, `
		INSERT INTO newsletters(name, message_id, owner_id) VALUES($1,$2,$3)
		RETURNING id, status, is_active
	`, n.Name, n.MessageID, n.OwnerID).Scan(&n.ID, &n.Status, &n.IsActive)
	if err != nil {
		return mapErr(err)
	}
	for _, rid := range recipientIDs {
		if _, err := tx.Exec(ctx, `
			INSERT INTO newsletter_recipients(newsletter_id, recipient_id) VALUES($1,$2)
			ON CONFLICT DO NOTHING
		`, n.ID, rid); err != nil {
			return mapErr(err)
		}
	}
	return tx.Commit(ctx)
}

func (s *Store) ListNewsletters(ctx context.Context, ownerID string) ([]Newsletter, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT `+newsletterCols+` FROM newsletters WHERE owner_id=$1 ORDER BY name
	`, ownerID)
	if err != nil {
		return nil, err
	}
	return collectNewsletters(rows)
}

func (s *Store) ListAllNewsletters(ctx context.Context) ([]Newsletter, error) {
	rows, err := s.DB.Query(ctx, `SELECT ` + newsletterCols + ` FROM newsletters ORDER BY name`)
	if err != nil {
		return nil, err
	}
	return collectNewsletters(rows)
}

// ListNewslettersWithRecipients loads newsletters together with their
// recipient id sets. An empty ownerID means all owners, as on the
// public home page.
func (s *Store) ListNewslettersWithRecipients(ctx context.Context, ownerID string) ([]NewsletterRecipients, error) {
	var (
		items []Newsletter
		err   error
	)
	if ownerID == "" {
		items, err = s.ListAllNewsletters(ctx)
	} else {
		items, err = s.ListNewsletters(ctx, ownerID)
	}
	if err != nil {
		return nil, err
	}
	out := make([]NewsletterRecipients, 0, len(items))
	for _, n := range items {
		ids, err := s.NewsletterRecipientIDs(ctx, n.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, NewsletterRecipients{Newsletter: n, RecipientIDs: ids})
	}
	return out, nil
}

func (s *Store) NewsletterByID(ctx context.Context, id string) (*Newsletter, error) {
	return scanNewsletter(s.DB.QueryRow(ctx, `SELECT `+newsletterCols+` FROM newsletters WHERE id=$1`, id))
}

func (s *Store) NewsletterRecipientIDs(ctx context.Context, id string) ([]string, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT recipient_id FROM newsletter_recipients WHERE newsletter_id=$1 ORDER BY recipient_id
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	ids := []string{}
	for rows.Next() {
		var rid string
		if err := rows.Scan(&rid); err != nil {
			return nil, err
		}
		ids = append(ids, rid)
	}
	return ids, rows.Err()
}

// UpdateNewsletter replaces name, message reference and recipient set.
// Status and dispatch timestamps belong to the dispatch engine and are
// never client-settable.
func (s *Store) UpdateNewsletter(ctx context.Context, n *Newsletter, recipientIDs []string, ownerID string) error {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		UPDATE newsletters SET name=$3, message_id=$4 WHERE id=$1 AND owner_id=$2
	`, n.ID, ownerID, n.Name, n.MessageID)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	if _, err := tx.Exec(ctx, `DELETE FROM newsletter_recipients WHERE newsletter_id=$1`, n.ID); err != nil {
		return mapErr(err)
	}
	for _, rid := range recipientIDs {
		if _, err := tx.Exec(ctx, `
			INSERT INTO newsletter_recipients(newsletter_id, recipient_id) VALUES($1,$2)
			ON CONFLICT DO NOTHING
		`, n.ID, rid); err != nil {
			return mapErr(err)
		}
	}
	return tx.Commit(ctx)
}

// DeleteNewsletter removes an owned newsletter; its attempt ledger
// rows cascade with it.
func (s *Store) DeleteNewsletter(ctx context.Context, id, ownerID string) error {
	tag, err := s.DB.Exec(ctx, `DELETE FROM newsletters WHERE id=$1 AND owner_id=$2`, id, ownerID)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DisableNewsletter is the moderator switch that suppresses further
// dispatch. Idempotent.
func (s *Store) DisableNewsletter(ctx context.Context, id string) error {
	tag, err := s.DB.Exec(ctx, `UPDATE newsletters SET is_active=false WHERE id=$1`, id)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ---- dispatch support ----

// NewsletterForDispatch loads everything one dispatch invocation
// needs: the newsletter, its message (nil when the reference was
// severed by a message delete) and the recipient set sorted by id for
// a deterministic send order.
func (s *Store) NewsletterForDispatch(ctx context.Context, id string) (*Newsletter, *Message, []Recipient, error) {
	n, err := s.NewsletterByID(ctx, id)
	if err != nil {
		return nil, nil, nil, err
	}
	var msg *Message
	if n.MessageID != nil {
		msg, err = s.MessageByID(ctx, *n.MessageID)
		if err != nil && err != ErrNotFound {
			return nil, nil, nil, err
		}
	}
	rows, err := s.DB.Query(ctx, `
		SELECT `+recipientCols+` FROM recipients
		WHERE id IN (SELECT recipient_id FROM newsletter_recipients WHERE newsletter_id=$1)
		ORDER BY id
	`, id)
	if err != nil {
		return nil, nil, nil, err
	}
	recips, err := collectRecipients(rows)
	if err != nil {
		return nil, nil, nil, err
	}
	return n, msg, recips, nil
}

// MarkStarted flips the newsletter into the in-progress state before
// any mail leaves, so a crash mid-loop stays visible. first_dispatch
// is re-set on every attempt, retries included.
func (s *Store) MarkStarted(ctx context.Context, id string, at time.Time) error {
	tag, err := s.DB.Exec(ctx, `
		UPDATE newsletters SET status=$2, first_dispatch=$3 WHERE id=$1
	`, id, StatusStarted, at)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
