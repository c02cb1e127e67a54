package core

import "context"

// FinishDispatch persists the outcome of one dispatch invocation:
// the attempt row first, then the mutated newsletter.
func (s *Store) FinishDispatch(ctx context.Context, att *Attempt, n *Newsletter) error {
	err := s.DB.QueryRow(ctx, `
		INSERT INTO attempts(attempted_at, success, server_response, newsletter_id, owner_id)
		VALUES($1,$2,$3,$4,$5)
		RETURNING id
	`, att.AttemptedAt, att.Success, att.ServerResponse, att.NewsletterID, att.OwnerID).Scan(&att.ID)
	if err != nil {
		return mapErr(err)
	}
	_, err = s.DB.Exec(ctx, `
		UPDATE newsletters SET status=$2, end_dispatch=$3 WHERE id=$1
	`, n.ID, n.Status, n.EndDispatch)
	return mapErr(err)
}

const attemptCols = `id, attempted_at, success, server_response, newsletter_id, owner_id`

// ListAttempts returns a user's dispatch ledger, newest first.
func (s *Store) ListAttempts(ctx context.Context, ownerID string) ([]Attempt, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT `+attemptCols+` FROM attempts WHERE owner_id=$1 ORDER BY attempted_at DESC
	`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Attempt{}
	for rows.Next() {
		var a Attempt
		if err := rows.Scan(&a.ID, &a.AttemptedAt, &a.Success, &a.ServerResponse, &a.NewsletterID, &a.OwnerID); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ListAttemptStats joins each owned attempt with the current size of
// its newsletter's recipient set, as the home page counters need.
func (s *Store) ListAttemptStats(ctx context.Context, ownerID string) ([]AttemptStat, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT a.id, a.attempted_at, a.success, a.server_response, a.newsletter_id, a.owner_id,
		       (SELECT count(*) FROM newsletter_recipients nr WHERE nr.newsletter_id = a.newsletter_id)
		FROM attempts a
		WHERE a.owner_id=$1
		ORDER BY a.attempted_at
	`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []AttemptStat{}
	for rows.Next() {
		var st AttemptStat
		if err := rows.Scan(&st.Attempt.ID, &st.Attempt.AttemptedAt, &st.Attempt.Success,
			&st.Attempt.ServerResponse, &st.Attempt.NewsletterID, &st.Attempt.OwnerID, &st.RecipientCount); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}
