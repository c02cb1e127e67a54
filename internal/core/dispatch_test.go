package core

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

// failAfter delivers successfully until the call count reaches failAt,
// then fails every call. failAt=0 never fails.
type failAfter struct {
	failAt int
	calls  int
	sent   []string
}

func (f *failAfter) Send(_ context.Context, to, _, _ string) error {
	f.calls++
	if f.failAt > 0 && f.calls >= f.failAt {
		return errors.New("smtp: connection refused")
	}
	f.sent = append(f.sent, to)
	return nil
}

func setupDispatch(t *testing.T, recipients int) (*Store, *Newsletter) {
	t.Helper()
	s := testStore(t)
	ctx := context.Background()

	u := mustUser(t, s, "owner@example.com")
	m := &Message{Title: "Hello", Body: "World", OwnerID: u.ID}
	require.NoError(t, s.CreateMessage(ctx, m))

	ids := make([]string, 0, recipients)
	for i := 0; i < recipients; i++ {
		r := mustRecipient(t, s, u,
			string(rune('a'+i))+"@example.com", "First", "Last"+string(rune('A'+i)))
		ids = append(ids, r.ID)
	}
	n := &Newsletter{Name: "Weekly", MessageID: &m.ID, OwnerID: u.ID}
	require.NoError(t, s.CreateNewsletter(ctx, n, ids))
	return s, n
}

func TestDispatchSuccess(t *testing.T) {
	s, n := setupDispatch(t, 3)
	sender := &failAfter{}
	d := &Dispatcher{Store: s, Sender: sender}

	att, err := d.Dispatch(context.Background(), n.ID)
	require.NoError(t, err)
	require.True(t, att.Success)
	require.Equal(t, DispatchSuccessResponse, att.ServerResponse)
	require.Equal(t, 3, sender.calls)

	got, err := s.NewsletterByID(context.Background(), n.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, got.Status)
	require.NotNil(t, got.FirstDispatch)
	require.NotNil(t, got.EndDispatch)
	require.False(t, got.EndDispatch.Before(*got.FirstDispatch))
}

func TestDispatchAbortsOnFirstFailure(t *testing.T) {
	s, n := setupDispatch(t, 5)
	sender := &failAfter{failAt: 3}
	d := &Dispatcher{Store: s, Sender: sender}

	att, err := d.Dispatch(context.Background(), n.ID)
	require.NoError(t, err)
	require.False(t, att.Success)
	require.Equal(t, "smtp: connection refused", att.ServerResponse)

	// The third send failed; recipients four and five were never tried.
	require.Equal(t, 3, sender.calls)
	require.Len(t, sender.sent, 2)

	got, err := s.NewsletterByID(context.Background(), n.ID)
	require.NoError(t, err)
	require.Equal(t, StatusStarted, got.Status)
	require.NotNil(t, got.FirstDispatch)
	require.Nil(t, got.EndDispatch)
}

func TestDispatchRetryAppendsAttempt(t *testing.T) {
	s, n := setupDispatch(t, 2)
	ctx := context.Background()

	d := &Dispatcher{Store: s, Sender: &failAfter{failAt: 1}}
	_, err := d.Dispatch(ctx, n.ID)
	require.NoError(t, err)

	first, err := s.NewsletterByID(ctx, n.ID)
	require.NoError(t, err)

	// Retry with a working transport.
	d.Sender = &failAfter{}
	att, err := d.Dispatch(ctx, n.ID)
	require.NoError(t, err)
	require.True(t, att.Success)

	attempts, err := s.ListAttempts(ctx, n.OwnerID)
	require.NoError(t, err)
	require.Len(t, attempts, 2)

	// first_dispatch moves forward on each attempt.
	second, err := s.NewsletterByID(ctx, n.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, second.Status)
	require.False(t, second.FirstDispatch.Before(*first.FirstDispatch))
}

func TestDispatchEmptyRecipientSet(t *testing.T) {
	s, n := setupDispatch(t, 0)
	sender := &failAfter{}
	d := &Dispatcher{Store: s, Sender: sender}

	att, err := d.Dispatch(context.Background(), n.ID)
	require.NoError(t, err)
	require.True(t, att.Success)
	require.Zero(t, sender.calls)

	got, err := s.NewsletterByID(context.Background(), n.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, got.Status)
}

func TestDispatchPreconditions(t *testing.T) {
	s, n := setupDispatch(t, 1)
	ctx := context.Background()
	d := &Dispatcher{Store: s, Sender: &failAfter{}}

	t.Run("disabled", func(t *testing.T) {
		require.NoError(t, s.DisableNewsletter(ctx, n.ID))
		_, err := d.Dispatch(ctx, n.ID)
		require.ErrorIs(t, err, ErrNewsletterInactive)
	})

	t.Run("no message", func(t *testing.T) {
		u := mustUser(t, s, "other@example.com")
		bare := &Newsletter{Name: "No message", OwnerID: u.ID}
		require.NoError(t, s.CreateNewsletter(ctx, bare, nil))
		_, err := d.Dispatch(ctx, bare.ID)
		require.ErrorIs(t, err, ErrNewsletterNoMessage)
	})

	t.Run("completed", func(t *testing.T) {
		s2, n2 := setupDispatch(t, 1)
		d2 := &Dispatcher{Store: s2, Sender: &failAfter{}}
		_, err := d2.Dispatch(ctx, n2.ID)
		require.NoError(t, err)
		_, err = d2.Dispatch(ctx, n2.ID)
		require.ErrorIs(t, err, ErrNewsletterCompleted)
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := d.Dispatch(ctx, "00000000-0000-0000-0000-000000000000")
		require.ErrorIs(t, err, ErrNotFound)
	})
}
