package core

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCountAttempts(t *testing.T) {
	stats := []AttemptStat{
		{Attempt: Attempt{Success: true}, RecipientCount: 3},
		{Attempt: Attempt{Success: true}, RecipientCount: 4},
		{Attempt: Attempt{Success: false}, RecipientCount: 10},
	}
	c := CountAttempts(stats)
	require.Equal(t, 2, c.Successful)
	require.Equal(t, 1, c.Failed)
	// Messages are summed per successful attempt, not deduplicated.
	require.Equal(t, 7, c.MessagesSent)
}

func TestCountAttemptsEmpty(t *testing.T) {
	c := CountAttempts(nil)
	require.Zero(t, c.Successful)
	require.Zero(t, c.Failed)
	require.Zero(t, c.MessagesSent)
}

func TestCountNewsletters(t *testing.T) {
	items := []NewsletterRecipients{
		{Newsletter: Newsletter{Status: StatusStarted}, RecipientIDs: []string{"a", "b"}},
		{Newsletter: Newsletter{Status: StatusCreated}, RecipientIDs: []string{"b"}},
		{Newsletter: Newsletter{Status: StatusCompleted}, RecipientIDs: nil},
	}
	c := CountNewsletters(items)
	require.Equal(t, 1, c.Started)
	require.Equal(t, 3, c.Total)
	// "b" appears in two newsletters but counts once.
	require.Equal(t, 2, c.UniqueRecipients)
}

func TestEnsureSlug(t *testing.T) {
	r := Recipient{FirstName: "Ivan", LastName: "Petrov"}
	r.EnsureSlug()
	require.Equal(t, "petrov-ivan", r.Slug)

	// Cyrillic names transliterate instead of collapsing to nothing.
	r = Recipient{FirstName: "Иван", LastName: "Петров"}
	r.EnsureSlug()
	require.Equal(t, "petrov-ivan", r.Slug)

	// A caller-provided slug is normalized, not replaced.
	r = Recipient{FirstName: "Ivan", LastName: "Petrov", Slug: "My Custom Slug"}
	r.EnsureSlug()
	require.Equal(t, "my-custom-slug", r.Slug)
}
