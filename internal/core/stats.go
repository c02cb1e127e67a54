package core

// Home page counters. Both functions are read-only reports over data
// the caller already fetched; they sit above the cache layer.

// AttemptCounts is the per-user dispatch summary.
type AttemptCounts struct {
	Successful   int `json:"count_attempt_successful"`
	Failed       int `json:"count_attempt_fail"`
	MessagesSent int `json:"count_message"`
}

// CountAttempts sums, for every successful attempt, the current size
// of its newsletter's recipient set. Recipients shared across several
// successful newsletters are counted once per newsletter on purpose.
func CountAttempts(stats []AttemptStat) AttemptCounts {
	var c AttemptCounts
	for _, st := range stats {
		if st.Attempt.Success {
			c.Successful++
			c.MessagesSent += st.RecipientCount
		} else {
			c.Failed++
		}
	}
	return c
}

// NewsletterCounts is the newsletter overview shown on the home page.
type NewsletterCounts struct {
	Started          int `json:"count_started"`
	Total            int `json:"count_newsletter"`
	UniqueRecipients int `json:"unique_recipients"`
}

// CountNewsletters counts in-progress and total newsletters and the
// number of distinct recipients across all of them. Unlike
// CountAttempts, recipients here are deduplicated.
func CountNewsletters(items []NewsletterRecipients) NewsletterCounts {
	c := NewsletterCounts{}
	seen := map[string]struct{}{}
	for _, it := range items {
		c.Total++
		if it.Newsletter.Status == StatusStarted {
			c.Started++
		}
		for _, id := range it.RecipientIDs {
			seen[id] = struct{}{}
		}
	}
	c.UniqueRecipients = len(seen)
	return c
}
