package core

import (
	"time"

	"github.com/gosimple/slug"
)

// Newsletter lifecycle. Transitions are forward-only:
// created -> started -> completed.
const (
	StatusCreated   = "created"
	StatusStarted   = "started"
	StatusCompleted = "completed"
)

// DispatchSuccessResponse is stored as the server response of a fully
// successful attempt.
const DispatchSuccessResponse = "newsletter delivered to all recipients"

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Username     string    `json:"username"`
	PhoneNumber  string    `json:"phone_number,omitempty"`
	PasswordHash string    `json:"-"`
	IsActive     bool      `json:"is_active"`
	IsModerator  bool      `json:"is_moderator"`
	CreatedAt    time.Time `json:"created_at"`
}

type Recipient struct {
	ID         string    `json:"id"`
	FirstName  string    `json:"first_name"`
	LastName   string    `json:"last_name"`
	Patronymic string    `json:"patronymic,omitempty"`
	Email      string    `json:"email"`
	Comment    string    `json:"comment,omitempty"`
	Slug       string    `json:"slug"`
	OwnerID    *string   `json:"owner_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// EnsureSlug derives the URL slug from last and first name when none
// was supplied. Non-latin names are transliterated.
func (r *Recipient) EnsureSlug() {
	if r.Slug == "" {
		r.Slug = slug.Make(r.LastName + " " + r.FirstName)
	} else {
		r.Slug = slug.Make(r.Slug)
	}
}

type Message struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Body    string `json:"body"`
	OwnerID string `json:"owner_id"`
}

type Newsletter struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Status        string     `json:"status"`
	MessageID     *string    `json:"message_id,omitempty"`
	IsActive      bool       `json:"is_active"`
	FirstDispatch *time.Time `json:"first_dispatch,omitempty"`
	EndDispatch   *time.Time `json:"end_dispatch,omitempty"`
	OwnerID       string     `json:"owner_id"`
}

// Attempt is one append-only record of a dispatch action. A single row
// covers the whole recipient loop of one invocation, not one row per
// recipient.
type Attempt struct {
	ID             string    `json:"id"`
	AttemptedAt    time.Time `json:"attempted_at"`
	Success        bool      `json:"success"`
	ServerResponse string    `json:"server_response"`
	NewsletterID   string    `json:"newsletter_id"`
	OwnerID        string    `json:"owner_id"`
}

// NewsletterRecipients pairs a newsletter with the ids of its
// recipient set, as needed by the home page counters.
type NewsletterRecipients struct {
	Newsletter   Newsletter `json:"newsletter"`
	RecipientIDs []string   `json:"recipient_ids"`
}

// AttemptStat is an attempt row joined with the current size of its
// newsletter's recipient set.
type AttemptStat struct {
	Attempt        Attempt `json:"attempt"`
	RecipientCount int     `json:"recipient_count"`
}
