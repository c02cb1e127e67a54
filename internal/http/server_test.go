package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/skypost/mailing-service/internal/auth"
	"github.com/skypost/mailing-service/internal/core"
	"github.com/skypost/mailing-service/internal/db"
	"github.com/skypost/mailing-service/internal/mailer"
)

func newTestServer(t *testing.T) (*Server, http.Handler) {
	t.Helper()
	pool := db.StartTestPostgres(t)
	s := NewServer(pool, Options{
		Mailer:    &mailer.Dummy{Delay: time.Millisecond},
		JWTSecret: "test-secret",
	})
	return s, s.Router()
}

func doJSON(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	out := map[string]any{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func registerAndLogin(t *testing.T, h http.Handler, email string) string {
	t.Helper()
	rec := doJSON(t, h, http.MethodPost, "/auth/register", "", map[string]string{
		"email": email, "username": email, "password": "password-123",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doJSON(t, h, http.MethodPost, "/auth/login", "", map[string]string{
		"email": email, "password": "password-123",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	token, _ := decodeBody(t, rec)["token"].(string)
	require.NotEmpty(t, token)
	return token
}

func TestRegisterAndLogin(t *testing.T) {
	_, h := newTestServer(t)

	rec := doJSON(t, h, http.MethodPost, "/auth/register", "", map[string]string{
		"email": "alice@example.com", "username": "alice", "password": "password-123",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	body := decodeBody(t, rec)
	require.NotEmpty(t, body["id"])
	require.Equal(t, true, body["is_active"])

	// Duplicate email
	rec = doJSON(t, h, http.MethodPost, "/auth/register", "", map[string]string{
		"email": "alice@example.com", "username": "alice2", "password": "password-123",
	})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	// Wrong password
	rec = doJSON(t, h, http.MethodPost, "/auth/login", "", map[string]string{
		"email": "alice@example.com", "password": "wrong-password",
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	// Good credentials
	rec = doJSON(t, h, http.MethodPost, "/auth/login", "", map[string]string{
		"email": "alice@example.com", "password": "password-123",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, decodeBody(t, rec)["token"])
}

func TestRegisterValidation(t *testing.T) {
	_, h := newTestServer(t)

	cases := []map[string]string{
		{"email": "not-an-email", "username": "x", "password": "password-123"},
		{"email": "x@example.com", "username": "x", "password": "short"},
		{"email": "x@example.com", "password": "password-123"}, // no username
	}
	for _, c := range cases {
		rec := doJSON(t, h, http.MethodPost, "/auth/register", "", c)
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
	}

	req := httptest.NewRequest(http.MethodPost, "/auth/register", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProfile(t *testing.T) {
	_, h := newTestServer(t)
	token := registerAndLogin(t, h, "alice@example.com")

	rec := doJSON(t, h, http.MethodGet, "/profile", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "alice@example.com", decodeBody(t, rec)["email"])

	rec = doJSON(t, h, http.MethodPut, "/profile", token, map[string]string{
		"username": "alice-renamed", "phone_number": "79001234567",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/profile", token, nil)
	body := decodeBody(t, rec)
	require.Equal(t, "alice-renamed", body["username"])
	require.Equal(t, "79001234567", body["phone_number"])
}

func TestAuthRequired(t *testing.T) {
	_, h := newTestServer(t)

	for _, path := range []string{"/recipients", "/messages", "/newsletters", "/attempts", "/profile"} {
		rec := doJSON(t, h, http.MethodGet, path, "", nil)
		require.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}

	rec := doJSON(t, h, http.MethodGet, "/profile", "garbage-token", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRecipientCRUD(t *testing.T) {
	_, h := newTestServer(t)
	token := registerAndLogin(t, h, "alice@example.com")

	rec := doJSON(t, h, http.MethodPost, "/recipients", token, map[string]string{
		"first_name": "Ivan", "last_name": "Petrov", "email": "ivan@example.com",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	slug := decodeBody(t, rec)["slug"].(string)
	require.Equal(t, "petrov-ivan", slug)

	// Public detail page, no token needed.
	rec = doJSON(t, h, http.MethodGet, "/recipients/"+slug, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// List is served (through the cache) and updates after writes.
	rec = doJSON(t, h, http.MethodGet, "/recipients", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, decodeBody(t, rec)["items"], 1)

	rec = doJSON(t, h, http.MethodPut, "/recipients/"+slug, token, map[string]string{
		"first_name": "Ivan", "last_name": "Petrov", "email": "ivan@example.com", "comment": "vip",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "vip", decodeBody(t, rec)["comment"])

	rec = doJSON(t, h, http.MethodDelete, "/recipients/"+slug, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/recipients", token, nil)
	require.Empty(t, decodeBody(t, rec)["items"])

	rec = doJSON(t, h, http.MethodGet, "/recipients/"+slug, "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCrossOwnerAccess(t *testing.T) {
	_, h := newTestServer(t)
	alice := registerAndLogin(t, h, "alice@example.com")
	bob := registerAndLogin(t, h, "bob@example.com")

	rec := doJSON(t, h, http.MethodPost, "/recipients", alice, map[string]string{
		"first_name": "Ivan", "last_name": "Petrov", "email": "ivan@example.com",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	slug := decodeBody(t, rec)["slug"].(string)

	// Bob cannot see Alice's rows in his list, nor mutate them.
	rec = doJSON(t, h, http.MethodGet, "/recipients", bob, nil)
	require.Empty(t, decodeBody(t, rec)["items"])

	rec = doJSON(t, h, http.MethodDelete, "/recipients/"+slug, bob, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func setupNewsletter(t *testing.T, h http.Handler, token string) string {
	t.Helper()
	rec := doJSON(t, h, http.MethodPost, "/messages", token, map[string]string{
		"title": "Hello", "body": "World",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	messageID := decodeBody(t, rec)["id"].(string)

	rec = doJSON(t, h, http.MethodPost, "/recipients", token, map[string]string{
		"first_name": "Ivan", "last_name": "Petrov", "email": "ivan@example.com",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	recipientID := decodeBody(t, rec)["id"].(string)

	rec = doJSON(t, h, http.MethodPost, "/newsletters", token, map[string]any{
		"name": "Weekly", "message_id": messageID, "recipient_ids": []string{recipientID},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	require.Equal(t, core.StatusCreated, body["status"])
	return body["id"].(string)
}

func TestSendNewsletter(t *testing.T) {
	_, h := newTestServer(t)
	token := registerAndLogin(t, h, "alice@example.com")
	id := setupNewsletter(t, h, token)

	rec := doJSON(t, h, http.MethodPost, "/newsletters/"+id+"/send", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	require.Equal(t, "newsletter sent successfully", body["message"])
	attempt := body["attempt"].(map[string]any)
	require.Equal(t, true, attempt["success"])
	require.Equal(t, core.DispatchSuccessResponse, attempt["server_response"])

	// A completed newsletter refuses another run.
	rec = doJSON(t, h, http.MethodPost, "/newsletters/"+id+"/send", token, nil)
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/attempts", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, decodeBody(t, rec)["items"], 1)
}

func TestSendNewsletterWithoutMessage(t *testing.T) {
	_, h := newTestServer(t)
	token := registerAndLogin(t, h, "alice@example.com")

	rec := doJSON(t, h, http.MethodPost, "/newsletters", token, map[string]string{"name": "Bare"})
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decodeBody(t, rec)["id"].(string)

	rec = doJSON(t, h, http.MethodPost, "/newsletters/"+id+"/send", token, nil)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestSendNewsletterNotOwned(t *testing.T) {
	_, h := newTestServer(t)
	alice := registerAndLogin(t, h, "alice@example.com")
	bob := registerAndLogin(t, h, "bob@example.com")
	id := setupNewsletter(t, h, alice)

	rec := doJSON(t, h, http.MethodPost, "/newsletters/"+id+"/send", bob, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHomeCounters(t *testing.T) {
	_, h := newTestServer(t)
	token := registerAndLogin(t, h, "alice@example.com")
	id := setupNewsletter(t, h, token)

	// Anonymous: newsletter counters only.
	rec := doJSON(t, h, http.MethodGet, "/", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	require.Contains(t, body, "newsletters")
	require.NotContains(t, body, "attempts")

	rec = doJSON(t, h, http.MethodPost, "/newsletters/"+id+"/send", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// Authenticated: own newsletters plus attempt totals.
	rec = doJSON(t, h, http.MethodGet, "/", token, nil)
	body = decodeBody(t, rec)
	newsletters := body["newsletters"].(map[string]any)
	require.EqualValues(t, 1, newsletters["count_newsletter"])
	require.EqualValues(t, 1, newsletters["unique_recipients"])
	attempts := body["attempts"].(map[string]any)
	require.EqualValues(t, 1, attempts["count_attempt_successful"])
	require.EqualValues(t, 1, attempts["count_message"])
}

func makeModerator(t *testing.T, s *Server, h http.Handler, email string) string {
	t.Helper()
	hash, err := auth.HashPassword("password-123")
	require.NoError(t, err)
	u := &core.User{Email: email, Username: email, PasswordHash: hash, IsModerator: true}
	require.NoError(t, s.Store.CreateUser(t.Context(), u))

	rec := doJSON(t, h, http.MethodPost, "/auth/login", "", map[string]string{
		"email": email, "password": "password-123",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	return decodeBody(t, rec)["token"].(string)
}

func TestModerationAccess(t *testing.T) {
	s, h := newTestServer(t)
	alice := registerAndLogin(t, h, "alice@example.com")
	mod := makeModerator(t, s, h, "mod@example.com")

	// Regular users are rejected.
	rec := doJSON(t, h, http.MethodGet, "/moderation/users", alice, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	// Moderators see regular accounts only.
	rec = doJSON(t, h, http.MethodGet, "/moderation/users", mod, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	items := decodeBody(t, rec)["items"].([]any)
	require.Len(t, items, 1)
	require.Equal(t, "alice@example.com", items[0].(map[string]any)["email"])
}

func TestModeratorDisablesNewsletter(t *testing.T) {
	s, h := newTestServer(t)
	alice := registerAndLogin(t, h, "alice@example.com")
	mod := makeModerator(t, s, h, "mod@example.com")
	id := setupNewsletter(t, h, alice)

	rec := doJSON(t, h, http.MethodPost, "/moderation/newsletters/"+id+"/disable", mod, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	// Second disable is a no-op success.
	rec = doJSON(t, h, http.MethodPost, "/moderation/newsletters/"+id+"/disable", mod, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// The owner can no longer dispatch it.
	rec = doJSON(t, h, http.MethodPost, "/newsletters/"+id+"/send", alice, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	// The owner's cached list shows the flag.
	rec = doJSON(t, h, http.MethodGet, "/newsletters", alice, nil)
	items := decodeBody(t, rec)["items"].([]any)
	require.Len(t, items, 1)
	require.Equal(t, false, items[0].(map[string]any)["is_active"])
}

func TestModeratorBlocksUser(t *testing.T) {
	s, h := newTestServer(t)
	alice := registerAndLogin(t, h, "alice@example.com")
	mod := makeModerator(t, s, h, "mod@example.com")

	rec := doJSON(t, h, http.MethodGet, "/profile", alice, nil)
	aliceID := decodeBody(t, rec)["id"].(string)

	rec = doJSON(t, h, http.MethodPost, "/moderation/users/"+aliceID+"/block", mod, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// The existing token stops working immediately.
	rec = doJSON(t, h, http.MethodGet, "/profile", alice, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	// And a fresh login is refused too.
	rec = doJSON(t, h, http.MethodPost, "/auth/login", "", map[string]string{
		"email": "alice@example.com", "password": "password-123",
	})
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestLoginThrottle(t *testing.T) {
	_, h := newTestServer(t)

	// Burst of five is allowed, the sixth hits the limiter.
	var last int
	for i := 0; i < 6; i++ {
		rec := doJSON(t, h, http.MethodPost, "/auth/login", "", map[string]string{
			"email": "nobody@example.com", "password": "password-123",
		})
		last = rec.Code
		if i < 5 {
			require.Equal(t, http.StatusUnauthorized, last)
		}
	}
	require.Equal(t, http.StatusTooManyRequests, last)
}

func TestHealthAndMetrics(t *testing.T) {
	_, h := newTestServer(t)

	for _, path := range []string{"/healthz", "/readyz", "/metrics", "/openapi.yaml"} {
		rec := doJSON(t, h, http.MethodGet, path, "", nil)
		require.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestMessageDeleteKeepsNewsletter(t *testing.T) {
	_, h := newTestServer(t)
	token := registerAndLogin(t, h, "alice@example.com")

	rec := doJSON(t, h, http.MethodPost, "/messages", token, map[string]string{
		"title": "Hello", "body": "World",
	})
	messageID := decodeBody(t, rec)["id"].(string)

	rec = doJSON(t, h, http.MethodPost, "/newsletters", token, map[string]any{
		"name": "Weekly", "message_id": messageID,
	})
	id := decodeBody(t, rec)["id"].(string)

	rec = doJSON(t, h, http.MethodDelete, "/messages/"+messageID, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/newsletters/"+id, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	n := decodeBody(t, rec)["newsletter"].(map[string]any)
	require.Nil(t, n["message_id"])
}
