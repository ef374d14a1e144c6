package account_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parleyhq/parley/internal/account"
	"github.com/parleyhq/parley/internal/authz"
	"github.com/parleyhq/parley/internal/privilege"
)

const cookieName = "parley_session"

type handlerFixture struct {
	*serviceFixture
	router chi.Router
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	f := newServiceFixture(t)

	gate := authz.NewGate(f.store, f.repo, privilege.NewResolver(), nil)
	guard := authz.Middleware{Gate: gate, CookieName: cookieName}
	handler := account.NewHandler(testLogger(), f.service, cookieName, time.Hour, false, guard)

	router := chi.NewRouter()
	router.Route("/account", handler.MountRoutes)
	return &handlerFixture{serviceFixture: f, router: router}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (f *handlerFixture) post(t *testing.T, path string, body any, mutate ...func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	for _, fn := range mutate {
		fn(req)
	}
	res := httptest.NewRecorder()
	f.router.ServeHTTP(res, req)
	return res
}

func decodeBody(t *testing.T, res *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &out))
	return out
}

func sessionCookie(res *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range res.Result().Cookies() {
		if c.Name == cookieName {
			return c
		}
	}
	return nil
}

func TestHandleRegisterCreated(t *testing.T) {
	f := newHandlerFixture(t)

	res := f.post(t, "/account/register", map[string]string{
		"username":         "amartinez",
		"email":            "ana@example.com",
		"password":         "Xk9#mQ2vLp",
		"confirm_password": "Xk9#mQ2vLp",
	})

	require.Equal(t, http.StatusCreated, res.Code)
	body := decodeBody(t, res)
	assert.Equal(t, string(account.StatusPending), body["status"])
}

func TestHandleRegisterValidationErrors(t *testing.T) {
	f := newHandlerFixture(t)

	res := f.post(t, "/account/register", map[string]string{
		"username":         "ab",
		"email":            "bad",
		"password":         "short",
		"confirm_password": "other",
	})

	require.Equal(t, http.StatusUnprocessableEntity, res.Code)
	body := decodeBody(t, res)
	fields, ok := body["errors"].(map[string]any)
	require.True(t, ok, "validation responses carry a field error map")
	assert.Contains(t, fields, "username")
	assert.Contains(t, fields, "confirm_password")
}

func TestHandleRegisterConflict(t *testing.T) {
	f := newHandlerFixture(t)
	f.repo.add(&account.User{Username: "amartinez", Email: "other@example.com", Status: account.StatusActive})

	res := f.post(t, "/account/register", map[string]string{
		"username":         "amartinez",
		"email":            "ana@example.com",
		"password":         "Xk9#mQ2vLp",
		"confirm_password": "Xk9#mQ2vLp",
	})

	assert.Equal(t, http.StatusConflict, res.Code)
}

func TestHandleLoginSetsCookieAndCSRFToken(t *testing.T) {
	f := newHandlerFixture(t)
	activeUser(t, f.serviceFixture, "Xk9#mQ2vLp")

	res := f.post(t, "/account/login", map[string]string{
		"email":    "max@example.com",
		"password": "Xk9#mQ2vLp",
	})

	require.Equal(t, http.StatusOK, res.Code)
	cookie := sessionCookie(res)
	require.NotNil(t, cookie, "login must set the session cookie")
	assert.True(t, cookie.HttpOnly)

	body := decodeBody(t, res)
	assert.Equal(t, "mmustermann", body["username"])
	assert.NotEmpty(t, body["csrf_token"])

	stored, err := f.store.Get(context.Background(), cookie.Value)
	require.NoError(t, err)
	assert.True(t, stored.Authorized())
}

func TestHandleLoginBadPassword(t *testing.T) {
	f := newHandlerFixture(t)
	activeUser(t, f.serviceFixture, "Xk9#mQ2vLp")

	res := f.post(t, "/account/login", map[string]string{
		"email":    "max@example.com",
		"password": "Wrong#Pass9",
	})

	assert.Equal(t, http.StatusUnauthorized, res.Code)
	assert.Nil(t, sessionCookie(res))
}

func TestHandleLogoutClearsCookie(t *testing.T) {
	f := newHandlerFixture(t)
	activeUser(t, f.serviceFixture, "Xk9#mQ2vLp")

	login := f.post(t, "/account/login", map[string]string{
		"email":    "max@example.com",
		"password": "Xk9#mQ2vLp",
	})
	token := sessionCookie(login).Value

	res := f.post(t, "/account/logout", map[string]string{}, func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: cookieName, Value: token})
	})

	require.Equal(t, http.StatusOK, res.Code)
	cleared := sessionCookie(res)
	require.NotNil(t, cleared)
	assert.Less(t, cleared.MaxAge, 0, "logout must expire the cookie")
}

func TestHandleResetPasswordAlwaysSucceeds(t *testing.T) {
	f := newHandlerFixture(t)
	activeUser(t, f.serviceFixture, "Xk9#mQ2vLp")

	known := f.post(t, "/account/reset-password", map[string]string{"email": "max@example.com"})
	unknown := f.post(t, "/account/reset-password", map[string]string{"email": "nobody@example.com"})

	assert.Equal(t, http.StatusOK, known.Code)
	assert.Equal(t, http.StatusOK, unknown.Code)
	assert.Equal(t, known.Body.String(), unknown.Body.String(), "responses must not reveal whether the address exists")
	assert.Equal(t, []string{"max@example.com"}, f.mailer.resets)
}

func TestHandleChangePasswordRequiresSession(t *testing.T) {
	f := newHandlerFixture(t)

	res := f.post(t, "/account/change-password", map[string]string{"password": "Np4$wR8tZq"})

	assert.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestHandleChangePasswordWithSession(t *testing.T) {
	f := newHandlerFixture(t)
	user := activeUser(t, f.serviceFixture, "Xk9#mQ2vLp")

	login := f.post(t, "/account/login", map[string]string{
		"email":    "max@example.com",
		"password": "Xk9#mQ2vLp",
	})
	token := sessionCookie(login).Value

	res := f.post(t, "/account/change-password", map[string]string{"password": "Np4$wR8tZq"}, func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: cookieName, Value: token})
	})

	require.Equal(t, http.StatusOK, res.Code)
	_, err := f.service.Authenticate(context.Background(), user.Email, "Np4$wR8tZq")
	assert.NoError(t, err)
}
