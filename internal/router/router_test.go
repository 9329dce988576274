package router

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dkotelnikov/authgate/internal/auth"
	"github.com/dkotelnikov/authgate/internal/db/memorystorage"
	"github.com/dkotelnikov/authgate/internal/logger"
	"github.com/dkotelnikov/authgate/internal/mockstorage"
	"github.com/dkotelnikov/authgate/internal/password"
	"github.com/dkotelnikov/authgate/internal/service"
)

const (
	anonymousMarker = "Please log in"
	testSecret      = "test-secret"
)

func newTestServer(t *testing.T, signupAutoLogin bool) (*resty.Client, *memorystorage.MemoryStorage) {
	t.Helper()

	require.NoError(t, logger.Init("debug"))

	db, err := memorystorage.New()
	require.NoError(t, err)

	handler := New(
		db,
		service.New(db),
		auth.New(db, "session_id", []byte(testSecret), time.Hour),
		signupAutoLogin,
	)

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	// The resty client keeps its cookie jar across requests, so sequential
	// calls below behave like one browser session.
	return resty.New().SetBaseURL(server.URL), db
}

func postForm(t *testing.T, client *resty.Client, path, username, password string) *resty.Response {
	t.Helper()

	response, err := client.R().
		SetFormData(map[string]string{
			"username": username,
			"password": password,
		}).
		Post(path)
	require.NoError(t, err)

	return response
}

func TestHomeIsAnonymousByDefault(t *testing.T) {
	client, _ := newTestServer(t, false)

	response, err := client.R().Get(`/`)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, response.StatusCode())
	assert.Contains(t, response.String(), anonymousMarker)
}

func TestSignUpStoresHashAndDoesNotAuthenticate(t *testing.T) {
	client, db := newTestServer(t, false)

	response := postForm(t, client, `/sign-up`, "alice", "secret123")

	// Redirected to the home page, still anonymous: the user logs in separately.
	assert.Equal(t, http.StatusOK, response.StatusCode())
	assert.Contains(t, response.String(), anonymousMarker)

	stored, err := db.GetUserByUsername(context.Background(), "alice")
	require.NoError(t, err)
	assert.NotEqual(t, "secret123", stored.PasswordHash)
	assert.True(t, password.Verify("secret123", stored.PasswordHash))
}

func TestSignUpDuplicateUsername(t *testing.T) {
	client, _ := newTestServer(t, false)

	postForm(t, client, `/sign-up`, "alice", "secret123")
	response := postForm(t, client, `/sign-up`, "alice", "hunter2")

	assert.Equal(t, http.StatusConflict, response.StatusCode())
	assert.NotContains(t, response.String(), "alice")
}

func TestSignUpRequiresUsernameAndPassword(t *testing.T) {
	client, _ := newTestServer(t, false)

	response := postForm(t, client, `/sign-up`, "", "secret123")
	assert.Equal(t, http.StatusBadRequest, response.StatusCode())

	response = postForm(t, client, `/sign-up`, "alice", "")
	assert.Equal(t, http.StatusBadRequest, response.StatusCode())
}

func TestSignUpAutoLogin(t *testing.T) {
	client, _ := newTestServer(t, true)

	response := postForm(t, client, `/sign-up`, "alice", "secret123")

	assert.Equal(t, http.StatusOK, response.StatusCode())
	assert.Contains(t, response.String(), "Welcome back, alice!")
}

func TestLogInLogOutLifecycle(t *testing.T) {
	client, _ := newTestServer(t, false)

	postForm(t, client, `/sign-up`, "alice", "secret123")

	response := postForm(t, client, `/log-in`, "alice", "secret123")
	assert.Equal(t, http.StatusOK, response.StatusCode())
	assert.Contains(t, response.String(), "Welcome back, alice!")

	// The identity persists across subsequent requests on the same cookie.
	response, err := client.R().Get(`/`)
	require.NoError(t, err)
	assert.Contains(t, response.String(), "Welcome back, alice!")

	response, err = client.R().Get(`/log-out`)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, response.StatusCode())
	assert.Contains(t, response.String(), anonymousMarker)

	response, err = client.R().Get(`/`)
	require.NoError(t, err)
	assert.Contains(t, response.String(), anonymousMarker)
}

func TestLogInFailuresAreIndistinguishable(t *testing.T) {
	client, _ := newTestServer(t, false)

	postForm(t, client, `/sign-up`, "alice", "secret123")

	wrongPassword := postForm(t, client, `/log-in`, "alice", "wrong")
	unknownUser := postForm(t, client, `/log-in`, "mallory", "secret123")

	assert.Equal(t, wrongPassword.StatusCode(), unknownUser.StatusCode())
	assert.Equal(t, wrongPassword.String(), unknownUser.String())
	assert.Contains(t, wrongPassword.String(), anonymousMarker)
}

func TestLogInAcceptsEmailField(t *testing.T) {
	client, _ := newTestServer(t, false)

	postForm(t, client, `/sign-up`, "alice@example.com", "secret123")

	response, err := client.R().
		SetFormData(map[string]string{
			"email":    "alice@example.com",
			"password": "secret123",
		}).
		Post(`/log-in`)
	require.NoError(t, err)

	assert.Contains(t, response.String(), "Welcome back, alice@example.com!")
}

func TestRouteAliases(t *testing.T) {
	client, _ := newTestServer(t, false)

	postForm(t, client, `/sign-up`, "alice", "secret123")

	response := postForm(t, client, `/login`, "alice", "secret123")
	assert.Contains(t, response.String(), "Welcome back, alice!")

	logoutResponse, err := client.R().Get(`/logout`)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, logoutResponse.StatusCode())
	assert.Contains(t, logoutResponse.String(), anonymousMarker)
}

func TestGetSignUpForm(t *testing.T) {
	client, _ := newTestServer(t, false)

	response, err := client.R().Get(`/sign-up`)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, response.StatusCode())
	assert.Contains(t, response.String(), `action="/sign-up"`)
}

func TestPing(t *testing.T) {
	client, _ := newTestServer(t, false)

	response, err := client.R().Get(`/ping`)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, response.StatusCode())
}

func TestPingStorageUnavailable(t *testing.T) {
	require.NoError(t, logger.Init("debug"))

	db := new(mockstorage.StorageMock)
	db.On("SaveSession", mock.Anything, mock.Anything).Return(nil)
	db.On("DeleteSession", mock.Anything, mock.Anything).Return(nil)
	db.On("Ping", mock.Anything).Return(errors.New("the database is unavailable"))

	handler := New(
		db,
		service.New(db),
		auth.New(db, "session_id", []byte(testSecret), time.Hour),
		false,
	)

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	response, err := resty.New().SetBaseURL(server.URL).R().Get(`/ping`)
	require.NoError(t, err)

	assert.Equal(t, http.StatusInternalServerError, response.StatusCode())
}
