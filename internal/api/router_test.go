package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"birdwatch/internal/api/middleware"
	"birdwatch/internal/app/service"
	"birdwatch/internal/app/session"
	"birdwatch/internal/common"
	"birdwatch/internal/common/security"
	"birdwatch/internal/domain/model"
	"birdwatch/internal/platform/config"
	"birdwatch/internal/platform/ebird"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- fakes ---

type stubEbirdClient struct {
	calls  int
	status int
	body   string
	err    error
}

func (c *stubEbirdClient) Get(_ context.Context, _ string, _ url.Values) (*ebird.Response, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return &ebird.Response{StatusCode: c.status, Body: []byte(c.body)}, nil
}

type memUserRepo struct {
	mu    sync.Mutex
	users map[string]*model.User
}

func (f *memUserRepo) Create(_ context.Context, user *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.users[user.Username]; exists {
		return fmt.Errorf("user with given username already exists: %w", common.ErrConflict)
	}
	clone := *user
	f.users[user.Username] = &clone
	return nil
}

func (f *memUserRepo) FindByUsername(_ context.Context, username string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[username]
	if !ok {
		return nil, common.ErrNotFound
	}
	clone := *user
	return &clone, nil
}

func (f *memUserRepo) FindByID(_ context.Context, id string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, user := range f.users {
		if user.ID == id {
			clone := *user
			return &clone, nil
		}
	}
	return nil, common.ErrNotFound
}

type memFavoriteRepo struct {
	mu        sync.Mutex
	calls     int
	favorites []model.Favorite
}

func (f *memFavoriteRepo) Insert(_ context.Context, fav *model.Favorite) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	for _, existing := range f.favorites {
		if existing.UserID == fav.UserID && existing.HotspotID == fav.HotspotID {
			return false, nil
		}
	}
	f.favorites = append(f.favorites, *fav)
	return true, nil
}

func (f *memFavoriteRepo) Delete(_ context.Context, userID, hotspotID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	for i, existing := range f.favorites {
		if existing.UserID == userID && existing.HotspotID == hotspotID {
			f.favorites = append(f.favorites[:i], f.favorites[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (f *memFavoriteRepo) ListByUser(_ context.Context, userID string) ([]model.Favorite, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	out := []model.Favorite{}
	for _, existing := range f.favorites {
		if existing.UserID == userID {
			out = append(out, existing)
		}
	}
	return out, nil
}

// --- harness ---

type testEnv struct {
	router   http.Handler
	upstream *stubEbirdClient
	favRepo  *memFavoriteRepo
}

func newTestEnv(t *testing.T, apiKey string) *testEnv {
	t.Helper()

	config.AppConfig = &config.Config{
		JWTKey: []byte("test-secret"),
		JWTExp: time.Hour,
	}
	security.InitJWT()

	upstream := &stubEbirdClient{status: 200, body: "[]"}
	userRepo := &memUserRepo{users: make(map[string]*model.User)}
	favRepo := &memFavoriteRepo{}
	sessions := session.NewMemoryStore()
	gate := middleware.NewSessionGate(sessions)

	router := NewRouter(
		service.NewAuthService(userRepo, sessions, time.Hour),
		service.NewObservationService(upstream, apiKey),
		service.NewFavoritesService(favRepo),
		gate,
		"", // no static assets in tests
	)

	return &testEnv{router: router, upstream: upstream, favRepo: favRepo}
}

func (e *testEnv) do(t *testing.T, method, path, body string, cookies []*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) registerUser(t *testing.T, username string) []*http.Cookie {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/register",
		fmt.Sprintf(`{"username":%q,"password":"hunter2"}`, username), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	cookies := (&http.Response{Header: rec.Header()}).Cookies()
	require.NotEmpty(t, cookies, "register sets the session cookie")
	return cookies
}

func decodeErrorEnvelope(t *testing.T, rec *httptest.ResponseRecorder) common.ErrorResponse {
	t.Helper()
	var envelope common.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope
}

// --- observation proxy ---

func TestObservationRoutes_MissingRequiredField(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
		body   string
	}{
		{"observations", http.MethodPost, "/api/observations", `{"speciesCode":"cangoo"}`},
		{"nearby", http.MethodPost, "/api/nearby", `{"lat":45.4,"lng":-75.7}`},
		{"notable", http.MethodPost, "/api/notable", `{"lat":45.4}`},
		{"hotspot info", http.MethodGet, "/api/hotspot/info", ""},
		{"hotspot nearby", http.MethodGet, "/api/hotspot/nearby?lat=45.4", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, "test-key")
			rec := env.do(t, tt.method, tt.path, tt.body, nil)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.NotEmpty(t, decodeErrorEnvelope(t, rec).Error)
			assert.Equal(t, 0, env.upstream.calls, "validation failure must not reach upstream")
		})
	}
}

func TestObservationRoutes_MissingServerCredential(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
		body   string
	}{
		{"observations", http.MethodPost, "/api/observations", `{"locationId":"L1","speciesCode":"cangoo"}`},
		{"nearby", http.MethodPost, "/api/nearby", `{"lat":45.4,"lng":-75.7,"speciesCode":"cangoo"}`},
		{"notable", http.MethodPost, "/api/notable", `{"lat":45.4,"lng":-75.7}`},
		{"hotspot info", http.MethodGet, "/api/hotspot/info?locId=L1", ""},
		{"hotspot nearby", http.MethodGet, "/api/hotspot/nearby?lat=45.4&lng=-75.7", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, "") // no credential configured
			rec := env.do(t, tt.method, tt.path, tt.body, nil)

			assert.Equal(t, http.StatusInternalServerError, rec.Code)
			assert.Contains(t, decodeErrorEnvelope(t, rec).Error, "API key missing")
			assert.Equal(t, 0, env.upstream.calls)
		})
	}
}

func TestObservationRoutes_UpstreamBodyForwardedVerbatim(t *testing.T) {
	env := newTestEnv(t, "test-key")
	env.upstream.body = `[{"speciesCode":"cangoo","howMany":12}]`

	rec := env.do(t, http.MethodPost, "/api/observations",
		`{"locationId":"L123456","speciesCode":"cangoo"}`, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, env.upstream.body, rec.Body.String(), "200 bodies pass through byte-for-byte")
	assert.Equal(t, 1, env.upstream.calls)
}

func TestObservationRoutes_UpstreamErrorStatusPassedThrough(t *testing.T) {
	for _, status := range []int{404, 429, 500} {
		t.Run(fmt.Sprintf("status %d", status), func(t *testing.T) {
			env := newTestEnv(t, "test-key")
			env.upstream.status = status
			env.upstream.body = "upstream says no"

			rec := env.do(t, http.MethodPost, "/api/observations",
				`{"locationId":"L123456","speciesCode":"cangoo"}`, nil)

			assert.Equal(t, status, rec.Code, "upstream status passes through, not a fixed 502")
			envelope := decodeErrorEnvelope(t, rec)
			assert.Equal(t, fmt.Sprintf("eBird API error: %d", status), envelope.Error)
			assert.Equal(t, "upstream says no", envelope.Message)
		})
	}
}

func TestObservationRoutes_TransportFailure(t *testing.T) {
	env := newTestEnv(t, "test-key")
	env.upstream.err = fmt.Errorf("dial tcp: connection refused")

	rec := env.do(t, http.MethodPost, "/api/notable", `{"lat":45.4,"lng":-75.7}`, nil)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, 1, env.upstream.calls, "transport failures are not retried")
}

// --- accounts ---

func TestRegister_ThenDuplicate(t *testing.T) {
	env := newTestEnv(t, "test-key")

	rec := env.do(t, http.MethodPost, "/api/register", `{"username":"alice","password":"hunter2"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Message string `json:"message"`
		User    struct {
			ID       string `json:"id"`
			Username string `json:"username"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Registration successful", resp.Message)
	assert.Equal(t, "alice", resp.User.Username)
	assert.NotEmpty(t, resp.User.ID)

	rec = env.do(t, http.MethodPost, "/api/register", `{"username":"alice","password":"other"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeErrorEnvelope(t, rec).Error, "already exists")
}

func TestRegister_EmptyFields(t *testing.T) {
	env := newTestEnv(t, "test-key")

	rec := env.do(t, http.MethodPost, "/api/register", `{"username":"","password":""}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t, "test-key")
	env.registerUser(t, "alice")

	rec := env.do(t, http.MethodPost, "/api/login", `{"username":"alice","password":"hunter2"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	cookies := (&http.Response{Header: rec.Header()}).Cookies()
	assert.NotEmpty(t, cookies, "login sets the session cookie")
}

func TestLogin_UniformFailure(t *testing.T) {
	env := newTestEnv(t, "test-key")
	env.registerUser(t, "alice")

	unknown := env.do(t, http.MethodPost, "/api/login", `{"username":"nobody","password":"hunter2"}`, nil)
	wrongPw := env.do(t, http.MethodPost, "/api/login", `{"username":"alice","password":"wrong"}`, nil)

	assert.Equal(t, http.StatusUnauthorized, unknown.Code)
	assert.Equal(t, http.StatusUnauthorized, wrongPw.Code)
	assert.Equal(t, decodeErrorEnvelope(t, unknown), decodeErrorEnvelope(t, wrongPw),
		"unknown user and wrong password must be indistinguishable")
}

func TestCurrentUser(t *testing.T) {
	env := newTestEnv(t, "test-key")

	rec := env.do(t, http.MethodGet, "/api/user", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, "whoami never errors")
	var anon struct {
		Authenticated bool `json:"authenticated"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &anon))
	assert.False(t, anon.Authenticated)

	cookies := env.registerUser(t, "alice")
	rec = env.do(t, http.MethodGet, "/api/user", "", cookies)
	require.Equal(t, http.StatusOK, rec.Code)
	var authed struct {
		Authenticated bool `json:"authenticated"`
		User          struct {
			ID       string `json:"id"`
			Username string `json:"username"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &authed))
	assert.True(t, authed.Authenticated)
	assert.Equal(t, "alice", authed.User.Username)
}

func TestLogout_RevokesSession(t *testing.T) {
	env := newTestEnv(t, "test-key")
	cookies := env.registerUser(t, "alice")

	rec := env.do(t, http.MethodPost, "/api/logout", "", cookies)
	require.Equal(t, http.StatusOK, rec.Code)

	// The token still parses, but its session is gone.
	rec = env.do(t, http.MethodGet, "/api/favorites", "", cookies)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/user", "", cookies)
	require.Equal(t, http.StatusOK, rec.Code)
	var anon struct {
		Authenticated bool `json:"authenticated"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &anon))
	assert.False(t, anon.Authenticated)
}

func TestLogout_WithoutSession(t *testing.T) {
	env := newTestEnv(t, "test-key")

	rec := env.do(t, http.MethodPost, "/api/logout", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "logout without a session is rejected")
}

// --- favorites ---

func TestFavorites_RequireSession(t *testing.T) {
	env := newTestEnv(t, "test-key")

	tests := []struct {
		method string
		path   string
		body   string
	}{
		{http.MethodGet, "/api/favorites", ""},
		{http.MethodPost, "/api/favorites", `{"id":"L123456","name":"Mud Lake"}`},
		{http.MethodDelete, "/api/favorites/L123456", ""},
	}
	for _, tt := range tests {
		rec := env.do(t, tt.method, tt.path, tt.body, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "%s %s", tt.method, tt.path)
	}
	assert.Equal(t, 0, env.favRepo.calls, "the gate rejects before any store access")
}

func TestFavorites_AddListDelete(t *testing.T) {
	env := newTestEnv(t, "test-key")
	cookies := env.registerUser(t, "alice")

	rec := env.do(t, http.MethodGet, "/api/favorites", "", cookies)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String(), "no favorites yet is an empty list, not an error")

	rec = env.do(t, http.MethodPost, "/api/favorites", `{"id":"L123456","name":"Mud Lake"}`, cookies)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Added to favorites"}`, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/api/favorites", "", cookies)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"id":"L123456","name":"Mud Lake"}]`, rec.Body.String())

	rec = env.do(t, http.MethodDelete, "/api/favorites/L123456", "", cookies)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Deleted"}`, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/api/favorites", "", cookies)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestFavorites_AddValidation(t *testing.T) {
	env := newTestEnv(t, "test-key")
	cookies := env.registerUser(t, "alice")

	rec := env.do(t, http.MethodPost, "/api/favorites", `{"id":"","name":"Mud Lake"}`, cookies)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/favorites", `{"id":"L123456","name":""}`, cookies)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFavorites_DuplicateAddIsIdempotent(t *testing.T) {
	env := newTestEnv(t, "test-key")
	cookies := env.registerUser(t, "alice")

	rec := env.do(t, http.MethodPost, "/api/favorites", `{"id":"L123456","name":"Mud Lake"}`, cookies)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/favorites", `{"id":"L123456","name":"Mud Lake"}`, cookies)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Already in favorites"}`, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/api/favorites", "", cookies)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"id":"L123456","name":"Mud Lake"}]`, rec.Body.String(), "row count unchanged")
}

func TestFavorites_DeleteIsOwnershipScoped(t *testing.T) {
	env := newTestEnv(t, "test-key")
	aliceCookies := env.registerUser(t, "alice")
	bobCookies := env.registerUser(t, "bob")

	rec := env.do(t, http.MethodPost, "/api/favorites", `{"id":"L123456","name":"Mud Lake"}`, aliceCookies)
	require.Equal(t, http.StatusOK, rec.Code)

	// Bob cannot delete Alice's favorite, and cannot learn it exists.
	rec = env.do(t, http.MethodDelete, "/api/favorites/L123456", "", bobCookies)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/favorites", "", aliceCookies)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"id":"L123456","name":"Mud Lake"}]`, rec.Body.String(), "alice's row survives")
}

func TestFavorites_DeleteMissing(t *testing.T) {
	env := newTestEnv(t, "test-key")
	cookies := env.registerUser(t, "alice")

	rec := env.do(t, http.MethodDelete, "/api/favorites/L999999", "", cookies)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// --- misc surface ---

func TestHealth(t *testing.T) {
	env := newTestEnv(t, "test-key")
	rec := env.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}
