package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/tokengate/internal/auth"
	"github.com/HammerMeetNail/tokengate/internal/handlers"
	"github.com/HammerMeetNail/tokengate/internal/logging"
	"github.com/HammerMeetNail/tokengate/internal/middleware"
	"github.com/HammerMeetNail/tokengate/internal/models"
	"github.com/HammerMeetNail/tokengate/internal/services"
	"github.com/HammerMeetNail/tokengate/internal/testutil"
)

// memoryStore serves both the resolver and the token handler from one map.
type memoryStore struct {
	byKey    map[string]*models.Token
	lastUsed map[uuid.UUID]time.Time
	deleted  []uuid.UUID
	created  []models.CreateTokenParams
}

func newMemoryStore() *memoryStore {
	return &memoryStore{byKey: map[string]*models.Token{}, lastUsed: map[uuid.UUID]time.Time{}}
}

func (s *memoryStore) add(key string, token *models.Token) {
	s.byKey[key] = token
}

func (s *memoryStore) GetByKey(ctx context.Context, key string) (*models.Token, error) {
	if t, ok := s.byKey[key]; ok {
		copied := *t
		return &copied, nil
	}
	return nil, services.ErrTokenNotFound
}

func (s *memoryStore) UpdateLastUsed(ctx context.Context, id uuid.UUID, at time.Time) error {
	s.lastUsed[id] = at
	return nil
}

func (s *memoryStore) Create(ctx context.Context, params models.CreateTokenParams) (*models.Token, string, error) {
	s.created = append(s.created, params)
	return &models.Token{ID: uuid.New(), UserID: params.UserID, WriteEnabled: params.WriteEnabled}, testutil.TestKey(9), nil
}

func (s *memoryStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Token, error) {
	for _, t := range s.byKey {
		if t.ID == id {
			return t, nil
		}
	}
	return nil, services.ErrTokenNotFound
}

func (s *memoryStore) List(ctx context.Context, owner *uuid.UUID) ([]models.Token, error) {
	out := []models.Token{}
	for _, t := range s.byKey {
		if owner == nil || t.UserID == *owner {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (s *memoryStore) Update(ctx context.Context, id uuid.UUID, params models.UpdateTokenParams) (*models.Token, error) {
	return s.GetByID(ctx, id)
}

func (s *memoryStore) Delete(ctx context.Context, id uuid.UUID) error {
	s.deleted = append(s.deleted, id)
	return nil
}

// grantChecker grants per username; an empty username entry covers anonymous.
// Superusers hold every capability.
type grantChecker map[string]map[string]bool

func (g grantChecker) HasPerms(ctx context.Context, user *models.User, perms []string, obj *models.ObjectRef) (bool, error) {
	name := ""
	if user != nil {
		if user.IsSuperuser {
			return true, nil
		}
		name = user.Username
	}
	for _, p := range perms {
		if !g[name][p] {
			return false, nil
		}
	}
	return true, nil
}

type okHealth struct{}

func (okHealth) Health(ctx context.Context) error { return nil }

type testServer struct {
	handler  http.Handler
	store    *memoryStore
	settings *auth.StaticSettings
}

func newTestServer(t *testing.T, checker auth.CapabilityChecker) *testServer {
	t.Helper()
	logger := logging.New().SetOutput(&bytes.Buffer{})
	store := newMemoryStore()
	settings := &auth.StaticSettings{}
	source := settingsPtr{settings}

	resolver := auth.NewTokenResolver(store, source, logger)
	return &testServer{
		store:    store,
		settings: settings,
		handler: newRouter(routerDeps{
			health:        handlers.NewHealthHandler(okHealth{}, okHealth{}, source),
			status:        handlers.NewStatusHandler(source, "test"),
			tokens:        handlers.NewTokenHandler(store, logger),
			provision:     handlers.NewProvisionHandler(&stubUsers{}, store, services.NewPasswordService(), logger),
			auth:          middleware.NewAuthMiddleware(resolver, source, logger),
			permissions:   middleware.NewPermissionMiddleware(checker, source, logger),
			security:      middleware.NewSecurityHeaders(false),
			requestLogger: middleware.NewRequestLogger(logger),
		}),
	}
}

// settingsPtr lets tests flip settings between requests.
type settingsPtr struct{ s *auth.StaticSettings }

func (p settingsPtr) Snapshot(ctx context.Context) auth.Settings { return auth.Settings(*p.s) }

type stubUsers struct{}

func (stubUsers) Create(ctx context.Context, params models.CreateUserParams) (*models.User, error) {
	return nil, nil
}
func (stubUsers) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return nil, services.ErrUserNotFound
}
func (stubUsers) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return nil, services.ErrUserNotFound
}
func (stubUsers) SyncDirectoryAttributes(ctx context.Context, username string, attrs models.DirectoryAttributes) (*models.User, error) {
	return nil, nil
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)
	return rr
}

func TestRouter_ReadOnlyTokenCannotWrite(t *testing.T) {
	alice := testutil.NewUser("alice")
	checker := grantChecker{"alice": {"users.view_token": true, "users.add_token": true, "users.delete_token": true}}
	srv := newTestServer(t, checker)

	key := testutil.TestKey(1)
	token := testutil.NewToken(alice, key, false)
	srv.store.add(key, token)

	rr := srv.do(testutil.NewAPIRequestWithJSON(t, http.MethodPost, "/api/users/tokens/", key, map[string]string{"description": "x"}))
	testutil.AssertStatusCode(t, rr, http.StatusForbidden)
	testutil.AssertErrorMessage(t, rr, handlers.MsgPermissionDenied)
	if len(srv.store.created) != 0 {
		t.Fatal("read-only token must not create")
	}

	rr = srv.do(testutil.NewAPIRequest(http.MethodDelete, "/api/users/tokens/"+token.ID.String()+"/", key, nil))
	testutil.AssertStatusCode(t, rr, http.StatusForbidden)
	if len(srv.store.deleted) != 0 {
		t.Fatal("read-only token must not delete")
	}

	rr = srv.do(testutil.NewAPIRequest(http.MethodGet, "/api/users/tokens/", key, nil))
	testutil.AssertStatusCode(t, rr, http.StatusOK)
	if _, ok := srv.store.lastUsed[token.ID]; !ok {
		t.Error("expected last_used to be recorded")
	}
}

func TestRouter_WriteTokenDelegatesToCapabilities(t *testing.T) {
	bob := testutil.NewUser("bob")
	srv := newTestServer(t, grantChecker{"bob": {"users.view_token": true}})

	key := testutil.TestKey(2)
	token := testutil.NewToken(bob, key, true)
	srv.store.add(key, token)

	rr := srv.do(testutil.NewAPIRequest(http.MethodDelete, "/api/users/tokens/"+token.ID.String()+"/", key, nil))
	testutil.AssertStatusCode(t, rr, http.StatusForbidden)

	srv2 := newTestServer(t, grantChecker{"bob": {"users.view_token": true, "users.delete_token": true}})
	srv2.store.add(key, token)
	rr = srv2.do(testutil.NewAPIRequest(http.MethodDelete, "/api/users/tokens/"+token.ID.String()+"/", key, nil))
	testutil.AssertStatusCode(t, rr, http.StatusNoContent)
	if len(srv2.store.deleted) != 1 {
		t.Fatal("expected delete")
	}
}

func TestRouter_TokensOfOtherUsersAreHidden(t *testing.T) {
	alice := testutil.NewUser("alice")
	root := testutil.NewUser("root")
	root.IsSuperuser = true
	srv := newTestServer(t, grantChecker{"alice": {
		"users.view_token": true, "users.change_token": true, "users.delete_token": true,
	}})

	aliceKey, rootKey := testutil.TestKey(7), testutil.TestKey(8)
	srv.store.add(aliceKey, testutil.NewToken(alice, aliceKey, true))
	rootToken := testutil.NewToken(root, rootKey, false)
	srv.store.add(rootKey, rootToken)
	rootPath := "/api/users/tokens/" + rootToken.ID.String() + "/"

	rr := srv.do(testutil.NewAPIRequest(http.MethodGet, "/api/users/tokens/", aliceKey, nil))
	testutil.AssertStatusCode(t, rr, http.StatusOK)
	if count := testutil.ParseJSONResponse(t, rr.Body.Bytes())["count"]; count != float64(1) {
		t.Errorf("expected alice to see only her own token, got count %v", count)
	}

	rr = srv.do(testutil.NewAPIRequest(http.MethodGet, rootPath, aliceKey, nil))
	testutil.AssertStatusCode(t, rr, http.StatusNotFound)

	rr = srv.do(testutil.NewAPIRequestWithJSON(t, http.MethodPatch, rootPath, aliceKey, map[string]bool{"write_enabled": true}))
	testutil.AssertStatusCode(t, rr, http.StatusNotFound)

	rr = srv.do(testutil.NewAPIRequest(http.MethodDelete, rootPath, aliceKey, nil))
	testutil.AssertStatusCode(t, rr, http.StatusNotFound)
	if len(srv.store.deleted) != 0 {
		t.Fatal("alice must not delete root's token")
	}

	rr = srv.do(testutil.NewAPIRequest(http.MethodGet, "/api/users/tokens/", rootKey, nil))
	testutil.AssertStatusCode(t, rr, http.StatusOK)
	if count := testutil.ParseJSONResponse(t, rr.Body.Bytes())["count"]; count != float64(2) {
		t.Errorf("expected superuser to see every token, got count %v", count)
	}
}

func TestRouter_ExpiredToken(t *testing.T) {
	srv := newTestServer(t, grantChecker{})
	key := testutil.TestKey(3)
	token := testutil.NewToken(testutil.NewUser("carol"), key, true)
	past := time.Now().Add(-time.Hour)
	token.Expires = &past
	srv.store.add(key, token)

	rr := srv.do(testutil.NewAPIRequest(http.MethodGet, "/api/status/", key, nil))
	testutil.AssertStatusCode(t, rr, http.StatusUnauthorized)
	testutil.AssertErrorMessage(t, rr, "Token expired")
	if rr.Header().Get("WWW-Authenticate") != "Token" {
		t.Error("expected Token challenge")
	}
	if _, ok := srv.store.lastUsed[token.ID]; ok {
		t.Error("expired token must not update last_used")
	}
}

func TestRouter_StatusLoginRequired(t *testing.T) {
	srv := newTestServer(t, grantChecker{})

	rr := srv.do(testutil.NewAPIRequest(http.MethodGet, "/api/status/", "", nil))
	testutil.AssertStatusCode(t, rr, http.StatusOK)

	srv.settings.LoginRequired = true
	rr = srv.do(testutil.NewAPIRequest(http.MethodGet, "/api/status/", "", nil))
	testutil.AssertStatusCode(t, rr, http.StatusUnauthorized)

	key := testutil.TestKey(4)
	srv.store.add(key, testutil.NewToken(testutil.NewUser("dave"), key, false))
	rr = srv.do(testutil.NewAPIRequest(http.MethodGet, "/api/status/", key, nil))
	testutil.AssertStatusCode(t, rr, http.StatusOK)
	if testutil.ParseJSONResponse(t, rr.Body.Bytes())["user"] != "dave" {
		t.Errorf("expected status to report the caller, got %s", rr.Body.String())
	}
}

func TestRouter_AnonymousTokenList(t *testing.T) {
	srv := newTestServer(t, grantChecker{"": {"users.view_token": true}})

	rr := srv.do(testutil.NewAPIRequest(http.MethodGet, "/api/users/tokens/", "", nil))
	testutil.AssertStatusCode(t, rr, http.StatusOK)

	srv.settings.LoginRequired = true
	rr = srv.do(testutil.NewAPIRequest(http.MethodGet, "/api/users/tokens/", "", nil))
	testutil.AssertStatusCode(t, rr, http.StatusUnauthorized)
}

func TestRouter_MethodHandling(t *testing.T) {
	erin := testutil.NewUser("erin")
	srv := newTestServer(t, grantChecker{"erin": {"users.change_token": true, "users.view_token": true}})
	key := testutil.TestKey(5)
	srv.store.add(key, testutil.NewToken(erin, key, true))

	rr := srv.do(testutil.NewAPIRequest(http.MethodPut, "/api/users/tokens/", key, nil))
	testutil.AssertStatusCode(t, rr, http.StatusMethodNotAllowed)

	rr = srv.do(testutil.NewAPIRequest("TRACE", "/api/users/tokens/", key, nil))
	testutil.AssertStatusCode(t, rr, http.StatusMethodNotAllowed)

	rr = srv.do(testutil.NewAPIRequest(http.MethodOptions, "/api/users/tokens/", key, nil))
	testutil.AssertStatusCode(t, rr, http.StatusOK)
	if rr.Header().Get("Allow") == "" {
		t.Error("expected Allow header")
	}
}

func TestRouter_MaintenanceModeSkipsLastUsed(t *testing.T) {
	srv := newTestServer(t, grantChecker{"frank": {"users.view_token": true}})
	srv.settings.MaintenanceMode = true

	key := testutil.TestKey(6)
	token := testutil.NewToken(testutil.NewUser("frank"), key, true)
	srv.store.add(key, token)

	rr := srv.do(testutil.NewAPIRequest(http.MethodGet, "/api/users/tokens/", key, nil))
	testutil.AssertStatusCode(t, rr, http.StatusOK)
	if _, ok := srv.store.lastUsed[token.ID]; ok {
		t.Error("maintenance mode must suppress the last_used write")
	}
}

func TestRouter_HealthAndProvision(t *testing.T) {
	srv := newTestServer(t, grantChecker{})

	rr := srv.do(testutil.NewAPIRequest(http.MethodGet, "/live", "", nil))
	testutil.AssertStatusCode(t, rr, http.StatusOK)
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("expected security headers on every response")
	}

	rr = srv.do(testutil.NewAPIRequestWithJSON(t, http.MethodPost, "/api/users/tokens/provision/", "", map[string]string{
		"username": "ghost", "password": "pw",
	}))
	testutil.AssertStatusCode(t, rr, http.StatusForbidden)
}
