// Package testutil provides fixtures and assertions shared by the HTTP tests.
package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/tokengate/internal/models"
)

// NewUser returns an active, non-superuser user with the given groups.
func NewUser(username string, groups ...string) *models.User {
	if groups == nil {
		groups = []string{}
	}
	return &models.User{
		ID:         uuid.New(),
		Username:   username,
		Email:      username + "@example.com",
		IsActive:   true,
		Groups:     groups,
		DateJoined: time.Now().Add(-24 * time.Hour),
	}
}

// NewToken returns a token owned by user. The key prefix is derived from key.
func NewToken(user *models.User, key string, writeEnabled bool) *models.Token {
	prefix := key
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	return &models.Token{
		ID:           uuid.New(),
		UserID:       user.ID,
		User:         user,
		KeyPrefix:    prefix,
		Created:      time.Now().Add(-time.Hour),
		WriteEnabled: writeEnabled,
	}
}

// TestKey returns a deterministic 40-character hex key built from seed.
func TestKey(seed byte) string {
	const hex = "0123456789abcdef"
	return strings.Repeat(string(hex[seed%16]), 40)
}

// NewAPIRequest builds a JSON request, authenticated with key when non-empty.
func NewAPIRequest(method, path, key string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set("Authorization", "Token "+key)
	}
	return req
}

// NewAPIRequestWithJSON is NewAPIRequest with data marshaled as the body.
func NewAPIRequestWithJSON(t *testing.T, method, path, key string, data interface{}) *http.Request {
	t.Helper()
	body, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("failed to marshal JSON: %v", err)
	}
	return NewAPIRequest(method, path, key, strings.NewReader(string(body)))
}

// AssertStatusCode checks if the response has the expected status code.
func AssertStatusCode(t *testing.T, rr *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if rr.Code != expected {
		t.Errorf("expected status %d, got %d. Body: %s", expected, rr.Code, rr.Body.String())
	}
}

// AssertErrorMessage checks the {"error": ...} body of a response.
func AssertErrorMessage(t *testing.T, rr *httptest.ResponseRecorder, expected string) {
	t.Helper()
	if got, _ := ParseJSONResponse(t, rr.Body.Bytes())["error"].(string); got != expected {
		t.Errorf("expected error %q, got %q", expected, got)
	}
}

// ParseJSONResponse parses a JSON response body into a map.
func ParseJSONResponse(t *testing.T, body []byte) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatalf("failed to parse JSON response: %v", err)
	}
	return result
}
