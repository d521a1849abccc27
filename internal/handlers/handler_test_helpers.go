package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/HammerMeetNail/tokengate/internal/auth"
	"github.com/HammerMeetNail/tokengate/internal/models"
)

func assertErrorResponse(t *testing.T, rr *httptest.ResponseRecorder, status int, message string) {
	t.Helper()
	if rr.Code != status {
		t.Fatalf("expected status %d, got %d", status, rr.Code)
	}
	if ct := rr.Result().Header.Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Fatalf("expected content type application/json, got %q", ct)
	}

	var response ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if response.Error != message {
		t.Fatalf("expected error %q, got %q", message, response.Error)
	}
}

// gatedRequest builds a request as the permission middleware would leave it.
func gatedRequest(method, target string, body io.Reader, user *models.User, token *models.Token, checker auth.CapabilityChecker) *http.Request {
	req := httptest.NewRequest(method, target, body)
	ctx := req.Context()
	if user != nil {
		ctx = SetUserInContext(ctx, user)
	}
	if token != nil {
		ctx = SetTokenInContext(ctx, token)
	}
	ctx = SetGateInContext(ctx, &GateContext{
		Gate: auth.NewWritePermissionGate(false, checker),
		Request: auth.Request{
			Method:    method,
			User:      user,
			Token:     token,
			AppLabel:  "users",
			ModelName: "token",
		},
	})
	return req.WithContext(ctx)
}
