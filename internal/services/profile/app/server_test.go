package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	apperrors "github.com/louisbranch/homebase/internal/platform/errors"
)

func newTestServer(t *testing.T, secret string) *Server {
	t.Helper()
	s, err := New(Config{
		HTTPAddr:  "127.0.0.1:0",
		DBPath:    filepath.Join(t.TempDir(), "profile.db"),
		JWTSecret: secret,
	})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	t.Cleanup(func() {
		_ = s.listener.Close()
		_ = s.store.Close()
	})
	return s
}

func doOperation(s *Server, target, body string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	for k, v := range header {
		req.Header[k] = v
	}
	rr := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rr, req)
	return rr
}

func TestOperationRoundTrip(t *testing.T) {
	s := newTestServer(t, "")

	rr := doOperation(s, "/fortnite/api/game/v2/profile/acct-1/client/QueryProfile?profileId=athena", `{}`, nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body)
	}
	var resp struct {
		ProfileID       string `json:"profileId"`
		ProfileRevision int64  `json:"profileRevision"`
		ProfileChanges  []struct {
			ChangeType string `json:"changeType"`
		} `json:"profileChanges"`
		ResponseVersion int `json:"responseVersion"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ProfileID != "athena" || resp.ProfileRevision != 1 {
		t.Fatalf("unexpected envelope: %+v", resp)
	}
	// A client without rvn is maximally stale and gets a snapshot.
	if len(resp.ProfileChanges) != 1 || resp.ProfileChanges[0].ChangeType != "fullProfileUpdate" {
		t.Fatalf("expected a full snapshot, got %+v", resp.ProfileChanges)
	}
	if resp.ResponseVersion != 85 {
		t.Fatalf("expected response version 85, got %d", resp.ResponseVersion)
	}
}

func TestOperationDefaultsToCommonCore(t *testing.T) {
	s := newTestServer(t, "")

	rr := doOperation(s, "/fortnite/api/game/v2/profile/acct-1/client/QueryProfile", `{}`, nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body)
	}
	var resp struct {
		ProfileID string `json:"profileId"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ProfileID != "common_core" {
		t.Fatalf("expected common_core, got %s", resp.ProfileID)
	}
}

func TestOperationRejectsBadRevision(t *testing.T) {
	s := newTestServer(t, "")

	rr := doOperation(s, "/fortnite/api/game/v2/profile/acct-1/client/QueryProfile?rvn=abc", `{}`, nil)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	var resp errorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if resp.ErrorCode != string(apperrors.CodeInvalidPayload) {
		t.Fatalf("unexpected error code %s", resp.ErrorCode)
	}
}

func TestOperationErrorShape(t *testing.T) {
	s := newTestServer(t, "")

	rr := doOperation(s, "/fortnite/api/game/v2/profile/acct-1/client/SetItemFavoriteStatus?profileId=athena&rvn=1",
		`{"targetItemId":"missing","bFav":true}`, nil)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", rr.Code, rr.Body)
	}
	var resp errorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if resp.ErrorCode != string(apperrors.CodeItemNotFound) {
		t.Fatalf("unexpected error code %s", resp.ErrorCode)
	}
	if resp.MessageVars["itemId"] != "missing" {
		t.Fatalf("expected itemId message var, got %v", resp.MessageVars)
	}
}

func TestAuthRequiredWhenSecretSet(t *testing.T) {
	s := newTestServer(t, "test-secret")

	rr := doOperation(s, "/fortnite/api/game/v2/profile/acct-1/client/QueryProfile", `{}`, nil)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a token, got %d", rr.Code)
	}
}

func TestAuthAccountMismatch(t *testing.T) {
	s := newTestServer(t, "test-secret")
	token, err := IssueToken([]byte("test-secret"), "acct-2", time.Hour, time.Now())
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	rr := doOperation(s, "/fortnite/api/game/v2/profile/acct-1/client/QueryProfile", `{}`,
		http.Header{"Authorization": []string{"Bearer " + token}})

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for a mismatched account, got %d", rr.Code)
	}
}

func TestAuthAcceptsMatchingToken(t *testing.T) {
	s := newTestServer(t, "test-secret")
	token, err := IssueToken([]byte("test-secret"), "acct-1", time.Hour, time.Now())
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	rr := doOperation(s, "/fortnite/api/game/v2/profile/acct-1/client/QueryProfile", `{}`,
		http.Header{"Authorization": []string{"Bearer " + token}})

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body)
	}
}

func TestAuthRejectsExpiredToken(t *testing.T) {
	s := newTestServer(t, "test-secret")
	token, err := IssueToken([]byte("test-secret"), "acct-1", time.Hour, time.Now().Add(-2*time.Hour))
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	rr := doOperation(s, "/fortnite/api/game/v2/profile/acct-1/client/QueryProfile", `{}`,
		http.Header{"Authorization": []string{"Bearer " + token}})

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for an expired token, got %d", rr.Code)
	}
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t, "")

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}
