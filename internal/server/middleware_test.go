package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/pastemate/internal/auth"
	"github.com/MarcoPoloResearchLab/pastemate/internal/pastes"
	"github.com/MarcoPoloResearchLab/pastemate/internal/users"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/time/rate"
)

type stubValidator struct {
	claims auth.SessionClaims
	err    error
}

func (s *stubValidator) ValidateRequest(*http.Request) (auth.SessionClaims, error) {
	return s.claims, s.err
}

type stubResolver struct {
	user  users.User
	err   error
	calls int
}

func (s *stubResolver) ResolveUser(context.Context, auth.SessionClaims) (users.User, error) {
	s.calls++
	return s.user, s.err
}

type identifyResult struct {
	viewer   pastes.Viewer
	aborted  bool
	recorder *httptest.ResponseRecorder
}

func runIdentify(t *testing.T, handler *httpHandler) identifyResult {
	t.Helper()
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	ginContext, _ := gin.CreateTestContext(recorder)
	ginContext.Request = httptest.NewRequest(http.MethodGet, "/api/archive", nil)
	handler.identify(ginContext)
	return identifyResult{viewer: viewerFrom(ginContext), aborted: ginContext.IsAborted(), recorder: recorder}
}

func TestIdentifyAttachesResolvedViewer(t *testing.T) {
	resolver := &stubResolver{user: users.User{ID: "user-1", Username: "alice", Staff: true}}
	handler := &httpHandler{
		sessions: &stubValidator{claims: auth.SessionClaims{UserID: "user-1"}},
		users:    resolver,
		logger:   zap.NewNop(),
	}

	viewer := runIdentify(t, handler).viewer
	if viewer.UserID != "user-1" || viewer.Username != "alice" || !viewer.Staff {
		t.Fatalf("unexpected viewer: %+v", viewer)
	}
	if resolver.calls != 1 {
		t.Fatalf("expected one resolution, got %d", resolver.calls)
	}
}

func TestIdentifyLogsSessionFailures(t *testing.T) {
	testCases := []struct {
		name      string
		err       error
		wantLevel zapcore.Level
		wantLogs  int
	}{
		{name: "missing token stays silent", err: auth.ErrMissingSessionToken, wantLogs: 0},
		{name: "expired token logs info", err: auth.ErrExpiredSessionToken, wantLevel: zapcore.InfoLevel, wantLogs: 1},
		{name: "invalid token logs warning", err: auth.ErrInvalidSessionToken, wantLevel: zapcore.WarnLevel, wantLogs: 1},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.DebugLevel)
			resolver := &stubResolver{}
			handler := &httpHandler{
				sessions: &stubValidator{err: testCase.err},
				users:    resolver,
				logger:   zap.New(core),
			}

			result := runIdentify(t, handler)
			if result.viewer.Authenticated() || result.aborted {
				t.Fatalf("expected anonymous continuation, got %+v aborted=%v", result.viewer, result.aborted)
			}
			if resolver.calls != 0 {
				t.Fatalf("resolver should not run on failed validation")
			}
			entries := logs.All()
			if len(entries) != testCase.wantLogs {
				t.Fatalf("expected %d log entries, got %d", testCase.wantLogs, len(entries))
			}
			if testCase.wantLogs > 0 {
				if entries[0].Level != testCase.wantLevel || entries[0].Message != "session validation failed" {
					t.Fatalf("unexpected log entry: %v %q", entries[0].Level, entries[0].Message)
				}
			}
		})
	}
}

func TestIdentifyRejectsUnresolvableSession(t *testing.T) {
	testCases := []struct {
		name       string
		err        error
		wantStatus int
		wantBody   string
		wantLevel  zapcore.Level
	}{
		{
			name:       "storage failure is an internal error",
			err:        errors.New("database unavailable"),
			wantStatus: http.StatusInternalServerError,
			wantBody:   `{"error":"internal_error"}`,
			wantLevel:  zapcore.ErrorLevel,
		},
		{
			name:       "exhausted username is a conflict",
			err:        users.ErrUsernameTaken,
			wantStatus: http.StatusConflict,
			wantBody:   `{"error":"username_taken"}`,
			wantLevel:  zapcore.WarnLevel,
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.DebugLevel)
			handler := &httpHandler{
				sessions: &stubValidator{claims: auth.SessionClaims{UserID: "user-1"}},
				users:    &stubResolver{err: testCase.err},
				logger:   zap.New(core),
			}

			result := runIdentify(t, handler)
			if !result.aborted {
				t.Fatalf("expected the request to be aborted")
			}
			if result.viewer.Authenticated() {
				t.Fatalf("expected no viewer to be attached, got %+v", result.viewer)
			}
			if result.recorder.Code != testCase.wantStatus {
				t.Fatalf("expected status %d, got %d", testCase.wantStatus, result.recorder.Code)
			}
			if body := result.recorder.Body.String(); body != testCase.wantBody {
				t.Fatalf("unexpected body %s", body)
			}
			entries := logs.FilterMessage("user resolution failed").All()
			if len(entries) != 1 || entries[0].Level != testCase.wantLevel {
				t.Fatalf("expected one %v resolution log, got %v", testCase.wantLevel, entries)
			}
		})
	}
}

func TestRateLimiterAllowsBurstPerKey(t *testing.T) {
	limiter := NewRateLimiter(rate.Every(time.Hour), 2, time.Minute)

	if !limiter.Allow("198.51.100.1") || !limiter.Allow("198.51.100.1") {
		t.Fatalf("expected burst requests to pass")
	}
	if limiter.Allow("198.51.100.1") {
		t.Fatalf("expected third request to be limited")
	}
	if !limiter.Allow("198.51.100.2") {
		t.Fatalf("expected a different client to have its own bucket")
	}

	var disabled *RateLimiter
	if !disabled.Allow("anyone") {
		t.Fatalf("nil limiter should allow every request")
	}
}

func TestClientIP(t *testing.T) {
	testCases := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		trustProxy bool
		want       string
	}{
		{name: "remote address", remoteAddr: "203.0.113.5:1234", want: "203.0.113.5"},
		{name: "untrusted forwarded header", remoteAddr: "203.0.113.5:1234", headers: map[string]string{"X-Forwarded-For": "192.0.2.1"}, want: "203.0.113.5"},
		{name: "trusted forwarded header", remoteAddr: "203.0.113.5:1234", headers: map[string]string{"X-Forwarded-For": "192.0.2.1, 10.0.0.1"}, trustProxy: true, want: "192.0.2.1"},
		{name: "trusted real ip", remoteAddr: "203.0.113.5:1234", headers: map[string]string{"X-Real-IP": "192.0.2.9"}, trustProxy: true, want: "192.0.2.9"},
		{name: "address without port", remoteAddr: "203.0.113.5", want: "203.0.113.5"},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			request := httptest.NewRequest(http.MethodGet, "/", nil)
			request.RemoteAddr = testCase.remoteAddr
			for key, value := range testCase.headers {
				request.Header.Set(key, value)
			}
			if got := ClientIP(request, testCase.trustProxy); got != testCase.want {
				t.Fatalf("ClientIP() = %q, want %q", got, testCase.want)
			}
		})
	}
}
