package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/pastemate/internal/auth"
	"github.com/MarcoPoloResearchLab/pastemate/internal/blobstore"
	"github.com/MarcoPoloResearchLab/pastemate/internal/highlight"
	"github.com/MarcoPoloResearchLab/pastemate/internal/pastes"
	"github.com/MarcoPoloResearchLab/pastemate/internal/users"
	sqlite "github.com/glebarez/sqlite"
	"github.com/gin-gonic/gin"
	"github.com/spf13/afero"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	testSigningSecret = "test-secret"
	testIssuer        = "pastemate-auth"
	testCookieName    = "app_session"
)

type testServer struct {
	handler http.Handler
	issuer  *auth.TokenIssuer
	clock   *time.Time
}

type serverOption func(*Dependencies)

func newTestServer(t *testing.T, options ...serverOption) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:server_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := db.AutoMigrate(append(pastes.Models(), &users.User{})...); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	now := time.Date(2022, 6, 24, 12, 0, 0, 0, time.UTC)
	clock := &now
	clockFunc := func() time.Time { return *clock }

	userService, err := users.NewService(users.ServiceConfig{Database: db, Clock: clockFunc})
	if err != nil {
		t.Fatalf("failed to create user service: %v", err)
	}
	highlighter := highlight.New(highlight.Config{})
	blobs := blobstore.NewFileStoreFs(afero.NewMemMapFs())
	pasteService, err := pastes.NewService(pastes.ServiceConfig{
		Database:    db,
		Clock:       clockFunc,
		IDProvider:  pastes.NewUUIDProvider(),
		Highlighter: highlighter,
		Blobs:       blobs,
		Directory:   userService,
		Password:    pastes.PasswordParams{Time: 1, Memory: 8 * 1024, Threads: 1, KeyLen: 32, SaltLen: 16},
	})
	if err != nil {
		t.Fatalf("failed to create pastes service: %v", err)
	}
	validator, err := auth.NewSessionValidator(auth.SessionValidatorConfig{
		SigningSecret: []byte(testSigningSecret),
		Issuer:        testIssuer,
		CookieName:    testCookieName,
		Clock:         clockFunc,
	})
	if err != nil {
		t.Fatalf("failed to create validator: %v", err)
	}

	deps := Dependencies{
		Sessions:           validator,
		Users:              userService,
		PastesService:      pasteService,
		Blobs:              blobs,
		Stylesheet:         highlighter,
		RateLimitPerMinute: 600,
		RateLimitBurst:     100,
		Logger:             zap.NewNop(),
	}
	for _, option := range options {
		option(&deps)
	}
	handler, err := NewHTTPHandler(deps)
	if err != nil {
		t.Fatalf("failed to build handler: %v", err)
	}

	issuer := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte(testSigningSecret),
		Issuer:        testIssuer,
		TokenTTL:      time.Hour,
		Clock:         clockFunc,
	})
	return &testServer{handler: handler, issuer: issuer, clock: clock}
}

func (s *testServer) token(t *testing.T, userID, username string, roles ...string) string {
	t.Helper()
	token, _, err := s.issuer.IssueSessionToken(auth.SessionClaims{UserID: userID, Username: username, UserRoles: roles})
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}
	return token
}

func (s *testServer) do(t *testing.T, method, target, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader = http.NoBody
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	}
	request := httptest.NewRequest(method, target, reader)
	request.RemoteAddr = "192.0.2.10:4321"
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}
	recorder := httptest.NewRecorder()
	s.handler.ServeHTTP(recorder, request)
	return recorder
}

func decodeJSON(t *testing.T, recorder *httptest.ResponseRecorder, target interface{}) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to decode response %q: %v", recorder.Body.String(), err)
	}
}

func expectStatus(t *testing.T, recorder *httptest.ResponseRecorder, want int) {
	t.Helper()
	if recorder.Code != want {
		t.Fatalf("unexpected status code: got %d, want %d (body %s)", recorder.Code, want, recorder.Body.String())
	}
}

func (s *testServer) createPaste(t *testing.T, token string, draft map[string]interface{}) pasteResponse {
	t.Helper()
	recorder := s.do(t, http.MethodPost, "/api/pastes", token, draft)
	expectStatus(t, recorder, http.StatusCreated)
	var created pasteResponse
	decodeJSON(t, recorder, &created)
	return created
}
