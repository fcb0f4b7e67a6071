package server

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/pastemate/internal/auth"
)

func TestNewHTTPHandlerRequiresDependencies(t *testing.T) {
	if _, err := NewHTTPHandler(Dependencies{}); err != errMissingSessionValidator {
		t.Fatalf("expected missing session validator error, got %v", err)
	}
	if _, err := NewHTTPHandler(Dependencies{Sessions: &stubValidator{}}); err != errMissingUserResolver {
		t.Fatalf("expected missing user resolver error, got %v", err)
	}
	if _, err := NewHTTPHandler(Dependencies{Sessions: &stubValidator{}, Users: &stubResolver{}}); err != errMissingPastesService {
		t.Fatalf("expected missing pastes service error, got %v", err)
	}
}

func TestHealthAndStylesheet(t *testing.T) {
	server := newTestServer(t)

	health := server.do(t, http.MethodGet, "/healthz", "", nil)
	expectStatus(t, health, http.StatusOK)

	css := server.do(t, http.MethodGet, "/highlight.css", "", nil)
	expectStatus(t, css, http.StatusOK)
	if contentType := css.Header().Get("Content-Type"); !strings.HasPrefix(contentType, "text/css") {
		t.Fatalf("unexpected stylesheet content type %q", contentType)
	}
	if css.Body.Len() == 0 {
		t.Fatalf("expected stylesheet body")
	}
}

func TestCreateAndViewPublicPaste(t *testing.T) {
	server := newTestServer(t)

	created := server.createPaste(t, "", map[string]interface{}{
		"content":  "print('hi')",
		"syntax":   "python",
		"exposure": "PU",
	})
	if created.ID == "" || created.Title != "Untitled" {
		t.Fatalf("unexpected created paste: %+v", created)
	}
	if created.EmbedImageURL != "/media/embed/"+created.ID+".png" {
		t.Fatalf("unexpected embed url %q", created.EmbedImageURL)
	}

	view := server.do(t, http.MethodGet, "/api/pastes/"+created.ID, "", nil)
	expectStatus(t, view, http.StatusOK)
	if view.Header().Get("Cache-Control") != "no-store" {
		t.Fatalf("expected no-store on detail view")
	}
	var payload viewResponsePayload
	decodeJSON(t, view, &payload)
	if payload.Paste.Content != "print('hi')" || payload.Burned {
		t.Fatalf("unexpected view payload: %+v", payload)
	}

	raw := server.do(t, http.MethodGet, "/api/pastes/"+created.ID+"/raw", "", nil)
	expectStatus(t, raw, http.StatusOK)
	if raw.Body.String() != "print('hi')" {
		t.Fatalf("unexpected raw body %q", raw.Body.String())
	}

	download := server.do(t, http.MethodGet, "/api/pastes/"+created.ID+"/download", "", nil)
	expectStatus(t, download, http.StatusOK)
	if disposition := download.Header().Get("Content-Disposition"); !strings.Contains(disposition, "attachment") {
		t.Fatalf("unexpected content disposition %q", disposition)
	}

	media := server.do(t, http.MethodGet, created.EmbedImageURL, "", nil)
	expectStatus(t, media, http.StatusOK)
	if media.Header().Get("Content-Type") != "image/png" {
		t.Fatalf("unexpected media content type %q", media.Header().Get("Content-Type"))
	}
}

func TestMissingPasteAndMediaReturnNotFound(t *testing.T) {
	server := newTestServer(t)

	missing := server.do(t, http.MethodGet, "/api/pastes/does-not-exist", "", nil)
	expectStatus(t, missing, http.StatusNotFound)
	var body map[string]interface{}
	decodeJSON(t, missing, &body)
	if body["error"] != "not_found" {
		t.Fatalf("unexpected error body: %v", body)
	}

	media := server.do(t, http.MethodGet, "/media/embed/nothing.png", "", nil)
	expectStatus(t, media, http.StatusNotFound)
}

func TestCreateRejectsAnonymousPrivatePaste(t *testing.T) {
	server := newTestServer(t)

	recorder := server.do(t, http.MethodPost, "/api/pastes", "", map[string]interface{}{
		"content":  "secret",
		"syntax":   "text",
		"exposure": "PR",
	})
	expectStatus(t, recorder, http.StatusBadRequest)
	var body struct {
		Error    string            `json:"error"`
		Fields   map[string]string `json:"fields"`
		Messages []string          `json:"messages"`
	}
	decodeJSON(t, recorder, &body)
	if body.Error != "validation_failed" {
		t.Fatalf("unexpected error code %q", body.Error)
	}
	if len(body.Fields) == 0 && len(body.Messages) == 0 {
		t.Fatalf("expected validation details, got %+v", body)
	}

	malformed := server.do(t, http.MethodPost, "/api/pastes", "", nil)
	expectStatus(t, malformed, http.StatusBadRequest)
}

func TestPrivatePasteVisibleOnlyToAuthor(t *testing.T) {
	server := newTestServer(t)
	aliceToken := server.token(t, "user-alice", "alice")
	bobToken := server.token(t, "user-bob", "bob")

	created := server.createPaste(t, aliceToken, map[string]interface{}{
		"content":  "mine",
		"syntax":   "text",
		"exposure": "PR",
	})
	if created.AuthorID == nil || *created.AuthorID != "user-alice" {
		t.Fatalf("expected alice as author, got %+v", created.AuthorID)
	}

	expectStatus(t, server.do(t, http.MethodGet, "/api/pastes/"+created.ID, bobToken, nil), http.StatusNotFound)
	expectStatus(t, server.do(t, http.MethodGet, "/api/pastes/"+created.ID, "", nil), http.StatusNotFound)
	expectStatus(t, server.do(t, http.MethodGet, "/api/pastes/"+created.ID, aliceToken, nil), http.StatusOK)
}

func TestPasswordProtectedBurnFlow(t *testing.T) {
	server := newTestServer(t)

	created := server.createPaste(t, "", map[string]interface{}{
		"content":         "launch codes",
		"syntax":          "text",
		"exposure":        "UN",
		"password":        "hunter2",
		"burn_after_read": true,
	})
	if !created.HasPassword || !created.BurnAfterRead {
		t.Fatalf("expected password and burn flags, got %+v", created)
	}

	redirect := server.do(t, http.MethodGet, "/api/pastes/"+created.ID, "", nil)
	expectStatus(t, redirect, http.StatusSeeOther)
	if location := redirect.Header().Get("Location"); location != "/api/pastes/"+created.ID+"/password" {
		t.Fatalf("unexpected redirect location %q", location)
	}

	wrong := server.do(t, http.MethodPost, "/api/pastes/"+created.ID+"/password", "", map[string]string{"password": "nope"})
	expectStatus(t, wrong, http.StatusBadRequest)
	var rejection struct {
		Fields map[string]string `json:"fields"`
	}
	decodeJSON(t, wrong, &rejection)
	if rejection.Fields["password"] == "" {
		t.Fatalf("expected password field error, got %+v", rejection)
	}

	correct := server.do(t, http.MethodPost, "/api/pastes/"+created.ID+"/password", "", map[string]string{"password": "hunter2"})
	expectStatus(t, correct, http.StatusOK)
	var payload viewResponsePayload
	decodeJSON(t, correct, &payload)
	if !payload.Burned || payload.Paste.Content != "launch codes" {
		t.Fatalf("expected burned delivery, got %+v", payload)
	}

	expectStatus(t, server.do(t, http.MethodGet, "/api/pastes/"+created.ID, "", nil), http.StatusNotFound)
}

func TestUpdateWithoutExpirationKeepsDate(t *testing.T) {
	server := newTestServer(t)
	aliceToken := server.token(t, "user-alice", "alice")

	created := server.createPaste(t, aliceToken, map[string]interface{}{
		"content":           "v1",
		"syntax":            "text",
		"exposure":          "PU",
		"expiration_symbol": "1D",
	})
	if created.ExpirationDate == nil {
		t.Fatalf("expected an expiration date")
	}

	*server.clock = server.clock.Add(time.Hour)
	recorder := server.do(t, http.MethodPut, "/api/pastes/"+created.ID, aliceToken, map[string]interface{}{
		"content":  "v2",
		"syntax":   "text",
		"exposure": "PU",
	})
	expectStatus(t, recorder, http.StatusOK)
	var updated pasteResponse
	decodeJSON(t, recorder, &updated)
	if updated.Content != "v2" {
		t.Fatalf("expected updated content, got %q", updated.Content)
	}
	if updated.ExpirationDate == nil || !updated.ExpirationDate.Equal(*created.ExpirationDate) {
		t.Fatalf("expected expiration %v to be kept, got %v", created.ExpirationDate, updated.ExpirationDate)
	}

	bobToken := server.token(t, "user-bob", "bob")
	expectStatus(t, server.do(t, http.MethodDelete, "/api/pastes/"+created.ID, bobToken, nil), http.StatusNotFound)
	expectStatus(t, server.do(t, http.MethodDelete, "/api/pastes/"+created.ID, aliceToken, nil), http.StatusNoContent)
	expectStatus(t, server.do(t, http.MethodGet, "/api/pastes/"+created.ID, aliceToken, nil), http.StatusNotFound)
}

func TestAuthenticatedRoutesRequireSession(t *testing.T) {
	server := newTestServer(t)

	expectStatus(t, server.do(t, http.MethodGet, "/api/me/folders", "", nil), http.StatusUnauthorized)
	expectStatus(t, server.do(t, http.MethodDelete, "/api/pastes/anything", "", nil), http.StatusUnauthorized)
	expectStatus(t, server.do(t, http.MethodGet, "/api/admin/reports", "", nil), http.StatusUnauthorized)

	aliceToken := server.token(t, "user-alice", "alice")
	expectStatus(t, server.do(t, http.MethodGet, "/api/admin/reports", aliceToken, nil), http.StatusForbidden)

	staffToken := server.token(t, "user-staff", "moderator", auth.RoleStaff)
	expectStatus(t, server.do(t, http.MethodGet, "/api/admin/reports", staffToken, nil), http.StatusOK)
}

func TestSessionsSharingDerivedUsernameKeepTheirIdentity(t *testing.T) {
	server := newTestServer(t)
	firstToken := server.token(t, "user-1", "alice")
	secondToken := server.token(t, "user-2", "alice")

	first := server.createPaste(t, firstToken, map[string]interface{}{
		"content":  "first",
		"syntax":   "text",
		"exposure": "PU",
	})
	if first.AuthorID == nil || *first.AuthorID != "user-1" {
		t.Fatalf("expected user-1 as author, got %+v", first.AuthorID)
	}

	second := server.createPaste(t, secondToken, map[string]interface{}{
		"content":  "second",
		"title":    "Second account notes",
		"syntax":   "text",
		"exposure": "PR",
	})
	if second.AuthorID == nil || *second.AuthorID != "user-2" {
		t.Fatalf("expected user-2 as author, got %+v", second.AuthorID)
	}

	expectStatus(t, server.do(t, http.MethodGet, "/api/me/folders", secondToken, nil), http.StatusOK)

	owner := server.do(t, http.MethodGet, "/api/users/alice-2", secondToken, nil)
	expectStatus(t, owner, http.StatusOK)
	if !strings.Contains(owner.Body.String(), "Second account notes") {
		t.Fatalf("expected the suffixed username to list user-2 pastes, got %s", owner.Body.String())
	}
}

func TestFolderAndUserListing(t *testing.T) {
	server := newTestServer(t)
	aliceToken := server.token(t, "user-alice", "alice")

	folder := server.do(t, http.MethodPost, "/api/me/folders", aliceToken, map[string]string{"name": "Snippets"})
	expectStatus(t, folder, http.StatusCreated)

	server.createPaste(t, aliceToken, map[string]interface{}{
		"content":    "filed",
		"syntax":     "go",
		"exposure":   "PU",
		"new_folder": "Work",
	})
	server.createPaste(t, aliceToken, map[string]interface{}{
		"content":  "hidden",
		"title":    "Hidden notes",
		"syntax":   "text",
		"exposure": "PR",
	})

	folders := server.do(t, http.MethodGet, "/api/me/folders", aliceToken, nil)
	expectStatus(t, folders, http.StatusOK)
	if !strings.Contains(folders.Body.String(), "Snippets") || !strings.Contains(folders.Body.String(), "Work") {
		t.Fatalf("expected both folders, got %s", folders.Body.String())
	}

	owner := server.do(t, http.MethodGet, "/api/users/alice", aliceToken, nil)
	expectStatus(t, owner, http.StatusOK)
	if !strings.Contains(owner.Body.String(), "Hidden notes") {
		t.Fatalf("expected owner listing to include private paste, got %s", owner.Body.String())
	}

	guest := server.do(t, http.MethodGet, "/api/users/alice?guest=true", aliceToken, nil)
	expectStatus(t, guest, http.StatusOK)
	if strings.Contains(guest.Body.String(), "Hidden notes") {
		t.Fatalf("guest listing leaked a private paste: %s", guest.Body.String())
	}

	expectStatus(t, server.do(t, http.MethodGet, "/api/users/nobody", "", nil), http.StatusNotFound)

	backup := server.do(t, http.MethodGet, "/api/me/backup", aliceToken, nil)
	expectStatus(t, backup, http.StatusOK)
	if contentType := backup.Header().Get("Content-Type"); contentType != "application/zip" {
		t.Fatalf("unexpected backup content type %q", contentType)
	}
}

func TestReportAndModerationFlow(t *testing.T) {
	server := newTestServer(t)
	staffToken := server.token(t, "user-staff", "moderator", auth.RoleAdmin)

	created := server.createPaste(t, "", map[string]interface{}{
		"content":  "spam spam spam",
		"syntax":   "text",
		"exposure": "PU",
	})
	report := server.do(t, http.MethodPost, "/api/pastes/"+created.ID+"/report", "", map[string]string{
		"reason":        "spam",
		"reporter_name": "neighbour",
	})
	expectStatus(t, report, http.StatusCreated)
	var reported reportResponse
	decodeJSON(t, report, &reported)

	deactivate := server.do(t, http.MethodPost, "/api/admin/reports/deactivate", staffToken, map[string][]uint{"ids": {reported.ID}})
	expectStatus(t, deactivate, http.StatusOK)

	expectStatus(t, server.do(t, http.MethodGet, "/api/pastes/"+created.ID, "", nil), http.StatusNotFound)
}

func TestRateLimitedCreateReturnsTooManyRequests(t *testing.T) {
	server := newTestServer(t, func(deps *Dependencies) {
		deps.RateLimitPerMinute = 1
		deps.RateLimitBurst = 1
	})
	draft := map[string]interface{}{"content": "x", "syntax": "text", "exposure": "PU"}

	expectStatus(t, server.do(t, http.MethodPost, "/api/pastes", "", draft), http.StatusCreated)
	limited := server.do(t, http.MethodPost, "/api/pastes", "", draft)
	expectStatus(t, limited, http.StatusTooManyRequests)
	if limited.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header")
	}
}
