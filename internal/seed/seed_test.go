package seed

import (
	"context"
	"errors"
	"testing"
	"unicode/utf8"

	"github.com/MarcoPoloResearchLab/pastemate/internal/expiration"
	"github.com/MarcoPoloResearchLab/pastemate/internal/highlight"
	"github.com/MarcoPoloResearchLab/pastemate/internal/pastes"
)

type recordingCreator struct {
	drafts []pastes.Draft
	fail   bool
}

func (r *recordingCreator) CreatePaste(_ context.Context, draft pastes.Draft, viewer pastes.Viewer) (*pastes.Paste, error) {
	if r.fail {
		return nil, errors.New("database unavailable")
	}
	r.drafts = append(r.drafts, draft)
	author := viewer.UserID
	return &pastes.Paste{ID: draft.Title, AuthorID: &author, Content: draft.Content}, nil
}

func TestBuildDraftProducesValidDrafts(t *testing.T) {
	seeder := NewSeeder(&recordingCreator{}, Options{Seed: 42}, nil)
	for index := 0; index < 50; index++ {
		draft := seeder.BuildDraft()
		if !highlight.Supported(draft.Syntax) {
			t.Fatalf("unsupported syntax %q", draft.Syntax)
		}
		if draft.Content == "" {
			t.Fatalf("expected content")
		}
		if utf8.RuneCountInString(draft.Title) > maxTitleLength {
			t.Fatalf("title too long: %q", draft.Title)
		}
		if draft.Exposure == pastes.ExposurePrivate {
			t.Fatalf("demo pastes must be visible")
		}
		if !expiration.Valid(draft.Expiration, false) {
			t.Fatalf("invalid expiration %q", draft.Expiration)
		}
	}
}

func TestRunCreatesRequestedCount(t *testing.T) {
	creator := &recordingCreator{}
	seeder := NewSeeder(creator, Options{Seed: 7}, nil)
	created, err := seeder.Run(context.Background(), pastes.Viewer{UserID: "user-1", Username: "demo"}, 5)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if len(created) != 5 || len(creator.drafts) != 5 {
		t.Fatalf("expected five pastes, got %d", len(created))
	}
}

func TestRunStopsOnFailure(t *testing.T) {
	seeder := NewSeeder(&recordingCreator{fail: true}, Options{Seed: 7}, nil)
	created, err := seeder.Run(context.Background(), pastes.Viewer{UserID: "user-1"}, 3)
	if err == nil || len(created) != 0 {
		t.Fatalf("expected failure on first paste, got %d created err=%v", len(created), err)
	}
}

func TestSeedIsDeterministic(t *testing.T) {
	first := NewSeeder(&recordingCreator{}, Options{Seed: 99}, nil).BuildDraft()
	second := NewSeeder(&recordingCreator{}, Options{Seed: 99}, nil).BuildDraft()
	if first != second {
		t.Fatalf("expected identical drafts for the same seed")
	}
}
