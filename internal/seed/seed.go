// Package seed fills a development database with demo pastes.
package seed

import (
	"context"
	"fmt"
	"strings"

	"github.com/MarcoPoloResearchLab/pastemate/internal/expiration"
	"github.com/MarcoPoloResearchLab/pastemate/internal/pastes"
	"github.com/brianvoe/gofakeit/v6"
	"go.uber.org/zap"
)

const maxTitleLength = 50

// PasteCreator is the part of the paste service the seeder needs.
type PasteCreator interface {
	CreatePaste(ctx context.Context, draft pastes.Draft, viewer pastes.Viewer) (*pastes.Paste, error)
}

// Options tunes a seeding run. A zero Seed draws from the clock.
type Options struct {
	Count int
	Seed  int64
}

// Seeder builds demo drafts and saves them through the paste service.
type Seeder struct {
	creator PasteCreator
	faker   *gofakeit.Faker
	logger  *zap.Logger
}

// NewSeeder constructs a Seeder. A nil logger disables logging.
func NewSeeder(creator PasteCreator, opts Options, logger *zap.Logger) *Seeder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Seeder{creator: creator, faker: gofakeit.New(opts.Seed), logger: logger}
}

var snippetSyntaxes = []string{"text", "go", "python", "javascript", "bash", "sql", "json", "yaml"}

var expirationSymbols = []expiration.Symbol{
	expiration.Never,
	expiration.Never,
	expiration.OneDay,
	expiration.OneWeek,
	expiration.OneMonth,
}

// BuildDraft returns a random draft. Roughly one in five is unlisted; the rest are public.
func (s *Seeder) BuildDraft() pastes.Draft {
	syntax := s.faker.RandomString(snippetSyntaxes)
	exposure := pastes.ExposurePublic
	if s.faker.Number(1, 5) == 1 {
		exposure = pastes.ExposureUnlisted
	}
	return pastes.Draft{
		Title:      truncate(s.faker.Sentence(s.faker.Number(2, 6)), maxTitleLength),
		Content:    s.snippet(syntax),
		Syntax:     syntax,
		Exposure:   exposure,
		Expiration: expirationSymbols[s.faker.Number(0, len(expirationSymbols)-1)],
	}
}

// Run creates count demo pastes for author.
func (s *Seeder) Run(ctx context.Context, author pastes.Viewer, count int) ([]*pastes.Paste, error) {
	created := make([]*pastes.Paste, 0, count)
	for index := 0; index < count; index++ {
		paste, err := s.creator.CreatePaste(ctx, s.BuildDraft(), author)
		if err != nil {
			return created, fmt.Errorf("seed paste %d: %w", index+1, err)
		}
		created = append(created, paste)
	}
	s.logger.Info("demo pastes created", zap.String("username", author.Username), zap.Int("count", len(created)))
	return created, nil
}

func (s *Seeder) snippet(syntax string) string {
	switch syntax {
	case "go":
		return fmt.Sprintf("package main\n\nimport \"fmt\"\n\nfunc main() {\n\tfmt.Println(%q)\n}\n", s.faker.HackerPhrase())
	case "python":
		return fmt.Sprintf("def %s():\n    return %q\n\nprint(%s())\n", s.identifier(), s.faker.HackerPhrase(), s.identifier())
	case "javascript":
		return fmt.Sprintf("const %s = () => %q;\nconsole.log(%s());\n", s.identifier(), s.faker.HackerPhrase(), s.identifier())
	case "bash":
		return fmt.Sprintf("#!/usr/bin/env bash\nset -euo pipefail\necho %q\n", s.faker.HackerPhrase())
	case "sql":
		return fmt.Sprintf("SELECT id, name FROM %s WHERE name LIKE '%%%s%%';\n", s.identifier(), s.faker.Word())
	case "json":
		return fmt.Sprintf("{\n  \"name\": %q,\n  \"email\": %q,\n  \"active\": %t\n}\n", s.faker.Name(), s.faker.Email(), s.faker.Bool())
	case "yaml":
		return fmt.Sprintf("service:\n  name: %s\n  replicas: %d\n", s.identifier(), s.faker.Number(1, 5))
	default:
		return s.faker.Paragraph(s.faker.Number(1, 3), s.faker.Number(2, 5), 10, "\n\n")
	}
}

func (s *Seeder) identifier() string {
	return strings.ToLower(s.faker.Noun()) + "_" + strings.ToLower(s.faker.Verb())
}

func truncate(value string, limit int) string {
	runes := []rune(strings.TrimSpace(value))
	if len(runes) <= limit {
		return string(runes)
	}
	return strings.TrimSpace(string(runes[:limit]))
}
