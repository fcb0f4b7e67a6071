package pastes

import (
	"context"

	"github.com/MarcoPoloResearchLab/pastemate/internal/hits"
	"github.com/MarcoPoloResearchLab/pastemate/internal/metrics"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// View is the outcome of a detail request.
// Paste is nil whenever the content must not be shown yet.
type View struct {
	Paste            *Paste
	PasswordRequired bool
	PasswordRejected bool
	Burned           bool
	Hits             int64
}

// Download is a paste rendered as an attachment.
type Download struct {
	Filename string
	Content  []byte
}

// Embed is the data needed to embed a paste on another site.
type Embed struct {
	Paste    *Paste
	ImageKey string
}

// DownloadFilename is the attachment name for a paste.
func DownloadFilename(pasteID string) string {
	return "paste-" + pasteID + ".txt"
}

// GetForView resolves the detail view. Password-protected pastes ask non-authors for the password
// and burn nothing; other burn-after-read pastes are deleted as their content is delivered.
func (s *Service) GetForView(ctx context.Context, id string, viewer Viewer) (View, error) {
	paste, err := s.loadLive(ctx, s.db, id)
	if err != nil {
		return View{}, err
	}
	if err := requireView(paste, viewer); err != nil {
		return View{}, err
	}
	if paste.HasPassword() && !IsAuthor(paste, viewer) {
		return View{PasswordRequired: true}, nil
	}
	return s.deliver(ctx, paste)
}

// VerifyPassword checks candidate against a protected paste. A wrong password never burns;
// a correct one delivers the content and burns the paste when it is burn-after-read.
func (s *Service) VerifyPassword(ctx context.Context, id string, viewer Viewer, candidate string) (View, error) {
	paste, err := s.loadLive(ctx, s.db, id)
	if err != nil {
		return View{}, err
	}
	if err := requireView(paste, viewer); err != nil {
		return View{}, err
	}
	if !paste.HasPassword() {
		return s.deliver(ctx, paste)
	}

	matches, err := checkPassword(paste.Password, candidate)
	if err != nil {
		s.logError(opVerifyPassword, "hash_invalid", err, zap.String("paste_id", paste.ID))
		return View{}, newServiceError(opVerifyPassword, "hash_invalid", err)
	}
	if !matches {
		metrics.PasswordAttempts.WithLabelValues("rejected").Inc()
		return View{PasswordRequired: true, PasswordRejected: true}, nil
	}
	metrics.PasswordAttempts.WithLabelValues("accepted").Inc()
	return s.deliver(ctx, paste)
}

func (s *Service) deliver(ctx context.Context, paste *Paste) (View, error) {
	view := View{Paste: paste, Hits: s.countHit(ctx, hits.KindPaste, paste.ID)}
	if paste.BurnAfterRead {
		if err := s.burn(ctx, paste); err != nil {
			return View{}, err
		}
		view.Burned = true
	}
	return view, nil
}

// burn deletes paste only if it still exists. Losing the race to another reader or the sweep
// yields ErrNotFound.
func (s *Service) burn(ctx context.Context, paste *Paste) error {
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("id = ? AND is_active = ?", paste.ID, true).Delete(&Paste{})
		if result.Error != nil {
			s.logError(opBurnPaste, "delete_failed", result.Error, zap.String("paste_id", paste.ID))
			return newServiceError(opBurnPaste, "delete_failed", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		if err := tx.Where("paste_id = ?", paste.ID).Delete(&Report{}).Error; err != nil {
			s.logError(opBurnPaste, "report_cleanup_failed", err, zap.String("paste_id", paste.ID))
			return newServiceError(opBurnPaste, "report_cleanup_failed", err)
		}
		return nil
	})
	if txErr != nil {
		return txErr
	}
	metrics.PastesBurned.Inc()
	s.discardArtifacts(ctx, paste.ID, paste.EmbeddableImage)
	return nil
}

func (s *Service) loadAccessible(ctx context.Context, id string, viewer Viewer) (*Paste, error) {
	paste, err := s.loadLive(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if err := requireContentAccess(paste, viewer); err != nil {
		return nil, err
	}
	return paste, nil
}

// GetRaw returns the paste for the plain text view.
func (s *Service) GetRaw(ctx context.Context, id string, viewer Viewer) (*Paste, error) {
	return s.loadAccessible(ctx, id, viewer)
}

// Download returns the paste content with its attachment filename.
func (s *Service) Download(ctx context.Context, id string, viewer Viewer) (Download, error) {
	paste, err := s.loadAccessible(ctx, id, viewer)
	if err != nil {
		return Download{}, err
	}
	return Download{Filename: DownloadFilename(paste.ID), Content: []byte(paste.Content)}, nil
}

// CloneSource returns the prefill for a new paste copied from id.
func (s *Service) CloneSource(ctx context.Context, id string, viewer Viewer) (Prefill, error) {
	paste, err := s.loadAccessible(ctx, id, viewer)
	if err != nil {
		return Prefill{}, err
	}
	return Prefill{Content: paste.Content, Syntax: paste.Syntax, Title: paste.Title}, nil
}

// GetEmbed returns the paste and its image key for the embed view.
func (s *Service) GetEmbed(ctx context.Context, id string, viewer Viewer) (Embed, error) {
	paste, err := s.loadAccessible(ctx, id, viewer)
	if err != nil {
		return Embed{}, err
	}
	return Embed{Paste: paste, ImageKey: paste.EmbeddableImage}, nil
}

// GetPrint returns the paste for the print view.
func (s *Service) GetPrint(ctx context.Context, id string, viewer Viewer) (*Paste, error) {
	return s.loadAccessible(ctx, id, viewer)
}
