package pastes

import (
	"context"
	"errors"
	"strings"

	"github.com/MarcoPoloResearchLab/pastemate/internal/expiration"
	"github.com/MarcoPoloResearchLab/pastemate/internal/highlight"
	"github.com/MarcoPoloResearchLab/pastemate/internal/metrics"
	"go.uber.org/zap"
)

// saveInput carries the write-only inputs that the save pipeline turns into stored fields.
type saveInput struct {
	expiration   expiration.Symbol
	password     string
	keepPassword bool
}

// EmbedKey is the blob key of a paste's embeddable image.
func EmbedKey(pasteID string) string {
	return "embed/" + pasteID + ".png"
}

// prepare recomputes every derived field of paste before it is persisted. The returned plan
// carries the blob changes, which the caller applies once the row is committed.
func (s *Service) prepare(paste *Paste, input saveInput, isUpdate bool) (embedPlan, error) {
	if strings.TrimSpace(paste.Title) == "" {
		paste.Title = DefaultTitle
	}

	rendered, err := s.highlighter.Render(paste.Content, paste.Syntax, highlight.ModeHTML)
	if errors.Is(err, highlight.ErrUnsupportedSyntax) {
		return embedPlan{}, fieldError("syntax", messageInvalidChoice)
	}
	if err != nil {
		return embedPlan{}, err
	}
	paste.ContentHTML = string(rendered.Data)
	paste.Filesize = len(paste.Content)
	paste.SearchText = SearchTextFor(paste.Title, paste.Content)

	switch {
	case isUpdate && input.keepPassword:
	case input.password == "":
		paste.Password = ""
	default:
		hashed, err := hashPassword(s.password, input.password)
		if err != nil {
			return embedPlan{}, err
		}
		paste.Password = hashed
	}

	if !(isUpdate && input.expiration == expiration.NoChange) {
		expiresAt, err := expiration.Calculate(input.expiration, s.now())
		if err != nil {
			return embedPlan{}, fieldError("expiration_symbol", messageInvalidChoice)
		}
		paste.ExpirationDate = expiresAt
	}

	return s.planEmbeddableImage(paste), nil
}

// embedPlan is the blob work left over from a save: an image to store under the paste's
// embed key and a key whose blob no longer belongs to the paste.
type embedPlan struct {
	image       []byte
	contentType string
	staleKey    string
}

// planEmbeddableImage renders the embed image or clears the field. Rendering failures leave
// the field empty and never fail the save.
func (s *Service) planEmbeddableImage(paste *Paste) embedPlan {
	plan := embedPlan{staleKey: paste.EmbeddableImage}
	paste.EmbeddableImage = ""
	if !CanEmbed(paste) {
		return plan
	}

	output, err := s.highlighter.Render(paste.Content, paste.Syntax, highlight.ModeImage)
	if err == nil && !output.Implemented {
		err = errImageModeMissing
	}
	if err != nil {
		s.embedFailed(paste, err)
		return plan
	}
	plan.image = output.Data
	plan.contentType = output.ContentType
	paste.EmbeddableImage = EmbedKey(paste.ID)
	return plan
}

// applyEmbedPlan runs after the save committed. A failed store clears the stored field again
// so the row never points at a missing image for longer than the write takes.
func (s *Service) applyEmbedPlan(ctx context.Context, paste *Paste, plan embedPlan) {
	if plan.staleKey != "" && plan.staleKey != paste.EmbeddableImage {
		s.removeBlob(ctx, plan.staleKey)
	}
	if plan.image == nil || s.storeEmbedImage(ctx, paste, plan) {
		return
	}
	key := paste.EmbeddableImage
	paste.EmbeddableImage = ""
	err := s.db.WithContext(ctx).Model(&Paste{}).
		Where("id = ? AND embeddable_image = ?", paste.ID, key).
		Update("embeddable_image", "").Error
	if err != nil {
		s.logError(opEmbedImage, "clear_failed", err, zap.String("paste_id", paste.ID))
	}
}

func (s *Service) storeEmbedImage(ctx context.Context, paste *Paste, plan embedPlan) bool {
	if err := s.blobs.Put(ctx, EmbedKey(paste.ID), plan.image, plan.contentType); err != nil {
		s.embedFailed(paste, err)
		return false
	}
	return true
}

func (s *Service) embedFailed(paste *Paste, err error) {
	metrics.EmbedImageFailures.Inc()
	s.loggerOrDefault().Warn("embeddable image generation failed",
		zap.String("paste_id", paste.ID),
		zap.String("syntax", paste.Syntax),
		zap.Error(err))
}
