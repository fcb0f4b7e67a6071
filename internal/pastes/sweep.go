package pastes

import (
	"context"
	"time"

	"github.com/MarcoPoloResearchLab/pastemate/internal/metrics"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ExpiredPaste identifies a paste matched by the sweep.
type ExpiredPaste struct {
	ID             string
	Title          string
	ExpirationDate time.Time
}

// SweepReport describes one sweep run. Removed stays zero on dry runs.
type SweepReport struct {
	DryRun  bool
	Matched []ExpiredPaste
	Removed int64
}

// Empty reports whether nothing was due for removal.
func (r SweepReport) Empty() bool {
	return len(r.Matched) == 0
}

// SweepExpired finds every paste whose expiration date has passed, active or not, and deletes
// them unless dryRun is set. It bypasses access control.
func (s *Service) SweepExpired(ctx context.Context, dryRun bool) (SweepReport, error) {
	now := s.now()
	var expired []Paste
	err := s.db.WithContext(ctx).
		Select("id", "title", "expiration_date", "embeddable_image").
		Where("expiration_date IS NOT NULL AND expiration_date <= ?", now).
		Order("expiration_date ASC").
		Find(&expired).Error
	if err != nil {
		s.logError(opSweep, "query_failed", err)
		return SweepReport{}, newServiceError(opSweep, "query_failed", err)
	}

	report := SweepReport{DryRun: dryRun, Matched: make([]ExpiredPaste, 0, len(expired))}
	ids := make([]string, 0, len(expired))
	for _, paste := range expired {
		report.Matched = append(report.Matched, ExpiredPaste{
			ID:             paste.ID,
			Title:          paste.Title,
			ExpirationDate: *paste.ExpirationDate,
		})
		ids = append(ids, paste.ID)
	}
	if dryRun || len(ids) == 0 {
		return report, nil
	}

	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("paste_id IN ?", ids).Delete(&Report{}).Error; err != nil {
			return err
		}
		result := tx.Where("id IN ? AND expiration_date <= ?", ids, now).Delete(&Paste{})
		if result.Error != nil {
			return result.Error
		}
		report.Removed = result.RowsAffected
		return nil
	})
	if txErr != nil {
		s.logError(opSweep, "delete_failed", txErr)
		return SweepReport{}, newServiceError(opSweep, "delete_failed", txErr)
	}

	for _, paste := range expired {
		s.discardArtifacts(ctx, paste.ID, paste.EmbeddableImage)
	}
	metrics.PastesExpired.Add(float64(report.Removed))
	return report, nil
}

// RegenerateEmbeds renders images for live pastes that qualify for one but have none.
func (s *Service) RegenerateEmbeds(ctx context.Context) (int, error) {
	var candidates []Paste
	err := s.db.WithContext(ctx).
		Scopes(s.liveScope(s.now())).
		Where("embeddable_image = ? AND exposure <> ? AND password = ? AND burn_after_read = ?", "", ExposurePrivate, "", false).
		Find(&candidates).Error
	if err != nil {
		s.logError(opRegenerateEmbed, "query_failed", err)
		return 0, newServiceError(opRegenerateEmbed, "query_failed", err)
	}

	regenerated := 0
	for index := range candidates {
		paste := &candidates[index]
		if !CanEmbed(paste) {
			continue
		}
		plan := s.planEmbeddableImage(paste)
		if plan.image == nil || !s.storeEmbedImage(ctx, paste, plan) {
			continue
		}
		err := s.db.WithContext(ctx).Model(&Paste{}).
			Where("id = ?", paste.ID).
			Update("embeddable_image", paste.EmbeddableImage).Error
		if err != nil {
			s.logError(opRegenerateEmbed, "update_failed", err, zap.String("paste_id", paste.ID))
			return regenerated, newServiceError(opRegenerateEmbed, "update_failed", err)
		}
		regenerated++
	}
	return regenerated, nil
}

// StartJanitor sweeps expired pastes every interval until ctx is cancelled.
func (s *Service) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.sweepOnce(ctx)
			}
		}
	}()
}

func (s *Service) sweepOnce(ctx context.Context) {
	sweepCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	report, err := s.SweepExpired(sweepCtx, false)
	if err != nil {
		return
	}
	if report.Removed > 0 {
		s.loggerOrDefault().Info("janitor removed expired pastes", zap.Int64("count", report.Removed))
	}
}
