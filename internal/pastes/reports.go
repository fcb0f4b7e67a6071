package pastes

import (
	"context"

	"github.com/MarcoPoloResearchLab/pastemate/internal/metrics"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ReportFilter narrows the moderation queue.
type ReportFilter struct {
	Moderated *bool
}

// ReportPaste files an anonymous report against a paste the viewer could read but does not own.
func (s *Service) ReportPaste(ctx context.Context, id string, input ReportInput, viewer Viewer) (*Report, error) {
	paste, err := s.loadLive(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if err := requireReportable(paste, viewer); err != nil {
		return nil, err
	}
	cleaned, verr := validateReport(input)
	if verr != nil {
		return nil, verr
	}

	now := s.now()
	report := &Report{
		PasteID:      paste.ID,
		Reason:       cleaned.Reason,
		ReporterName: cleaned.ReporterName,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.db.WithContext(ctx).Create(report).Error; err != nil {
		s.logError(opReportPaste, "insert_failed", err, zap.String("paste_id", paste.ID))
		return nil, newServiceError(opReportPaste, "insert_failed", err)
	}
	metrics.ReportsFiled.Inc()
	return report, nil
}

// ListReports returns reports oldest first. Inactive pastes stay visible here.
func (s *Service) ListReports(ctx context.Context, filter ReportFilter) ([]Report, error) {
	query := s.db.WithContext(ctx).Model(&Report{})
	if filter.Moderated != nil {
		query = query.Where("moderated = ?", *filter.Moderated)
	}
	var reports []Report
	if err := query.Order("created ASC, id ASC").Find(&reports).Error; err != nil {
		s.logError(opModerate, "list_failed", err)
		return nil, newServiceError(opModerate, "list_failed", err)
	}
	return reports, nil
}

// MarkReportsModerated flags reports as handled by moderator.
func (s *Service) MarkReportsModerated(ctx context.Context, ids []uint, moderator Viewer) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	now := s.now()
	moderatorID := moderator.UserID
	result := s.db.WithContext(ctx).Model(&Report{}).
		Where("id IN ?", ids).
		Updates(map[string]interface{}{
			"moderated":    true,
			"moderated_by": &moderatorID,
			"moderated_at": &now,
			"modified":     now,
		})
	if result.Error != nil {
		s.logError(opModerate, "mark_moderated_failed", result.Error)
		return 0, newServiceError(opModerate, "mark_moderated_failed", result.Error)
	}
	return result.RowsAffected, nil
}

// MarkReportsUnmoderated returns reports to the queue.
func (s *Service) MarkReportsUnmoderated(ctx context.Context, ids []uint) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := s.db.WithContext(ctx).Model(&Report{}).
		Where("id IN ?", ids).
		Updates(map[string]interface{}{
			"moderated":    false,
			"moderated_by": nil,
			"moderated_at": nil,
			"modified":     s.now(),
		})
	if result.Error != nil {
		s.logError(opModerate, "mark_unmoderated_failed", result.Error)
		return 0, newServiceError(opModerate, "mark_unmoderated_failed", result.Error)
	}
	return result.RowsAffected, nil
}

// DeactivateReportedPastes hides the pastes behind the given reports and marks the reports handled.
// It returns the number of pastes deactivated.
func (s *Service) DeactivateReportedPastes(ctx context.Context, ids []uint, moderator Viewer) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	var deactivated int64
	now := s.now()
	moderatorID := moderator.UserID
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var pasteIDs []string
		if err := tx.Model(&Report{}).Where("id IN ?", ids).Distinct().Pluck("paste_id", &pasteIDs).Error; err != nil {
			s.logError(opModerate, "report_select_failed", err)
			return newServiceError(opModerate, "report_select_failed", err)
		}
		if len(pasteIDs) == 0 {
			return nil
		}
		result := tx.Model(&Paste{}).
			Where("id IN ? AND is_active = ?", pasteIDs, true).
			Updates(map[string]interface{}{"is_active": false, "modified": now})
		if result.Error != nil {
			s.logError(opModerate, "deactivate_failed", result.Error)
			return newServiceError(opModerate, "deactivate_failed", result.Error)
		}
		deactivated = result.RowsAffected
		err := tx.Model(&Report{}).
			Where("id IN ?", ids).
			Updates(map[string]interface{}{
				"moderated":    true,
				"moderated_by": &moderatorID,
				"moderated_at": &now,
				"modified":     now,
			}).Error
		if err != nil {
			s.logError(opModerate, "mark_moderated_failed", err)
			return newServiceError(opModerate, "mark_moderated_failed", err)
		}
		return nil
	})
	if txErr != nil {
		return 0, txErr
	}
	s.loggerOrDefault().Info("reported pastes deactivated",
		zap.String("moderator", moderatorID),
		zap.Int64("pastes", deactivated))
	return deactivated, nil
}
