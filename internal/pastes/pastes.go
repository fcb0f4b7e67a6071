package pastes

import (
	"context"

	"github.com/MarcoPoloResearchLab/pastemate/internal/expiration"
	"github.com/MarcoPoloResearchLab/pastemate/internal/metrics"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CreatePaste validates draft and stores a new paste on behalf of viewer.
func (s *Service) CreatePaste(ctx context.Context, draft Draft, viewer Viewer) (*Paste, error) {
	draft = draft.normalized()
	if verr := s.validateDraft(draft, false, viewer); verr != nil {
		return nil, verr
	}

	pasteID, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opCreatePaste, "id_generation_failed", err)
		return nil, newServiceError(opCreatePaste, "id_generation_failed", err)
	}

	now := s.now()
	paste := &Paste{
		ID:            pasteID,
		Title:         draft.Title,
		Content:       draft.Content,
		Syntax:        draft.Syntax,
		Exposure:      draft.Exposure,
		BurnAfterRead: draft.BurnAfterRead,
		IsActive:      true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	anonymous := !viewer.Authenticated() || draft.PostAnonymously
	if !anonymous {
		authorID := viewer.UserID
		paste.AuthorID = &authorID
	}

	var plan embedPlan
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if !anonymous {
			folderID, err := s.resolveDraftFolder(ctx, tx, viewer.UserID, draft)
			if err != nil {
				return err
			}
			paste.FolderID = folderID
		}
		prepared, err := s.prepare(paste, saveInput{expiration: draft.Expiration, password: draft.Password}, false)
		if err != nil {
			return err
		}
		plan = prepared
		if err := tx.Create(paste).Error; err != nil {
			s.logError(opCreatePaste, "insert_failed", err, zap.String("paste_id", paste.ID))
			return newServiceError(opCreatePaste, "insert_failed", err)
		}
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}
	s.applyEmbedPlan(ctx, paste, plan)

	metrics.PastesCreated.WithLabelValues(string(paste.Exposure)).Inc()
	return paste, nil
}

// ClonePaste creates a new paste from draft after checking that viewer may copy the source.
func (s *Service) ClonePaste(ctx context.Context, sourceID string, draft Draft, viewer Viewer) (*Paste, error) {
	source, err := s.loadLive(ctx, s.db, sourceID)
	if err != nil {
		return nil, err
	}
	if err := requireContentAccess(source, viewer); err != nil {
		return nil, err
	}
	return s.CreatePaste(ctx, draft, viewer)
}

// EditPrefill returns the current values of a paste for its author's edit form.
// The expiration defaults to leaving the stored date untouched.
func (s *Service) EditPrefill(ctx context.Context, id string, viewer Viewer) (Draft, error) {
	paste, err := s.loadLive(ctx, s.db, id)
	if err != nil {
		return Draft{}, err
	}
	if err := requireAuthor(paste, viewer); err != nil {
		return Draft{}, err
	}
	draft := Draft{
		Content:       paste.Content,
		Title:         paste.Title,
		Syntax:        paste.Syntax,
		Exposure:      paste.Exposure,
		Expiration:    expiration.NoChange,
		KeepPassword:  paste.HasPassword(),
		BurnAfterRead: paste.BurnAfterRead,
	}
	if paste.FolderID != nil {
		draft.FolderID = *paste.FolderID
	}
	return draft, nil
}

// UpdatePaste applies draft to a paste owned by viewer. Non-authors get ErrNotFound.
func (s *Service) UpdatePaste(ctx context.Context, id string, draft Draft, viewer Viewer) (*Paste, error) {
	draft = draft.normalized()

	var (
		updated *Paste
		plan    embedPlan
	)
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		paste, err := s.loadLive(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := requireAuthor(paste, viewer); err != nil {
			return err
		}
		if verr := s.validateDraft(draft, true, viewer); verr != nil {
			return verr
		}

		folderID, err := s.resolveDraftFolder(ctx, tx, viewer.UserID, draft)
		if err != nil {
			return err
		}

		paste.Title = draft.Title
		paste.Content = draft.Content
		paste.Syntax = draft.Syntax
		paste.Exposure = draft.Exposure
		paste.BurnAfterRead = draft.BurnAfterRead
		paste.FolderID = folderID
		paste.UpdatedAt = s.now()

		input := saveInput{expiration: draft.Expiration, password: draft.Password, keepPassword: draft.KeepPassword}
		prepared, err := s.prepare(paste, input, true)
		if err != nil {
			return err
		}
		plan = prepared

		result := tx.Model(&Paste{}).
			Where("id = ? AND is_active = ?", paste.ID, true).
			Updates(map[string]interface{}{
				"title":            paste.Title,
				"content":          paste.Content,
				"content_html":     paste.ContentHTML,
				"search_text":      paste.SearchText,
				"syntax":           paste.Syntax,
				"exposure":         paste.Exposure,
				"expiration_date":  paste.ExpirationDate,
				"password":         paste.Password,
				"burn_after_read":  paste.BurnAfterRead,
				"filesize":         paste.Filesize,
				"embeddable_image": paste.EmbeddableImage,
				"folder_id":        paste.FolderID,
				"modified":         paste.UpdatedAt,
			})
		if result.Error != nil {
			s.logError(opUpdatePaste, "update_failed", result.Error, zap.String("paste_id", paste.ID))
			return newServiceError(opUpdatePaste, "update_failed", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		updated = paste
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}
	s.applyEmbedPlan(ctx, updated, plan)
	return updated, nil
}

// DeletePaste removes a paste owned by viewer together with its reports and embed image.
func (s *Service) DeletePaste(ctx context.Context, id string, viewer Viewer) error {
	var pasteID, imageKey string
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		paste, err := s.loadLive(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := requireAuthor(paste, viewer); err != nil {
			return err
		}
		removed, err := s.deletePastes(tx, []string{paste.ID})
		if err != nil {
			s.logError(opDeletePaste, "delete_failed", err, zap.String("paste_id", paste.ID))
			return newServiceError(opDeletePaste, "delete_failed", err)
		}
		if removed == 0 {
			return ErrNotFound
		}
		pasteID = paste.ID
		imageKey = paste.EmbeddableImage
		return nil
	})
	if txErr != nil {
		return txErr
	}
	s.discardArtifacts(ctx, pasteID, imageKey)
	return nil
}

// deletePastes removes the given pastes and their reports inside tx and returns the paste count.
func (s *Service) deletePastes(tx *gorm.DB, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	if err := tx.Where("paste_id IN ?", ids).Delete(&Report{}).Error; err != nil {
		return 0, err
	}
	result := tx.Where("id IN ?", ids).Delete(&Paste{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
