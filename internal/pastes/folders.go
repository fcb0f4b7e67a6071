package pastes

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	maxFolderNameLength = 50

	messageDuplicateFolder = "You already have a folder with that name"
	messageSimilarFolder   = "You already have a folder with a similar name"
	messageFolderSlug      = "Folder name must contain at least one letter or digit."
	messageFolderOwner     = "You must be signed in to manage folders."
)

// FolderSummary is a folder with the number of live pastes inside it.
type FolderSummary struct {
	Folder
	PasteCount int64 `gorm:"column:paste_count"`
}

// CreateFolder adds a folder for owner. Names are unique per owner regardless of case.
func (s *Service) CreateFolder(ctx context.Context, owner Viewer, name string) (*Folder, error) {
	if !owner.Authenticated() {
		return nil, formError(messageFolderOwner)
	}
	var created *Folder
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		folder, err := s.insertFolder(tx, owner.UserID, name)
		if err != nil {
			return err
		}
		created = folder
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}
	return created, nil
}

// RenameFolder changes the name and slug of one of owner's folders.
func (s *Service) RenameFolder(ctx context.Context, owner Viewer, slug, name string) (*Folder, error) {
	if !owner.Authenticated() {
		return nil, ErrNotFound
	}
	var renamed *Folder
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		folder, err := s.findFolderBySlug(tx, owner.UserID, slug)
		if err != nil {
			return err
		}
		cleaned, key, newSlug, verr := validateFolderName(name)
		if verr != nil {
			return verr
		}
		if err := s.checkFolderUnique(tx, opFolderRename, owner.UserID, key, newSlug, folder.ID); err != nil {
			return err
		}

		folder.Name = cleaned
		folder.NameKey = key
		folder.Slug = newSlug
		folder.UpdatedAt = s.now()
		err = tx.Model(&Folder{}).
			Where("id = ? AND created_by = ?", folder.ID, owner.UserID).
			Updates(map[string]interface{}{
				"name":     folder.Name,
				"name_key": folder.NameKey,
				"slug":     folder.Slug,
				"modified": folder.UpdatedAt,
			}).Error
		if isUniqueViolation(err) {
			return fieldError("name", messageDuplicateFolder)
		}
		if err != nil {
			s.logError(opFolderRename, "update_failed", err, zap.String("folder_id", folder.ID))
			return newServiceError(opFolderRename, "update_failed", err)
		}
		renamed = folder
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}
	return renamed, nil
}

// DeleteFolder removes one of owner's folders and every paste inside it.
func (s *Service) DeleteFolder(ctx context.Context, owner Viewer, slug string) error {
	if !owner.Authenticated() {
		return ErrNotFound
	}
	var contained []Paste
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		folder, err := s.findFolderBySlug(tx, owner.UserID, slug)
		if err != nil {
			return err
		}
		if err := tx.Select("id", "embeddable_image").Where("folder_id = ?", folder.ID).Find(&contained).Error; err != nil {
			s.logError(opFolderDelete, "paste_select_failed", err, zap.String("folder_id", folder.ID))
			return newServiceError(opFolderDelete, "paste_select_failed", err)
		}
		ids := make([]string, 0, len(contained))
		for _, paste := range contained {
			ids = append(ids, paste.ID)
		}
		if _, err := s.deletePastes(tx, ids); err != nil {
			s.logError(opFolderDelete, "paste_delete_failed", err, zap.String("folder_id", folder.ID))
			return newServiceError(opFolderDelete, "paste_delete_failed", err)
		}
		if err := tx.Where("id = ?", folder.ID).Delete(&Folder{}).Error; err != nil {
			s.logError(opFolderDelete, "delete_failed", err, zap.String("folder_id", folder.ID))
			return newServiceError(opFolderDelete, "delete_failed", err)
		}
		return nil
	})
	if txErr != nil {
		return txErr
	}
	for _, paste := range contained {
		s.discardArtifacts(ctx, paste.ID, paste.EmbeddableImage)
	}
	return nil
}

// ListFolders returns owner's folders ordered by name.
func (s *Service) ListFolders(ctx context.Context, owner Viewer) ([]FolderSummary, error) {
	if !owner.Authenticated() {
		return nil, nil
	}
	live := s.liveScope(s.now())(s.db.Model(&Paste{})).
		Select("folder_id, COUNT(*) AS paste_count").
		Where("author_id = ? AND folder_id IS NOT NULL", owner.UserID).
		Group("folder_id")

	var folders []FolderSummary
	err := s.db.WithContext(ctx).
		Table("folders").
		Select("folders.*, COALESCE(counts.paste_count, 0) AS paste_count").
		Joins("LEFT JOIN (?) AS counts ON counts.folder_id = folders.id", live).
		Where("folders.created_by = ?", owner.UserID).
		Order("folders.name").
		Scan(&folders).Error
	if err != nil {
		s.logError(opFolderList, "query_failed", err, zap.String("user_id", owner.UserID))
		return nil, newServiceError(opFolderList, "query_failed", err)
	}
	return folders, nil
}

// resolveDraftFolder picks the folder a draft targets. A new folder name wins over a folder id
// and is created on first use.
func (s *Service) resolveDraftFolder(ctx context.Context, tx *gorm.DB, ownerID string, draft Draft) (*string, error) {
	if draft.NewFolder != "" {
		folder, err := s.getOrCreateFolder(tx, ownerID, draft.NewFolder)
		if err != nil {
			return nil, err
		}
		return &folder.ID, nil
	}
	if draft.FolderID == "" {
		return nil, nil
	}
	var folder Folder
	err := tx.WithContext(ctx).Where("id = ? AND created_by = ?", draft.FolderID, ownerID).Take(&folder).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fieldError("folder", messageInvalidChoice)
	}
	if err != nil {
		return nil, newServiceError(opFolderList, "query_failed", err)
	}
	return &folder.ID, nil
}

func (s *Service) getOrCreateFolder(tx *gorm.DB, ownerID, name string) (*Folder, error) {
	var existing Folder
	err := tx.Where("created_by = ? AND name_key = ?", ownerID, folderNameKey(name)).Take(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, newServiceError(opFolderCreate, "query_failed", err)
	}
	folder, err := s.insertFolder(tx, ownerID, name)
	var verr *ValidationError
	if errors.As(err, &verr) {
		return nil, fieldError("new_folder", verr.Field("name"))
	}
	return folder, err
}

func (s *Service) insertFolder(tx *gorm.DB, ownerID, name string) (*Folder, error) {
	cleaned, key, slug, verr := validateFolderName(name)
	if verr != nil {
		return nil, verr
	}
	if err := s.checkFolderUnique(tx, opFolderCreate, ownerID, key, slug, ""); err != nil {
		return nil, err
	}
	folderID, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opFolderCreate, "id_generation_failed", err)
		return nil, newServiceError(opFolderCreate, "id_generation_failed", err)
	}
	now := s.now()
	folder := &Folder{
		ID:        folderID,
		Name:      cleaned,
		NameKey:   key,
		Slug:      slug,
		CreatedBy: ownerID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err = tx.Create(folder).Error
	if isUniqueViolation(err) {
		return nil, fieldError("name", messageDuplicateFolder)
	}
	if err != nil {
		s.logError(opFolderCreate, "insert_failed", err, zap.String("user_id", ownerID))
		return nil, newServiceError(opFolderCreate, "insert_failed", err)
	}
	return folder, nil
}

// checkFolderUnique is a friendly pre-check; the unique indexes remain the authoritative guard.
func (s *Service) checkFolderUnique(tx *gorm.DB, operation, ownerID, key, slug, excludeID string) error {
	query := tx.Model(&Folder{}).Where("created_by = ?", ownerID)
	if excludeID != "" {
		query = query.Where("id <> ?", excludeID)
	}
	var clashes []Folder
	if err := query.Where("name_key = ? OR slug = ?", key, slug).Find(&clashes).Error; err != nil {
		s.logError(operation, "unique_check_failed", err, zap.String("user_id", ownerID))
		return newServiceError(operation, "unique_check_failed", err)
	}
	for _, clash := range clashes {
		if clash.NameKey == key {
			return fieldError("name", messageDuplicateFolder)
		}
	}
	if len(clashes) > 0 {
		return fieldError("name", messageSimilarFolder)
	}
	return nil
}

func (s *Service) findFolderBySlug(tx *gorm.DB, ownerID, slug string) (*Folder, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, ErrNotFound
	}
	var folder Folder
	err := tx.Where("created_by = ? AND slug = ?", ownerID, slug).Take(&folder).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, newServiceError(opFolderList, "query_failed", err)
	}
	return &folder, nil
}

func validateFolderName(name string) (string, string, string, *ValidationError) {
	cleaned := strings.TrimSpace(name)
	if cleaned == "" {
		return "", "", "", fieldError("name", "This field is required.")
	}
	if utf8.RuneCountInString(cleaned) > maxFolderNameLength {
		return "", "", "", fieldError("name", "Ensure this value has at most 50 characters.")
	}
	slug := slugify(cleaned)
	if slug == "" {
		return "", "", "", fieldError("name", messageFolderSlug)
	}
	return cleaned, folderNameKey(cleaned), slug, nil
}
