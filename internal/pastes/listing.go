package pastes

import (
	"context"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/pastemate/internal/highlight"
	"github.com/MarcoPoloResearchLab/pastemate/internal/hits"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Page is one page of pastes, newest first.
type Page struct {
	Pastes      []Paste
	Number      int
	Size        int
	TotalPages  int
	TotalItems  int64
	HasNext     bool
	HasPrevious bool
}

// Stats summarises an owner's live pastes by exposure.
type Stats struct {
	Total    int64
	Public   int64
	Unlisted int64
	Private  int64
}

// UserListing is the profile page of a user.
type UserListing struct {
	OwnerID   string
	Username  string
	OwnerView bool
	Page      Page
	Stats     *Stats
	Folders   []FolderSummary
	Hits      int64
}

// FolderListing is the content of one folder.
type FolderListing struct {
	Folder Folder
	Page   Page
}

// LanguageUsage counts public pastes per syntax.
type LanguageUsage struct {
	Syntax string
	Name   string
	Used   int64
}

// ListPublicArchive returns the newest public pastes, optionally limited to one syntax.
// The configured archive length caps the limit; a non-positive limit uses the cap.
func (s *Service) ListPublicArchive(ctx context.Context, syntax string, limit int) ([]Paste, error) {
	if limit <= 0 || limit > s.archiveLength {
		limit = s.archiveLength
	}
	query := s.db.WithContext(ctx).
		Scopes(s.liveScope(s.now())).
		Where("exposure = ?", ExposurePublic)
	if syntax = strings.TrimSpace(syntax); syntax != "" {
		query = query.Where("syntax = ?", syntax)
	}

	var pastes []Paste
	if err := query.Order("created DESC").Limit(limit).Find(&pastes).Error; err != nil {
		s.logError(opListArchive, "query_failed", err, zap.String("syntax", syntax))
		return nil, newServiceError(opListArchive, "query_failed", err)
	}
	return pastes, nil
}

// ListUserPastes lists the pastes of username. The owner sees every paste outside folders plus
// dashboard stats unless guest is set; everyone else sees public pastes only.
func (s *Service) ListUserPastes(ctx context.Context, username string, viewer Viewer, guest bool, page int) (UserListing, error) {
	ownerID, found, err := s.directory.UserIDForUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		s.logError(opListUser, "directory_failed", err, zap.String("username", username))
		return UserListing{}, newServiceError(opListUser, "directory_failed", err)
	}
	if !found {
		return UserListing{}, ErrNotFound
	}

	now := s.now()
	ownerView := viewer.Authenticated() && viewer.UserID == ownerID && !guest
	scope := func(db *gorm.DB) *gorm.DB {
		db = s.liveScope(now)(db).Where("author_id = ?", ownerID)
		if ownerView {
			return db.Where("folder_id IS NULL")
		}
		return db.Where("exposure = ?", ExposurePublic)
	}

	result, err := s.paginate(ctx, opListUser, scope, page)
	if err != nil {
		return UserListing{}, err
	}
	listing := UserListing{
		OwnerID:   ownerID,
		Username:  username,
		OwnerView: ownerView,
		Page:      result,
		Hits:      s.countHit(ctx, hits.KindUser, ownerID),
	}
	if !ownerView {
		return listing, nil
	}

	stats, err := s.ownerStats(ctx, ownerID, now)
	if err != nil {
		return UserListing{}, err
	}
	listing.Stats = &stats
	folders, err := s.ListFolders(ctx, viewer)
	if err != nil {
		return UserListing{}, err
	}
	listing.Folders = folders
	return listing, nil
}

// ListFolderPastes lists one folder. Anyone but the folder's owner gets ErrNotFound.
func (s *Service) ListFolderPastes(ctx context.Context, username, slug string, viewer Viewer, page int) (FolderListing, error) {
	if !viewer.Authenticated() {
		return FolderListing{}, ErrNotFound
	}
	ownerID, found, err := s.directory.UserIDForUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		s.logError(opListFolder, "directory_failed", err, zap.String("username", username))
		return FolderListing{}, newServiceError(opListFolder, "directory_failed", err)
	}
	if !found || ownerID != viewer.UserID {
		return FolderListing{}, ErrNotFound
	}
	folder, err := s.findFolderBySlug(s.db.WithContext(ctx), ownerID, slug)
	if err != nil {
		return FolderListing{}, err
	}

	now := s.now()
	result, err := s.paginate(ctx, opListFolder, func(db *gorm.DB) *gorm.DB {
		return s.liveScope(now)(db).Where("folder_id = ?", folder.ID)
	}, page)
	if err != nil {
		return FolderListing{}, err
	}
	return FolderListing{Folder: *folder, Page: result}, nil
}

// SearchOwnPastes matches every word of query against the title or content of the viewer's
// own pastes, ignoring case. Searches never cross users.
func (s *Service) SearchOwnPastes(ctx context.Context, viewer Viewer, query string, page int) (Page, error) {
	terms := strings.Fields(foldForSearch(query))
	if !viewer.Authenticated() || len(terms) == 0 {
		return s.emptyPage(), nil
	}
	now := s.now()
	return s.paginate(ctx, opSearch, func(db *gorm.DB) *gorm.DB {
		db = s.liveScope(now)(db).Where("author_id = ?", viewer.UserID)
		for _, term := range terms {
			pattern := "%" + escapeLike(term) + "%"
			db = db.Where(`search_text LIKE ? ESCAPE '\'`, pattern)
		}
		return db
	}, page)
}

// LanguageStats counts public pastes per highlighted syntax, ordered by tag.
func (s *Service) LanguageStats(ctx context.Context) ([]LanguageUsage, error) {
	var usage []LanguageUsage
	err := s.db.WithContext(ctx).
		Model(&Paste{}).
		Select("syntax, COUNT(*) AS used").
		Scopes(s.liveScope(s.now())).
		Where("exposure = ? AND syntax <> ?", ExposurePublic, highlight.PlainText).
		Group("syntax").
		Order("syntax").
		Scan(&usage).Error
	if err != nil {
		s.logError(opLanguageStats, "query_failed", err)
		return nil, newServiceError(opLanguageStats, "query_failed", err)
	}
	for index := range usage {
		usage[index].Name = highlight.Name(usage[index].Syntax)
	}
	return usage, nil
}

func (s *Service) ownerStats(ctx context.Context, ownerID string, now time.Time) (Stats, error) {
	var rows []struct {
		Exposure Exposure
		Total    int64
	}
	err := s.db.WithContext(ctx).
		Model(&Paste{}).
		Select("exposure, COUNT(*) AS total").
		Scopes(s.liveScope(now)).
		Where("author_id = ?", ownerID).
		Group("exposure").
		Scan(&rows).Error
	if err != nil {
		s.logError(opListUser, "stats_failed", err, zap.String("user_id", ownerID))
		return Stats{}, newServiceError(opListUser, "stats_failed", err)
	}
	var stats Stats
	for _, row := range rows {
		stats.Total += row.Total
		switch row.Exposure {
		case ExposurePublic:
			stats.Public = row.Total
		case ExposureUnlisted:
			stats.Unlisted = row.Total
		case ExposurePrivate:
			stats.Private = row.Total
		}
	}
	return stats, nil
}

// paginate clamps page into range: values below one show the first page and values past the end
// show the last page.
func (s *Service) paginate(ctx context.Context, operation string, scope func(*gorm.DB) *gorm.DB, page int) (Page, error) {
	var total int64
	if err := s.db.WithContext(ctx).Model(&Paste{}).Scopes(scope).Count(&total).Error; err != nil {
		s.logError(operation, "count_failed", err)
		return Page{}, newServiceError(operation, "count_failed", err)
	}

	size := s.pageSize
	totalPages := int((total + int64(size) - 1) / int64(size))
	if totalPages < 1 {
		totalPages = 1
	}
	if page < 1 {
		page = 1
	}
	if page > totalPages {
		page = totalPages
	}

	var pastes []Paste
	err := s.db.WithContext(ctx).
		Scopes(scope).
		Order("created DESC").
		Offset((page - 1) * size).
		Limit(size).
		Find(&pastes).Error
	if err != nil {
		s.logError(operation, "query_failed", err)
		return Page{}, newServiceError(operation, "query_failed", err)
	}

	return Page{
		Pastes:      pastes,
		Number:      page,
		Size:        size,
		TotalPages:  totalPages,
		TotalItems:  total,
		HasNext:     page < totalPages,
		HasPrevious: page > 1,
	}, nil
}

func (s *Service) emptyPage() Page {
	return Page{Pastes: []Paste{}, Number: 1, Size: s.pageSize, TotalPages: 1}
}

func escapeLike(term string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(term)
}
