package pastes

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/pastemate/internal/blobstore"
	"github.com/MarcoPoloResearchLab/pastemate/internal/highlight"
	"github.com/MarcoPoloResearchLab/pastemate/internal/hits"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	opServiceNew      = "pastes.service.new"
	opCreatePaste     = "pastes.create"
	opUpdatePaste     = "pastes.update"
	opDeletePaste     = "pastes.delete"
	opLoadPaste       = "pastes.load"
	opBurnPaste       = "pastes.burn"
	opVerifyPassword  = "pastes.verify_password"
	opListArchive     = "pastes.list_archive"
	opListUser        = "pastes.list_user"
	opListFolder      = "pastes.list_folder"
	opSearch          = "pastes.search"
	opLanguageStats   = "pastes.language_stats"
	opFolderCreate    = "pastes.folder_create"
	opFolderRename    = "pastes.folder_rename"
	opFolderDelete    = "pastes.folder_delete"
	opFolderList      = "pastes.folder_list"
	opReportPaste     = "pastes.report"
	opModerate        = "pastes.moderate"
	opBackup          = "pastes.backup"
	opSweep           = "pastes.sweep"
	opRegenerateEmbed = "pastes.regenerate_embeds"
	opEmbedImage      = "pastes.embed_image"

	defaultArchiveLength   = 50
	defaultPageSize        = 20
	defaultMaxContentBytes = 512 * 1024
)

var noOpLogger = zap.NewNop()

// Renderer renders paste content in a highlight mode.
type Renderer interface {
	Render(content, tag string, mode highlight.Mode) (highlight.Output, error)
}

// UserDirectory resolves public usernames into stored author identifiers.
type UserDirectory interface {
	UserIDForUsername(ctx context.Context, username string) (string, bool, error)
}

// ServiceConfig describes the collaborators of the paste service.
type ServiceConfig struct {
	Database        *gorm.DB
	Clock           func() time.Time
	IDProvider      IDProvider
	Highlighter     Renderer
	Blobs           blobstore.Store
	Directory       UserDirectory
	Hits            hits.Counter
	Logger          *zap.Logger
	Password        PasswordParams
	ArchiveLength   int
	PageSize        int
	MaxContentBytes int
}

// Service implements the paste lifecycle: saving, access control, listings and maintenance jobs.
type Service struct {
	db              *gorm.DB
	clock           func() time.Time
	idProvider      IDProvider
	highlighter     Renderer
	blobs           blobstore.Store
	directory       UserDirectory
	hits            hits.Counter
	logger          *zap.Logger
	password        PasswordParams
	archiveLength   int
	pageSize        int
	maxContentBytes int
}

func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, "missing_database", errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, newServiceError(opServiceNew, "missing_id_provider", errMissingIDProvider)
	}
	if cfg.Highlighter == nil {
		return nil, newServiceError(opServiceNew, "missing_highlighter", errMissingHighlighter)
	}
	if cfg.Blobs == nil {
		return nil, newServiceError(opServiceNew, "missing_blob_store", errMissingBlobStore)
	}
	if cfg.Directory == nil {
		return nil, newServiceError(opServiceNew, "missing_directory", errMissingDirectory)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	counter := cfg.Hits
	if counter == nil {
		counter = hits.Noop{}
	}
	password := cfg.Password
	if password.Time == 0 || password.Memory == 0 || password.Threads == 0 || password.KeyLen == 0 || password.SaltLen == 0 {
		password = DefaultPasswordParams
	}
	archiveLength := cfg.ArchiveLength
	if archiveLength <= 0 {
		archiveLength = defaultArchiveLength
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	maxContentBytes := cfg.MaxContentBytes
	if maxContentBytes <= 0 {
		maxContentBytes = defaultMaxContentBytes
	}

	return &Service{
		db:              cfg.Database,
		clock:           clock,
		idProvider:      cfg.IDProvider,
		highlighter:     cfg.Highlighter,
		blobs:           cfg.Blobs,
		directory:       cfg.Directory,
		hits:            counter,
		logger:          logger,
		password:        password,
		archiveLength:   archiveLength,
		pageSize:        pageSize,
		maxContentBytes: maxContentBytes,
	}, nil
}

func (s *Service) now() time.Time {
	return s.clock().UTC()
}

// liveScope restricts a query to active pastes that have not yet expired.
func (s *Service) liveScope(now time.Time) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.
			Where("is_active = ?", true).
			Where("(expiration_date IS NULL OR expiration_date > ?)", now)
	}
}

// loadLive fetches a paste that normal reads may see. Missing, inactive and expired pastes
// all come back as ErrNotFound.
func (s *Service) loadLive(ctx context.Context, db *gorm.DB, id string) (*Paste, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrNotFound
	}
	var paste Paste
	err := db.WithContext(ctx).Where("id = ?", id).Take(&paste).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		s.logError(opLoadPaste, "query_failed", err, zap.String("paste_id", id))
		return nil, newServiceError(opLoadPaste, "query_failed", err)
	}
	if !isLive(&paste, s.now()) {
		return nil, ErrNotFound
	}
	return &paste, nil
}

func (s *Service) removeBlob(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := s.blobs.Delete(ctx, key); err != nil {
		s.loggerOrDefault().Warn("embeddable image removal failed", zap.String("key", key), zap.Error(err))
	}
}

// discardArtifacts drops the stored image and view counter of a paste that no longer exists.
func (s *Service) discardArtifacts(ctx context.Context, pasteID, imageKey string) {
	s.removeBlob(ctx, imageKey)
	if err := s.hits.Forget(ctx, hits.KindPaste, pasteID); err != nil {
		s.loggerOrDefault().Warn("hit counter cleanup failed", zap.String("paste_id", pasteID), zap.Error(err))
	}
}

func (s *Service) countHit(ctx context.Context, kind, id string) int64 {
	count, err := s.hits.Hit(ctx, kind, id)
	if err != nil {
		s.loggerOrDefault().Warn("hit counter unavailable", zap.String("kind", kind), zap.Error(err))
		return 0
	}
	return count
}

func (s *Service) loggerOrDefault() *zap.Logger {
	if s == nil {
		return noOpLogger
	}
	if s.logger == nil {
		return noOpLogger
	}
	return s.logger
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.loggerOrDefault().Error("pastes service error", attrs...)
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	message := strings.ToLower(err.Error())
	return strings.Contains(message, "unique constraint") || strings.Contains(message, "duplicate key")
}
