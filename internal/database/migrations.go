package database

import (
	"errors"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/pastemate/internal/pastes"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	migrationBackfillFolderNameKeys = "2022-07-01_backfill_folder_name_keys"
	migrationBackfillPasteFilesize  = "2022-07-01_backfill_paste_filesize"
	migrationBackfillSearchText     = "2022-08-01_backfill_paste_search_text"

	searchTextBatchSize = 200
)

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationBackfillFolderNameKeys, apply: backfillFolderNameKeys},
		{name: migrationBackfillPasteFilesize, apply: backfillPasteFilesize},
		{name: migrationBackfillSearchText, apply: backfillPasteSearchText},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := db.Transaction(migration.apply); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// backfillFolderNameKeys fills the case-insensitive key for folders created before it existed.
func backfillFolderNameKeys(db *gorm.DB) error {
	var folders []pastes.Folder
	if err := db.Where("name_key = ?", "").Find(&folders).Error; err != nil {
		return err
	}
	for _, folder := range folders {
		key := strings.ToLower(strings.TrimSpace(folder.Name))
		if err := db.Model(&pastes.Folder{}).Where("id = ?", folder.ID).Update("name_key", key).Error; err != nil {
			return err
		}
	}
	return nil
}

// backfillPasteFilesize stores the UTF-8 byte length of content for pastes saved without one.
func backfillPasteFilesize(db *gorm.DB) error {
	return db.Model(&pastes.Paste{}).
		Where("filesize = ? AND content <> ?", 0, "").
		Update("filesize", gorm.Expr(byteLengthExpression(db.Dialector.Name()))).Error
}

// backfillPasteSearchText folds title and content of pastes stored before owner search used it.
func backfillPasteSearchText(db *gorm.DB) error {
	var batch []pastes.Paste
	return db.Select("id", "title", "content").
		Where("search_text = ?", "").
		FindInBatches(&batch, searchTextBatchSize, func(_ *gorm.DB, _ int) error {
			for _, paste := range batch {
				folded := pastes.SearchTextFor(paste.Title, paste.Content)
				if err := db.Model(&pastes.Paste{}).Where("id = ?", paste.ID).Update("search_text", folded).Error; err != nil {
					return err
				}
			}
			return nil
		}).Error
}

// byteLengthExpression counts bytes rather than characters of the content column.
func byteLengthExpression(dialect string) string {
	if dialect == "postgres" {
		return "OCTET_LENGTH(content)"
	}
	return "LENGTH(CAST(content AS BLOB))"
}
