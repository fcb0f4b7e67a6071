package pastes

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/klauspost/compress/zip"
	"go.uber.org/zap"
)

// Backup is a zip archive of one user's pastes.
type Backup struct {
	Filename string
	Data     []byte
	Entries  int
}

// BackupFilename names an archive generated on the date of now.
func (s *Service) BackupFilename() string {
	return fmt.Sprintf("pastemate_backup_%s.zip", s.now().Format("20060102"))
}

// BackupEntryName names the archive member holding paste. The title never contributes a
// directory component, so every member extracts into the archive root.
func BackupEntryName(paste *Paste) string {
	if paste.Title == DefaultTitle {
		return paste.ID + ".txt"
	}
	return flattenEntryTitle(paste.Title) + "-" + paste.ID + ".txt"
}

func flattenEntryTitle(title string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == '\\' || r == ':':
			return '_'
		case unicode.IsControl(r):
			return '_'
		default:
			return r
		}
	}, title)
}

// BuildBackup writes every active paste authored by viewer into a zip archive.
func (s *Service) BuildBackup(ctx context.Context, viewer Viewer) (Backup, error) {
	if !viewer.Authenticated() {
		return Backup{}, ErrNotFound
	}

	var pastes []Paste
	err := s.db.WithContext(ctx).
		Where("author_id = ? AND is_active = ?", viewer.UserID, true).
		Order("created DESC").
		Find(&pastes).Error
	if err != nil {
		s.logError(opBackup, "query_failed", err, zap.String("user_id", viewer.UserID))
		return Backup{}, newServiceError(opBackup, "query_failed", err)
	}

	var buffer bytes.Buffer
	archive := zip.NewWriter(&buffer)
	for index := range pastes {
		paste := &pastes[index]
		header := &zip.FileHeader{
			Name:     BackupEntryName(paste),
			Method:   zip.Deflate,
			Modified: paste.CreatedAt,
		}
		entry, err := archive.CreateHeader(header)
		if err != nil {
			s.logError(opBackup, "entry_failed", err, zap.String("paste_id", paste.ID))
			return Backup{}, newServiceError(opBackup, "entry_failed", err)
		}
		if _, err := entry.Write([]byte(paste.Content)); err != nil {
			s.logError(opBackup, "write_failed", err, zap.String("paste_id", paste.ID))
			return Backup{}, newServiceError(opBackup, "write_failed", err)
		}
	}
	if err := archive.Close(); err != nil {
		s.logError(opBackup, "close_failed", err)
		return Backup{}, newServiceError(opBackup, "close_failed", err)
	}

	return Backup{Filename: s.BackupFilename(), Data: buffer.Bytes(), Entries: len(pastes)}, nil
}
