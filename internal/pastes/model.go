package pastes

import (
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/cases"
)

// Exposure controls where a paste is listed and who may open it.
type Exposure string

const (
	ExposurePublic   Exposure = "PU"
	ExposureUnlisted Exposure = "UN"
	ExposurePrivate  Exposure = "PR"
)

// Label returns the human readable exposure name.
func (e Exposure) Label() string {
	switch e {
	case ExposurePublic:
		return "Public"
	case ExposureUnlisted:
		return "Unlisted"
	case ExposurePrivate:
		return "Private"
	default:
		return string(e)
	}
}

const (
	// DefaultTitle is assigned to pastes saved without a title.
	DefaultTitle = "Untitled"

	maxEmbedLineLength = 111
	maxEmbedLines      = 100
)

// Paste is the stored snippet. ContentHTML, Filesize, EmbeddableImage and ExpirationDate are
// derived on every save and never accepted as input.
type Paste struct {
	ID              string     `gorm:"column:id;primaryKey;size:36"`
	AuthorID        *string    `gorm:"column:author_id;size:190;index"`
	FolderID        *string    `gorm:"column:folder_id;size:36;index"`
	Title           string     `gorm:"column:title;size:50;not null"`
	Content         string     `gorm:"column:content;type:text;not null"`
	ContentHTML     string     `gorm:"column:content_html;type:text;not null"`
	Syntax          string     `gorm:"column:syntax;size:50;not null;index"`
	Exposure        Exposure   `gorm:"column:exposure;size:2;not null;index"`
	ExpirationDate  *time.Time `gorm:"column:expiration_date;index"`
	Password        string     `gorm:"column:password;size:128;not null"`
	BurnAfterRead   bool       `gorm:"column:burn_after_read;not null"`
	Filesize        int        `gorm:"column:filesize;not null"`
	EmbeddableImage string     `gorm:"column:embeddable_image;size:100;not null"`
	IsActive        bool       `gorm:"column:is_active;not null;index"`
	SearchText      string     `gorm:"column:search_text;type:text;not null;default:''"`
	CreatedAt       time.Time  `gorm:"column:created;not null;index"`
	UpdatedAt       time.Time  `gorm:"column:modified;not null"`
}

// TableName exposes the table backing pastes.
func (Paste) TableName() string {
	return "pastes"
}

// SearchTextFor case-folds title and content into the form owner search matches against.
// Folding happens here rather than in SQL so every database compares the same runes.
func SearchTextFor(title, content string) string {
	return foldForSearch(title + "\n" + content)
}

func foldForSearch(value string) string {
	return cases.Fold().String(value)
}

// HasPassword reports whether the paste is password protected.
func (p *Paste) HasPassword() bool {
	return p.Password != ""
}

// LongestLineLength counts characters, not bytes, of the widest line.
func (p *Paste) LongestLineLength() int {
	longest := 0
	for _, line := range strings.Split(p.Content, "\n") {
		if width := utf8.RuneCountInString(line); width > longest {
			longest = width
		}
	}
	return longest
}

// LineCount returns the number of newline separated lines.
func (p *Paste) LineCount() int {
	return strings.Count(p.Content, "\n") + 1
}

// Folder groups pastes for one owner.
type Folder struct {
	ID        string    `gorm:"column:id;primaryKey;size:36"`
	Name      string    `gorm:"column:name;size:50;not null"`
	NameKey   string    `gorm:"column:name_key;size:50;not null;uniqueIndex:idx_folders_owner_name,priority:2"`
	Slug      string    `gorm:"column:slug;size:50;not null;uniqueIndex:idx_folders_owner_slug,priority:2"`
	CreatedBy string    `gorm:"column:created_by;size:190;not null;uniqueIndex:idx_folders_owner_name,priority:1;uniqueIndex:idx_folders_owner_slug,priority:1"`
	CreatedAt time.Time `gorm:"column:created;not null"`
	UpdatedAt time.Time `gorm:"column:modified;not null"`
}

// TableName exposes the table backing folders.
func (Folder) TableName() string {
	return "folders"
}

// Report is an anonymous complaint about a paste awaiting moderation.
type Report struct {
	ID           uint       `gorm:"column:id;primaryKey;autoIncrement"`
	PasteID      string     `gorm:"column:paste_id;size:36;not null;index"`
	Reason       string     `gorm:"column:reason;type:text;not null"`
	ReporterName string     `gorm:"column:reporter_name;size:100;not null"`
	Moderated    bool       `gorm:"column:moderated;not null;index"`
	ModeratedBy  *string    `gorm:"column:moderated_by;size:190"`
	ModeratedAt  *time.Time `gorm:"column:moderated_at"`
	CreatedAt    time.Time  `gorm:"column:created;not null"`
	UpdatedAt    time.Time  `gorm:"column:modified;not null"`
}

// TableName exposes the table backing reports.
func (Report) TableName() string {
	return "paste_reports"
}

// Models lists every persisted type for schema migration.
func Models() []interface{} {
	return []interface{}{&Paste{}, &Folder{}, &Report{}}
}
