package pastes

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

const maxSlugLength = 50

// slugify folds name into lowercase ASCII words joined by hyphens.
func slugify(name string) string {
	decomposed := norm.NFKD.String(name)
	var builder strings.Builder
	pendingHyphen := false
	for _, r := range decomposed {
		switch {
		case unicode.Is(unicode.Mn, r):
			continue
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'):
			if pendingHyphen && builder.Len() > 0 {
				builder.WriteByte('-')
			}
			pendingHyphen = false
			builder.WriteRune(unicode.ToLower(r))
		case unicode.IsSpace(r) || r == '-':
			pendingHyphen = true
		}
	}
	slug := builder.String()
	if len(slug) > maxSlugLength {
		slug = strings.TrimRight(slug[:maxSlugLength], "-")
	}
	return slug
}

// folderNameKey is the case-insensitive identity of a folder name.
func folderNameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
