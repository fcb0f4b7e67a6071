package pastes

import "time"

// IsPrivate reports whether only the author may see the paste.
func IsPrivate(paste *Paste) bool {
	return paste.Exposure == ExposurePrivate
}

// IsAuthor reports whether viewer owns the paste. Anonymous viewers never do.
func IsAuthor(paste *Paste, viewer Viewer) bool {
	if !viewer.Authenticated() || paste.AuthorID == nil {
		return false
	}
	return *paste.AuthorID == viewer.UserID
}

// IsNormallyAccessible reports whether the content can be served without a password or burn step.
func IsNormallyAccessible(paste *Paste) bool {
	return !paste.HasPassword() && !paste.BurnAfterRead
}

// CanView decides access to the detail view.
func CanView(paste *Paste, viewer Viewer) bool {
	return !IsPrivate(paste) || IsAuthor(paste, viewer)
}

// CanAccessContent decides raw, download, clone, embed and print access.
func CanAccessContent(paste *Paste, viewer Viewer) bool {
	return CanView(paste, viewer) && IsNormallyAccessible(paste)
}

// CanReport decides whether viewer may file a report. Authors never report their own pastes.
func CanReport(paste *Paste, viewer Viewer) bool {
	return !IsPrivate(paste) && IsNormallyAccessible(paste) && !IsAuthor(paste, viewer)
}

// CanEmbed reports whether the paste satisfies the embeddable image rules.
func CanEmbed(paste *Paste) bool {
	return !IsPrivate(paste) &&
		IsNormallyAccessible(paste) &&
		paste.LongestLineLength() <= maxEmbedLineLength &&
		paste.LineCount() <= maxEmbedLines
}

func isLive(paste *Paste, now time.Time) bool {
	if !paste.IsActive {
		return false
	}
	return paste.ExpirationDate == nil || paste.ExpirationDate.After(now)
}

func requireView(paste *Paste, viewer Viewer) error {
	if !CanView(paste, viewer) {
		return ErrNotFound
	}
	return nil
}

func requireContentAccess(paste *Paste, viewer Viewer) error {
	if !CanAccessContent(paste, viewer) {
		return ErrNotFound
	}
	return nil
}

func requireReportable(paste *Paste, viewer Viewer) error {
	if !CanReport(paste, viewer) {
		return ErrNotFound
	}
	return nil
}

func requireAuthor(paste *Paste, viewer Viewer) error {
	if !IsAuthor(paste, viewer) {
		return ErrNotFound
	}
	return nil
}
