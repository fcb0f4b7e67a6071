package pastes

import "strings"

// Viewer identifies who is acting on a paste. The zero value is an anonymous visitor.
type Viewer struct {
	UserID   string
	Username string
	Staff    bool
}

// Anonymous returns the viewer used for unauthenticated requests.
func Anonymous() Viewer {
	return Viewer{}
}

// Authenticated reports whether the viewer is signed in.
func (v Viewer) Authenticated() bool {
	return strings.TrimSpace(v.UserID) != ""
}
