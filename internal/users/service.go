package users

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/MarcoPoloResearchLab/pastemate/internal/auth"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrInvalidIdentity indicates the claims did not contain a usable identifier.
	ErrInvalidIdentity = errors.New("users: invalid identity")
	// ErrUsernameTaken indicates another user already holds the requested username.
	ErrUsernameTaken = errors.New("users: username taken")
)

// ServiceConfig describes the dependencies required for user resolution.
type ServiceConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Service keeps the users table in step with session claims and resolves public usernames.
type Service struct {
	db     *gorm.DB
	now    func() time.Time
	logger *zap.Logger
	cache  sync.Map
}

// NewService constructs the user service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("users: database connection required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		db:     cfg.Database,
		now:    clock,
		logger: logger,
		cache:  sync.Map{},
	}, nil
}

// maxUsernameAttempts bounds the numeric suffixes tried when a derived username is held by someone else.
const maxUsernameAttempts = 50

type cachedUser struct {
	user    User
	derived string
}

// ResolveUser returns the stored user for the session claims, creating it on first sight
// and refreshing profile fields when they change. A derived username that another account
// already holds gets the first free numeric suffix ("alice-2", "alice-3", ...).
func (s *Service) ResolveUser(ctx context.Context, claims auth.SessionClaims) (User, error) {
	userID := normalize(claims.UserID)
	if userID == "" {
		return User{}, ErrInvalidIdentity
	}
	derived := deriveUsername(claims)
	staff := claims.IsStaff()

	if cached, ok := s.cache.Load(userID); ok {
		if entry, ok := cached.(cachedUser); ok && entry.derived == derived && entry.user.Staff == staff {
			return entry.user, nil
		}
	}

	var user User
	err := s.db.WithContext(ctx).Where("id = ?", userID).Take(&user).Error
	now := s.now().UTC()
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		user, err = s.createUser(ctx, User{
			ID:          userID,
			Email:       normalize(claims.UserEmail),
			DisplayName: normalize(claims.UserDisplayName),
			Staff:       staff,
			LastSeenAt:  now,
			CreatedAt:   now,
			UpdatedAt:   now,
		}, derived)
		if err != nil {
			return User{}, err
		}
	case err != nil:
		return User{}, err
	default:
		updates := map[string]interface{}{"last_seen_at": now}
		if !usernameDerivedFrom(user.Username, derived) {
			username, err := s.availableUsername(ctx, derived, userID)
			switch {
			case errors.Is(err, ErrUsernameTaken):
				s.logger.Warn("username refresh skipped", zap.String("user_id", userID), zap.String("username", derived))
			case err != nil:
				return User{}, err
			default:
				updates["username"] = username
			}
		}
		if email := normalize(claims.UserEmail); email != "" && email != user.Email {
			updates["email"] = email
		}
		if display := normalize(claims.UserDisplayName); display != "" && display != user.DisplayName {
			updates["display_name"] = display
		}
		if staff != user.Staff {
			updates["is_staff"] = staff
		}
		if len(updates) > 1 {
			updates["modified"] = now
		}
		if err := s.db.WithContext(ctx).Model(&User{}).Where("id = ?", userID).Updates(updates).Error; err != nil {
			s.logger.Warn("user refresh failed", zap.String("user_id", userID), zap.Error(err))
		} else {
			if err := s.db.WithContext(ctx).Where("id = ?", userID).Take(&user).Error; err != nil {
				return User{}, err
			}
		}
	}

	s.cache.Store(userID, cachedUser{user: user, derived: derived})
	return user, nil
}

// createUser inserts the user under the first free variant of the derived username.
// A concurrent insert that wins the same name sends it on to the next candidate.
func (s *Service) createUser(ctx context.Context, user User, derived string) (User, error) {
	for attempt := 1; attempt <= maxUsernameAttempts; attempt++ {
		username, err := s.availableUsername(ctx, derived, user.ID)
		if err != nil {
			return User{}, err
		}
		user.Username = username
		err = s.db.WithContext(ctx).Create(&user).Error
		if err == nil {
			return user, nil
		}
		if !isUniqueViolation(err) {
			return User{}, err
		}
		var existing User
		if lookupErr := s.db.WithContext(ctx).Where("id = ?", user.ID).Take(&existing).Error; lookupErr == nil {
			return existing, nil
		}
	}
	return User{}, ErrUsernameTaken
}

// availableUsername returns the first candidate for base that no other user holds.
func (s *Service) availableUsername(ctx context.Context, base, selfID string) (string, error) {
	for attempt := 1; attempt <= maxUsernameAttempts; attempt++ {
		candidate := usernameCandidate(base, attempt)
		var count int64
		err := s.db.WithContext(ctx).Model(&User{}).
			Where("username = ? AND id <> ?", candidate, selfID).
			Count(&count).Error
		if err != nil {
			return "", err
		}
		if count == 0 {
			return candidate, nil
		}
	}
	return "", ErrUsernameTaken
}

func usernameCandidate(base string, attempt int) string {
	if attempt <= 1 {
		return base
	}
	return base + "-" + strconv.Itoa(attempt)
}

// usernameDerivedFrom reports whether username is base or one of its numeric variants.
func usernameDerivedFrom(username, base string) bool {
	if username == base {
		return true
	}
	suffix, found := strings.CutPrefix(username, base+"-")
	if !found || suffix == "" {
		return false
	}
	number, err := strconv.Atoi(suffix)
	return err == nil && number >= 2 && strconv.Itoa(number) == suffix
}

// UserIDForUsername maps a public username onto the stored user id.
func (s *Service) UserIDForUsername(ctx context.Context, username string) (string, bool, error) {
	username = normalize(username)
	if username == "" {
		return "", false, nil
	}
	var user User
	err := s.db.WithContext(ctx).Select("id").Where("username = ?", username).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return user.ID, true, nil
}

// deriveUsername prefers the explicit claim, then the email local part, then the user id.
func deriveUsername(claims auth.SessionClaims) string {
	if username := normalize(claims.Username); username != "" {
		return username
	}
	if email := normalize(claims.UserEmail); email != "" {
		if local, _, found := strings.Cut(email, "@"); found && local != "" {
			return local
		}
	}
	return normalize(claims.UserID)
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	message := strings.ToLower(err.Error())
	return strings.Contains(message, "unique constraint") || strings.Contains(message, "duplicate key")
}
