/*
Package roster manages the department's personnel records: registration,
authentication, profile changes, and role administration.

PURPOSE:
  Everything about a user that is NOT timekeeping lives here. The duty
  engine owns shifts and aggregates; roster owns identity, credentials,
  and titles. Position drives the hourly pay rate via the duty pay table.

SECURITY:
  Passwords are stored as bcrypt hashes only. Authentication failures are
  reported with a single ErrInvalidCredentials regardless of whether the
  username or the password was wrong.
*/
package roster

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/lssd/dutyclock/duty"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrUsernameTaken is returned when registering a login name that exists.
	ErrUsernameTaken = errors.New("username already taken")

	// ErrDisplayNameTaken is returned when renaming to a display name
	// another user already holds (case-insensitive).
	ErrDisplayNameTaken = errors.New("display name already taken")

	// ErrInvalidCredentials is returned on any authentication failure.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrMissingField is returned when a required registration field is empty.
	ErrMissingField = errors.New("missing required field")
)

// =============================================================================
// SERVICE
// =============================================================================

// Service performs personnel operations against the repository.
type Service struct {
	repo duty.Repository
}

func NewService(repo duty.Repository) *Service {
	return &Service{repo: repo}
}

// RegisterInput is the admin-supplied record for a new roster member.
type RegisterInput struct {
	Username    string
	Password    string
	DisplayName string
	Position    string
	Rank        string
	Role        duty.Role
}

// Register creates a roster member. The position determines the pay rate;
// unknown positions fall back to the default rate. A default avatar URL is
// derived from the display name.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*duty.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.DisplayName = strings.TrimSpace(in.DisplayName)
	in.Position = strings.TrimSpace(in.Position)

	if in.Username == "" || in.Password == "" || in.DisplayName == "" || in.Position == "" {
		return nil, ErrMissingField
	}

	if _, err := s.repo.GetUserByUsername(ctx, in.Username); err == nil {
		return nil, ErrUsernameTaken
	} else if !errors.Is(err, duty.ErrUserNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	role := in.Role
	if role == "" {
		role = duty.RoleUser
	}

	u := &duty.User{
		ID:           uuid.NewString(),
		Username:     in.Username,
		PasswordHash: string(hash),
		Role:         role,
		DisplayName:  in.DisplayName,
		Position:     in.Position,
		Rank:         strings.TrimSpace(in.Rank),
		Avatar:       DefaultAvatarURL(in.DisplayName),
		SalaryRate:   duty.RateFor(in.Position),
	}

	if err := s.repo.CreateUser(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Authenticate checks a username/password pair and returns the user.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*duty.User, error) {
	u, err := s.repo.GetUserByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, duty.ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// ChangePassword replaces the user's password.
func (s *Service) ChangePassword(ctx context.Context, userID, newPassword string) error {
	if newPassword == "" {
		return ErrMissingField
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	return s.update(ctx, userID, func(u *duty.User) error {
		u.PasswordHash = string(hash)
		return nil
	})
}

// Rename changes the user's display name, enforcing case-insensitive
// uniqueness across the roster. Users on a default avatar get a fresh one
// derived from the new name.
func (s *Service) Rename(ctx context.Context, userID, displayName string) error {
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return ErrMissingField
	}

	others, err := s.repo.ListUsers(ctx)
	if err != nil {
		return err
	}
	for _, o := range others {
		if o.ID != userID && strings.EqualFold(o.DisplayName, displayName) {
			return ErrDisplayNameTaken
		}
	}

	return s.update(ctx, userID, func(u *duty.User) error {
		u.DisplayName = displayName
		if IsDefaultAvatar(u.Avatar) {
			u.Avatar = DefaultAvatarURL(displayName)
		}
		return nil
	})
}

// SetRole promotes or demotes a user.
func (s *Service) SetRole(ctx context.Context, userID string, role duty.Role) error {
	if role != duty.RoleUser && role != duty.RoleAdmin {
		return fmt.Errorf("unknown role %q", role)
	}
	return s.update(ctx, userID, func(u *duty.User) error {
		u.Role = role
		return nil
	})
}

// SetPosition changes a user's position and re-derives their pay rate from
// the pay table. Existing closed shifts keep the salary accrued at the old
// rate.
func (s *Service) SetPosition(ctx context.Context, userID, position, rank string) error {
	position = strings.TrimSpace(position)
	if position == "" {
		return ErrMissingField
	}
	return s.update(ctx, userID, func(u *duty.User) error {
		u.Position = position
		u.Rank = strings.TrimSpace(rank)
		u.SalaryRate = duty.RateFor(position)
		return nil
	})
}

// Delete removes a user from the roster entirely.
func (s *Service) Delete(ctx context.Context, userID string) error {
	return s.repo.DeleteUser(ctx, userID)
}

func (s *Service) update(ctx context.Context, userID string, fn func(*duty.User) error) error {
	for attempt := 0; attempt < 3; attempt++ {
		u, err := s.repo.GetUser(ctx, userID)
		if err != nil {
			return err
		}
		if err := fn(u); err != nil {
			return err
		}
		err = s.repo.UpdateUser(ctx, u)
		if duty.IsRetryable(err) {
			continue
		}
		return err
	}
	return duty.ErrConcurrentModification
}

// =============================================================================
// AVATARS
// =============================================================================

const avatarService = "https://ui-avatars.com/api/"

// DefaultAvatarURL builds a generated-avatar URL from a display name.
func DefaultAvatarURL(displayName string) string {
	return avatarService + "?name=" + url.QueryEscape(displayName) + "&background=random&bold=true"
}

// IsDefaultAvatar reports whether the avatar is service-generated rather
// than user-uploaded.
func IsDefaultAvatar(avatar string) bool {
	return avatar == "" || strings.Contains(avatar, "ui-avatars.com")
}
