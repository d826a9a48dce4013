/*
repository.go - Persistence interface for the roster

PURPOSE:
  Defines the interface between the engine and storage. The original system
  this replaces rewrote one flat document wholesale on every mutation with
  no concurrency control; the repository keeps the whole-record-per-user
  semantics but closes the lost-update race with optimistic versioning.

CONTRACT:
  - Reads hand out deep copies; callers mutate freely, then save.
  - UpdateUser succeeds only if the stored Version still matches the one
    the caller read. On success the stored version is bumped and the
    caller's copy is updated to match. On mismatch it fails with
    ErrConcurrentModification, and the caller replays its read-modify-write.

IMPLEMENTATIONS:
  - store/memory:  In-memory map, for tests and development
  - store/sqlite:  SQLite, one row per user with a version column
*/
package duty

import "context"

// Repository persists users with whole-record update semantics.
type Repository interface {
	// GetUser returns the user by id, or ErrUserNotFound.
	GetUser(ctx context.Context, id string) (*User, error)

	// GetUserByUsername returns the user by login name, or ErrUserNotFound.
	GetUserByUsername(ctx context.Context, username string) (*User, error)

	// ListUsers returns all users, ordered by username.
	ListUsers(ctx context.Context) ([]*User, error)

	// CreateUser inserts a new user. The implementation assigns Version 1.
	CreateUser(ctx context.Context, u *User) error

	// UpdateUser rewrites the whole user record if u.Version matches the
	// stored version, then increments both. Returns
	// ErrConcurrentModification on a version conflict and ErrUserNotFound
	// if the record is gone.
	UpdateUser(ctx context.Context, u *User) error

	// DeleteUser removes the user, or returns ErrUserNotFound.
	DeleteUser(ctx context.Context, id string) error
}

// updateRetries bounds optimistic-conflict replays for engine operations.
const updateRetries = 3

// withUser runs a read-modify-write against one user, replaying on version
// conflicts. fn returns false to signal that no save is needed.
func withUser(ctx context.Context, repo Repository, id string, fn func(*User) (bool, error)) (*User, error) {
	var lastErr error
	for attempt := 0; attempt < updateRetries; attempt++ {
		u, err := repo.GetUser(ctx, id)
		if err != nil {
			return nil, err
		}

		dirty, err := fn(u)
		if err != nil {
			return nil, err
		}
		if !dirty {
			return u, nil
		}

		if err := repo.UpdateUser(ctx, u); err != nil {
			if IsRetryable(err) {
				lastErr = err
				continue
			}
			return nil, err
		}
		return u, nil
	}
	return nil, lastErr
}
