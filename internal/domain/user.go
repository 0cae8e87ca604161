// Package domain contains the core business entities for Leonidas Directory.
// These are pure Go structs with no external dependencies, representing
// the fundamental concepts of the user-directory service.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Gender is the declared gender of a user.
type Gender int

const (
	// GenderFemale is gender code 0.
	GenderFemale Gender = 0

	// GenderMale is gender code 1.
	GenderMale Gender = 1

	// GenderUnknown is gender code 2.
	GenderUnknown Gender = 2
)

// Valid reports whether g is one of the three defined codes.
func (g Gender) Valid() bool {
	return g >= GenderFemale && g <= GenderUnknown
}

// Label returns the human-readable gender label used in API responses.
func (g Gender) Label() string {
	switch g {
	case GenderFemale:
		return "Female"
	case GenderMale:
		return "Male"
	default:
		return "Unknown"
	}
}

// User statuses reported in the public projection.
const (
	StatusActive  = "Active"
	StatusRevoked = "Revoked"
)

// User represents a directory record.
// A user is either active or revoked (soft-deleted): revoked users stay
// in the store, remain addressable by login, but are excluded from
// active listings and can never authenticate.
type User struct {
	// ID is the unique identifier for the user (auto-generated, immutable).
	ID uuid.UUID `json:"id"`

	// Login is the unique login name. Unique across ALL records,
	// including revoked ones. Constraints: 3-50 alphanumeric characters.
	Login string `json:"login"`

	// Password is stored in clear text and compared verbatim on every
	// call. This mirrors the system being re-implemented and must never
	// be exposed in API responses.
	Password string `json:"-"`

	// Name is the display name (Latin or Cyrillic letters and spaces).
	Name string `json:"name"`

	// Gender is the declared gender (0 female, 1 male, 2 unknown).
	Gender Gender `json:"gender"`

	// Birthday is the optional date of birth, normalized to date precision.
	Birthday *time.Time `json:"birthday,omitempty"`

	// Admin indicates administrative privileges. Set at creation only;
	// never mutable through update operations.
	Admin bool `json:"admin"`

	// CreatedAt is the timestamp when the record was created.
	CreatedAt time.Time `json:"created_at"`

	// CreatedBy is the login of the admin who created the record.
	CreatedBy string `json:"created_by"`

	// ModifiedAt is the timestamp of the last mutation.
	ModifiedAt time.Time `json:"modified_at"`

	// ModifiedBy is the login of the caller who performed the last mutation.
	ModifiedBy string `json:"modified_by"`

	// RevokedAt is set when the user is soft-deleted, nil while active.
	// RevokedAt and RevokedBy are always both set or both absent.
	RevokedAt *time.Time `json:"revoked_at,omitempty"`

	// RevokedBy is the login of the admin who revoked the record.
	RevokedBy *string `json:"revoked_by,omitempty"`
}

// NewUser creates a new active User stamped with the acting admin's login.
// The identifier is auto-generated; now is read once by the caller so all
// stamps on a single mutation agree.
func NewUser(login, password, name string, gender Gender, birthday *time.Time, admin bool, createdBy string, now time.Time) *User {
	return &User{
		ID:         uuid.New(),
		Login:      login,
		Password:   password,
		Name:       name,
		Gender:     gender,
		Birthday:   NormalizeBirthday(birthday),
		Admin:      admin,
		CreatedAt:  now,
		CreatedBy:  createdBy,
		ModifiedAt: now,
		ModifiedBy: createdBy,
	}
}

// IsRevoked reports whether the user is soft-deleted.
func (u *User) IsRevoked() bool {
	return u.RevokedAt != nil
}

// CanAuthenticate reports whether the user is allowed to authenticate.
// Revoked users never authenticate, regardless of credentials.
func (u *User) CanAuthenticate() bool {
	return !u.IsRevoked()
}

// Status returns the public status label for the user.
func (u *User) Status() string {
	if u.IsRevoked() {
		return StatusRevoked
	}
	return StatusActive
}

// Touch re-stamps the modification audit fields.
func (u *User) Touch(by string, now time.Time) {
	u.ModifiedAt = now
	u.ModifiedBy = by
}

// Revoke marks the user as soft-deleted and re-stamps modification fields.
func (u *User) Revoke(by string, now time.Time) {
	at := now
	revoker := by
	u.RevokedAt = &at
	u.RevokedBy = &revoker
	u.Touch(by, now)
}

// Restore clears the revocation markers and re-stamps modification
// fields. Both markers are cleared to absent so the "both set or both
// absent" invariant holds.
func (u *User) Restore(by string, now time.Time) {
	u.RevokedAt = nil
	u.RevokedBy = nil
	u.Touch(by, now)
}

// NormalizeBirthday truncates a birthday to date precision in UTC.
func NormalizeBirthday(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return &d
}

// PublicUser is the outward projection of a User. It carries everything
// the API exposes and never includes the password.
type PublicUser struct {
	ID         uuid.UUID  `json:"id"`
	Login      string     `json:"login"`
	Name       string     `json:"name"`
	Gender     string     `json:"gender"`
	Birthday   *time.Time `json:"birthday,omitempty"`
	Admin      bool       `json:"is_admin"`
	Status     string     `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
	CreatedBy  string     `json:"created_by"`
	ModifiedAt time.Time  `json:"modified_at"`
	ModifiedBy string     `json:"modified_by"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty"`
	RevokedBy  *string    `json:"revoked_by,omitempty"`
}

// Public returns the outward projection of the user.
func (u *User) Public() *PublicUser {
	return &PublicUser{
		ID:         u.ID,
		Login:      u.Login,
		Name:       u.Name,
		Gender:     u.Gender.Label(),
		Birthday:   u.Birthday,
		Admin:      u.Admin,
		Status:     u.Status(),
		CreatedAt:  u.CreatedAt,
		CreatedBy:  u.CreatedBy,
		ModifiedAt: u.ModifiedAt,
		ModifiedBy: u.ModifiedBy,
		RevokedAt:  u.RevokedAt,
		RevokedBy:  u.RevokedBy,
	}
}
