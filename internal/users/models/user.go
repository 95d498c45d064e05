package models

import (
	"time"

	id "rolegate/pkg/domain"
	dErrors "rolegate/pkg/domain-errors"
)

// Timestamps is shared by persisted records.
type Timestamps struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Touch sets UpdatedAt, and CreatedAt when unset.
func (t *Timestamps) Touch(now time.Time) {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
}

// User is the identity an access token resolves to.
//
// Invariants:
//   - Email and Username are unique across users
//   - Role is one of the roles enabled for the deployment
//   - An active user or a superuser cannot be deleted (see CanDelete)
type User struct {
	ID             id.UserID `json:"id"`
	Email          string    `json:"email"`
	Username       string    `json:"username"`
	Role           id.Role   `json:"role"`
	FullName       *string   `json:"full_name"`
	Age            *int16    `json:"age"`
	Phone          *string   `json:"phone"`
	Avatar         *string   `json:"avatar"`
	IsActive       bool      `json:"is_active"`
	IsSuperuser    bool      `json:"is_superuser"`
	HashedPassword string    `json:"-"`
	Timestamps
}

// CanDelete checks the deletion guards. Active users and superusers are protected.
func (u *User) CanDelete() error {
	if u.IsActive {
		return dErrors.New(dErrors.CodeActiveUserProtected, "Active user cannot be removed")
	}
	if u.IsSuperuser {
		return dErrors.New(dErrors.CodeSuperuserProtected, "Superuser cannot be removed")
	}
	return nil
}

// Clone returns a deep copy so callers cannot mutate stored records.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	c.FullName = clonePtr(u.FullName)
	c.Age = clonePtr(u.Age)
	c.Phone = clonePtr(u.Phone)
	c.Avatar = clonePtr(u.Avatar)
	return &c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
