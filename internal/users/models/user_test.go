package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "rolegate/pkg/domain-errors"
)

func TestUser_CanDelete(t *testing.T) {
	assert.True(t, dErrors.HasCode((&User{IsActive: true}).CanDelete(), dErrors.CodeActiveUserProtected))
	assert.True(t, dErrors.HasCode((&User{IsSuperuser: true}).CanDelete(), dErrors.CodeSuperuserProtected))
	assert.True(t, dErrors.HasCode((&User{IsActive: true, IsSuperuser: true}).CanDelete(), dErrors.CodeActiveUserProtected))
	assert.NoError(t, (&User{}).CanDelete())
}

func TestUser_CloneIsDeep(t *testing.T) {
	phone := "555"
	u := &User{ID: 1, Phone: &phone}
	c := u.Clone()
	*c.Phone = "999"
	assert.Equal(t, "555", *u.Phone)
	assert.Nil(t, (*User)(nil).Clone())
}

func TestUser_JSONOmitsHash(t *testing.T) {
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	u := &User{ID: 3, Email: "a@b.co", HashedPassword: "secret-hash"}
	u.Touch(now)

	raw, err := json.Marshal(u)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(raw, &fields))
	assert.NotContains(t, fields, "hashed_password")
	assert.NotContains(t, fields, "HashedPassword")
	for _, key := range []string{"id", "email", "username", "role", "full_name", "age", "phone", "avatar", "is_active", "is_superuser", "created_at", "updated_at"} {
		assert.Contains(t, fields, key)
	}
	assert.NotContains(t, string(raw), "secret-hash")
}
