package domain

import (
	"strconv"
	"strings"

	dErrors "rolegate/pkg/domain-errors"
)

// UserID identifies a persisted identity. Zero is never a valid ID; the store
// assigns IDs starting at one.
type UserID int64

// ParseUserID constructs a UserID from external input (path parameters, token subjects).
//
// Errors: returns CodeInvalidInput when the value is empty, not a base-10 integer,
// or not positive.
func ParseUserID(s string) (UserID, error) {
	if s == "" {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "user id cannot be empty")
	}
	if strings.TrimSpace(s) != s || strings.HasPrefix(s, "+") {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "invalid user id")
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "invalid user id")
	}
	if n <= 0 {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "user id must be positive")
	}
	return UserID(n), nil
}

func (id UserID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// IsNil reports whether the ID is unset.
func (id UserID) IsNil() bool {
	return id == 0
}
