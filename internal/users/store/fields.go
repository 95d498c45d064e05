// Package store persists users in memory or PostgreSQL and caches resolved identities.
package store

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"time"

	"rolegate/internal/params"
	"rolegate/internal/users/models"
	id "rolegate/pkg/domain"
	dErrors "rolegate/pkg/domain-errors"
)

type fieldKind int

const (
	kindText fieldKind = iota
	kindBigInt
	kindSmallInt
	kindBool
	kindRole
	kindTime
)

type field struct {
	column string
	kind   fieldKind
}

// fields lists the user attributes clients may sort and filter on, keyed by the
// JSON name, with the matching column and its type.
var fields = map[string]field{
	"id":           {"id", kindBigInt},
	"email":        {"email", kindText},
	"username":     {"username", kindText},
	"role":         {"role", kindRole},
	"full_name":    {"full_name", kindText},
	"age":          {"age", kindSmallInt},
	"phone":        {"phone", kindText},
	"avatar":       {"avatar", kindText},
	"is_active":    {"is_active", kindBool},
	"is_superuser": {"is_superuser", kindBool},
	"created_at":   {"created_at", kindTime},
	"updated_at":   {"updated_at", kindTime},
}

// ValidateParams rejects order or where clauses naming unknown fields, where
// patterns that are not valid regular expressions, and where literals that do
// not fit the column type.
//
// Errors:
//   - CodeBadRequest: unknown field or invalid pattern
//   - CodeInvalidWhereClause: literal of the wrong type for its field
func ValidateParams(p params.Params) error {
	for _, term := range p.Order() {
		if _, ok := fields[term.Field]; !ok {
			return dErrors.Newf(dErrors.CodeBadRequest, "unknown order field %q", term.Field)
		}
	}
	for _, f := range p.Where() {
		if _, ok := fields[f.Field]; !ok {
			return dErrors.Newf(dErrors.CodeBadRequest, "unknown where field %q", f.Field)
		}
		if pattern, ok := f.Pattern(); ok {
			if _, err := regexp.Compile(pattern); err != nil {
				return dErrors.Newf(dErrors.CodeBadRequest, "invalid pattern for %q", f.Field)
			}
			continue
		}
		if _, err := literal(f); err != nil {
			return err
		}
	}
	return nil
}

// literal converts a where value to the Go type of its column: int64 for
// integer columns, bool, time.Time, or string. Null and pattern filters are
// not literals.
func literal(f params.Filter) (any, error) {
	v, ok := coerce(fields[f.Field].kind, f.Value)
	if !ok {
		return nil, dErrors.Wrap(&params.FieldError{Field: f.Field, Value: f.Value}, dErrors.CodeInvalidWhereClause,
			fmt.Sprintf("Invalid where param %s: %v", f.Field, f.Value))
	}
	return v, nil
}

func coerce(kind fieldKind, v any) (any, bool) {
	switch kind {
	case kindBigInt, kindSmallInt:
		n, ok := integerOf(v)
		if !ok {
			return nil, false
		}
		if kind == kindSmallInt && (n < math.MinInt16 || n > math.MaxInt16) {
			return nil, false
		}
		return n, true
	case kindBool:
		switch t := v.(type) {
		case bool:
			return t, true
		case string:
			b, err := strconv.ParseBool(t)
			return b, err == nil
		}
		return nil, false
	case kindRole:
		s, ok := v.(string)
		if !ok {
			return nil, false
		}
		role, err := id.ParseRole(s)
		if err != nil {
			return nil, false
		}
		return string(role), true
	case kindTime:
		s, ok := v.(string)
		if !ok {
			return nil, false
		}
		ts, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return nil, false
		}
		return ts.UTC(), true
	default:
		switch v.(type) {
		case string, int64, float64, bool:
			return textOf(v), true
		}
		return nil, false
	}
}

func integerOf(v any) (int64, bool) {
	switch t := v.(type) {
	case int64:
		return t, true
	case float64:
		if t != math.Trunc(t) || t < math.MinInt64 || t >= math.MaxInt64 {
			return 0, false
		}
		return int64(t), true
	case string:
		n, err := strconv.ParseInt(t, 10, 64)
		return n, err == nil
	}
	return 0, false
}

// fieldValue returns the value of a user attribute, nil for missing optional fields.
func fieldValue(u *models.User, field string) any {
	switch field {
	case "id":
		return int64(u.ID)
	case "email":
		return u.Email
	case "username":
		return u.Username
	case "role":
		return string(u.Role)
	case "full_name":
		return derefOrNil(u.FullName)
	case "age":
		if u.Age == nil {
			return nil
		}
		return int64(*u.Age)
	case "phone":
		return derefOrNil(u.Phone)
	case "avatar":
		return derefOrNil(u.Avatar)
	case "is_active":
		return u.IsActive
	case "is_superuser":
		return u.IsSuperuser
	case "created_at":
		return u.CreatedAt
	case "updated_at":
		return u.UpdatedAt
	}
	return nil
}

func derefOrNil(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

// matches applies one filter. Patterns match case-insensitively against the text
// form of the value; literals are coerced to the column type first, as the
// Postgres store binds them.
func matches(u *models.User, f params.Filter) bool {
	v := fieldValue(u, f.Field)
	if f.IsNull() {
		return v == nil
	}
	if v == nil {
		return false
	}
	if pattern, ok := f.Pattern(); ok {
		re, err := regexp.Compile("(?i)" + pattern)
		if err != nil {
			return false
		}
		return re.MatchString(textOf(v))
	}
	want, err := literal(f)
	if err != nil {
		return false
	}
	return compare(v, want) == 0
}

func textOf(v any) string {
	switch t := v.(type) {
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

// compare orders two attribute values. Nil sorts after everything, as PostgreSQL
// does for ascending order.
func compare(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}
	switch x := a.(type) {
	case int64:
		return cmpOrdered(x, b.(int64))
	case string:
		return cmpOrdered(x, b.(string))
	case bool:
		y := b.(bool)
		switch {
		case x == y:
			return 0
		case !x:
			return -1
		default:
			return 1
		}
	case time.Time:
		return x.Compare(b.(time.Time))
	}
	return 0
}

func cmpOrdered[T int64 | string](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
