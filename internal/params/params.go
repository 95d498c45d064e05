// Package params turns the admin-grid query encodings (range, order, where) into a
// validated, immutable pagination and filter specification for the data layer.
//
// The encodings follow the react-admin simple REST convention:
//
//	range=[0,9]
//	order={"email":"ASC","id":"desc"}
//	where={"role":"admin","full_name":"/.*smith.*/","phone":null}
package params

import (
	"fmt"
	"strings"
)

const (
	// DefaultTake is the page size used when no range is supplied.
	DefaultTake = 50
	// DefaultMaxTake bounds any requested page size.
	DefaultMaxTake = 1000

	// ContentRangeHeader carries the returned slice and total for list responses.
	ContentRangeHeader = "Content-Range"
)

// Direction is a normalized sort direction.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// OrderTerm sorts by one field.
type OrderTerm struct {
	Field     string
	Direction Direction
}

// Filter restricts one field. Value is nil (IS NULL), a string, an int64,
// a float64 or a bool. Strings wrapped in slashes are patterns, see Pattern.
type Filter struct {
	Field string
	Value any
}

// IsNull reports whether the filter matches missing values.
func (f Filter) IsNull() bool {
	return f.Value == nil
}

// Pattern returns the regular expression of a "/expr/" string filter.
func (f Filter) Pattern() (string, bool) {
	s, ok := f.Value.(string)
	if !ok || len(s) < 2 || !strings.HasPrefix(s, "/") || !strings.HasSuffix(s, "/") {
		return "", false
	}
	return s[1 : len(s)-1], true
}

// Params is a parsed request specification. The zero value is not valid; build
// one with Parse, FromRequest or Default.
type Params struct {
	skip  int
	take  int
	order []OrderTerm
	where []Filter
}

// Default returns the params used when a request carries none.
func Default() Params {
	return Params{skip: 0, take: DefaultTake}
}

// Skip is the number of records to skip.
func (p Params) Skip() int { return p.skip }

// Take is the maximum number of records to return.
func (p Params) Take() int { return p.take }

// Order returns a copy of the sort terms in request order, or nil when unspecified.
func (p Params) Order() []OrderTerm {
	if p.order == nil {
		return nil
	}
	return append([]OrderTerm{}, p.order...)
}

// Where returns a copy of the filters in request order, or nil when unspecified.
func (p Params) Where() []Filter {
	if p.where == nil {
		return nil
	}
	return append([]Filter{}, p.where...)
}

// ContentRange formats the half-open returned slice and the total,
// e.g. "0-10/25" for ten of twenty-five records.
func (p Params) ContentRange(returned, total int) string {
	return fmt.Sprintf("%d-%d/%d", p.skip, p.skip+returned, total)
}
