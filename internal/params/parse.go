package params

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	dErrors "rolegate/pkg/domain-errors"
)

// FieldError identifies the offending field and raw value of an order or where
// clause. It is wrapped in a coded domain error; use errors.As to read it.
type FieldError struct {
	Field string
	Value any
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %v", e.Field, e.Value)
}

type parser struct {
	defaultTake int
	maxTake     int
}

// Option configures parsing.
type Option func(*parser)

// WithMaxTake bounds the page size; larger ranges are clamped.
func WithMaxTake(n int) Option {
	return func(p *parser) {
		if n > 0 {
			p.maxTake = n
		}
	}
}

// WithDefaultTake sets the page size used when no range is supplied.
func WithDefaultTake(n int) Option {
	return func(p *parser) {
		if n > 0 {
			p.defaultTake = n
		}
	}
}

// FromRequest parses the range, order and where query parameters of r.
func FromRequest(r *http.Request, opts ...Option) (Params, error) {
	q := r.URL.Query()
	return Parse(q.Get("range"), q.Get("order"), q.Get("where"), opts...)
}

// Parse validates the three raw encodings. An empty string means the parameter
// was not supplied.
//
// Errors:
//   - CodeMalformedQueryParams: any input is not valid JSON, or order/where is not an object
//   - CodeMalformedRange: range is not [start, end] integers with 0 <= start <= end
//   - CodeInvalidOrderDirection: an order value is not asc/desc (any case)
//   - CodeInvalidWhereClause: a where value is an array or object
func Parse(rawRange, rawOrder, rawWhere string, opts ...Option) (Params, error) {
	p := parser{defaultTake: DefaultTake, maxTake: DefaultMaxTake}
	for _, opt := range opts {
		opt(&p)
	}
	if p.defaultTake > p.maxTake {
		p.defaultTake = p.maxTake
	}

	out := Params{skip: 0, take: p.defaultTake}
	var err error
	if rawRange != "" {
		if out.skip, out.take, err = p.parseRange(rawRange); err != nil {
			return Params{}, err
		}
	}
	if rawOrder != "" {
		if out.order, err = parseOrder(rawOrder); err != nil {
			return Params{}, err
		}
	}
	if rawWhere != "" {
		if out.where, err = parseWhere(rawWhere); err != nil {
			return Params{}, err
		}
	}
	return out, nil
}

func (p parser) parseRange(raw string) (skip, take int, err error) {
	v, err := decodeValue(raw)
	if err != nil {
		return 0, 0, err
	}
	bounds, ok := v.([]any)
	if !ok || len(bounds) != 2 {
		return 0, 0, dErrors.New(dErrors.CodeMalformedRange, "range must be a [start, end] pair")
	}
	start, okStart := asInt(bounds[0])
	end, okEnd := asInt(bounds[1])
	if !okStart || !okEnd {
		return 0, 0, dErrors.New(dErrors.CodeMalformedRange, "range bounds must be integers")
	}
	if start < 0 {
		return 0, 0, dErrors.New(dErrors.CodeMalformedRange, "range start must not be negative")
	}
	if end < start {
		return 0, 0, dErrors.New(dErrors.CodeMalformedRange, "range end must not be before start")
	}
	span := end - start
	if span >= int64(p.maxTake) {
		return int(start), p.maxTake, nil
	}
	return int(start), int(span) + 1, nil
}

func parseOrder(raw string) ([]OrderTerm, error) {
	members, err := decodeObject(raw, "order")
	if err != nil {
		return nil, err
	}
	order := make([]OrderTerm, 0, len(members))
	for _, m := range members {
		s, ok := m.value.(string)
		if !ok {
			return nil, orderError(m)
		}
		var dir Direction
		switch strings.ToLower(s) {
		case string(Asc):
			dir = Asc
		case string(Desc):
			dir = Desc
		default:
			return nil, orderError(m)
		}
		order = append(order, OrderTerm{Field: m.key, Direction: dir})
	}
	return order, nil
}

func orderError(m member) error {
	return dErrors.Wrap(&FieldError{Field: m.key, Value: m.value}, dErrors.CodeInvalidOrderDirection,
		fmt.Sprintf("Invalid order direction '%s': '%v'", m.key, m.value))
}

func parseWhere(raw string) ([]Filter, error) {
	members, err := decodeObject(raw, "where")
	if err != nil {
		return nil, err
	}
	where := make([]Filter, 0, len(members))
	for _, m := range members {
		switch v := m.value.(type) {
		case nil, string, bool:
			where = append(where, Filter{Field: m.key, Value: v})
		case json.Number:
			where = append(where, Filter{Field: m.key, Value: numberValue(v)})
		default:
			return nil, dErrors.Wrap(&FieldError{Field: m.key, Value: m.value}, dErrors.CodeInvalidWhereClause,
				fmt.Sprintf("Invalid where param %s: %v", m.key, m.value))
		}
	}
	return where, nil
}

type member struct {
	key   string
	value any
}

// decodeObject decodes a JSON object keeping member order; a repeated key
// keeps its first position and takes the last value.
func decodeObject(raw, name string) ([]member, error) {
	dec := newDecoder(raw)
	tok, err := dec.Token()
	if err != nil {
		return nil, malformed(err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, dErrors.Newf(dErrors.CodeMalformedQueryParams, "Invalid query params. %s must be a JSON object", name)
	}

	var members []member
	index := map[string]int{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, malformed(err)
		}
		key, _ := keyTok.(string)
		var value any
		if err := dec.Decode(&value); err != nil {
			return nil, malformed(err)
		}
		if i, seen := index[key]; seen {
			members[i].value = value
			continue
		}
		index[key] = len(members)
		members = append(members, member{key: key, value: value})
	}
	if _, err := dec.Token(); err != nil {
		return nil, malformed(err)
	}
	if err := expectEOF(dec); err != nil {
		return nil, err
	}
	if members == nil {
		members = []member{}
	}
	return members, nil
}

func decodeValue(raw string) (any, error) {
	dec := newDecoder(raw)
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, malformed(err)
	}
	if err := expectEOF(dec); err != nil {
		return nil, err
	}
	return v, nil
}

func newDecoder(raw string) *json.Decoder {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	return dec
}

func expectEOF(dec *json.Decoder) error {
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		if err == nil {
			err = errors.New("unexpected data after top-level value")
		}
		return malformed(err)
	}
	return nil
}

func malformed(err error) error {
	if errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	return dErrors.Wrap(err, dErrors.CodeMalformedQueryParams, "Invalid query params.")
}

func asInt(v any) (int64, bool) {
	n, ok := v.(json.Number)
	if !ok {
		return 0, false
	}
	i, err := n.Int64()
	if err != nil {
		return 0, false
	}
	return i, true
}

func numberValue(n json.Number) any {
	if i, err := n.Int64(); err == nil {
		return i
	}
	if f, err := n.Float64(); err == nil {
		return f
	}
	return n.String()
}
