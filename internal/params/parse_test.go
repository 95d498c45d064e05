package params

import (
	"errors"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "rolegate/pkg/domain-errors"
)

func TestParse_Defaults(t *testing.T) {
	p, err := Parse("", "", "")
	require.NoError(t, err)
	assert.Equal(t, 0, p.Skip())
	assert.Equal(t, DefaultTake, p.Take())
	assert.Nil(t, p.Order())
	assert.Nil(t, p.Where())
	assert.Equal(t, Default(), p)
}

func TestParse_Range(t *testing.T) {
	cases := []struct {
		raw  string
		skip int
		take int
	}{
		{"[0,9]", 0, 10},
		{"[10,19]", 10, 10},
		{"[5,5]", 5, 1},
		{" [ 20 , 24 ] ", 20, 5},
	}
	for _, tc := range cases {
		t.Run(tc.raw, func(t *testing.T) {
			p, err := Parse(tc.raw, "", "")
			require.NoError(t, err)
			assert.Equal(t, tc.skip, p.Skip())
			assert.Equal(t, tc.take, p.Take())
		})
	}

	t.Run("clamps take to the max page size", func(t *testing.T) {
		p, err := Parse("[0,999999]", "", "")
		require.NoError(t, err)
		assert.Equal(t, DefaultMaxTake, p.Take())

		p, err = Parse("[100,149]", "", "", WithMaxTake(25))
		require.NoError(t, err)
		assert.Equal(t, 100, p.Skip())
		assert.Equal(t, 25, p.Take())
	})

	t.Run("default take is bounded by max", func(t *testing.T) {
		p, err := Parse("", "", "", WithMaxTake(10))
		require.NoError(t, err)
		assert.Equal(t, 10, p.Take())

		p, err = Parse("", "", "", WithDefaultTake(20))
		require.NoError(t, err)
		assert.Equal(t, 20, p.Take())
	})
}

func TestParse_MalformedRange(t *testing.T) {
	for _, raw := range []string{
		"[5,2]",
		"[-1,4]",
		"[1]",
		"[1,2,3]",
		"[]",
		`["a","b"]`,
		"[1.5,3]",
		"[0,null]",
		`{"start":0}`,
		"7",
	} {
		t.Run(raw, func(t *testing.T) {
			_, err := Parse(raw, "", "")
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeMalformedRange), "got %v", err)
		})
	}
}

func TestParse_MalformedJSON(t *testing.T) {
	cases := map[string][3]string{
		"range syntax":       {"[0,", "", ""},
		"order syntax":       {"", `{"id":`, ""},
		"where syntax":       {"", "", `{"a" 1}`},
		"order not object":   {"", `["id","asc"]`, ""},
		"where not object":   {"", "", `"role"`},
		"trailing garbage":   {"", `{"id":"asc"}x`, ""},
		"two top-level docs": {"[0,1][2,3]", "", ""},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(in[0], in[1], in[2])
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeMalformedQueryParams), "got %v", err)
			assert.Contains(t, err.Error(), "Invalid query params.")
		})
	}
}

func TestParse_Order(t *testing.T) {
	t.Run("normalizes case and keeps key order", func(t *testing.T) {
		p, err := Parse("", `{"email":"ASC","id":"desc","full_name":"Desc"}`, "")
		require.NoError(t, err)
		assert.Equal(t, []OrderTerm{
			{Field: "email", Direction: Asc},
			{Field: "id", Direction: Desc},
			{Field: "full_name", Direction: Desc},
		}, p.Order())
	})

	t.Run("empty object is present but empty", func(t *testing.T) {
		p, err := Parse("", "{}", "")
		require.NoError(t, err)
		assert.NotNil(t, p.Order())
		assert.Empty(t, p.Order())
	})

	t.Run("repeated key keeps first position", func(t *testing.T) {
		p, err := Parse("", `{"id":"asc","email":"asc","id":"desc"}`, "")
		require.NoError(t, err)
		assert.Equal(t, []OrderTerm{{"id", Desc}, {"email", Asc}}, p.Order())
	})

	t.Run("rejects unknown directions", func(t *testing.T) {
		for _, raw := range []string{`{"id":"up"}`, `{"id":1}`, `{"id":null}`, `{"id":["asc"]}`} {
			_, err := Parse("", raw, "")
			require.Error(t, err, raw)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidOrderDirection), raw)

			var fe *FieldError
			require.True(t, errors.As(err, &fe))
			assert.Equal(t, "id", fe.Field)
		}
	})

	t.Run("message names field and value", func(t *testing.T) {
		_, err := Parse("", `{"name":"sideways"}`, "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Invalid order direction 'name': 'sideways'")
	})
}

func TestParse_Where(t *testing.T) {
	t.Run("passes scalars through in order", func(t *testing.T) {
		p, err := Parse("", "", `{"role":"admin","age":30,"score":1.5,"is_active":true,"phone":null,"full_name":"/.*smith.*/"}`)
		require.NoError(t, err)
		assert.Equal(t, []Filter{
			{Field: "role", Value: "admin"},
			{Field: "age", Value: int64(30)},
			{Field: "score", Value: 1.5},
			{Field: "is_active", Value: true},
			{Field: "phone", Value: nil},
			{Field: "full_name", Value: "/.*smith.*/"},
		}, p.Where())

		where := p.Where()
		assert.True(t, where[4].IsNull())
		pattern, ok := where[5].Pattern()
		assert.True(t, ok)
		assert.Equal(t, ".*smith.*", pattern)
		_, ok = where[0].Pattern()
		assert.False(t, ok)
	})

	t.Run("rejects arrays and objects", func(t *testing.T) {
		for _, raw := range []string{`{"role":["a","b"]}`, `{"role":{"in":["a"]}}`} {
			_, err := Parse("", "", raw)
			require.Error(t, err, raw)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidWhereClause), raw)

			var fe *FieldError
			require.True(t, errors.As(err, &fe))
			assert.Equal(t, "role", fe.Field)
		}
	})
}

func TestParse_Idempotent(t *testing.T) {
	a, err := Parse("[10,19]", `{"id":"DESC"}`, `{"role":"user"}`)
	require.NoError(t, err)
	b, err := Parse("[10,19]", `{"id":"DESC"}`, `{"role":"user"}`)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestParams_AccessorsReturnCopies(t *testing.T) {
	p, err := Parse("", `{"id":"asc"}`, `{"role":"user"}`)
	require.NoError(t, err)

	order := p.Order()
	order[0].Direction = Desc
	where := p.Where()
	where[0].Value = "admin"

	assert.Equal(t, Asc, p.Order()[0].Direction)
	assert.Equal(t, "user", p.Where()[0].Value)
}

func TestParams_ContentRange(t *testing.T) {
	p, err := Parse("[0,9]", "", "")
	require.NoError(t, err)
	assert.Equal(t, "0-10/25", p.ContentRange(10, 25))

	p, err = Parse("[20,29]", "", "")
	require.NoError(t, err)
	assert.Equal(t, "20-25/25", p.ContentRange(5, 25))
}

func TestFromRequest(t *testing.T) {
	q := url.Values{}
	q.Set("range", "[0,4]")
	q.Set("order", `{"email":"asc"}`)
	q.Set("where", `{"is_active":false}`)
	req := httptest.NewRequest("GET", "/api/v1/users?"+q.Encode(), nil)

	p, err := FromRequest(req)
	require.NoError(t, err)
	assert.Equal(t, 5, p.Take())
	assert.Equal(t, []OrderTerm{{"email", Asc}}, p.Order())
	assert.Equal(t, []Filter{{"is_active", false}}, p.Where())
}
