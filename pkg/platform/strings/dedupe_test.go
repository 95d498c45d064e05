package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitList(t *testing.T) {
	tests := map[string]struct {
		input    string
		expected []string
	}{
		"empty":             {input: "", expected: nil},
		"whitespace only":   {input: "  ", expected: nil},
		"single":            {input: "admin", expected: []string{"admin"}},
		"trims entries":     {input: " user , admin ", expected: []string{"user", "admin"}},
		"drops blanks":      {input: "user,,admin,", expected: []string{"user", "admin"}},
		"drops repeats":     {input: "user,admin,user", expected: []string{"user", "admin"}},
		"case is preserved": {input: "Admin,admin", expected: []string{"Admin", "admin"}},
		"only separators":   {input: ",,,", expected: []string{}},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.expected, SplitList(tc.input))
		})
	}
}

func TestDedupeAndTrim(t *testing.T) {
	assert.Nil(t, DedupeAndTrim(nil))
	assert.Equal(t, []string{}, DedupeAndTrim([]string{}))
	assert.Equal(t, []string{"a", "b"}, DedupeAndTrim([]string{" a", "b ", "a", "\t"}))
}
