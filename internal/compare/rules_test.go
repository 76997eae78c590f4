package compare

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRules_JSONAndYAML(t *testing.T) {
	want := []Rule{Prefix("DATE RUN"), Substring("page"), LineIndex(9), LineEnding(12), Script("line > 3")}

	got, err := ParseRules([]byte(`[[1, "DATE RUN"], [2, "page"], [3, 9], [4, 12], [5, "line > 3"]]`))
	require.NoError(t, err)
	assert.Equal(t, want, got)

	got, err = ParseRules([]byte("- [1, DATE RUN]\n- [2, page]\n- [3, 9]\n- [4, \"12\"]\n- [5, line > 3]\n"))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestParseRules_Empty(t *testing.T) {
	got, err := ParseRules([]byte("[]"))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestParseRules_Errors(t *testing.T) {
	for name, in := range map[string]string{
		"unknown kind":    `[[7, "x"]]`,
		"short pair":      `[[1]]`,
		"kind not int":    `[["a", "x"]]`,
		"negative index":  `[[3, -1]]`,
		"index not int":   `[[3, "nine"]]`,
		"text not scalar": `[[1, [1]]]`,
		"not a list":      `{"a": 1}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseRules([]byte(in))
			assert.Error(t, err)
		})
	}
}

func TestParseRules_NumericTextParameter(t *testing.T) {
	got, err := ParseRules([]byte(`[[1, 1998]]`))
	require.NoError(t, err)
	assert.Equal(t, []Rule{Prefix("1998")}, got)
}

func TestMarshalRules_RoundTripsExternalForm(t *testing.T) {
	rules := []Rule{Prefix("DATE RUN"), LineIndex(9)}
	b, err := MarshalRules(rules)
	require.NoError(t, err)
	got, err := ParseRules(b)
	require.NoError(t, err)
	assert.Equal(t, rules, got)
}

func TestRuleString(t *testing.T) {
	assert.Equal(t, `prefix "DATE RUN"`, Prefix("DATE RUN").String())
	assert.Equal(t, "line-index 9", LineIndex(9).String())
	assert.Equal(t, "rule(9)", RuleKind(9).String())
}
