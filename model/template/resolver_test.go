package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolve(t *testing.T) {
	bag := map[string]interface{}{
		"a":          1,
		"senderName": "Ann",
		"user": map[string]interface{}{
			"profile": map[string]interface{}{"name": "Bob"},
			"tags":    []interface{}{"vip", "beta"},
		},
		"previousMsg":    map[string]interface{}{"text": map[string]interface{}{"body": "hi"}},
		"{{{rawKey}}}":   "verbatim",
		"price":          12.5,
	}

	testCases := []struct {
		name     string
		template string
		expected string
	}{
		{
			name:     "plain text untouched",
			template: "hello world",
			expected: "hello world",
		},
		{
			name:     "single token interpolation",
			template: "x {{{a}}} y",
			expected: "x 1 y",
		},
		{
			name:     "missing path resolves to NA",
			template: "{{{missing.x}}}",
			expected: "NA",
		},
		{
			name:     "missing sibling does not abort others",
			template: "{{{missing}}}-{{{senderName}}}",
			expected: "NA-Ann",
		},
		{
			name:     "nested dot path",
			template: "hi {{{user.profile.name}}}",
			expected: "hi Bob",
		},
		{
			name:     "bracket index",
			template: "{{{user.tags[1]}}}",
			expected: "beta",
		},
		{
			name:     "out of range index",
			template: "{{{user.tags[9]}}}",
			expected: "NA",
		},
		{
			name:     "literal key wins over path walk",
			template: "{{{rawKey}}}",
			expected: "verbatim",
		},
		{
			name:     "stringify wrapper serialises subtree",
			template: "{{{JSON.stringify(previousMsg.text)}}}",
			expected: `{"body":"hi"}`,
		},
		{
			name:     "stringify of missing path",
			template: "{{{JSON.stringify(nope.x)}}}",
			expected: "NA",
		},
		{
			name:     "float rendering",
			template: "total {{{price}}}",
			expected: "total 12.5",
		},
		{
			name:     "unterminated marker kept verbatim",
			template: "oops {{{a",
			expected: "oops {{{a",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, Resolve(tc.template, bag))
		})
	}
}

func TestResolveValue(t *testing.T) {
	bag := map[string]interface{}{
		"lat":  13.7563,
		"lng":  100.5018,
		"row":  map[string]interface{}{"name": "Ann", "score": 42},
		"tags": []interface{}{"a", "b"},
	}

	testCases := []struct {
		name     string
		value    interface{}
		expected interface{}
	}{
		{
			name:     "whole token keeps original type",
			value:    "{{{lat}}}",
			expected: 13.7563,
		},
		{
			name:     "embedded token stringifies",
			value:    "lat={{{lat}}}",
			expected: "lat=13.7563",
		},
		{
			name:     "whole token missing path",
			value:    "{{{nope}}}",
			expected: "NA",
		},
		{
			name: "map leaves resolve recursively",
			value: map[string]interface{}{
				"who":   "{{{row.name}}}",
				"score": "{{{row.score}}}",
				"keep":  7,
			},
			expected: map[string]interface{}{
				"who":   "Ann",
				"score": 42,
				"keep":  7,
			},
		},
		{
			name:     "slice leaves resolve recursively",
			value:    []interface{}{"{{{tags[0]}}}", "{{{tags[1]}}}", "{{{tags[5]}}}"},
			expected: []interface{}{"a", "b", "NA"},
		},
		{
			name:     "non template scalar passes through",
			value:    42,
			expected: 42,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, ResolveValue(tc.value, bag))
		})
	}
}

func TestResolveIsTotal(t *testing.T) {
	// Degenerate inputs must not panic and must not leak errors.
	assert.Equal(t, "", Resolve("", nil))
	assert.Equal(t, "NA", Resolve("{{{a.b[x].c}}}", map[string]interface{}{}))
	assert.Equal(t, "{{{", Resolve("{{{", nil))
	assert.Equal(t, "}}} ok", Resolve("}}} {{{a}}}", map[string]interface{}{"a": "ok"}))
}
