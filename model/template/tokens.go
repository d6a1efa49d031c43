package template

import (
	"github.com/viant/parsly"
)

// Token codes
const (
	literalCode = iota
	openMarkerCode
	closeMarkerCode
	tokenBodyCode
)

const (
	openMarker  = "{{{"
	closeMarker = "}}}"
)

// Token definitions
var (
	literalToken     = parsly.NewToken(literalCode, "Literal", &literalMatcher{})
	openMarkerToken  = parsly.NewToken(openMarkerCode, openMarker, &markerMatcher{marker: openMarker})
	closeMarkerToken = parsly.NewToken(closeMarkerCode, closeMarker, &markerMatcher{marker: closeMarker})
	tokenBodyToken   = parsly.NewToken(tokenBodyCode, "TokenBody", &tokenBodyMatcher{})
)

// markerMatcher matches a fixed brace marker.
type markerMatcher struct {
	marker string
}

func (m *markerMatcher) Match(cursor *parsly.Cursor) int {
	input := cursor.Input
	pos := cursor.Pos
	if pos+len(m.marker) > cursor.InputSize {
		return 0
	}
	for i := 0; i < len(m.marker); i++ {
		if input[pos+i] != m.marker[i] {
			return 0
		}
	}
	return len(m.marker)
}

// literalMatcher matches plain text up to the next opening marker or EOF.
type literalMatcher struct{}

func (m *literalMatcher) Match(cursor *parsly.Cursor) int {
	input := cursor.Input
	pos := cursor.Pos
	size := cursor.InputSize
	matched := 0
	for i := pos; i < size; i++ {
		if input[i] == '{' && i+2 < size && input[i+1] == '{' && input[i+2] == '{' {
			break
		}
		matched++
	}
	return matched
}

// tokenBodyMatcher matches the token interior up to the closing marker.
type tokenBodyMatcher struct{}

func (m *tokenBodyMatcher) Match(cursor *parsly.Cursor) int {
	input := cursor.Input
	pos := cursor.Pos
	size := cursor.InputSize
	matched := 0
	for i := pos; i < size; i++ {
		if input[i] == '}' && i+2 < size && input[i+1] == '}' && input[i+2] == '}' {
			return matched
		}
		matched++
	}
	// No closing marker - not a token body.
	return 0
}
