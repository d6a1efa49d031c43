// Package template resolves {{{path}}} placeholders against a runtime
// variable bag. Resolution is pure and total: no input can produce an error
// or a panic, unresolved paths degrade to the literal "NA".
package template

import (
	"encoding/json"
	"reflect"
	"strconv"
	"strings"

	"github.com/viant/parsly"
	"github.com/viant/structology/visitor"
)

// Missing is the sentinel every unresolved token degrades to.
const Missing = "NA"

const stringifyPrefix = "JSON.stringify("

// Resolve expands every {{{path}}} token in text using values from the bag
// and returns the interpolated string. Sibling tokens resolve independently;
// a missing path never aborts the rest of the template.
func Resolve(text string, from map[string]interface{}) string {
	if text == "" || !strings.Contains(text, openMarker) {
		return text
	}
	cursor := parsly.NewCursor("", []byte(text), 0)
	var out strings.Builder
	for cursor.Pos < cursor.InputSize {
		matched := cursor.MatchOne(openMarkerToken)
		if matched.Code == openMarkerCode {
			body := cursor.MatchOne(tokenBodyToken)
			if body.Code != tokenBodyCode {
				// Unterminated marker - keep it verbatim.
				out.WriteString(openMarker)
				continue
			}
			inner := body.Text(cursor)
			if closing := cursor.MatchOne(closeMarkerToken); closing.Code != closeMarkerCode {
				out.WriteString(openMarker)
				out.WriteString(inner)
				continue
			}
			out.WriteString(stringify(resolveToken(inner, from)))
			continue
		}
		literal := cursor.MatchOne(literalToken)
		if literal.Code != literalCode {
			break
		}
		out.WriteString(literal.Text(cursor))
	}
	return out.String()
}

// ResolveValue is the typed variant. A string that is exactly one token
// returns the resolved value with its original type preserved; containers are
// traversed recursively so every leaf resolves. Non-template values pass
// through unchanged.
func ResolveValue(value interface{}, from map[string]interface{}) interface{} {
	switch actual := value.(type) {
	case string:
		if inner, ok := wholeToken(actual); ok {
			return resolveToken(inner, from)
		}
		return Resolve(actual, from)
	case map[string]interface{}:
		resolved := make(map[string]interface{}, len(actual))
		visit := visitor.MapVisitorOf[string, interface{}](actual)
		_ = visit(func(key string, element interface{}) (bool, error) {
			resolved[key] = ResolveValue(element, from)
			return true, nil
		})
		return resolved
	case []interface{}:
		resolved := make([]interface{}, len(actual))
		for i, item := range actual {
			resolved[i] = ResolveValue(item, from)
		}
		return resolved
	default:
		return actual
	}
}

// wholeToken reports whether text is a single {{{...}}} token with nothing
// around it, returning the inner key.
func wholeToken(text string) (string, bool) {
	if len(text) <= len(openMarker)+len(closeMarker) {
		return "", false
	}
	if !strings.HasPrefix(text, openMarker) || !strings.HasSuffix(text, closeMarker) {
		return "", false
	}
	inner := text[len(openMarker) : len(text)-len(closeMarker)]
	if strings.Contains(inner, openMarker) || strings.Contains(inner, closeMarker) {
		return "", false
	}
	return inner, true
}

// resolveToken resolves one token interior against the bag.
func resolveToken(inner string, from map[string]interface{}) interface{} {
	// A literal key, brace markers included, wins over path resolution.
	if from != nil {
		if value, ok := from[openMarker+inner+closeMarker]; ok {
			return value
		}
	}
	if path, ok := stringifyPath(inner); ok {
		value, found := walkPath(path, from)
		if !found {
			return Missing
		}
		data, err := json.Marshal(value)
		if err != nil {
			return Missing
		}
		return string(data)
	}
	value, found := walkPath(inner, from)
	if !found {
		return Missing
	}
	return value
}

// stringifyPath unwraps the JSON.stringify(<path>) form.
func stringifyPath(inner string) (string, bool) {
	trimmed := strings.TrimSpace(inner)
	if !strings.HasPrefix(trimmed, stringifyPrefix) || !strings.HasSuffix(trimmed, ")") {
		return "", false
	}
	return strings.TrimSpace(trimmed[len(stringifyPrefix) : len(trimmed)-1]), true
}

// walkPath navigates dot and [index] segments through maps, slices and
// structs. The second result is false when any segment is absent.
func walkPath(expr string, from map[string]interface{}) (interface{}, bool) {
	expr = strings.TrimSpace(expr)
	if expr == "" || from == nil {
		return nil, false
	}
	var current interface{} = from
	for _, segment := range splitPath(expr) {
		if segment.index >= 0 {
			element, ok := elementAt(current, segment.index)
			if !ok {
				return nil, false
			}
			current = element
			continue
		}
		value, ok := property(current, segment.name)
		if !ok {
			return nil, false
		}
		current = value
	}
	return current, true
}

type segment struct {
	name  string
	index int // -1 for property segments
}

// splitPath breaks "a.b[2].c" into property and index segments.
func splitPath(expr string) []segment {
	var segments []segment
	i := 0
	for i < len(expr) {
		switch expr[i] {
		case '.':
			i++
		case '[':
			end := strings.IndexByte(expr[i:], ']')
			if end < 0 {
				// Malformed index - treat the remainder as a property name.
				segments = append(segments, segment{name: expr[i:], index: -1})
				return segments
			}
			index, err := strconv.Atoi(expr[i+1 : i+end])
			if err != nil || index < 0 {
				segments = append(segments, segment{name: expr[i+1 : i+end], index: -1})
			} else {
				segments = append(segments, segment{index: index})
			}
			i += end + 1
		default:
			end := i
			for end < len(expr) && expr[end] != '.' && expr[end] != '[' {
				end++
			}
			segments = append(segments, segment{name: expr[i:end], index: -1})
			i = end
		}
	}
	return segments
}

// property reads a named member from a map or, via reflection, a struct.
func property(value interface{}, name string) (interface{}, bool) {
	if value == nil || name == "" {
		return nil, false
	}
	if m, ok := value.(map[string]interface{}); ok {
		v, ok := m[name]
		return v, ok
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil, false
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, false
		}
		item := rv.MapIndex(reflect.ValueOf(name))
		if !item.IsValid() {
			return nil, false
		}
		return item.Interface(), true
	case reflect.Struct:
		field := rv.FieldByName(name)
		if !field.IsValid() {
			typ := rv.Type()
			for i := 0; i < typ.NumField(); i++ {
				if strings.EqualFold(typ.Field(i).Name, name) {
					field = rv.Field(i)
					break
				}
			}
		}
		if !field.IsValid() || !field.CanInterface() {
			return nil, false
		}
		return field.Interface(), true
	}
	return nil, false
}

// elementAt reads an indexed element from a slice or array.
func elementAt(value interface{}, index int) (interface{}, bool) {
	if value == nil || index < 0 {
		return nil, false
	}
	if items, ok := value.([]interface{}); ok {
		if index >= len(items) {
			return nil, false
		}
		return items[index], true
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil, false
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	if index >= rv.Len() {
		return nil, false
	}
	item := rv.Index(index)
	if !item.CanInterface() {
		return nil, false
	}
	return item.Interface(), true
}

// stringify renders a resolved value for interpolation into text.
func stringify(value interface{}) string {
	switch actual := value.(type) {
	case nil:
		return Missing
	case string:
		return actual
	case bool:
		return strconv.FormatBool(actual)
	case int:
		return strconv.Itoa(actual)
	case int64:
		return strconv.FormatInt(actual, 10)
	case float64:
		return strconv.FormatFloat(actual, 'f', -1, 64)
	}
	data, err := json.Marshal(value)
	if err != nil {
		return Missing
	}
	return string(data)
}
