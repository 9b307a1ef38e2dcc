// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tcl

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseError reports text that does not follow the list grammar. A parse
// error always means the two ends disagree about the encoding, so callers
// surface it rather than guess.
type ParseError struct {
	// Offset is the byte offset in the input where the problem was found.
	Offset int

	// Reason describes the problem.
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("tcl list: %s (offset %d)", e.Reason, e.Offset)
}

// LeafFunc converts one list word into a Go value. Returning nil drops
// the word from the result.
type LeafFunc func(word string) (any, error)

// escapable is the set of characters a backslash may escape.
const escapable = `\{}[]$`

// node is one nesting level under construction. items holds leaf values
// and *node children in order.
type node struct {
	items []any
}

func (n *node) value() []any {
	result := make([]any, len(n.items))
	for i, item := range n.items {
		if child, ok := item.(*node); ok {
			result[i] = child.value()
		} else {
			result[i] = item
		}
	}
	return result
}

// ParseList parses Tcl list text into nested []any values, passing every
// leaf word through leaf (Scalar when leaf is nil).
//
// When the top level holds exactly one element, that element is returned
// on its own: "42" yields 42, "{0 0 1}" yields []any{0, 0, 1}. Otherwise
// the result is a []any, empty for blank input.
func ParseList(text string, leaf LeafFunc) (any, error) {
	if leaf == nil {
		leaf = Scalar
	}

	root := &node{}
	stack := []*node{root}
	var word strings.Builder
	escaped := false

	flush := func(offset int) error {
		if word.Len() == 0 {
			return nil
		}
		value, err := leaf(word.String())
		word.Reset()
		if err != nil {
			return fmt.Errorf("tcl list word ending at offset %d: %w", offset, err)
		}
		if value != nil {
			top := stack[len(stack)-1]
			top.items = append(top.items, value)
		}
		return nil
	}

	for offset, char := range text {
		if escaped {
			if !strings.ContainsRune(escapable, char) {
				return nil, &ParseError{Offset: offset, Reason: fmt.Sprintf("invalid escape character %q", char)}
			}
			word.WriteRune(char)
			escaped = false
			continue
		}

		switch char {
		case '\\':
			escaped = true
		case ' ', '\t', '\r', '\n':
			if err := flush(offset); err != nil {
				return nil, err
			}
		case '{':
			if err := flush(offset); err != nil {
				return nil, err
			}
			child := &node{}
			top := stack[len(stack)-1]
			top.items = append(top.items, child)
			stack = append(stack, child)
		case '}':
			if len(stack) < 2 {
				return nil, &ParseError{Offset: offset, Reason: "close bracket without opening bracket"}
			}
			if err := flush(offset); err != nil {
				return nil, err
			}
			stack = stack[:len(stack)-1]
		default:
			word.WriteRune(char)
		}
	}

	if escaped {
		return nil, &ParseError{Offset: len(text), Reason: "backslash at end of input"}
	}
	if err := flush(len(text)); err != nil {
		return nil, err
	}
	if len(stack) != 1 {
		return nil, &ParseError{Offset: len(text), Reason: "mismatched brackets"}
	}

	result := root.value()
	if len(result) == 1 {
		return result[0], nil
	}
	return result, nil
}

// Scalar is the standard leaf conversion: the word is trimmed, an empty
// word becomes nil, and otherwise it is returned as an int, a float64, or
// the trimmed string, whichever parses first.
func Scalar(word string) (any, error) {
	trimmed := strings.TrimSpace(word)
	if trimmed == "" {
		return nil, nil
	}
	if integer, err := strconv.Atoi(trimmed); err == nil {
		return integer, nil
	}
	if float, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return float, nil
	}
	return trimmed, nil
}

// Verbatim is a LeafFunc that keeps every word as a string.
func Verbatim(word string) (any, error) {
	return word, nil
}

// Strings parses text as a flat list of words. Nested lists are
// flattened in order.
func Strings(text string) ([]string, error) {
	parsed, err := ParseList(text, Verbatim)
	if err != nil {
		return nil, err
	}
	var words []string
	var walk func(value any)
	walk = func(value any) {
		switch typed := value.(type) {
		case []any:
			for _, item := range typed {
				walk(item)
			}
		case string:
			words = append(words, typed)
		}
	}
	walk(parsed)
	return words, nil
}

// Pairs rebuilds a map from a flattened key/value list such as the output
// of "array get". Keys are rendered with [Format]. Every value that is not
// already a []any is wrapped in a one-element []any, so a map built from
// an array whose elements were lists keeps the same shape as one whose
// elements happened to hold a single word.
func Pairs(list any) (map[string]any, error) {
	items, ok := list.([]any)
	if !ok {
		if list == nil {
			return map[string]any{}, nil
		}
		return nil, fmt.Errorf("tcl pairs: expected a list, got %T", list)
	}
	if len(items)%2 != 0 {
		return nil, fmt.Errorf("tcl pairs: odd number of elements (%d)", len(items))
	}
	result := make(map[string]any, len(items)/2)
	for i := 0; i < len(items); i += 2 {
		key := Format(items[i])
		value := items[i+1]
		if _, isList := value.([]any); !isList {
			value = []any{value}
		}
		result[key] = value
	}
	return result, nil
}
