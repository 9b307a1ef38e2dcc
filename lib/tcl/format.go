// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tcl

import (
	"fmt"
	"math"
	"reflect"
	"slices"
	"strconv"
	"strings"
)

// Format renders value as Tcl list text that [ParseList] reads back. A
// list (any slice or array) renders as its elements separated by spaces
// with nested lists wrapped in braces. A map renders as a flattened
// key/value list with keys in sorted order. Any other value renders as a
// single word.
func Format(value any) string {
	return listText.format(value)
}

// FormatWord renders value as a single word of list text: lists and maps
// are braced, strings escape the characters of the list grammar, and
// numbers use their shortest exact form. Integral floats keep a trailing
// ".0" so they read back as floats.
func FormatWord(value any) string {
	return listText.word(value)
}

// FormatScript renders value the way Format does but quotes each word
// for the Tcl interpreter, so Format of a token list is a script that
// invokes it with no substitution.
func FormatScript(value any) string {
	return scriptText.format(value)
}

// formatter renders Go values as Tcl words with one quoting rule for
// strings.
type formatter struct {
	quote func(string) string
}

var (
	listText   = formatter{quote: quoteListWord}
	scriptText = formatter{quote: quoteScriptWord}
)

func (f formatter) format(value any) string {
	if items, ok := listItems(value); ok {
		return f.join(items)
	}
	return f.word(value)
}

func (f formatter) word(value any) string {
	if items, ok := listItems(value); ok {
		return "{" + f.join(items) + "}"
	}
	switch typed := value.(type) {
	case nil:
		return "{}"
	case string:
		return f.quote(typed)
	case bool:
		return strconv.FormatBool(typed)
	case int:
		return strconv.Itoa(typed)
	case int64:
		return strconv.FormatInt(typed, 10)
	case int32:
		return strconv.FormatInt(int64(typed), 10)
	case uint:
		return strconv.FormatUint(uint64(typed), 10)
	case uint64:
		return strconv.FormatUint(typed, 10)
	case uint32:
		return strconv.FormatUint(uint64(typed), 10)
	case float64:
		return formatFloat(typed, 64)
	case float32:
		return formatFloat(float64(typed), 32)
	case fmt.Stringer:
		return f.quote(typed.String())
	default:
		return f.quote(fmt.Sprint(value))
	}
}

func (f formatter) join(items []any) string {
	words := make([]string, len(items))
	for i, item := range items {
		words[i] = f.word(item)
	}
	return strings.Join(words, " ")
}

func formatFloat(value float64, bits int) string {
	text := strconv.FormatFloat(value, 'g', -1, bits)
	if math.IsInf(value, 0) || math.IsNaN(value) {
		return text
	}
	if !strings.ContainsAny(text, ".e") {
		text += ".0"
	}
	return text
}

// listItems reports whether value is a list or map and returns its
// elements. Maps flatten to key/value pairs with sorted keys. Byte
// slices are not lists.
func listItems(value any) ([]any, bool) {
	switch typed := value.(type) {
	case nil, string, []byte:
		return nil, false
	case []any:
		return typed, true
	case []string:
		items := make([]any, len(typed))
		for i, s := range typed {
			items[i] = s
		}
		return items, true
	case map[string]any:
		keys := make([]string, 0, len(typed))
		for key := range typed {
			keys = append(keys, key)
		}
		slices.Sort(keys)
		items := make([]any, 0, 2*len(keys))
		for _, key := range keys {
			items = append(items, key, typed[key])
		}
		return items, true
	}

	reflected := reflect.ValueOf(value)
	switch reflected.Kind() {
	case reflect.Slice, reflect.Array:
		items := make([]any, reflected.Len())
		for i := range items {
			items[i] = reflected.Index(i).Interface()
		}
		return items, true
	case reflect.Map:
		keys := reflected.MapKeys()
		pairs := make([][2]any, len(keys))
		for i, key := range keys {
			pairs[i] = [2]any{key.Interface(), reflected.MapIndex(key).Interface()}
		}
		slices.SortFunc(pairs, func(a, b [2]any) int {
			return strings.Compare(FormatWord(a[0]), FormatWord(b[0]))
		})
		items := make([]any, 0, 2*len(pairs))
		for _, pair := range pairs {
			items = append(items, pair[0], pair[1])
		}
		return items, true
	}
	return nil, false
}

// quoteListWord renders s as one word of list text. The characters a
// backslash may escape are escaped, and a word holding whitespace is
// braced.
func quoteListWord(s string) string {
	if s == "" {
		return "{}"
	}

	var builder strings.Builder
	spaced := false
	for _, char := range s {
		switch {
		case strings.ContainsRune(escapable, char):
			builder.WriteByte('\\')
		case char == ' ' || char == '\t' || char == '\r' || char == '\n':
			spaced = true
		}
		builder.WriteRune(char)
	}
	if spaced {
		return "{" + builder.String() + "}"
	}
	return builder.String()
}

// quoteScriptWord renders s as one word of a Tcl script. Words without
// special characters are emitted bare. Words whose only special
// characters are whitespace are braced. Anything else is
// backslash-escaped character by character.
func quoteScriptWord(s string) string {
	if s == "" {
		return "{}"
	}

	hasSpace := false
	hasSpecial := false
	for _, char := range s {
		switch char {
		case ' ', '\t', '\r', '\n':
			hasSpace = true
		case '\\', '{', '}', '[', ']', '$', '"', ';':
			hasSpecial = true
		}
	}
	switch {
	case !hasSpace && !hasSpecial:
		return s
	case !hasSpecial:
		return "{" + s + "}"
	}

	var builder strings.Builder
	for _, char := range s {
		switch char {
		case '\\', '{', '}', '[', ']', '$', '"', ';', ' ':
			builder.WriteByte('\\')
			builder.WriteRune(char)
		case '\t':
			builder.WriteString(`\t`)
		case '\r':
			builder.WriteString(`\r`)
		case '\n':
			builder.WriteString(`\n`)
		default:
			builder.WriteRune(char)
		}
	}
	return builder.String()
}
