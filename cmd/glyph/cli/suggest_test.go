// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"testing"

	"github.com/spf13/pflag"
)

func TestLevenshtein(t *testing.T) {
	t.Parallel()

	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"eval", "", 4},
		{"", "ping", 4},
		{"eval", "eval", 0},
		{"evl", "eval", 1},
		{"clases", "classes", 1},
		{"comand", "command", 1},
		{"kitten", "sitting", 3},
	}
	for _, test := range tests {
		if got := levenshtein(test.a, test.b); got != test.want {
			t.Errorf("levenshtein(%q, %q) = %d, want %d", test.a, test.b, got, test.want)
		}
	}
}

func TestSuggestFlag(t *testing.T) {
	t.Parallel()

	flagSet := pflag.NewFlagSet("call", pflag.ContinueOnError)
	flagSet.Bool("show", false, "")
	flagSet.String("host", "", "")
	flagSet.BoolP("verbose", "v", false, "")

	tests := []struct {
		args []string
		want string
	}{
		{[]string{"--shw"}, "--show"},
		{[]string{"--host", "x", "--hots=y"}, "--host"},
		{[]string{"-v", "--verbos"}, "--verbose"},
		{[]string{"--completely-different"}, ""},
		{[]string{"--", "--shw"}, ""},
	}
	for _, test := range tests {
		if got := suggestFlag(test.args, flagSet); got != test.want {
			t.Errorf("suggestFlag(%q) = %q, want %q", test.args, got, test.want)
		}
	}
}
