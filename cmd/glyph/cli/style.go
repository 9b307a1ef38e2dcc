// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"io"
	"strings"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// ColorProfile returns the color support of w. Writers that are not
// terminals get termenv.Ascii. NO_COLOR and CLICOLOR_FORCE are honored.
func ColorProfile(w io.Writer) termenv.Profile {
	return termenv.NewOutput(w).EnvColorProfile()
}

// Styles are the text styles commands use on one writer.
type Styles struct {
	Prompt lipgloss.Style
	Error  lipgloss.Style
	Faint  lipgloss.Style
}

// NewStyles returns styles rendered for w's color profile, so output to
// a pipe or file carries no escape codes.
func NewStyles(w io.Writer) Styles {
	profile := ColorProfile(w)
	renderer := lipgloss.NewRenderer(w, termenv.WithProfile(profile))
	renderer.SetColorProfile(profile)
	return Styles{
		Prompt: renderer.NewStyle().Foreground(lipgloss.Color("75")),
		Error:  renderer.NewStyle().Foreground(lipgloss.Color("196")),
		Faint:  renderer.NewStyle().Foreground(lipgloss.Color("245")),
	}
}

// chromaFormatters maps a color profile to the chroma formatter that
// produces it.
var chromaFormatters = map[termenv.Profile]string{
	termenv.ANSI:      "terminal16",
	termenv.ANSI256:   "terminal256",
	termenv.TrueColor: "terminal16m",
}

// HighlightTcl returns source with Tcl syntax highlighting for w's color
// profile. Source is returned unchanged when w has no color support or
// highlighting fails.
func HighlightTcl(w io.Writer, source string) string {
	formatter, ok := chromaFormatters[ColorProfile(w)]
	if !ok {
		return source
	}
	var buffer strings.Builder
	if err := quick.Highlight(&buffer, source, "tcl", formatter, "monokai"); err != nil {
		return source
	}
	return buffer.String()
}
