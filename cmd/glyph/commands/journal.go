// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/glyph/cmd/glyph/cli"
	"github.com/bureau-foundation/glyph/lib/journal"
)

type journalParams struct {
	cli.JSONOutput
	Type  string `flag:"type" desc:"show only frames of this type, such as EVAL or OK"`
	Width int    `flag:"width" desc:"truncate payloads to this many characters (0 for no limit)" default:"120"`
}

// journalEntry is the JSON form of one journal record.
type journalEntry struct {
	Time      time.Time `json:"time"`
	Direction string    `json:"direction"`
	Type      string    `json:"type"`
	Payload   string    `json:"payload"`
}

func journalCommand(env Environment) *cli.Command {
	var params journalParams
	return &cli.Command{
		Name:    "journal",
		Summary: "Print a frame journal recorded with --journal",
		Description: `Print the frames recorded in a journal file, one per line: time,
direction (">" sent, "<" received), frame type, and payload. Files
ending in .zst or .lz4 are decompressed. With --json the records are
printed as an array with full payloads.`,
		Usage: "glyph journal [flags] <file>",
		Examples: []cli.Example{
			{
				Description: "Show the EVAL requests a session sent",
				Command:     "glyph journal --type EVAL session.journal.zst",
			},
		},
		Flags: func() *pflag.FlagSet { return cli.FlagsFromParams("journal", &params) },
		Run: func(_ context.Context, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("journal takes exactly one file, got %d arguments", len(args))
			}
			reader, err := journal.Open(args[0])
			if err != nil {
				return err
			}
			defer reader.Close()

			var entries []journalEntry
			for record, err := range reader.All() {
				if err != nil {
					return fmt.Errorf("%s: %w", args[0], err)
				}
				if params.Type != "" && !strings.EqualFold(record.Type, params.Type) {
					continue
				}
				entries = append(entries, journalEntry{
					Time:      record.Time,
					Direction: string(record.Direction),
					Type:      record.Type,
					Payload:   record.Payload,
				})
			}

			if done, err := params.EmitJSON(env.Stdout, entries); done {
				return err
			}
			for _, entry := range entries {
				arrow := "<"
				if entry.Direction == string(journal.Sent) {
					arrow = ">"
				}
				fmt.Fprintf(env.Stdout, "%s %s %-7s %s\n",
					entry.Time.Format("15:04:05.000"), arrow, entry.Type, truncate(entry.Payload, params.Width))
			}
			return nil
		},
	}
}

// truncate shortens text to width runes with a trailing ellipsis and
// shows newlines as \n.
func truncate(text string, width int) string {
	text = strings.ReplaceAll(text, "\n", `\n`)
	if width <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= width {
		return text
	}
	return string(runes[:max(width-1, 0)]) + "…"
}
