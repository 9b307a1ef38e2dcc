// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package glyph

import (
	"cmp"
	"fmt"
	"regexp"
	"strconv"
)

// ServerVersion is the major and minor release of a Pointwise server,
// parsed from "Pointwise V18.4R1" style strings.
type ServerVersion struct {
	Major int
	Minor int
}

// CompatibilityThreshold is the first release that reports a failed
// compatibility request. Older servers ignore the request, so a failure
// from them is not treated as fatal.
var CompatibilityThreshold = ServerVersion{Major: 18, Minor: 3}

var serverVersionPattern = regexp.MustCompile(`Pointwise V(\d+)\.(\d+)`)

// ParseServerVersion extracts the version from a getVersion reply such
// as "Pointwise V18.4R1".
func ParseServerVersion(text string) (ServerVersion, error) {
	match := serverVersionPattern.FindStringSubmatch(text)
	if match == nil {
		return ServerVersion{}, fmt.Errorf("no Pointwise version in %q", text)
	}
	major, err := strconv.Atoi(match[1])
	if err != nil {
		return ServerVersion{}, fmt.Errorf("major version in %q: %w", text, err)
	}
	minor, err := strconv.Atoi(match[2])
	if err != nil {
		return ServerVersion{}, fmt.Errorf("minor version in %q: %w", text, err)
	}
	return ServerVersion{Major: major, Minor: minor}, nil
}

// Compare returns -1, 0, or +1 as v is older than, equal to, or newer
// than other.
func (v ServerVersion) Compare(other ServerVersion) int {
	if c := cmp.Compare(v.Major, other.Major); c != 0 {
		return c
	}
	return cmp.Compare(v.Minor, other.Minor)
}

func (v ServerVersion) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}
