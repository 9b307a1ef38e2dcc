// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// Environment variables read by Resolve and the CLI.
const (
	EnvPort   = "PWI_GLYPH_SERVER_PORT"
	EnvAuth   = "PWI_GLYPH_SERVER_AUTH"
	EnvHost   = "PWI_GLYPH_SERVER_HOST"
	EnvConfig = "GLYPH_CONFIG"
)

// Defaults applied when no layer sets a field.
const (
	DefaultHost              = "localhost"
	DefaultPort              = 2807
	DefaultConnectTimeout    = 5 * time.Second
	DefaultRetryInterval     = 100 * time.Millisecond
	DefaultConnectAttempts   = 5
	DefaultStartupTimeout    = 30 * time.Second
	DefaultProcessingTimeout = 10 * time.Second
)

// Duration is a time.Duration written as "5s" or "250ms" in profile
// files.
type Duration time.Duration

// UnmarshalText parses a Go duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalText renders the duration in Go syntax.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Connection is the complete client configuration.
type Connection struct {
	// Host is the server host name or address.
	Host string `yaml:"host,omitempty" json:"host,omitempty"`

	// Port is the server TCP port.
	Port int `yaml:"port,omitempty" json:"port,omitempty"`

	// Auth is the token sent in the AUTH frame.
	Auth string `yaml:"auth,omitempty" json:"auth,omitempty"`

	// Version is the Glyph compatibility version ("X", "X.Y", or
	// "X.Y.Z") requested after authentication. Empty uses the server's
	// current version.
	Version string `yaml:"version,omitempty" json:"version,omitempty"`

	ConnectTimeout  Duration `yaml:"connect_timeout,omitempty" json:"connect_timeout,omitempty"`
	RetryInterval   Duration `yaml:"retry_interval,omitempty" json:"retry_interval,omitempty"`
	ConnectAttempts int      `yaml:"connect_attempts,omitempty" json:"connect_attempts,omitempty"`

	// Server configures a self-hosted server process.
	Server Server `yaml:"server,omitempty" json:"server,omitempty"`
}

// Server holds the settings for launching a batch Glyph server.
type Server struct {
	// Program is the executable to run. Empty means "pointwise -b"
	// (tclsh on Windows) found on PATH.
	Program string `yaml:"program,omitempty" json:"program,omitempty"`

	// Args are passed to Program. Ignored when Program is empty.
	Args []string `yaml:"args,omitempty" json:"args,omitempty"`

	// MinimumVersion is appended to "package require PWI_Glyph".
	MinimumVersion string `yaml:"minimum_version,omitempty" json:"minimum_version,omitempty"`

	StartupTimeout    Duration `yaml:"startup_timeout,omitempty" json:"startup_timeout,omitempty"`
	ProcessingTimeout Duration `yaml:"processing_timeout,omitempty" json:"processing_timeout,omitempty"`
}

// Default returns the built-in defaults.
func Default() Connection {
	return Connection{
		Host:            DefaultHost,
		Port:            DefaultPort,
		ConnectTimeout:  Duration(DefaultConnectTimeout),
		RetryInterval:   Duration(DefaultRetryInterval),
		ConnectAttempts: DefaultConnectAttempts,
		Server: Server{
			StartupTimeout:    Duration(DefaultStartupTimeout),
			ProcessingTimeout: Duration(DefaultProcessingTimeout),
		},
	}
}

// LookupEnv matches os.LookupEnv.
type LookupEnv func(key string) (string, bool)

// FromEnvironment reads the connection settings carried by environment
// variables. A nil lookup uses os.LookupEnv.
func FromEnvironment(lookup LookupEnv) (Connection, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	var connection Connection
	if value, ok := lookup(EnvHost); ok {
		connection.Host = strings.TrimSpace(value)
	}
	if value, ok := lookup(EnvAuth); ok {
		connection.Auth = value
	}
	if value, ok := lookup(EnvPort); ok && strings.TrimSpace(value) != "" {
		port, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || port <= 0 || port > 65535 {
			return Connection{}, fmt.Errorf("%s=%q is not a valid TCP port", EnvPort, value)
		}
		connection.Port = port
	}
	return connection, nil
}

// Merge overlays layers field by field. The first layer with a non-zero
// value for a field wins.
func Merge(layers ...Connection) Connection {
	var merged Connection
	target := reflect.ValueOf(&merged).Elem()
	for _, layer := range layers {
		fill(target, reflect.ValueOf(layer))
	}
	return merged
}

func fill(target, source reflect.Value) {
	for i := range target.NumField() {
		field := target.Field(i)
		if field.Kind() == reflect.Struct {
			fill(field, source.Field(i))
			continue
		}
		if field.IsZero() {
			field.Set(source.Field(i))
		}
	}
}

// Resolve merges explicit settings over the environment, then profile,
// then defaults.
func Resolve(explicit Connection, lookup LookupEnv, profile Connection) (Connection, error) {
	environment, err := FromEnvironment(lookup)
	if err != nil {
		return Connection{}, err
	}
	return Merge(explicit, environment, profile, Default()), nil
}

// File is a profile file: named connections plus the one to use when
// none is named.
type File struct {
	Current  string                `yaml:"current,omitempty" json:"current,omitempty"`
	Profiles map[string]Connection `yaml:"profiles,omitempty" json:"profiles,omitempty"`
}

// ErrUnknownProfile is returned by Profile for a name the file lacks.
var ErrUnknownProfile = errors.New("unknown profile")

// Profile returns the named connection, or the current one when name is
// empty. A file with no current profile yields a zero Connection.
func (f *File) Profile(name string) (Connection, error) {
	if name == "" {
		name = f.Current
	}
	if name == "" {
		return Connection{}, nil
	}
	profile, ok := f.Profiles[name]
	if !ok {
		return Connection{}, fmt.Errorf("%w %q (have %s)", ErrUnknownProfile, name, strings.Join(f.Names(), ", "))
	}
	return profile, nil
}

// Names lists the profile names in sorted order.
func (f *File) Names() []string {
	names := make([]string, 0, len(f.Profiles))
	for name := range f.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LoadFile reads a profile file. ".json" and ".jsonc" files are JSON
// with comments and trailing commas allowed; anything else is YAML. A
// missing file loads as an empty File.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &File{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return Parse(data, filepath.Ext(path))
}

// Parse decodes profile file content. ext selects the format the same
// way LoadFile does.
func Parse(data []byte, ext string) (*File, error) {
	file := &File{}
	switch strings.ToLower(ext) {
	case ".json", ".jsonc":
		decoder := json.NewDecoder(strings.NewReader(string(jsonc.ToJSON(data))))
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(file); err != nil {
			return nil, fmt.Errorf("parsing JSON config: %w", err)
		}
	default:
		decoder := yaml.NewDecoder(strings.NewReader(string(data)))
		decoder.KnownFields(true)
		if err := decoder.Decode(file); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parsing YAML config: %w", err)
		}
	}
	if file.Current != "" {
		if _, ok := file.Profiles[file.Current]; !ok {
			return nil, fmt.Errorf("current profile %q is not defined", file.Current)
		}
	}
	return file, nil
}
