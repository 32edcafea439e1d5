// Package config loads remsync settings from defaults, a YAML file and
// REMSYNC_ environment variables, then checks them against an embedded
// CUE schema.
package config

import (
	_ "embed"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

//go:embed schema.cue
var schemaSource string

// EnvPrefix marks environment variables read by Load. A double underscore
// separates nesting levels: REMSYNC_API__BASE_URL sets api.base_url.
const EnvPrefix = "REMSYNC_"

// Config is the effective remsync configuration.
type Config struct {
	API     APIConfig     `koanf:"api" json:"api"`
	Journal JournalConfig `koanf:"journal" json:"journal"`
	Log     LogConfig     `koanf:"log" json:"log"`
	Sync    SyncConfig    `koanf:"sync" json:"sync"`
}

// APIConfig locates and authenticates against the reminder service.
type APIConfig struct {
	BaseURL  string `koanf:"base_url" json:"base_url"`
	Timeout  int    `koanf:"timeout" json:"timeout"` // seconds
	InitData string `koanf:"init_data" json:"init_data"`
}

// JournalConfig controls recording of dispatched actions.
type JournalConfig struct {
	Enabled bool   `koanf:"enabled" json:"enabled"`
	Path    string `koanf:"path" json:"path"`
}

// LogConfig selects the slog level and handler.
type LogConfig struct {
	Level  string `koanf:"level" json:"level"`
	Format string `koanf:"format" json:"format"`
}

// SyncConfig tunes mutation behaviour.
type SyncConfig struct {
	ResyncOnDelete bool `koanf:"resync_on_delete" json:"resync_on_delete"`
}

// FieldError is a schema violation at a dotted config path.
type FieldError struct {
	Path    string
	Message string
}

func (e FieldError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// ValidationError collects every schema violation found in one pass.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Error()
	}
	return "invalid config: " + strings.Join(parts, "; ")
}

// Load builds a Config. An empty path means DefaultConfigPath, which may be
// absent; an explicit path must exist.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(NewDefaultProvider(), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	explicit := path != ""
	if !explicit {
		path = DefaultConfigPath()
	}
	path = expandPath(path)

	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	} else if explicit {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cfg.Journal.Path = expandPath(cfg.Journal.Path)
	return &cfg, nil
}

func envKey(s string) string {
	s = strings.TrimPrefix(s, EnvPrefix)
	return strings.ReplaceAll(strings.ToLower(s), "__", ".")
}

// Validate unifies the config with the #Config schema.
func (c *Config) Validate() error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("config schema: %w", err)
	}

	def := schema.LookupPath(cue.ParsePath("#Config"))
	v := def.Unify(ctx.Encode(c))
	err := v.Validate(cue.Concrete(true))
	if err == nil {
		return nil
	}

	verr := &ValidationError{}
	for _, e := range cueerrors.Errors(err) {
		fe := FieldError{Path: fieldPath(e.Path())}
		if fe.Path == "" {
			fe.Message = e.Error()
		} else {
			format, args := e.Msg()
			fe.Message = fmt.Sprintf(format, args...)
		}
		verr.Fields = append(verr.Fields, fe)
	}
	if len(verr.Fields) == 0 {
		verr.Fields = append(verr.Fields, FieldError{Message: err.Error()})
	}
	return verr
}

func fieldPath(sel []string) string {
	if len(sel) > 0 && sel[0] == "#Config" {
		sel = sel[1:]
	}
	return strings.Join(sel, ".")
}

// APITimeout returns the request timeout as a duration.
func (c *Config) APITimeout() time.Duration {
	return time.Duration(c.API.Timeout) * time.Second
}

// Logger builds the process logger. verbose forces debug level.
func (c *Config) Logger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	switch c.Log.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func expandPath(path string) string {
	if path == "" {
		return path
	}

	if len(path) >= 2 && path[:2] == "~/" {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}

	return path
}
