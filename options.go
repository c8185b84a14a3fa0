package misc

import (
	"io/fs"
	"log/slog"
)

type loadConfig struct {
	limits Limits
	logger *slog.Logger
}

type LoadOption func(*loadConfig)

func WithLoadLimits(l Limits) LoadOption {
	return func(c *loadConfig) { c.limits = l }
}

func WithLoadLogger(l *slog.Logger) LoadOption {
	return func(c *loadConfig) { c.logger = l }
}

func newLoadConfig(opts []LoadOption) loadConfig {
	cfg := loadConfig{limits: defaultLimits()}
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.limits = cfg.limits.withDefaults()
	if cfg.logger == nil {
		cfg.logger = Logger()
	}
	return cfg
}

type saveConfig struct {
	compression Compression
	indent      string
	perm        fs.FileMode
	logger      *slog.Logger
}

type SaveOption func(*saveConfig)

// WithCompression sets the payload compression of binary documents.
// It has no effect on JSON documents.
func WithCompression(comp Compression) SaveOption {
	return func(c *saveConfig) { c.compression = comp }
}

// WithIndent sets the per-level indent of JSON documents. An empty indent
// writes compact JSON.
func WithIndent(indent string) SaveOption {
	return func(c *saveConfig) { c.indent = indent }
}

// WithFileMode sets the permission bits of files written by Save.
func WithFileMode(perm fs.FileMode) SaveOption {
	return func(c *saveConfig) { c.perm = perm }
}

func WithSaveLogger(l *slog.Logger) SaveOption {
	return func(c *saveConfig) { c.logger = l }
}

func newSaveConfig(opts []SaveOption) saveConfig {
	cfg := saveConfig{
		compression: CompNone,
		indent:      "  ",
		perm:        0o644,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = Logger()
	}
	return cfg
}
