// Package config loads the dispatcher's JSON configuration file and
// exposes it as a process-wide, hot-swappable pointer.
package config

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"
)

const (
	// MinCommandPoolSize is the floor applied to command_buffer.
	MinCommandPoolSize = 8
	// MinBufferSize is the floor applied to connection_buffer_size.
	MinBufferSize = 2048
	// DefaultSocket is used when the config file omits "socket".
	DefaultSocket = "127.0.0.1:5882"
)

// rawConfig mirrors the on-disk JSON shape exactly.
type rawConfig struct {
	Secret               string `json:"secret"`
	Socket               string `json:"socket"`
	Workers              uint32 `json:"workers"`
	CommandBuffer        uint32 `json:"command_buffer"`
	Node                 string `json:"node"`
	ConnectionBufferSize uint32 `json:"connection_buffer_size"`
	LogDir               string `json:"log_dir"`
	LogRotationEnabled   *bool  `json:"log_rotation_enabled"`
	LogKeepDays          int    `json:"log_keep_days"`
	Debug                bool   `json:"debug"`
}

// Config holds the resolved, floored configuration for one process run.
type Config struct {
	secret               string
	socket               string
	workers              int
	commandBuffer         int
	node                 string
	connectionBufferSize int
	logDir               string
	logRotationEnabled   bool
	logKeepDays          int
	debug                bool

	filePath string
	modTime  time.Time
}

var globalConfig atomic.Pointer[Config]

// Get returns the currently active configuration, or nil before Load.
func Get() *Config {
	return globalConfig.Load()
}

// Load reads and parses the JSON configuration file at filePath.
//
// Unlike most of this server's collaborators, a missing or malformed
// configuration file is fatal: the process must terminate with a
// non-zero exit on missing/unreadable/malformed configuration, so
// Load returns an error rather than silently defaulting.
func Load(filePath string) (*Config, error) {
	absPath, err := filepath.Abs(filePath)
	if err != nil {
		absPath = filePath
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("config: stat %q: %w", absPath, err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("config: read %q: %w", absPath, err)
	}

	var raw rawConfig
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", absPath, err)
	}

	socket := raw.Socket
	if socket == "" {
		socket = DefaultSocket
	}
	if _, _, err := net.SplitHostPort(socket); err != nil {
		return nil, fmt.Errorf("config: invalid socket %q: %w", socket, err)
	}

	commandBuffer := int(raw.CommandBuffer)
	if commandBuffer < MinCommandPoolSize {
		commandBuffer = MinCommandPoolSize
	}
	connectionBufferSize := int(raw.ConnectionBufferSize)
	if connectionBufferSize < MinBufferSize {
		connectionBufferSize = MinBufferSize
	}

	workers := int(raw.Workers)
	if workers <= 0 {
		workers = 1
	}

	logDir := raw.LogDir
	if logDir == "" {
		logDir = "./logs"
	}
	logRotationEnabled := true
	if raw.LogRotationEnabled != nil {
		logRotationEnabled = *raw.LogRotationEnabled
	}
	logKeepDays := raw.LogKeepDays
	if logKeepDays <= 0 {
		logKeepDays = 30
	}

	cfg := &Config{
		secret:               raw.Secret,
		socket:               socket,
		workers:              workers,
		commandBuffer:        commandBuffer,
		node:                 raw.Node,
		connectionBufferSize: connectionBufferSize,
		logDir:               logDir,
		logRotationEnabled:   logRotationEnabled,
		logKeepDays:          logKeepDays,
		debug:                raw.Debug,
		filePath:             absPath,
		modTime:              info.ModTime(),
	}

	globalConfig.Store(cfg)
	return cfg, nil
}

// Secret returns the shared authentication secret.
func (c *Config) Secret() string { return c.secret }

// Socket returns the "host:port" listen address.
func (c *Config) Socket() string { return c.socket }

// Workers returns the worker pool size.
func (c *Config) Workers() int { return c.workers }

// CommandBufferSize returns the dispatch table size, floored to MinCommandPoolSize.
func (c *Config) CommandBufferSize() int { return c.commandBuffer }

// Node returns the node name embedded in minted CUIDs.
func (c *Config) Node() string { return c.node }

// ConnectionBufferSize returns the per-read buffer size, floored to MinBufferSize.
func (c *Config) ConnectionBufferSize() int { return c.connectionBufferSize }

// LogDir returns the directory rotated log files are written to.
func (c *Config) LogDir() string { return c.logDir }

// LogRotationEnabled reports whether daily log rotation is enabled.
func (c *Config) LogRotationEnabled() bool { return c.logRotationEnabled }

// LogKeepDays returns how many days of rotated logs to retain.
func (c *Config) LogKeepDays() int { return c.logKeepDays }

// IsDebug reports whether debug-level logging is requested.
func (c *Config) IsDebug() bool { return c.debug }

// FilePath returns the absolute path the configuration was loaded from.
func (c *Config) FilePath() string { return c.filePath }

// String renders a one-line description for startup/shutdown logs,
// the same role options.rs's Description impl played in the original.
func (c *Config) String() string {
	return fmt.Sprintf("Server %s at %s.", c.node, c.socket)
}
