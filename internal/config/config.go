// Package config loads grossd's configuration from a sequence of
// "name = value" lines (not YAML: the wire format itself is part of the
// specification), applies defaults, and exposes it through a singleton
// accessor with environment-variable overrides, mirroring the teacher's
// internal/config singleton/override/defaults shape.
package config

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
)

// Config is the fully-resolved daemon configuration.
type Config struct {
	Host string
	Port string

	SyncHost string
	SyncPort string

	PeerHost string
	PeerPort string

	StatusHost string
	StatusPort string

	RotateIntervalSec int
	FilterBits        uint
	NumberBuffers     int

	Update string // "grey" or "always"

	DNSBL []string
	RHSBL []string

	StateFile string

	SuspiciousThreshold int
	ToleranceCeiling    int32
}

var (
	instance *Config
	once     sync.Once
)

// Get returns the singleton config, loaded from the path in GROSS_CONFIG
// (or the default path) the first time it is called.
func Get() *Config {
	once.Do(func() {
		path := getEnv("GROSS_CONFIG", "/etc/gross/gross.conf")
		cfg, err := Load(path)
		if err != nil {
			slog.Warn("config: failed to load config file, using defaults", "path", path, "error", err)
			cfg = &Config{}
			cfg.ApplyEnvOverrides()
			cfg.ApplyDefaults()
		}
		instance = cfg
	})
	return instance
}

// Reset clears the singleton, for tests that need to reload configuration.
func Reset() {
	once = sync.Once{}
	instance = nil
}

// Load parses a "name = value" line file into a Config. Unknown keys are
// logged and ignored rather than rejected, so operators can carry forward
// keys a future version understands.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	cfg, err := Parse(f)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnvOverrides()
	cfg.ApplyDefaults()
	return cfg, nil
}

// Parse reads "name = value" lines, one per line, blank lines and lines
// starting with "#" ignored. Repeatable keys (dnsbl, rhsbl) accumulate.
func Parse(r io.Reader) (*Config, error) {
	cfg := &Config{}
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := splitAssignment(line)
		if !ok {
			return nil, fmt.Errorf("config: line %d: malformed entry %q", lineNo, line)
		}
		if err := cfg.set(key, value); err != nil {
			return nil, fmt.Errorf("config: line %d: %w", lineNo, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func splitAssignment(line string) (key, value string, ok bool) {
	idx := strings.Index(line, "=")
	if idx < 0 {
		return "", "", false
	}
	key = strings.TrimSpace(line[:idx])
	value = strings.TrimSpace(line[idx+1:])
	if key == "" {
		return "", "", false
	}
	return key, value, true
}

func (c *Config) set(key, value string) error {
	switch key {
	case "host":
		c.Host = value
	case "port":
		c.Port = value
	case "synchost":
		c.SyncHost = value
	case "syncport":
		c.SyncPort = value
	case "peerhost":
		c.PeerHost = value
	case "peerport":
		c.PeerPort = value
	case "status_host":
		c.StatusHost = value
	case "status_port":
		c.StatusPort = value
	case "rotate_interval":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("rotate_interval: %w", err)
		}
		c.RotateIntervalSec = n
	case "filter_bits":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("filter_bits: %w", err)
		}
		if n < 5 || n > 32 {
			return fmt.Errorf("filter_bits: %d out of range [5, 32]", n)
		}
		c.FilterBits = uint(n)
	case "number_buffers":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("number_buffers: %w", err)
		}
		c.NumberBuffers = n
	case "update":
		c.Update = value
	case "dnsbl":
		c.DNSBL = append(c.DNSBL, value)
	case "rhsbl":
		c.RHSBL = append(c.RHSBL, value)
	case "statefile":
		c.StateFile = value
	case "suspicious_threshold":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("suspicious_threshold: %w", err)
		}
		c.SuspiciousThreshold = n
	case "tolerance_ceiling":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("tolerance_ceiling: %w", err)
		}
		c.ToleranceCeiling = int32(n)
	default:
		slog.Warn("config: ignoring unrecognized key", "key", key)
	}
	return nil
}

// ApplyEnvOverrides lets operators override individual keys without
// touching the config file, matching the teacher's override pattern.
func (c *Config) ApplyEnvOverrides() {
	c.Host = getEnv("GROSS_HOST", c.Host)
	c.Port = getEnv("GROSS_PORT", c.Port)
	c.SyncHost = getEnv("GROSS_SYNCHOST", c.SyncHost)
	c.SyncPort = getEnv("GROSS_SYNCPORT", c.SyncPort)
	c.PeerHost = getEnv("GROSS_PEERHOST", c.PeerHost)
	c.PeerPort = getEnv("GROSS_PEERPORT", c.PeerPort)
	c.StatusHost = getEnv("GROSS_STATUS_HOST", c.StatusHost)
	c.StatusPort = getEnv("GROSS_STATUS_PORT", c.StatusPort)
	c.StateFile = getEnv("GROSS_STATEFILE", c.StateFile)

	if v := getEnvInt("GROSS_ROTATE_INTERVAL", 0); v > 0 {
		c.RotateIntervalSec = v
	}
	if v := getEnvInt("GROSS_FILTER_BITS", 0); v > 0 {
		c.FilterBits = uint(v)
	}
	if v := getEnvInt("GROSS_NUMBER_BUFFERS", 0); v > 0 {
		c.NumberBuffers = v
	}
}

// ApplyDefaults fills in every key's documented default.
func (c *Config) ApplyDefaults() {
	if c.Host == "" {
		c.Host = "127.0.0.1"
	}
	if c.Port == "" {
		c.Port = "1111"
	}
	if c.SyncHost == "" {
		c.SyncHost = "127.0.0.1"
	}
	if c.SyncPort == "" {
		c.SyncPort = "1112"
	}
	if c.StatusHost == "" {
		c.StatusHost = "127.0.0.1"
	}
	if c.StatusPort == "" {
		c.StatusPort = "1121"
	}
	if c.RotateIntervalSec == 0 {
		c.RotateIntervalSec = 3600
	}
	if c.FilterBits == 0 {
		c.FilterBits = 22
	}
	if c.NumberBuffers == 0 {
		c.NumberBuffers = 8
	}
	if c.Update == "" {
		c.Update = "grey"
	}
	if c.SuspiciousThreshold == 0 {
		c.SuspiciousThreshold = 1
	}
	if c.ToleranceCeiling == 0 {
		c.ToleranceCeiling = 10
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}
