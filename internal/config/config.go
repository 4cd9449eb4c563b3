// Package config loads the telnet echo servers' runtime settings (listen
// addresses, the access-control denylist, and the timestamp interval)
// following a JSON-file-with-defaults pattern, and watches the file so a
// changed Config can be handed to a reload callback.
package config

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"sync"
	"time"
)

// Config holds the two servers' runtime settings.
type Config struct {
	// Host is the bind address for both listeners; empty binds all
	// interfaces.
	Host string `json:"host"`
	// CharPort is the character-mode server's TCP port.
	CharPort int `json:"char_port"`
	// LinePort is the line-mode binary server's TCP port.
	LinePort int `json:"line_port"`
	// Backlog is the listen backlog for both servers.
	Backlog int `json:"backlog"`
	// TimestampInterval is parsed from the file but not applied: the
	// session timestamp emitter always runs every 10 seconds, whatever
	// this field holds.
	TimestampInterval Duration `json:"timestamp_interval"`
	// DeniedCIDRs lists client networks rejected by the access-control
	// hook. Empty denies nothing.
	DeniedCIDRs []string `json:"denied_cidrs"`
}

// Duration is a time.Duration that unmarshals from JSON strings like "10s"
// for human-readable interval fields.
type Duration time.Duration

// UnmarshalJSON accepts a Go duration string ("10s", "1m").
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("config: invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalJSON renders the duration back to its string form.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// Default returns the configuration used when no config file is present:
// all interfaces, ports 9092/9093, backlog 10, a 10s timestamp interval,
// and no denied networks.
func Default() Config {
	return Config{
		Host:              "",
		CharPort:          9092,
		LinePort:          9093,
		Backlog:           10,
		TimestampInterval: Duration(10 * time.Second),
	}
}

// Load reads Config from path, falling back to Default() if the file does
// not exist. An existing-but-invalid file is reported as an error: absence
// is tolerated, corruption is not.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
	}

	cfg := Default()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects a Config with nonsensical settings.
func (c Config) Validate() error {
	if c.CharPort <= 0 || c.CharPort > 65535 {
		return fmt.Errorf("char_port %d out of range", c.CharPort)
	}
	if c.LinePort <= 0 || c.LinePort > 65535 {
		return fmt.Errorf("line_port %d out of range", c.LinePort)
	}
	if c.CharPort == c.LinePort {
		return fmt.Errorf("char_port and line_port must differ")
	}
	if c.Backlog < 0 {
		return fmt.Errorf("backlog %d must not be negative", c.Backlog)
	}
	for _, cidr := range c.DeniedCIDRs {
		if _, _, err := net.ParseCIDR(cidr); err != nil {
			return fmt.Errorf("denied_cidrs: %q: %w", cidr, err)
		}
	}
	return nil
}

// CharAddr returns the listen address for the character-mode server.
func (c Config) CharAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.CharPort)
}

// LineAddr returns the listen address for the line-mode binary server.
func (c Config) LineAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.LinePort)
}

// AccessControl implements a client-address accept/deny predicate evaluated
// against the current denied-CIDR list. The default Config denies nothing,
// accepting every peer.
type AccessControl struct {
	mu     sync.RWMutex
	denied []*net.IPNet
}

// NewAccessControl builds an AccessControl from a Config's DeniedCIDRs.
// cfg is assumed already validated.
func NewAccessControl(cfg Config) *AccessControl {
	ac := &AccessControl{}
	ac.Reload(cfg)
	return ac
}

// Reload atomically replaces the denied-network list, used by the config
// file watcher to apply a hot-reloaded configuration file without
// restarting the listeners.
func (ac *AccessControl) Reload(cfg Config) {
	nets := make([]*net.IPNet, 0, len(cfg.DeniedCIDRs))
	for _, cidr := range cfg.DeniedCIDRs {
		if _, n, err := net.ParseCIDR(cidr); err == nil {
			nets = append(nets, n)
		}
	}
	ac.mu.Lock()
	ac.denied = nets
	ac.mu.Unlock()
}

// Accept reports whether a client at addr may connect. addr is typically a
// net.Conn.RemoteAddr().String() of the form "ip:port".
func (ac *AccessControl) Accept(addr string) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return true
	}

	ac.mu.RLock()
	defer ac.mu.RUnlock()
	for _, n := range ac.denied {
		if n.Contains(ip) {
			return false
		}
	}
	return true
}
