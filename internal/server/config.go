package server

import (
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/feltnet/felt/internal/table"
)

// Config is the complete server configuration, loaded from HCL with CLI
// overrides applied on top. It is an immutable snapshot: the registry
// copies per-table rules out of it at startup and running tables never
// see changes.
type Config struct {
	Server ServerSettings  `hcl:"server,block"`
	Tables []TableSettings `hcl:"table,block"`
}

// ServerSettings contains server-level configuration.
type ServerSettings struct {
	Address  string `hcl:"address,optional"`
	Port     int    `hcl:"port,optional"`
	LogLevel string `hcl:"log_level,optional"`
	Seed     int64  `hcl:"seed,optional"`
}

// TableSettings defines one table. Zero-valued fields fall back to the
// table package defaults.
type TableSettings struct {
	Name               string `hcl:"name,label"`
	MinPlayers         int    `hcl:"min_players,optional"`
	MaxPlayers         int    `hcl:"max_players,optional"`
	SmallBlind         int    `hcl:"small_blind,optional"`
	BigBlind           int    `hcl:"big_blind,optional"`
	MinBuyIn           int    `hcl:"min_buy_in,optional"`
	MaxBuyIn           int    `hcl:"max_buy_in,optional"`
	DefaultBuyIn       int    `hcl:"default_buy_in,optional"`
	TurnTimerMs        int    `hcl:"turn_timer_ms,optional"`
	TimeBankSeconds    int    `hcl:"time_bank_seconds,optional"`
	HandStartDelayMs   int    `hcl:"hand_start_delay_ms,optional"`
	ShowdownDelayMs    int    `hcl:"showdown_delay_ms,optional"`
	SitOutAutoRemoveMs int    `hcl:"sit_out_auto_remove_ms,optional"`
	MaxHandHistory     int    `hcl:"max_hand_history,optional"`
	EloKFactor         int    `hcl:"elo_k_factor,optional"`
	DefaultElo         int    `hcl:"default_elo,optional"`
}

// DefaultConfig returns a single-table configuration with the standard
// rules.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerSettings{
			Address:  "localhost",
			Port:     8080,
			LogLevel: "info",
		},
		Tables: []TableSettings{{Name: "main"}},
	}
}

// ExampleConfig is the commented default config printed by `felt config`.
const ExampleConfig = `# felt server configuration

server {
  address   = "localhost"
  port      = 8080
  log_level = "info"
  # seed = 12345   # fixed RNG seed for reproducible deals
}

# One block per table. Omitted keys use the defaults shown.
table "main" {
  min_players            = 2
  max_players            = 9
  small_blind            = 1
  big_blind              = 2
  min_buy_in             = 40
  max_buy_in             = 400
  default_buy_in         = 200
  turn_timer_ms          = 15000
  time_bank_seconds      = 30
  hand_start_delay_ms    = 3000
  showdown_delay_ms      = 2000
  sit_out_auto_remove_ms = 600000
  max_hand_history       = 100
  elo_k_factor           = 32
  default_elo            = 1000
}
`

// Load reads an HCL config file. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("parse %s: %s", path, diags.Error())
	}

	var cfg Config
	if diags := gohcl.DecodeBody(file.Body, nil, &cfg); diags.HasErrors() {
		return nil, fmt.Errorf("decode %s: %s", path, diags.Error())
	}

	if cfg.Server.Address == "" {
		cfg.Server.Address = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = "info"
	}
	if len(cfg.Tables) == 0 {
		cfg.Tables = []TableSettings{{Name: "main"}}
	}
	return &cfg, nil
}

// Validate rejects configurations the registry cannot run.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Server.Port)
	}
	if len(c.Tables) == 0 {
		return fmt.Errorf("at least one table must be configured")
	}
	seen := make(map[string]bool)
	for _, ts := range c.Tables {
		if ts.Name == "" {
			return fmt.Errorf("table name must not be empty")
		}
		if seen[ts.Name] {
			return fmt.Errorf("duplicate table name %q", ts.Name)
		}
		seen[ts.Name] = true

		tc := ts.TableConfig()
		if tc.SmallBlind <= 0 {
			return fmt.Errorf("table %s: small blind must be positive", ts.Name)
		}
		if tc.BigBlind <= tc.SmallBlind {
			return fmt.Errorf("table %s: big blind must exceed the small blind", ts.Name)
		}
		if tc.MinPlayers < 2 || tc.MaxPlayers > 9 || tc.MinPlayers > tc.MaxPlayers {
			return fmt.Errorf("table %s: player range %d-%d is out of bounds", ts.Name, tc.MinPlayers, tc.MaxPlayers)
		}
		if tc.MinBuyIn <= 0 || tc.MinBuyIn > tc.MaxBuyIn {
			return fmt.Errorf("table %s: buy-in range %d-%d is invalid", ts.Name, tc.MinBuyIn, tc.MaxBuyIn)
		}
		if tc.DefaultBuyIn < tc.MinBuyIn || tc.DefaultBuyIn > tc.MaxBuyIn {
			return fmt.Errorf("table %s: default buy-in %d is outside %d-%d", ts.Name, tc.DefaultBuyIn, tc.MinBuyIn, tc.MaxBuyIn)
		}
	}
	return nil
}

// Addr returns the host:port the server binds.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Address, c.Server.Port)
}

// TableConfig converts the settings block to table rules, filling gaps
// with the table package defaults.
func (ts TableSettings) TableConfig() table.Config {
	cfg := table.DefaultConfig()
	if ts.MinPlayers > 0 {
		cfg.MinPlayers = ts.MinPlayers
	}
	if ts.MaxPlayers > 0 {
		cfg.MaxPlayers = ts.MaxPlayers
	}
	if ts.SmallBlind > 0 {
		cfg.SmallBlind = ts.SmallBlind
	}
	if ts.BigBlind > 0 {
		cfg.BigBlind = ts.BigBlind
	}
	if ts.MinBuyIn > 0 {
		cfg.MinBuyIn = ts.MinBuyIn
	}
	if ts.MaxBuyIn > 0 {
		cfg.MaxBuyIn = ts.MaxBuyIn
	}
	if ts.DefaultBuyIn > 0 {
		cfg.DefaultBuyIn = ts.DefaultBuyIn
	}
	if ts.TurnTimerMs > 0 {
		cfg.TurnTimer = time.Duration(ts.TurnTimerMs) * time.Millisecond
	}
	if ts.TimeBankSeconds > 0 {
		cfg.TimeBankSeconds = ts.TimeBankSeconds
	}
	if ts.HandStartDelayMs > 0 {
		cfg.HandStartDelay = time.Duration(ts.HandStartDelayMs) * time.Millisecond
	}
	if ts.ShowdownDelayMs > 0 {
		cfg.ShowdownDelay = time.Duration(ts.ShowdownDelayMs) * time.Millisecond
	}
	if ts.SitOutAutoRemoveMs > 0 {
		cfg.SitOutAutoRemove = time.Duration(ts.SitOutAutoRemoveMs) * time.Millisecond
	}
	if ts.MaxHandHistory > 0 {
		cfg.MaxHandHistory = ts.MaxHandHistory
	}
	if ts.EloKFactor > 0 {
		cfg.EloKFactor = float64(ts.EloKFactor)
	}
	if ts.DefaultElo > 0 {
		cfg.DefaultElo = float64(ts.DefaultElo)
	}
	return cfg
}
