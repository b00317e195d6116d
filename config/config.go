package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"yieldedu/crypto"

	"github.com/BurntSushi/toml"
)

// Config is the on-disk daemon configuration. First start writes a default
// file next to a freshly generated owner keystore so a bare checkout boots.
type Config struct {
	ListenAddress     string `toml:"ListenAddress"`
	DataDir           string `toml:"DataDir"`
	Environment       string `toml:"Environment"`
	OwnerAddress      string `toml:"OwnerAddress"`
	OwnerKeystorePath string `toml:"OwnerKeystorePath"`
	TreasuryAddress   string `toml:"TreasuryAddress"`

	Token  TokenConfig  `toml:"Token"`
	Pool   PoolConfig   `toml:"Pool"`
	Borrow BorrowConfig `toml:"Borrow"`
}

// TokenConfig names the protocol token and fixes its ledger address.
type TokenConfig struct {
	Name    string `toml:"Name"`
	Symbol  string `toml:"Symbol"`
	Address string `toml:"Address"`
}

// PoolConfig seeds the yield pool parameters on first boot. Later changes go
// through the owner RPC, not this file.
type PoolConfig struct {
	YieldRate   uint64 `toml:"YieldRate"`
	MinDuration uint64 `toml:"MinDuration"`
	MaxDuration uint64 `toml:"MaxDuration"`
}

// BorrowConfig seeds the borrow protocol risk settings on first boot.
type BorrowConfig struct {
	MinHealthFactor uint64 `toml:"MinHealthFactor"`
	MinimumDuration uint64 `toml:"MinimumDuration"`
}

// Load loads the configuration from the given path.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.ListenAddress) == "" {
		c.ListenAddress = ":8545"
	}
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = "./yieldedu-data"
	}
	if strings.TrimSpace(c.Environment) == "" {
		c.Environment = "dev"
	}
	if strings.TrimSpace(c.Token.Name) == "" {
		c.Token.Name = "EduToken"
	}
	if strings.TrimSpace(c.Token.Symbol) == "" {
		c.Token.Symbol = "YDU"
	}
	if c.Pool.YieldRate == 0 {
		c.Pool.YieldRate = 10
	}
	if c.Pool.MinDuration == 0 {
		c.Pool.MinDuration = 86_400
	}
	if c.Pool.MaxDuration == 0 {
		c.Pool.MaxDuration = 31_536_000
	}
	if c.Borrow.MinHealthFactor == 0 {
		c.Borrow.MinHealthFactor = 1
	}
	if c.Borrow.MinimumDuration == 0 {
		c.Borrow.MinimumDuration = 86_400
	}
	if strings.TrimSpace(c.TreasuryAddress) == "" {
		c.TreasuryAddress = c.OwnerAddress
	}
}

func (c *Config) validate() error {
	if _, err := crypto.DecodeAddress(strings.TrimSpace(c.OwnerAddress)); err != nil {
		return fmt.Errorf("invalid OwnerAddress: %w", err)
	}
	if _, err := crypto.DecodeAddress(strings.TrimSpace(c.TreasuryAddress)); err != nil {
		return fmt.Errorf("invalid TreasuryAddress: %w", err)
	}
	if strings.TrimSpace(c.Token.Address) != "" {
		if _, err := crypto.DecodeAddress(strings.TrimSpace(c.Token.Address)); err != nil {
			return fmt.Errorf("invalid Token.Address: %w", err)
		}
	}
	if c.Pool.MinDuration > c.Pool.MaxDuration {
		return fmt.Errorf("Pool.MinDuration %d exceeds Pool.MaxDuration %d", c.Pool.MinDuration, c.Pool.MaxDuration)
	}
	return nil
}

// Owner returns the decoded owner address.
func (c *Config) Owner() (crypto.Address, error) {
	return crypto.DecodeAddress(strings.TrimSpace(c.OwnerAddress))
}

// Treasury returns the decoded treasury address, falling back to the owner.
func (c *Config) Treasury() (crypto.Address, error) {
	addr := strings.TrimSpace(c.TreasuryAddress)
	if addr == "" {
		return c.Owner()
	}
	return crypto.DecodeAddress(addr)
}

// createDefault creates and saves a default configuration file along with a
// fresh owner keystore.
func createDefault(path string) (*Config, error) {
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}

	keystorePath := defaultKeystorePath(path)
	if err := crypto.SaveToKeystore(keystorePath, key, ""); err != nil {
		return nil, err
	}

	owner := key.PubKey().Address().String()
	cfg := &Config{
		ListenAddress:     ":8545",
		DataDir:           "./yieldedu-data",
		Environment:       "dev",
		OwnerAddress:      owner,
		OwnerKeystorePath: keystorePath,
		TreasuryAddress:   owner,
		Token: TokenConfig{
			Name:   "EduToken",
			Symbol: "YDU",
		},
		Pool: PoolConfig{
			YieldRate:   10,
			MinDuration: 86_400,
			MaxDuration: 31_536_000,
		},
		Borrow: BorrowConfig{
			MinHealthFactor: 1,
			MinimumDuration: 86_400,
		},
	}

	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

func defaultKeystorePath(configPath string) string {
	dir := filepath.Dir(configPath)
	if dir == "." || dir == "" {
		dir = ""
	}
	return filepath.Join(dir, "owner.keystore")
}
