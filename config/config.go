package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

type Identity struct {
	// Admin and Oracle are hex addresses. An empty Oracle is derived from
	// the committee signer key.
	Admin  string
	Oracle string
	// Contract is bound into every ticket validity proof.
	Contract string
}

type Lottery struct {
	// TicketPrice is in wei.
	TicketPrice uint64
	Cooldown    time.Duration
}

type Committee struct {
	Size         int
	Threshold    int
	KeyFile      string
	PollInterval time.Duration
}

type Store struct {
	Path string
}

type Api struct {
	Address string
}

type Log struct {
	Level string
	File  string
}

type Config struct {
	Identity  Identity
	Lottery   Lottery
	Committee Committee
	Store     Store
	Api       Api
	Log       Log
}

var homeDir = filepath.Join(os.Getenv("HOME"), ".lotto")

// Default returns the configuration written by Init when no file is given.
func Default() *Config {
	return &Config{
		Identity: Identity{
			Contract: "lotto",
		},
		Lottery: Lottery{
			TicketPrice: 100000000000000,
			Cooldown:    600 * time.Second,
		},
		Committee: Committee{
			Size:         4,
			Threshold:    3,
			KeyFile:      filepath.Join(homeDir, "committee.toml"),
			PollInterval: 500 * time.Millisecond,
		},
		Store: Store{
			Path: filepath.Join(homeDir, "lotto.db"),
		},
		Api: Api{
			Address: "127.0.0.1:5555",
		},
		Log: Log{
			Level: "info",
		},
	}
}

var (
	once   sync.Once
	loaded *Config
)

var configPath = filepath.Join(homeDir, "config.yml")

func Path() string {
	return configPath
}

// SetPath points Get and Init at another file. It has no effect once Get
// has been called.
func SetPath(path string) {
	configPath = path
}

func Get() *Config {
	once.Do(func() {
		conf, err := Load(configPath)
		if err != nil {
			panic(fmt.Sprintf("error in read config, err: %s", err))
		}
		loaded = conf
	})
	return loaded
}

// Load reads the file at path over the defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "cannot read config %s", path)
	}
	conf := Default()
	if err := v.Unmarshal(conf); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

func (c *Config) Validate() error {
	if c.Committee.Threshold < 1 || c.Committee.Threshold > c.Committee.Size {
		return errors.Errorf("committee threshold %d must be in 1..%d", c.Committee.Threshold, c.Committee.Size)
	}
	if c.Lottery.TicketPrice == 0 {
		return errors.New("ticket price must be positive")
	}
	if c.Committee.PollInterval <= 0 {
		return errors.New("committee poll interval must be positive")
	}
	return nil
}
