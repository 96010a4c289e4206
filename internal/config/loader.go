package config

/*
fastread — fast tool in Go for counting domains and URIs in large access logs
Copyright (C) 2025  Pepijn van der Stap <rxtls@vanderstap.info>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU Affero General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU Affero General Public License for more details.

You should have received a copy of the GNU Affero General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/x-stp/fastread/internal/core"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "FASTREAD"

// MaxBufferPower caps --buffer-power at 1 GiB buffers.
const MaxBufferPower = 30

// flagKeys maps flag names that differ from their config key.
var flagKeys = map[string]string{
	"s3-endpoint":   "s3.endpoint",
	"s3-access-key": "s3.access-key",
	"s3-secret-key": "s3.secret-key",
	"s3-region":     "s3.region",
	"s3-secure":     "s3.secure",
}

// Loader handles configuration loading and validation
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return &Loader{v: v}
}

// BindFlags binds every flag of fs to its config key. Only flags the user set
// override lower layers.
func (l *Loader) BindFlags(fs *pflag.FlagSet) error {
	var err error
	fs.VisitAll(func(f *pflag.Flag) {
		if err != nil {
			return
		}
		key, ok := flagKeys[f.Name]
		if !ok {
			key = f.Name
		}
		err = l.v.BindPFlag(key, f)
	})
	return err
}

// Load loads configuration from defaults, path (optional), the environment and bound flags.
func (l *Loader) Load(path string) (*Config, error) {
	l.setDefaults()

	if path != "" {
		l.v.SetConfigFile(path)
		if err := l.v.ReadInConfig(); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var config Config
	if err := l.v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := l.Validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func (l *Loader) setDefaults() {
	// Pipeline defaults
	l.v.SetDefault("buffer-size", core.DefaultBufferSize)
	l.v.SetDefault("buffer-power", 0)
	l.v.SetDefault("pool-size", core.DefaultPoolSize)
	l.v.SetDefault("workers", runtime.NumCPU())
	l.v.SetDefault("skip-malformed", false)
	l.v.SetDefault("pin-workers", false)
	l.v.SetDefault("read-rate", 0)

	// Output defaults
	l.v.SetDefault("top", core.DefaultTopN)
	l.v.SetDefault("output", ".")
	l.v.SetDefault("name", "")
	l.v.SetDefault("compress", false)

	// Observability defaults
	l.v.SetDefault("metrics-addr", "")
	l.v.SetDefault("stats", true)
	l.v.SetDefault("debug", false)

	// Object store defaults
	l.v.SetDefault("s3.endpoint", "")
	l.v.SetDefault("s3.access-key", "")
	l.v.SetDefault("s3.secret-key", "")
	l.v.SetDefault("s3.region", "")
	l.v.SetDefault("s3.secure", true)
}

// Validate checks the loaded configuration.
func (l *Loader) Validate(c *Config) error {
	if c.BufferPower < 0 || c.BufferPower > MaxBufferPower {
		return fmt.Errorf("buffer-power %d: must be between 0 and %d", c.BufferPower, MaxBufferPower)
	}
	if size := c.EffectiveBufferSize(); size < core.MinBufferSize {
		return fmt.Errorf("buffer-size %d: must be at least %d", size, core.MinBufferSize)
	}
	if c.PoolSize < core.MinPoolSize {
		return fmt.Errorf("pool-size %d: must be at least %d", c.PoolSize, core.MinPoolSize)
	}
	if c.Workers < 1 || c.Workers > core.MaxWorkers {
		return fmt.Errorf("workers %d: must be between 1 and %d", c.Workers, core.MaxWorkers)
	}
	if c.Top < -1 {
		return fmt.Errorf("top %d: must be -1 (all) or more", c.Top)
	}
	if c.ReadRate < 0 {
		return fmt.Errorf("read-rate %d: must not be negative", c.ReadRate)
	}
	if c.Output == "" {
		return errors.New("output directory is required")
	}
	return nil
}
