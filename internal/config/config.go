/*
Package config loads the settings of a counting run.

Values are layered, later sources winning: built-in defaults, an optional YAML
file, FASTREAD_* environment variables, then explicitly set command-line flags.
Keys use the flag spelling (buffer-size, s3.endpoint); the matching environment
variable upper-cases the key and turns '.' and '-' into '_'
(FASTREAD_BUFFER_SIZE, FASTREAD_S3_ENDPOINT).
*/
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
	"github.com/x-stp/fastread/internal/core"
	"github.com/x-stp/fastread/internal/report"
	"github.com/x-stp/fastread/internal/source"
)

// Config is the fully resolved configuration of one run.
type Config struct {
	BufferSize    int      `mapstructure:"buffer-size"`
	BufferPower   int      `mapstructure:"buffer-power"`
	PoolSize      int      `mapstructure:"pool-size"`
	Workers       int      `mapstructure:"workers"`
	Top           int      `mapstructure:"top"`
	Output        string   `mapstructure:"output"`
	Name          string   `mapstructure:"name"`
	Compress      bool     `mapstructure:"compress"`
	SkipMalformed bool     `mapstructure:"skip-malformed"`
	PinWorkers    bool     `mapstructure:"pin-workers"`
	ReadRate      int64    `mapstructure:"read-rate"`
	MetricsAddr   string   `mapstructure:"metrics-addr"`
	Stats         bool     `mapstructure:"stats"`
	Debug         bool     `mapstructure:"debug"`
	S3            S3Config `mapstructure:"s3"`
}

// S3Config holds the object store settings for s3:// inputs.
type S3Config struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access-key"`
	SecretKey string `mapstructure:"secret-key"`
	Region    string `mapstructure:"region"`
	Secure    bool   `mapstructure:"secure"`
}

// EffectiveBufferSize is 2^BufferPower when a power is set, BufferSize otherwise.
func (c *Config) EffectiveBufferSize() int {
	if c.BufferPower > 0 {
		return 1 << c.BufferPower
	}
	return c.BufferSize
}

// Engine returns the sizing of the counting pipeline.
func (c *Config) Engine() core.Config {
	return core.Config{
		BufferSize:    c.EffectiveBufferSize(),
		PoolSize:      c.PoolSize,
		Workers:       c.Workers,
		SkipMalformed: c.SkipMalformed,
		PinWorkers:    c.PinWorkers,
		Debug:         c.Debug,
	}
}

// Source returns the input options.
func (c *Config) Source() source.Options {
	return source.Options{
		ReadRate: c.ReadRate,
		S3: source.S3Config{
			Endpoint:  c.S3.Endpoint,
			AccessKey: c.S3.AccessKey,
			SecretKey: c.S3.SecretKey,
			Region:    c.S3.Region,
			Secure:    c.S3.Secure,
		},
	}
}

// Report returns the output options. Without a configured name the report is
// named after the input.
func (c *Config) Report(input string) report.Options {
	name := c.Name
	if name == "" {
		name = source.BaseName(input)
	}
	return report.Options{
		Dir:      c.Output,
		Name:     name,
		TopN:     c.Top,
		Compress: c.Compress,
	}
}
