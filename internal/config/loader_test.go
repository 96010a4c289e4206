package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"
	"github.com/x-stp/fastread/internal/core"
)

func TestLoader_Defaults(t *testing.T) {
	loader := NewLoader()
	cfg, err := loader.Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BufferSize != core.DefaultBufferSize {
		t.Errorf("BufferSize = %d, want %d", cfg.BufferSize, core.DefaultBufferSize)
	}
	if cfg.PoolSize != core.DefaultPoolSize {
		t.Errorf("PoolSize = %d, want %d", cfg.PoolSize, core.DefaultPoolSize)
	}
	if cfg.Top != core.DefaultTopN {
		t.Errorf("Top = %d, want %d", cfg.Top, core.DefaultTopN)
	}
	if cfg.Output != "." || !cfg.Stats || !cfg.S3.Secure {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}

func TestLoader_LoadFile(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "fastread.yaml")
	content := `
buffer-power: 16
pool-size: 8
workers: 3
top: -1
output: /tmp/reports
compress: true
s3:
  endpoint: minio.local:9000
  region: eu-west-1
  secure: false
`
	if err := os.WriteFile(configFile, []byte(content), 0644); err != nil {
		t.Fatalf("failed to create test config file: %v", err)
	}

	cfg, err := NewLoader().Load(configFile)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.EffectiveBufferSize() != 1<<16 {
		t.Errorf("EffectiveBufferSize() = %d, want %d", cfg.EffectiveBufferSize(), 1<<16)
	}
	if cfg.PoolSize != 8 || cfg.Workers != 3 || cfg.Top != -1 || !cfg.Compress {
		t.Errorf("unexpected values: %+v", cfg)
	}
	if cfg.S3.Endpoint != "minio.local:9000" || cfg.S3.Region != "eu-west-1" || cfg.S3.Secure {
		t.Errorf("unexpected s3 values: %+v", cfg.S3)
	}
	if got := cfg.Engine().BufferSize; got != 1<<16 {
		t.Errorf("Engine().BufferSize = %d, want %d", got, 1<<16)
	}
}

func TestLoader_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := NewLoader().Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.PoolSize != core.DefaultPoolSize {
		t.Errorf("PoolSize = %d, want %d", cfg.PoolSize, core.DefaultPoolSize)
	}
}

func TestLoader_EnvOverridesFile(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "fastread.yaml")
	if err := os.WriteFile(configFile, []byte("pool-size: 8\n"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("FASTREAD_POOL_SIZE", "12")
	t.Setenv("FASTREAD_S3_ACCESS_KEY", "AKIAEXAMPLE")

	cfg, err := NewLoader().Load(configFile)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.PoolSize != 12 {
		t.Errorf("PoolSize = %d, want 12 from the environment", cfg.PoolSize)
	}
	if cfg.S3.AccessKey != "AKIAEXAMPLE" {
		t.Errorf("S3.AccessKey = %q, want AKIAEXAMPLE", cfg.S3.AccessKey)
	}
}

func TestLoader_FlagsOverrideEnv(t *testing.T) {
	t.Setenv("FASTREAD_WORKERS", "2")
	t.Setenv("FASTREAD_TOP", "5")

	fs := pflag.NewFlagSet("count", pflag.ContinueOnError)
	fs.Int("workers", 1, "")
	fs.Int("top", core.DefaultTopN, "")
	fs.String("s3-endpoint", "", "")
	if err := fs.Parse([]string{"--workers", "6", "--s3-endpoint", "s3.example.net"}); err != nil {
		t.Fatalf("parse: %v", err)
	}

	loader := NewLoader()
	if err := loader.BindFlags(fs); err != nil {
		t.Fatalf("BindFlags() error = %v", err)
	}
	cfg, err := loader.Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Workers != 6 {
		t.Errorf("Workers = %d, want 6 from the flag", cfg.Workers)
	}
	if cfg.Top != 5 {
		t.Errorf("Top = %d, want 5 from the environment (flag not set)", cfg.Top)
	}
	if cfg.S3.Endpoint != "s3.example.net" {
		t.Errorf("S3.Endpoint = %q, want s3.example.net", cfg.S3.Endpoint)
	}
}

func TestLoader_Validate(t *testing.T) {
	valid := func() *Config {
		return &Config{BufferSize: 1024, PoolSize: 2, Workers: 1, Top: 10, Output: "."}
	}
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"top all", func(c *Config) { c.Top = -1 }, false},
		{"top below -1", func(c *Config) { c.Top = -2 }, true},
		{"tiny buffer", func(c *Config) { c.BufferSize = 1 }, true},
		{"buffer power wins", func(c *Config) { c.BufferSize = 1; c.BufferPower = 10 }, false},
		{"buffer power too large", func(c *Config) { c.BufferPower = MaxBufferPower + 1 }, true},
		{"negative buffer power", func(c *Config) { c.BufferPower = -1 }, true},
		{"single buffer pool", func(c *Config) { c.PoolSize = 1 }, true},
		{"no workers", func(c *Config) { c.Workers = 0 }, true},
		{"negative read rate", func(c *Config) { c.ReadRate = -1 }, true},
		{"no output", func(c *Config) { c.Output = "" }, true},
	}

	loader := NewLoader()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			if err := loader.Validate(c); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoader_ValidateBufferPowerRange(t *testing.T) {
	c := &Config{BufferPower: MaxBufferPower + 1, PoolSize: 2, Workers: 1, Top: 10, Output: "."}
	err := NewLoader().Validate(c)
	if err == nil {
		t.Fatal("expected an error for an oversized buffer power")
	}
	if want := fmt.Sprintf("between 0 and %d", MaxBufferPower); !strings.Contains(err.Error(), want) {
		t.Errorf("error %q does not state the accepted range %q", err, want)
	}
}

func TestConfig_ReportNameFromInput(t *testing.T) {
	c := &Config{Output: "out", Top: 3}
	if got := c.Report("/var/log/edge.log.gz").Name; got != "edge" {
		t.Errorf("Report().Name = %q, want edge", got)
	}
	c.Name = "custom"
	if got := c.Report("/var/log/edge.log.gz").Name; got != "custom" {
		t.Errorf("Report().Name = %q, want custom", got)
	}
}
