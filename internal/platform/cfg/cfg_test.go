package cfg

import (
	"testing"
	"time"
)

type testConfig struct {
	Addr    string        `mapstructure:"addr"`
	DB      int           `mapstructure:"db"`
	Timeout time.Duration `mapstructure:"timeout"`
}

func (c *testConfig) ApplyDefaults() {
	if c.Addr == "" {
		c.Addr = "localhost:6379"
	}
}

func TestDecode_Basic(t *testing.T) {
	input := map[string]any{
		"addr":    "redis:6379",
		"db":      int64(2), // TOML integers decode as int64
		"timeout": "3s",
	}

	var c testConfig
	if err := Decode(input, &c); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if c.Addr != "redis:6379" {
		t.Errorf("Addr = %q, want %q", c.Addr, "redis:6379")
	}
	if c.DB != 2 {
		t.Errorf("DB = %d, want 2", c.DB)
	}
	if c.Timeout != 3*time.Second {
		t.Errorf("Timeout = %v, want 3s", c.Timeout)
	}
}

func TestDecode_ApplyDefaults(t *testing.T) {
	var c testConfig
	if err := Decode(nil, &c); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if c.Addr != "localhost:6379" {
		t.Errorf("Addr = %q, want default", c.Addr)
	}
}

func TestDecodeWithUnused_ReportsUnusedKeys(t *testing.T) {
	input := map[string]any{
		"addr":  "redis:6379",
		"zeta":  1,
		"alpha": true,
	}

	var c testConfig
	unused, err := DecodeWithUnused(input, &c)
	if err != nil {
		t.Fatalf("DecodeWithUnused failed: %v", err)
	}
	if len(unused) != 2 || unused[0] != "alpha" || unused[1] != "zeta" {
		t.Errorf("unused = %v, want [alpha zeta]", unused)
	}
}

func TestMustDecodeStrict(t *testing.T) {
	var c testConfig
	if err := MustDecodeStrict(map[string]any{"addr": "x"}, &c); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := MustDecodeStrict(map[string]any{"nope": "x"}, &c); err == nil {
		t.Error("expected error for unused key")
	}
}
