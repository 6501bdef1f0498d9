package rtipcconfig

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SocketPath == "" {
		t.Fatalf("default SocketPath is empty")
	}
	if cfg.Backlog < 1 {
		t.Fatalf("default Backlog = %d", cfg.Backlog)
	}
	if cfg.LogLevel != "info" || cfg.LogFormat != "json" {
		t.Fatalf("default log settings = %s/%s", cfg.LogLevel, cfg.LogFormat)
	}
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("RTIPC_SOCKET_PATH", "/tmp/test-rtipc.sock")
	t.Setenv("RTIPC_BACKLOG", "4")
	t.Setenv("RTIPC_LOG_LEVEL", "debug")

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SocketPath != "/tmp/test-rtipc.sock" {
		t.Fatalf("SocketPath = %q", cfg.SocketPath)
	}
	if cfg.Backlog != 4 {
		t.Fatalf("Backlog = %d", cfg.Backlog)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("LogLevel = %q", cfg.LogLevel)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty socket path", func(c *Config) { c.SocketPath = "" }},
		{"zero backlog", func(c *Config) { c.Backlog = 0 }},
		{"negative add_msgs", func(c *Config) { c.DefaultAddMsgs = -1 }},
		{"negative rate", func(c *Config) { c.AcceptRate = -1 }},
		{"unknown log level", func(c *Config) { c.LogLevel = "verbose" }},
		{"unknown log format", func(c *Config) { c.LogFormat = "xml" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := &Config{
				SocketPath: "/run/rtipc/handshake.sock",
				Backlog:    16,
				LogLevel:   "info",
				LogFormat:  "json",
			}
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("Validate() accepted %s", tc.name)
			}
		})
	}
}
