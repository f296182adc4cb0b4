package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if err := config.Validate(); err != nil {
		t.Fatalf("Default config should validate: %v", err)
	}
	if config.App.Name != "flexx" {
		t.Errorf("Expected app name 'flexx', got %q", config.App.Name)
	}
	if !config.Server.TCP.Enabled {
		t.Error("TCP listener should be enabled by default")
	}
	if config.Server.WebSocket.Enabled {
		t.Error("WebSocket listener should be disabled by default")
	}
	if !config.IsDevelopment() {
		t.Error("Default environment should be development")
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(c *Config)
		valid  bool
	}{
		{"Default", func(c *Config) {}, true},
		{"EmptyName", func(c *Config) { c.App.Name = "" }, false},
		{"UnknownEnvironment", func(c *Config) { c.App.Environment = "staging" }, false},
		{"TCPWithoutAddress", func(c *Config) { c.Server.TCP.Address = "" }, false},
		{"TCPDisabledWithoutAddress", func(c *Config) {
			c.Server.TCP.Enabled = false
			c.Server.TCP.Address = ""
		}, true},
		{"WebSocketWithoutPath", func(c *Config) {
			c.Server.WebSocket.Enabled = true
			c.Server.WebSocket.Path = ""
		}, false},
		{"NegativeMailbox", func(c *Config) { c.Loop.MailboxSize = -1 }, false},
		{"NegativeSessionLimit", func(c *Config) { c.Session.MaxSessions = -1 }, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			config := DefaultConfig()
			tc.mutate(config)
			err := config.Validate()
			if tc.valid && err != nil {
				t.Errorf("Expected valid config, got %v", err)
			}
			if !tc.valid && !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestLoadFromReader(t *testing.T) {
	t.Run("YAML", func(t *testing.T) {
		yaml := `
app:
  name: demo
  environment: production
server:
  tcp:
    enabled: true
    address: "0.0.0.0:9000"
    heartbeat_interval: 5s
loop:
  mailbox_size: 64
`
		config, err := NewLoader().LoadFromReader(strings.NewReader(yaml), FormatYAML)
		if err != nil {
			t.Fatalf("LoadFromReader failed: %v", err)
		}
		if config.App.Name != "demo" {
			t.Errorf("Expected app name 'demo', got %q", config.App.Name)
		}
		if !config.IsProduction() {
			t.Error("Expected production environment")
		}
		if config.Server.TCP.Address != "0.0.0.0:9000" {
			t.Errorf("Unexpected address: %q", config.Server.TCP.Address)
		}
		if config.Server.TCP.HeartbeatInterval != 5*time.Second {
			t.Errorf("Unexpected heartbeat: %v", config.Server.TCP.HeartbeatInterval)
		}
		if config.Loop.MailboxSize != 64 {
			t.Errorf("Unexpected mailbox size: %d", config.Loop.MailboxSize)
		}
		// Fields absent from the file keep their defaults
		if config.Server.WebSocket.Path != "/session" {
			t.Errorf("Default ws path lost: %q", config.Server.WebSocket.Path)
		}
	})

	t.Run("JSON", func(t *testing.T) {
		json := `{"app": {"name": "demo-json"}, "server": {"tcp": {"enabled": true, "address": "127.0.0.1:9100"}}}`
		config, err := NewLoader().LoadFromReader(strings.NewReader(json), FormatJSON)
		if err != nil {
			t.Fatalf("LoadFromReader failed: %v", err)
		}
		if config.App.Name != "demo-json" {
			t.Errorf("Expected app name 'demo-json', got %q", config.App.Name)
		}
	})

	t.Run("BadYAML", func(t *testing.T) {
		if _, err := NewLoader().LoadFromReader(strings.NewReader("{{nope"), FormatYAML); err == nil {
			t.Error("Expected parse error")
		}
	})
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "flexx.yaml")
	content := "app:\n  name: from-file\nserver:\n  tcp:\n    enabled: true\n    address: \"127.0.0.1:9200\"\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	config, err := NewLoader().LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if config.App.Name != "from-file" {
		t.Errorf("Expected 'from-file', got %q", config.App.Name)
	}

	t.Run("UnsupportedExtension", func(t *testing.T) {
		_, err := NewLoader().LoadFromFile(filepath.Join(dir, "config.toml"))
		if !errors.Is(err, ErrUnsupportedFormat) {
			t.Errorf("Expected ErrUnsupportedFormat, got %v", err)
		}
	})
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("FLEXX_APP_NAME", "from-env")
	t.Setenv("FLEXX_TCP_ADDRESS", "127.0.0.1:9300")
	t.Setenv("FLEXX_TCP_HEARTBEAT", "3s")
	t.Setenv("FLEXX_MAX_SESSIONS", "10")

	config, err := NewLoader().Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if config.App.Name != "from-env" {
		t.Errorf("Expected 'from-env', got %q", config.App.Name)
	}
	if config.Server.TCP.Address != "127.0.0.1:9300" {
		t.Errorf("Unexpected address: %q", config.Server.TCP.Address)
	}
	if config.Server.TCP.HeartbeatInterval != 3*time.Second {
		t.Errorf("Unexpected heartbeat: %v", config.Server.TCP.HeartbeatInterval)
	}
	if config.Session.MaxSessions != 10 {
		t.Errorf("Unexpected session limit: %d", config.Session.MaxSessions)
	}
}

func TestEnvOverrideBadValue(t *testing.T) {
	t.Setenv("FLEXX_TCP_HEARTBEAT", "not-a-duration")

	if _, err := NewLoader().Load(""); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Expected ErrInvalidConfig, got %v", err)
	}
}

func TestAutoLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "flexx.yaml")
	content := "app:\n  name: discovered\nserver:\n  tcp:\n    enabled: true\n    address: \"127.0.0.1:9400\"\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	config, err := NewLoader().SetSearchPaths([]string{dir}).AutoLoad()
	if err != nil {
		t.Fatalf("AutoLoad failed: %v", err)
	}
	if config.App.Name != "discovered" {
		t.Errorf("Expected 'discovered', got %q", config.App.Name)
	}

	t.Run("FallsBackToDefaults", func(t *testing.T) {
		config, err := NewLoader().SetSearchPaths([]string{t.TempDir()}).AutoLoad()
		if err != nil {
			t.Fatalf("AutoLoad failed: %v", err)
		}
		if config.App.Name != "flexx" {
			t.Errorf("Expected default name, got %q", config.App.Name)
		}
	})
}

func TestWatcherReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "flexx.yaml")
	write := func(name string) {
		content := "app:\n  name: " + name + "\nserver:\n  tcp:\n    enabled: true\n    address: \"127.0.0.1:9500\"\n"
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}
	}
	write("first")

	watcher, err := NewWatcher(path, NewLoader())
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	defer watcher.Stop()

	if watcher.Config().App.Name != "first" {
		t.Fatalf("Initial config not loaded: %q", watcher.Config().App.Name)
	}

	changed := make(chan *Config, 1)
	watcher.OnChange(func(oldConfig, newConfig *Config) {
		changed <- newConfig
	})

	write("second")
	if err := watcher.Reload(); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}

	select {
	case newConfig := <-changed:
		if newConfig.App.Name != "second" {
			t.Errorf("Expected 'second', got %q", newConfig.App.Name)
		}
	case <-time.After(time.Second):
		t.Fatal("Change callback not invoked")
	}
	if watcher.Config().App.Name != "second" {
		t.Errorf("Watcher did not swap config: %q", watcher.Config().App.Name)
	}
}
