package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
		mode    string
	}{
		{name: "defaults to longpoll", cfg: Config{Telegram: TelegramConfig{Token: "t"}}, mode: RunModeLongpoll},
		{name: "polling alias", cfg: Config{Telegram: TelegramConfig{Token: "t", RunMode: " Polling "}}, mode: RunModeLongpoll},
		{name: "missing token", cfg: Config{}, wantErr: "token"},
		{name: "webhook needs url", cfg: Config{Telegram: TelegramConfig{Token: "t", RunMode: "webhook"}}, wantErr: "webhook.url"},
		{
			name: "webhook ok",
			cfg: Config{
				Telegram: TelegramConfig{Token: "t", RunMode: "webhook"},
				Webhook:  WebhookConfig{URL: "https://example.org/hook", Listen: ":8443", Port: 8443},
			},
			mode: RunModeWebhook,
		},
		{name: "bad mode", cfg: Config{Telegram: TelegramConfig{Token: "t", RunMode: "push"}}, wantErr: "run_mode"},
		{name: "negative retries", cfg: Config{Telegram: TelegramConfig{Token: "t", SendRetries: -1}}, wantErr: "send_retries"},
		{name: "negative workers", cfg: Config{Telegram: TelegramConfig{Token: "t", SendWorkers: -1}}, wantErr: "send_workers"},
		{
			name:    "bad exclude",
			cfg:     Config{Telegram: TelegramConfig{Token: "t"}, RateLimit: RateLimitConfig{ExcludeUpdates: []string{"photo"}}},
			wantErr: "exclude_updates",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			err := Normalize(&cfg)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("err = %v, want mention of %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Normalize: %v", err)
			}
			if cfg.Telegram.RunMode != tt.mode {
				t.Fatalf("run mode = %q, want %q", cfg.Telegram.RunMode, tt.mode)
			}
		})
	}
}

func TestNormalizeLowercasesExcludes(t *testing.T) {
	cfg := Config{
		Telegram:  TelegramConfig{Token: "t"},
		RateLimit: RateLimitConfig{ExcludeUpdates: []string{" Message ", ""}},
	}
	if err := Normalize(&cfg); err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if cfg.RateLimit.ExcludeUpdates[0] != UpdateMessage {
		t.Fatalf("exclude = %q", cfg.RateLimit.ExcludeUpdates[0])
	}
}

func TestLoadWithEnvOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "telegram:\n  token: file-token\n  admin_ids: [1, 2]\n  send_workers: 3\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("BOT_TOKEN", "env-token")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Telegram.Token != "env-token" {
		t.Fatalf("token = %q, want env override", cfg.Telegram.Token)
	}
	if cfg.Telegram.SendWorkers != 3 || !cfg.IsAdmin(2) || cfg.IsAdmin(3) {
		t.Fatalf("telegram = %+v", cfg.Telegram)
	}
}

func TestLoadDotEnvSkipsMissingFiles(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	if err := os.WriteFile(envFile, []byte("SHOPBOT_DOTENV_VALUE=from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SHOPBOT_DOTENV_VALUE", "")
	os.Unsetenv("SHOPBOT_DOTENV_VALUE")

	if err := LoadDotEnv(filepath.Join(dir, "missing.env"), envFile); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if got := os.Getenv("SHOPBOT_DOTENV_VALUE"); got != "from-file" {
		t.Fatalf("value = %q", got)
	}
}

func TestIsAdminNilConfig(t *testing.T) {
	var cfg *Config
	if cfg.IsAdmin(1) {
		t.Fatal("nil config has no admins")
	}
}
