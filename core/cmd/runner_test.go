package cmd

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	coreconfig "github.com/m3rciful/shopbot/core/config"
	coretelegram "github.com/m3rciful/shopbot/core/telegram"
)

type fakeCarrier struct{ cfg *coreconfig.Config }

func (f fakeCarrier) CoreConfig() *coreconfig.Config { return f.cfg }

type fakeApp struct {
	closed  bool
	started bool
	stopped bool
}

func (a *fakeApp) TelegramRunOptions() (coretelegram.RunOptions, error) {
	return coretelegram.RunOptions{
		OnStart: func(context.Context, coretelegram.Runtime) error {
			a.started = true
			return nil
		},
		OnStop: func(context.Context, coretelegram.Runtime) error {
			a.stopped = true
			return nil
		},
	}, nil
}

func (a *fakeApp) Close() error {
	a.closed = true
	return nil
}

func TestRunWiresLifecycle(t *testing.T) {
	t.Setenv("SHOPBOT_TEST_CONFIG", "config.yaml")
	app := &fakeApp{}
	var loadedPath string

	err := Run(Options{
		ConfigEnvVar: "SHOPBOT_TEST_CONFIG",
		DotEnvFiles:  []string{filepath.Join(t.TempDir(), "missing.env")},
		LoadConfig: func(path string) (ConfigCarrier, error) {
			loadedPath = path
			return fakeCarrier{cfg: &coreconfig.Config{}}, nil
		},
		Bootstrap: func(ConfigCarrier) (TelegramApp, error) {
			return app, nil
		},
		ShutdownLogger: func() error { return nil },
		RunTelegram: func(ctx context.Context, opts coretelegram.RunOptions) error {
			if err := opts.OnStart(ctx, coretelegram.Runtime{}); err != nil {
				return err
			}
			return opts.OnStop(ctx, coretelegram.Runtime{})
		},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if loadedPath != "config.yaml" {
		t.Fatalf("loaded path = %q", loadedPath)
	}
	if !app.started || !app.stopped || !app.closed {
		t.Fatalf("lifecycle not completed: %+v", app)
	}
}

func TestRunLoadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, "test.env")
	if err := os.WriteFile(envFile, []byte("SHOPBOT_DOTENV_CONFIG=from-dotenv.yaml\n"), 0o600); err != nil {
		t.Fatalf("write env: %v", err)
	}
	t.Cleanup(func() { _ = os.Unsetenv("SHOPBOT_DOTENV_CONFIG") })

	wantErr := errors.New("stop here")
	var loadedPath string
	err := Run(Options{
		ConfigEnvVar: "SHOPBOT_DOTENV_CONFIG",
		DotEnvFiles:  []string{envFile},
		LoadConfig: func(path string) (ConfigCarrier, error) {
			loadedPath = path
			return nil, wantErr
		},
		Bootstrap: func(ConfigCarrier) (TelegramApp, error) { return nil, nil },
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected load error, got %v", err)
	}
	if loadedPath != "from-dotenv.yaml" {
		t.Fatalf("loaded path = %q", loadedPath)
	}
}

func TestConfigPath(t *testing.T) {
	t.Setenv("SHOPBOT_PATH_TEST", "")
	tests := []struct {
		name    string
		env     string
		def     string
		want    string
		wantErr bool
	}{
		{name: "env wins", env: "from-env.yaml", def: "config.yaml", want: "from-env.yaml"},
		{name: "default", def: "config.yaml", want: "config.yaml"},
		{name: "none", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("SHOPBOT_PATH_TEST", tt.env)
			got, err := configPath(Options{ConfigEnvVar: "SHOPBOT_PATH_TEST", DefaultConfigPath: tt.def})
			if (err != nil) != tt.wantErr || got != tt.want {
				t.Fatalf("configPath = %q, %v", got, err)
			}
		})
	}
}
