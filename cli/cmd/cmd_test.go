package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/gantry/cli/config"
	"github.com/pithecene-io/gantry/types"
)

func TestApplyOverrides(t *testing.T) {
	cfg := &config.Config{
		Listen:   "127.0.0.1:5001",
		LogLevel: "info",
	}
	cfg.Auth.RefreshToken = "from-config"
	cfg.Pusher.URL = "wss://config.example"

	applyOverrides(cfg, overrides{
		listen:       "127.0.0.1:6001",
		refreshToken: "from-flag",
		userID:       42,
		username:     "bob",
		noPusher:     true,
	})

	if cfg.Listen != "127.0.0.1:6001" {
		t.Errorf("listen = %q", cfg.Listen)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("log level should be untouched, got %q", cfg.LogLevel)
	}
	if cfg.Auth.RefreshToken != "from-flag" {
		t.Errorf("refresh token = %q", cfg.Auth.RefreshToken)
	}
	if cfg.Auth.UserID != 42 || cfg.Auth.Username != "bob" {
		t.Errorf("auth = %+v", cfg.Auth)
	}
	if !cfg.Pusher.Disabled {
		t.Error("pusher should be disabled")
	}
	if cfg.Pusher.URL != "wss://config.example" {
		t.Errorf("pusher url = %q", cfg.Pusher.URL)
	}
}

func TestApplyOverridesZeroValuesKeepConfig(t *testing.T) {
	cfg := &config.Config{Listen: "127.0.0.1:5001"}
	cfg.Auth.RefreshToken = "rt"
	cfg.Auth.UserID = 7

	applyOverrides(cfg, overrides{})

	if cfg.Listen != "127.0.0.1:5001" || cfg.Auth.RefreshToken != "rt" || cfg.Auth.UserID != 7 {
		t.Errorf("config mutated by empty overrides: %+v", cfg)
	}
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	app := &cli.App{
		Name:     "gantry",
		Writer:   &out,
		Commands: []*cli.Command{VersionCommand("abc123")},
	}

	if err := app.Run([]string{"gantry", "version"}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	got := out.String()
	if !strings.Contains(got, types.Version) || !strings.Contains(got, "abc123") {
		t.Errorf("output = %q", got)
	}
}

func TestServeRejectsMissingCredentials(t *testing.T) {
	t.Setenv("GANTRY_ACCESS_TOKEN", "")
	t.Setenv("GANTRY_REFRESH_TOKEN", "")
	app := &cli.App{
		Name:           "gantry",
		Commands:       []*cli.Command{ServeCommand()},
		ExitErrHandler: func(*cli.Context, error) {},
	}

	err := app.Run([]string{"gantry", "serve", "--listen", "127.0.0.1:0"})
	var exitCoder cli.ExitCoder
	if err == nil {
		t.Fatal("expected an error without credentials")
	}
	if !cliExitAs(err, &exitCoder) || exitCoder.ExitCode() != exitConfigError {
		t.Fatalf("err = %v", err)
	}
}

func cliExitAs(err error, target *cli.ExitCoder) bool {
	coder, ok := err.(cli.ExitCoder)
	if ok {
		*target = coder
	}
	return ok
}
