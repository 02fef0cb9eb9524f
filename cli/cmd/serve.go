package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap/zapcore"

	"github.com/pithecene-io/gantry/backend"
	"github.com/pithecene-io/gantry/catalog"
	"github.com/pithecene-io/gantry/cli/config"
	"github.com/pithecene-io/gantry/gateway"
	"github.com/pithecene-io/gantry/log"
	"github.com/pithecene-io/gantry/metrics"
	"github.com/pithecene-io/gantry/types"
)

// ServeCommand returns the serve command, the gateway's only long-running
// entrypoint.
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:   "serve",
		Usage:  "Run the loopback protocol gateway",
		Flags:  ServeFlags(),
		Action: serveAction,
	}
}

// overrides carries the flag values that take precedence over the config
// file. Zero values mean the flag was not given.
type overrides struct {
	listen         string
	logLevel       string
	accessToken    string
	refreshToken   string
	userID         uint64
	username       string
	pusherURL      string
	noPusher       bool
	validatePusher bool
}

// applyOverrides merges flag values into the loaded config.
func applyOverrides(cfg *config.Config, o overrides) {
	if o.listen != "" {
		cfg.Listen = o.listen
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	if o.accessToken != "" {
		cfg.Auth.AccessToken = o.accessToken
	}
	if o.refreshToken != "" {
		cfg.Auth.RefreshToken = o.refreshToken
	}
	if o.userID != 0 {
		cfg.Auth.UserID = o.userID
	}
	if o.username != "" {
		cfg.Auth.Username = o.username
	}
	if o.pusherURL != "" {
		cfg.Pusher.URL = o.pusherURL
	}
	if o.noPusher {
		cfg.Pusher.Disabled = true
	}
	if o.validatePusher {
		cfg.Pusher.Validate = true
	}
}

func serveAction(c *cli.Context) error {
	cfg := &config.Config{}
	if path := c.String("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return cli.Exit(err.Error(), exitConfigError)
		}
		cfg = loaded
	}

	applyOverrides(cfg, overrides{
		listen:         c.String("listen"),
		logLevel:       c.String("log-level"),
		accessToken:    c.String("access-token"),
		refreshToken:   c.String("refresh-token"),
		userID:         c.Uint64("user-id"),
		username:       c.String("username"),
		pusherURL:      c.String("pusher-url"),
		noPusher:       c.Bool("no-pusher"),
		validatePusher: c.Bool("validate-pusher"),
	})
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return cli.Exit(fmt.Sprintf("invalid config: %v", err), exitConfigError)
	}

	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return cli.Exit(fmt.Sprintf("invalid log level %q", cfg.LogLevel), exitConfigError)
	}
	logger := log.New(level)

	collector := metrics.NewCollector()
	client := backend.NewHTTP(backend.Config{
		AuthURL:      cfg.Backend.AuthURL,
		EmbedURL:     cfg.Backend.EmbedURL,
		GameplayURL:  cfg.Backend.GameplayURL,
		AccessToken:  cfg.Auth.AccessToken,
		RefreshToken: cfg.Auth.RefreshToken,
		UserID:       strconv.FormatUint(cfg.Auth.UserID, 10),
		Timeout:      cfg.Backend.Timeout.Duration,
	}, logger)

	pusher := gateway.PusherOptions{}
	if !cfg.Pusher.Disabled {
		pusher = gateway.PusherOptions{
			URL:      cfg.Pusher.URL,
			Token:    cfg.Auth.AccessToken,
			Topics:   cfg.Pusher.Topics,
			Validate: cfg.Pusher.Validate,
		}
	}

	g := gateway.New(gateway.Options{
		Addr:    cfg.Listen,
		Catalog: catalog.New(client, logger, collector),
		Logger:  logger,
		Metrics: collector,
		User: types.UserInfo{
			UserID:   cfg.Auth.UserID,
			Username: cfg.Auth.Username,
		},
		Pusher:      pusher,
		ReadTick:    cfg.Session.ReadTick.Duration,
		BodyTimeout: cfg.Session.BodyTimeout.Duration,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if err := g.Serve(ctx); err != nil {
		if errors.Is(err, gateway.ErrBind) {
			return cli.Exit(err.Error(), exitBindFailure)
		}
		return cli.Exit(err.Error(), exitConfigError)
	}
	return cli.Exit("", exitSuccess)
}
