// Package cmd provides CLI commands for the gantry binary.
package cmd

import "github.com/urfave/cli/v2"

// Exit codes for serve.
const (
	exitSuccess     = 0
	exitConfigError = 1
	exitBindFailure = 2
)

// ServeFlags are the flags accepted by gantry serve. Every flag overrides
// the corresponding config file value.
func ServeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to gantry.yaml config file",
		},
		&cli.StringFlag{
			Name:  "listen",
			Usage: "Loopback TCP listen address",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "Log level: debug, info, warn, error",
		},
		&cli.StringFlag{
			Name:    "access-token",
			Usage:   "Backend access token",
			EnvVars: []string{"GANTRY_ACCESS_TOKEN"},
		},
		&cli.StringFlag{
			Name:    "refresh-token",
			Usage:   "Backend refresh token",
			EnvVars: []string{"GANTRY_REFRESH_TOKEN"},
		},
		&cli.Uint64Flag{
			Name:  "user-id",
			Usage: "Gateway user id",
		},
		&cli.StringFlag{
			Name:  "username",
			Usage: "Gateway username",
		},
		&cli.StringFlag{
			Name:  "pusher-url",
			Usage: "Notification pusher websocket URL",
		},
		&cli.BoolFlag{
			Name:  "no-pusher",
			Usage: "Disable the notification pusher bridge",
		},
		&cli.BoolFlag{
			Name:  "validate-pusher",
			Usage: "Decode pusher notifications before forwarding",
		},
	}
}
