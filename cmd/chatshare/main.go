// Command chatshare runs maintenance jobs against a chatshare deployment.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/VidhuSarwal/chatshare/internal/app"
	"github.com/VidhuSarwal/chatshare/internal/config"
	"github.com/VidhuSarwal/chatshare/internal/logging"
	"github.com/VidhuSarwal/chatshare/internal/models"

	"github.com/urfave/cli/v2"
)

func main() {
	cliApp := &cli.App{
		Name:  "chatshare",
		Usage: "chatshare maintenance commands",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "TOML config file",
				Value:   "chatshare.toml",
				EnvVars: []string{"CHATSHARE_CONFIG"},
			},
		},
		Commands: []*cli.Command{
			webhooksCommand(),
			filesCommand(),
			tokenCommand(),
		},
	}
	if err := cliApp.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// withApp loads config, builds the app and closes it after fn.
func withApp(c *cli.Context, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return err
	}
	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	defer func() { _ = logger.Sync() }()

	ctx := c.Context
	a, err := app.NewApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())
	return fn(ctx, a)
}

func userFlag(required bool) *cli.StringSliceFlag {
	return &cli.StringSliceFlag{
		Name:     "user",
		Aliases:  []string{"u"},
		Usage:    "user id (repeatable)",
		Required: required,
	}
}

func printResults(c *cli.Context, results []models.JobResult) {
	for _, r := range results {
		line := fmt.Sprintf("%s: %s", r.UserID, r.Status)
		if r.EventCount > 0 {
			line += fmt.Sprintf(" (%d events)", r.EventCount)
		}
		if r.Error != "" {
			line += ": " + r.Error
		}
		fmt.Fprintln(c.App.Writer, line)
	}
}

func webhooksCommand() *cli.Command {
	run := func(job func(a *app.App) func(context.Context, []string) ([]models.JobResult, error)) cli.ActionFunc {
		return func(c *cli.Context) error {
			return withApp(c, func(ctx context.Context, a *app.App) error {
				results, err := job(a)(ctx, c.StringSlice("user"))
				if err != nil {
					return err
				}
				printResults(c, results)
				return nil
			})
		}
	}
	return &cli.Command{
		Name:  "webhooks",
		Usage: "run webhook jobs once",
		Subcommands: []*cli.Command{
			{
				Name:  "daily-summary",
				Usage: "send today's agenda (all webhook users when --user is omitted)",
				Flags: []cli.Flag{userFlag(false)},
				Action: run(func(a *app.App) func(context.Context, []string) ([]models.JobResult, error) {
					return a.Notifier.RunDailySummary
				}),
			},
			{
				Name:  "imminent-events",
				Usage: "send events starting soon (all webhook users when --user is omitted)",
				Flags: []cli.Flag{userFlag(false)},
				Action: run(func(a *app.App) func(context.Context, []string) ([]models.JobResult, error) {
					return a.Notifier.RunImminentEvents
				}),
			},
		},
	}
}

func filesCommand() *cli.Command {
	return &cli.Command{
		Name:  "files",
		Usage: "manage the file index",
		Subcommands: []*cli.Command{
			{
				Name:  "scan",
				Usage: "re-index a user's storage directory",
				Flags: []cli.Flag{userFlag(true)},
				Action: func(c *cli.Context) error {
					return withApp(c, func(ctx context.Context, a *app.App) error {
						for _, user := range c.StringSlice("user") {
							res, err := a.Files.Scan(ctx, user)
							if err != nil {
								return fmt.Errorf("scan %s: %w", user, err)
							}
							fmt.Fprintf(c.App.Writer, "%s: indexed %d, pruned %d\n", user, res.Indexed, res.Pruned)
						}
						return nil
					})
				},
			},
		},
	}
}

func tokenCommand() *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "issue an API session token",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "user", Aliases: []string{"u"}, Required: true},
			&cli.BoolFlag{Name: "admin", Usage: "grant admin settings access"},
			&cli.DurationFlag{Name: "ttl", Usage: "token lifetime (defaults to security.session_ttl)"},
		},
		Action: func(c *cli.Context) error {
			return withApp(c, func(_ context.Context, a *app.App) error {
				tok, err := a.SessionToken(c.String("user"), c.Bool("admin"), c.Duration("ttl"))
				if err != nil {
					return err
				}
				fmt.Fprintln(c.App.Writer, tok)
				return nil
			})
		},
	}
}
