package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/notely/internal"
	pkgconfig "github.com/starford/notely/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, string, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.Load(configPath, cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, configPath, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, configPath, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	opts := []internal.Option{
		internal.WithConfig(cfg),
		internal.WithConfigPath(configPath),
	}

	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}

	return nil
}

func serveMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if err := internal.RunMCP(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("mcp run error: %w", err)
	}

	return nil
}

func syncVault(direction internal.VaultDirection) func(context.Context, *cli.Command) error {
	return func(ctx context.Context, cmd *cli.Command) error {
		cfg, _, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		owner := cmd.String("owner")
		if owner == "" {
			owner = cfg.MCP.OwnerID
		}
		rep, err := internal.RunVault(ctx, direction, cmd.String("dir"), owner, internal.WithConfig(cfg))
		if err != nil {
			return fmt.Errorf("vault sync error: %w", err)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}
}

func main() {
	vaultFlags := []cli.Flag{
		&cli.StringFlag{
			Name:     "dir",
			Aliases:  []string{"d"},
			Usage:    "Directory of Markdown files",
			Required: true,
		},
		&cli.StringFlag{
			Name:        "owner",
			Usage:       "Owner of the notes",
			DefaultText: "mcp.owner_id from config",
		},
	}

	cmd := &cli.Command{
		Name:   "notely",
		Usage:  "Notes backend with owner-scoped search, tag filtering and AI summaries",
		Action: serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API (default)",
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve the note tools over MCP on stdin/stdout",
				Action: serveMCP,
			},
			{
				Name:   "import",
				Usage:  "Import a directory of Markdown files as notes",
				Flags:  vaultFlags,
				Action: syncVault(internal.VaultImport),
			},
			{
				Name:   "export",
				Usage:  "Export notes as Markdown files into a directory",
				Flags:  vaultFlags,
				Action: syncVault(internal.VaultExport),
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
