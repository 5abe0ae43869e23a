package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"collabhub/internal/app"
	"collabhub/internal/config"
	"collabhub/internal/migrate"
	"collabhub/internal/server"
)

var logger = zap.NewNop()

var rootCmd = &cobra.Command{
	Use:   "collab",
	Short: "Collaboration hub CLI",
	Long: `collab runs and drives a collaboration hub.

Hubs group team members. Members open reviews, comment on them, and move them
through draft -> submitted -> approved/rejected. Hubs also hold workflows,
a searchable knowledge base and expert consultations. Every change lands in
an event log that the server relays on the collaboration_updated channel.

Server commands (serve, token, apikey, db) work on the local workspace.
Client commands (hub, review, notifications, export, watch) talk to a
running server over HTTP.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := zap.NewProductionConfig()
		if viper.GetBool("debug") {
			cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		l, err := cfg.Build()
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		logger = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("COLLABHUB")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	flags := rootCmd.PersistentFlags()
	flags.StringP("workspace", "w", ".", "workspace directory")
	flags.Bool("json", false, "output JSON")
	flags.Bool("debug", false, "debug logging")
	flags.String("actor-id", "", "actor identifier (defaults to client.actor_id)")
	flags.String("base-url", "", "server URL (defaults to client.base_url)")
	flags.String("api-key", "", "API key for client commands")
	flags.String("token", "", "bearer token for client commands")
	for _, name := range []string{"workspace", "json", "debug", "actor-id", "base-url", "api-key", "token"} {
		_ = viper.BindPFlag(name, flags.Lookup(name))
	}
}

func registerCommands() {
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(dbCmd())
	rootCmd.AddCommand(tokenCmd())
	rootCmd.AddCommand(apiKeyCmd())
	rootCmd.AddCommand(hubCmd())
	rootCmd.AddCommand(reviewCmd())
	rootCmd.AddCommand(notificationsCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(watchCmd())
}

func configCmd() *cobra.Command {
	cfgCmd := &cobra.Command{Use: "config", Short: "Manage collabhub.yml"}
	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default collabhub.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists; use --force to overwrite", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	cfgCmd.AddCommand(initCmd)
	cfgCmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate collabhub.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := config.Load(viper.GetString("workspace")); err != nil {
				return err
			}
			fmt.Println("config ok")
			return nil
		},
	})
	return cfgCmd
}

func dbCmd() *cobra.Command {
	d := &cobra.Command{Use: "db", Short: "Inspect the workspace database"}
	d.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show applied schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(func(ws *app.Workspace) error {
				applied, err := migrate.History(cmd.Context(), ws.DB)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(applied)
				}
				tw := newTable("Version", "Migration", "Applied")
				for _, a := range applied {
					tw.AppendRow(table.Row{a.Version, a.Name, a.AppliedAt})
				}
				tw.Render()
				return nil
			})
		},
	})
	return d
}

func tokenCmd() *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for an actor (needs COLLABHUB_JWT_SECRET)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadOptional(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("ttl") && cfg.Auth.TokenTTL > 0 {
				ttl = cfg.Auth.TokenTTL
			}
			actor := actorID(cfg)
			tok, err := server.SignToken(viper.GetString("jwt-secret"), actor, ttl)
			if err != nil {
				return err
			}
			return printJSONOrText(map[string]string{"actor_id": actor, "token": tok}, tok)
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime, 0 for no expiry (defaults to auth.token_ttl)")
	return cmd
}

func apiKeyCmd() *cobra.Command {
	keys := &cobra.Command{Use: "apikey", Short: "Manage API keys in the workspace"}
	var name string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create an API key for the actor",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(func(ws *app.Workspace) error {
				k, raw, err := ws.Engine.CreateAPIKey(cmd.Context(), actorID(ws.Config), name)
				if err != nil {
					return err
				}
				out := map[string]string{"id": k.ID, "actor_id": k.ActorID, "key": raw}
				return printJSONOrText(out, fmt.Sprintf("%s (id %s); shown once", raw, k.ID))
			})
		},
	}
	create.Flags().StringVar(&name, "name", "", "key label")
	keys.AddCommand(create)
	keys.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the actor's API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(func(ws *app.Workspace) error {
				items, err := ws.Engine.Repo.ListAPIKeys(cmd.Context(), actorID(ws.Config))
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable("ID", "Name", "Created")
				for _, k := range items {
					tw.AppendRow(table.Row{k.ID, k.Name, k.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	})
	return keys
}

func withWorkspace(fn func(*app.Workspace) error) error {
	ws, err := app.Open(viper.GetString("workspace"))
	if err != nil {
		return err
	}
	defer ws.Close()
	return fn(ws)
}

// actorID resolves --actor-id, then client.actor_id, then local-user.
func actorID(cfg *config.Config) string {
	if id := strings.TrimSpace(viper.GetString("actor-id")); id != "" {
		return id
	}
	if cfg == nil {
		loaded, err := config.LoadOptional(viper.GetString("workspace"))
		if err == nil {
			cfg = loaded
		}
	}
	if cfg != nil && cfg.Client.ActorID != "" {
		return cfg.Client.ActorID
	}
	return "local-user"
}

func newTable(header ...any) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row(header))
	return tw
}

func printJSONOrText(v any, text string) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	fmt.Println(text)
	return nil
}

func printJSON(v any) error {
	return writeJSON(os.Stdout, v)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
