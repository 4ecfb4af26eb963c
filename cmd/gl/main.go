package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"gigline/internal/app"
	"gigline/internal/attach"
	"gigline/internal/config"
	"gigline/internal/db"
	"gigline/internal/domain"
	"gigline/internal/engine"
	"gigline/internal/logging"
	"gigline/internal/migrate"
	"gigline/internal/repo"
	"gigline/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "gl",
	Short: "Gigline CLI",
	Long: `Gigline runs the contract and task lifecycle of a freelance marketplace.
- Contracts bind an employer and a freelancer at an hourly rate between a start and an end date.
- Tasks are paid up front: creating one moves hours x rate from the employer's wallet into escrow.
- Freelancers submit work with files; employers approve (the payment is released) or reject with a reason.
- Either party may request cancellation of a contract and an admin resolves it; completing it needs every task closed.
- Support tickets and company verification live next to the contracts.
- Every change lands in the event log, view it with 'gl log tail'.

Commands run against the local workspace database. Without --actor-id they act
as the local operator and skip permission checks.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_, err := db.EnsureWorkspace(viper.GetString("workspace"))
		return err
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("GIGLINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().String("config", "", "marketplace config file (defaults to the stored copy)")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "", "act as this account (empty: local operator)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
}

func registerCommands() {
	rootCmd.AddCommand(accountCmd())
	rootCmd.AddCommand(walletCmd())
	rootCmd.AddCommand(contractCmd())
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(settleCmd())
	rootCmd.AddCommand(ticketCmd())
	rootCmd.AddCommand(companyCmd())
	rootCmd.AddCommand(txnCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(serveCmd())
}

func actor() string {
	return viper.GetString("actor-id")
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API, the settlement worker and webhook delivery",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := config.LoadServerEnv()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				env.Addr = addr
			}
			if cmd.Flags().Changed("base-path") {
				env.BasePath = basePath
			}
			if env.JWTSecret == "" && !env.AllowActorHeader {
				return fmt.Errorf("GIGLINE_JWT_SECRET is required unless GIGLINE_ALLOW_ACTOR_HEADER is set")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				log := logging.New(e.Config.Logging)
				handler, err := server.New(server.Config{
					Engine:   e,
					BasePath: env.BasePath,
					Auth:     server.AuthConfig{JWTSecret: env.JWTSecret, AllowActorHeader: env.AllowActorHeader},
					Logger:   log,
				})
				if err != nil {
					return err
				}
				bgCtx, cancel := context.WithCancel(ctx)
				wait := server.StartBackground(bgCtx, e, log)
				defer func() {
					cancel()
					wait()
				}()

				srv := &http.Server{Addr: env.Addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
				go func() {
					<-ctx.Done()
					shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
					defer done()
					srv.Shutdown(shutdownCtx)
				}()
				log.WithField("addr", env.Addr).WithField("base_path", env.BasePath).Info("serving gigline API")
				fmt.Printf("Serving Gigline API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at %s/docs)\n",
					env.Addr, env.BasePath, env.BasePath, env.BasePath)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address (GIGLINE_ADDR)")
	cmd.Flags().StringVar(&basePath, "base-path", "/api", "API base path (GIGLINE_BASE_PATH)")
	return cmd
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Inspect the marketplace config",
		Long:  "The marketplace config (stored in the DB) holds attachment limits, completion rules, settlement cadence, webhooks and logging. Import a gigline.yml to change it.",
	}
	cfg.AddCommand(configInitCmd())
	cfg.AddCommand(configShowCmd())
	cfg.AddCommand(configValidateCmd())
	cfg.AddCommand(configImportCmd())
	return cfg
}

func configInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default gigline.yml into the workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the active config",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if viper.GetBool("json") {
					return printJSON(e.Config)
				}
				out, err := e.Config.ToYAML()
				if err != nil {
					return err
				}
				fmt.Print(string(out))
				return nil
			})
		},
	}
}

func configValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the active config",
		RunE: func(cmd *cobra.Command, args []string) error {
			err := withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.Config.Validate()
			})
			if viper.GetBool("json") {
				msg := ""
				if err != nil {
					msg = err.Error()
				}
				return printJSON(map[string]any{"ok": err == nil, "error": msg})
			}
			if err != nil {
				return err
			}
			fmt.Println("config OK")
			return nil
		},
	}
}

func configImportCmd() *cobra.Command {
	var filePath string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a YAML config into the DB",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromFile(filePath)
			if err != nil {
				return err
			}
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				if err := r.UpsertConfig(ctx, r.DB, cfg); err != nil {
					return err
				}
				fmt.Println("config imported")
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&filePath, "file", "", "path to YAML config")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Show applied schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				steps, err := migrate.Status(r.DB)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(steps)
				}
				tw := newTable("Version", "Name", "Applied")
				for _, s := range steps {
					tw.AppendRow(table.Row{s.Version, s.Name, s.AppliedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func logCmd() *cobra.Command {
	lg := &cobra.Command{Use: "log", Short: "Read the event log"}
	lg.AddCommand(logTailCmd())
	return lg
}

func logTailCmd() *cobra.Command {
	var n int
	var f repo.EventFilters
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Show the latest events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				events, err := r.LatestEvents(ctx, r.DB, f, 0, n)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(events)
				}
				tw := newTable("ID", "TS", "Type", "Entity", "Actor", "Payload")
				for _, evt := range events {
					tw.AppendRow(table.Row{evt.ID, evt.TS, evt.Type, evt.EntityKind + ":" + evt.EntityID, evt.ActorID, evt.Payload})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().Int64Var(&f.ContractID, "contract", 0, "contract id filter")
	cmd.Flags().StringVar(&f.Type, "type", "", "event type filter")
	cmd.Flags().StringVar(&f.EntityKind, "entity-kind", "", "entity kind")
	cmd.Flags().StringVar(&f.EntityID, "entity-id", "", "entity id")
	return cmd
}

func openWorkspace(ctx context.Context) (repo.Repo, func(), error) {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return repo.Repo{}, nil, err
	}
	if err := migrate.Migrate(conn); err != nil {
		conn.Close()
		return repo.Repo{}, nil, err
	}
	return repo.Repo{DB: conn}, func() { conn.Close() }, nil
}

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	r, closeDB, err := openWorkspace(ctx)
	if err != nil {
		return err
	}
	defer closeDB()
	cfg, err := app.ResolveConfig(ctx, viper.GetString("workspace"), viper.GetString("config"), r)
	if err != nil {
		return err
	}
	return fn(ctx, engine.New(r.DB, cfg))
}

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	r, closeDB, err := openWorkspace(ctx)
	if err != nil {
		return err
	}
	defer closeDB()
	return fn(ctx, r)
}

func newTable(header ...any) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row(header))
	tw.SetStyle(table.StyleLight)
	return tw
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// readFiles loads attachments from disk; content types are sniffed later.
func readFiles(paths []string) ([]attach.File, error) {
	files := make([]attach.File, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		files = append(files, attach.File{Name: filepath.Base(p), Data: data})
	}
	return files, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func taskTable(tasks []domain.Task) {
	tw := newTable("ID", "Name", "Status", "Hours", "Pay", "Due", "Files")
	for _, t := range tasks {
		tw.AppendRow(table.Row{t.ID, t.Name, t.Status, t.Hours, t.TotalPay, t.DueDate, len(t.Files)})
	}
	tw.Render()
}
