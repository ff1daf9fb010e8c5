package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"gatherly/internal/app"
	"gatherly/internal/config"
	"gatherly/internal/db"
	"gatherly/internal/domain"
	"gatherly/internal/engine"
	"gatherly/internal/migrate"
	"gatherly/internal/server"
	"gatherly/internal/telemetry"
	"gatherly/internal/validate"
)

var rootCmd = &cobra.Command{
	Use:   "gatherly",
	Short: "Gatherly event management API",
	Long: `Gatherly lets registered users organise events, invite each other and
split the work into tasks.
- Events are public or private; private events are only visible to their
  creator and participants.
- Invitations go out by email to registered users and are accepted or declined
  by the invitee.
- Tasks belong to an event, are created by its creator and assigned to one user
  who moves them between pending, ongoing and completed.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return app.LoadDotEnv(viper.GetString("env-file"))
	},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("GATHERLY")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("config", "c", config.DefaultFile, "config file")
	rootCmd.PersistentFlags().String("db", "", "SQLite database path (overrides config)")
	rootCmd.PersistentFlags().String("env-file", ".env", "dotenv file loaded before the config")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("db", rootCmd.PersistentFlags().Lookup("db"))
	_ = viper.BindPFlag("env-file", rootCmd.PersistentFlags().Lookup("env-file"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func registerCommands() {
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(userCmd())
	rootCmd.AddCommand(eventCmd())
	rootCmd.AddCommand(invitationCmd())
}

// loadConfig reads the config file and environment, then applies --db.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(viper.GetString("config"))
	if err != nil {
		return nil, err
	}
	if p := viper.GetString("db"); p != "" {
		cfg.Database.Path = p
	}
	return cfg, nil
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.Server.Addr = addr
			}
			if cmd.Flags().Changed("base-path") {
				cfg.Server.BasePath = basePath
			}
			if err := cfg.RequireServe(); err != nil {
				return err
			}
			logger := app.NewLogger(cfg.Log, os.Stderr)

			shutdownTracing, err := telemetry.Setup(cmd.Context(), cfg.Telemetry)
			if err != nil {
				return err
			}
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdownTracing(ctx); err != nil {
					logger.Warn("flush traces", "error", err)
				}
			}()

			rt, err := app.Open(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer rt.Close()

			handler, err := server.New(server.Config{Engine: rt.Engine, BasePath: cfg.Server.BasePath, Logger: logger})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: cfg.Server.Addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			logger.Info("serving gatherly api",
				"addr", cfg.Server.Addr,
				"base_path", cfg.Server.BasePath,
				"db", cfg.Database.Path,
				"telemetry", cfg.Telemetry.Enabled,
			)
			fmt.Printf("Serving Gatherly API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)\n",
				cfg.Server.Addr, cfg.Server.BasePath, cfg.Server.BasePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", server.DefaultBasePath, "API base path")
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			conn, err := db.Open(db.Config{Path: cfg.Database.Path})
			if err != nil {
				return err
			}
			defer conn.Close()
			version, err := migrate.Migrate(cmd.Context(), conn)
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(map[string]any{"db": cfg.Database.Path, "schema_version": version})
			}
			fmt.Printf("%s at schema version %d\n", cfg.Database.Path, version)
			return nil
		},
	}
}

func configCmd() *cobra.Command {
	cfgCmd := &cobra.Command{Use: "config", Short: "Inspect or create configuration"}
	cfgCmd.AddCommand(configInitCmd())
	cfgCmd.AddCommand(configShowCmd())
	return cfgCmd
}

func configInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := viper.GetString("config")
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
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			shown := *cfg
			if shown.Auth.JWTSecret != "" {
				shown.Auth.JWTSecret = "********"
			}
			if viper.GetBool("json") {
				return printJSON(shown)
			}
			enc := yaml.NewEncoder(os.Stdout)
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(shown)
		},
	}
}

func userCmd() *cobra.Command {
	usr := &cobra.Command{Use: "user", Short: "Manage users"}
	usr.AddCommand(userCreateCmd())
	usr.AddCommand(userListCmd())
	usr.AddCommand(userSearchCmd())
	usr.AddCommand(userShowCmd())
	usr.AddCommand(userTokenCmd())
	usr.AddCommand(userTokensCmd())
	usr.AddCommand(userRevokeTokensCmd())
	return usr
}

func userCreateCmd() *cobra.Command {
	var req server.RegisterRequest
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Register a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				req.PasswordConfirmation = req.Password
				req.AgreeTerms = true
				errs := validate.New(e.Now).Check(req, nil)
				if _, err := e.GetUserByEmail(ctx, req.Email); err == nil {
					errs = append(errs, "This email is already taken.")
				}
				if err := errs.Err(); err != nil {
					return err
				}
				u, err := e.Register(ctx, engine.RegisterOptions{
					Name:       req.Name,
					Email:      req.Email,
					Password:   req.Password,
					Gender:     req.Gender,
					BirthDate:  req.BirthDate,
					Address:    req.Address,
					AgreeTerms: req.AgreeTerms,
				})
				if err != nil {
					return err
				}
				return printUsers(u)
			})
		},
	}
	cmd.Flags().StringVar(&req.Name, "name", "", "display name")
	cmd.Flags().StringVar(&req.Email, "email", "", "email address")
	cmd.Flags().StringVar(&req.Password, "password", "", "password (min 8 characters)")
	cmd.Flags().StringVar(&req.Gender, "gender", "other", "male, female or other")
	cmd.Flags().StringVar(&req.BirthDate, "birth-date", "", "birth date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&req.Address, "address", "", "postal address")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func userListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List users",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				users, err := e.ListUsers(ctx)
				if err != nil {
					return err
				}
				return printUsers(users...)
			})
		},
	}
}

func userSearchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Search users by name or email",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				users, err := e.SearchUsers(ctx, args[0])
				if err != nil {
					return err
				}
				return printUsers(users...)
			})
		},
	}
}

func userShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id|email>",
		Short: "Show a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				u, err := lookupUser(ctx, e, args[0])
				if err != nil {
					return err
				}
				return printJSON(u)
			})
		},
	}
}

func userTokenCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "token <id|email>",
		Short: "Issue a bearer token for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.RequireServe(); err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				u, err := lookupUser(ctx, e, args[0])
				if err != nil {
					return err
				}
				token, err := e.IssueToken(ctx, u.ID, name)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"user_id": u.ID, "token": token})
				}
				fmt.Println(token)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "cli", "token label")
	return cmd
}

func userTokensCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tokens <id|email>",
		Short: "List a user's active tokens",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				u, err := lookupUser(ctx, e, args[0])
				if err != nil {
					return err
				}
				tokens, err := e.UserTokens(ctx, u.ID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(tokens)
				}
				tw := newTable("ID", "Name", "Created", "Last used")
				for _, t := range tokens {
					tw.AppendRow(table.Row{t.ID, t.Name, t.CreatedAt, t.LastUsedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func userRevokeTokensCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revoke-tokens <id|email>",
		Short: "Log a user out of every device",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				u, err := lookupUser(ctx, e, args[0])
				if err != nil {
					return err
				}
				n, err := e.LogoutAllDevices(ctx, u.ID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"user_id": u.ID, "revoked": n})
				}
				fmt.Printf("revoked %d token(s) of %s\n", n, u.Email)
				return nil
			})
		},
	}
}

func eventCmd() *cobra.Command {
	evt := &cobra.Command{Use: "event", Short: "Inspect events"}
	evt.AddCommand(eventListCmd())
	evt.AddCommand(eventShowCmd())
	evt.AddCommand(eventDeleteCmd())
	return evt
}

func eventListCmd() *cobra.Command {
	var userRef string
	var created bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List events",
		Long:  "Lists every live event, or with --user the events that user can see (--created narrows to the ones they created).",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				var events []domain.Event
				var err error
				switch {
				case userRef == "":
					events, err = e.ListEvents(ctx)
				default:
					var u domain.User
					if u, err = lookupUser(ctx, e, userRef); err != nil {
						return err
					}
					if created {
						events, err = e.GetCreatedEventsOfUser(ctx, u)
					} else {
						events, err = e.GetAllEventsForUser(ctx, u)
					}
				}
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(events)
				}
				tw := newTable("ID", "Title", "Date", "Visibility", "Creator", "Participants")
				for _, ev := range events {
					creator := strconv.FormatInt(ev.CreatedBy, 10)
					if ev.Creator != nil {
						creator = ev.Creator.Email
					}
					tw.AppendRow(table.Row{ev.ID, ev.Title, ev.Date, ev.Visibility, creator, len(ev.Participants)})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&userRef, "user", "", "user id or email")
	cmd.Flags().BoolVar(&created, "created", false, "only events created by --user")
	return cmd
}

func eventShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show an event with its participants",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				ev, err := e.GetEvent(ctx, id)
				if err != nil {
					return err
				}
				if ev.Participants, err = e.Participants.ListParticipants(ctx, ev.ID, ""); err != nil {
					return err
				}
				return printJSON(ev)
			})
		},
	}
}

func eventDeleteCmd() *cobra.Command {
	var deletedBy string
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Soft-delete an event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				ev, err := e.GetEvent(ctx, id)
				if err != nil {
					return err
				}
				deleter, err := lookupUser(ctx, e, deletedBy)
				if err != nil {
					return err
				}
				if err := e.DeleteEvent(ctx, ev, deleter.ID); err != nil {
					return err
				}
				fmt.Printf("deleted event %d\n", ev.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&deletedBy, "deleted-by", "", "user id or email recorded as deleter")
	_ = cmd.MarkFlagRequired("deleted-by")
	return cmd
}

func invitationCmd() *cobra.Command {
	inv := &cobra.Command{Use: "invitation", Short: "Inspect invitations"}
	inv.AddCommand(invitationListCmd())
	return inv
}

func invitationListCmd() *cobra.Command {
	var userRef string
	var opts engine.InvitationListOptions
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List invitations sent or received by a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				u, err := lookupUser(ctx, e, userRef)
				if err != nil {
					return err
				}
				invs, err := e.GetUserInvitations(ctx, u, opts)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(invs)
				}
				tw := newTable("ID", "Event", "Invitee", "Inviter", "Status", "Created")
				for _, inv := range invs {
					tw.AppendRow(table.Row{inv.ID, inv.EventID, inv.Email, inv.UserID, inv.Status, inv.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&userRef, "user", "", "user id or email")
	cmd.Flags().StringVar(&opts.Type, "type", "", "sent or received (default both)")
	cmd.Flags().StringVar(&opts.Status, "status", "", "pending, accepted or declined")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

// --- helpers ---

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	rt, err := app.Open(ctx, cfg, app.NewLogger(cfg.Log, os.Stderr))
	if err != nil {
		return err
	}
	defer rt.Close()
	return fn(ctx, rt.Engine)
}

// lookupUser accepts a numeric id or an email address.
func lookupUser(ctx context.Context, e engine.Engine, ref string) (domain.User, error) {
	ref = strings.TrimSpace(ref)
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		return e.GetUser(ctx, id)
	}
	if strings.Contains(ref, "@") {
		return e.GetUserByEmail(ctx, ref)
	}
	return domain.User{}, fmt.Errorf("invalid user reference %q", ref)
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

func newTable(headers ...any) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row(headers))
	return tw
}

func printUsers(users ...domain.User) error {
	if viper.GetBool("json") {
		return printJSON(users)
	}
	tw := newTable("ID", "Name", "Email", "Gender", "Created")
	for _, u := range users {
		tw.AppendRow(table.Row{u.ID, u.Name, u.Email, u.Gender, u.CreatedAt})
	}
	tw.Render()
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
