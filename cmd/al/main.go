package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"assetline/internal/app"
	"assetline/internal/config"
	"assetline/internal/db"
	"assetline/internal/domain"
	"assetline/internal/engine"
	"assetline/internal/idempotency"
	"assetline/internal/logging"
	"assetline/internal/repo"
	"assetline/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "al",
	Short: "Assetline CLI",
	Long: `Assetline tracks borrow requests for shared inventory.
- Requests: an employee asks to borrow items for a date range; a manager and then a PIC decide.
- Statuses: Waiting_Manager_Approval -> Waiting_PIC_Approval -> Approved/Success -> Returned; Reject and Canceled are exits.
- Revise sends a request back one stage; every decision is kept in the approval log.
- Items: the availability flag flips to false when the PIC approves and back to true on return.
- Event log: every change, view with 'al log tail'.`,
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
		os.Exit(exitCode(err))
	}
}

func initConfig() {
	viper.SetEnvPrefix("ASSETLINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	flags := rootCmd.PersistentFlags()
	flags.StringP("workspace", "w", ".", "workspace directory")
	flags.String("config", "", "config file (default <workspace>/assetline.yml)")
	flags.Bool("json", false, "output JSON")
	flags.String("actor-id", "", "acting user id")
	flags.String("log-level", "", "log level override (debug, info, warn, error)")
	for _, name := range []string{"workspace", "config", "json", "actor-id", "log-level"} {
		_ = viper.BindPFlag(name, flags.Lookup(name))
	}
}

func registerCommands() {
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(itemCmd())
	rootCmd.AddCommand(userCmd())
	rootCmd.AddCommand(roleCmd())
	rootCmd.AddCommand(apiKeyCmd())
	rootCmd.AddCommand(requestCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(serveCmd())
}

// exitCode distinguishes rejected operations from internal failures.
func exitCode(err error) int {
	switch engine.KindOf(err) {
	case engine.KindNotFound, engine.KindForbidden, engine.KindInvalidState, engine.KindBadRequest:
		return 2
	default:
		return 1
	}
}

func loadConfig() (*config.Config, error) {
	return app.ResolveConfig(viper.GetString("workspace"), viper.GetString("config"))
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	level := cfg.Log.Level
	if override := viper.GetString("log-level"); override != "" {
		level = override
	}
	return logging.New(level, cfg.Log.Encoding)
}

func withEnv(ctx context.Context, fn func(context.Context, *app.Env) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()
	env, err := app.Open(ctx, viper.GetString("workspace"), cfg, log)
	if err != nil {
		return err
	}
	defer env.Close()
	return fn(ctx, env)
}

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	return withEnv(ctx, func(ctx context.Context, env *app.Env) error {
		return fn(ctx, env.Engine)
	})
}

func actorID() (string, error) {
	id := strings.TrimSpace(viper.GetString("actor-id"))
	if id == "" {
		return "", errors.New("--actor-id (or ASSETLINE_ACTOR_ID) is required")
	}
	return id, nil
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and seed configured roles",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), func(ctx context.Context, env *app.Env) error {
				fmt.Printf("workspace ready at %s\n", db.Path(viper.GetString("workspace")))
				return nil
			})
		},
	}
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{Use: "config", Short: "Workspace configuration"}
	cfg.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadConfig()
			if err != nil {
				return err
			}
			return printJSON(c)
		},
	})
	cfg.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate the config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadConfig()
			if err != nil {
				return err
			}
			if err := c.Validate(); err != nil {
				return err
			}
			fmt.Println("config ok")
			return nil
		},
	})
	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default assetline.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s exists; pass --force to overwrite", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Printf("wrote %s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	cfg.AddCommand(initCmd)
	return cfg
}

func itemCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "item", Short: "Inventory items"}

	var name, category string
	add := &cobra.Command{
		Use:   "add <id>",
		Short: "Add an available item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := actorID()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				it, err := e.AddItem(ctx, domain.Item{ID: args[0], Name: name, CategoryID: category, IsAvailable: true}, actor)
				if err != nil {
					return err
				}
				return printItems(it)
			})
		},
	}
	add.Flags().StringVar(&name, "name", "", "display name")
	add.Flags().StringVar(&category, "category", "", "category id")
	_ = add.MarkFlagRequired("name")

	var onlyAvailable bool
	var listCategory string
	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List items",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				f := repo.ItemFilters{Category: listCategory, Limit: limit}
				if cmd.Flags().Changed("available") {
					f.Available = &onlyAvailable
				}
				items, err := e.ListItems(ctx, f)
				if err != nil {
					return err
				}
				return printItems(items...)
			})
		},
	}
	list.Flags().BoolVar(&onlyAvailable, "available", true, "filter by availability")
	list.Flags().StringVar(&listCategory, "category", "", "category filter")
	list.Flags().IntVar(&limit, "limit", 0, "max rows")

	show := &cobra.Command{
		Use:   "show <id>",
		Short: "Show an item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				it, err := e.GetItem(ctx, args[0])
				if err != nil {
					return err
				}
				return printItems(it)
			})
		},
	}

	setAvailable := &cobra.Command{
		Use:   "set-available <id> <true|false>",
		Short: "Override an item's availability flag",
		Long:  "Out-of-band correction. Not coordinated with requests currently holding the item.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := actorID()
			if err != nil {
				return err
			}
			var available bool
			switch strings.ToLower(args[1]) {
			case "true", "yes", "1":
				available = true
			case "false", "no", "0":
			default:
				return fmt.Errorf("availability must be true or false, got %q", args[1])
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				it, err := e.SetItemAvailability(ctx, args[0], available, actor)
				if err != nil {
					return err
				}
				return printItems(it)
			})
		},
	}

	cmd.AddCommand(add, list, show, setAvailable)
	return cmd
}

func userCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "user", Short: "Users and grades"}

	var name, grade string
	var roles []string
	add := &cobra.Command{
		Use:   "add <id>",
		Short: "Add a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := actorID()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				u, err := e.AddUser(ctx, domain.User{ID: args[0], Name: name, Grade: grade, Roles: roles}, actor)
				if err != nil {
					return err
				}
				return printUsers(u)
			})
		},
	}
	add.Flags().StringVar(&name, "name", "", "display name")
	add.Flags().StringVar(&grade, "grade", "", "grade level")
	add.Flags().StringSliceVar(&roles, "role", nil, "role to assign (repeatable)")

	show := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a user with roles",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				u, err := e.GetUser(ctx, args[0])
				if err != nil {
					return err
				}
				return printUsers(u)
			})
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List users",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				users, err := e.Repo.ListUsers(ctx)
				if err != nil {
					return err
				}
				return printUsers(users...)
			})
		},
	}

	cmd.AddCommand(add, show, list)
	return cmd
}

func roleCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "role", Short: "Role assignments"}
	change := func(use, short string, grant bool) *cobra.Command {
		return &cobra.Command{
			Use:   use + " <user> <role>",
			Short: short,
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				actor, err := actorID()
				if err != nil {
					return err
				}
				return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
					var u domain.User
					if grant {
						u, err = e.GrantRole(ctx, args[0], args[1], actor)
					} else {
						u, err = e.RevokeRole(ctx, args[0], args[1], actor)
					}
					if err != nil {
						return err
					}
					return printUsers(u)
				})
			},
		}
	}
	cmd.AddCommand(change("grant", "Grant a role", true))
	cmd.AddCommand(change("revoke", "Revoke a role", false))
	return cmd
}

func apiKeyCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "apikey", Short: "API keys for the HTTP server"}

	var name string
	create := &cobra.Command{
		Use:   "create <user>",
		Short: "Issue a key that authenticates as user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := actorID()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				key, raw, err := e.CreateAPIKey(ctx, args[0], name, actor)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]string{"id": key.ID, "actor_id": key.ActorID, "key": raw})
				}
				fmt.Printf("key %s for %s (shown once):\n%s\n", key.ID, key.ActorID, raw)
				return nil
			})
		},
	}
	create.Flags().StringVar(&name, "name", "", "label")

	list := &cobra.Command{
		Use:   "list [user]",
		Short: "List keys",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			user := ""
			if len(args) == 1 {
				user = args[0]
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				keys, err := e.ListAPIKeys(ctx, user)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(keys)
				}
				tw := newTable(table.Row{"ID", "User", "Name", "Created"})
				for _, k := range keys {
					tw.AppendRow(table.Row{k.ID, k.ActorID, k.Name, k.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}

	revoke := &cobra.Command{
		Use:   "revoke <key-id>",
		Short: "Delete a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := actorID()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.RevokeAPIKey(ctx, args[0], actor)
			})
		},
	}

	cmd.AddCommand(create, list, revoke)
	return cmd
}

func requestCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "request", Short: "Borrow requests"}

	var manager, start, end, comment string
	var items []string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a borrow request as the acting user",
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := actorID()
			if err != nil {
				return err
			}
			lines := make([]domain.RequestLine, 0, len(items))
			for _, id := range items {
				lines = append(lines, domain.RequestLine{ItemID: id, Quantity: 1})
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				req, err := e.CreateRequest(ctx, engine.CreateRequestOptions{
					RequesterID: actor,
					ManagerID:   manager,
					Lines:       lines,
					StartDate:   start,
					EndDate:     end,
					Comment:     comment,
				})
				if err != nil {
					return err
				}
				return printRequest(req)
			})
		},
	}
	create.Flags().StringVar(&manager, "manager", "", "approving manager id")
	create.Flags().StringSliceVar(&items, "item", nil, "item id (repeatable)")
	create.Flags().StringVar(&start, "start", "", "start date (YYYY-MM-DD)")
	create.Flags().StringVar(&end, "end", "", "end date (YYYY-MM-DD)")
	create.Flags().StringVar(&comment, "comment", "", "comment")
	for _, f := range []string{"manager", "item", "start", "end"} {
		_ = create.MarkFlagRequired(f)
	}

	show := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a request with lines and approval log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := actorID()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				req, err := e.GetRequest(ctx, args[0], actor)
				if err != nil {
					return err
				}
				return printRequest(req)
			})
		},
	}

	mine := &cobra.Command{
		Use:   "mine",
		Short: "List the acting user's requests",
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := actorID()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				reqs, err := e.ListMyRequests(ctx, actor)
				if err != nil {
					return err
				}
				return printRequests(reqs)
			})
		},
	}

	var stage string
	pending := &cobra.Command{
		Use:   "pending",
		Short: "List requests waiting for the acting user's decision",
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := actorID()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				var reqs []domain.Request
				switch stage {
				case "manager":
					reqs, err = e.ManagerQueue(ctx, actor)
				case "pic":
					reqs, err = e.PicQueue(ctx, actor)
				default:
					return fmt.Errorf("--stage must be manager or pic")
				}
				if err != nil {
					return err
				}
				return printRequests(reqs)
			})
		},
	}
	pending.Flags().StringVar(&stage, "stage", "manager", "manager or pic")

	returnCmd := &cobra.Command{
		Use:   "return <id>",
		Short: "Return the items of an approved request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := actorID()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				req, err := e.ReturnItems(ctx, args[0], actor)
				if err != nil {
					return err
				}
				return printRequest(req)
			})
		},
	}

	cmd.AddCommand(create, show, mine, pending, returnCmd)
	cmd.AddCommand(decideCmd("manager-decide", "Record the manager decision", func(e engine.Engine) decideFunc { return e.DecideManagerApproval }))
	cmd.AddCommand(decideCmd("pic-decide", "Record the PIC decision", func(e engine.Engine) decideFunc { return e.DecidePicApproval }))
	return cmd
}

type decideFunc func(ctx context.Context, requestID, actorID string, decision domain.Decision, comment string) (domain.Request, error)

func decideCmd(use, short string, pick func(engine.Engine) decideFunc) *cobra.Command {
	var comment string
	cmd := &cobra.Command{
		Use:   use + " <id> <Approved|Reject|Revise|Canceled>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := actorID()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				req, err := pick(e)(ctx, args[0], actor, domain.Decision(args[1]), comment)
				if err != nil {
					return err
				}
				return printRequest(req)
			})
		},
	}
	cmd.Flags().StringVar(&comment, "comment", "", "decision comment")
	return cmd
}

func logCmd() *cobra.Command {
	log := &cobra.Command{Use: "log", Short: "Event log"}
	var n int
	var after int64
	var entityKind, entityID string
	tail := &cobra.Command{
		Use:   "tail",
		Short: "Show events (admin only)",
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := actorID()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				events, err := e.ListEvents(ctx, actor, repo.EventFilters{
					EntityKind: entityKind,
					EntityID:   entityID,
					AfterID:    after,
					Limit:      n,
				})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(events)
				}
				tw := newTable(table.Row{"ID", "TS", "Type", "Entity", "Actor", "Payload"})
				for _, evt := range events {
					tw.AppendRow(table.Row{evt.ID, evt.TS, evt.Type, evt.EntityKind + "/" + evt.EntityID, evt.ActorID, evt.Payload})
				}
				tw.Render()
				return nil
			})
		},
	}
	tail.Flags().IntVar(&n, "n", 20, "number of events")
	tail.Flags().Int64Var(&after, "after", 0, "only events with id greater than this")
	tail.Flags().StringVar(&entityKind, "entity-kind", "", "request, item, user or api_key")
	tail.Flags().StringVar(&entityID, "entity-id", "", "entity id")
	log.AddCommand(tail)
	return log
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	var devLogin bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), func(ctx context.Context, env *app.Env) error {
				cfg := env.Config
				if !cmd.Flags().Changed("addr") && cfg.Server.Addr != "" {
					addr = cfg.Server.Addr
				}
				if !cmd.Flags().Changed("base-path") && cfg.Server.BasePath != "" {
					basePath = cfg.Server.BasePath
				}
				if !cmd.Flags().Changed("dev-login") {
					devLogin = cfg.Server.DevLogin
				}
				authCfg := server.AuthConfig{JWTSecret: os.Getenv(cfg.Auth.JWTSecretEnv), DevLogin: devLogin}
				if authCfg.JWTSecret == "" {
					return fmt.Errorf("%s is required for bearer auth", cfg.Auth.JWTSecretEnv)
				}
				guard, closeGuard, err := idempotency.New(ctx, cfg.Idempotency.RedisAddr, cfg.IdempotencyTTL())
				if err != nil {
					return fmt.Errorf("idempotency store: %w", err)
				}
				defer closeGuard()
				handler, err := server.New(server.Config{
					Engine:   env.Engine,
					BasePath: basePath,
					Auth:     authCfg,
					Guard:    guard,
					Log:      env.Log,
				})
				if err != nil {
					return err
				}
				srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
				go func() {
					<-ctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					srv.Shutdown(shutdownCtx)
				}()
				env.Log.Info("serving assetline api",
					zap.String("addr", addr),
					zap.String("base_path", basePath),
					zap.Bool("dev_login", devLogin),
					zap.Bool("redis_idempotency", cfg.Idempotency.RedisAddr != ""))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	cmd.Flags().BoolVar(&devLogin, "dev-login", false, "expose POST /auth/dev/login")
	return cmd
}

func newTable(header table.Row) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(header)
	return tw
}

func printItems(items ...domain.Item) error {
	if viper.GetBool("json") {
		if len(items) == 1 {
			return printJSON(items[0])
		}
		return printJSON(items)
	}
	tw := newTable(table.Row{"ID", "Name", "Category", "Available", "Updated"})
	for _, it := range items {
		tw.AppendRow(table.Row{it.ID, it.Name, it.CategoryID, it.IsAvailable, it.UpdatedAt})
	}
	tw.Render()
	return nil
}

func printUsers(users ...domain.User) error {
	if viper.GetBool("json") {
		if len(users) == 1 {
			return printJSON(users[0])
		}
		return printJSON(users)
	}
	tw := newTable(table.Row{"ID", "Name", "Grade", "Roles"})
	for _, u := range users {
		tw.AppendRow(table.Row{u.ID, u.Name, u.Grade, strings.Join(u.Roles, ",")})
	}
	tw.Render()
	return nil
}

func printRequests(reqs []domain.Request) error {
	if viper.GetBool("json") {
		return printJSON(reqs)
	}
	tw := newTable(table.Row{"ID", "Requester", "Manager", "Status", "Items", "From", "To"})
	for _, r := range reqs {
		tw.AppendRow(table.Row{r.ID, r.RequesterID, r.ManagerID, r.Status, strings.Join(r.ItemIDs(), ","), r.StartDate, r.EndDate})
	}
	tw.Render()
	return nil
}

func printRequest(req domain.Request) error {
	if viper.GetBool("json") {
		return printJSON(req)
	}
	fmt.Printf("%s  %s\nrequester %s  manager %s  %s..%s\n", req.ID, req.Status, req.RequesterID, req.ManagerID, req.StartDate, req.EndDate)
	if req.Comment != "" {
		fmt.Printf("comment: %s\n", req.Comment)
	}
	lines := newTable(table.Row{"Item", "Name", "Qty", "Available"})
	for _, l := range req.Lines {
		lines.AppendRow(table.Row{l.ItemID, l.ItemName, l.Quantity, l.IsAvailable})
	}
	lines.Render()
	if len(req.Approvals) > 0 {
		log := newTable(table.Row{"#", "Stage", "Approver", "Decision", "At", "Comment"})
		for _, a := range req.Approvals {
			log.AppendRow(table.Row{a.Seq, a.ApproverRole, a.ApproverID, a.Decision, a.DecidedAt, a.Comment})
		}
		log.Render()
	}
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
