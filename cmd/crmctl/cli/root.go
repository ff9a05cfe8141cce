package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/app"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/platform/cache"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/platform/db"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/shared"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/users"
)

// CatalogueSyncer upserts the permission catalogue.
type CatalogueSyncer interface {
	SyncCatalogue(ctx context.Context) (int, error)
}

// UserCreator creates user accounts.
type UserCreator interface {
	Create(ctx context.Context, actor shared.Actor, req users.CreateRequest) (users.User, error)
}

// Deps are the handles a command needs. Release frees them.
type Deps struct {
	Permissions CatalogueSyncer
	Users       UserCreator
	Jobs        *JobsCLI
	Release     func()
}

// Connector opens Deps for one command invocation.
type Connector func(ctx context.Context) (Deps, error)

// NewRootCommand builds the crmctl command tree.
func NewRootCommand(connect Connector) *cobra.Command {
	root := &cobra.Command{
		Use:           "crmctl",
		Short:         "Administrative tasks for the WeConnect CRM backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newPermissionsCommand(connect),
		newUsersCommand(connect),
		newJobsCommand(connect),
	)
	return root
}

// Connect opens Postgres, Redis and the queue from the environment
// configuration.
func Connect(ctx context.Context) (Deps, error) {
	cfg, err := app.LoadConfig()
	if err != nil {
		return Deps{}, fmt.Errorf("load config: %w", err)
	}
	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		return Deps{}, err
	}
	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		pool.Close()
		return Deps{}, err
	}
	services, err := app.NewServices(app.ServiceDeps{Config: *cfg, Logger: logger, Pool: pool, Redis: redisClient})
	if err != nil {
		pool.Close()
		_ = redisClient.Close()
		return Deps{}, err
	}
	jobsCLI := NewJobsCLI(cfg.RedisAddr)
	return Deps{
		Permissions: services.RBAC,
		Users:       services.Users,
		Jobs:        jobsCLI,
		Release: func() {
			if err := jobsCLI.Close(); err != nil {
				logger.Warn("close queue handles", slog.Any("error", err))
			}
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
			pool.Close()
		},
	}, nil
}

// withDeps runs fn with freshly connected Deps.
func withDeps(cmd *cobra.Command, connect Connector, fn func(Deps) error) error {
	deps, err := connect(cmd.Context())
	if err != nil {
		return err
	}
	if deps.Release != nil {
		defer deps.Release()
	}
	return fn(deps)
}

func newPermissionsCommand(connect Connector) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "permissions",
		Short: "Manage the permission catalogue",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "sync",
		Short: "Upsert every known permission key into the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(cmd, connect, func(d Deps) error {
				n, err := d.Permissions.SyncCatalogue(cmd.Context())
				if err != nil {
					return fmt.Errorf("sync permissions: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "synced %d permissions\n", n)
				return nil
			})
		},
	})
	return cmd
}

func newUsersCommand(connect Connector) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage user accounts",
	}

	var req users.CreateRequest
	var managerID int64
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a user account",
		Example: `  # First administrator: a user without roles is unrestricted
  # while ACCESS_BOOTSTRAP is on
  crmctl users create --email admin@example.com --name Admin --password 'change-me-now'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if managerID > 0 {
				req.ManagerID = &managerID
			}
			return withDeps(cmd, connect, func(d Deps) error {
				user, err := d.Users.Create(cmd.Context(), shared.Actor{}, req)
				if err != nil {
					return fmt.Errorf("create user: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created user %d <%s>\n", user.ID, user.Email)
				return nil
			})
		},
	}
	create.Flags().StringVar(&req.Email, "email", "", "login e-mail")
	create.Flags().StringVar(&req.Name, "name", "", "display name")
	create.Flags().StringVar(&req.Password, "password", "", "initial password (8-72 characters)")
	create.Flags().Int64SliceVar(&req.RoleIDs, "role-id", nil, "role id to assign (repeatable)")
	create.Flags().Int64Var(&managerID, "manager-id", 0, "id of the user's manager")
	for _, name := range []string{"email", "name", "password"} {
		_ = create.MarkFlagRequired(name)
	}
	cmd.AddCommand(create)
	return cmd
}

func newJobsCommand(connect Connector) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and trigger background jobs",
	}

	var opts TriggerOptions
	trigger := &cobra.Command{
		Use:   "trigger <task-type>",
		Short: "Enqueue a job now",
		Example: `  crmctl jobs trigger maintenance:idempotency_cleanup --retain-hours 24
  crmctl jobs trigger document:email --kind invoice --document-id 42 --to buyer@example.com`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(cmd, connect, func(d Deps) error {
				info, err := d.Jobs.Trigger(cmd.Context(), args[0], opts)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "enqueued %s as %s on %s\n", info.Type, info.ID, info.Queue)
				return nil
			})
		},
	}
	trigger.Flags().IntVar(&opts.RetainHours, "retain-hours", 0, "idempotency keys younger than this are kept (0 = default)")
	trigger.Flags().StringVar(&opts.Kind, "kind", "", "document kind: invoice or quotation")
	trigger.Flags().Int64Var(&opts.DocumentID, "document-id", 0, "document id to e-mail")
	trigger.Flags().StringVar(&opts.To, "to", "", "recipient address")

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Show default queue counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(cmd, connect, func(d Deps) error {
				s, err := d.Jobs.InspectQueue(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "queue=%s pending=%d active=%d scheduled=%d retry=%d archived=%d\n",
					s.Queue, s.Pending, s.Active, s.Scheduled, s.Retry, s.Archived)
				return nil
			})
		},
	}

	var size int
	scheduled := &cobra.Command{
		Use:   "scheduled",
		Short: "List scheduled tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(cmd, connect, func(d Deps) error {
				tasks, err := d.Jobs.ListScheduled(cmd.Context(), size)
				if err != nil {
					return err
				}
				for _, t := range tasks {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", t.ID, t.Type, t.NextProcessAt.Format("2006-01-02T15:04:05Z07:00"))
				}
				return nil
			})
		},
	}
	scheduled.Flags().IntVar(&size, "size", 10, "page size")

	cmd.AddCommand(trigger, stats, scheduled)
	return cmd
}

var _ QueueReader = (*asynq.Inspector)(nil)
