package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"busreg.io/stager/internal/app"
	"busreg.io/stager/internal/config"
	"busreg.io/stager/internal/domain"
	"busreg.io/stager/internal/pkg/logger"
	"busreg.io/stager/internal/session"
)

// workflows is the part of the coordinator the commands drive.
type workflows interface {
	Start(ctx context.Context, store session.Store, filename string, r io.Reader) (domain.Navigation, error)
	Resume(ctx context.Context, store session.Store) (domain.Navigation, error)
	Commit(ctx context.Context, store session.Store) (domain.Navigation, error)
	Discard(ctx context.Context, store session.Store) (domain.Navigation, error)
	Pending(ctx context.Context) ([]domain.StageProcess, error)
}

// lookups is the part of the registry the lookup commands drive.
type lookups interface {
	Search(ctx context.Context, q domain.SearchQuery) (domain.SearchPage, error)
	Status(ctx context.Context) ([]domain.LicenceSummary, error)
	Export(ctx context.Context, latestOnly, activeOnly bool) (domain.RecordTable, error)
}

// connection is what setup hands to the commands.
type connection struct {
	flows   workflows
	lookups lookups
	store   session.Store
	close   func()
}

type cli struct {
	configFile string
	envFile    string
	token      string
	yes        bool
	asJSON     bool

	// connect builds the backend and the stage store once config is loaded.
	connect func(ctx context.Context, cfg *config.Config) (connection, error)

	connection
}

func newCLI() *cli {
	return &cli{envFile: ".env", connect: connectBackend}
}

func connectBackend(ctx context.Context, cfg *config.Config) (connection, error) {
	backend, err := app.NewBackend(ctx, cfg)
	if err != nil {
		return connection{}, err
	}
	return connection{
		flows:   backend.Coordinator,
		lookups: backend.Registry,
		store:   session.NewFileStore(cfg.Session.StateFile),
		close:   backend.Close,
	}, nil
}

func newRootCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "bsrctl",
		Short:        "Stage bus service registration uploads and look up registered services",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup(cmd.Context())
		},
	}
	cmd.PersistentFlags().StringVar(&c.configFile, "config", "", "config file (default ./config.yaml)")
	cmd.PersistentFlags().StringVar(&c.token, "token", "", "registration API access token (overrides auth.token)")
	cmd.PersistentFlags().BoolVarP(&c.yes, "yes", "y", false, "commit without asking when records need confirmation")
	cmd.PersistentFlags().BoolVar(&c.asJSON, "json", false, "print the navigation document as JSON")

	cmd.AddCommand(
		cmdUpload(c),
		cmdStatus(c),
		cmdCommit(c),
		cmdDiscard(c),
		cmdPending(c),
		cmdSearch(c),
		cmdRegistrations(c),
	)
	return cmd
}

func (c *cli) setup(ctx context.Context) error {
	cfg, err := config.LoadWithOptions(config.Options{ConfigFile: c.configFile, EnvFile: c.envFile})
	if err != nil {
		return err
	}
	if err := logger.Init(cfg.Log.Level, "console"); err != nil {
		return err
	}

	// There is no incoming request to forward a bearer from.
	if c.token != "" {
		cfg.Auth.Source, cfg.Auth.Token = config.AuthSourceStatic, c.token
	}
	if cfg.Auth.Source == config.AuthSourceForward {
		cfg.Auth.Source = config.AuthSourceStatic
	}
	if cfg.Auth.Source == config.AuthSourceStatic && cfg.Auth.Token == "" {
		return fmt.Errorf("an access token is required: pass --token or set AUTH_TOKEN")
	}

	conn, err := c.connect(ctx, cfg)
	if err != nil {
		return err
	}
	c.connection = conn
	return nil
}

// shutdown releases what setup connected.
func (c *cli) shutdown() {
	if c.close != nil {
		c.close()
	}
	_ = logger.Sync()
}
