package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"mypeeps/config"
	"mypeeps/internal/app"
	"mypeeps/internal/domain"
	"mypeeps/internal/media"
	"mypeeps/internal/media/cloudinary"
	"mypeeps/internal/registry"
	"mypeeps/internal/remote"
	"mypeeps/pkg/logger"

	"github.com/spf13/cobra"
)

var (
	serverURL   string
	profilePath string
	logLevel    string

	clientCfg *config.Client
)

var rootCmd = &cobra.Command{
	Use:   "peeps",
	Short: "My Peeps - keep track of people and the groups they belong to",
	Long: `peeps talks to a My Peeps backend.

Log in once with "peeps login"; the session is kept in your profile file.
Run "peeps tui" for the interactive interface.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config.LoadEnvFile()
		cfg, err := config.LoadClient()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("server") {
			cfg.ServerURL = serverURL
		}
		if cmd.Flags().Changed("profile") {
			cfg.ProfilePath = profilePath
		}
		if cmd.Flags().Changed("log-level") {
			cfg.LogLevel = logLevel
		}
		clientCfg = cfg
		logger.InitWriter(cfg.LogLevel, cmd.ErrOrStderr())
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "backend URL (default $PEEPS_SERVER or http://localhost:8080)")
	rootCmd.PersistentFlags().StringVar(&profilePath, "profile", "", "session profile file (default $PEEPS_PROFILE)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level written to stderr (default warn)")

	rootCmd.AddCommand(registerCmd, loginCmd, logoutCmd, whoamiCmd, personCmd, groupCmd, tuiCmd)
}

var errNotLoggedIn = errors.New(`not logged in; run "peeps login <email>" first`)

// session is one CLI invocation's view of the backend.
type session struct {
	client *remote.Client
	app    *app.App
}

func (s *session) Close() { s.app.Close() }

// restore builds a client and reloads the stored session.
func restore(ctx context.Context, requireLogin bool) (*remote.Client, error) {
	cfg := clientCfg
	client := remote.New(cfg.ServerURL, remote.WithTokenStore(remote.Profile{Path: cfg.ProfilePath, Server: cfg.ServerURL}))
	if err := client.Restore(ctx); err != nil {
		return nil, fmt.Errorf("restore session: %w", err)
	}
	if requireLogin && client.Current() == nil {
		return nil, errNotLoggedIn
	}
	return client, nil
}

// open restores the stored session and, when requireLogin is set, waits for
// the first snapshots so the registries are populated.
func open(ctx context.Context, requireLogin bool) (*session, error) {
	cfg := clientCfg
	client, err := restore(ctx, requireLogin)
	if err != nil {
		return nil, err
	}

	a := app.New(app.Config{
		Identity: client,
		Store:    client,
		Uploader: uploader(cfg),
		Atomic:   cfg.AtomicWrites,
	})
	s := &session{client: client, app: a}

	if requireLogin {
		if msg := a.State().Notice; msg != "" {
			s.Close()
			return nil, errors.New(msg)
		}
		waitCtx, cancel := context.WithTimeout(ctx, cfg.SubscribeTimeout)
		defer cancel()
		if err := a.WaitSynced(waitCtx); err != nil {
			s.Close()
			return nil, fmt.Errorf("waiting for data from %s: %w", cfg.ServerURL, err)
		}
	}
	return s, nil
}

// snapshot reads both collections once, for commands that only print.
func snapshot(ctx context.Context) ([]domain.Person, []domain.Group, error) {
	client, err := restore(ctx, true)
	if err != nil {
		return nil, nil, err
	}
	uid := client.Current().UID

	docs, err := client.List(ctx, registry.PersonsQuery(uid))
	if err != nil {
		return nil, nil, fmt.Errorf("list people: %w", err)
	}
	persons := make([]domain.Person, 0, len(docs))
	for _, d := range docs {
		persons = append(persons, domain.PersonFromDocument(d))
	}

	docs, err = client.List(ctx, registry.GroupsQuery(uid))
	if err != nil {
		return nil, nil, fmt.Errorf("list groups: %w", err)
	}
	groups := make([]domain.Group, 0, len(docs))
	for _, d := range docs {
		groups = append(groups, domain.GroupFromDocument(d))
	}
	return persons, groups, nil
}

// uploader returns nil when Cloudinary is not configured.
func uploader(cfg *config.Client) media.Uploader {
	up, err := cloudinary.New(cfg.CloudName, cfg.UploadPreset, cloudinary.WithBaseURL(cfg.CloudinaryBase))
	if err != nil {
		logger.Sugar.Debugf("Uploads disabled: %v", err)
		return nil
	}
	return up
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
