package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/claude/liftlog/internal/catalog"
	"github.com/claude/liftlog/internal/client"
	"github.com/claude/liftlog/internal/draft"
	"github.com/claude/liftlog/internal/ingest/alpha"
	"github.com/spf13/cobra"
)

var (
	serverURL     string
	apiKey        string
	systemOwnerID string
	stateDir      string
	dryRun        bool
	verbose       bool
)

var rootCmd = &cobra.Command{
	Use:   "liftlog-import <export.csv>",
	Short: "Import an Alpha Progression CSV export into liftlog",
	Long: "Replays every session of an Alpha Progression CSV export through a workout " +
		"editor and finishes it on the liftlog server. Sessions already imported with " +
		"identical content are skipped, and a session whose finish failed is resumed " +
		"on the next run.",
	Args:          cobra.ExactArgs(1),
	RunE:          runImport,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.Flags().StringVar(&serverURL, "server", envOr("LIFTLOG_SERVER", "http://localhost:8080"),
		"liftlog server URL (env LIFTLOG_SERVER)")
	rootCmd.Flags().StringVar(&apiKey, "api-key", os.Getenv("LIFTLOG_API_KEY"),
		"API key for write endpoints (env LIFTLOG_API_KEY)")
	rootCmd.Flags().StringVar(&systemOwnerID, "system-owner", "system",
		"owner ID of built-in exercises on the server")
	rootCmd.Flags().StringVar(&stateDir, "state-dir", "",
		"directory for the import state database (default ~/.liftlog-import)")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false,
		"parse and convert without sending anything to the server")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("opening export: %w", err)
	}
	defer f.Close()

	c := client.New(serverURL, apiKey)

	me, err := c.Me(ctx)
	if err != nil {
		return fmt.Errorf("fetching user: %w", err)
	}
	log.Info("connected", "server", serverURL, "user", me.Login, "pro", me.Pro)

	records, err := c.Exercises(ctx)
	if err != nil {
		return fmt.Errorf("fetching exercises: %w", err)
	}
	cat := catalog.New(records, systemOwnerID)
	log.Info("catalog loaded", "exercises", cat.Len())

	var state *alpha.StateDB
	if !dryRun {
		dir, err := resolveStateDir()
		if err != nil {
			return err
		}
		state, err = alpha.OpenStateDB(dir)
		if err != nil {
			return fmt.Errorf("opening state database: %w", err)
		}
		defer state.Close()
	} else {
		log.Info("dry run: nothing will be sent to the server")
	}

	imp := alpha.NewImporter(cat, c, state, me.Pro, dryRun, log)
	if state != nil && draftsAvailable(ctx, c, log) {
		// Drafts live on the server so an unfinished session can be resumed.
		window := time.Duration(me.DraftDebounceMs) * time.Millisecond
		imp.UseDrafts(draft.NewStore(c, window, log))
	}
	stats, err := imp.Import(ctx, f)
	if stats != nil {
		printStats(cmd.OutOrStdout(), stats)
	}
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}
	return nil
}

// draftsAvailable reports whether the server has draft storage configured.
func draftsAvailable(ctx context.Context, c *client.Client, log *slog.Logger) bool {
	_, err := c.Get(ctx, "liftlog-import")
	switch {
	case err == nil, errors.Is(err, draft.ErrNotFound):
		return true
	case client.IsStatus(err, http.StatusServiceUnavailable):
		log.Info("server has no draft storage; unfinished sessions resume without drafts")
	default:
		log.Warn("draft storage check failed", "error", err)
	}
	return false
}

func resolveStateDir() (string, error) {
	if stateDir != "" {
		return stateDir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".liftlog-import"), nil
}

func printStats(w io.Writer, stats *alpha.Stats) {
	fmt.Fprintf(w, "Sessions:  %d total, %d imported, %d already imported, %d empty\n",
		stats.SessionsTotal, stats.SessionsImported, stats.SessionsSkipped, stats.SessionsEmpty)
	fmt.Fprintf(w, "Sets:      %d sent, %d warm-ups skipped, %d invalid skipped\n",
		stats.SetsSent, stats.WarmupsSkipped, stats.SetsSkipped)
	if len(stats.Unmatched) > 0 {
		fmt.Fprintf(w, "Unmatched exercises (%d):\n", len(stats.Unmatched))
		for _, name := range stats.Unmatched {
			fmt.Fprintf(w, "  %s\n", name)
		}
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
