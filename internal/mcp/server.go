package mcp

import (
	"context"
	"log/slog"

	"github.com/claude/liftlog/internal/catalog"
	"github.com/claude/liftlog/internal/grouping"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

type contextKey int

const userKey contextKey = iota

const defaultLogin = "local"

// UserFromContext extracts the login injected by the transport layer.
func UserFromContext(ctx context.Context) string {
	if login, ok := ctx.Value(userKey).(string); ok && login != "" {
		return login
	}
	return defaultLogin
}

// WithUser returns a context carrying the given login.
func WithUser(ctx context.Context, login string) context.Context {
	return context.WithValue(ctx, userKey, login)
}

// New creates an MCP server with all tools and resources registered.
// systemOwnerID owns the built-in exercises.
func New(ds DataSource, systemOwnerID, version string, log *slog.Logger) *server.MCPServer {
	s := server.NewMCPServer("liftlog", version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithInstructions("liftlog workout server. Query logged workouts with their supersets and drop sets, saved templates, and the exercise catalog. All data is scoped to the authenticated user."),
	)

	h := newHandlers(ds, systemOwnerID, log)

	s.AddTools(
		server.ServerTool{Tool: toolListExercises, Handler: h.listExercises},
		server.ServerTool{Tool: toolListWorkouts, Handler: h.listWorkouts},
		server.ServerTool{Tool: toolGetWorkout, Handler: h.getWorkout},
		server.ServerTool{Tool: toolGetWorkoutSets, Handler: h.getWorkoutSets},
		server.ServerTool{Tool: toolListTemplates, Handler: h.listTemplates},
		server.ServerTool{Tool: toolGetTemplate, Handler: h.getTemplate},
	)

	s.AddResources(
		server.ServerResource{Resource: resRecentWorkouts, Handler: h.recentWorkouts},
		server.ServerResource{Resource: resExerciseCatalog, Handler: h.exerciseCatalog},
	)

	return s
}

// handlers holds dependencies for MCP tool/resource handlers.
type handlers struct {
	ds       DataSource
	system   string
	hydrator *grouping.Hydrator
	log      *slog.Logger
}

func newHandlers(ds DataSource, systemOwnerID string, log *slog.Logger) *handlers {
	return &handlers{ds: ds, system: systemOwnerID, hydrator: grouping.NewHydrator(log), log: log}
}

// catalog loads the exercises visible to the caller.
func (h *handlers) catalog(ctx context.Context) (*catalog.Catalog, error) {
	rows, err := h.ds.ListExercises(ctx, UserFromContext(ctx), h.system)
	if err != nil {
		return nil, err
	}
	records := make([]catalog.Record, 0, len(rows))
	for _, r := range rows {
		records = append(records, catalog.Record{
			ID:          r.ID.String(),
			Name:        r.Name,
			MuscleGroup: r.MuscleGroup,
			OwnerUserID: r.OwnerUserID,
		})
	}
	return catalog.New(records, h.system), nil
}

// --- Resource definitions ---

var resRecentWorkouts = mcp.NewResource(
	"liftlog://recent_workouts",
	"Recent Workouts",
	mcp.WithResourceDescription("Finished workouts from the last 14 days with per-exercise volume"),
	mcp.WithMIMEType("application/json"),
)

var resExerciseCatalog = mcp.NewResource(
	"liftlog://exercise_catalog",
	"Exercise Catalog",
	mcp.WithResourceDescription("The caller's exercises and the built-in ones, grouped by muscle group"),
	mcp.WithMIMEType("application/json"),
)
