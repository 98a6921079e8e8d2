package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/claude/liftlog/internal/draft"
	"github.com/claude/liftlog/internal/grouping"
	"github.com/claude/liftlog/internal/models"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// Store is the persistence layer used by the handlers. *storage.DB
// satisfies it.
type Store interface {
	TouchUser(ctx context.Context, login, displayName string) error
	ListExercises(ctx context.Context, ownerID, systemOwnerID string) ([]models.ExerciseRow, error)

	StartSession(ctx context.Context, userID string, templateID *uuid.UUID) (models.SessionRow, error)
	ListSessions(ctx context.Context, userID string, limit int) ([]models.SessionRow, error)
	GetSession(ctx context.Context, id uuid.UUID, userID string) (*models.SessionRow, error)
	SessionItems(ctx context.Context, id uuid.UUID) ([]models.FlatItem, error)
	FinishSession(ctx context.Context, id uuid.UUID, userID string, items []models.FlatItem) (models.SessionRow, error)
	DeleteSession(ctx context.Context, id uuid.UUID, userID string) error

	ListTemplates(ctx context.Context, ownerID string) ([]models.TemplateRow, error)
	GetTemplate(ctx context.Context, id uuid.UUID, ownerID string) (*models.TemplateRow, error)
	TemplateNameTaken(ctx context.Context, ownerID, name string, exclude *uuid.UUID) (bool, error)
	CreateTemplate(ctx context.Context, ownerID, name string, items []models.FlatItem) (models.TemplateRow, error)
	UpdateTemplate(ctx context.Context, id uuid.UUID, ownerID, name string, items []models.FlatItem) (models.TemplateRow, error)
	DeleteTemplate(ctx context.Context, id uuid.UUID, ownerID string) error
	TemplateItems(ctx context.Context, id uuid.UUID) ([]models.FlatItem, error)
}

// Options configures a Server.
type Options struct {
	APIKey        string
	SystemOwnerID string
	ProLogins     []string
	DraftDebounce time.Duration
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	db       Store
	drafts   draft.Backend
	hydrator *grouping.Hydrator
	log      *slog.Logger
	apiKey   string
	system   string
	pro      map[string]bool
	debounce time.Duration
	whois    WhoIser
	router   chi.Router
}

// New creates a new Server with all routes configured. drafts may be nil,
// in which case the draft endpoints answer 503.
func New(db Store, drafts draft.Backend, opts Options, log *slog.Logger) *Server {
	s := &Server{
		db:       db,
		drafts:   drafts,
		hydrator: grouping.NewHydrator(log),
		log:      log,
		apiKey:   opts.APIKey,
		system:   opts.SystemOwnerID,
		pro:      make(map[string]bool, len(opts.ProLogins)),
		debounce: opts.DraftDebounce,
		router:   chi.NewRouter(),
	}
	for _, login := range opts.ProLogins {
		s.pro[login] = true
	}
	s.routes()
	return s
}

// SetTailscale switches identity resolution from the dev user to tailnet
// WhoIs lookups.
func (s *Server) SetTailscale(wi WhoIser) {
	s.whois = wi
}

// Mount attaches h under pattern, behind the identity middleware.
func (s *Server) Mount(pattern string, h http.Handler) {
	s.router.Mount(pattern, h)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Login returns the caller's login as stored by the identity middleware.
func Login(r *http.Request) string {
	return userInfoFromContext(r).Login
}

func (s *Server) identity(next http.Handler) http.Handler {
	dev := DevIdentity(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.whois == nil {
			dev.ServeHTTP(w, r)
			return
		}
		TailscaleIdentity(s.whois)(next).ServeHTTP(w, r)
	})
}

func (s *Server) routes() {
	s.router.Use(RequestLogging(s.log))
	s.router.Use(CORS)
	s.router.Use(s.identity)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/me", s.handleMe)
		r.Get("/exercises", s.handleListExercises)

		r.Get("/sessions", s.handleListSessions)
		r.Get("/sessions/{id}", s.handleGetSession)
		r.Get("/sessions/{id}/sets", s.handleSessionSets)

		r.Get("/templates", s.handleListTemplates)
		r.Get("/templates/{id}", s.handleGetTemplate)
		r.Get("/templates/{id}/exercises", s.handleTemplateItems)

		r.Get("/drafts/{key}", s.handleGetDraft)

		// Writes require the API key.
		r.Group(func(r chi.Router) {
			r.Use(APIKeyAuth(s.apiKey))
			r.Post("/sessions", s.handleStartSession)
			r.Post("/sessions/{id}/finish", s.handleFinishSession)
			r.Delete("/sessions/{id}", s.handleDeleteSession)

			r.Post("/templates", s.handleCreateTemplate)
			r.Put("/templates/{id}", s.handleUpdateTemplate)
			r.Delete("/templates/{id}", s.handleDeleteTemplate)

			r.Put("/drafts/{key}", s.handlePutDraft)
			r.Delete("/drafts/{key}", s.handleDeleteDraft)
		})
	})
}
