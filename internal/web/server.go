package web

import (
	"context"
	"log/slog"
	"time"

	"realtycrm/internal/access"
	"realtycrm/internal/account"
	"realtycrm/internal/activity"
	"realtycrm/internal/announcement"
	"realtycrm/internal/config"
	"realtycrm/internal/lead"
	"realtycrm/internal/leave"
	"realtycrm/internal/project"
	"realtycrm/internal/report"
	"realtycrm/internal/settings"
	"realtycrm/internal/task"
	"realtycrm/internal/telemetry"
	"realtycrm/internal/user"
	"realtycrm/internal/validator"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/csrf"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/gofiber/fiber/v2/utils"
)

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

type Services struct {
	Authorizer *access.Authorizer
	// Accounts reloads the signed-in user on every request. Nil trusts the session copy.
	Accounts      access.UserGetter
	Auth          *account.Authenticator
	Leads         *lead.Manager
	Tasks         *task.Manager
	Projects      *project.Manager
	Leaves        *leave.Manager
	Users         *user.Manager
	Announcements *announcement.Manager
	Activity      *activity.Manager
	Reports       *report.Manager
	Settings      *settings.Manager
}

type Options struct {
	// LoginRequests caps login requests per client IP inside LoginWindow.
	LoginRequests int
	LoginWindow   time.Duration
	// UploadsURL and UploadsPath serve locally stored files. Empty when files live in S3.
	UploadsURL  string
	UploadsPath string
	Health      map[string]HealthCheck
}

type Server struct {
	logger    *slog.Logger
	validator *validator.Validator
	sessions  *session.Store
	opts      Options
	Services
}

func NewServer(logger *slog.Logger, sessions *session.Store, services Services, opts Options) *Server {
	return &Server{
		logger:    logger.With("component", "web"),
		validator: validator.New(),
		sessions:  sessions,
		opts:      opts,
		Services:  services,
	}
}

// NewSessionStore configures the cookie session. storage is nil in tests, which keeps sessions
// in memory.
func NewSessionStore(cfg config.SessionConfig, storage fiber.Storage) *session.Store {
	return session.New(session.Config{
		Storage:        storage,
		KeyLookup:      "cookie:session_id",
		CookiePath:     "/",
		CookieSecure:   cfg.CookieSecure,
		CookieHTTPOnly: true,
		CookieSameSite: "Lax",
		Expiration:     cfg.Expiration,
	})
}

// NewApp builds the fiber application with the global middleware stack and all routes.
func NewApp(cfg *config.Config, logger *slog.Logger, s *Server) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "realtycrm",
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		BodyLimit:    cfg.Server.BodyLimit,
		ErrorHandler: ErrorHandler(logger),
	})

	app.Use(recover.New(recover.Config{EnableStackTrace: !cfg.Server.IsProduction()}))
	app.Use(requestid.New())
	app.Use(telemetry.FiberMiddleware(cfg.Telemetry.ServiceName))
	app.Use(RequestLogger(logger))
	app.Use(SecurityHeaders())
	app.Use(csrf.New(csrf.Config{
		KeyLookup:      "header:X-CSRF-Token",
		CookieName:     "csrf_",
		CookieSameSite: "Lax",
		CookieSecure:   cfg.Session.CookieSecure,
		Expiration:     time.Hour,
		KeyGenerator:   utils.UUIDv4,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return fail(c, fiber.StatusForbidden, "Invalid security token")
		},
	}))

	s.Routes(app)
	return app
}

// Routes registers the API on the router. The caller owns the global middleware.
func (s *Server) Routes(app fiber.Router) {
	api := app.Group("/api")
	api.Get("/health", s.Health)

	loginLimiter := limiter.New(limiter.Config{
		Max:        s.opts.LoginRequests,
		Expiration: s.opts.LoginWindow,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return fail(c, fiber.StatusTooManyRequests, "Too many login attempts. Please try again later.")
		},
	})
	api.Post("/auth/login", loginLimiter, s.Login)

	authed := api.Group("", Authenticated(s.sessions, s.Accounts))
	authed.Post("/auth/logout", s.Logout)
	authed.Get("/me", s.Me)

	authed.Get("/leads", s.ListLeads)
	authed.Post("/leads", s.CreateLead)
	authed.Get("/leads/:id", s.GetLead)
	authed.Put("/leads/:id", s.UpdateLead)
	authed.Delete("/leads/:id", s.DeleteLead)
	authed.Post("/leads/:id/status", s.SetLeadStatus)
	authed.Post("/leads/:id/notes", s.AddLeadNote)

	authed.Get("/tasks", s.ListTasks)
	authed.Post("/tasks", s.CreateTask)
	authed.Get("/tasks/:id", s.GetTask)
	authed.Put("/tasks/:id", s.UpdateTask)
	authed.Delete("/tasks/:id", s.DeleteTask)
	authed.Post("/tasks/:id/status", s.SetTaskStatus)
	authed.Post("/tasks/:id/notes", s.AddTaskNote)
	authed.Post("/tasks/:id/attachments", s.AddTaskAttachment)
	authed.Get("/tasks/:id/attachments", s.TaskAttachmentURL)

	authed.Get("/projects", s.ListProjects)
	authed.Post("/projects", s.CreateProject)
	authed.Get("/projects/:id", s.GetProject)
	authed.Put("/projects/:id", s.UpdateProject)
	authed.Delete("/projects/:id", s.DeleteProject)
	authed.Post("/projects/:id/photos", s.AddProjectPhoto)

	authed.Get("/leaves", s.ListLeaves)
	authed.Post("/leaves", s.RequestLeave)
	authed.Post("/leaves/:id/approve", s.ApproveLeave)
	authed.Post("/leaves/:id/reject", s.RejectLeave)
	authed.Delete("/leaves/:id", s.DeleteLeave)

	authed.Get("/users", s.ListUsers)
	authed.Post("/users", s.CreateUser)
	authed.Get("/users/:id", s.GetUser)
	authed.Put("/users/:id", s.UpdateUser)
	authed.Delete("/users/:id", s.DeleteUser)
	authed.Post("/users/:id/status", s.SetUserStatus)

	authed.Get("/announcements", s.ListAnnouncements)
	authed.Post("/announcements", s.CreateAnnouncement)
	authed.Get("/announcements/banner", s.AnnouncementBanner)
	authed.Post("/announcements/:id/toggle", s.ToggleAnnouncement)
	authed.Post("/announcements/:id/dismiss", s.DismissAnnouncement)
	authed.Delete("/announcements/:id", s.DeleteAnnouncement)

	authed.Get("/activity", s.ListActivity)
	authed.Get("/reports/summary", s.ReportSummary)
	authed.Get("/settings", s.GetSettings)
	authed.Put("/settings", s.UpdateSettings)

	if s.opts.UploadsURL != "" && s.opts.UploadsPath != "" {
		uploads := app.Group(s.opts.UploadsURL, Authenticated(s.sessions, s.Accounts))
		uploads.Static("/", s.opts.UploadsPath, fiber.Static{Browse: false})
	}
}
