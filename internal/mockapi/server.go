package mockapi

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"taskboard-go/internal/config"
	"taskboard-go/internal/middleware"
)

// Options configures the mock backend.
type Options struct {
	AccessTTL    time.Duration
	RefreshTTL   time.Duration
	SigningKey   []byte
	RateLimitRPS int
	// Quiet disables per-request logging (tests).
	Quiet bool
}

// OptionsFromConfig maps the mock section of the configuration.
func OptionsFromConfig(cfg config.MockConfig) Options {
	return Options{
		AccessTTL:    time.Duration(cfg.AccessTTLSec) * time.Second,
		RefreshTTL:   time.Duration(cfg.RefreshTTLSec) * time.Second,
		SigningKey:   []byte(cfg.SigningKey),
		RateLimitRPS: cfg.RateLimitRPS,
	}
}

// RecordedRequest is what the backend saw of one request.
type RecordedRequest struct {
	Method        string
	Path          string
	Authorization string
	RequestID     string
	ContentType   string
	Body          string
	At            time.Time
}

type user struct {
	ID           string
	Name         string
	Email        string
	Role         string
	PasswordHash []byte
}

type refreshGrant struct {
	userID    string
	expiresAt time.Time
}

type fault struct {
	status int
	left   int
}

// Server is an in-memory taskboard backend used by tests and by cmd/mockapi.
type Server struct {
	opts   Options
	engine *gin.Engine

	mu          sync.Mutex
	users       map[string]*user // by email
	usersByID   map[string]*user
	grants      map[string]refreshGrant
	generation  int64
	unread      int
	tasks       []gin.H
	requests    []RecordedRequest
	refreshes   int
	refreshWait time.Duration
	rejectAll   bool
	faults      map[string]*fault
	gate        chan struct{}
	logoutGate  chan struct{}
}

// New builds the engine. The handler is ready to serve immediately.
func New(opts Options) *Server {
	if opts.AccessTTL <= 0 {
		opts.AccessTTL = 15 * time.Minute
	}
	if opts.RefreshTTL <= 0 {
		opts.RefreshTTL = 7 * 24 * time.Hour
	}
	if len(opts.SigningKey) == 0 {
		opts.SigningKey = []byte("taskboard-mock-signing-key")
	}
	s := &Server{
		opts:      opts,
		users:     make(map[string]*user),
		usersByID: make(map[string]*user),
		grants:    make(map[string]refreshGrant),
		faults:    make(map[string]*fault),
		tasks: []gin.H{
			{"id": 1, "title": "Write release notes", "status": "todo", "project_id": 1},
			{"id": 2, "title": "Fix login redirect", "status": "in_progress", "project_id": 1},
		},
	}
	s.engine = s.routes()
	return s
}

// Handler exposes the gin engine.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) routes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Recovery())
	if !s.opts.Quiet {
		r.Use(middleware.RequestLogger())
	}
	r.Use(s.record, s.injectFaults, middleware.RateLimiter(s.opts.RateLimitRPS, 0))

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	auth := r.Group("/auth")
	auth.POST("/login", s.login)
	auth.POST("/register", s.register)
	auth.POST("/refresh", s.refresh)

	protected := r.Group("/", middleware.BearerAuth(s.validateAccess))
	protected.POST("/auth/logout", s.logout)
	protected.GET("/auth/me", s.me)
	protected.GET("/tasks", s.listTasks)
	protected.POST("/tasks", s.createTask)
	protected.GET("/projects", s.listProjects)
	protected.GET("/notifications", s.listNotifications)
	protected.GET("/notifications/unread-count", s.unreadCount)
	return r
}
