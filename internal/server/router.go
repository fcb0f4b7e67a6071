package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/MarcoPoloResearchLab/pastemate/internal/auth"
	"github.com/MarcoPoloResearchLab/pastemate/internal/blobstore"
	"github.com/MarcoPoloResearchLab/pastemate/internal/pastes"
	"github.com/MarcoPoloResearchLab/pastemate/internal/users"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	viewerContextKey = "pastemate_viewer"

	defaultRateLimitPerMinute = 30
	defaultRateLimitBurst     = 10
	rateLimiterTTL            = 10 * time.Minute
)

var (
	errMissingSessionValidator = errors.New("session validator dependency required")
	errMissingUserResolver     = errors.New("user resolver dependency required")
	errMissingPastesService    = errors.New("pastes service dependency required")
	errMissingBlobStore        = errors.New("blob store dependency required")
	errMissingStylesheet       = errors.New("stylesheet dependency required")
)

// SessionValidator authenticates an incoming request.
type SessionValidator interface {
	ValidateRequest(r *http.Request) (auth.SessionClaims, error)
}

// UserResolver maps session claims onto a stored user.
type UserResolver interface {
	ResolveUser(ctx context.Context, claims auth.SessionClaims) (users.User, error)
}

// Stylesheet serves the CSS matching the highlighted HTML.
type Stylesheet interface {
	CSS() ([]byte, error)
}

// Dependencies wires the HTTP surface to the services behind it.
type Dependencies struct {
	Sessions           SessionValidator
	Users              UserResolver
	PastesService      *pastes.Service
	Blobs              blobstore.Store
	Stylesheet         Stylesheet
	MediaBaseURL       string
	RateLimitPerMinute int
	RateLimitBurst     int
	TrustProxy         bool
	Logger             *zap.Logger
}

// NewHTTPHandler builds the gin engine serving the paste API.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Sessions == nil {
		return nil, errMissingSessionValidator
	}
	if deps.Users == nil {
		return nil, errMissingUserResolver
	}
	if deps.PastesService == nil {
		return nil, errMissingPastesService
	}
	if deps.Blobs == nil {
		return nil, errMissingBlobStore
	}
	if deps.Stylesheet == nil {
		return nil, errMissingStylesheet
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	perMinute := deps.RateLimitPerMinute
	if perMinute <= 0 {
		perMinute = defaultRateLimitPerMinute
	}
	burst := deps.RateLimitBurst
	if burst <= 0 {
		burst = defaultRateLimitBurst
	}
	mediaBaseURL := deps.MediaBaseURL
	if mediaBaseURL == "" {
		mediaBaseURL = "/media"
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(observeRequests)
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Location", "Content-Disposition"},
		MaxAge:           12 * time.Hour,
		AllowCredentials: false,
	}))

	handler := &httpHandler{
		sessions:     deps.Sessions,
		users:        deps.Users,
		pastes:       deps.PastesService,
		blobs:        deps.Blobs,
		stylesheet:   deps.Stylesheet,
		mediaBaseURL: mediaBaseURL,
		limiter:      NewRateLimiter(rate.Limit(float64(perMinute)/60.0), burst, rateLimiterTTL),
		trustProxy:   deps.TrustProxy,
		logger:       logger,
	}

	router.GET("/healthz", handler.handleHealth)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/highlight.css", handler.handleStylesheet)
	router.GET("/media/*key", handler.handleMedia)

	api := router.Group("/api")
	api.Use(handler.identify)
	api.GET("/languages", handler.handleLanguages)
	api.GET("/expirations", handler.handleExpirations)
	api.GET("/archive", handler.handleArchive)
	api.GET("/archive/languages", handler.handleLanguageStats)

	limited := handler.rateLimit
	api.POST("/pastes", limited, handler.handleCreatePaste)
	api.GET("/pastes/:id", handler.handleGetPaste)
	api.GET("/pastes/:id/password", handler.handlePasswordPrompt)
	api.POST("/pastes/:id/password", limited, handler.handleVerifyPassword)
	api.GET("/pastes/:id/raw", handler.handleRaw)
	api.GET("/pastes/:id/download", handler.handleDownload)
	api.GET("/pastes/:id/clone", handler.handleCloneSource)
	api.POST("/pastes/:id/clone", limited, handler.handleClone)
	api.GET("/pastes/:id/embed", handler.handleEmbed)
	api.GET("/pastes/:id/print", handler.handlePrint)
	api.POST("/pastes/:id/report", limited, handler.handleReport)
	api.GET("/pastes/:id/edit", handler.requireUser, handler.handleEditPrefill)
	api.PUT("/pastes/:id", handler.requireUser, handler.handleUpdatePaste)
	api.DELETE("/pastes/:id", handler.requireUser, handler.handleDeletePaste)

	api.GET("/users/:username", handler.handleUserPastes)
	api.GET("/users/:username/folders/:slug", handler.handleFolderPastes)

	me := api.Group("/me")
	me.Use(handler.requireUser)
	me.GET("/folders", handler.handleListFolders)
	me.POST("/folders", handler.handleCreateFolder)
	me.PUT("/folders/:slug", handler.handleRenameFolder)
	me.DELETE("/folders/:slug", handler.handleDeleteFolder)
	me.GET("/search", handler.handleSearch)
	me.GET("/backup", handler.handleBackup)

	admin := api.Group("/admin")
	admin.Use(handler.requireStaff)
	admin.GET("/reports", handler.handleListReports)
	admin.POST("/reports/moderate", handler.handleModerateReports)
	admin.POST("/reports/unmoderate", handler.handleUnmoderateReports)
	admin.POST("/reports/deactivate", handler.handleDeactivateReports)

	return router, nil
}

type httpHandler struct {
	sessions     SessionValidator
	users        UserResolver
	pastes       *pastes.Service
	blobs        blobstore.Store
	stylesheet   Stylesheet
	mediaBaseURL string
	limiter      *RateLimiter
	trustProxy   bool
	logger       *zap.Logger
}

func viewerFrom(c *gin.Context) pastes.Viewer {
	if value, ok := c.Get(viewerContextKey); ok {
		if viewer, ok := value.(pastes.Viewer); ok {
			return viewer
		}
	}
	return pastes.Anonymous()
}
