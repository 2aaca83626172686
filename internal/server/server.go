package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"anoa.com/yamdb/internal/authz"
	"anoa.com/yamdb/internal/config"
	"anoa.com/yamdb/internal/jobs"
	"anoa.com/yamdb/internal/logging"
	"anoa.com/yamdb/internal/metrics"
	"anoa.com/yamdb/internal/middleware"
	"anoa.com/yamdb/pkg/mailer"
	"anoa.com/yamdb/pkg/ratelimiter"
	"anoa.com/yamdb/pkg/storage"
	"anoa.com/yamdb/pkg/token"

	authHttp "anoa.com/yamdb/internal/modules/auth/delivery/http"
	authService "anoa.com/yamdb/internal/modules/auth/service"

	categoryHttp "anoa.com/yamdb/internal/modules/category/delivery/http"
	categoryRepo "anoa.com/yamdb/internal/modules/category/repository"
	categoryService "anoa.com/yamdb/internal/modules/category/service"

	commentHttp "anoa.com/yamdb/internal/modules/comment/delivery/http"
	commentRepo "anoa.com/yamdb/internal/modules/comment/repository"
	commentService "anoa.com/yamdb/internal/modules/comment/service"

	genreHttp "anoa.com/yamdb/internal/modules/genre/delivery/http"
	genreRepo "anoa.com/yamdb/internal/modules/genre/repository"
	genreService "anoa.com/yamdb/internal/modules/genre/service"

	ratingfeedHttp "anoa.com/yamdb/internal/modules/ratingfeed/delivery/http"
	ratingfeedService "anoa.com/yamdb/internal/modules/ratingfeed/service"

	reviewHttp "anoa.com/yamdb/internal/modules/review/delivery/http"
	reviewRepo "anoa.com/yamdb/internal/modules/review/repository"
	reviewService "anoa.com/yamdb/internal/modules/review/service"

	searchService "anoa.com/yamdb/internal/modules/search/service"

	titleHttp "anoa.com/yamdb/internal/modules/title/delivery/http"
	titleRepo "anoa.com/yamdb/internal/modules/title/repository"
	titleService "anoa.com/yamdb/internal/modules/title/service"

	userHttp "anoa.com/yamdb/internal/modules/user/delivery/http"
	userRepo "anoa.com/yamdb/internal/modules/user/repository"
	userService "anoa.com/yamdb/internal/modules/user/service"
)

const jobTimeout = 30 * time.Minute

// Deps are the external clients the server is built from. Redis, Search
// and Images are optional; the features backed by them degrade when nil.
type Deps struct {
	Config *config.Config
	DB     *gorm.DB
	Redis  *redis.Client
	Search *searchService.Service
	Images storage.ImageStorage
	Mailer mailer.Sender
}

type Server struct {
	engine     *gin.Engine
	db         *gorm.DB
	scheduler  *jobs.Scheduler
	httpServer *http.Server
}

func NewServer(deps Deps) (*Server, error) {
	cfg := deps.Config
	db := deps.DB

	authorizer, err := authz.NewEngine()
	if err != nil {
		return nil, err
	}

	limiter := ratelimiter.New(deps.Redis, map[ratelimiter.Scope]time.Duration{
		ratelimiter.ScopeReview:  cfg.RateLimitReview,
		ratelimiter.ScopeComment: cfg.RateLimitComment,
		ratelimiter.ScopeSignup:  cfg.RateLimitSignup,
	})
	issuer := token.NewIssuer(cfg.JWTSecret, cfg.JWTTTL)

	// Rating listeners run after every committed score change.
	listeners := []reviewService.RatingListener{metrics.RatingCounter{}}
	var index titleService.SearchIndex
	if deps.Search != nil {
		index = deps.Search
		listeners = append(listeners, deps.Search)
	}
	feed := ratingfeedService.NewPublisher(deps.Redis)
	if feed.Enabled() {
		listeners = append(listeners, feed)
	}

	userRepository := userRepo.NewUserRepository(db)
	userSvc := userService.NewUserService(userRepository, authorizer, listeners...)
	userHandler := userHttp.NewUserHandler(userSvc)

	authSvc := authService.NewAuthService(userRepository, issuer, deps.Mailer, limiter, cfg.ConfirmationCodeTTL)
	authHandler := authHttp.NewAuthHandler(authSvc)

	categorySvc := categoryService.NewCategoryService(categoryRepo.NewCategoryRepository(db), authorizer)
	categoryHandler := categoryHttp.NewCategoryHandler(categorySvc)

	genreSvc := genreService.NewGenreService(genreRepo.NewGenreRepository(db), authorizer)
	genreHandler := genreHttp.NewGenreHandler(genreSvc)

	titleRepository := titleRepo.NewTitleRepository(db)
	titleSvc := titleService.NewTitleService(titleRepository, authorizer, index, deps.Images, cfg.CloudinaryUploadFolder)
	titleHandler := titleHttp.NewTitleHandler(titleSvc)

	reviewSvc := reviewService.NewReviewService(reviewRepo.NewReviewRepository(db), authorizer, limiter, listeners...)
	reviewHandler := reviewHttp.NewReviewHandler(reviewSvc)

	commentSvc := commentService.NewCommentService(commentRepo.NewCommentRepository(db), authorizer, limiter)
	commentHandler := commentHttp.NewCommentHandler(commentSvc)

	ratingFeedHandler := ratingfeedHttp.NewRatingFeedHandler(feed, titleSvc, cfg.AllowedOrigins)

	scheduler := jobs.NewScheduler(jobTimeout)
	if err := scheduler.Register(jobs.NewConfirmationPurgeJob(userRepository, cfg.CronConfirmationPurge)); err != nil {
		return nil, err
	}
	if deps.Search != nil {
		if err := scheduler.Register(jobs.NewReindexJob(deps.Search, titleRepository, cfg.CronReindex)); err != nil {
			return nil, err
		}
	}

	router := gin.New()
	router.RedirectTrailingSlash = false

	setupCORS(router, cfg.AllowedOrigins)

	router.Use(gin.Recovery())
	router.Use(logging.GinLogger("/healthz", "/metrics"))
	router.Use(metrics.Middleware())

	authMiddleware := middleware.NewAuthMiddleware(userRepository, issuer)

	s := &Server{
		engine:    router,
		db:        db,
		scheduler: scheduler,
	}

	router.GET("/healthz", s.health)
	router.GET("/metrics", metrics.Handler())

	api := router.Group("/api/v1")
	api.Use(authMiddleware.Authenticate())

	auth := api.Group("/auth")
	{
		handle(auth, http.MethodPost, "/signup", authHandler.Signup)
		handle(auth, http.MethodPost, "/token", authHandler.Token)
	}

	handle(api, http.MethodGet, "/categories", categoryHandler.GetAllCategories)
	handle(api, http.MethodPost, "/categories", categoryHandler.CreateCategory)
	handle(api, http.MethodDelete, "/categories/:slug", categoryHandler.DeleteCategory)

	handle(api, http.MethodGet, "/genres", genreHandler.GetAllGenres)
	handle(api, http.MethodPost, "/genres", genreHandler.CreateGenre)
	handle(api, http.MethodDelete, "/genres/:slug", genreHandler.DeleteGenre)

	handle(api, http.MethodGet, "/titles", titleHandler.ListTitles)
	handle(api, http.MethodPost, "/titles", titleHandler.CreateTitle)
	handle(api, http.MethodGet, "/titles/search", titleHandler.SearchTitles)
	handle(api, http.MethodGet, "/titles/:title_id", titleHandler.GetTitle)
	handle(api, http.MethodPatch, "/titles/:title_id", titleHandler.UpdateTitle)
	handle(api, http.MethodDelete, "/titles/:title_id", titleHandler.DeleteTitle)
	handle(api, http.MethodPost, "/titles/:title_id/cover", titleHandler.UploadCover)
	handle(api, http.MethodGet, "/titles/:title_id/rating/ws", ratingFeedHandler.Stream)

	reviews := "/titles/:title_id/reviews"
	handle(api, http.MethodGet, reviews, reviewHandler.ListReviews)
	handle(api, http.MethodPost, reviews, reviewHandler.CreateReview)
	handle(api, http.MethodGet, reviews+"/:review_id", reviewHandler.GetReview)
	handle(api, http.MethodPatch, reviews+"/:review_id", reviewHandler.UpdateReview)
	handle(api, http.MethodDelete, reviews+"/:review_id", reviewHandler.DeleteReview)

	comments := reviews + "/:review_id/comments"
	handle(api, http.MethodGet, comments, commentHandler.ListComments)
	handle(api, http.MethodPost, comments, commentHandler.CreateComment)
	handle(api, http.MethodGet, comments+"/:comment_id", commentHandler.GetComment)
	handle(api, http.MethodPatch, comments+"/:comment_id", commentHandler.UpdateComment)
	handle(api, http.MethodDelete, comments+"/:comment_id", commentHandler.DeleteComment)

	users := api.Group("/users")
	users.Use(authMiddleware.RequireAuth())
	{
		handle(users, http.MethodGet, "/me", userHandler.GetMe)
		handle(users, http.MethodPatch, "/me", userHandler.UpdateMe)
		handle(users, http.MethodGet, "", userHandler.ListUsers)
		handle(users, http.MethodPost, "", userHandler.CreateUser)
		handle(users, http.MethodGet, "/:username", userHandler.GetUser)
		handle(users, http.MethodPatch, "/:username", userHandler.UpdateUser)
		handle(users, http.MethodDelete, "/:username", userHandler.DeleteUser)
	}

	return s, nil
}

// handle registers the route with and without a trailing slash.
func handle(g *gin.RouterGroup, method, path string, h gin.HandlerFunc) {
	g.Handle(method, path, h)
	g.Handle(method, path+"/", h)
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start runs the job scheduler and serves HTTP until Shutdown is called.
func (s *Server) Start(addr string) error {
	s.scheduler.Start()

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logging.Info().Str("addr", addr).Msg("http server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.scheduler.Stop(ctx)
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) health(c *gin.Context) {
	sqlDB, err := s.db.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		logging.Error().Err(err).Msg("health check failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func setupCORS(router *gin.Engine, origins []string) {
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}

	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
}
