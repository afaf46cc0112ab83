package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"kopilka/internal/cache"
	"kopilka/internal/log"
	"kopilka/internal/middleware/ratelimit"
	"kopilka/internal/middleware/security"
	"kopilka/internal/services"
)

// Options tunes the API server. Zero values fall back to defaults.
type Options struct {
	RateLimitRPM         int
	Logger               *log.Logger
	TrustedProxies       []string
	CacheCleanupInterval time.Duration
}

type Server struct {
	http.Server
	svc     *services.Services
	limiter *ratelimit.Limiter
	caches  *cache.Manager

	shutdownOnce sync.Once
}

// NewServer configures the routes and returns a ready-to-run server.
func NewServer(addr string, svc *services.Services, opts Options) (*Server, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	proxies := opts.TrustedProxies
	if proxies == nil {
		proxies = security.DefaultTrustedProxies
	}
	resolver, err := security.NewClientIPResolver(proxies)
	if err != nil {
		return nil, err
	}

	limits := ratelimit.DefaultConfig()
	if opts.RateLimitRPM > 0 {
		limits.RequestsPerMinute = opts.RateLimitRPM
	}

	cleanupEvery := opts.CacheCleanupInterval
	if cleanupEvery <= 0 {
		cleanupEvery = 10 * time.Minute
	}

	s := &Server{
		svc:     svc,
		limiter: ratelimit.NewLimiter(limits),
		caches:  cache.NewManager(),
	}
	s.caches.Register("filter_rules", svc.Filter.Cache())
	s.caches.StartCleanup(cleanupEvery)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(log.Middleware(logger))
	r.Use(security.Headers(security.APIHeadersConfig()))
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		NotFoundError("route not found").Write(w)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed").Write(w)
	})

	r.Get("/healthz", handleHealth)
	r.Get("/readyz", handleReady)

	r.Group(func(r chi.Router) {
		r.Use(s.limiter.Middleware(resolver.ClientIP, handleRateLimited))
		r.Route("/api/v1/users/{userID}", s.routes)
	})

	s.Server = http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	return s, nil
}

func (s *Server) routes(r chi.Router) {
	r.Post("/expenses", s.handleAddExpense)
	r.Post("/income", s.handleAddIncome)
	r.Get("/entries", s.handleListEntries)
	r.Delete("/entries/{entryID}", s.handleDeleteEntry)
	r.Post("/entries/bulk-delete", s.handleBulkDelete)
	r.Get("/search", s.handleSearch)

	r.Get("/balance", s.handleGetBalance)
	r.Post("/balance/recalculate", s.handleRecalculate)
	r.Post("/hidden/deposit", s.handleHiddenDeposit)
	r.Post("/hidden/withdraw", s.handleHiddenWithdraw)
	r.Get("/hidden/history", s.handleHiddenHistory)

	r.Get("/budgets", s.handleListBudgets)
	r.Put("/budgets", s.handleSetBudget)
	r.Delete("/budgets", s.handleDeleteBudget)
	r.Get("/budgets/summary", s.handleBudgetSummary)
	r.Get("/budgets/alert", s.handleBudgetAlert)

	r.Get("/filters", s.handleListFilters)
	r.Post("/filters", s.handleAddFilter)
	r.Delete("/filters", s.handleClearFilters)
	r.Delete("/filters/rule", s.handleRemoveFilter)

	r.Get("/statistics", s.handleStatistics)

	r.Route("/analytics", func(r chi.Router) {
		r.Get("/insights", s.handleInsights)
		r.Get("/tips", s.handleTips)
		r.Get("/compare", s.handleCompare)
		r.Get("/forecast", s.handleForecast)
		r.Get("/achievements", s.handleAchievements)
	})

	r.Get("/notifications/settings", s.handleGetSettings)
	r.Put("/notifications/settings", s.handleUpdateSettings)
	r.Get("/summary/daily", s.handleDailySummary)
	r.Get("/summary/weekly", s.handleWeeklyReport)

	r.Get("/regular", s.handleListRegular)
	r.Post("/regular", s.handleAddRegular)
	r.Delete("/regular/{regularID}", s.handleRemoveRegular)

	r.Get("/goals", s.handleListGoals)
	r.Post("/goals", s.handleCreateGoal)
	r.Get("/goals/summary", s.handleGoalSummary)
	r.Delete("/goals/{goalID}", s.handleDeleteGoal)
	r.Post("/goals/{goalID}/contribute", s.handleContribute)
	r.Get("/goals/{goalID}/contributions", s.handleContributions)

	r.Get("/subscription", s.handleSubscriptionStatus)
	r.Post("/subscription/activate", s.handleActivatePremium)
}

// Shutdown stops the background cleanups and then the HTTP server. It is
// safe to call more than once.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.caches.Stop()
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func handleRateLimited(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldPath, r.URL.Path,
		log.FieldErrorType, log.ErrorTypeRateLimit)
	ErrorResponse(http.StatusTooManyRequests, log.ErrorTypeRateLimit, "rate limit exceeded, try again later").Write(w)
}
