package main

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/pacetrack/gateway/internal/logging"
	"github.com/pacetrack/gateway/internal/metrics"
	"github.com/pacetrack/gateway/internal/middleware"
	"github.com/pacetrack/gateway/internal/ratelimit"
)

// route binds one endpoint to its pipeline: auth gate, then admission
// profile, then handler. The table is validated at startup; a user-keyed
// profile on an unauthenticated route fails the build rather than silently
// degrading to address keying.
type route struct {
	method  string
	path    string
	auth    bool
	profile string
	handler http.HandlerFunc
}

// routerConfig carries everything buildRouter composes.
type routerConfig struct {
	handlers    *handlers
	gate        *middleware.AuthGate
	limiter     *middleware.Limiter
	profiles    map[string]ratelimit.Profile
	corsOrigins []string
	logger      *logging.Logger
	metrics     *metrics.Metrics
}

// routes is the gateway's endpoint table. Registration order matters for
// overlapping training paths: literal segments must precede {id}.
func routes(h *handlers) []route {
	return []route{
		// User routes.
		{method: http.MethodPost, path: "/users", profile: "register", handler: h.createUser},
		{method: http.MethodPost, path: "/users/login", profile: "login", handler: h.login},
		{method: http.MethodGet, path: "/users/friends", auth: true, profile: "get_friends", handler: h.listFriends},
		{method: http.MethodPost, path: "/users/friends/{id}", auth: true, profile: "add_friend", handler: h.addFriend},
		{method: http.MethodGet, path: "/users/events", auth: true, profile: "get_events", handler: h.listEvents},
		{method: http.MethodGet, path: "/users/badges", auth: true, profile: "get_badges", handler: h.listBadges},
		{method: http.MethodGet, path: "/users/badges/user/{id}", auth: true, profile: "get_badges", handler: h.userBadges},
		{method: http.MethodGet, path: "/users/{id}", auth: true, handler: h.getUser},
		{method: http.MethodPatch, path: "/users/{id}", auth: true, profile: "update_user", handler: h.updateUser},

		// Training routes.
		{method: http.MethodPost, path: "/trainings", auth: true, profile: "create_training", handler: h.submitTraining},
		{method: http.MethodGet, path: "/trainings/weekly-distance/{id}", auth: true, profile: "get_weekly_trainings", handler: h.weeklyTrainingsByUser},
		{method: http.MethodGet, path: "/trainings/user/{id}", auth: true, profile: "get_trainings_by_user", handler: h.trainingsByUser},
		{method: http.MethodGet, path: "/trainings/{id}", auth: true, profile: "get_training_by_id", handler: h.getTraining},

		// Engagement routes.
		{method: http.MethodPost, path: "/engagement-logs", auth: true, profile: "create_engagement_log", handler: h.createEngagementLog},
		{method: http.MethodGet, path: "/engagement-logs", auth: true, profile: "get_engagement", handler: h.listEngagementLogs},
		{method: http.MethodGet, path: "/engagement-logs/user/{id}", auth: true, profile: "get_engagement", handler: h.engagementLogsByUser},
		{method: http.MethodGet, path: "/engagement-logs/stats/user/{id}", auth: true, profile: "get_stats", handler: h.engagementStatsByUser},
		{method: http.MethodGet, path: "/engagement-logs/stats/by/views", auth: true, profile: "get_stats", handler: h.engagementStatsByViews},
		{method: http.MethodGet, path: "/engagement-logs/analytics/user/{id}", auth: true, profile: "get_stats", handler: h.engagementAnalyticsByUser},

		// Chatbot routes.
		{method: http.MethodPost, path: "/chatbot/classify", auth: true, profile: "classify", handler: h.classify},
		{method: http.MethodGet, path: "/chatbot/stats/{id}/weekly", auth: true, profile: "get_stats_weekly", handler: h.classifierWeeklyStats},
		{method: http.MethodGet, path: "/chatbot/stats/{id}", auth: true, profile: "get_stats", handler: h.classifierStats},
		{method: http.MethodGet, path: "/chatbot/categories", auth: true, profile: "get_categories", handler: h.classifierCategories},
	}
}

// buildRouter assembles the middleware pipeline and route table:
// tracing → CORS → metrics → general limiter → [auth] → [profile] → handler.
func buildRouter(cfg routerConfig) (*mux.Router, error) {
	r := mux.NewRouter()

	r.Use(mux.MiddlewareFunc(middleware.NewTracingMiddleware(cfg.logger).Handler))
	r.Use(mux.MiddlewareFunc(middleware.NewCORSMiddleware(cfg.corsOrigins).Handler))
	r.Use(middleware.MetricsMiddleware(serviceName, cfg.metrics))

	// The global address-keyed limiter runs before authentication.
	if general, ok := cfg.profiles["general"]; ok {
		mw, err := cfg.limiter.Middleware(general, false)
		if err != nil {
			return nil, err
		}
		r.Use(mw)
	}

	for _, rt := range routes(cfg.handlers) {
		handler := http.Handler(rt.handler)

		if rt.profile != "" {
			profile, ok := cfg.profiles[rt.profile]
			if !ok {
				return nil, fmt.Errorf("route %s %s: unknown limiter profile %q", rt.method, rt.path, rt.profile)
			}
			mw, err := cfg.limiter.Middleware(profile, rt.auth)
			if err != nil {
				return nil, fmt.Errorf("route %s %s: %w", rt.method, rt.path, err)
			}
			handler = mw(handler)
		}

		if rt.auth {
			handler = cfg.gate.Handler(handler)
		}

		r.Handle(rt.path, handler).Methods(rt.method)
	}

	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok","service":"gateway"}`))
	}).Methods(http.MethodGet)

	r.Handle("/metrics", cfg.metrics.Handler()).Methods(http.MethodGet)

	return r, nil
}
