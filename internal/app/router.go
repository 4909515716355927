package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	decisionhandler "skillcred/internal/decision/handler"
	jwttoken "skillcred/internal/jwt_token"
	reviewhandler "skillcred/internal/review/handler"
	dErrors "skillcred/pkg/domain-errors"
	"skillcred/pkg/platform/httputil"
	"skillcred/pkg/platform/middleware/auth"
	"skillcred/pkg/platform/middleware/request"
)

const healthTimeout = 2 * time.Second

// Router mounts every HTTP surface on one chi router.
func (a *App) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(request.Context)
	r.Use(request.AccessLog(a.Logger))

	r.Get("/healthz", a.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{}))

	requireReviewer := auth.RequireReviewer(jwttoken.NewJWTServiceAdapter(a.Tokens), a.Logger)
	decisionhandler.New(a.Decisions, a.Logger).Register(r, a.Throttle.Limit("intake"))
	reviewhandler.New(a.Reviews, a.Logger).Register(r, requireReviewer)
	return r
}

func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()
	if err := a.Health(ctx); err != nil {
		a.Logger.WarnContext(ctx, "health check failed", "error", err)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeUnavailable, "dependency unavailable"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
