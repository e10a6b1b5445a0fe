package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/gestaozabele/servicos-publicos/internal/auth"
	"github.com/gestaozabele/servicos-publicos/internal/config"
	"github.com/gestaozabele/servicos-publicos/internal/demanda"
	httpmiddleware "github.com/gestaozabele/servicos-publicos/internal/http/middleware"
)

// Workflow é o subconjunto do demanda.Engine usado pelos handlers.
type Workflow interface {
	Create(ctx context.Context, actor demanda.Actor, in demanda.CreateInput) (demanda.Demand, error)
	Get(ctx context.Context, actor demanda.Actor, id string) (demanda.Demand, error)
	ApplyAction(ctx context.Context, cmd demanda.Command) (demanda.Demand, error)
	Delete(ctx context.Context, actor demanda.Actor, id string) error
}

// Lister devolve a visão paginada de cada papel.
type Lister interface {
	List(ctx context.Context, actor demanda.Actor, f demanda.Filter) (demanda.Page, error)
}

// ReadyCheck testa uma dependência externa para o /ready.
type ReadyCheck func(ctx context.Context) error

// Deps agrupa os colaboradores do roteador.
type Deps struct {
	Workflow    Workflow
	Lister      Lister
	JWT         *auth.JWTManager
	Scope       httpmiddleware.ScopeValidator
	Logger      zerolog.Logger
	Registry    *prometheus.Registry
	ReadyChecks map[string]ReadyCheck
}

// Handler concentra os handlers HTTP.
type Handler struct {
	workflow    Workflow
	lister      Lister
	logger      zerolog.Logger
	readyChecks map[string]ReadyCheck
}

// NewRouter devolve roteador configurado.
func NewRouter(cfg *config.Config, deps Deps) http.Handler {
	h := &Handler{
		workflow:    deps.Workflow,
		lister:      deps.Lister,
		logger:      deps.Logger.With().Str("component", "http").Logger(),
		readyChecks: deps.ReadyChecks,
	}

	publicLimiter := httpmiddleware.NewRateLimiter(cfg.RateLimitPublic.RequestsPerSecond, cfg.RateLimitPublic.Burst)
	authLimiter := httpmiddleware.NewRateLimiter(cfg.RateLimitAuth.RequestsPerSecond, cfg.RateLimitAuth.Burst)

	var httpMetrics *httpmiddleware.HTTPMetrics
	if deps.Registry != nil {
		httpMetrics = httpmiddleware.NewHTTPMetrics(deps.Registry)
	}

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(httpmiddleware.Recover(deps.Logger))
	r.Use(httpmiddleware.Logging(deps.Logger))
	r.Use(httpmiddleware.Tracing)
	r.Use(httpMetrics.Handler)
	r.Use(httpmiddleware.CORS(cfg.AllowOrigins))

	r.Group(func(public chi.Router) {
		public.Use(httpmiddleware.IPRateLimit(publicLimiter))

		public.Get("/health", h.Health)
		public.Get("/ready", h.Ready)
		if deps.Registry != nil {
			public.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
		}
	})

	r.Group(func(private chi.Router) {
		private.Use(httpmiddleware.Auth(deps.JWT))
		private.Use(httpmiddleware.UserRateLimit(authLimiter))
		private.Use(httpmiddleware.Actor(deps.Scope))

		private.Route("/demandas", func(d chi.Router) {
			d.Post("/", h.CreateDemanda)
			d.Get("/", h.ListDemandas)
			d.Get("/{id}", h.GetDemanda)
			d.Patch("/{id}", h.AvaliarDemanda)
			d.With(httpmiddleware.RequireRoles(string(demanda.RoleAdmin))).Delete("/{id}", h.DeleteDemanda)
			d.Patch("/{id}/atribuir", h.AtribuirDemanda)
			d.Patch("/{id}/devolver", h.DevolverDemanda)
			d.Patch("/{id}/resolver", h.ResolverDemanda)
		})
	})

	return r
}

// Health responde status simples.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready executa os checks registrados (Postgres, Redis) com timeout curto.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	failures := make(map[string]string)
	for name, check := range h.readyChecks {
		if err := check(ctx); err != nil {
			failures[name] = err.Error()
		}
	}

	if len(failures) > 0 {
		h.logger.Warn().Interface("falhas", failures).Msg("dependências indisponíveis")
		WriteError(w, http.StatusServiceUnavailable, "INTERNAL", "dependências indisponíveis", failures)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]bool{"ready": true})
}
