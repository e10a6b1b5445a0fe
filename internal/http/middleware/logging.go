package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// Logging escreve um evento http_request por requisição. Campos do ator são
// incluídos quando a rota passou pelo middleware Actor.
func Logging(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			holder := &actorHolder{}
			r = r.WithContext(withActorHolder(r.Context(), holder))

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			level := zerolog.InfoLevel
			if status >= http.StatusInternalServerError {
				level = zerolog.ErrorLevel
			}

			event := logger.WithLevel(level).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", status).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Str("ip", realIPFromRequest(r))

			if reqID := middleware.GetReqID(r.Context()); reqID != "" {
				event = event.Str("request_id", reqID)
			}
			if sc := trace.SpanContextFromContext(r.Context()); sc.HasTraceID() {
				event = event.Str("trace_id", sc.TraceID().String())
			}
			if ua := r.Header.Get("User-Agent"); ua != "" {
				event = event.Str("user_agent", ua)
			}
			if holder.set {
				event = event.Str("actor_role", string(holder.actor.Role)).Str("actor_id", holder.actor.ID)
				if holder.actor.SecretariaID != "" {
					event = event.Str("secretaria_id", holder.actor.SecretariaID)
				}
			}

			event.Msg("http_request")
		})
	}
}
