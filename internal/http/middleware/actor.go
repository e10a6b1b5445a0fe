package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gestaozabele/servicos-publicos/internal/demanda"
	"github.com/gestaozabele/servicos-publicos/internal/directory"
)

// ScopeValidator confirma o vínculo do usuário com a secretaria escolhida.
type ScopeValidator interface {
	ValidateSecretariaAccess(ctx context.Context, usuarioID, secretariaID uuid.UUID) (directory.SecretariaWithRole, error)
}

// Actor converte os papéis do token em um demanda.Actor. A precedência é
// ADMIN, SECRETARIA com X-Secretaria, OPERADOR, SECRETARIA sem escopo (400) e
// por fim CIDADAO.
func Actor(scope ScopeValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subject := GetSubject(r.Context())
			if subject == "" {
				writeError(w, http.StatusUnauthorized, "AUTH", "subject ausente")
				return
			}

			roles := make(map[demanda.Role]bool)
			for _, raw := range GetRoles(r.Context()) {
				if role, ok := demanda.ParseRole(raw); ok {
					roles[role] = true
				}
			}

			secretariaHeader := strings.TrimSpace(r.Header.Get("X-Secretaria"))
			if secretariaHeader == "" {
				secretariaHeader = strings.TrimSpace(r.URL.Query().Get("secretaria_id"))
			}

			var actor demanda.Actor
			switch {
			case roles[demanda.RoleAdmin]:
				actor = demanda.Administrator(subject)
			case roles[demanda.RoleSecretaria] && secretariaHeader != "":
				secID, serr := resolveSecretaria(r, scope, subject, secretariaHeader)
				if serr != nil {
					writeError(w, serr.status, serr.code, serr.message)
					return
				}
				actor = demanda.Secretariat(subject, secID)
			case roles[demanda.RoleOperador]:
				actor = demanda.Operator(subject)
			case roles[demanda.RoleSecretaria]:
				writeError(w, http.StatusBadRequest, "VALIDATION", "Secretaria não informada")
				return
			case roles[demanda.RoleCidadao]:
				actor = demanda.Citizen(subject)
			default:
				writeError(w, http.StatusForbidden, "FORBIDDEN", "papel sem acesso às demandas")
				return
			}

			next.ServeHTTP(w, r.WithContext(SetActor(r.Context(), actor)))
		})
	}
}

type scopeError struct {
	status  int
	code    string
	message string
}

func resolveSecretaria(r *http.Request, scope ScopeValidator, subject, raw string) (string, *scopeError) {
	secID, err := uuid.Parse(raw)
	if err != nil {
		return "", &scopeError{http.StatusBadRequest, "VALIDATION", "Secretaria inválida"}
	}
	subUUID, err := uuid.Parse(subject)
	if err != nil {
		return "", &scopeError{http.StatusUnauthorized, "AUTH", "subject inválido"}
	}
	if _, err := scope.ValidateSecretariaAccess(r.Context(), subUUID, secID); err != nil {
		if errors.Is(err, directory.ErrForbidden) {
			return "", &scopeError{http.StatusForbidden, "FORBIDDEN", "sem vínculo com a secretaria"}
		}
		log.Error().Err(err).Str("subject", subject).Msg("falha ao validar secretaria")
		return "", &scopeError{http.StatusInternalServerError, "INTERNAL", "erro interno"}
	}
	return secID.String(), nil
}

// SetActor injeta o ator resolvido no contexto e o expõe ao log de acesso.
func SetActor(ctx context.Context, actor demanda.Actor) context.Context {
	if holder, ok := ctx.Value(contextKeyActorHolder).(*actorHolder); ok {
		holder.actor = actor
		holder.set = true
	}
	return context.WithValue(ctx, ContextKeyActor, actor)
}

// GetActor recupera o ator resolvido.
func GetActor(ctx context.Context) (demanda.Actor, bool) {
	actor, ok := ctx.Value(ContextKeyActor).(demanda.Actor)
	return actor, ok
}

const contextKeyActorHolder contextKey = "actor_holder"

// actorHolder é criado pelo Logging antes do roteamento; o Actor o preenche
// mais adiante na cadeia.
type actorHolder struct {
	actor demanda.Actor
	set   bool
}

func withActorHolder(ctx context.Context, holder *actorHolder) context.Context {
	return context.WithValue(ctx, contextKeyActorHolder, holder)
}
