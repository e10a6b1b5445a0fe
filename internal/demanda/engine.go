package demanda

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/gestaozabele/servicos-publicos/internal/demanda/metrics"
	"github.com/gestaozabele/servicos-publicos/internal/directory"
	"github.com/gestaozabele/servicos-publicos/internal/events"
	"github.com/gestaozabele/servicos-publicos/internal/util"
)

// Directory resolve a secretaria responsável por cada tipo e os operadores
// vinculados a ela.
type Directory interface {
	SecretariaForTipo(ctx context.Context, tipo string) (string, error)
	IsOperator(ctx context.Context, secretariaID, usuarioID string) (bool, error)
}

// Municipio restringe a abertura de demandas ao município atendido.
type Municipio struct {
	Cidade string
	UF     string
}

// EngineDeps agrupa os colaboradores do Engine.
type EngineDeps struct {
	Store     Store
	Directory Directory
	Publisher events.Publisher
	Metrics   *metrics.Metrics
	Logger    zerolog.Logger
	Municipio Municipio
	Now       func() time.Time
}

// Engine é o único caminho pelo qual o status de uma demanda muda.
type Engine struct {
	store     Store
	directory Directory
	publisher events.Publisher
	metrics   *metrics.Metrics
	logger    zerolog.Logger
	municipio Municipio
	now       func() time.Time
	tracer    trace.Tracer
}

// NewEngine valida as dependências obrigatórias.
func NewEngine(deps EngineDeps) (*Engine, error) {
	if deps.Store == nil {
		return nil, errors.New("store obrigatória")
	}
	if deps.Directory == nil {
		return nil, errors.New("directory obrigatório")
	}
	pub := deps.Publisher
	if pub == nil {
		pub = events.NoopPublisher{}
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		store:     deps.Store,
		directory: deps.Directory,
		publisher: pub,
		metrics:   deps.Metrics,
		logger:    deps.Logger.With().Str("component", "workflow").Logger(),
		municipio: deps.Municipio,
		now:       now,
		tracer:    otel.Tracer("servicos-publicos/demanda"),
	}, nil
}

// ApplyAction carrega a demanda, valida a ação e grava o novo estado. Em
// qualquer falha nenhuma escrita acontece; Conflict é devolvido ao chamador
// sem novas tentativas.
func (e *Engine) ApplyAction(ctx context.Context, cmd Command) (Demand, error) {
	ctx, span := e.tracer.Start(ctx, "demanda.ApplyAction", trace.WithAttributes(
		attribute.String("demanda.id", cmd.DemandID),
		attribute.String("demanda.action", string(cmd.Action)),
		attribute.String("actor.role", string(cmd.Actor.Role)),
	))
	defer span.End()

	start := e.now()
	updated, err := e.applyAction(ctx, cmd)
	e.metrics.ObserveApply(e.now().Sub(start))
	e.metrics.IncTransition(string(cmd.Action), outcome(err))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome(err))
		return Demand{}, err
	}
	return updated, nil
}

func (e *Engine) applyAction(ctx context.Context, cmd Command) (Demand, error) {
	current, err := e.store.Get(ctx, cmd.DemandID)
	if err != nil {
		return Demand{}, err
	}
	if cmd.ExpectedVersion > 0 && cmd.ExpectedVersion != current.Versao {
		return Demand{}, ErrConflict
	}
	if err := Validate(current, cmd.Actor, cmd.Action, cmd.Payload); err != nil {
		return Demand{}, err
	}
	if cmd.Action == ActionAssign {
		operator := cleanStrings(cmd.Payload.Usuarios)[0]
		ok, err := e.directory.IsOperator(ctx, current.SecretariaID, operator)
		if err != nil {
			return Demand{}, fmt.Errorf("consultar operador: %w", err)
		}
		if !ok {
			return Demand{}, invalid("operador não pertence à secretaria", "usuarios")
		}
	}

	next := Apply(current, cmd.Action, cmd.Payload)
	saved, err := e.store.Save(ctx, next)
	if err != nil {
		return Demand{}, err
	}

	e.logger.Info().
		Str("demanda_id", saved.ID).
		Str("action", string(cmd.Action)).
		Str("from", string(current.Status)).
		Str("to", string(saved.Status)).
		Str("actor_role", string(cmd.Actor.Role)).
		Str("actor_id", cmd.Actor.ID).
		Int64("versao", saved.Versao).
		Msg("transição aplicada")

	e.publish(ctx, eventType(cmd.Action), cmd.Action, current.Status, saved, cmd.Actor)
	return saved, nil
}

// Create abre uma demanda em nome do cidadão.
func (e *Engine) Create(ctx context.Context, actor Actor, in CreateInput) (Demand, error) {
	ctx, span := e.tracer.Start(ctx, "demanda.Create")
	defer span.End()

	if actor.Role != RoleCidadao || actor.ID == "" {
		return Demand{}, &ForbiddenError{Role: actor.Role, Action: "abrir", Reason: "somente cidadãos abrem demandas"}
	}

	in.Tipo = strings.TrimSpace(in.Tipo)
	in.Descricao = strings.TrimSpace(in.Descricao)
	in.Endereco = in.Endereco.normalized()
	in.Imagens = cleanStrings(in.Imagens)

	fields, err := util.InvalidFields(in)
	if err != nil {
		return Demand{}, fmt.Errorf("validar demanda: %w", err)
	}
	if len(fields) > 0 {
		return Demand{}, invalid("campos obrigatórios ausentes ou inválidos", fields...)
	}

	tipo, ok := ParseTipo(in.Tipo)
	if !ok {
		return Demand{}, invalid("tipo desconhecido", "tipo")
	}
	if e.municipio.Cidade != "" && !SameCity(in.Endereco.Cidade, e.municipio.Cidade) {
		return Demand{}, invalid("endereço fora do município atendido", "endereco.cidade")
	}
	if e.municipio.UF != "" && !strings.EqualFold(in.Endereco.Estado, e.municipio.UF) {
		return Demand{}, invalid("endereço fora do município atendido", "endereco.estado")
	}

	secretariaID, err := e.directory.SecretariaForTipo(ctx, string(tipo))
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			return Demand{}, invalid("tipo sem secretaria responsável", "tipo")
		}
		return Demand{}, fmt.Errorf("consultar secretaria: %w", err)
	}

	created, err := e.store.Create(ctx, Demand{
		Tipo:         tipo,
		Status:       StatusEmAberto,
		Descricao:    in.Descricao,
		Endereco:     in.Endereco,
		Imagens:      in.Imagens,
		Usuarios:     []string{},
		CidadaoID:    actor.ID,
		SecretariaID: secretariaID,
	})
	if err != nil {
		span.RecordError(err)
		return Demand{}, err
	}

	e.metrics.IncCreated(string(created.Tipo))
	e.logger.Info().
		Str("demanda_id", created.ID).
		Str("tipo", string(created.Tipo)).
		Str("secretaria_id", created.SecretariaID).
		Msg("demanda aberta")
	e.publish(ctx, events.TypeCriada, "", "", created, actor)
	return created, nil
}

// Get devolve a demanda se o ator puder vê-la.
func (e *Engine) Get(ctx context.Context, actor Actor, id string) (Demand, error) {
	d, err := e.store.Get(ctx, id)
	if err != nil {
		return Demand{}, err
	}
	if !actor.CanSee(d) {
		return Demand{}, &ForbiddenError{Role: actor.Role, Action: "consultar", Reason: "demanda fora do escopo do ator"}
	}
	return d, nil
}

// Delete remove a demanda. Exclusivo do administrador, fora do workflow.
func (e *Engine) Delete(ctx context.Context, actor Actor, id string) error {
	if actor.Role != RoleAdmin {
		return &ForbiddenError{Role: actor.Role, Action: "remover", Reason: "somente administradores removem demandas"}
	}
	if err := e.store.Delete(ctx, id); err != nil {
		return err
	}
	e.logger.Warn().Str("demanda_id", id).Str("actor_id", actor.ID).Msg("demanda removida")
	return nil
}

func (e *Engine) publish(ctx context.Context, typ string, action Action, from Status, d Demand, actor Actor) {
	evt := events.Event{
		Type:           typ,
		DemandaID:      d.ID,
		Acao:           string(action),
		StatusAnterior: string(from),
		Status:         string(d.Status),
		AtorPapel:      string(actor.Role),
		AtorID:         actor.ID,
		SecretariaID:   d.SecretariaID,
		CidadaoID:      d.CidadaoID,
		Versao:         d.Versao,
		OcorridoEm:     d.UpdatedAt,
	}
	if err := e.publisher.Publish(ctx, evt); err != nil {
		e.logger.Warn().Err(err).Str("demanda_id", d.ID).Str("type", typ).Msg("falha ao publicar evento")
	}
}

func eventType(a Action) string {
	switch a {
	case ActionAssign:
		return events.TypeAtribuida
	case ActionReject:
		return events.TypeRejeitada
	case ActionResolve:
		return events.TypeResolvida
	case ActionReturn:
		return events.TypeDevolvida
	case ActionRate:
		return events.TypeAvaliada
	}
	return ""
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrConflict):
		return "conflict"
	}
	return "error"
}
