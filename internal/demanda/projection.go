package demanda

import (
	"context"
	"math"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/gestaozabele/servicos-publicos/internal/demanda/metrics"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Filter chega da tela de listagem. Valores ausentes não restringem.
type Filter struct {
	Status    []Status
	Tipo      []Tipo
	Page      int
	Limit     int
	Ascending bool
}

// Page segue o formato de paginação consumido pelo app.
type Page struct {
	Docs        []Demand `json:"docs"`
	TotalDocs   int      `json:"totalDocs"`
	Limit       int      `json:"limit"`
	Page        int      `json:"page"`
	TotalPages  int      `json:"totalPages"`
	HasNextPage bool     `json:"hasNextPage"`
	HasPrevPage bool     `json:"hasPrevPage"`
	NextPage    *int     `json:"nextPage"`
	PrevPage    *int     `json:"prevPage"`
}

// Projection monta as filas de cada papel. Não altera nada.
type Projection struct {
	store   Store
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

// NewProjection cria a projeção sobre a store.
func NewProjection(store Store, m *metrics.Metrics) *Projection {
	return &Projection{store: store, metrics: m, tracer: otel.Tracer("servicos-publicos/demanda")}
}

// List devolve a página de demandas visíveis ao ator.
func (p *Projection) List(ctx context.Context, actor Actor, f Filter) (Page, error) {
	ctx, span := p.tracer.Start(ctx, "demanda.List", trace.WithAttributes(
		attribute.String("actor.role", string(actor.Role)),
	))
	defer span.End()
	start := time.Now()
	defer func() { p.metrics.ObserveList(string(actor.Role), time.Since(start)) }()

	q, err := scopeQuery(actor)
	if err != nil {
		return Page{}, err
	}

	page := f.Page
	if page < 1 {
		page = 1
	}
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	q.Status = knownStatuses(f.Status)
	q.Tipo = knownTipos(f.Tipo)
	q.Ascending = f.Ascending
	q.Limit = limit
	q.Offset = pageOffset(page, limit)

	docs, total, err := p.store.List(ctx, q)
	if err != nil {
		span.RecordError(err)
		return Page{}, err
	}
	if docs == nil {
		docs = []Demand{}
	}
	return paginate(docs, total, page, limit), nil
}

func scopeQuery(actor Actor) (Query, error) {
	switch actor.Role {
	case RoleCidadao:
		if actor.ID != "" {
			return Query{CidadaoID: actor.ID}, nil
		}
	case RoleSecretaria:
		if actor.SecretariaID != "" {
			return Query{SecretariaID: actor.SecretariaID}, nil
		}
	case RoleOperador:
		if actor.ID != "" {
			return Query{UsuarioID: actor.ID}, nil
		}
	case RoleAdmin:
		return Query{}, nil
	}
	return Query{}, &ForbiddenError{Role: actor.Role, Action: "listar", Reason: "ator sem escopo de listagem"}
}

// pageOffset satura em math.MaxInt; páginas além do fim voltam vazias.
func pageOffset(page, limit int) int {
	if page-1 > math.MaxInt/limit {
		return math.MaxInt
	}
	return (page - 1) * limit
}

func paginate(docs []Demand, total, page, limit int) Page {
	totalPages := (total + limit - 1) / limit
	if totalPages < 1 {
		totalPages = 1
	}
	out := Page{
		Docs:        docs,
		TotalDocs:   total,
		Limit:       limit,
		Page:        page,
		TotalPages:  totalPages,
		HasNextPage: page < totalPages,
		HasPrevPage: page > 1,
	}
	if out.HasNextPage {
		next := page + 1
		out.NextPage = &next
	}
	if out.HasPrevPage {
		prev := page - 1
		out.PrevPage = &prev
	}
	return out
}

func knownStatuses(in []Status) []Status {
	var out []Status
	for _, s := range in {
		if parsed, ok := ParseStatus(string(s)); ok && !containsStatus(out, parsed) {
			out = append(out, parsed)
		}
	}
	return out
}

func knownTipos(in []Tipo) []Tipo {
	var out []Tipo
	for _, t := range in {
		if parsed, ok := ParseTipo(string(t)); ok && !containsTipo(out, parsed) {
			out = append(out, parsed)
		}
	}
	return out
}
