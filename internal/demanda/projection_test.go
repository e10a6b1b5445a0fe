package demanda

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingStore struct {
	Store
}

func (failingStore) List(context.Context, Query) ([]Demand, int, error) {
	return nil, 0, errors.New("conexão perdida")
}

type queryRecorder struct {
	Store
	last Query
}

func (r *queryRecorder) List(ctx context.Context, q Query) ([]Demand, int, error) {
	r.last = q
	return r.Store.List(ctx, q)
}

func seedProjection(t *testing.T) *MemoryStore {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	tick := 0
	store := NewMemoryStore().WithClock(func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	})

	seed := []Demand{
		{Tipo: TipoColeta, Status: StatusEmAberto, CidadaoID: cidadaoID, SecretariaID: secObras},
		{Tipo: TipoPavimentacao, Status: StatusEmAndamento, CidadaoID: cidadaoID, SecretariaID: secObras, Usuarios: []string{opID}},
		{Tipo: TipoPavimentacao, Status: StatusConcluida, CidadaoID: "outro", SecretariaID: secObras, Usuarios: []string{opID}},
		{Tipo: TipoArvores, Status: StatusRecusada, CidadaoID: "outro", SecretariaID: secOutra},
		{Tipo: TipoArvores, Status: StatusEmAndamento, CidadaoID: cidadaoID, SecretariaID: secOutra, Usuarios: []string{opOutro}},
	}
	for i, d := range seed {
		d.Descricao = fmt.Sprintf("demanda %d", i)
		_, err := store.Create(ctx, d)
		require.NoError(t, err)
	}
	return store
}

func descriptions(p Page) []string {
	out := make([]string, 0, len(p.Docs))
	for _, d := range p.Docs {
		out = append(out, d.Descricao)
	}
	return out
}

func TestProjectionScopesByRole(t *testing.T) {
	p := NewProjection(seedProjection(t), nil)
	ctx := context.Background()

	tests := []struct {
		name  string
		actor Actor
		want  []string
	}{
		{"cidadão vê as próprias", Citizen(cidadaoID), []string{"demanda 4", "demanda 1", "demanda 0"}},
		{"secretaria vê as do seu tipo", Secretariat(gestorID, secObras), []string{"demanda 2", "demanda 1", "demanda 0"}},
		{"operador vê as atribuídas", Operator(opID), []string{"demanda 2", "demanda 1"}},
		{"administrador vê tudo", Administrator("root"), []string{"demanda 4", "demanda 3", "demanda 2", "demanda 1", "demanda 0"}},
		{"cidadão sem demandas", Citizen("novo"), []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := p.List(ctx, tt.actor, Filter{})
			require.NoError(t, err)
			assert.Equal(t, tt.want, descriptions(page))
			assert.Equal(t, len(tt.want), page.TotalDocs)
		})
	}
}

func TestProjectionFilters(t *testing.T) {
	p := NewProjection(seedProjection(t), nil)
	ctx := context.Background()

	page, err := p.List(ctx, Secretariat(gestorID, secObras), Filter{Status: []Status{"em_andamento"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"demanda 1"}, descriptions(page))

	page, err = p.List(ctx, Citizen(cidadaoID), Filter{Tipo: []Tipo{"arvores"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"demanda 4"}, descriptions(page))

	page, err = p.List(ctx, Operator(opID), Filter{Status: []Status{StatusEmAndamento, StatusConcluida}})
	require.NoError(t, err)
	assert.Len(t, page.Docs, 2)

	// valor desconhecido não restringe
	page, err = p.List(ctx, Secretariat(gestorID, secObras), Filter{Status: []Status{"qualquer"}, Tipo: []Tipo{""}})
	require.NoError(t, err)
	assert.Len(t, page.Docs, 3)

	page, err = p.List(ctx, Citizen(cidadaoID), Filter{Ascending: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"demanda 0", "demanda 1", "demanda 4"}, descriptions(page))
}

func TestProjectionPagination(t *testing.T) {
	p := NewProjection(seedProjection(t), nil)
	ctx := context.Background()
	admin := Administrator("root")

	page, err := p.List(ctx, admin, Filter{Page: 1, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"demanda 4", "demanda 3"}, descriptions(page))
	assert.Equal(t, 5, page.TotalDocs)
	assert.Equal(t, 3, page.TotalPages)
	assert.True(t, page.HasNextPage)
	assert.False(t, page.HasPrevPage)
	require.NotNil(t, page.NextPage)
	assert.Equal(t, 2, *page.NextPage)
	assert.Nil(t, page.PrevPage)

	page, err = p.List(ctx, admin, Filter{Page: 3, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"demanda 0"}, descriptions(page))
	assert.False(t, page.HasNextPage)
	assert.True(t, page.HasPrevPage)
	require.NotNil(t, page.PrevPage)
	assert.Equal(t, 2, *page.PrevPage)

	page, err = p.List(ctx, admin, Filter{Page: 9, Limit: 2})
	require.NoError(t, err)
	assert.Empty(t, page.Docs)
	assert.NotNil(t, page.Docs)
	assert.Equal(t, 9, page.Page)

	page, err = p.List(ctx, admin, Filter{Page: -3, Limit: 1000})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, MaxPageSize, page.Limit)

	page, err = p.List(ctx, Citizen("novo"), Filter{})
	require.NoError(t, err)
	assert.Equal(t, DefaultPageSize, page.Limit)
	assert.Equal(t, 1, page.TotalPages)
	assert.False(t, page.HasNextPage)
}

func TestProjectionHugePageStaysPastTheEnd(t *testing.T) {
	rec := &queryRecorder{Store: seedProjection(t)}
	p := NewProjection(rec, nil)
	ctx := context.Background()

	for _, f := range []Filter{
		{Page: math.MaxInt / 5, Limit: 10},
		{Page: math.MaxInt, Limit: MaxPageSize},
		{Page: math.MaxInt/DefaultPageSize + 2},
	} {
		page, err := p.List(ctx, Citizen(cidadaoID), f)
		require.NoError(t, err)
		assert.Empty(t, page.Docs)
		assert.Equal(t, 3, page.TotalDocs)
		assert.False(t, page.HasNextPage)
		assert.GreaterOrEqual(t, rec.last.Offset, 0)
	}
}

func TestProjectionRequiresScope(t *testing.T) {
	p := NewProjection(NewMemoryStore(), nil)
	_, err := p.List(context.Background(), Actor{Role: RoleSecretaria, ID: gestorID}, Filter{})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = p.List(context.Background(), Actor{Role: "VISITANTE", ID: "x"}, Filter{})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestProjectionPropagatesStoreError(t *testing.T) {
	p := NewProjection(failingStore{}, nil)
	_, err := p.List(context.Background(), Administrator("root"), Filter{})
	assert.Error(t, err)
}
