package demanda

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/suite"

	"github.com/gestaozabele/servicos-publicos/internal/demanda/metrics"
	"github.com/gestaozabele/servicos-publicos/internal/directory"
	"github.com/gestaozabele/servicos-publicos/internal/events"
)

// countingStore conta as escritas para provar que falhas não gravam nada.
type countingStore struct {
	*MemoryStore
	mu      sync.Mutex
	saves   int
	creates int
	saveErr error
}

func (s *countingStore) Save(ctx context.Context, d Demand) (Demand, error) {
	s.mu.Lock()
	s.saves++
	err := s.saveErr
	s.mu.Unlock()
	if err != nil {
		return Demand{}, err
	}
	return s.MemoryStore.Save(ctx, d)
}

func (s *countingStore) Create(ctx context.Context, d Demand) (Demand, error) {
	s.mu.Lock()
	s.creates++
	s.mu.Unlock()
	return s.MemoryStore.Create(ctx, d)
}

func (s *countingStore) writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves + s.creates
}

type EngineSuite struct {
	suite.Suite
	ctx       context.Context
	store     *countingStore
	dir       *directory.Static
	publisher *events.Recorder
	metrics   *metrics.Metrics
	engine    *Engine
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineSuite))
}

func (s *EngineSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = &countingStore{MemoryStore: NewMemoryStore()}
	s.dir = directory.NewStatic()
	obras := uuid.MustParse(secObras)
	s.dir.AddSecretaria(directory.Secretaria{ID: obras, Nome: "Obras", Ativa: true})
	s.dir.SetTipo(string(TipoPavimentacao), obras)
	s.dir.SetTipo(string(TipoColeta), obras)
	s.dir.AddMembro(uuid.MustParse(opID), obras, directory.PapelOperador)
	s.dir.AddMembro(uuid.MustParse(opOutro), uuid.MustParse(secOutra), directory.PapelOperador)
	s.publisher = &events.Recorder{}
	s.metrics = metrics.NewWithRegistry(prometheus.NewRegistry())

	engine, err := NewEngine(EngineDeps{
		Store:     s.store,
		Directory: s.dir,
		Publisher: s.publisher,
		Metrics:   s.metrics,
		Logger:    zerolog.Nop(),
		Municipio: Municipio{Cidade: "Vilhena", UF: "RO"},
	})
	s.Require().NoError(err)
	s.engine = engine
}

func (s *EngineSuite) createInput() CreateInput {
	return CreateInput{
		Tipo:      "Coleta",
		Descricao: "teste",
		Endereco: Endereco{
			CEP:        "76980-000",
			Bairro:     "Centro",
			Logradouro: "Av. Major Amarante",
			Numero:     "100",
			Cidade:     "Vilhena",
			Estado:     "ro",
		},
		Imagens: []string{"https://cdn/foto.jpg"},
	}
}

func (s *EngineSuite) openDemand() Demand {
	d, err := s.engine.Create(s.ctx, Citizen(cidadaoID), s.createInput())
	s.Require().NoError(err)
	return d
}

func (s *EngineSuite) apply(id string, actor Actor, action Action, p Payload) (Demand, error) {
	return s.engine.ApplyAction(s.ctx, Command{DemandID: id, Actor: actor, Action: action, Payload: p})
}

func (s *EngineSuite) stored(id string) Demand {
	d, err := s.store.Get(s.ctx, id)
	s.Require().NoError(err)
	return d
}

// =============================================================================
// Construction
// =============================================================================

func (s *EngineSuite) TestNewEngineRequiresDependencies() {
	_, err := NewEngine(EngineDeps{Directory: s.dir})
	s.Error(err)
	_, err = NewEngine(EngineDeps{Store: s.store})
	s.Error(err)
}

// =============================================================================
// End-to-end lifecycle
// =============================================================================

func (s *EngineSuite) TestFullLifecycle() {
	d := s.openDemand()
	s.Equal(StatusEmAberto, d.Status)
	s.Equal(TipoColeta, d.Tipo)
	s.Equal(secObras, d.SecretariaID)
	s.Equal("76980000", d.Endereco.CEP)
	s.Equal("RO", d.Endereco.Estado)
	s.Empty(d.Usuarios)

	d, err := s.apply(d.ID, Secretariat(gestorID, secObras), ActionAssign, Payload{Usuarios: []string{opID}})
	s.Require().NoError(err)
	s.Equal(StatusEmAndamento, d.Status)
	s.Equal([]string{opID}, d.Usuarios)

	d, err = s.apply(d.ID, Operator(opID), ActionResolve, Payload{Resolucao: "resolvido", ImagensResolucao: []string{"https://cdn/r.jpg"}})
	s.Require().NoError(err)
	s.Equal(StatusConcluida, d.Status)

	d, err = s.apply(d.ID, Citizen(cidadaoID), ActionRate, Payload{Feedback: 5, AvaliacaoResolucao: "ótimo"})
	s.Require().NoError(err)
	s.Equal(StatusConcluida, d.Status)
	s.Equal(5, d.Feedback)

	_, err = s.apply(d.ID, Citizen(cidadaoID), ActionRate, Payload{Feedback: 1, AvaliacaoResolucao: "péssimo"})
	s.ErrorIs(err, ErrInvalidTransition)

	final := s.stored(d.ID)
	s.Equal(5, final.Feedback)
	s.Equal("ótimo", final.AvaliacaoResolucao)
	s.Equal(int64(4), final.Versao)

	var types []string
	for _, evt := range s.publisher.Events() {
		types = append(types, evt.Type)
	}
	s.Equal([]string{events.TypeCriada, events.TypeAtribuida, events.TypeResolvida, events.TypeAvaliada}, types)
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.Transitions.WithLabelValues("avaliar", "ok")))
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.Transitions.WithLabelValues("avaliar", "invalid_transition")))
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.Created.WithLabelValues("Coleta")))
}

// =============================================================================
// Failure paths never write
// =============================================================================

func (s *EngineSuite) TestResolveRequiresTextAndPhoto() {
	d := s.openDemand()
	_, err := s.apply(d.ID, Secretariat(gestorID, secObras), ActionAssign, Payload{Usuarios: []string{opID}})
	s.Require().NoError(err)
	before := s.store.writes()

	_, err = s.apply(d.ID, Operator(opID), ActionResolve, Payload{Resolucao: "", ImagensResolucao: []string{}})
	var ve *ValidationError
	s.Require().ErrorAs(err, &ve)
	s.ElementsMatch([]string{"resolucao", "link_imagem_resolucao"}, ve.Fields)
	s.Equal(StatusEmAndamento, s.stored(d.ID).Status)
	s.Equal(before, s.store.writes())
}

func (s *EngineSuite) TestOperatorCannotAssignOrReject() {
	d := s.openDemand()
	before := s.stored(d.ID)

	_, err := s.apply(d.ID, Operator(opID), ActionAssign, Payload{Usuarios: []string{opID}})
	s.ErrorIs(err, ErrForbidden)
	_, err = s.apply(d.ID, Operator(opID), ActionReject, Payload{Motivo: "não"})
	s.ErrorIs(err, ErrForbidden)

	s.Equal(before, s.stored(d.ID))
	s.Equal(1, s.store.writes())
}

func (s *EngineSuite) TestOtherSecretariatForbidden() {
	d := s.openDemand()
	_, err := s.apply(d.ID, Secretariat(gestorID, secOutra), ActionReject, Payload{Motivo: "não é nosso"})
	s.ErrorIs(err, ErrForbidden)
}

func (s *EngineSuite) TestAdministratorCannotDriveWorkflow() {
	d := s.openDemand()
	_, err := s.apply(d.ID, Administrator("root"), ActionAssign, Payload{Usuarios: []string{opID}})
	s.ErrorIs(err, ErrForbidden)
}

func (s *EngineSuite) TestUnknownDemand() {
	_, err := s.apply("nao-existe", Secretariat(gestorID, secObras), ActionAssign, Payload{Usuarios: []string{opID}})
	s.ErrorIs(err, ErrNotFound)
	s.Zero(s.store.writes())
}

func (s *EngineSuite) TestAssignRequiresOperatorOfSecretariat() {
	d := s.openDemand()
	_, err := s.apply(d.ID, Secretariat(gestorID, secObras), ActionAssign, Payload{Usuarios: []string{opOutro}})
	var ve *ValidationError
	s.Require().ErrorAs(err, &ve)
	s.Equal([]string{"usuarios"}, ve.Fields)
	s.Equal(StatusEmAberto, s.stored(d.ID).Status)
}

func (s *EngineSuite) TestSaveFailureLeavesDemandUnchanged() {
	d := s.openDemand()
	s.store.saveErr = errors.New("disco cheio")

	_, err := s.apply(d.ID, Secretariat(gestorID, secObras), ActionReject, Payload{Motivo: "duplicada"})
	s.Error(err)
	s.Equal(d, s.stored(d.ID))
	s.Len(s.publisher.Events(), 1, "somente o evento de criação")
}

func (s *EngineSuite) TestPublisherFailureDoesNotFailTransition() {
	d := s.openDemand()
	s.publisher.Err = errors.New("kafka fora")

	updated, err := s.apply(d.ID, Secretariat(gestorID, secObras), ActionReject, Payload{Motivo: "duplicada"})
	s.Require().NoError(err)
	s.Equal(StatusRecusada, updated.Status)
	s.Equal("duplicada", updated.MotivoRejeicao)
}

// =============================================================================
// Return / reassign cycle
// =============================================================================

func (s *EngineSuite) TestReturnClearsAssignee() {
	d := s.openDemand()
	_, err := s.apply(d.ID, Secretariat(gestorID, secObras), ActionAssign, Payload{Usuarios: []string{opID}})
	s.Require().NoError(err)

	d, err = s.apply(d.ID, Operator(opID), ActionReturn, Payload{Motivo: "endereço não localizado"})
	s.Require().NoError(err)
	s.Equal(StatusEmAberto, d.Status)
	s.Equal([]string{}, d.Usuarios)
	s.Equal("endereço não localizado", d.MotivoDevolucao)

	_, err = s.apply(d.ID, Secretariat(gestorID, secObras), ActionAssign, Payload{Usuarios: []string{opID}})
	s.Require().NoError(err)
	d, err = s.apply(d.ID, Operator(opID), ActionReturn, Payload{Motivo: "falta material"})
	s.Require().NoError(err)
	s.Equal("falta material", d.MotivoDevolucao)
}

// =============================================================================
// Concurrency
// =============================================================================

func (s *EngineSuite) TestStaleAssignNeverDoubleAssigns() {
	d := s.openDemand()
	stale := d.Versao

	_, err := s.engine.ApplyAction(s.ctx, Command{
		DemandID: d.ID, Actor: Secretariat(gestorID, secObras), Action: ActionAssign,
		Payload: Payload{Usuarios: []string{opID}}, ExpectedVersion: stale,
	})
	s.Require().NoError(err)

	_, err = s.engine.ApplyAction(s.ctx, Command{
		DemandID: d.ID, Actor: Secretariat("outro-gestor", secObras), Action: ActionAssign,
		Payload: Payload{Usuarios: []string{opID}}, ExpectedVersion: stale,
	})
	s.ErrorIs(err, ErrConflict)

	_, err = s.apply(d.ID, Secretariat("outro-gestor", secObras), ActionAssign, Payload{Usuarios: []string{opID}})
	s.ErrorIs(err, ErrInvalidTransition)
	s.Equal(int64(2), s.stored(d.ID).Versao)
}

func (s *EngineSuite) TestConcurrentAssignSingleWinner() {
	d := s.openDemand()
	const workers = 20

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.apply(d.ID, Secretariat(gestorID, secObras), ActionAssign, Payload{Usuarios: []string{opID}})
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
				return
			}
			if !errors.Is(err, ErrConflict) && !errors.Is(err, ErrInvalidTransition) {
				s.T().Errorf("erro inesperado: %v", err)
			}
		}()
	}
	wg.Wait()

	s.Equal(1, successes)
	s.Equal(int64(2), s.stored(d.ID).Versao)
}

// =============================================================================
// Create
// =============================================================================

func (s *EngineSuite) TestCreateValidation() {
	s.Run("somente cidadão", func() {
		_, err := s.engine.Create(s.ctx, Operator(opID), s.createInput())
		s.ErrorIs(err, ErrForbidden)
	})

	s.Run("campos obrigatórios", func() {
		in := s.createInput()
		in.Descricao = "  "
		in.Imagens = nil
		in.Endereco.CEP = "123"
		_, err := s.engine.Create(s.ctx, Citizen(cidadaoID), in)
		var ve *ValidationError
		s.Require().ErrorAs(err, &ve)
		s.ElementsMatch([]string{"descricao", "endereco.cep", "link_imagem"}, ve.Fields)
	})

	s.Run("fotos demais", func() {
		in := s.createInput()
		in.Imagens = []string{"1", "2", "3", "4"}
		_, err := s.engine.Create(s.ctx, Citizen(cidadaoID), in)
		s.ErrorIs(err, ErrValidation)
	})

	s.Run("tipo desconhecido", func() {
		in := s.createInput()
		in.Tipo = "Foguete"
		_, err := s.engine.Create(s.ctx, Citizen(cidadaoID), in)
		var ve *ValidationError
		s.Require().ErrorAs(err, &ve)
		s.Equal([]string{"tipo"}, ve.Fields)
	})

	s.Run("tipo sem secretaria", func() {
		in := s.createInput()
		in.Tipo = "animais"
		_, err := s.engine.Create(s.ctx, Citizen(cidadaoID), in)
		var ve *ValidationError
		s.Require().ErrorAs(err, &ve)
		s.Equal([]string{"tipo"}, ve.Fields)
	})

	s.Run("fora do município", func() {
		in := s.createInput()
		in.Endereco.Cidade = "Porto Velho"
		_, err := s.engine.Create(s.ctx, Citizen(cidadaoID), in)
		var ve *ValidationError
		s.Require().ErrorAs(err, &ve)
		s.Equal([]string{"endereco.cidade"}, ve.Fields)
	})

	s.Zero(s.store.writes())
}

func (s *EngineSuite) TestCreateAcceptsAccentlessTipo() {
	in := s.createInput()
	in.Tipo = "pavimentacao"
	d, err := s.engine.Create(s.ctx, Citizen(cidadaoID), in)
	s.Require().NoError(err)
	s.Equal(TipoPavimentacao, d.Tipo)
}

// =============================================================================
// Get / Delete
// =============================================================================

func (s *EngineSuite) TestGetVisibility() {
	d := s.openDemand()

	_, err := s.engine.Get(s.ctx, Citizen(cidadaoID), d.ID)
	s.NoError(err)
	_, err = s.engine.Get(s.ctx, Secretariat(gestorID, secObras), d.ID)
	s.NoError(err)
	_, err = s.engine.Get(s.ctx, Administrator("root"), d.ID)
	s.NoError(err)

	_, err = s.engine.Get(s.ctx, Citizen("vizinho"), d.ID)
	s.ErrorIs(err, ErrForbidden)
	_, err = s.engine.Get(s.ctx, Operator(opID), d.ID)
	s.ErrorIs(err, ErrForbidden)
	_, err = s.engine.Get(s.ctx, Secretariat(gestorID, secOutra), d.ID)
	s.ErrorIs(err, ErrForbidden)
}

func (s *EngineSuite) TestDeleteIsAdministrative() {
	d := s.openDemand()

	s.ErrorIs(s.engine.Delete(s.ctx, Secretariat(gestorID, secObras), d.ID), ErrForbidden)
	s.Require().NoError(s.engine.Delete(s.ctx, Administrator("root"), d.ID))
	s.ErrorIs(s.engine.Delete(s.ctx, Administrator("root"), d.ID), ErrNotFound)

	_, err := s.store.Get(s.ctx, d.ID)
	s.ErrorIs(err, ErrNotFound)
}

func (s *EngineSuite) TestCreateStampsStoreClock() {
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s.store.WithClock(func() time.Time { return fixed })
	d := s.openDemand()
	s.Equal(fixed, d.CreatedAt)
	s.Equal(fixed, d.UpdatedAt)
}
