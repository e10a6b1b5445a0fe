package demanda

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/gestaozabele/servicos-publicos/internal/directory"
)

type step struct {
	actor   Actor
	action  Action
	payload Payload
}

func randomStep(r *rand.Rand) step {
	actors := []Actor{
		Citizen(cidadaoID),
		Citizen("outro-cidadao"),
		Secretariat(gestorID, secObras),
		Secretariat(gestorID, secOutra),
		Operator(opID),
		Operator(opOutro),
		Administrator("root"),
	}
	actions := append(Actions(), Action("arquivar"))
	a := actions[r.Intn(len(actions))]

	p := validPayload(a)
	if r.Intn(4) == 0 {
		p = Payload{}
	}
	if a == ActionAssign && r.Intn(3) == 0 {
		p.Usuarios = []string{opOutro}
	}
	return step{actor: actors[r.Intn(len(actors))], action: a, payload: p}
}

// TestRandomActionSequencesFollowEdges dispara sequências aleatórias e confere
// que toda mudança de status corresponde a uma aresta da tabela e que as
// invariantes de operador, resolução e avaliação se mantêm.
func TestRandomActionSequencesFollowEdges(t *testing.T) {
	ctx := context.Background()
	r := rand.New(rand.NewSource(20260316))

	dir := directory.NewStatic()
	obras := uuid.MustParse(secObras)
	dir.SetTipo(string(TipoColeta), obras)
	dir.AddMembro(uuid.MustParse(opID), obras, directory.PapelOperador)

	for run := 0; run < 200; run++ {
		store := NewMemoryStore()
		engine, err := NewEngine(EngineDeps{Store: store, Directory: dir, Logger: zerolog.Nop()})
		require.NoError(t, err)

		d, err := engine.Create(ctx, Citizen(cidadaoID), CreateInput{
			Tipo:      "Coleta",
			Descricao: "lixo acumulado",
			Endereco: Endereco{
				CEP: "76980000", Bairro: "Centro", Logradouro: "Rua 1", Numero: "1",
				Cidade: "Vilhena", Estado: "RO",
			},
			Imagens: []string{"f"},
		})
		require.NoError(t, err)

		rated := false
		for i := 0; i < 30; i++ {
			st := randomStep(r)
			before, err := store.Get(ctx, d.ID)
			require.NoError(t, err)

			after, err := engine.ApplyAction(ctx, Command{DemandID: d.ID, Actor: st.actor, Action: st.action, Payload: st.payload})
			stored, getErr := store.Get(ctx, d.ID)
			require.NoError(t, getErr)

			if err != nil {
				require.Equal(t, before, stored, "falha não pode gravar: %v", err)
				require.True(t,
					errors.Is(err, ErrForbidden) || errors.Is(err, ErrInvalidTransition) || errors.Is(err, ErrValidation),
					"erro fora da taxonomia: %v", err)
				continue
			}

			e := transitions[st.action]
			require.Equal(t, e.from, before.Status, "aresta de origem inválida para %s", st.action)
			require.Equal(t, e.to, after.Status)
			require.Equal(t, e.role, st.actor.Role)
			require.Equal(t, before.Versao+1, stored.Versao)

			if st.action == ActionRate {
				require.False(t, rated, "avaliação duplicada")
				rated = true
			}

			switch stored.Status {
			case StatusEmAndamento, StatusConcluida:
				require.NotEmpty(t, stored.Usuarios)
			default:
				require.Empty(t, stored.Usuarios)
			}
			if stored.Status == StatusConcluida {
				require.NotEmpty(t, stored.Resolucao)
				require.NotEmpty(t, stored.ImagensResolucao)
			} else {
				require.Empty(t, stored.Resolucao)
			}
			if stored.Status == StatusRecusada {
				require.NotEmpty(t, stored.MotivoRejeicao)
			}
		}
	}
}
