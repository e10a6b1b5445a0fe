package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Static mantém o diretório em memória. Usado com STORAGE_DRIVER=memory e em testes.
type Static struct {
	mu          sync.RWMutex
	secretarias map[uuid.UUID]Secretaria
	tipos       map[string]uuid.UUID
	membros     []UsuarioSecretaria
}

// NewStatic cria diretório vazio.
func NewStatic() *Static {
	return &Static{
		secretarias: make(map[uuid.UUID]Secretaria),
		tipos:       make(map[string]uuid.UUID),
	}
}

// Seed é o formato do arquivo DIRECTORY_SEED.
type Seed struct {
	Secretarias []Secretaria        `json:"secretarias"`
	Tipos       map[string]string   `json:"tipos"`
	Membros     []UsuarioSecretaria `json:"membros"`
}

// LoadStatic lê um arquivo JSON no formato Seed.
func LoadStatic(path string) (*Static, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ler diretório: %w", err)
	}
	var seed Seed
	if err := json.Unmarshal(raw, &seed); err != nil {
		return nil, fmt.Errorf("decodificar diretório: %w", err)
	}
	s := NewStatic()
	for _, sec := range seed.Secretarias {
		s.AddSecretaria(sec)
	}
	for tipo, id := range seed.Tipos {
		sid, err := uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("secretaria do tipo %s: %w", tipo, err)
		}
		s.SetTipo(tipo, sid)
	}
	for _, m := range seed.Membros {
		s.AddMembro(m.UsuarioID, m.SecretariaID, m.Papel)
	}
	return s, nil
}

// AddSecretaria registra uma secretaria.
func (s *Static) AddSecretaria(sec Secretaria) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.secretarias[sec.ID] = sec
}

// SetTipo associa o tipo à secretaria.
func (s *Static) SetTipo(tipo string, secretariaID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tipos[tipo] = secretariaID
}

// AddMembro vincula usuário à secretaria com o papel informado.
func (s *Static) AddMembro(usuarioID, secretariaID uuid.UUID, papel string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.membros = append(s.membros, UsuarioSecretaria{UsuarioID: usuarioID, SecretariaID: secretariaID, Papel: papel})
}

func (s *Static) SecretariaForTipo(_ context.Context, tipo string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.tipos[tipo]
	if !ok {
		return "", ErrNotFound
	}
	return id.String(), nil
}

func (s *Static) IsOperator(_ context.Context, secretariaID, usuarioID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.membros {
		if m.SecretariaID.String() == secretariaID && m.UsuarioID.String() == usuarioID && m.Papel == PapelOperador {
			return true, nil
		}
	}
	return false, nil
}

func (s *Static) ListSecretariasByUsuario(_ context.Context, usuarioID uuid.UUID) ([]SecretariaWithRole, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []SecretariaWithRole
	for _, m := range s.membros {
		if m.UsuarioID != usuarioID {
			continue
		}
		sec := s.secretarias[m.SecretariaID]
		out = append(out, SecretariaWithRole{
			SecretariaID: m.SecretariaID,
			Secretaria:   sec.Nome,
			Slug:         sec.Slug,
			Papel:        m.Papel,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Secretaria < out[j].Secretaria })
	return out, nil
}

// ListTipos devolve o mapeamento tipo → secretaria.
func (s *Static) ListTipos(context.Context) ([]TipoSecretaria, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]TipoSecretaria, 0, len(s.tipos))
	for tipo, id := range s.tipos {
		out = append(out, TipoSecretaria{Tipo: tipo, SecretariaID: id, Secretaria: s.secretarias[id].Nome})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Tipo < out[j].Tipo })
	return out, nil
}
