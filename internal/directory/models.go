package directory

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound é retornado quando nenhum registro é encontrado.
	ErrNotFound = errors.New("registro não encontrado")
	// ErrForbidden indica ausência de vínculo com a secretaria.
	ErrForbidden = errors.New("acesso negado")
)

// Papéis de vínculo entre usuário e secretaria.
const (
	PapelGestor   = "GESTOR"
	PapelOperador = "OPERADOR"
)

// Secretaria representa secretaria municipal.
type Secretaria struct {
	ID       uuid.UUID `json:"id"`
	Nome     string    `json:"nome"`
	Slug     string    `json:"slug"`
	Ativa    bool      `json:"ativa"`
	CriadoEm time.Time `json:"criado_em"`
}

// UsuarioSecretaria vincula usuário às secretarias com papel.
type UsuarioSecretaria struct {
	UsuarioID    uuid.UUID `json:"usuario_id"`
	SecretariaID uuid.UUID `json:"secretaria_id"`
	Papel        string    `json:"papel"`
}

// SecretariaWithRole agrega secretaria com papel do usuário.
type SecretariaWithRole struct {
	SecretariaID uuid.UUID
	Secretaria   string
	Slug         string
	Papel        string
}

// TipoSecretaria associa um tipo de demanda à secretaria responsável.
type TipoSecretaria struct {
	Tipo         string    `json:"tipo"`
	SecretariaID uuid.UUID `json:"secretaria_id"`
	Secretaria   string    `json:"secretaria"`
}

// Directory resolve a secretaria de cada tipo e os vínculos de operadores.
type Directory interface {
	SecretariaForTipo(ctx context.Context, tipo string) (string, error)
	IsOperator(ctx context.Context, secretariaID, usuarioID string) (bool, error)
	ListSecretariasByUsuario(ctx context.Context, usuarioID uuid.UUID) ([]SecretariaWithRole, error)
}
