package directory

import (
	"context"

	"github.com/google/uuid"
)

// RBAC opera regras de escopo por secretaria.
type RBAC struct {
	dir Directory
}

// NewRBAC cria nova instância.
func NewRBAC(dir Directory) *RBAC {
	return &RBAC{dir: dir}
}

// ValidateSecretariaAccess garante que usuário possua vínculo com secretaria solicitada.
func (r *RBAC) ValidateSecretariaAccess(ctx context.Context, usuarioID uuid.UUID, secretariaID uuid.UUID) (SecretariaWithRole, error) {
	secretarias, err := r.dir.ListSecretariasByUsuario(ctx, usuarioID)
	if err != nil {
		return SecretariaWithRole{}, err
	}
	for _, sec := range secretarias {
		if sec.SecretariaID == secretariaID {
			return sec, nil
		}
	}
	return SecretariaWithRole{}, ErrForbidden
}
