package demanda

import "strings"

// Role é o papel com que o ator se apresenta ao workflow.
type Role string

const (
	RoleCidadao    Role = "CIDADAO"
	RoleSecretaria Role = "SECRETARIA"
	RoleOperador   Role = "OPERADOR"
	RoleAdmin      Role = "ADMIN"
)

// Actor identifica quem executa a ação. SecretariaID só é usado pelo papel SECRETARIA.
type Actor struct {
	Role         Role
	ID           string
	SecretariaID string
}

// Citizen cria o ator cidadão.
func Citizen(id string) Actor {
	return Actor{Role: RoleCidadao, ID: strings.TrimSpace(id)}
}

// Secretariat cria o ator servidor de secretaria com a secretaria ativa.
func Secretariat(id, secretariaID string) Actor {
	return Actor{Role: RoleSecretaria, ID: strings.TrimSpace(id), SecretariaID: strings.TrimSpace(secretariaID)}
}

// Operator cria o ator operador.
func Operator(id string) Actor {
	return Actor{Role: RoleOperador, ID: strings.TrimSpace(id)}
}

// Administrator cria o ator administrador.
func Administrator(id string) Actor {
	return Actor{Role: RoleAdmin, ID: strings.TrimSpace(id)}
}

// Valid indica se o ator foi resolvido por completo.
func (a Actor) Valid() bool {
	if a.ID == "" {
		return false
	}
	switch a.Role {
	case RoleCidadao, RoleOperador, RoleAdmin:
		return true
	case RoleSecretaria:
		return a.SecretariaID != ""
	default:
		return false
	}
}

// ParseRole converte papel textual (JWT) em Role.
func ParseRole(raw string) (Role, bool) {
	switch Role(strings.ToUpper(strings.TrimSpace(raw))) {
	case RoleCidadao:
		return RoleCidadao, true
	case RoleSecretaria:
		return RoleSecretaria, true
	case RoleOperador:
		return RoleOperador, true
	case RoleAdmin:
		return RoleAdmin, true
	}
	return "", false
}

// CanSee aplica as regras de visibilidade por papel.
func (a Actor) CanSee(d Demand) bool {
	switch a.Role {
	case RoleCidadao:
		return d.CidadaoID == a.ID
	case RoleSecretaria:
		return a.SecretariaID != "" && d.SecretariaID == a.SecretariaID
	case RoleOperador:
		return d.AssignedTo(a.ID)
	case RoleAdmin:
		return true
	}
	return false
}
