package demanda

import "context"

// Store persiste demandas. Save é otimista: grava somente se a versão
// armazenada ainda for d.Versao e devolve ErrConflict caso contrário.
type Store interface {
	Get(ctx context.Context, id string) (Demand, error)
	Create(ctx context.Context, d Demand) (Demand, error)
	Save(ctx context.Context, d Demand) (Demand, error)
	List(ctx context.Context, q Query) ([]Demand, int, error)
	Delete(ctx context.Context, id string) error
}

// Query filtra a listagem no nível da store. Campos vazios não restringem.
type Query struct {
	CidadaoID    string
	SecretariaID string
	UsuarioID    string
	Status       []Status
	Tipo         []Tipo
	Ascending    bool
	Limit        int
	Offset       int
}

func (q Query) matches(d Demand) bool {
	if q.CidadaoID != "" && d.CidadaoID != q.CidadaoID {
		return false
	}
	if q.SecretariaID != "" && d.SecretariaID != q.SecretariaID {
		return false
	}
	if q.UsuarioID != "" && !d.AssignedTo(q.UsuarioID) {
		return false
	}
	if len(q.Status) > 0 && !containsStatus(q.Status, d.Status) {
		return false
	}
	if len(q.Tipo) > 0 && !containsTipo(q.Tipo, d.Tipo) {
		return false
	}
	return true
}

func containsStatus(list []Status, s Status) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func containsTipo(list []Tipo, t Tipo) bool {
	for _, v := range list {
		if v == t {
			return true
		}
	}
	return false
}
