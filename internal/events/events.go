package events

import (
	"context"
	"sync"
	"time"
)

// Tipos de evento publicados após cada gravação do workflow.
const (
	TypeCriada    = "demanda.criada"
	TypeAtribuida = "demanda.atribuida"
	TypeRejeitada = "demanda.rejeitada"
	TypeResolvida = "demanda.resolvida"
	TypeDevolvida = "demanda.devolvida"
	TypeAvaliada  = "demanda.avaliada"
)

// Event descreve uma mudança confirmada em uma demanda.
type Event struct {
	Type           string    `json:"type"`
	DemandaID      string    `json:"demanda_id"`
	Acao           string    `json:"acao,omitempty"`
	StatusAnterior string    `json:"status_anterior,omitempty"`
	Status         string    `json:"status"`
	AtorPapel      string    `json:"ator_papel"`
	AtorID         string    `json:"ator_id"`
	SecretariaID   string    `json:"secretaria_id"`
	CidadaoID      string    `json:"cidadao_id"`
	Versao         int64     `json:"versao"`
	OcorridoEm     time.Time `json:"ocorrido_em"`
}

// Publisher entrega eventos para consumidores externos (notificações ao cidadão).
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}

// NoopPublisher descarta eventos.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, Event) error { return nil }

// Recorder guarda os eventos publicados em memória.
type Recorder struct {
	mu     sync.Mutex
	events []Event
	Err    error
}

func (r *Recorder) Publish(_ context.Context, evt Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.events = append(r.events, evt)
	return nil
}

// Events devolve uma cópia dos eventos recebidos.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}
