package demanda

import (
	"strings"
	"time"
)

// Status representa a etapa do ciclo de vida da demanda.
type Status string

const (
	StatusEmAberto    Status = "Em aberto"
	StatusEmAndamento Status = "Em andamento"
	StatusConcluida   Status = "Concluída"
	StatusRecusada    Status = "Recusada"
)

// Tipo identifica o serviço solicitado. Cada tipo pertence a uma secretaria.
type Tipo string

const (
	TipoColeta       Tipo = "Coleta"
	TipoIluminacao   Tipo = "Iluminação"
	TipoSaneamento   Tipo = "Saneamento"
	TipoArvores      Tipo = "Árvores"
	TipoAnimais      Tipo = "Animais"
	TipoPavimentacao Tipo = "Pavimentação"
)

// Action é uma ação de workflow disparada por um ator.
type Action string

const (
	ActionAssign  Action = "atribuir"
	ActionReject  Action = "rejeitar"
	ActionResolve Action = "resolver"
	ActionReturn  Action = "devolver"
	ActionRate    Action = "avaliar"
)

const (
	MaxTextLength = 500
	MinPhotos     = 1
	MaxPhotos     = 3
	MinFeedback   = 1
	MaxFeedback   = 5
)

var (
	allStatuses = []Status{StatusEmAberto, StatusEmAndamento, StatusConcluida, StatusRecusada}
	allTipos    = []Tipo{TipoColeta, TipoIluminacao, TipoSaneamento, TipoArvores, TipoAnimais, TipoPavimentacao}
	allActions  = []Action{ActionAssign, ActionReject, ActionResolve, ActionReturn, ActionRate}
)

// Statuses devolve os status conhecidos na ordem do ciclo de vida.
func Statuses() []Status {
	return append([]Status(nil), allStatuses...)
}

// Tipos devolve os tipos de demanda atendidos pelo município.
func Tipos() []Tipo {
	return append([]Tipo(nil), allTipos...)
}

// Actions devolve as ações de workflow conhecidas.
func Actions() []Action {
	return append([]Action(nil), allActions...)
}

// Endereco é o local da ocorrência.
type Endereco struct {
	CEP         string `json:"cep" validate:"required,len=8,numeric"`
	Bairro      string `json:"bairro" validate:"required,max=120"`
	Logradouro  string `json:"logradouro" validate:"required,max=200"`
	Numero      string `json:"numero" validate:"required,max=20"`
	Complemento string `json:"complemento,omitempty" validate:"max=120"`
	Cidade      string `json:"cidade" validate:"required"`
	Estado      string `json:"estado" validate:"required,len=2"`
}

func (e Endereco) normalized() Endereco {
	e.CEP = digitsOnly(e.CEP)
	e.Bairro = strings.TrimSpace(e.Bairro)
	e.Logradouro = strings.TrimSpace(e.Logradouro)
	e.Numero = strings.TrimSpace(e.Numero)
	e.Complemento = strings.TrimSpace(e.Complemento)
	e.Cidade = strings.TrimSpace(e.Cidade)
	e.Estado = strings.ToUpper(strings.TrimSpace(e.Estado))
	return e
}

// Demand é a solicitação de serviço aberta por um cidadão.
type Demand struct {
	ID                 string    `json:"id"`
	Tipo               Tipo      `json:"tipo"`
	Status             Status    `json:"status"`
	Descricao          string    `json:"descricao"`
	Endereco           Endereco  `json:"endereco"`
	Imagens            []string  `json:"link_imagem"`
	Usuarios           []string  `json:"usuarios"`
	Resolucao          string    `json:"resolucao,omitempty"`
	ImagensResolucao   []string  `json:"link_imagem_resolucao,omitempty"`
	MotivoDevolucao    string    `json:"motivo_devolucao,omitempty"`
	MotivoRejeicao     string    `json:"motivo_rejeicao,omitempty"`
	Feedback           int       `json:"feedback,omitempty"`
	AvaliacaoResolucao string    `json:"avaliacao_resolucao,omitempty"`
	CidadaoID          string    `json:"cidadao_id"`
	SecretariaID       string    `json:"secretaria_id"`
	Versao             int64     `json:"versao"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// Rated indica se o cidadão já avaliou o atendimento.
func (d Demand) Rated() bool {
	return d.Feedback != 0
}

// AssignedTo indica se o operador está vinculado à demanda.
func (d Demand) AssignedTo(userID string) bool {
	for _, id := range d.Usuarios {
		if id == userID {
			return true
		}
	}
	return false
}

// Clone copia a demanda sem compartilhar slices.
func (d Demand) Clone() Demand {
	d.Imagens = cloneStrings(d.Imagens)
	d.Usuarios = cloneStrings(d.Usuarios)
	d.ImagensResolucao = cloneStrings(d.ImagensResolucao)
	return d
}

// Payload reúne os campos informados em uma ação de workflow.
type Payload struct {
	Usuarios           []string
	Motivo             string
	Resolucao          string
	ImagensResolucao   []string
	Feedback           int
	AvaliacaoResolucao string
}

// Command descreve uma ação aplicada pelo Engine.
type Command struct {
	DemandID string
	Actor    Actor
	Action   Action
	Payload  Payload
	// ExpectedVersion > 0 exige que a demanda ainda esteja nessa versão.
	ExpectedVersion int64
}

// CreateInput encapsula os campos de abertura de demanda.
type CreateInput struct {
	Tipo      string   `json:"tipo" validate:"required"`
	Descricao string   `json:"descricao" validate:"required,max=500"`
	Endereco  Endereco `json:"endereco"`
	Imagens   []string `json:"link_imagem" validate:"min=1,max=3,dive,required"`
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func cleanStrings(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
