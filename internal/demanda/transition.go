package demanda

import (
	"strings"
	"unicode/utf8"
)

type edge struct {
	from Status
	role Role
	to   Status
}

// transitions é a tabela de arestas do workflow. Concluída e Recusada são
// terminais; avaliar é o único laço e não altera o status.
var transitions = map[Action]edge{
	ActionAssign:  {from: StatusEmAberto, role: RoleSecretaria, to: StatusEmAndamento},
	ActionReject:  {from: StatusEmAberto, role: RoleSecretaria, to: StatusRecusada},
	ActionResolve: {from: StatusEmAndamento, role: RoleOperador, to: StatusConcluida},
	ActionReturn:  {from: StatusEmAndamento, role: RoleOperador, to: StatusEmAberto},
	ActionRate:    {from: StatusConcluida, role: RoleCidadao, to: StatusConcluida},
}

// Target devolve o status resultante da ação, se a ação existir.
func Target(a Action) (Status, bool) {
	e, ok := transitions[a]
	return e.to, ok
}

// IsTerminal indica status sem arestas de saída (exceto a avaliação única).
func IsTerminal(s Status) bool {
	return s == StatusConcluida || s == StatusRecusada
}

// Validate responde se a ação é permitida para o ator na demanda atual e se o
// payload está completo. Não altera nada. A ordem das verificações é
// papel, vínculo, status e por fim campos obrigatórios.
func Validate(d Demand, actor Actor, action Action, p Payload) error {
	e, ok := transitions[action]
	if !ok {
		return invalid("ação desconhecida", "acao")
	}
	if actor.Role != e.role {
		return &ForbiddenError{Role: actor.Role, Action: action, Reason: "papel sem permissão para a ação"}
	}
	if err := checkOwnership(d, actor, action); err != nil {
		return err
	}
	if d.Status != e.from {
		return &TransitionError{From: d.Status, Action: action}
	}
	if action == ActionRate && d.Rated() {
		return &TransitionError{From: d.Status, Action: action, Reason: "demanda já avaliada"}
	}
	return checkPayload(action, p)
}

func checkOwnership(d Demand, actor Actor, action Action) error {
	switch actor.Role {
	case RoleSecretaria:
		if actor.SecretariaID == "" || actor.SecretariaID != d.SecretariaID {
			return &ForbiddenError{Role: actor.Role, Action: action, Reason: "demanda de outra secretaria"}
		}
	case RoleOperador:
		if !d.AssignedTo(actor.ID) {
			return &ForbiddenError{Role: actor.Role, Action: action, Reason: "operador não atribuído"}
		}
	case RoleCidadao:
		if actor.ID == "" || d.CidadaoID != actor.ID {
			return &ForbiddenError{Role: actor.Role, Action: action, Reason: "demanda de outro cidadão"}
		}
	}
	return nil
}

func checkPayload(action Action, p Payload) error {
	var fields []string
	switch action {
	case ActionAssign:
		if ids := cleanStrings(p.Usuarios); len(ids) != 1 {
			fields = append(fields, "usuarios")
		}
	case ActionReject:
		if !validText(p.Motivo) {
			fields = append(fields, "motivo_rejeicao")
		}
	case ActionReturn:
		if !validText(p.Motivo) {
			fields = append(fields, "motivo_devolucao")
		}
	case ActionResolve:
		if !validText(p.Resolucao) {
			fields = append(fields, "resolucao")
		}
		if n := len(cleanStrings(p.ImagensResolucao)); n < MinPhotos || n > MaxPhotos {
			fields = append(fields, "link_imagem_resolucao")
		}
	case ActionRate:
		if p.Feedback < MinFeedback || p.Feedback > MaxFeedback {
			fields = append(fields, "feedback")
		}
		if !validText(p.AvaliacaoResolucao) {
			fields = append(fields, "avaliacao_resolucao")
		}
	}
	if len(fields) > 0 {
		return invalid("campos obrigatórios ausentes ou inválidos", fields...)
	}
	return nil
}

func validText(s string) bool {
	s = strings.TrimSpace(s)
	return s != "" && utf8.RuneCountInString(s) <= MaxTextLength
}

// Apply calcula o novo valor da demanda para uma ação já validada. É pura: a
// entrada não é alterada e nenhum I/O acontece.
func Apply(d Demand, action Action, p Payload) Demand {
	next := d.Clone()
	e := transitions[action]
	switch action {
	case ActionAssign:
		next.Usuarios = cleanStrings(p.Usuarios)
	case ActionReject:
		next.MotivoRejeicao = strings.TrimSpace(p.Motivo)
	case ActionReturn:
		next.MotivoDevolucao = strings.TrimSpace(p.Motivo)
		next.Usuarios = []string{}
		next.Resolucao = ""
		next.ImagensResolucao = nil
	case ActionResolve:
		next.Resolucao = strings.TrimSpace(p.Resolucao)
		next.ImagensResolucao = cleanStrings(p.ImagensResolucao)
	case ActionRate:
		next.Feedback = p.Feedback
		next.AvaliacaoResolucao = strings.TrimSpace(p.AvaliacaoResolucao)
	}
	next.Status = e.to
	return next
}

// AvailableActions lista as ações que o ator pode tentar sobre a demanda no
// status atual, ignorando o payload.
func AvailableActions(d Demand, actor Actor) []Action {
	out := []Action{}
	for _, a := range allActions {
		err := Validate(d, actor, a, Payload{})
		if err == nil || isValidation(err) {
			out = append(out, a)
		}
	}
	return out
}

func isValidation(err error) bool {
	_, ok := err.(*ValidationError)
	return ok
}
