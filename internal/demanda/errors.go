package demanda

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound          = errors.New("demanda não encontrada")
	ErrForbidden         = errors.New("acesso negado")
	ErrInvalidTransition = errors.New("transição inválida")
	ErrValidation        = errors.New("dados inválidos")
	ErrConflict          = errors.New("demanda alterada por outra requisição")
)

// ForbiddenError indica papel ou vínculo incompatível com a ação.
type ForbiddenError struct {
	Role   Role
	Action Action
	Reason string
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("acesso negado: papel %s não pode %s: %s", e.Role, e.Action, e.Reason)
}

func (e *ForbiddenError) Unwrap() error { return ErrForbidden }

// TransitionError indica ação sem aresta a partir do status atual.
type TransitionError struct {
	From   Status
	Action Action
	Reason string
}

func (e *TransitionError) Error() string {
	msg := fmt.Sprintf("transição inválida: %s a partir de %q", e.Action, e.From)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// ValidationError lista os campos ausentes ou inválidos.
type ValidationError struct {
	Fields  []string
	Message string
}

func (e *ValidationError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = ErrValidation.Error()
	}
	if len(e.Fields) == 0 {
		return msg
	}
	return msg + ": " + strings.Join(e.Fields, ", ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalid(message string, fields ...string) *ValidationError {
	return &ValidationError{Fields: fields, Message: message}
}
