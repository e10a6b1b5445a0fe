package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/gestaozabele/servicos-publicos/internal/demanda"
	httpmiddleware "github.com/gestaozabele/servicos-publicos/internal/http/middleware"
)

// demandaView acrescenta as ações disponíveis ao ator na leitura individual.
type demandaView struct {
	demanda.Demand
	Acoes []demanda.Action `json:"acoes"`
}

type atribuirRequest struct {
	Usuarios []string `json:"usuarios"`
}

type devolverRequest struct {
	Status          string `json:"status"`
	MotivoRejeicao  string `json:"motivo_rejeicao"`
	MotivoDevolucao string `json:"motivo_devolucao"`
}

type resolverRequest struct {
	Resolucao        string   `json:"resolucao"`
	ImagensResolucao []string `json:"link_imagem_resolucao"`
}

type avaliarRequest struct {
	Feedback           int    `json:"feedback"`
	AvaliacaoResolucao string `json:"avaliacao_resolucao"`
}

// CreateDemanda abre uma demanda em nome do cidadão autenticado.
func (h *Handler) CreateDemanda(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	var in demanda.CreateInput
	if err := decodeJSON(w, r, &in); err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "JSON inválido", nil)
		return
	}

	created, err := h.workflow.Create(r.Context(), actor, in)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeVersioned(w, http.StatusCreated, created.Versao, created)
}

// ListDemandas devolve a página de demandas visível ao ator.
func (h *Handler) ListDemandas(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	page, err := h.lister.List(r.Context(), actor, parseFilter(r))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, page)
}

// GetDemanda devolve uma demanda e as ações que o ator pode executar.
func (h *Handler) GetDemanda(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	d, err := h.workflow.Get(r.Context(), actor, demandaID(r))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeVersioned(w, http.StatusOK, d.Versao, demandaView{Demand: d, Acoes: demanda.AvailableActions(d, actor)})
}

// AtribuirDemanda encaminha a demanda a um operador.
func (h *Handler) AtribuirDemanda(w http.ResponseWriter, r *http.Request) {
	var req atribuirRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "JSON inválido", nil)
		return
	}
	h.apply(w, r, demanda.ActionAssign, demanda.Payload{Usuarios: req.Usuarios})
}

// DevolverDemanda cobre a devolução pelo operador e a recusa pela
// secretaria; status "Recusada" ou apenas motivo_rejeicao indicam recusa.
func (h *Handler) DevolverDemanda(w http.ResponseWriter, r *http.Request) {
	var req devolverRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "JSON inválido", nil)
		return
	}

	if isRejection(req) {
		h.apply(w, r, demanda.ActionReject, demanda.Payload{Motivo: req.MotivoRejeicao})
		return
	}
	h.apply(w, r, demanda.ActionReturn, demanda.Payload{Motivo: req.MotivoDevolucao})
}

// ResolverDemanda conclui a demanda com descrição e fotos.
func (h *Handler) ResolverDemanda(w http.ResponseWriter, r *http.Request) {
	var req resolverRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "JSON inválido", nil)
		return
	}
	h.apply(w, r, demanda.ActionResolve, demanda.Payload{
		Resolucao:        req.Resolucao,
		ImagensResolucao: req.ImagensResolucao,
	})
}

// AvaliarDemanda registra a avaliação do cidadão.
func (h *Handler) AvaliarDemanda(w http.ResponseWriter, r *http.Request) {
	var req avaliarRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "JSON inválido", nil)
		return
	}
	h.apply(w, r, demanda.ActionRate, demanda.Payload{
		Feedback:           req.Feedback,
		AvaliacaoResolucao: req.AvaliacaoResolucao,
	})
}

// DeleteDemanda remove a demanda (administrador).
func (h *Handler) DeleteDemanda(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	if err := h.workflow.Delete(r.Context(), actor, demandaID(r)); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) apply(w http.ResponseWriter, r *http.Request, action demanda.Action, payload demanda.Payload) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	expected, err := parseIfMatch(r.Header.Get("If-Match"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "If-Match inválido", nil)
		return
	}

	updated, err := h.workflow.ApplyAction(r.Context(), demanda.Command{
		DemandID:        demandaID(r),
		Actor:           actor,
		Action:          action,
		Payload:         payload,
		ExpectedVersion: expected,
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeVersioned(w, http.StatusOK, updated.Versao, updated)
}

func (h *Handler) actor(w http.ResponseWriter, r *http.Request) (demanda.Actor, bool) {
	actor, ok := httpmiddleware.GetActor(r.Context())
	if !ok {
		WriteError(w, http.StatusUnauthorized, "AUTH", "ator não identificado", nil)
		return demanda.Actor{}, false
	}
	return actor, true
}

var fieldMessages = map[string]string{
	"usuarios":              "selecione um operador",
	"motivo_devolucao":      "informe o motivo da devolução",
	"motivo_rejeicao":       "informe o motivo da recusa",
	"resolucao":             "descreva a resolução",
	"link_imagem_resolucao": "envie de 1 a 3 fotos da resolução",
	"feedback":              "a nota deve ser de 1 a 5",
	"avaliacao_resolucao":   "comente a resolução",
	"acao":                  "ação desconhecida",
	"tipo":                  "tipo de demanda inválido",
	"descricao":             "descreva a demanda em até 500 caracteres",
	"link_imagem":           "envie de 1 a 3 fotos",
}

// writeDomainError traduz a taxonomia do workflow para o envelope HTTP.
func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *demanda.ValidationError
	switch {
	case errors.As(err, &verr):
		WriteError(w, http.StatusBadRequest, "VALIDATION", validationMessage(verr), map[string]any{"campos": verr.Fields})
	case errors.Is(err, demanda.ErrValidation):
		WriteError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
	case errors.Is(err, demanda.ErrNotFound):
		WriteError(w, http.StatusNotFound, "NOT_FOUND", "demanda não encontrada", nil)
	case errors.Is(err, demanda.ErrForbidden):
		WriteError(w, http.StatusForbidden, "FORBIDDEN", "ação não permitida para o seu perfil", nil)
	case errors.Is(err, demanda.ErrInvalidTransition):
		WriteError(w, http.StatusConflict, "INVALID_TRANSITION", "esta demanda já foi tratada", nil)
	case errors.Is(err, demanda.ErrConflict):
		WriteError(w, http.StatusConflict, "CONFLICT", "a demanda foi alterada, recarregue e tente novamente", nil)
	default:
		h.logger.Error().Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("falha ao processar demanda")
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "erro interno", nil)
	}
}

func validationMessage(verr *demanda.ValidationError) string {
	for _, field := range verr.Fields {
		if msg, ok := fieldMessages[field]; ok {
			return msg
		}
		if strings.HasPrefix(field, "endereco") {
			return "endereço incompleto ou fora do município"
		}
	}
	if verr.Message != "" {
		return verr.Message
	}
	return demanda.ErrValidation.Error()
}

func isRejection(req devolverRequest) bool {
	if st, ok := demanda.ParseStatus(req.Status); ok {
		return st == demanda.StatusRecusada
	}
	return strings.TrimSpace(req.MotivoRejeicao) != "" && strings.TrimSpace(req.MotivoDevolucao) == ""
}

func demandaID(r *http.Request) string {
	return strings.TrimSpace(chi.URLParam(r, "id"))
}

// parseIfMatch aceita "3", "\"3\"" e W/"3". Ausente significa sem exigência.
func parseIfMatch(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "*" {
		return 0, nil
	}
	raw = strings.TrimPrefix(raw, "W/")
	raw = strings.Trim(raw, `"`)
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 1 {
		return 0, errors.New("versão inválida")
	}
	return v, nil
}

// parseFilter lê status, tipo, page, limite e ordem. status e tipo aceitam
// lista separada por vírgula ou parâmetro repetido. Valores desconhecidos ou
// inválidos são ignorados e a listagem segue com o padrão.
func parseFilter(r *http.Request) demanda.Filter {
	q := r.URL.Query()
	var f demanda.Filter

	for _, raw := range splitValues(q["status"]) {
		if st, ok := demanda.ParseStatus(raw); ok {
			f.Status = append(f.Status, st)
		}
	}
	for _, raw := range splitValues(q["tipo"]) {
		if tipo, ok := demanda.ParseTipo(raw); ok {
			f.Tipo = append(f.Tipo, tipo)
		}
	}

	if page, err := strconv.Atoi(strings.TrimSpace(q.Get("page"))); err == nil && page > 0 {
		f.Page = page
	}
	if limit, err := strconv.Atoi(strings.TrimSpace(q.Get("limite"))); err == nil && limit > 0 {
		f.Limit = limit
	}

	switch strings.ToLower(strings.TrimSpace(q.Get("ordem"))) {
	case "asc", "antigas":
		f.Ascending = true
	}
	return f
}

func splitValues(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
