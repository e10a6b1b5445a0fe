package demanda

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// fold remove acentos, separadores e caixa: "Em andamento", "EmAndamento" e
// "em_andamento" viram "emandamento".
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	out = strings.ToLower(out)
	return strings.Map(func(r rune) rune {
		if r == ' ' || r == '_' || r == '-' {
			return -1
		}
		return r
	}, out)
}

// ParseStatus aceita o rótulo com ou sem acentos e separadores.
func ParseStatus(raw string) (Status, bool) {
	key := fold(raw)
	if key == "" {
		return "", false
	}
	for _, s := range allStatuses {
		if fold(string(s)) == key {
			return s, true
		}
	}
	return "", false
}

// ParseTipo aceita o tipo com ou sem acentos ("Iluminacao", "arvores").
func ParseTipo(raw string) (Tipo, bool) {
	key := fold(raw)
	if key == "" {
		return "", false
	}
	for _, t := range allTipos {
		if fold(string(t)) == key {
			return t, true
		}
	}
	return "", false
}

// ParseAction converte o nome da ação.
func ParseAction(raw string) (Action, bool) {
	key := fold(raw)
	for _, a := range allActions {
		if string(a) == key {
			return a, true
		}
	}
	return "", false
}

// SameCity compara nomes de município ignorando acentos e caixa.
func SameCity(a, b string) bool {
	return fold(a) == fold(b)
}
