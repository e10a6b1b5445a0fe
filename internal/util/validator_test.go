package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type enderecoFixture struct {
	CEP    string `json:"cep" validate:"required,len=8,numeric"`
	Cidade string `json:"cidade" validate:"required"`
}

type pedidoFixture struct {
	Descricao string          `json:"descricao" validate:"required,max=10"`
	Endereco  enderecoFixture `json:"endereco"`
	Fotos     []string        `json:"fotos" validate:"min=1,max=3,dive,required"`
	Interno   string          `json:"-" validate:"required"`
}

func TestInvalidFieldsUsesJSONNames(t *testing.T) {
	fields, err := InvalidFields(pedidoFixture{
		Descricao: "descrição longa demais",
		Endereco:  enderecoFixture{CEP: "7698"},
		Fotos:     []string{"", ""},
		Interno:   "x",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"descricao", "endereco.cep", "endereco.cidade", "fotos"}, fields)
}

func TestInvalidFieldsValid(t *testing.T) {
	fields, err := InvalidFields(pedidoFixture{
		Descricao: "ok",
		Endereco:  enderecoFixture{CEP: "76980000", Cidade: "Vilhena"},
		Fotos:     []string{"a"},
		Interno:   "x",
	})
	require.NoError(t, err)
	assert.Empty(t, fields)
}

func TestRequireString(t *testing.T) {
	assert.NoError(t, RequireString("abc", "id"))
	assert.EqualError(t, RequireString("  ", "id"), "id obrigatório")
}
