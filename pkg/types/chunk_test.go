package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCategoryValid(t *testing.T) {
	assert.True(t, CategoryCode.Valid())
	assert.True(t, CategoryDocumentation.Valid())
	assert.False(t, Category("images").Valid())
	assert.False(t, Category("").Valid())
}

func TestChunkValidate(t *testing.T) {
	valid := Chunk{Content: "x", StartLine: 1, EndLine: 2, Category: CategoryCode}
	assert.NoError(t, valid.Validate())

	cases := []struct {
		name  string
		chunk Chunk
	}{
		{"empty content", Chunk{StartLine: 1, EndLine: 1, Category: CategoryCode}},
		{"zero start line", Chunk{Content: "x", EndLine: 1, Category: CategoryCode}},
		{"inverted range", Chunk{Content: "x", StartLine: 5, EndLine: 2, Category: CategoryCode}},
		{"negative ordinal", Chunk{Content: "x", StartLine: 1, EndLine: 1, Ordinal: -1, Category: CategoryCode}},
		{"bad category", Chunk{Content: "x", StartLine: 1, EndLine: 1, Category: "images"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Error(t, tc.chunk.Validate())
		})
	}
}

func TestEstimateTokenCount(t *testing.T) {
	chunk := Chunk{Content: "12345678"}
	assert.Equal(t, 2, chunk.EstimateTokenCount())
	assert.Equal(t, 2, chunk.TokenCount)
}

func TestContentHashDistinguishesContent(t *testing.T) {
	a := Chunk{Content: "alpha"}
	b := Chunk{Content: "beta"}
	assert.Equal(t, a.ContentHash(), (&Chunk{Content: "alpha"}).ContentHash())
	assert.NotEqual(t, a.ContentHash(), b.ContentHash())
}
