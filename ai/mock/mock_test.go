package mock

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeterministicVectorIsStableAndUnitLength(t *testing.T) {
	a := DeterministicVector("graph neural networks", Dimensions)
	b := DeterministicVector("graph neural networks", Dimensions)
	require.Len(t, a, Dimensions)
	assert.Equal(t, a, b)

	var sum float64
	for _, v := range a {
		sum += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, sum, 1e-5)
}

func TestMockEmbedderInjection(t *testing.T) {
	m := NewMockEmbedder().WithEmbedTextFunc(func(ctx context.Context, text string) ([]float32, error) {
		if text == "bad" {
			return nil, errors.New("boom")
		}
		return []float32{1, 0}, nil
	})

	v, err := m.EmbedText(context.Background(), "ok")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0}, v)

	_, err = m.EmbedTexts(context.Background(), []string{"ok", "bad"})
	assert.Error(t, err)
	assert.Equal(t, 2, m.CallCount())

	m.Reset()
	assert.Equal(t, 0, m.CallCount())
	v, err = m.EmbedText(context.Background(), "ok")
	require.NoError(t, err)
	assert.Len(t, v, Dimensions)
}

func TestMockCompleterRecordsPrompts(t *testing.T) {
	m := NewMockCompleter().WithResponse(`{"valid": true}`)

	out, err := m.Complete(context.Background(), "first", 10)
	require.NoError(t, err)
	assert.Equal(t, `{"valid": true}`, out)

	_, _ = m.Complete(context.Background(), "second", 10)
	assert.Equal(t, []string{"first", "second"}, m.Prompts())
	assert.Equal(t, 2, m.CallCount())

	m.Reset()
	assert.Empty(t, m.Prompts())
}

func TestMockProvider(t *testing.T) {
	p := NewMockProvider()
	mp := p.(*MockProvider)
	assert.Same(t, mp.GetMockEmbedder(), p.Embedder())
	assert.Same(t, mp.GetMockCompleter(), p.Completer())
	assert.NoError(t, p.Close())
}
