package ai

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type staticProvider struct{}

func (staticProvider) Name() string { return "static" }

func (staticProvider) Embed(ctx context.Context, model string, text string, taskType string) ([]float32, error) {
	return []float32{1}, nil
}

func TestProviderRegistry(t *testing.T) {
	Register("static", func(args interface{}) (IEmbedProvider, error) {
		return staticProvider{}, nil
	})

	p, err := NewProvider("Static", nil)
	require.NoError(t, err)
	require.Equal(t, "static", p.Name())

	_, err = NewProvider("nonexistent", nil)
	require.Error(t, err)
	_, err = NewProvider("", nil)
	require.Error(t, err)
}

func TestBuiltinProvidersRegistered(t *testing.T) {
	// construction succeeds without a key; calls fail as unavailable
	for _, name := range []string{"gemini", "openai"} {
		p, err := NewProvider(name, map[string]interface{}{})
		require.NoError(t, err)
		_, err = p.Embed(context.Background(), "embed-001", "text", "")
		require.ErrorIs(t, err, ErrUnavailable)
	}
}

func TestEmbedderBindsModel(t *testing.T) {
	e := NewEmbedder(staticProvider{}, "embed-001")
	require.Equal(t, "embed-001", e.ModelName())
	vec, err := e.Embed(context.Background(), "text", "RETRIEVAL_DOCUMENT")
	require.NoError(t, err)
	require.Equal(t, []float32{1}, vec)
}
