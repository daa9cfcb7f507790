package ensemble

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neurlang/automl/learning"
)

type sample struct {
	features []uint32
	class    uint16
}

func (s sample) Feature(n int) uint32 {
	return s.features[n%len(s.features)]
}

func (s sample) Output() uint16 {
	return s.class
}

func samples() []Sample {
	var out []Sample
	for c := uint16(0); c < 5; c++ {
		for i := uint32(0); i < 3; i++ {
			base := uint32(c)*1000 + i
			out = append(out, sample{features: []uint32{base, base * 7, base * 13, base ^ 0xdead}, class: c})
		}
	}
	return out
}

func TestEnsembleMemorizes(t *testing.T) {
	e, err := New(5, 4)
	require.NoError(t, err)
	assert.Equal(t, byte(3), e.Bits())

	hp := learning.HyperParameters{Threads: 4, Seed: 1}
	require.NoError(t, e.Train(context.Background(), hp, samples()))

	for _, s := range samples() {
		class, confidence := e.Predict(s)
		assert.Equal(t, int(s.Output()), class)
		assert.Greater(t, confidence, 0.5)
	}
}

func TestEnsembleJSON(t *testing.T) {
	e, err := New(5, 4)
	require.NoError(t, err)
	require.NoError(t, e.Train(context.Background(), learning.HyperParameters{Threads: 2}, samples()))

	data, err := json.Marshal(e)
	require.NoError(t, err)

	var decoded Ensemble
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, e.Classes(), decoded.Classes())
	assert.Equal(t, e.Len(), decoded.Len())
	for _, s := range samples() {
		assert.Equal(t, e.Votes(s), decoded.Votes(s))
	}

	assert.Error(t, json.Unmarshal([]byte(`{"classes":2,"hashtrons":[]}`), &decoded))
}

func TestNewRejectsInvalid(t *testing.T) {
	_, err := New(0, 4)
	assert.Error(t, err)
	_, err = New(2, 0)
	assert.Error(t, err)
}

func TestSingleClassBits(t *testing.T) {
	e, err := New(1, 2)
	require.NoError(t, err)
	assert.Equal(t, byte(1), e.Bits())
}

func TestTrainNoSamples(t *testing.T) {
	e, err := New(2, 2)
	require.NoError(t, err)
	assert.Error(t, e.Train(context.Background(), learning.HyperParameters{}, nil))
}

func TestTrainCancelled(t *testing.T) {
	e, err := New(5, 4)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, e.Train(ctx, learning.HyperParameters{}, samples()), context.Canceled)
}
