package entropy

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSourceDeterministic(t *testing.T) {
	a := New(7)
	b := New(7)
	for i := 0; i < 100; i++ {
		require.Equal(t, a.Float(), b.Float())
	}
}

func TestReseedRestartsSequence(t *testing.T) {
	s := New(99)
	first := []float64{s.Float(), s.Float(), s.Float()}
	s.Reseed(99)
	require.Equal(t, first, []float64{s.Float(), s.Float(), s.Float()})
}

func TestZeroSeedDrawsCryptoSeed(t *testing.T) {
	s := New(0)
	require.NotZero(t, s.Seed())
}

func TestRange(t *testing.T) {
	s := New(3)
	for i := 0; i < 1000; i++ {
		v := s.Range(4, 7)
		require.GreaterOrEqual(t, v, 4.0)
		require.Less(t, v, 7.0)
	}
	require.Equal(t, 5.0, s.Range(5, 5))
	require.Equal(t, 5.0, s.Range(5, 1))
}

func TestLerp(t *testing.T) {
	require.Equal(t, 5.0, Lerp(5, 30, 0))
	require.Equal(t, 30.0, Lerp(5, 30, 1))
	require.InDelta(t, 17.5, Lerp(5, 30, 0.5), 1e-9)
}

func TestCryptoFloat(t *testing.T) {
	for i := 0; i < 100; i++ {
		v := CryptoFloat()
		require.GreaterOrEqual(t, v, 0.0)
		require.Less(t, v, 1.0)
	}
}
