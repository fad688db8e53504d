package randutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewIsDeterministic(t *testing.T) {
	a, b := New(42), New(42)
	for i := 0; i < 10; i++ {
		assert.Equal(t, a.Uint64(), b.Uint64())
	}
}

func TestStreamsAreIndependent(t *testing.T) {
	game, faults := NewStream(7, 0), NewStream(7, 1)
	assert.NotEqual(t, game.Uint64(), faults.Uint64())

	// drawing from one stream does not move the other
	ref := NewStream(7, 0)
	ref.Uint64()
	faults.Uint64()
	assert.Equal(t, ref.Uint64(), game.Uint64())
}

func TestChanceAndBetween(t *testing.T) {
	r := New(1)
	assert.False(t, Chance(r, 0))
	assert.True(t, Chance(r, 1))
	assert.Equal(t, 5, Between(r, 5, 5))
	for i := 0; i < 100; i++ {
		v := Between(r, 2, 4)
		assert.GreaterOrEqual(t, v, 2)
		assert.LessOrEqual(t, v, 4)
	}
}
