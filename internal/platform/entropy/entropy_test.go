package entropy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecureStaysInRange(t *testing.T) {
	src := Secure()
	seen := map[int]bool{}
	for i := 0; i < 2000; i++ {
		v, err := src.Intn(3)
		require.NoError(t, err)
		require.GreaterOrEqual(t, v, 0)
		require.Less(t, v, 3)
		seen[v] = true
	}
	assert.Len(t, seen, 3)
}

func TestSecureRejectsBadBound(t *testing.T) {
	_, err := Secure().Intn(0)
	assert.Error(t, err)
}

func TestScriptedReplaysThenExhausts(t *testing.T) {
	s := NewScripted(2, 4, -1)
	v, _ := s.Intn(3)
	assert.Equal(t, 2, v)
	v, _ = s.Intn(3)
	assert.Equal(t, 1, v)
	v, _ = s.Intn(3)
	assert.Equal(t, 2, v)
	_, err := s.Intn(3)
	assert.ErrorIs(t, err, ErrExhausted)
	assert.Equal(t, 3, s.Calls)
}
