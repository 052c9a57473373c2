package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClamp(t *testing.T) {
	assert.Equal(t, 0, Clamp(-3, 0, 10))
	assert.Equal(t, 10, Clamp(42, 0, 10))
	assert.Equal(t, 7, Clamp(7, 0, 10))
	assert.Equal(t, float32(1), Clamp(float32(1.5), 0, 1))
}

func TestFloor32(t *testing.T) {
	assert.Equal(t, float32(-1), Floor32(-0.5))
	assert.Equal(t, float32(2), Floor32(2.9))
	assert.Equal(t, float32(3), Floor32(3))
}
