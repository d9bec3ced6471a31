package to

import (
	"github.com/stretchr/testify/assert"
	"testing"
)

func TestEmpty(t *testing.T) {
	t.Run("nil string", func(t *testing.T) {
		assert.Equal(t, "", Empty((*string)(nil)))
	})
	t.Run("int", func(t *testing.T) {
		assert.Equal(t, 44, Empty(Ptr(44)))
	})
}
