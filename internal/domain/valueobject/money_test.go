package valueobject

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMoney(t *testing.T) {
	t.Run("valid rub amount", func(t *testing.T) {
		m, err := NewMoney(19900, "RUB")
		require.NoError(t, err)
		assert.Equal(t, "199.00 RUB", m.String())
		assert.True(t, m.Major().Equal(m.Major().Round(2)))
	})

	t.Run("stars have no minor unit", func(t *testing.T) {
		m, err := NewMoney(50, CurrencyStars)
		require.NoError(t, err)
		assert.Equal(t, "50 XTR", m.String())
	})

	t.Run("rejects non-positive amount", func(t *testing.T) {
		_, err := NewMoney(0, "RUB")
		assert.True(t, errors.Is(err, ErrInvalidAmount))
	})

	t.Run("rejects bad currency", func(t *testing.T) {
		_, err := NewMoney(100, "rub")
		assert.True(t, errors.Is(err, ErrInvalidCurrency))
	})
}
