package builtin

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddition(t *testing.T) {
	out, err := Addition().Run(context.Background(), map[string]interface{}{"left": float64(2), "right": float64(3)})
	require.NoError(t, err)
	assert.Equal(t, float64(5), out)
}

func TestEcho(t *testing.T) {
	out, err := Echo().Run(context.Background(), map[string]interface{}{"text": "hello"})
	require.NoError(t, err)
	assert.Equal(t, "hello", out)
}

func TestCurrentTime(t *testing.T) {
	t.Run("should default to UTC", func(t *testing.T) {
		out, err := CurrentTime().Run(context.Background(), map[string]interface{}{})
		require.NoError(t, err)

		_, err = time.Parse(time.RFC3339, out.(string))
		assert.NoError(t, err)
	})

	t.Run("should reject unknown zone", func(t *testing.T) {
		_, err := CurrentTime().Run(context.Background(), map[string]interface{}{"timezone": "Nowhere/Null"})
		assert.Error(t, err)
	})
}

func TestAll(t *testing.T) {
	names := []string{}
	for _, tl := range All() {
		names = append(names, tl.Name())
	}
	assert.Equal(t, []string{"Addition", "Echo", "CurrentTime"}, names)
}
