package idutil

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func Test_Generator_Next(t *testing.T) {
	g, err := NewGenerator(1)
	require.NoError(t, err)

	prev := int64(0)
	for i := 0; i < 100; i++ {
		id := g.Next()
		n, err := strconv.ParseInt(id, 10, 64)
		require.NoError(t, err)
		require.Greater(t, n, prev)
		prev = n
	}
}

func Test_NewGenerator_InvalidNode(t *testing.T) {
	_, err := NewGenerator(-1)
	require.Error(t, err)

	_, err = NewGenerator(1 << 20)
	require.Error(t, err)
}

func Test_Time(t *testing.T) {
	g, err := NewGenerator(3)
	require.NoError(t, err)

	before := time.Now().Add(-time.Second)
	ts, err := Time(g.Next())
	require.NoError(t, err)
	require.True(t, ts.After(before))
	require.True(t, ts.Before(time.Now().Add(time.Second)))

	_, err = Time("not-an-id")
	require.Error(t, err)
}
