package session

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestZeroAttribute(t *testing.T) {
	var a Attribute
	require.Zero(t, a.Kind())
	_, ok := a.Value()
	require.False(t, ok)
	_, ok = a.Object()
	require.False(t, ok)
	a.release()
}

func TestValueAttribute(t *testing.T) {
	a := Value(nil)
	require.Equal(t, KindValue, a.Kind())
	v, ok := a.Value()
	require.True(t, ok)
	require.Nil(t, v)
	require.Equal(t, "value", a.Kind().String())
	require.Equal(t, "Kind(7)", Kind(7).String())
}
