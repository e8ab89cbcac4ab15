package field

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetGetPreservesOrder(t *testing.T) {
	s := New()
	s.SetText("seal", "1")
	s.SetText("d", "example.com")
	s.SetText("seal", "2") // replace, should not move position

	assert.Equal(t, []string{"seal", "d"}, s.Keys())
	assert.Equal(t, "2", s.GetText("seal"))
}

func TestEphemeralKeyDetection(t *testing.T) {
	assert.True(t, IsEphemeral("@digest1"))
	assert.False(t, IsEphemeral("d"))
	assert.False(t, IsEphemeral(""))
}

func TestAppendAndAppendPad(t *testing.T) {
	s := New()
	s.Append("@record", []byte("<seal"))
	s.Append("@record", []byte(" d=\"x\""))
	s.AppendPad("@record", 3, ' ')

	assert.Equal(t, "<seal d=\"x\"   ", s.GetText("@record"))
}

func TestSetIndexedGrowsAndReads(t *testing.T) {
	s := New()
	s.SetIndexed("@s", 0, 100, KindSizeArray)
	s.SetIndexed("@s", 1, 200, KindSizeArray)
	s.SetIndexed("@s", 2, 1, KindSizeArray)

	v0, ok0 := s.GetIndexed("@s", 0, KindSizeArray)
	v1, ok1 := s.GetIndexed("@s", 1, KindSizeArray)
	v2, ok2 := s.GetIndexed("@s", 2, KindSizeArray)
	require.True(t, ok0)
	require.True(t, ok1)
	require.True(t, ok2)
	assert.EqualValues(t, 100, v0)
	assert.EqualValues(t, 200, v1)
	assert.EqualValues(t, 1, v2)

	_, ok := s.GetIndexed("@s", 5, KindSizeArray)
	assert.False(t, ok, "out-of-range index read must return absent")
}

func TestCopyMoveDelete(t *testing.T) {
	s := New()
	s.SetText("s", "abc123")
	s.Copy("@sigbin", "s")
	assert.Equal(t, "abc123", s.GetText("@sigbin"))

	s.Move("moved", "s")
	assert.False(t, s.Has("s"))
	assert.Equal(t, "abc123", s.GetText("moved"))

	s.Delete("moved")
	assert.False(t, s.Has("moved"))
}

func TestCloneIsDeepAndIndependent(t *testing.T) {
	s := New()
	s.SetText("d", "example.com")
	clone := s.Clone()
	clone.SetText("d", "other.com")

	assert.Equal(t, "example.com", s.GetText("d"))
	assert.Equal(t, "other.com", clone.GetText("d"))
}

func TestTypeTag(t *testing.T) {
	s := New()
	s.SetText("d", "x")
	s.Set("@sigbin", []byte{1, 2, 3}, KindBinary)
	assert.Equal(t, byte('t'), s.TypeTag("d"))
	assert.Equal(t, byte('b'), s.TypeTag("@sigbin"))
	assert.Equal(t, byte('?'), s.TypeTag("absent"))
}
