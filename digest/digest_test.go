package digest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sage-x-project/seal/field"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseByteRangeWholeFile(t *testing.T) {
	a := Anchors{F: 0, f: 1000}
	segs, err := ParseByteRange("F~f", a, 1000)
	require.NoError(t, err)
	require.Len(t, segs, 1)
	assert.Equal(t, int64(0), segs[0].lo)
	assert.Equal(t, int64(1000), segs[0].hi)
}

func TestParseByteRangeEmptySegmentIsZeroLength(t *testing.T) {
	a := Anchors{F: 0, f: 1000, S: 500, s: 500}
	segs, err := ParseByteRange("F~F,f~f", a, 1000)
	require.NoError(t, err)
	require.Len(t, segs, 2)
	assert.Equal(t, segment{lo: 0, hi: 0, sideFlags0: "F", sideFlags1: "F"}, segs[0])
	assert.Equal(t, segment{lo: 1000, hi: 1000, sideFlags0: "f", sideFlags1: "f"}, segs[1])
}

// TestParseByteRangeAnchorArithmetic exercises spec.md §8's worked example 3:
// b = "F~S,s+5-2~f" with S=100, s=200, |F|=1000 must produce segments
// [(0,100), (203,1000)].
//
// The spec's own prose defines @sflags0/@sflags1 as accumulating every
// anchor letter seen on each side across all segments, which for this
// example yields sflags0="Fs" and sflags1="Sf" (not the literal "F"/"sf"
// printed alongside the same example) — this implementation follows the
// prose definition rather than the example's literal string.
func TestParseByteRangeAnchorArithmetic(t *testing.T) {
	a := Anchors{F: 0, f: 1000, S: 100, s: 200}
	segs, err := ParseByteRange("F~S,s+5-2~f", a, 1000)
	require.NoError(t, err)
	require.Len(t, segs, 2)
	assert.Equal(t, int64(0), segs[0].lo)
	assert.Equal(t, int64(100), segs[0].hi)
	assert.Equal(t, int64(203), segs[1].lo)
	assert.Equal(t, int64(1000), segs[1].hi)
	assert.Equal(t, "F", segs[0].sideFlags0)
	assert.Equal(t, "S", segs[0].sideFlags1)
	assert.Equal(t, "s", segs[1].sideFlags0)
	assert.Equal(t, "f", segs[1].sideFlags1)
}

func TestParseByteRangeLiteralRHSIsNotAnchored(t *testing.T) {
	a := Anchors{F: 0, f: 1000}
	segs, err := ParseByteRange("F~500", a, 1000)
	require.NoError(t, err)
	require.Len(t, segs, 1)
	assert.Equal(t, int64(500), segs[0].hi, "a literal numeric rhs must not have f added to it")
}

func TestParseByteRangeUnderflow(t *testing.T) {
	a := Anchors{F: 0, f: 1000}
	_, err := ParseByteRange("F-1~f", a, 1000)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "underflow")
}

func TestParseByteRangeOverflow(t *testing.T) {
	a := Anchors{F: 0, f: 1000}
	_, err := ParseByteRange("F~f+1", a, 1000)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "overflow")
}

func TestParseByteRangeBeginsAfterEnds(t *testing.T) {
	a := Anchors{F: 0, f: 1000, S: 600, s: 200}
	_, err := ParseByteRange("S~s", a, 1000)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "begins after")
}

func writeTempFile(t *testing.T, contents []byte) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "sample.bin")
	require.NoError(t, os.WriteFile(path, contents, 0o644))
	return path
}

func TestDigestWholeFileDefaultRange(t *testing.T) {
	data := []byte("the quick brown fox jumps over the lazy dog")
	path := writeTempFile(t, data)

	s := field.New()
	s.SetText("da", "sha256")
	s.SetIndexed("@s", 0, uint64(len(data)), field.KindSizeArray)
	s.SetIndexed("@s", 1, uint64(len(data)), field.KindSizeArray)

	result, err := Digest(s, path, "")
	require.NoError(t, err)
	assert.NotEmpty(t, result.Digest1)
	assert.Equal(t, result.Digest1, s.GetBytes("@digest1"))
}

func TestDigestZeroLengthSignatureMatchesWholeFile(t *testing.T) {
	data := []byte("payload with no signature region yet")
	path := writeTempFile(t, data)

	s1 := field.New()
	s1.SetText("b", "F~f")
	r1, err := Digest(s1, path, "")
	require.NoError(t, err)

	s2 := field.New()
	s2.SetText("b", "F~S,s~f")
	s2.SetIndexed("@s", 0, uint64(len(data)), field.KindSizeArray)
	s2.SetIndexed("@s", 1, uint64(len(data)), field.KindSizeArray)
	r2, err := Digest(s2, path, "")
	require.NoError(t, err)

	assert.Equal(t, r1.Digest1, r2.Digest1)
}

// TestDigestDoubleDigest follows spec.md §8's worked example 4.
func TestDigestDoubleDigest(t *testing.T) {
	data := []byte("file-bytes")
	path := writeTempFile(t, data)

	s := field.New()
	s.SetText("da", "sha256")
	s.SetText("id", "alice")
	s.SetText("@sigdate", "20240101000000")
	s.SetIndexed("@s", 0, uint64(len(data)), field.KindSizeArray)
	s.SetIndexed("@s", 1, uint64(len(data)), field.KindSizeArray)

	result, err := Digest(s, path, "")
	require.NoError(t, err)
	require.NotEmpty(t, result.Digest2)

	expected, err := doubleDigest(SHA256, "20240101000000", "alice", result.Digest1)
	require.NoError(t, err)
	assert.Equal(t, expected, result.Digest2)
}

func TestDigestSidecarPrefaceBindsWhenFTouched(t *testing.T) {
	data := []byte("sidecar-record-bytes")
	path := writeTempFile(t, data)
	prefacePath := writeTempFile(t, []byte("original-media-bytes"))

	withoutPreface := field.New()
	withoutPreface.SetText("b", "F~f")
	r1, err := Digest(withoutPreface, path, "")
	require.NoError(t, err)

	withPreface := field.New()
	withPreface.SetText("b", "F~f")
	r2, err := Digest(withPreface, path, prefacePath)
	require.NoError(t, err)

	assert.NotEqual(t, r1.Digest1, r2.Digest1)
}

func TestNewHashRejectsUnknownAlgorithm(t *testing.T) {
	_, err := NewHash("md5")
	assert.Error(t, err)
}
