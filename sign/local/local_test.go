package local

import (
	"strings"
	"testing"
	"time"

	"github.com/sage-x-project/seal/field"
	"github.com/sage-x-project/seal/sealcrypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRSASigner(t *testing.T) (*Signer, sealcrypto.KeyPair) {
	t.Helper()
	kp, err := sealcrypto.GenerateKeyPair(sealcrypto.KeyTypeRSA, 2048)
	require.NoError(t, err)
	return NewSigner(kp), kp
}

func TestDryRunReportsSigSizeForHex(t *testing.T) {
	s, _ := newRSASigner(t)
	store := field.New()
	store.SetText("sf", "hex")

	require.NoError(t, s.Sign(store))
	size, ok := store.GetIndexed("@sigsize", 0, field.KindSizeArray)
	require.True(t, ok)
	assert.Equal(t, uint64(512), size) // 256-byte RSA-2048 sig, hex-doubled
}

func TestDryRunReservesDatePrefix(t *testing.T) {
	s, _ := newRSASigner(t)
	store := field.New()
	store.SetText("sf", "date3:hex")

	require.NoError(t, s.Sign(store))
	size, ok := store.GetIndexed("@sigsize", 0, field.KindSizeArray)
	require.True(t, ok)
	assert.Equal(t, uint64(512+19), size) // "YYYYMMDDhhmmss.FFF:" is 19 bytes -> dateLengths[3]=19
}

func TestRealSignProducesPaddedFixedWidthOutput(t *testing.T) {
	s, _ := newRSASigner(t)
	store := field.New()
	store.SetText("sf", "hex")

	require.NoError(t, s.Sign(store)) // dry run
	store.Set("@digest1", []byte("0123456789abcdef0123456789abcdef"), field.KindBinary)

	require.NoError(t, s.Sign(store)) // real sign
	sigSize, _ := store.GetIndexed("@sigsize", 0, field.KindSizeArray)
	enc := store.GetText("@signatureenc")
	assert.Len(t, enc, int(sigSize))
	assert.Equal(t, 512, len(strings.TrimRight(enc, " ")))
}

func TestRealSignWithDatePrefixGeneratesSigDate(t *testing.T) {
	s, _ := newRSASigner(t)
	s.now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }

	store := field.New()
	store.SetText("sf", "date:hex")
	require.NoError(t, s.Sign(store))
	store.Set("@digest1", []byte("0123456789abcdef0123456789abcdef"), field.KindBinary)

	require.NoError(t, s.Sign(store))
	assert.Equal(t, "20240101000000", store.GetText("@sigdate"))
	assert.True(t, strings.HasPrefix(store.GetText("@signatureenc"), "20240101000000:"))
}

func TestRealSignUsesDigest2WhenPresent(t *testing.T) {
	s, _ := newRSASigner(t)
	store := field.New()
	store.SetText("sf", "hex")
	require.NoError(t, s.Sign(store))

	store.Set("@digest1", []byte("digest-one-32-bytes-padding-xxxx"), field.KindBinary)
	store.Set("@digest2", []byte("digest-two-32-bytes-padding-xxxx"), field.KindBinary)
	require.NoError(t, s.Sign(store))

	sigBin := store.GetBytes("@sigbin")
	assert.NoError(t, s.KeyPair.Verify(store.GetBytes("@digest2"), sigBin))
}

func TestEncodingNamePreservesHexCase(t *testing.T) {
	assert.Equal(t, "hex", encodingName("hex"))
	assert.Equal(t, "HEX", encodingName("HEX"))
	assert.Equal(t, "base64", encodingName("date3:base64"))
	assert.Equal(t, "hex", encodingName("unrecognized"))
}
