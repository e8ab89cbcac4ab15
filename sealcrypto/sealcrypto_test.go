package sealcrypto

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRSASignVerifyRoundTrip(t *testing.T) {
	kp, err := GenerateKeyPair(KeyTypeRSA, 2048)
	require.NoError(t, err)

	digest := []byte("0123456789abcdef0123456789abcdef")
	sig, err := kp.Sign(digest)
	require.NoError(t, err)
	assert.NoError(t, kp.Verify(digest, sig))
	assert.Error(t, kp.Verify([]byte("wrong digest, same length!!!!!!!!"), sig))
}

func TestECDSASignVerifyRoundTrip(t *testing.T) {
	kp, err := GenerateKeyPair(KeyTypeECDSA, 0)
	require.NoError(t, err)
	assert.Equal(t, KeyTypeECDSA, kp.Type())

	digest := []byte("0123456789abcdef0123456789abcdef")
	sig, err := kp.Sign(digest)
	require.NoError(t, err)
	assert.NoError(t, kp.Verify(digest, sig))
}

func TestSecp256k1IsDetectedAsECAlias(t *testing.T) {
	kp, err := GenerateKeyPair(KeyTypeSecp256k1, 0)
	require.NoError(t, err)
	assert.Equal(t, KeyTypeSecp256k1, kp.Type())
	assert.Equal(t, "ec", kp.Type().String())

	digest := []byte("0123456789abcdef0123456789abcdef")
	sig, err := kp.Sign(digest)
	require.NoError(t, err)
	assert.NoError(t, kp.Verify(digest, sig))
}

func TestEd25519SignVerifyRoundTrip(t *testing.T) {
	kp, err := GenerateKeyPair(KeyTypeEd25519, 0)
	require.NoError(t, err)

	digest := []byte("any length digest works for ed25519")
	sig, err := kp.Sign(digest)
	require.NoError(t, err)
	assert.NoError(t, kp.Verify(digest, sig))
}

func TestValidateEd25519PointRejectsWrongLength(t *testing.T) {
	err := ValidateEd25519Point([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestValidateEd25519PointAcceptsRealPublicKey(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	assert.NoError(t, ValidateEd25519Point(pub))
}

func TestEncodedSignatureLength(t *testing.T) {
	assert.Equal(t, 512, EncodedSignatureLength("hex", 256))
	assert.Equal(t, 344, EncodedSignatureLength("base64", 256))
	assert.Equal(t, 256, EncodedSignatureLength("bin", 256))
}

func TestRawSignatureLength(t *testing.T) {
	rsaKP, err := GenerateKeyPair(KeyTypeRSA, 2048)
	require.NoError(t, err)
	assert.Equal(t, 256, rsaKP.RawSignatureLength())

	edKP, err := GenerateKeyPair(KeyTypeEd25519, 0)
	require.NoError(t, err)
	assert.Equal(t, ed25519.SignatureSize, edKP.RawSignatureLength())
}
