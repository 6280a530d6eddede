package phi_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brentmartinmiller/healthcare-etl-pipeline/pkg/phi"
)

func newEncryptor(t *testing.T) *phi.Encryptor {
	t.Helper()
	key, err := phi.GenerateKey()
	require.NoError(t, err)
	enc, err := phi.NewEncryptor(key)
	require.NoError(t, err)
	return enc
}

func TestEncryptor_RoundTrip(t *testing.T) {
	enc := newEncryptor(t)

	ciphertext, err := enc.Encrypt("Jane Doe")
	require.NoError(t, err)
	assert.NotEqual(t, "Jane Doe", ciphertext)

	plaintext, err := enc.Decrypt(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", plaintext)
}

func TestEncryptor_EmptyStringIdentity(t *testing.T) {
	enc := newEncryptor(t)

	ciphertext, err := enc.Encrypt("")
	require.NoError(t, err)
	assert.Equal(t, "", ciphertext)

	plaintext, err := enc.Decrypt("")
	require.NoError(t, err)
	assert.Equal(t, "", plaintext)
}

func TestEncryptor_CiphertextNotReusable(t *testing.T) {
	// Random nonces mean identical plaintexts never share ciphertext.
	enc := newEncryptor(t)

	first, err := enc.Encrypt("123-45-6789")
	require.NoError(t, err)
	second, err := enc.Encrypt("123-45-6789")
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestEncryptor_KeyValidation(t *testing.T) {
	t.Run("Garbage Encoding", func(t *testing.T) {
		_, err := phi.NewEncryptor("not base64 at all!!")
		assert.Error(t, err)
	})

	t.Run("Wrong Length", func(t *testing.T) {
		_, err := phi.NewEncryptor("c2hvcnQ=") // "short"
		assert.Error(t, err)
	})
}

func TestEncryptor_WrongKeyFailsDecrypt(t *testing.T) {
	first := newEncryptor(t)
	second := newEncryptor(t)

	ciphertext, err := first.Encrypt("confidential")
	require.NoError(t, err)

	_, err = second.Decrypt(ciphertext)
	assert.Error(t, err)
}
