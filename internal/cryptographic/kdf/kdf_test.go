package kdf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHKDFDeterministic(t *testing.T) {
	a := make([]byte, 64)
	b := make([]byte, 64)
	_, err := HKDF([]byte("secret"), []byte("salt"), []byte("info"), a)
	require.NoError(t, err)
	_, err = HKDF([]byte("secret"), []byte("salt"), []byte("info"), b)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestBlake2bConcatenation(t *testing.T) {
	assert.Equal(t, Blake2b256([]byte("ab"), []byte("c")), Blake2b256([]byte("abc")))
	assert.NotEqual(t, Blake2b512([]byte("a")), Blake2b512([]byte("b")))
}
