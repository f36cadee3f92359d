package secretcipher

import (
	"encoding/base64"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestCipher(t *testing.T) *Cipher {
	t.Helper()
	c, err := New("test-secret")
	require.NoError(t, err)
	return c
}

func TestNewRejectsEmptySecret(t *testing.T) {
	_, err := New("")
	require.ErrorIs(t, err, ErrEmptySecret)
}

func TestRoundTrip(t *testing.T) {
	c := newTestCipher(t)

	inputs := []string{
		"",
		"user:pass",
		"netflix@example.com / hunter2",
		"ünïcödé 🔐 credentials",
		strings.Repeat("x", 4096),
	}

	for _, in := range inputs {
		blob, err := c.Encrypt(in)
		require.NoError(t, err)

		out, err := c.Decrypt(blob)
		require.NoError(t, err)
		require.Equal(t, in, out)
	}
}

func TestEncryptIsNonDeterministic(t *testing.T) {
	c := newTestCipher(t)

	a, err := c.Encrypt("user:pass")
	require.NoError(t, err)
	b, err := c.Encrypt("user:pass")
	require.NoError(t, err)

	require.NotEqual(t, a, b)
}

func TestBlobLayout(t *testing.T) {
	c := newTestCipher(t)

	blob, err := c.Encrypt("abc")
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(blob)
	require.NoError(t, err)
	require.Len(t, raw, ivSize+tagSize+3)
}

func TestTamperDetection(t *testing.T) {
	c := newTestCipher(t)

	blob, err := c.Encrypt("user:pass")
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(blob)
	require.NoError(t, err)

	for i := range raw {
		tampered := append([]byte(nil), raw...)
		tampered[i] ^= 0x01

		out, err := c.Decrypt(base64.StdEncoding.EncodeToString(tampered))
		require.Error(t, err, "byte %d", i)
		require.ErrorIs(t, err, ErrDecryption)
		require.Empty(t, out)
	}
}

func TestTamperedEncodingIsRejected(t *testing.T) {
	c := newTestCipher(t)

	blob, err := c.Encrypt("user:pass")
	require.NoError(t, err)

	for i := 0; i < len(blob); i++ {
		if blob[i] == '=' {
			continue
		}
		b := []byte(blob)
		if b[i] == 'A' {
			b[i] = 'B'
		} else {
			b[i] = 'A'
		}

		_, err := c.Decrypt(string(b))
		require.ErrorIs(t, err, ErrDecryption, "char %d", i)
	}
}

func TestDecryptMalformed(t *testing.T) {
	c := newTestCipher(t)

	cases := []string{
		"",
		"not base64 !!",
		base64.StdEncoding.EncodeToString([]byte("short")),
		base64.StdEncoding.EncodeToString(make([]byte, ivSize+tagSize-1)),
	}

	for _, blob := range cases {
		_, err := c.Decrypt(blob)
		require.Error(t, err)

		var de *DecryptionError
		require.True(t, errors.As(err, &de))
		require.ErrorIs(t, err, ErrDecryption)
	}
}

func TestDecryptWithDifferentSecretFails(t *testing.T) {
	a := newTestCipher(t)
	b, err := New("another-secret")
	require.NoError(t, err)

	blob, err := a.Encrypt("user:pass")
	require.NoError(t, err)

	_, err = b.Decrypt(blob)
	require.ErrorIs(t, err, ErrDecryption)
}

func TestConcurrentUse(t *testing.T) {
	c := newTestCipher(t)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			blob, err := c.Encrypt("user:pass")
			require.NoError(t, err)
			out, err := c.Decrypt(blob)
			require.NoError(t, err)
			require.Equal(t, "user:pass", out)
		}()
	}
	wg.Wait()
}

func TestHash(t *testing.T) {
	require.Equal(t,
		"e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		Hash(""),
	)
	require.Equal(t, Hash("user:pass"), Hash("user:pass"))
	require.NotEqual(t, Hash("user:pass"), Hash("user:pasS"))
}

func TestSecureRandom(t *testing.T) {
	a, err := SecureRandom(16)
	require.NoError(t, err)
	require.Len(t, a, 32)

	b, err := SecureRandom(16)
	require.NoError(t, err)
	require.NotEqual(t, a, b)

	_, err = SecureRandom(0)
	require.Error(t, err)
}
