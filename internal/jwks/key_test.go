package jwks

import (
	"crypto/rand"
	"crypto/rsa"
	"testing"

	"github.com/MGallo-Code/authgate/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey_RSAPublicKey(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	jwk := testutil.PublicJWK(&priv.PublicKey, "k1")

	k := Key{Kty: jwk.Kty, Alg: jwk.Alg, Kid: jwk.Kid, N: jwk.N, E: jwk.E}
	pub, err := k.RSAPublicKey()
	require.NoError(t, err)
	assert.Equal(t, 0, pub.N.Cmp(priv.PublicKey.N), "modulus must round-trip unchanged")
	assert.Equal(t, priv.PublicKey.E, pub.E)
}

func TestKey_RSAPublicKey_Rejects(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	good := testutil.PublicJWK(&priv.PublicKey, "k1")

	tests := []struct {
		name string
		key  Key
	}{
		{"ec key", Key{Kty: "EC", Kid: "k1", N: good.N, E: good.E}},
		{"hs256 alg", Key{Kty: "RSA", Alg: "HS256", Kid: "k1", N: good.N, E: good.E}},
		{"padded base64", Key{Kty: "RSA", Kid: "k1", N: good.N + "==", E: good.E}},
		{"empty modulus", Key{Kty: "RSA", Kid: "k1", N: "", E: good.E}},
		{"exponent one", Key{Kty: "RSA", Kid: "k1", N: good.N, E: "AQ"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.key.RSAPublicKey()
			assert.Error(t, err)
		})
	}
}

func TestSet_Lookup(t *testing.T) {
	s := &Set{Keys: []Key{{Kid: "a"}, {Kid: "b"}}}

	k, ok := s.Lookup("b")
	require.True(t, ok)
	assert.Equal(t, "b", k.Kid)

	_, ok = s.Lookup("c")
	assert.False(t, ok)
}
