package vault

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func testMasterSecret() []byte {
	return []byte("01234567890123456789012345678901")
}

func TestVault_SealOpenRoundTrip(t *testing.T) {
	v, err := New(testMasterSecret(), "vms:v1:credential")
	require.NoError(t, err)

	sealed, err := v.Seal("rtsp-password-123")
	require.NoError(t, err)
	require.True(t, IsSealed(sealed))

	plaintext, err := v.Open(sealed)
	require.NoError(t, err)
	require.Equal(t, "rtsp-password-123", plaintext)
}

func TestVault_DistinctNoncesPerSeal(t *testing.T) {
	v, err := New(testMasterSecret(), "vms:v1:credential")
	require.NoError(t, err)

	a, err := v.Seal("same-secret")
	require.NoError(t, err)
	b, err := v.Seal("same-secret")
	require.NoError(t, err)

	require.NotEqual(t, a, b)
}

func TestVault_OpenRejectsUnrecognizedInput(t *testing.T) {
	v, err := New(testMasterSecret(), "vms:v1:credential")
	require.NoError(t, err)

	_, err = v.Open("not-a-vault-value")
	require.ErrorIs(t, err, ErrVaultNotFound)
}

func TestVault_OpenDetectsTampering(t *testing.T) {
	v, err := New(testMasterSecret(), "vms:v1:credential")
	require.NoError(t, err)

	sealed, err := v.Seal("rtsp-password-123")
	require.NoError(t, err)

	tampered := sealed[:len(sealed)-4] + "AAAA"
	_, err = v.Open(tampered)
	require.ErrorIs(t, err, ErrVaultTampered)
}

func TestVault_DifferentKeyInfoIsolatesKeys(t *testing.T) {
	secret := testMasterSecret()
	v1, err := New(secret, "purpose-a")
	require.NoError(t, err)
	v2, err := New(secret, "purpose-b")
	require.NoError(t, err)

	sealed, err := v1.Seal("secret-value")
	require.NoError(t, err)

	_, err = v2.Open(sealed)
	require.ErrorIs(t, err, ErrVaultTampered)
}

func TestVault_NewRejectsEmptyMasterSecret(t *testing.T) {
	_, err := New(nil, "purpose")
	require.Error(t, err)
}

func TestVault_SealOutputHasVersionPrefix(t *testing.T) {
	v, err := New(testMasterSecret(), "purpose")
	require.NoError(t, err)

	sealed, err := v.Seal("x")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(sealed, "vms:v1:"))
}
