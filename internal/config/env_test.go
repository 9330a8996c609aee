package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("MIRROR_BASE_URL", "http://mirror.local/repos/org/ledger/contents")

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", c.Port)
	assert.Equal(t, 210000, c.VaultKDFIterations)
	assert.Equal(t, "main", c.MirrorBranch)
	assert.Equal(t, 15*time.Second, c.MirrorTimeout)
	assert.Equal(t, "50000", c.MultisigThreshold)
	assert.Equal(t, 2, c.MultisigRequiredSigners)
	assert.Equal(t, 5, c.SettlementMaxAttempts)
	assert.Empty(t, c.DatabaseURL)
}

func TestLoadParsesLists(t *testing.T) {
	t.Setenv("MIRROR_BASE_URL", "http://mirror.local")
	t.Setenv("MULTISIG_SIGNERS", "alice,bob,carol")
	t.Setenv("AUTHORITY_CAPABILITIES", "central-bank:s3cret,bridge:t0ken")
	t.Setenv("AUTHORITY_ISSUERS", "central-bank")
	t.Setenv("MULTISIG_SIGNER_CAPABILITIES", "alice:a-token,bob:b-token")

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob", "carol"}, c.MultisigSigners)
	assert.Equal(t, map[string]string{"alice": "a-token", "bob": "b-token"}, c.MultisigSignerCapabilities)
	assert.Equal(t, map[string]string{"central-bank": "s3cret", "bridge": "t0ken"}, c.AuthorityCapabilities)
	assert.Equal(t, []string{"central-bank"}, c.AuthorityIssuers)
}

func TestLoadValidation(t *testing.T) {
	testCases := map[string]map[string]string{
		"missing mirror":        {"MIRROR_BASE_URL": ""},
		"weak kdf":              {"VAULT_KDF_ITERATIONS": "1000"},
		"too few signers":       {"MULTISIG_SIGNERS": "alice", "MULTISIG_REQUIRED_SIGNERS": "2"},
		"issuer without token":  {"AUTHORITY_ISSUERS": "mint"},
		"wrong vault ext":       {"VAULT_FILE_PATH": "identity.json"},
		"zero attempts":         {"SETTLEMENT_MAX_ATTEMPTS": "0"},
		"unlisted signer token": {"MULTISIG_SIGNERS": "alice,bob", "MULTISIG_SIGNER_CAPABILITIES": "mallory:m"},
	}

	for name, env := range testCases {
		t.Run(name, func(t *testing.T) {
			t.Setenv("MIRROR_BASE_URL", "http://mirror.local")
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
		})
	}
}

func TestPINStorage(t *testing.T) {
	ClearPIN()
	_, err := GetPINBytes()
	require.Error(t, err)

	SetPIN([]byte("123456"))
	pin, err := GetPINBytes()
	require.NoError(t, err)
	assert.Equal(t, []byte("123456"), pin)

	clear(pin)
	again, err := GetPINBytes()
	require.NoError(t, err)
	assert.Equal(t, []byte("123456"), again, "callers wiping their copy must not affect the stored PIN")

	ClearPIN()
	_, err = GetPINBytes()
	require.Error(t, err)
}
