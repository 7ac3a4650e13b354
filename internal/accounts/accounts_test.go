package accounts

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openRegistry(t *testing.T) (*Registry, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "user_accounts.json")
	r, err := Open(path)
	require.NoError(t, err)
	return r, path
}

func TestOpenMissingFileIsEmpty(t *testing.T) {
	r, _ := openRegistry(t)
	assert.False(t, r.Exists("alice"))
	assert.Empty(t, r.Usernames())
}

func TestClaimThenBindThenVerify(t *testing.T) {
	r, _ := openRegistry(t)
	require.NoError(t, r.Claim("alice"))
	assert.True(t, r.Exists("alice"))
	assert.True(t, r.IsUnbound("alice"))

	require.NoError(t, r.BindPassword("alice", "s3cret"))
	assert.False(t, r.IsUnbound("alice"))
	assert.True(t, r.VerifyPassword("alice", "s3cret"))
	assert.False(t, r.VerifyPassword("alice", "wrong"))
}

func TestVerifyUnknownUserFails(t *testing.T) {
	r, _ := openRegistry(t)
	assert.False(t, r.VerifyPassword("ghost", "anything"))
}

func TestPersistsAcrossReopen(t *testing.T) {
	r, path := openRegistry(t)
	require.NoError(t, r.Claim("alice"))
	require.NoError(t, r.BindPassword("alice", "s3cret"))

	r2, err := Open(path)
	require.NoError(t, err)
	assert.True(t, r2.VerifyPassword("alice", "s3cret"))
}

func TestDeleteRemovesAccount(t *testing.T) {
	r, _ := openRegistry(t)
	require.NoError(t, r.Claim("alice"))
	require.NoError(t, r.Delete("alice"))
	assert.False(t, r.Exists("alice"))
}
