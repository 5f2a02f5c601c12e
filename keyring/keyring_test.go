package keyring

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gokeyring "github.com/zalando/go-keyring"

	"github.com/yllada/wg-manager/common"
)

const testKey = "yAnz5TF+lXXJte14tji3zlMNq+hd2rYUIgJBgB3fBmk="

func TestStore_SystemKeyring(t *testing.T) {
	gokeyring.MockInit()

	s, err := New("wg-manager-test", t.TempDir())
	require.NoError(t, err)
	assert.False(t, s.Local())

	_, err = s.Get("wg0")
	assert.ErrorIs(t, err, common.ErrCredentialsNotFound)

	require.NoError(t, s.Store("wg0", testKey))
	got, err := s.Get("wg0")
	require.NoError(t, err)
	assert.Equal(t, testKey, got)
	assert.True(t, s.Exists("wg0"))

	require.NoError(t, s.Delete("wg0"))
	assert.False(t, s.Exists("wg0"))
	assert.ErrorIs(t, s.Delete("wg0"), common.ErrCredentialsNotFound)
}

func TestStore_LocalFileIsEncrypted(t *testing.T) {
	dir := t.TempDir()
	s, err := NewLocal("wg-manager-test", dir)
	require.NoError(t, err)
	assert.True(t, s.Local())

	require.NoError(t, s.Store("office", testKey))

	data, err := os.ReadFile(filepath.Join(dir, common.CredentialsFileName))
	require.NoError(t, err)
	assert.False(t, strings.Contains(string(data), testKey), "secret must not be stored in clear text")

	info, err := os.Stat(filepath.Join(dir, common.CredentialsFileName))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	// A fresh store reads back what the first one wrote.
	reopened, err := NewLocal("wg-manager-test", dir)
	require.NoError(t, err)
	got, err := reopened.Get("office")
	require.NoError(t, err)
	assert.Equal(t, testKey, got)
}

func TestStore_LocalDeleteAndClear(t *testing.T) {
	s, err := NewLocal("wg-manager-test", t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.Store("a", "1"))
	require.NoError(t, s.Store("b", "2"))

	require.NoError(t, s.Delete("a"))
	assert.False(t, s.Exists("a"))
	assert.ErrorIs(t, s.Delete("a"), common.ErrCredentialsNotFound)

	require.NoError(t, s.Clear())
	assert.False(t, s.Exists("b"))
}

func TestStore_RejectsEmptyValues(t *testing.T) {
	s, err := NewLocal("wg-manager-test", t.TempDir())
	require.NoError(t, err)

	assert.Error(t, s.Store("", "x"))
	assert.Error(t, s.Store("wg0", ""))
}

func TestStore_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, common.CredentialsFileName), []byte("not base64!"), 0600))

	_, err := NewLocal("wg-manager-test", dir)
	assert.ErrorIs(t, err, common.ErrDecryption)
}

func TestStore_FallbackKeepsUnreadableFile(t *testing.T) {
	gokeyring.MockInit()
	dir := t.TempDir()
	s, err := New("wg-manager-test", dir)
	require.NoError(t, err)
	require.False(t, s.Local())

	path := filepath.Join(dir, common.CredentialsFileName)
	garbage := []byte("not base64!")
	require.NoError(t, os.WriteFile(path, garbage, 0600))

	gokeyring.MockInitWithError(errors.New("keyring locked"))
	t.Cleanup(gokeyring.MockInit)

	err = s.Store("wg1", testKey)
	assert.ErrorIs(t, err, common.ErrDecryption)
	assert.False(t, s.Local())

	err = s.Store("wg1", testKey)
	assert.ErrorIs(t, err, common.ErrDecryption)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, garbage, data)
}

func TestDeriveKey_Deterministic(t *testing.T) {
	k1, err := deriveKey("svc")
	require.NoError(t, err)
	k2, err := deriveKey("svc")
	require.NoError(t, err)
	k3, err := deriveKey("other")
	require.NoError(t, err)

	assert.Len(t, k1, 32)
	assert.Equal(t, k1, k2)
	assert.NotEqual(t, k1, k3)
}
