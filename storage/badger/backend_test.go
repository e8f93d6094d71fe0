package badger

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/lostfound/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenBackend_InMemory(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	require.NotNil(t, backend)
	defer backend.Close()

	assert.False(t, backend.IsClosed())
}

func TestOpenBackend_FileSystem(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "db")
	backend, err := OpenBackend(dir, false)
	require.NoError(t, err)
	require.NotNil(t, backend)
	defer backend.Close()

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestOpenBackend_NotADirectory(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "file.txt")
	require.NoError(t, os.WriteFile(tmpFile, []byte("test"), 0644))

	backend, err := OpenBackend(tmpFile, false)
	assert.Error(t, err)
	assert.Nil(t, backend)
}

func TestBackendClose(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)

	require.NoError(t, backend.Close())
	assert.True(t, backend.IsClosed())

	err = backend.WithTx(func(tx *badger.Txn) error { return nil }, false)
	assert.ErrorIs(t, err, storage.ErrStorageClosed)
}

func TestWithUpdate(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	defer backend.Close()

	t.Run("commits on success", func(t *testing.T) {
		err := backend.WithUpdate(func(tx *badger.Txn) error {
			return tx.Set([]byte("k"), []byte("v"))
		})
		require.NoError(t, err)

		err = backend.WithTx(func(tx *badger.Txn) error {
			found, err := getValue(tx, []byte("k"), func(val []byte) error {
				assert.Equal(t, "v", string(val))
				return nil
			})
			assert.True(t, found)
			return err
		}, false)
		require.NoError(t, err)
	})

	t.Run("discards on error", func(t *testing.T) {
		boom := errors.New("boom")
		err := backend.WithUpdate(func(tx *badger.Txn) error {
			if err := tx.Set([]byte("discarded"), []byte("v")); err != nil {
				return err
			}
			return boom
		})
		require.ErrorIs(t, err, boom)

		err = backend.WithTx(func(tx *badger.Txn) error {
			found, err := getValue(tx, []byte("discarded"), func([]byte) error { return nil })
			assert.False(t, found)
			return err
		}, false)
		require.NoError(t, err)
	})
}

func TestScanPrefix(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	defer backend.Close()

	err = backend.WithUpdate(func(tx *badger.Txn) error {
		for _, k := range []string{"p:a", "p:b", "p:c", "q:a"} {
			if err := tx.Set([]byte(k), []byte(k)); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	collect := func(reverse bool) []string {
		var got []string
		err := backend.WithTx(func(tx *badger.Txn) error {
			return scanPrefix(tx, []byte("p:"), reverse, func(_, val []byte) error {
				got = append(got, string(val))
				return nil
			})
		}, false)
		require.NoError(t, err)
		return got
	}

	assert.Equal(t, []string{"p:a", "p:b", "p:c"}, collect(false))
	assert.Equal(t, []string{"p:c", "p:b", "p:a"}, collect(true))
}
