package core

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeDescriptor(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), DatasetDescriptorFile)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadDatasetDescriptor(t *testing.T) {
	t.Run("ListNames", func(t *testing.T) {
		desc, err := LoadDatasetDescriptor(writeDescriptor(t, testDataYaml))
		require.NoError(t, err)
		assert.Equal(t, "train/images", desc.Train)
		assert.Equal(t, "valid/images", desc.Val)
		assert.Equal(t, "test/images", desc.Test)
		assert.Equal(t, ClassNames{"hello", "thanks"}, desc.Names)
	})

	t.Run("IndexedNames", func(t *testing.T) {
		desc, err := LoadDatasetDescriptor(writeDescriptor(t, "train: t\nval: v\nnames:\n  1: thanks\n  0: hello\n"))
		require.NoError(t, err)
		assert.Equal(t, ClassNames{"hello", "thanks"}, desc.Names)
	})

	t.Run("Missing", func(t *testing.T) {
		_, err := LoadDatasetDescriptor(filepath.Join(t.TempDir(), DatasetDescriptorFile))
		assert.ErrorIs(t, err, ErrMissingDatasetDescriptor)
	})

	t.Run("ClassCountMismatch", func(t *testing.T) {
		_, err := LoadDatasetDescriptor(writeDescriptor(t, "train: t\nval: v\nnc: 3\nnames: [a, b]\n"))
		assert.ErrorIs(t, err, ErrInvalidDatasetDescriptor)
	})

	t.Run("MissingSplit", func(t *testing.T) {
		_, err := LoadDatasetDescriptor(writeDescriptor(t, "train: t\nnames: [a]\n"))
		assert.ErrorIs(t, err, ErrInvalidDatasetDescriptor)
	})

	t.Run("Malformed", func(t *testing.T) {
		_, err := LoadDatasetDescriptor(writeDescriptor(t, "train: [unterminated\n"))
		assert.ErrorIs(t, err, ErrInvalidDatasetDescriptor)
	})

	t.Run("IndexOutOfRange", func(t *testing.T) {
		_, err := LoadDatasetDescriptor(writeDescriptor(t, "train: t\nval: v\nnames:\n  0: a\n  5: b\n"))
		assert.ErrorIs(t, err, ErrInvalidDatasetDescriptor)
	})
}
