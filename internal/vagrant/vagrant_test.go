package vagrant

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RhinoSecurityLabs/dsnap/pkg/dsnaperr"
)

func TestInitWritesVagrantfile(t *testing.T) {
	dir := t.TempDir()
	path, err := Init(dir, false)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "Vagrantfile"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Vagrant.configure")
}

func TestInitFailsWhenExistsWithoutForce(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "Vagrantfile")
	require.NoError(t, os.WriteFile(existing, []byte("custom"), 0o644))

	_, err := Init(dir, false)
	require.Error(t, err)
	assert.Equal(t, dsnaperr.KindOutputExists, dsnaperr.KindOf(err))

	data, err := os.ReadFile(existing)
	require.NoError(t, err)
	assert.Equal(t, "custom", string(data))
}

func TestInitForceOverwrites(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "Vagrantfile")
	require.NoError(t, os.WriteFile(existing, []byte("custom"), 0o644))

	_, err := Init(dir, true)
	require.NoError(t, err)

	data, err := os.ReadFile(existing)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Vagrant.configure")
}
