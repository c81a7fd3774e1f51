package project

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/moderniselife/GFM/internal/common/errors"
)

func TestResolveDir(t *testing.T) {
	dir := t.TempDir()

	got, err := ResolveDir(dir, "")
	require.NoError(t, err)
	assert.Equal(t, dir, got)

	got, err = ResolveDir("", dir)
	require.NoError(t, err)
	assert.Equal(t, dir, got)

	_, err = ResolveDir("", "")
	assert.True(t, apperrors.IsPrecondition(err))

	_, err = ResolveDir(filepath.Join(dir, "missing"), "")
	assert.True(t, apperrors.IsPrecondition(err))

	file := filepath.Join(dir, "firebase.json")
	require.NoError(t, os.WriteFile(file, []byte("{}"), 0o600))
	_, err = ResolveDir(file, "")
	assert.Error(t, err)
	assert.True(t, Exists(file))
}

func TestValidateProjectID(t *testing.T) {
	for _, ok := range []string{"demo", "my-app-123", "demo-project"} {
		assert.NoError(t, ValidateProjectID(ok), ok)
	}
	for _, bad := range []string{"", "Demo", "demo; rm -rf /", "a b", "$(id)", "-flag"} {
		assert.Error(t, ValidateProjectID(bad), bad)
	}
}

func TestValidateName(t *testing.T) {
	for _, ok := range []string{"site-a", "functions", "dev:web", "my_codebase"} {
		assert.NoError(t, ValidateName("target", ok), ok)
	}
	for _, bad := range []string{"", "a,b", "x && y", "`whoami`", "--force"} {
		assert.Error(t, ValidateName("target", bad), bad)
	}
	assert.NoError(t, ValidateSecretKey("production-env"))
	assert.Error(t, ValidateSecretKey("bad/key"))
}
