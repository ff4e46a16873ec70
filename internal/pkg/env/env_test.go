package env

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetupEnvFileMissingIsNotFatal(t *testing.T) {
	cwd, err := os.Getwd()
	assert.NoError(t, err)
	defer func() { _ = os.Chdir(cwd) }()
	assert.NoError(t, os.Chdir(t.TempDir()))

	assert.NotPanics(t, SetupEnvFile)
}

func TestGetEnvPrecedence(t *testing.T) {
	Env = map[string]string{"FROM_FILE": "file-value"}
	defer func() { Env = nil }()
	t.Setenv("FROM_PROCESS", "process-value")

	assert.Equal(t, "file-value", GetEnv("FROM_FILE", "default"))
	assert.Equal(t, "process-value", GetEnv("FROM_PROCESS", "default"))
	assert.Equal(t, "default", GetEnv("UNSET_KEY", "default"))
}

func TestGetEnvInt(t *testing.T) {
	Env = map[string]string{"PORT": "8080", "BAD": "abc"}
	defer func() { Env = nil }()

	assert.Equal(t, 8080, GetEnvInt("PORT", 1))
	assert.Equal(t, 1, GetEnvInt("BAD", 1))
	assert.Equal(t, 1, GetEnvInt("MISSING", 1))
}
