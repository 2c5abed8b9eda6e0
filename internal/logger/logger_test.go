package logger

import (
	"os"
	"path/filepath"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit(t *testing.T) {
	dir := t.TempDir()
	defer log.SetOutput(os.Stderr)
	require.NoError(
		t, Init(
			Conf{
				Level:    "debug",
				Internal: Target{Dir: dir},
				Access:   Target{Dir: dir},
			},
		),
	)
	assert.Equal(t, log.DebugLevel, log.GetLevel())

	log.Debug("manifest logged")
	_, err := AccessLog().Write([]byte("GET /status\n"))
	require.NoError(t, err)

	internal, err := os.ReadFile(filepath.Join(dir, internalLogFile))
	require.NoError(t, err)
	assert.Contains(t, string(internal), "manifest logged")
	access, err := os.ReadFile(filepath.Join(dir, accessLogFile))
	require.NoError(t, err)
	assert.Equal(t, "GET /status\n", string(access))
}

func TestInitRejectsUnknownLevel(t *testing.T) {
	assert.Error(t, Init(Conf{Level: "loud"}))
}
