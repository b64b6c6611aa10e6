package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/wiredraw-server/internal/auth"
	"github.com/vovakirdan/wiredraw-server/internal/config"
)

func TestNewRejectsInvalidConfig(t *testing.T) {
	logger := zerolog.Nop()
	cfg := config.Default()
	cfg.AdmissionMode = config.AdmissionToken

	_, err := New(&cfg, &logger)
	assert.Error(t, err)
}

func TestAppStartsAndStops(t *testing.T) {
	logger := zerolog.Nop()
	cfg := config.Default()
	cfg.Addr = "127.0.0.1:0"
	cfg.DatabasePath = filepath.Join(t.TempDir(), "rooms.db")
	cfg.ReferencesDir = t.TempDir()
	cfg.ShutdownTimeout = time.Second

	a, err := New(&cfg, &logger)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("app did not stop")
	}
}

func TestAdmissionConfigCarriesJWTSettings(t *testing.T) {
	cfg := config.Default()
	cfg.AdmissionMode = config.AdmissionToken
	cfg.JWTSecret = "s3cret"

	ac := AdmissionConfig(&cfg)
	assert.Equal(t, auth.ModeToken, ac.Mode)
	assert.Equal(t, []byte("s3cret"), ac.JWT.Secret)
	assert.Equal(t, cfg.TokenTTL, ac.JWT.TTL)
	assert.Equal(t, cfg.PublicURL, ac.PublicURL)
}
