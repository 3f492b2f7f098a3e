package storage

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chris-arsenault/penguin-tales-sub002/internal/config"
)

func disabledService(t *testing.T) *Service {
	t.Helper()
	log := slog.New(slog.NewTextHandler(os.Stdout, nil))
	svc, err := NewService(&config.Config{}, log)
	require.NoError(t, err)
	return svc
}

func TestNewService_DisabledWithoutConfig(t *testing.T) {
	svc := disabledService(t)
	require.False(t, svc.Enabled())
}

func TestPut_FailsWhenDisabled(t *testing.T) {
	svc := disabledService(t)
	_, err := svc.Put(context.Background(), "img-1", strings.NewReader("data"), 4, UploadOptions{})
	require.Error(t, err)
}

func TestGet_FailsWhenDisabled(t *testing.T) {
	svc := disabledService(t)
	_, err := svc.Get(context.Background(), "img-1")
	require.Error(t, err)
}

func TestDelete_FailsWhenDisabled(t *testing.T) {
	svc := disabledService(t)
	err := svc.Delete(context.Background(), "img-1")
	require.Error(t, err)
}

func TestExists_FailsWhenDisabled(t *testing.T) {
	svc := disabledService(t)
	_, err := svc.Exists(context.Background(), "img-1")
	require.Error(t, err)
}

func TestSignedURL_FailsWhenDisabled(t *testing.T) {
	svc := disabledService(t)
	_, err := svc.SignedURL(context.Background(), "img-1", SignedURLOptions{})
	require.Error(t, err)
}
