package storage

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoicing-backend/config"
)

func TestLogoObjectName(t *testing.T) {
	now := time.Unix(1700000000, 0)
	name, err := LogoObjectName("u-1", "image/PNG", now)
	require.NoError(t, err)
	assert.Equal(t, "logos/u-1/1700000000.png", name)

	_, err = LogoObjectName("u-1", "application/pdf", now)
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestDownloadURL(t *testing.T) {
	got := DownloadURL("acme.appspot.com", "logos/u-1/1.png", "tok")
	assert.Equal(t, "https://firebasestorage.googleapis.com/v0/b/acme.appspot.com/o/logos%2Fu-1%2F1.png?alt=media&token=tok", got)
}

func TestNewFirebaseUploader_NoBucket(t *testing.T) {
	_, err := NewFirebaseUploader(context.Background(), config.FirebaseConfig{})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestDisabledUploader(t *testing.T) {
	_, err := DisabledUploader{}.UploadLogo(context.Background(), "u", "image/png", strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrNotConfigured)
}
