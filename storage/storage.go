// Package storage uploads user files (company logos) to Firebase Storage.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	gcs "cloud.google.com/go/storage"
	firebase "firebase.google.com/go/v4"
	"github.com/google/uuid"
	"google.golang.org/api/option"

	"invoicing-backend/config"
)

var (
	ErrNotConfigured   = errors.New("file storage not configured")
	ErrUnsupportedType = errors.New("unsupported file type")
)

// logoTypes maps accepted content types to file extensions.
var logoTypes = map[string]string{
	"image/png":     ".png",
	"image/jpeg":    ".jpg",
	"image/webp":    ".webp",
	"image/svg+xml": ".svg",
	"image/gif":     ".gif",
}

// Uploader stores a logo and returns its public download URL.
type Uploader interface {
	UploadLogo(ctx context.Context, uid, contentType string, r io.Reader) (string, error)
}

// LogoObjectName is logos/<uid>/<unix>.<ext>; a new name per upload defeats CDN caching
// of the previous logo.
func LogoObjectName(uid, contentType string, now time.Time) (string, error) {
	ext, ok := logoTypes[strings.ToLower(strings.TrimSpace(contentType))]
	if !ok {
		return "", ErrUnsupportedType
	}
	return path.Join("logos", uid, fmt.Sprintf("%d%s", now.Unix(), ext)), nil
}

// DownloadURL is the token URL Firebase clients use for public reads.
func DownloadURL(bucket, object, token string) string {
	return fmt.Sprintf("https://firebasestorage.googleapis.com/v0/b/%s/o/%s?alt=media&token=%s",
		bucket, url.PathEscape(object), token)
}

// FirebaseUploader writes to the default bucket of the Firebase app.
type FirebaseUploader struct {
	bucketName string
	bucket     *gcs.BucketHandle
}

// NewFirebaseUploader initialises the Firebase app with the credentials file, or with
// application default credentials when the file is empty.
func NewFirebaseUploader(ctx context.Context, cfg config.FirebaseConfig) (*FirebaseUploader, error) {
	if cfg.StorageBucket == "" {
		return nil, ErrNotConfigured
	}
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{StorageBucket: cfg.StorageBucket}, opts...)
	if err != nil {
		return nil, fmt.Errorf("firebase init: %w", err)
	}
	client, err := app.Storage(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase storage client: %w", err)
	}
	bucket, err := client.DefaultBucket()
	if err != nil {
		return nil, fmt.Errorf("firebase default bucket: %w", err)
	}
	return &FirebaseUploader{bucketName: cfg.StorageBucket, bucket: bucket}, nil
}

func (u *FirebaseUploader) UploadLogo(ctx context.Context, uid, contentType string, r io.Reader) (string, error) {
	name, err := LogoObjectName(uid, contentType, time.Now())
	if err != nil {
		return "", err
	}
	token := uuid.NewString()

	w := u.bucket.Object(name).NewWriter(ctx)
	w.ContentType = contentType
	w.CacheControl = "public, max-age=31536000"
	w.Metadata = map[string]string{"firebaseStorageDownloadTokens": token}
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("upload %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("upload %s: %w", name, err)
	}
	return DownloadURL(u.bucketName, name, token), nil
}

// DisabledUploader rejects uploads when no bucket is configured.
type DisabledUploader struct{}

func (DisabledUploader) UploadLogo(context.Context, string, string, io.Reader) (string, error) {
	return "", ErrNotConfigured
}
