package gcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/yungbote/forfeit-backend/internal/platform/envutil"
	"github.com/yungbote/forfeit-backend/internal/platform/logger"
)

type BucketCategory string

const (
	// BucketCategoryKompromat holds the shame assets users pre-upload.
	BucketCategoryKompromat BucketCategory = "kompromat"
	// BucketCategoryProof holds uploaded proof-of-work files.
	BucketCategoryProof BucketCategory = "proof"
)

var ErrObjectNotFound = errors.New("object not found")

type Object struct {
	Key         string
	ContentType string
	Data        []byte
}

// BucketService is read-only: uploads happen in the client-facing product.
type BucketService interface {
	Download(ctx context.Context, category BucketCategory, key string) (*Object, error)
	Close() error
}

type BucketConfig struct {
	Storage         StorageConfig
	KompromatBucket string
	ProofBucket     string
	// MaxObjectBytes caps a download so an oversized object cannot be attached to an email.
	MaxObjectBytes int64
	Timeout        time.Duration
}

func BucketConfigFromEnv() (BucketConfig, error) {
	sc, err := StorageConfigFromEnv()
	if err != nil {
		return BucketConfig{}, fmt.Errorf("resolve object storage config: %w", err)
	}
	return BucketConfig{
		Storage:         sc,
		KompromatBucket: envutil.String("KOMPROMAT_GCS_BUCKET_NAME", ""),
		ProofBucket:     envutil.String("PROOF_GCS_BUCKET_NAME", ""),
		MaxObjectBytes:  int64(envutil.Int("OBJECT_MAX_BYTES", 20<<20)),
		Timeout:         envutil.Duration("OBJECT_DOWNLOAD_TIMEOUT_SECONDS", 60*time.Second),
	}, nil
}

type bucketService struct {
	log     *logger.Logger
	client  *storage.Client
	buckets map[BucketCategory]string
	max     int64
	timeout time.Duration
}

func NewBucketService(log *logger.Logger) (BucketService, error) {
	cfg, err := BucketConfigFromEnv()
	if err != nil {
		return nil, err
	}
	return NewBucketServiceWithConfig(log, cfg)
}

func NewBucketServiceWithConfig(log *logger.Logger, cfg BucketConfig) (BucketService, error) {
	if err := cfg.Storage.Validate(); err != nil {
		return nil, fmt.Errorf("validate object storage config: %w", err)
	}
	if cfg.KompromatBucket == "" {
		return nil, fmt.Errorf("missing env var KOMPROMAT_GCS_BUCKET_NAME")
	}
	if cfg.ProofBucket == "" {
		return nil, fmt.Errorf("missing env var PROOF_GCS_BUCKET_NAME")
	}
	if cfg.MaxObjectBytes <= 0 {
		cfg.MaxObjectBytes = 20 << 20
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	client, err := newStorageClient(context.Background(), cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	serviceLog := log.With("service", "BucketService")
	serviceLog.Info("Object storage initialized",
		"mode", cfg.Storage.Mode,
		"inferred", cfg.Storage.Inferred,
		"kompromat_bucket", cfg.KompromatBucket,
		"proof_bucket", cfg.ProofBucket,
	)
	return &bucketService{
		log:    serviceLog,
		client: client,
		buckets: map[BucketCategory]string{
			BucketCategoryKompromat: cfg.KompromatBucket,
			BucketCategoryProof:     cfg.ProofBucket,
		},
		max:     cfg.MaxObjectBytes,
		timeout: cfg.Timeout,
	}, nil
}

func newStorageClient(ctx context.Context, sc StorageConfig) (*storage.Client, error) {
	if sc.IsEmulator() {
		_ = os.Setenv("STORAGE_EMULATOR_HOST", strings.TrimRight(sc.EmulatorHost, "/"))
		return storage.NewClient(ctx, option.WithoutAuthentication())
	}
	opts := append(ClientOptionsFromEnv(), option.WithScopes(storage.ScopeReadOnly))
	return storage.NewClient(ctx, opts...)
}

func (bs *bucketService) Download(ctx context.Context, category BucketCategory, key string) (*Object, error) {
	bucket, ok := bs.buckets[category]
	if !ok {
		return nil, fmt.Errorf("unknown bucket category: %s", category)
	}
	key = strings.TrimLeft(strings.TrimSpace(key), "/")
	if key == "" {
		return nil, fmt.Errorf("object key required")
	}
	ctx, cancel := context.WithTimeout(ctx, bs.timeout)
	defer cancel()

	r, err := bs.client.Bucket(bucket).Object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, fmt.Errorf("%s/%s: %w", bucket, key, ErrObjectNotFound)
		}
		return nil, fmt.Errorf("open gcs object %s/%s: %w", bucket, key, err)
	}
	defer r.Close()

	data, err := readCapped(r, bs.max)
	if err != nil {
		return nil, fmt.Errorf("read gcs object %s/%s: %w", bucket, key, err)
	}
	ct := strings.TrimSpace(r.Attrs.ContentType)
	if ct == "" || ct == "application/octet-stream" {
		if guess := ContentTypeForKey(key); guess != "" {
			ct = guess
		}
	}
	return &Object{Key: key, ContentType: ct, Data: data}, nil
}

func (bs *bucketService) Close() error {
	return bs.client.Close()
}

func readCapped(r io.Reader, max int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, max+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > max {
		return nil, fmt.Errorf("object exceeds %d bytes", max)
	}
	return data, nil
}

// ContentTypeForKey guesses a MIME type from the key's extension.
func ContentTypeForKey(key string) string {
	s := strings.ToLower(strings.TrimSpace(key))
	if i := strings.Index(s, "?"); i >= 0 {
		s = s[:i]
	}
	switch {
	case strings.HasSuffix(s, ".png"):
		return "image/png"
	case strings.HasSuffix(s, ".jpg"), strings.HasSuffix(s, ".jpeg"):
		return "image/jpeg"
	case strings.HasSuffix(s, ".webp"):
		return "image/webp"
	case strings.HasSuffix(s, ".gif"):
		return "image/gif"
	case strings.HasSuffix(s, ".pdf"):
		return "application/pdf"
	case strings.HasSuffix(s, ".txt"), strings.HasSuffix(s, ".md"):
		return "text/plain"
	case strings.HasSuffix(s, ".mp4"):
		return "video/mp4"
	default:
		return ""
	}
}
