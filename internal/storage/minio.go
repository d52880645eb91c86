package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/musicbox/service/internal/metrics"
)

// Options configures a MinioGateway.
type Options struct {
	// Endpoint is the host:port used for writes, stats and deletes.
	Endpoint string
	UseSSL   bool
	// PublicEndpoint is the host:port signed URLs are issued for.
	PublicEndpoint string
	PublicUseSSL   bool

	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
}

// MinioGateway implements Gateway with two MinIO clients: one bound to the
// internal endpoint, one bound to the externally reachable endpoint so the
// host baked into each signature is the one the browser will request.
type MinioGateway struct {
	internal *minio.Client
	public   *minio.Client
	bucket   string
	region   string
	log      zerolog.Logger
}

// NewMinioGateway creates both MinIO clients. No network calls are made.
func NewMinioGateway(opts Options, log zerolog.Logger) (*MinioGateway, error) {
	creds := credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, "")

	internal, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  creds,
		Secure: opts.UseSSL,
		Region: opts.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create internal minio client: %w", err)
	}

	// Region must be fixed here: otherwise presigning looks up the bucket
	// location over the public endpoint, which this process may not reach.
	public, err := minio.New(opts.PublicEndpoint, &minio.Options{
		Creds:  creds,
		Secure: opts.PublicUseSSL,
		Region: opts.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create public minio client: %w", err)
	}

	return &MinioGateway{
		internal: internal,
		public:   public,
		bucket:   opts.Bucket,
		region:   opts.Region,
		log:      log.With().Str("component", "storage").Logger(),
	}, nil
}

// EnsureBucket creates the bucket if it does not exist yet. It is called
// once at startup.
func (g *MinioGateway) EnsureBucket(ctx context.Context) error {
	exists, err := g.internal.BucketExists(ctx, g.bucket)
	if err != nil {
		return fmt.Errorf("check bucket existence: %w", err)
	}
	if exists {
		g.log.Info().Str("bucket", g.bucket).Msg("bucket already exists")
		return nil
	}

	err = g.internal.MakeBucket(ctx, g.bucket, minio.MakeBucketOptions{Region: g.region})
	if err != nil {
		// Another replica may have won the race.
		if code := minio.ToErrorResponse(err).Code; code == "BucketAlreadyOwnedByYou" || code == "BucketAlreadyExists" {
			return nil
		}
		return fmt.Errorf("create bucket %q: %w", g.bucket, err)
	}
	g.log.Info().Str("bucket", g.bucket).Msg("bucket created")
	return nil
}

// Put streams body to the internal endpoint under key.
func (g *MinioGateway) Put(ctx context.Context, key string, body io.Reader, size int64, contentType, originalName string) (err error) {
	defer observe("put", time.Now(), &err)

	_, err = g.internal.PutObject(ctx, g.bucket, key, body, size, minio.PutObjectOptions{
		ContentType: contentType,
		// Header values must stay ASCII.
		UserMetadata: map[string]string{"original-name": url.QueryEscape(originalName)},
	})
	if err != nil {
		return fmt.Errorf("put object %q: %w", key, err)
	}
	return nil
}

// SignedGetURL checks the blob exists, then presigns a GET against the
// public endpoint.
func (g *MinioGateway) SignedGetURL(ctx context.Context, key string, ttl time.Duration) (signed string, err error) {
	defer observe("presign", time.Now(), &err)

	if _, err = g.internal.StatObject(ctx, g.bucket, key, minio.StatObjectOptions{}); err != nil {
		if isNoSuchKey(err) {
			return "", fmt.Errorf("stat object %q: %w", key, ErrObjectMissing)
		}
		return "", fmt.Errorf("stat object %q: %w", key, err)
	}
	return g.presign(ctx, key, ttl)
}

// presign signs a per-call nonce into the query so two URLs minted within
// the same second still differ. The store ignores the extra parameter.
func (g *MinioGateway) presign(ctx context.Context, key string, ttl time.Duration) (string, error) {
	params := url.Values{"x-nonce": {strings.ToLower(ulid.Make().String())}}
	u, err := g.public.PresignedGetObject(ctx, g.bucket, key, ttl, params)
	if err != nil {
		return "", fmt.Errorf("presign object %q: %w", key, err)
	}
	return u.String(), nil
}

// Remove deletes key through the internal endpoint.
func (g *MinioGateway) Remove(ctx context.Context, key string) (err error) {
	defer observe("remove", time.Now(), &err)

	err = g.internal.RemoveObject(ctx, g.bucket, key, minio.RemoveObjectOptions{})
	if err != nil && !isNoSuchKey(err) {
		return fmt.Errorf("remove object %q: %w", key, err)
	}
	if err != nil {
		g.log.Debug().Str("key", key).Msg("object already absent")
	}
	return nil
}

func isNoSuchKey(err error) bool {
	if errors.Is(err, ErrObjectMissing) {
		return true
	}
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NoSuchObject"
}

func observe(operation string, start time.Time, err *error) {
	metrics.RecordStorageOperation(operation, *err, time.Since(start).Seconds())
}
