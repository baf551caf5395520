package cas

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.trai.ch/rex/internal/core/domain"
	"go.trai.ch/rex/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.ContentStore = (*ObjectStore)(nil)

const (
	objectPrefix      = "cas/"
	objectContentType = "application/octet-stream"
	noSuchKey         = "NoSuchKey"
)

// ObjectStoreOptions configures the connection to an S3-compatible service.
type ObjectStoreOptions struct {
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
}

// ObjectStore implements ports.ContentStore on an S3-compatible bucket.
type ObjectStore struct {
	client *minio.Client
	bucket string
}

// NewMinIOClient creates a client for the configured endpoint.
func NewMinIOClient(opts ObjectStoreOptions) (*minio.Client, error) {
	if opts.Endpoint == "" || opts.Bucket == "" {
		return nil, zerr.Wrap(domain.ErrInvalidConfig, "object store endpoint and bucket are required")
	}

	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure:    opts.UseSSL,
		Region:    opts.Region,
		Transport: newTransport(),
	})
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to create object store client"), "endpoint", opts.Endpoint)
	}
	return client, nil
}

// NewObjectStore creates a store backed by bucket.
func NewObjectStore(client *minio.Client, bucket string) *ObjectStore {
	return &ObjectStore{client: client, bucket: bucket}
}

// EnsureBucket creates the bucket when it does not exist yet.
func (s *ObjectStore) EnsureBucket(ctx context.Context, region string) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return domain.Infrastructure("check bucket", err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: region}); err != nil {
		return domain.Infrastructure("create bucket", zerr.With(err, "bucket", s.bucket))
	}
	return nil
}

// Store implements ports.ContentStore.
func (s *ObjectStore) Store(ctx context.Context, data []byte) (domain.Digest, error) {
	d := domain.DigestOf(data)

	ok, err := s.Contains(ctx, d)
	if err != nil {
		return domain.Digest{}, err
	}
	if ok {
		return d, nil
	}

	_, err = s.client.PutObject(ctx, s.bucket, objectKey(d), bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: objectContentType})
	if err != nil {
		return domain.Digest{}, domain.Infrastructure("upload blob", zerr.With(err, "digest", d.String()))
	}
	return d, nil
}

// Load implements ports.ContentStore.
func (s *ObjectStore) Load(ctx context.Context, d domain.Digest) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, objectKey(d), minio.GetObjectOptions{})
	if err != nil {
		return nil, s.loadError(err, d)
	}
	defer func() { _ = obj.Close() }()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, s.loadError(err, d)
	}

	if !d.Matches(data) {
		return nil, domain.Infrastructure("download blob",
			zerr.With(zerr.Wrap(domain.ErrCorruptBlob, "failed to verify blob"), "digest", d.String()))
	}
	return data, nil
}

// Contains implements ports.ContentStore.
func (s *ObjectStore) Contains(ctx context.Context, d domain.Digest) (bool, error) {
	info, err := s.client.StatObject(ctx, s.bucket, objectKey(d), minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == noSuchKey {
			return false, nil
		}
		return false, domain.Infrastructure("stat blob", zerr.With(err, "digest", d.String()))
	}
	return info.Size == d.Size, nil
}

// FindMissing implements ports.ContentStore.
func (s *ObjectStore) FindMissing(ctx context.Context, ds []domain.Digest) ([]domain.Digest, error) {
	return findMissing(ctx, s, ds)
}

func (s *ObjectStore) loadError(err error, d domain.Digest) error {
	if minio.ToErrorResponse(err).Code == noSuchKey {
		return zerr.With(zerr.Wrap(domain.ErrNotFound, "failed to load blob"), "digest", d.String())
	}
	return domain.Infrastructure("download blob", zerr.With(err, "digest", d.String()))
}

func objectKey(d domain.Digest) string {
	return objectPrefix + d.Hex()
}

func newTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}
