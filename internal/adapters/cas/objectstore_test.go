package cas_test

import (
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/rex/internal/adapters/cas"
	"go.trai.ch/rex/internal/core/domain"
)

// newObjectStore connects to the S3-compatible endpoint named by
// REX_TEST_MINIO_ENDPOINT and creates a throwaway bucket.
func newObjectStore(t *testing.T) *cas.ObjectStore {
	t.Helper()

	endpoint := os.Getenv("REX_TEST_MINIO_ENDPOINT")
	if endpoint == "" {
		t.Skip("REX_TEST_MINIO_ENDPOINT not set")
	}

	bucket := "rex-test-" + uuid.NewString()[:8]
	client, err := cas.NewMinIOClient(cas.ObjectStoreOptions{
		Endpoint:  endpoint,
		Bucket:    bucket,
		AccessKey: os.Getenv("REX_TEST_MINIO_ACCESS_KEY"),
		SecretKey: os.Getenv("REX_TEST_MINIO_SECRET_KEY"),
		Region:    "us-east-1",
	})
	require.NoError(t, err)

	store := cas.NewObjectStore(client, bucket)
	require.NoError(t, store.EnsureBucket(t.Context(), "us-east-1"))
	return store
}

func TestObjectStore_RoundTrip(t *testing.T) {
	store := newObjectStore(t)

	d, err := store.Store(t.Context(), []byte("object payload"))
	require.NoError(t, err)

	data, err := store.Load(t.Context(), d)
	require.NoError(t, err)
	assert.Equal(t, []byte("object payload"), data)

	missing, err := store.FindMissing(t.Context(), []domain.Digest{d, domain.DigestOf([]byte("absent"))})
	require.NoError(t, err)
	assert.Equal(t, []domain.Digest{domain.DigestOf([]byte("absent"))}, missing)

	_, err = store.Load(t.Context(), domain.DigestOf([]byte("absent")))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestNewMinIOClient_RequiresBucket(t *testing.T) {
	_, err := cas.NewMinIOClient(cas.ObjectStoreOptions{Endpoint: "localhost:9000"})
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
}
