package staging

import (
	"bytes"
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startMinIO(t *testing.T, bucket string) *MinIOStore {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping MinIO integration test in short mode")
	}
	ctx := context.Background()
	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "minio/minio:latest",
			Cmd:          []string{"server", "/data"},
			ExposedPorts: []string{"9000/tcp"},
			Env: map[string]string{
				"MINIO_ROOT_USER":     "minioadmin",
				"MINIO_ROOT_PASSWORD": "minioadmin",
			},
			WaitingFor: wait.ForHTTP("/minio/health/live").WithPort("9000/tcp").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("Failed to start MinIO container: %v", err)
	}
	t.Cleanup(func() { _ = c.Terminate(ctx) })

	host, err := c.Host(ctx)
	require.NoError(t, err)
	port, err := c.MappedPort(ctx, "9000/tcp")
	require.NoError(t, err)

	s, err := NewMinIOStore(MinIOConfig{
		Endpoint:  fmt.Sprintf("%s:%s", host, port.Port()),
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
		Bucket:    bucket,
	})
	require.NoError(t, err)
	return s
}

func TestMinIOStoreRoundTrip(t *testing.T) {
	s := startMinIO(t, "gtfs-occupancy")
	ctx := context.Background()

	// the bucket does not exist until the first Put
	_, err := s.Get(ctx, "tmp/dados_gtfs.json", 0)
	assert.ErrorIs(t, err, ErrNotFound)

	payload := bytes.Repeat([]byte("x"), 4096)
	require.NoError(t, s.Put(ctx, "/tmp/dados_gtfs.json", payload))
	got, err := s.Get(ctx, "tmp/dados_gtfs.json", 0)
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	got, err = s.Get(ctx, "tmp/dados_gtfs.json", 100)
	require.NoError(t, err)
	assert.Len(t, got, 100)

	require.NoError(t, s.Put(ctx, "tmp/dados_gtfs.json", []byte("[]")))
	got, err = s.Get(ctx, "tmp/dados_gtfs.json", 0)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(got))

	_, err = s.Get(ctx, "tmp/missing.json", 0)
	assert.ErrorIs(t, err, ErrNotFound)
}
