package storage

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startMinio(t *testing.T) MinioConfig {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "minio/minio:RELEASE.2024-01-16T16-07-38Z",
			ExposedPorts: []string{"9000/tcp"},
			Env: map[string]string{
				"MINIO_ROOT_USER":     "minioadmin",
				"MINIO_ROOT_PASSWORD": "minioadmin",
			},
			Cmd:        []string{"server", "/data"},
			WaitingFor: wait.ForHTTP("/minio/health/live").WithPort("9000/tcp"),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate minio container: %s", err)
		}
	})

	endpoint, err := container.PortEndpoint(ctx, "9000/tcp", "")
	require.NoError(t, err)

	return MinioConfig{
		Endpoint:  endpoint,
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
		Bucket:    "modelhub-test",
	}
}

func TestMinioStorage(t *testing.T) {
	if testing.Short() {
		t.Skip("needs docker")
	}
	cfg := startMinio(t)
	ctx := context.Background()

	storage, err := NewMinioStorage(ctx, cfg)
	require.NoError(t, err)

	again, err := NewMinioStorage(ctx, cfg)
	require.NoError(t, err, "an existing bucket is reused")
	require.NotNil(t, again)

	name := "1700000000-abcdefghij.glb"
	content := "glTF binary payload"

	require.NoError(t, storage.Save(ctx, name, strings.NewReader(content), int64(len(content))))

	reader, size, err := storage.Open(ctx, name)
	require.NoError(t, err)
	data, err := io.ReadAll(reader)
	require.NoError(t, err)
	require.NoError(t, reader.Close())
	require.Equal(t, content, string(data))
	require.Equal(t, int64(len(content)), size)

	require.NoError(t, storage.Delete(ctx, name))
	_, _, err = storage.Open(ctx, name)
	require.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, storage.Delete(ctx, name), "deleting twice succeeds")

	require.ErrorIs(t, storage.Save(ctx, "../escape.glb", strings.NewReader("x"), 1), ErrInvalidName)
}

func TestMinioStorage_BehindGateway(t *testing.T) {
	if testing.Short() {
		t.Skip("needs docker")
	}
	cfg := startMinio(t)
	ctx := context.Background()

	backend, err := NewMinioStorage(ctx, cfg)
	require.NoError(t, err)
	gateway, err := NewGateway(backend, 16)
	require.NoError(t, err)

	upload, err := gateway.Accept(ctx, "Robot.GLB", -1, strings.NewReader("small"))
	require.NoError(t, err)
	require.Equal(t, "glb", upload.Format)

	reader, _, err := gateway.Open(ctx, upload.URL)
	require.NoError(t, err)
	data, err := io.ReadAll(reader)
	require.NoError(t, err)
	require.NoError(t, reader.Close())
	require.Equal(t, "small", string(data))

	_, err = gateway.Accept(ctx, "big.obj", -1, strings.NewReader(strings.Repeat("x", 64)))
	require.ErrorIs(t, err, ErrTooLarge)

	require.NoError(t, gateway.Remove(ctx, upload.URL))
}
