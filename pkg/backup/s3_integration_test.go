//go:build integration

package backup

import (
	"context"
	"fmt"
	"io"
	"os"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/marmos91/authkeep/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// startLocalstack returns the endpoint of a Localstack S3, either the one
// named by LOCALSTACK_ENDPOINT or a fresh container.
func startLocalstack(t *testing.T) string {
	t.Helper()
	if endpoint := os.Getenv("LOCALSTACK_ENDPOINT"); endpoint != "" {
		return endpoint
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "localstack/localstack:3.0",
			ExposedPorts: []string{"4566/tcp"},
			Env: map[string]string{
				"SERVICES":              "s3",
				"DEFAULT_REGION":        "us-east-1",
				"EAGER_SERVICE_LOADING": "1",
			},
			WaitingFor: wait.ForAll(
				wait.ForListeningPort("4566/tcp"),
				wait.ForHTTP("/_localstack/health").
					WithPort("4566/tcp").
					WithStartupTimeout(60*time.Second),
			),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "4566")
	require.NoError(t, err)
	return fmt.Sprintf("http://%s:%s", host, port.Port())
}

func TestBackupUploadsToS3(t *testing.T) {
	ctx := context.Background()
	endpoint := startLocalstack(t)

	s3cfg := config.S3BackupConfig{
		Enabled:         true,
		Bucket:          "authkeep-backups",
		Region:          "us-east-1",
		Prefix:          "nightly/",
		Endpoint:        endpoint,
		AccessKeyID:     "test",
		SecretAccessKey: "test",
		ForcePathStyle:  true,
	}
	uploader, err := NewS3UploaderFromConfig(ctx, s3cfg)
	require.NoError(t, err)

	_, err = uploader.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(s3cfg.Bucket)})
	require.NoError(t, err)

	svc := New(config.BackupConfig{Enabled: true, Directory: t.TempDir(), S3: s3cfg}, newSQLiteStore(t), uploader, nil)
	path, err := svc.DoBackup(ctx, CauseCommand)
	require.NoError(t, err)
	require.FileExists(t, path)

	list, err := uploader.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(s3cfg.Bucket),
		Prefix: aws.String("nightly/"),
	})
	require.NoError(t, err)
	require.Len(t, list.Contents, 1)

	obj, err := uploader.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s3cfg.Bucket),
		Key:    list.Contents[0].Key,
	})
	require.NoError(t, err)
	defer func() { _ = obj.Body.Close() }()

	uploaded, err := io.ReadAll(obj.Body)
	require.NoError(t, err)
	local, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, local, uploaded)
}
