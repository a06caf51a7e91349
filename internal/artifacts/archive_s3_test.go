package artifacts

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/require"
)

func newTestS3Client(t *testing.T, server *httptest.Server) *s3.Client {
	t.Helper()
	cfg := aws.Config{
		Region: "us-east-1",
		Credentials: aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
			return aws.Credentials{AccessKeyID: "test", SecretAccessKey: "test"}, nil
		}),
	}
	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(server.URL)
		o.UsePathStyle = true
	})
}

func TestS3Archive_Archive_UploadsEveryFileUnderPrefixAndExecutionID(t *testing.T) {
	var uploadedPaths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uploadedPaths = append(uploadedPaths, r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "plan.json"), []byte(`{}`), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "steps"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "steps", "apply.log"), []byte("log"), 0o644))

	archive := NewS3Archive(newTestS3Client(t, server), "my-bucket", "lonelycat-executions")
	err := archive.Archive(context.Background(), "exec-1", dir)
	require.NoError(t, err)
	require.Len(t, uploadedPaths, 2)

	found := map[string]bool{}
	for _, p := range uploadedPaths {
		found[p] = true
	}
	require.True(t, found["/my-bucket/lonelycat-executions/exec-1/plan.json"])
	require.True(t, found["/my-bucket/lonelycat-executions/exec-1/steps/apply.log"])
}

func TestS3Archive_Archive_PropagatesUploadErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "plan.json"), []byte(`{}`), 0o644))

	archive := NewS3Archive(newTestS3Client(t, server), "my-bucket", "lonelycat-executions")
	err := archive.Archive(context.Background(), "exec-2", dir)
	require.Error(t, err)
}
