package artifacts

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewGCSArchive_WiresBucketAndPrefix(t *testing.T) {
	archive := NewGCSArchive(nil, "my-bucket", "lonelycat-executions")
	require.Equal(t, "my-bucket", archive.bucket)
	require.Equal(t, "lonelycat-executions", archive.prefix)
}
