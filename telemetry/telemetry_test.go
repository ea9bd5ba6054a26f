package telemetry

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInitExportsSpansToWriter(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer

	tp, err := Init(ctx, Config{ServiceName: "tasks-test", Writer: &buf})
	require.NoError(t, err)

	_, span := tp.Tracer("test").Start(ctx, "Repository.Tasks")
	span.End()
	require.NoError(t, tp.Shutdown(ctx))

	require.Contains(t, buf.String(), "Repository.Tasks")
	require.Contains(t, buf.String(), "tasks-test")
}

func TestInitWithoutWriter(t *testing.T) {
	ctx := context.Background()
	tp, err := Init(ctx, Config{})
	require.NoError(t, err)
	require.NoError(t, tp.Shutdown(ctx))
}
