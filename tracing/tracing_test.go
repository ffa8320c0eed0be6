package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestInitialize_DisabledLeavesNoopTracer(t *testing.T) {
	err := Initialize(Config{Enabled: false}, zap.NewNop())
	require.NoError(t, err)

	_, span := StartSpan(context.Background(), "test.span")
	defer span.End()
	assert.False(t, span.SpanContext().IsValid())
}

func TestInitialize_EnabledInstallsStdoutExporter(t *testing.T) {
	err := Initialize(Config{Enabled: true, ServiceName: "transdispatch-test"}, zap.NewNop())
	require.NoError(t, err)

	ctx, span := StartSpan(context.Background(), "test.span")
	assert.NotNil(t, ctx)
	span.End()
}
