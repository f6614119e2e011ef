package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newRecordingTracer() (*QueryTracer, *tracetest.SpanRecorder) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	return &QueryTracer{tracer: tp.Tracer(tracerName)}, recorder
}

func TestQueryTracer_QuerySpan(t *testing.T) {
	tracer, recorder := newRecordingTracer()

	ctx := tracer.TraceQueryStart(context.Background(), nil, pgx.TraceQueryStartData{
		SQL:  "SELECT id FROM products WHERE barcode = $1",
		Args: []any{"7891000100103"},
	})
	tracer.TraceQueryEnd(ctx, nil, pgx.TraceQueryEndData{CommandTag: pgconn.NewCommandTag("SELECT 1")})

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "db.query", spans[0].Name())
	assert.Equal(t, codes.Unset, spans[0].Status().Code)

	attrs := map[string]any{}
	for _, kv := range spans[0].Attributes() {
		attrs[string(kv.Key)] = kv.Value.AsInterface()
	}
	assert.Equal(t, "SELECT id FROM products WHERE barcode = $1", attrs["db.statement"])
	assert.Equal(t, int64(1), attrs["db.args"])
	assert.Equal(t, int64(1), attrs["db.rows_affected"])
}

func TestQueryTracer_CopyFromFailure(t *testing.T) {
	tracer, recorder := newRecordingTracer()

	ctx := tracer.TraceCopyFromStart(context.Background(), nil, pgx.TraceCopyFromStartData{
		TableName:   pgx.Identifier{"products"},
		ColumnNames: []string{"barcode", "name", "price"},
	})
	tracer.TraceCopyFromEnd(ctx, nil, pgx.TraceCopyFromEndData{Err: errors.New("connection reset")})

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "db.copy_from", spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "connection reset", spans[0].Status().Description)
}
