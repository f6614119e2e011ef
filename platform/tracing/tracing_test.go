package tracing

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tracingConfig struct{ endpoint string }

func (c tracingConfig) GetServiceName() string  { return "catalog-chat-test" }
func (c tracingConfig) GetOTLPEndpoint() string { return c.endpoint }

func TestNew_StdoutExporterWritesSpans(t *testing.T) {
	var buf bytes.Buffer
	p, err := New(context.Background(), tracingConfig{}, &buf)
	require.NoError(t, err)
	assert.Equal(t, "stdout", p.Exporter())

	_, span := StartSpan(context.Background(), "catalog_chat.question")
	RecordError(span, errors.New("agent run failed"))
	RecordError(span, nil)
	span.End()

	require.NoError(t, p.Shutdown(context.Background()))
	out := buf.String()
	assert.Contains(t, out, "catalog_chat.question")
	assert.Contains(t, out, "agent run failed")
	assert.Contains(t, out, "catalog-chat-test")
}

func TestNew_OTLPExporter(t *testing.T) {
	p, err := New(context.Background(), tracingConfig{endpoint: "localhost:4317"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "otlp", p.Exporter())
	assert.NotNil(t, p.Tracer())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = p.Shutdown(ctx)
}

func TestHTTPClient_PropagatesTraceContext(t *testing.T) {
	var buf bytes.Buffer
	p, err := New(context.Background(), tracingConfig{}, &buf)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })

	var traceparent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceparent = r.Header.Get("traceparent")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	ctx, span := StartSpan(context.Background(), "parent")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	resp, err := HTTPClient(nil).Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	span.End()

	assert.Contains(t, traceparent, span.SpanContext().TraceID().String())
}
