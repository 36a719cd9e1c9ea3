// Package tracing wraps the external suspension points named in spec §5
// (model completions, streams, embeddings, reranks, vector search/upsert,
// tool handlers, peer-agent dispatch) in OpenTelemetry spans. No
// collector endpoint is specified anywhere in the core spec, so spans are
// exported in-process via stdouttrace.
package tracing

import (
	"context"
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/trace"
	oteltrace "go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/corlin/hicrm-core"

// Init installs a TracerProvider that exports spans to w (os.Stdout in
// production, io.Discard in tests). Callers should defer the returned
// shutdown func.
func Init(w io.Writer) (shutdown func(context.Context) error, err error) {
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, err
	}
	tp := trace.NewTracerProvider(trace.WithBatcher(exporter))
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

// Start opens a span for one named suspension point (e.g. "router.chat",
// "vectorstore.search", "tool.execute", "agent.dispatch").
func Start(ctx context.Context, name string) (context.Context, oteltrace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name)
}
