// Package tracing は更新セッション単位のOpenTelemetryトレースを提供する。
package tracing

import (
	"context"
	"fmt"
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/oyaguma3/upass-renew-agent/apps/renew-agent"

// Provider はトレーサープロバイダを保持する
type Provider struct {
	provider *sdktrace.TracerProvider
}

// Setup はスパンをwへJSONで書き出すトレーサープロバイダを登録する。
// 標準出力はslogのJSONログが使うため、呼び出し側は通常標準エラー出力を渡す。
// enabledがfalseの場合は何も登録せず、グローバルのno-opトレーサーが使われる。
func Setup(serviceName, version string, enabled bool, w io.Writer) (*Provider, error) {
	if !enabled {
		return &Provider{}, nil
	}

	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			attribute.String("service.name", serviceName),
			attribute.String("service.version", version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(provider)

	return &Provider{provider: provider}, nil
}

// Shutdown は未送信のスパンを書き出して終了する。
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.provider == nil {
		return nil
	}
	return p.provider.Shutdown(ctx)
}

// Tracer はアプリケーションのトレーサーを返す。
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// StartSession は更新セッションのスパンを開始する。
func StartSession(ctx context.Context, sessionID, origin string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "renew.session",
		trace.WithAttributes(
			attribute.String("session.id", sessionID),
			attribute.String("session.origin", origin),
		),
	)
}

// AddEvent はスパンにイベントを追加する。
func AddEvent(span trace.Span, name string, attrs ...attribute.KeyValue) {
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

// TraceID はスパンのトレースIDを返す。無効なスパンの場合は空文字列。
func TraceID(span trace.Span) string {
	sc := span.SpanContext()
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}
