package mcp

import (
	"context"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/macropower/ruler/pkg/log"
)

// TracedToolHandler is an MCP tool handler wrapped by [WithTracing].
type TracedToolHandler[In, Out any] func(
	context.Context,
	*mcp.ServerSession,
	*mcp.CallToolParamsFor[In],
) (*mcp.CallToolResultFor[Out], error)

// WithTracing runs each call of handler in its own span. Failed calls and
// results flagged as errors are recorded on the span and logged.
func WithTracing[In, Out any](
	tracer trace.Tracer,
	handler TracedToolHandler[In, Out],
) mcp.ToolHandlerFor[In, Out] {
	return func(
		ctx context.Context,
		session *mcp.ServerSession,
		params *mcp.CallToolParamsFor[In],
	) (*mcp.CallToolResultFor[Out], error) {
		name := params.Name

		ctx, span := tracer.Start(ctx, name, trace.WithAttributes(attribute.String("mcp.tool", name)))
		defer span.End()

		logger := log.WithContext(ctx).With(slog.String("tool", name))

		logger.DebugContext(ctx, "handling tool call",
			slog.Any("progress_token", params.GetProgressToken()),
			slog.Any("args", params.Arguments),
		)

		result, err := handler(ctx, session, params)

		switch {
		case err != nil:
			logger.ErrorContext(ctx, "tool call failed", slog.Any("err", err))
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())

		case result != nil && result.IsError:
			logger.WarnContext(ctx, "tool call rejected input")
			span.SetStatus(codes.Error, "invalid input")

		default:
			logger.DebugContext(ctx, "tool call completed")
		}

		return result, err
	}
}
