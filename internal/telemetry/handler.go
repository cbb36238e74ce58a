package telemetry

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/global"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// OTelHandler is a slog.Handler that emits records through the global OpenTelemetry logger
// provider.
type OTelHandler struct {
	logger log.Logger
	opts   slog.HandlerOptions
	attrs  []log.KeyValue
	group  string
}

func NewOTelHandler(scope string, opts *slog.HandlerOptions) *OTelHandler {
	h := &OTelHandler{logger: global.GetLoggerProvider().Logger(scope + ".slog")}
	if opts != nil {
		h.opts = *opts
	}
	return h
}

func (h *OTelHandler) Enabled(_ context.Context, level slog.Level) bool {
	if h.opts.Level != nil {
		return level >= h.opts.Level.Level()
	}
	return level >= slog.LevelInfo
}

func (h *OTelHandler) Handle(ctx context.Context, record slog.Record) error {
	var r log.Record
	r.SetTimestamp(record.Time)
	r.SetBody(log.StringValue(record.Message))
	r.SetSeverity(convertLevel(record.Level))
	r.SetSeverityText(record.Level.String())
	r.AddAttributes(h.attrs...)

	if span := oteltrace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		sc := span.SpanContext()
		r.AddAttributes(
			log.String("trace_id", sc.TraceID().String()),
			log.String("span_id", sc.SpanID().String()),
		)
	}

	if h.opts.AddSource && record.PC != 0 {
		f, _ := runtime.CallersFrames([]uintptr{record.PC}).Next()
		if f.File != "" {
			r.AddAttributes(
				log.String("code.filepath", f.File),
				log.String("code.function", f.Function),
				log.Int("code.lineno", f.Line),
			)
		}
	}

	record.Attrs(func(attr slog.Attr) bool {
		r.AddAttributes(h.convertAttr(attr))
		return true
	})

	h.logger.Emit(ctx, r)
	return nil
}

func (h *OTelHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append([]log.KeyValue{}, h.attrs...)
	for _, a := range attrs {
		clone.attrs = append(clone.attrs, h.convertAttr(a))
	}
	return &clone
}

func (h *OTelHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	if clone.group != "" {
		clone.group += "."
	}
	clone.group += name
	return &clone
}

func convertLevel(level slog.Level) log.Severity {
	switch {
	case level >= slog.LevelError:
		return log.SeverityError
	case level >= slog.LevelWarn:
		return log.SeverityWarn
	case level >= slog.LevelInfo:
		return log.SeverityInfo
	default:
		return log.SeverityDebug
	}
}

func (h *OTelHandler) convertAttr(attr slog.Attr) log.KeyValue {
	key := attr.Key
	if h.group != "" {
		key = h.group + "." + key
	}
	v := attr.Value.Resolve()
	switch v.Kind() {
	case slog.KindString:
		return log.String(key, v.String())
	case slog.KindInt64:
		return log.Int64(key, v.Int64())
	case slog.KindUint64:
		return log.Int64(key, int64(v.Uint64()))
	case slog.KindFloat64:
		return log.Float64(key, v.Float64())
	case slog.KindBool:
		return log.Bool(key, v.Bool())
	case slog.KindDuration:
		return log.Int64(key, v.Duration().Nanoseconds())
	case slog.KindTime:
		return log.String(key, v.Time().Format(time.RFC3339Nano))
	default:
		return log.String(key, v.String())
	}
}
