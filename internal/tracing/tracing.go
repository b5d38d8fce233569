package tracing

import (
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"

	jherrors "github.com/jobhunter-labs/jobhunter/pkg/jobhunter/v1/errors"
)

// Span attribute keys.
const (
	AttrPipelineName  = attribute.Key("jobhunter.pipeline.name")
	AttrRunID         = attribute.Key("jobhunter.run.id")
	AttrApplicationID = attribute.Key("jobhunter.application.id")
	AttrStageName     = attribute.Key("jobhunter.stage.name")
	AttrWorkerType    = attribute.Key("jobhunter.worker.type")
	AttrOutputKey     = attribute.Key("jobhunter.stage.output")
	AttrAttempts      = attribute.Key("jobhunter.stage.attempts")
	AttrErrorCategory = attribute.Key("jobhunter.error.category")
)

// sensitiveWords mark parameter names whose values must not reach a span.
var sensitiveWords = []string{"key", "token", "secret", "password", "credential"}

// ParamAttributes turns scalar stage parameters into span attributes,
// replacing values of sensitive-looking parameters with "[REDACTED]".
// Nested values are skipped.
func ParamAttributes(params map[string]interface{}) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(params))
	for name, v := range params {
		key := "jobhunter.stage.param." + name
		if isSensitive(name) {
			attrs = append(attrs, attribute.String(key, "[REDACTED]"))
			continue
		}
		switch val := v.(type) {
		case string:
			attrs = append(attrs, attribute.String(key, val))
		case bool:
			attrs = append(attrs, attribute.Bool(key, val))
		case int:
			attrs = append(attrs, attribute.Int(key, val))
		case float64:
			attrs = append(attrs, attribute.Float64(key, val))
		}
	}
	return attrs
}

func isSensitive(name string) bool {
	lower := strings.ToLower(name)
	for _, w := range sensitiveWords {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

// RecordError marks span as failed and attaches err with its category.
func RecordError(span oteltrace.Span, err error) {
	if err == nil || span == nil || !span.IsRecording() {
		return
	}
	span.SetAttributes(AttrErrorCategory.String(string(jherrors.Categorize(err))))
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
