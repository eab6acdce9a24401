package stream

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/ayusman/mudra/internal/stream"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}
