package plugin

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/ayusman/handcontrol/internal/plugin"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}
