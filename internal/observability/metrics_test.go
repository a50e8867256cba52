package observability

import (
	"testing"
	"time"

	"github.com/danmuck/camctl/internal/testutil/testlog"
)

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	testlog.Start(t)
	RegisterMetrics()
	RegisterMetrics()

	RecordHTTPRequest("rig-a", "GET", "/health", 200, 12*time.Millisecond)
	RecordBusDelivery("cam1", "film.start")
	RecordBusFailure("cam1", "film.start")
	ObserveTask("cam1", 24*time.Millisecond)
}
