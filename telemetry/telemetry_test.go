package telemetry

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/chatwright/chatwright/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestLogFileCollector(t *testing.T) {
	fileName := filepath.Join(t.TempDir(), "telemetry.log")
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	var wg sync.WaitGroup

	collector, err := NewLogFileCollector(fileName, 16, metrics, &wg)
	require.NoError(t, err)

	collector.RecordClassification(model.Classification{
		Intent: "place_order", Confidence: 0.9, Method: "pattern",
	})
	collector.RecordStep(model.StepOutcome{
		RunId: "run-1", FlowId: "order-food", FromState: "init", ToState: "ask_qty",
		Event: "success", Status: model.RUN_STATUS_RUNNING,
	})

	require.Eventually(t, func() bool {
		data, err := os.ReadFile(fileName)
		if err != nil {
			return false
		}
		content := string(data)
		return strings.Contains(content, "place_order") && strings.Contains(content, "ask_qty")
	}, 2*time.Second, 10*time.Millisecond)

	collector.Stop()
	wg.Wait()

	require.Equal(t, 1.0, testutil.ToFloat64(metrics.Classifications.WithLabelValues("pattern", "place_order")))
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.Steps.WithLabelValues("order-food", "running")))
}

func TestNopSink(t *testing.T) {
	sink := NewNopSink()
	// a nop sink must accept records without side effects
	sink.RecordClassification(model.Classification{Intent: "help"})
	sink.RecordStep(model.StepOutcome{RunId: "run-1"})
}
