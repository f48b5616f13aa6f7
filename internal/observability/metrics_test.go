package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordToolExecution(t *testing.T) {
	m := getMetrics()
	before := testutil.ToFloat64(m.toolExecutionTotal.WithLabelValues("metrics_test_tool", "error"))

	RecordToolExecution("metrics_test_tool", 5*time.Millisecond, false)

	after := testutil.ToFloat64(m.toolExecutionTotal.WithLabelValues("metrics_test_tool", "error"))
	assert.Equal(t, before+1, after)
}

func TestRecordTurn(t *testing.T) {
	m := getMetrics()
	before := testutil.ToFloat64(m.turnTotal.WithLabelValues("react", "continue"))

	RecordTurn("react", "continue", time.Millisecond)

	assert.Equal(t, before+1, testutil.ToFloat64(m.turnTotal.WithLabelValues("react", "continue")))
}

func TestRecordEventDropped(t *testing.T) {
	m := getMetrics()
	before := testutil.ToFloat64(m.eventsDropped.WithLabelValues("full"))

	RecordEventDropped("full")
	RecordEventDropped("full")

	assert.Equal(t, before+2, testutil.ToFloat64(m.eventsDropped.WithLabelValues("full")))
}

func TestSetMemoryMessages(t *testing.T) {
	SetMemoryMessages("sliding_window", 7)
	assert.Equal(t, float64(7), testutil.ToFloat64(getMetrics().memoryMessages.WithLabelValues("sliding_window")))
}

func TestMetricsHandler(t *testing.T) {
	RecordTask("default", "success", time.Second)
	RecordQueueEnqueue("session:test", 1)
	RecordQueueCompletion("session:test", time.Millisecond, true, 0)
	RecordLLMCall(time.Millisecond, true)

	rec := httptest.NewRecorder()
	MetricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "task_total")
	assert.Contains(t, body, "queue_size")
	assert.Contains(t, body, "llm_call_duration_seconds")
}
