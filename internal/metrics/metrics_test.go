package metrics

import (
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordRow(t *testing.T) {
	before := testutil.ToFloat64(importRows.WithLabelValues("Notes", OutcomeSkipped))
	RecordRow("Notes", OutcomeSkipped)
	RecordRow("Notes", "")

	assert.Equal(t, before+1, testutil.ToFloat64(importRows.WithLabelValues("Notes", OutcomeSkipped)))
	assert.GreaterOrEqual(t, testutil.ToFloat64(importRows.WithLabelValues("Notes", OutcomeImported)), 1.0)
}

func TestRecordFlushAndRun(t *testing.T) {
	RecordFlush("Batch", nil)
	RecordFlush("Batch", errors.New("disk full"))
	RecordRun("Batch", 2*time.Second, nil)

	assert.GreaterOrEqual(t, testutil.ToFloat64(importFlushes.WithLabelValues("Batch", "ok")), 1.0)
	assert.GreaterOrEqual(t, testutil.ToFloat64(importFlushes.WithLabelValues("Batch", "error")), 1.0)
	assert.GreaterOrEqual(t, testutil.ToFloat64(importRuns.WithLabelValues("Batch", "ok")), 1.0)
}
