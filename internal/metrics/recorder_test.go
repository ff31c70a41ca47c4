package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/wonny/conviction/internal/contracts"
)

func TestRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg)

	r.RecordResult(&contracts.ConvictionResult{
		Ticker:         "CMC",
		FinalScore:     0.7,
		SignalStrength: contracts.CategoryAccumulate,
		Decision:       &contracts.CategoryDecision{Category: contracts.CategoryBuy},
		Components: []contracts.SignalComponent{
			{Name: contracts.ComponentNewsSentiment, Substituted: true, Source: contracts.SourceError},
			{Name: contracts.ComponentFilingSpeed},
		},
	})
	r.RecordFailure()
	r.RecordBatch(12, 150*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.scored.WithLabelValues(string(contracts.CategoryBuy))))
	assert.Equal(t, 0.0, testutil.ToFloat64(r.scored.WithLabelValues(string(contracts.CategoryAccumulate))))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.substituted.WithLabelValues(contracts.ComponentNewsSentiment, contracts.SourceError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.failures))
	assert.Equal(t, 12.0, testutil.ToFloat64(r.batchSize))
}

func TestRecorder_Nil(t *testing.T) {
	var r *Recorder

	assert.NotPanics(t, func() {
		r.RecordResult(&contracts.ConvictionResult{})
		r.RecordFailure()
		r.RecordBatch(1, time.Second)
	})
}
