package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordBatch_UpdatesCountersAndHistograms(t *testing.T) {
	before := testutil.ToFloat64(BatchesGenerated.WithLabelValues("m1"))
	RecordBatch("m1", 4, 256)
	after := testutil.ToFloat64(BatchesGenerated.WithLabelValues("m1"))
	assert.Equal(t, before+1, after)
}

func TestRecordCacheLookup_RoutesHitsAndMisses(t *testing.T) {
	hitsBefore := testutil.ToFloat64(CacheHits)
	missesBefore := testutil.ToFloat64(CacheMisses)

	RecordCacheLookup(true)
	RecordCacheLookup(false)

	assert.Equal(t, hitsBefore+1, testutil.ToFloat64(CacheHits))
	assert.Equal(t, missesBefore+1, testutil.ToFloat64(CacheMisses))
}
