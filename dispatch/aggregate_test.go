package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregateBatchingPool_RoundRobinsAcrossModels(t *testing.T) {
	agg := NewAggregateBatchingPool()
	m1 := newTestModel("m1")
	m2 := newTestModel("m2")

	r1 := sentenceRequest(m1, []int32{1, 2})
	r2 := sentenceRequest(m2, []int32{1, 2})

	_, err := agg.EnqueueRequest(m1, r1, nil)
	require.NoError(t, err)
	_, err = agg.EnqueueRequest(m2, r2, nil)
	require.NoError(t, err)

	var batch Batch
	first, n := agg.GenerateBatch(&batch)
	require.Equal(t, 1, n)
	require.Equal(t, ModelID("m1"), first.ID())

	second, n := agg.GenerateBatch(&batch)
	require.Equal(t, 1, n)
	assert.Equal(t, ModelID("m2"), second.ID())
}

func TestAggregateBatchingPool_DrainsToEmpty(t *testing.T) {
	agg := NewAggregateBatchingPool()
	m1 := newTestModel("m1")
	r1 := sentenceRequest(m1, []int32{1})

	_, err := agg.EnqueueRequest(m1, r1, nil)
	require.NoError(t, err)

	var batch Batch
	_, n := agg.GenerateBatch(&batch)
	require.Equal(t, 1, n)

	model, n := agg.GenerateBatch(&batch)
	assert.Equal(t, 0, n)
	assert.Nil(t, model)
}

func TestAggregateBatchingPool_HeavyModelDoesNotStarveLight(t *testing.T) {
	agg := NewAggregateBatchingPool()
	heavy, err := NewTranslationModel(fakeHandle{id: "heavy"}, fakeProcessor{}, PoolConfig{MiniBatchWords: 6, MaxLengthBreak: 2, PivotSlack: 0})
	require.NoError(t, err)
	light := newTestModel("light")

	for i := 0; i < 50; i++ {
		r := sentenceRequest(heavy, []int32{1, 2})
		_, err := agg.EnqueueRequest(heavy, r, nil)
		require.NoError(t, err)
	}
	r := sentenceRequest(light, []int32{1})
	_, err = agg.EnqueueRequest(light, r, nil)
	require.NoError(t, err)

	var batch Batch
	firstModel, _ := agg.GenerateBatch(&batch)
	require.Equal(t, ModelID("heavy"), firstModel.ID())

	secondModel, n := agg.GenerateBatch(&batch)
	require.Equal(t, 1, n)
	assert.Equal(t, ModelID("light"), secondModel.ID(), "light model must get a turn before heavy is drained again")
}
