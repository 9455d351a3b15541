package rand

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSeededSequencesRepeat(t *testing.T) {
	a, b := New(42), New(42)
	for range 100 {
		assert.Equal(t, a.Intn(1000), b.Intn(1000))
	}
}

func TestRanges(t *testing.T) {
	r := New(7)
	for range 1000 {
		v := r.Intn(10)
		assert.GreaterOrEqual(t, v, 0)
		assert.Less(t, v, 10)

		f := r.FloatRange(-1, 1)
		assert.GreaterOrEqual(t, f, -1.0)
		assert.LessOrEqual(t, f, 1.0)
	}
	assert.Zero(t, r.Intn(1))
}

func TestSampleFiltered(t *testing.T) {
	r := New(1)
	vals := []int{1, 2, 3, 4, 5, 6}

	counts := make(map[int]int)
	for range 600 {
		idx := SampleFiltered(r, vals, func(v int) bool { return v%2 == 0 })
		if assert.NotEqual(t, -1, idx) {
			counts[vals[idx]]++
		}
	}
	assert.Len(t, counts, 3)
	for v := range counts {
		assert.Zero(t, v%2)
	}

	assert.Equal(t, -1, SampleFiltered(r, vals, func(int) bool { return false }))
}
