package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMean(t *testing.T) {
	assert.Equal(t, 0.0, mean(nil))
	assert.Equal(t, 85.0, mean([]float64{80, 90}))
	assert.Equal(t, 7.5, mean([]float64{5, 10}))
}

func TestPopulationStdDev(t *testing.T) {
	assert.Equal(t, 0.0, populationStdDev(nil))
	assert.Equal(t, 0.0, populationStdDev([]float64{42}))
	assert.InDelta(t, 5.0, populationStdDev([]float64{80, 90}), 1e-9)
}

func TestPopulationStdDevOrderInvariant(t *testing.T) {
	a := populationStdDev([]float64{60, 75, 90, 82})
	b := populationStdDev([]float64{90, 60, 82, 75})
	assert.Equal(t, a, b)
}

func TestFormatFixed2(t *testing.T) {
	assert.Equal(t, "5.00", formatFixed2(5))
	assert.Equal(t, "66.67", formatFixed2(200.0/3.0))
	assert.Equal(t, "0.00", formatFixed2(0))
}

func TestPercentage(t *testing.T) {
	assert.Equal(t, 0.0, percentage(3, 0))
	assert.Equal(t, 50.0, percentage(1, 2))
	assert.Equal(t, 100.0, percentage(2, 2))

	// Holding the total fixed, more on-time deliveries never lower the rate.
	prev := 0.0
	for onTime := 0; onTime <= 10; onTime++ {
		p := percentage(onTime, 10)
		assert.GreaterOrEqual(t, p, prev)
		prev = p
	}
}
