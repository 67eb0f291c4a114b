package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)

func scenarioBudget(t *testing.T) TimeBudget {
	t.Helper()
	b, err := NewTimeBudget(60, 1440, intPtr(720))
	require.NoError(t, err)
	return b
}

func TestCalculateDeadlines(t *testing.T) {
	d := CalculateDeadlines(scenarioBudget(t), t0)

	assert.Equal(t, t0, d.CreatedAt)
	assert.Equal(t, t0.Add(time.Hour), d.ResponseDeadline)
	assert.Equal(t, t0.Add(24*time.Hour), d.ResolutionDeadline)
	require.NotNil(t, d.EscalationDeadline)
	assert.Equal(t, t0.Add(12*time.Hour), *d.EscalationDeadline)

	again := CalculateDeadlines(scenarioBudget(t), t0)
	assert.Equal(t, d, again)
}

func TestCalculateDeadlinesWithoutEscalation(t *testing.T) {
	b, err := NewTimeBudget(30, 90, nil)
	require.NoError(t, err)
	d := CalculateDeadlines(b, t0)

	assert.Nil(t, d.EscalationDeadline)
	assert.False(t, d.IsEscalationRequired(t0.Add(48*time.Hour)))
	assert.Equal(t, 0, d.ElapsedPercent(t0.Add(time.Hour), DimensionEscalation))
	assert.Equal(t, time.Duration(0), d.TimeRemaining(t0, DimensionEscalation))
}

func TestBreachQueries(t *testing.T) {
	d := CalculateDeadlines(scenarioBudget(t), t0)

	assert.False(t, d.IsResponseBreached(t0.Add(time.Hour)), "deadline instant is not yet a breach")
	assert.True(t, d.IsResponseBreached(t0.Add(time.Hour+time.Second)))
	assert.False(t, d.IsResolutionBreached(t0.Add(23*time.Hour)))
	assert.True(t, d.IsResolutionBreached(t0.Add(25*time.Hour)))
	assert.False(t, d.IsEscalationRequired(t0.Add(11*time.Hour)))
	assert.True(t, d.IsEscalationRequired(t0.Add(13*time.Hour)))
}

func TestElapsedPercent(t *testing.T) {
	d := CalculateDeadlines(scenarioBudget(t), t0)

	assert.Equal(t, 0, d.ElapsedPercent(t0.Add(-time.Hour), DimensionResponse))
	assert.Equal(t, 75, d.ElapsedPercent(t0.Add(45*time.Minute), DimensionResponse))
	assert.Equal(t, 100, d.ElapsedPercent(t0.Add(3*time.Hour), DimensionResponse))
	assert.Equal(t, 50, d.ElapsedPercent(t0.Add(12*time.Hour), DimensionResolution))
	assert.Equal(t, 1, d.ElapsedPercent(t0.Add(10*time.Minute), DimensionResolution))
}

func TestTimeRemaining(t *testing.T) {
	d := CalculateDeadlines(scenarioBudget(t), t0)

	assert.Equal(t, 15*time.Minute, d.TimeRemaining(t0.Add(45*time.Minute), DimensionResponse))
	assert.Equal(t, time.Duration(0), d.TimeRemaining(t0.Add(2*time.Hour), DimensionResponse))
	assert.Equal(t, 2*time.Hour, d.TimeRemaining(t0.Add(10*time.Hour), DimensionEscalation))
}
