package sla

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/spec-kit/sla-service/internal/domain"
)

func genDeadlines() gopter.Gen {
	return gopter.CombineGens(
		gen.IntRange(1, 600),
		gen.IntRange(0, 5000),
	).Map(func(vals []interface{}) domain.SLADeadlines {
		response := vals[0].(int)
		resolution := response + vals[1].(int)
		b, err := domain.NewTimeBudget(response, resolution, nil)
		if err != nil {
			panic(err)
		}
		return domain.CalculateDeadlines(b, t0)
	})
}

// TestOverallStatusDefinition checks overall status against its definition from the parts.
func TestOverallStatusDefinition(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)

	properties.Property("breached iff a dimension breached, at_risk iff an open dimension crossed 75%", prop.ForAll(
		func(d domain.SLADeadlines, offsetMinutes int, responded, resolved bool) bool {
			now := t0.Add(time.Duration(offsetMinutes) * time.Minute)
			overall := OverallStatus(d, responded, resolved, now)

			anyBreached := len(CheckBreaches(d, responded, resolved, now)) > 0
			risk := IsAtRisk(d, responded, resolved, now, domain.AtRiskThreshold)

			switch {
			case anyBreached:
				return overall == domain.SLAStatusBreached
			case risk.Response || risk.Resolution:
				return overall == domain.SLAStatusAtRisk
			default:
				return overall == domain.SLAStatusOnTrack
			}
		},
		genDeadlines(),
		gen.IntRange(-60, 8000),
		gen.Bool(),
		gen.Bool(),
	))

	properties.Property("resolved requests score zero", prop.ForAll(
		func(d domain.SLADeadlines, offsetMinutes int, responded bool, p domain.Priority) bool {
			now := t0.Add(time.Duration(offsetMinutes) * time.Minute)
			return UrgencyScore(d, p, responded, true, now) == 0
		},
		genDeadlines(),
		gen.IntRange(-60, 8000),
		gen.Bool(),
		gen.OneConstOf(domain.PriorityLow, domain.PriorityNormal, domain.PriorityHigh, domain.PriorityUrgent),
	))

	properties.TestingRun(t)
}
