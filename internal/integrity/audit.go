package integrity

import (
	"math"

	"skillcred/internal/evidence/models"
	pstrings "skillcred/pkg/platform/strings"
)

// auditComponents inspects component assessments through their uniform
// shape only. Nothing here depends on which component produced them.
func auditComponents(assessments []models.ComponentAssessment) []Anomaly {
	var out []Anomaly
	for _, a := range assessments {
		bad := 0
		for _, v := range a.Scores {
			if math.IsNaN(v) || v < 0 || v > 100 {
				bad++
			}
		}
		if bad > 0 {
			out = append(out, Anomaly{
				Type:     AnomalyScoreOutOfRange,
				Lane:     LaneComponent,
				Severity: SeverityLow,
				Source:   a.Component,
				Count:    bad,
			})
		}

		if a.Rationale == "" {
			continue
		}
		echoes := 0
		for _, m := range matchInjection(pstrings.Canonical(a.Rationale)) {
			if m.Severity >= SeverityHigh {
				echoes += m.Count
			}
		}
		if echoes > 0 {
			out = append(out, Anomaly{
				Type:     AnomalyRationaleInjectionEcho,
				Lane:     LaneComponent,
				Severity: SeverityHigh,
				Source:   a.Component,
				Count:    echoes,
			})
		}
	}
	return out
}
