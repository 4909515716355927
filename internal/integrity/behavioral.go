package integrity

import (
	"fmt"

	"skillcred/internal/evidence/models"
)

// scanAssessment runs the behavioral rules over live assessment signals.
func scanAssessment(sig models.AssessmentSignals, th Thresholds) []Anomaly {
	n := len(sig.Items)
	if n == 0 {
		return nil
	}
	var out []Anomaly

	fast := 0
	minMs := th.MinHumanLatency.Milliseconds()
	for _, it := range sig.Items {
		if it.LatencyMs < minMs {
			fast++
		}
	}
	if fast*2 > n {
		out = append(out, Anomaly{
			Type:     AnomalySuperhumanLatency,
			Severity: SeverityHigh,
			Count:    fast,
			Detail:   fmt.Sprintf("%d of %d items answered under %s", fast, n, th.MinHumanLatency),
		})
	}

	if n >= th.MinPatternItems {
		counts := map[string]int{}
		top := 0
		for _, it := range sig.Items {
			counts[it.Answer]++
			top = max(top, counts[it.Answer])
		}
		if float64(top)/float64(n) >= th.UniformityRatio {
			out = append(out, Anomaly{Type: AnomalyUniformAnswers, Severity: SeverityMedium, Count: top})
		} else if alternating(sig.Items) {
			out = append(out, Anomaly{Type: AnomalyAlternatingAnswers, Severity: SeverityMedium, Count: n})
		}
	}

	if floor, ok := th.SeniorityFloors[sig.DeclaredSeniority]; ok {
		correct := 0
		for _, it := range sig.Items {
			if it.Correct {
				correct++
			}
		}
		accuracy := float64(correct) / float64(n)
		if floor-accuracy > th.SeniorityGap {
			out = append(out, Anomaly{
				Type:     AnomalySeniorityMismatch,
				Severity: SeverityLow,
				Detail:   fmt.Sprintf("declared %s, accuracy %.2f", sig.DeclaredSeniority, accuracy),
			})
		}
	}

	for i := range out {
		out[i].Lane = LaneBehavioral
		out[i].Source = string(models.SourceLiveAssessment)
	}
	return out
}

// alternating reports a strict period-2 pattern such as A,B,A,B.
func alternating(items []models.AssessmentItem) bool {
	if len(items) < 2 || items[0].Answer == items[1].Answer {
		return false
	}
	for i, it := range items {
		if it.Answer != items[i%2].Answer {
			return false
		}
	}
	return true
}
