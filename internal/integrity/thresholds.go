package integrity

import (
	"time"

	"skillcred/internal/evidence/models"
	"skillcred/internal/platform/config"
)

// Thresholds tune the detection rules. Severity mapping stays monotonic for
// any values where each low bound is below its matching high bound.
type Thresholds struct {
	HiddenTokenLow         int
	HiddenTokenMedium      int
	SuspiciousStemHigh     int
	SuspiciousStemCritical int
	InvisibleLow           int
	InvisibleMedium        int

	MinHumanLatency  time.Duration
	UniformityRatio  float64
	MinPatternItems  int
	SeniorityGap     float64
	SeniorityFloors  map[models.Seniority]float64
	VolumeEscalation int
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		HiddenTokenLow:         10,
		HiddenTokenMedium:      50,
		SuspiciousStemHigh:     3,
		SuspiciousStemCritical: 100,
		InvisibleLow:           5,
		InvisibleMedium:        50,
		MinHumanLatency:        2 * time.Second,
		UniformityRatio:        0.9,
		MinPatternItems:        5,
		SeniorityGap:           0.3,
		SeniorityFloors: map[models.Seniority]float64{
			models.SeniorityJunior: 0.0,
			models.SeniorityMid:    0.4,
			models.SenioritySenior: 0.6,
			models.SeniorityStaff:  0.75,
		},
		VolumeEscalation: 3,
	}
}

// ThresholdsFromConfig overlays configured values on the defaults. Zero
// values keep the default.
func ThresholdsFromConfig(c config.Integrity) Thresholds {
	t := DefaultThresholds()
	if c.HiddenTokenLow > 0 {
		t.HiddenTokenLow = c.HiddenTokenLow
	}
	if c.HiddenTokenMedium > 0 {
		t.HiddenTokenMedium = c.HiddenTokenMedium
	}
	if c.SuspiciousStemHigh > 0 {
		t.SuspiciousStemHigh = c.SuspiciousStemHigh
	}
	if c.SuspiciousStemCritical > 0 {
		t.SuspiciousStemCritical = c.SuspiciousStemCritical
	}
	if c.MinHumanLatency > 0 {
		t.MinHumanLatency = c.MinHumanLatency
	}
	if c.UniformityRatio > 0 {
		t.UniformityRatio = c.UniformityRatio
	}
	return t
}
