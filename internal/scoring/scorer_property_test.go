package scoring

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"skillcred/internal/evidence/models"
	"skillcred/internal/evidence/weights"
)

var nonCodeSources = []models.SourceID{
	models.SourceNarrative,
	models.SourceNetworkProfile,
	models.SourceLiveAssessment,
}

// TestScore_NonCodeSourcesNeverVerify builds claim sets from narrative,
// profile and assessment sources only, including claims that assert they
// are verified, and checks nothing is ever verified.
func TestScore_NonCodeSourcesNeverVerify(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)

	s := New(weights.Default())
	properties.Property("verified set stays empty", prop.ForAll(
		func(confs []float64, picks []int, verifiedFlags []bool) bool {
			ev := models.NormalizedEvidence{Available: nonCodeSources}
			for i, c := range confs {
				kind := models.ClaimClaimed
				if i < len(verifiedFlags) && verifiedFlags[i] {
					kind = models.ClaimVerified
				}
				src := nonCodeSources[0]
				if i < len(picks) {
					src = nonCodeSources[picks[i]]
				}
				ev.Claims = append(ev.Claims, models.SkillClaim{
					Skill:      string(rune('a' + i%6)),
					Source:     src,
					Kind:       kind,
					Confidence: c,
				})
			}
			res, err := s.Score(ev)
			if err != nil {
				return false
			}
			return len(res.Verified) == 0 && res.SkillConfidence == 0 && res.Signal == SignalNone
		},
		gen.SliceOfN(12, gen.Float64Range(0, 100)),
		gen.SliceOfN(12, gen.IntRange(0, len(nonCodeSources)-1)),
		gen.SliceOfN(12, gen.Bool()),
	))

	properties.Property("verified implies code evidence above threshold", prop.ForAll(
		func(confs []float64, codeMask []bool) bool {
			ev := models.NormalizedEvidence{Available: models.AllSources}
			for i, c := range confs {
				src := models.SourceNarrative
				if codeMask[i] {
					src = models.SourceCodeHost
				}
				ev.Claims = append(ev.Claims, models.SkillClaim{
					Skill:      string(rune('a' + i)),
					Source:     src,
					Kind:       models.ClaimVerified,
					Confidence: c,
				})
			}
			res, err := s.Score(ev)
			if err != nil {
				return false
			}
			for _, name := range res.Verified {
				i := int(name[0] - 'a')
				if !codeMask[i] || confs[i] < s.Policy().MinEvidentiaryConfidence {
					return false
				}
			}
			for _, rec := range res.Skills {
				if rec.Confidence < 0 || rec.Confidence > 100 {
					return false
				}
			}
			return true
		},
		gen.SliceOfN(10, gen.Float64Range(0, 100)),
		gen.SliceOfN(10, gen.Bool()),
	))

	properties.TestingRun(t)
}
