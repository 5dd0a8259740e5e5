// Package match scores and ranks candidates for a task. Ranking is
// rule-based and fully deterministic; an optional AI provider can take over
// under a hard timeout, with the rule-based path as fallback (see ai.go).
package match

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/justDance-everybody/Taskbot-MVP/internal/domain"
)

// Fixed subscore weights. The four weights sum to 1.
const (
	weightSkill        = 0.40
	weightAvailability = 0.25
	weightPerformance  = 0.20
	weightRecency      = 0.15
)

// TopN is how many candidates a ranking returns.
const TopN = 3

// requiredHours maps a task's urgency band to the weekly hours the
// availability bands are measured against.
func requiredHours(u domain.Urgency) float64 {
	switch u {
	case domain.UrgencyLow:
		return 5
	case domain.UrgencyHigh, domain.UrgencyUrgent:
		return 30
	default:
		return 15
	}
}

// Score computes the full MatchResult for one candidate. It is a pure
// function of (task, candidate, now): identical inputs always produce an
// identical result.
func Score(task *domain.Task, c *domain.Candidate, now time.Time) domain.MatchResult {
	skill, skillReasons := skillScore(task.RequiredSkills, c.SkillTags)
	avail, availReason := availabilityScore(c.HoursAvailable, requiredHours(task.Urgency))
	perf, perfReason := performanceScore(c.PerformanceScore)
	rec, recReason := recencyScore(c.LastCompletedAt, now)

	total := weightSkill*skill + weightAvailability*avail +
		weightPerformance*perf + weightRecency*rec

	reasons := append(skillReasons, availReason, perfReason, recReason)

	return domain.MatchResult{
		CandidateID: c.UserID,
		TotalScore:  int(math.Round(total)),
		Breakdown: domain.Subscores{
			Skill:        skill,
			Availability: avail,
			Performance:  perf,
			Recency:      rec,
		},
		Reasons: reasons,
	}
}

// rankByRules scores every candidate and returns the top 3 by descending
// total, ties broken by candidate ID ascending so the order is stable.
func rankByRules(task *domain.Task, candidates []*domain.Candidate, now time.Time) []domain.MatchResult {
	results := make([]domain.MatchResult, 0, len(candidates))
	for _, c := range candidates {
		results = append(results, Score(task, c, now))
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].TotalScore != results[j].TotalScore {
			return results[i].TotalScore > results[j].TotalScore
		}
		return results[i].CandidateID < results[j].CandidateID
	})
	if len(results) > TopN {
		results = results[:TopN]
	}
	return results
}

// skillScore rewards exact matches at full weight and substring matches at
// half weight, capped at 100.
func skillScore(required, offered []string) (float64, []string) {
	if len(required) == 0 {
		return 100, []string{"no specific skills required"}
	}
	if len(offered) == 0 {
		return 0, []string{"candidate lists no skills"}
	}

	reqLower := lowerAll(required)
	offLower := lowerAll(offered)

	exact := make(map[string]bool)
	for _, r := range reqLower {
		for _, o := range offLower {
			if r == o {
				exact[r] = true
				break
			}
		}
	}

	partial := make(map[string]bool)
	for _, r := range reqLower {
		if exact[r] {
			continue
		}
		for _, o := range offLower {
			if strings.Contains(o, r) || strings.Contains(r, o) {
				partial[r] = true
				break
			}
		}
	}

	n := float64(len(reqLower))
	score := math.Min(100, float64(len(exact))/n*100+float64(len(partial))/n*50)

	var reasons []string
	if len(exact) > 0 {
		reasons = append(reasons, fmt.Sprintf("exact skill match: %s", joinSorted(exact)))
	}
	if len(partial) > 0 {
		reasons = append(reasons, fmt.Sprintf("partial skill match: %s", joinSorted(partial)))
	}
	if score < 50 {
		missing := make(map[string]bool)
		for _, r := range reqLower {
			if !exact[r] && !partial[r] {
				missing[r] = true
			}
		}
		if len(missing) > 0 {
			reasons = append(reasons, fmt.Sprintf("missing skills: %s", joinSorted(missing)))
		}
	}
	if len(reasons) == 0 {
		reasons = append(reasons, "no skill overlap")
	}
	return score, reasons
}

func availabilityScore(hours, required float64) (float64, string) {
	switch {
	case hours >= required*1.5:
		return 100, fmt.Sprintf("ample availability (%gh/week for a %gh task)", hours, required)
	case hours >= required:
		return 80, fmt.Sprintf("sufficient availability (%gh/week for a %gh task)", hours, required)
	case hours >= required*0.7:
		return 60, fmt.Sprintf("tight availability (%gh/week for a %gh task)", hours, required)
	default:
		return 30, fmt.Sprintf("insufficient availability (%gh/week for a %gh task)", hours, required)
	}
}

func performanceScore(perf float64) (float64, string) {
	if perf <= 0 {
		// No scored history yet; assume an average performer rather than
		// burying new candidates at the bottom of every ranking.
		return domain.DefaultPerformance, "no scored history, assumed average"
	}
	switch {
	case perf >= 90:
		return 100, "excellent track record (≥90)"
	case perf >= 80:
		return 85, "good track record (80-89)"
	case perf >= 70:
		return 70, "average track record (70-79)"
	case perf >= 60:
		return 55, "below-average track record (60-69)"
	default:
		return 30, "poor track record (<60)"
	}
}

func recencyScore(last *time.Time, now time.Time) (float64, string) {
	if last == nil {
		return 50, "no completion history"
	}
	days := int(now.Sub(*last).Hours() / 24)
	switch {
	case days <= 7:
		return 100, "recently active (≤7 days)"
	case days <= 30:
		return 80, "active this month (≤30 days)"
	case days <= 90:
		return 60, "active this quarter (≤90 days)"
	default:
		return 40, fmt.Sprintf("inactive for %d days", days)
	}
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(strings.TrimSpace(s))
	}
	return out
}

func joinSorted(set map[string]bool) string {
	items := make([]string, 0, len(set))
	for s := range set {
		items = append(items, s)
	}
	sort.Strings(items)
	return strings.Join(items, ", ")
}
