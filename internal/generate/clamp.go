package generate

import "github.com/raphaelgruber/toolbrief/internal/models"

// ClampSourceIndices drops source indices outside [0, citationCount) from
// every item list. The model routinely emits out-of-range indices; they
// are dropped silently rather than failing the run.
func ClampSourceIndices(c *models.GeneratedContent, citationCount int) {
	for i := range c.Features {
		c.Features[i].SourceIndices = clampIndices(c.Features[i].SourceIndices, citationCount)
	}
	for i := range c.Shortcuts {
		c.Shortcuts[i].SourceIndices = clampIndices(c.Shortcuts[i].SourceIndices, citationCount)
	}
	for i := range c.Workflows {
		c.Workflows[i].SourceIndices = clampIndices(c.Workflows[i].SourceIndices, citationCount)
	}
	for i := range c.Tips {
		c.Tips[i].SourceIndices = clampIndices(c.Tips[i].SourceIndices, citationCount)
	}
	for i := range c.CommonMistakes {
		c.CommonMistakes[i].SourceIndices = clampIndices(c.CommonMistakes[i].SourceIndices, citationCount)
	}
	for i := range c.RecentUpdates {
		c.RecentUpdates[i].SourceIndices = clampIndices(c.RecentUpdates[i].SourceIndices, citationCount)
	}
}

func clampIndices(indices []int, n int) []int {
	kept := indices[:0]
	for _, idx := range indices {
		if idx >= 0 && idx < n {
			kept = append(kept, idx)
		}
	}
	return kept
}

// CoverageScore is a 0-1 heuristic of manual completeness: each section's
// item count relative to its expected minimum, averaged and clamped.
func CoverageScore(c *models.GeneratedContent) float64 {
	ratios := []float64{
		sectionRatio(len(c.Features), models.MinFeatures),
		sectionRatio(len(c.Shortcuts), models.MinShortcuts),
		sectionRatio(len(c.Workflows), models.MinWorkflows),
		sectionRatio(len(c.Tips), models.MinTips),
		sectionRatio(len(c.CommonMistakes), models.MinMistakes),
	}

	var sum float64
	for _, r := range ratios {
		sum += r
	}
	return sum / float64(len(ratios))
}

func sectionRatio(count, minimum int) float64 {
	if minimum <= 0 {
		return 1
	}
	r := float64(count) / float64(minimum)
	if r > 1 {
		return 1
	}
	return r
}
