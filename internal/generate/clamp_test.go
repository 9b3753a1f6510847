package generate

import (
	"math"
	"reflect"
	"testing"

	"github.com/raphaelgruber/toolbrief/internal/models"
)

func TestClampSourceIndices(t *testing.T) {
	content := &models.GeneratedContent{
		Features: []models.Feature{
			{Name: "a", SourceIndices: []int{0, 5, 2, -1}},
		},
		Shortcuts: []models.Shortcut{
			{Keys: "Cmd+K", SourceIndices: []int{1, 3}},
		},
		CommonMistakes: []models.CommonMistake{
			{Title: "m", SourceIndices: []int{2, 4}},
		},
	}

	ClampSourceIndices(content, 3)

	if got := content.Features[0].SourceIndices; !reflect.DeepEqual(got, []int{0, 2}) {
		t.Errorf("feature indices = %v", got)
	}
	if got := content.Shortcuts[0].SourceIndices; !reflect.DeepEqual(got, []int{1}) {
		t.Errorf("shortcut indices = %v", got)
	}
	if got := content.CommonMistakes[0].SourceIndices; !reflect.DeepEqual(got, []int{2}) {
		t.Errorf("mistake indices = %v", got)
	}
}

func TestClampSourceIndicesNoCitations(t *testing.T) {
	content := &models.GeneratedContent{
		Features: []models.Feature{{SourceIndices: []int{0, 1}}},
	}

	ClampSourceIndices(content, 0)

	if got := len(content.Features[0].SourceIndices); got != 0 {
		t.Errorf("kept %d indices with zero citations", got)
	}
}

func TestCoverageScore(t *testing.T) {
	full := &models.GeneratedContent{
		Features:       make([]models.Feature, models.MinFeatures),
		Shortcuts:      make([]models.Shortcut, models.MinShortcuts),
		Workflows:      make([]models.Workflow, models.MinWorkflows),
		Tips:           make([]models.Tip, models.MinTips),
		CommonMistakes: make([]models.CommonMistake, models.MinMistakes),
	}
	if got := CoverageScore(full); got != 1 {
		t.Errorf("full manual score = %v, want 1", got)
	}

	// Exceeding a minimum does not push the score past 1.
	full.Features = make([]models.Feature, models.MinFeatures*3)
	if got := CoverageScore(full); got != 1 {
		t.Errorf("oversized manual score = %v, want 1", got)
	}

	empty := &models.GeneratedContent{}
	if got := CoverageScore(empty); got != 0 {
		t.Errorf("empty manual score = %v, want 0", got)
	}

	partial := &models.GeneratedContent{
		Features:  make([]models.Feature, models.MinFeatures), // 1.0
		Shortcuts: make([]models.Shortcut, 0),                 // 0.0
		Workflows: make([]models.Workflow, 1),                 // 0.5
		Tips:      make([]models.Tip, 0),
		CommonMistakes: make([]models.CommonMistake,
			models.MinMistakes), // 1.0
	}
	want := (1.0 + 0 + 0.5 + 0 + 1.0) / 5
	if got := CoverageScore(partial); math.Abs(got-want) > 1e-9 {
		t.Errorf("partial score = %v, want %v", got, want)
	}
}
