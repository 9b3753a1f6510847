package models

import (
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"
)

// SchemaVersion pins the manual shape for forward compatibility.
const SchemaVersion = 1

// Minimum item counts the generation prompt asks for and the schema enforces.
const (
	MinFeatures  = 5
	MinShortcuts = 3
	MinWorkflows = 2
	MinTips      = 3
	MinMistakes  = 2
)

// Enum values for item classification fields.
const (
	PowerBasic        = "basic"
	PowerIntermediate = "intermediate"
	PowerAdvanced     = "advanced"

	DifficultyBeginner     = "beginner"
	DifficultyIntermediate = "intermediate"
	DifficultyAdvanced     = "advanced"
)

// manualValidate is the shared validator instance for manual types.
var manualValidate *validator.Validate

var kebabRe = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

func init() {
	manualValidate = validator.New()
	_ = manualValidate.RegisterValidation("kebab", func(fl validator.FieldLevel) bool {
		return kebabRe.MatchString(fl.Field().String())
	})
}

// Overview summarizes what the tool is and who it is for.
type Overview struct {
	Description     string   `json:"description" validate:"required"`
	PrimaryUseCases []string `json:"primaryUseCases" validate:"required,min=1"`
	TargetUsers     []string `json:"targetUsers"`
	Pricing         string   `json:"pricing"`
}

// Feature describes one capability of the tool.
type Feature struct {
	ID              string   `json:"id" validate:"required,kebab"`
	Name            string   `json:"name" validate:"required"`
	Description     string   `json:"description" validate:"required"`
	WhatItsFor      string   `json:"whatItsFor" validate:"required"`
	WhenToUse       []string `json:"whenToUse"`
	Keywords        []string `json:"keywords"`
	RelatedFeatures []string `json:"relatedFeatures"`
	PowerLevel      string   `json:"powerLevel" validate:"required,oneof=basic intermediate advanced"`
	SourceIndices   []int    `json:"sourceIndices"`
}

// Shortcut describes a keyboard shortcut or quick action.
type Shortcut struct {
	ID            string   `json:"id" validate:"required,kebab"`
	Keys          string   `json:"keys" validate:"required"`
	Description   string   `json:"description" validate:"required"`
	Platforms     []string `json:"platforms"`
	Keywords      []string `json:"keywords"`
	PowerLevel    string   `json:"powerLevel" validate:"required,oneof=basic intermediate advanced"`
	SourceIndices []int    `json:"sourceIndices"`
}

// WorkflowStep is one ordered step inside a workflow.
type WorkflowStep struct {
	Step         int      `json:"step" validate:"gte=1"`
	Action       string   `json:"action" validate:"required"`
	Details      string   `json:"details"`
	FeaturesUsed []string `json:"featuresUsed"`
}

// Workflow describes a multi-step way of working with the tool.
type Workflow struct {
	ID            string         `json:"id" validate:"required,kebab"`
	Name          string         `json:"name" validate:"required"`
	Description   string         `json:"description"`
	UseCases      []string       `json:"useCases"`
	Difficulty    string         `json:"difficulty" validate:"required,oneof=beginner intermediate advanced"`
	EstimatedTime string         `json:"estimatedTime"`
	Steps         []WorkflowStep `json:"steps" validate:"required,min=1,dive"`
	SourceIndices []int          `json:"sourceIndices"`
}

// Tip is a short piece of practical advice.
type Tip struct {
	ID            string `json:"id" validate:"required,kebab"`
	Title         string `json:"title" validate:"required"`
	Content       string `json:"content" validate:"required"`
	Category      string `json:"category" validate:"required,oneof=productivity shortcuts customization collaboration automation"`
	PowerLevel    string `json:"powerLevel" validate:"required,oneof=basic intermediate advanced"`
	SourceIndices []int  `json:"sourceIndices"`
}

// CommonMistake describes a frequent user error and how to avoid it.
type CommonMistake struct {
	ID            string `json:"id" validate:"required,kebab"`
	Title         string `json:"title" validate:"required"`
	WhyItHappens  string `json:"whyItHappens"`
	HowToAvoid    string `json:"howToAvoid"`
	Severity      string `json:"severity" validate:"required,oneof=low medium high"`
	SourceIndices []int  `json:"sourceIndices"`
}

// RecentUpdate describes a recent change to the tool.
type RecentUpdate struct {
	ID            string `json:"id" validate:"required,kebab"`
	Title         string `json:"title" validate:"required"`
	Description   string `json:"description"`
	Date          string `json:"date"`
	SourceIndices []int  `json:"sourceIndices"`
}

// GeneratedContent is the shape the completion model is asked to emit.
// It is validated after the normalization repair pass.
type GeneratedContent struct {
	ToolName       string          `json:"toolName" validate:"required"`
	Overview       Overview        `json:"overview" validate:"required"`
	Features       []Feature       `json:"features" validate:"required,min=5,dive"`
	Shortcuts      []Shortcut      `json:"shortcuts" validate:"required,min=3,dive"`
	Workflows      []Workflow      `json:"workflows" validate:"required,min=2,dive"`
	Tips           []Tip           `json:"tips" validate:"required,min=3,dive"`
	CommonMistakes []CommonMistake `json:"commonMistakes" validate:"required,min=2,dive"`
	RecentUpdates  []RecentUpdate  `json:"recentUpdates" validate:"dive"`
}

// Validate checks the generated content against the generation schema.
func (c *GeneratedContent) Validate() error {
	return manualValidate.Struct(c)
}

// Manual is the persisted, immutable generation artifact. A regeneration
// produces a new version; manuals are never mutated in place.
type Manual struct {
	SchemaVersion int    `json:"schemaVersion" validate:"required,gte=1"`
	Slug          string `json:"slug" validate:"required"`

	GeneratedContent

	CoverageScore    float64   `json:"coverageScore" validate:"gte=0,lte=1"`
	GeneratedAt      time.Time `json:"generatedAt" validate:"required"`
	Citations        []string  `json:"citations"`
	GenerationTimeMs int64     `json:"generationTimeMs" validate:"gte=0"`
	Cost             Cost      `json:"cost"`
}

// Validate checks the manual against the extended persisted schema.
func (m *Manual) Validate() error {
	return manualValidate.Struct(m)
}
