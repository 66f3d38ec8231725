// Package validate checks parsed model output against each stage's
// required shape using github.com/go-playground/validator/v10 struct
// tags, rather than a hand-rolled JSON-schema engine. One struct per
// stage response, matching spec §4.F exactly.
package validate

import (
	"github.com/go-playground/validator/v10"

	"discord-marketing/pipeline/errkind"
)

var validate = validator.New()

// FilterDecision is one item of a FilterResponse.
type FilterDecision struct {
	ID           string  `json:"id" validate:"required"`
	Keep         bool    `json:"keep"`
	Reason       string  `json:"reason,omitempty"`
	QualityScore *float64 `json:"quality_score,omitempty" validate:"omitempty,min=0,max=1"`
}

// FilterResponse is the required shape of the filter stage's output.
type FilterResponse struct {
	Decisions []FilterDecision `json:"decisions" validate:"required,dive"`
}

// Categorization is one item of a CategorizeResponse.
type Categorization struct {
	ID                string   `json:"id" validate:"required"`
	PrimaryTopic      string   `json:"primary_topic" validate:"required"`
	SecondaryTopics   []string `json:"secondary_topics,omitempty"`
	Sentiment         string   `json:"sentiment" validate:"required,oneof=positive neutral negative mixed"`
	Urgency           string   `json:"urgency" validate:"required,oneof=high medium low"`
	MarketingRelevance string `json:"marketing_relevance" validate:"required,oneof=high medium low"`
}

// CategorizeResponse is the required shape of the categorize stage's output.
type CategorizeResponse struct {
	Categorizations []Categorization `json:"categorizations" validate:"required,dive"`
}

// Summary is the body of a SummarizeResponse.
type Summary struct {
	Headline          string   `json:"headline" validate:"required"`
	KeyPoints         []string `json:"key_points" validate:"required"`
	NotableMessages   []string `json:"notable_messages,omitempty"`
	Themes            []string `json:"themes,omitempty"`
	SentimentOverview string   `json:"sentiment_overview,omitempty"`
	ActionItems       []string `json:"action_items,omitempty"`
}

// SummarizeResponse is the required shape of the summarize stage's output.
type SummarizeResponse struct {
	Summary Summary `json:"summary" validate:"required"`
}

// Extract is one item of an ExtractResponse.
type Extract struct {
	ID                 string   `json:"id" validate:"required"`
	SourceMessageID    string   `json:"source_message_id,omitempty"`
	Type               string   `json:"type" validate:"required"`
	Content            string   `json:"content" validate:"required"`
	Context            string   `json:"context,omitempty"`
	RelevanceScore     *float64 `json:"relevance_score,omitempty" validate:"omitempty,min=0,max=1"`
	RequiresPermission *bool    `json:"requires_permission,omitempty"`
}

// ExtractResponse is the required shape of the extract stage's output.
type ExtractResponse struct {
	Extracts []Extract `json:"extracts" validate:"required,dive"`
}

// Struct validates v's tags, wrapping any failure as a Validation-kind error.
func Struct(v any) error {
	if err := validate.Struct(v); err != nil {
		return errkind.Wrap(err, errkind.Validation, "response failed schema validation")
	}
	return nil
}
