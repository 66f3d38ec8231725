package validate_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"discord-marketing/pipeline/errkind"
	"discord-marketing/pipeline/validate"
)

func TestFilterResponseRejectsMissingID(t *testing.T) {
	resp := validate.FilterResponse{
		Decisions: []validate.FilterDecision{{Keep: true}},
	}
	err := validate.Struct(&resp)
	require.Error(t, err)
	require.True(t, errkind.Is(err, errkind.Validation))
}

func TestFilterResponseAcceptsValidShape(t *testing.T) {
	resp := validate.FilterResponse{
		Decisions: []validate.FilterDecision{{ID: "1", Keep: true}},
	}
	require.NoError(t, validate.Struct(&resp))
}

func TestCategorizeResponseRejectsBadEnum(t *testing.T) {
	resp := validate.CategorizeResponse{
		Categorizations: []validate.Categorization{
			{ID: "1", PrimaryTopic: "t", Sentiment: "furious", Urgency: "high", MarketingRelevance: "high"},
		},
	}
	err := validate.Struct(&resp)
	require.Error(t, err)
}

func TestExtractResponseRejectsOutOfRangeScore(t *testing.T) {
	score := 1.5
	resp := validate.ExtractResponse{
		Extracts: []validate.Extract{
			{ID: "1", Type: "quote", Content: "c", RelevanceScore: &score},
		},
	}
	err := validate.Struct(&resp)
	require.Error(t, err)
}
