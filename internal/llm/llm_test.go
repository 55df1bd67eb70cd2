package llm

import (
	"context"
	"encoding/json"
	"testing"

	"google.golang.org/genai"
)

func TestReviewSchema(t *testing.T) {
	schema := reviewSchema()

	if schema.Type != genai.TypeObject {
		t.Errorf("expected object schema, got %v", schema.Type)
	}
	for _, field := range []string{"novelty", "methodology", "relevance", "critique"} {
		prop, ok := schema.Properties[field]
		if !ok {
			t.Errorf("schema missing field %q", field)
			continue
		}
		if field == "critique" {
			if prop.Type != genai.TypeString {
				t.Errorf("critique should be a string, got %v", prop.Type)
			}
		} else if prop.Type != genai.TypeInteger {
			t.Errorf("%s should be an integer, got %v", field, prop.Type)
		}
	}
	if len(schema.Required) != 4 {
		t.Errorf("expected all 4 fields required, got %v", schema.Required)
	}
}

func TestReviewResultUnmarshal(t *testing.T) {
	raw := `{"novelty": 7, "methodology": 5, "relevance": 9, "critique": "Strong empirical section, weak baselines."}`

	var result ReviewResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if result.Novelty != 7 || result.Methodology != 5 || result.Relevance != 9 {
		t.Errorf("unexpected scores: %+v", result)
	}
	if result.Critique == "" {
		t.Error("expected critique text")
	}
}

func TestNewClientRequiresAPIKey(t *testing.T) {
	if _, err := NewClient(context.Background(), Config{}); err == nil {
		t.Error("expected error for missing API key")
	}
}
