package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/joseph-ayodele/funeral-audit/internal/common"
	"github.com/joseph-ayodele/funeral-audit/internal/document"
	"github.com/joseph-ayodele/funeral-audit/internal/llm/openai"
)

func chatServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{
				map[string]any{"message": map[string]any{"role": "assistant", "content": content}},
			},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClassifyOverOpenAI(t *testing.T) {
	catalog, err := document.DefaultCatalog()
	if err != nil {
		t.Fatal(err)
	}
	pages := []document.Page{{Segments: []document.Segment{{Text: "CERTIFICATE OF DEATH", Confidence: 0.9}}}}

	cases := []struct {
		name  string
		reply string
	}{
		{"empty reply", ""},
		{"blank reply", "  \n"},
		{"unlisted label", "Grocery Receipt"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := chatServer(t, tc.reply)
			c := NewClassifier(openai.NewClient(openai.Config{APIKey: "k", BaseURL: srv.URL}, nil), catalog, nil)
			_, err := c.Classify(context.Background(), pages)
			if !errors.Is(err, common.ErrUnknownDocumentType) {
				t.Fatalf("err = %v, want unknown document type", err)
			}
			if common.CodeOf(err) != common.CodeUnknownDocumentType {
				t.Errorf("code = %s", common.CodeOf(err))
			}
		})
	}

	srv := chatServer(t, catalog.Labels()[0])
	c := NewClassifier(openai.NewClient(openai.Config{APIKey: "k", BaseURL: srv.URL}, nil), catalog, nil)
	if _, err := c.Classify(context.Background(), pages); err != nil {
		t.Errorf("known label err = %v", err)
	}
}
