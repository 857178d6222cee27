package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/joseph-ayodele/funeral-audit/internal/common"
)

func reply(content string) map[string]any {
	return map[string]any{
		"choices": []any{
			map[string]any{"message": map[string]any{"role": "assistant", "content": content}},
		},
	}
}

func TestJSONRequestShapeAndFencedReply(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer k" {
			t.Errorf("auth = %q", r.Header.Get("Authorization"))
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode(reply("```json\n{\"issues\": [], \"accuracy\": \"100%\"}\n```"))
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "k", BaseURL: srv.URL}, nil)
	obj, err := c.JSON(context.Background(), "audit this")
	if err != nil {
		t.Fatal(err)
	}
	if obj["accuracy"] != "100%" {
		t.Errorf("obj = %v", obj)
	}
	if got["model"] != "gpt-4.1" {
		t.Errorf("model = %v", got["model"])
	}
	rf, _ := got["response_format"].(map[string]any)
	if rf["type"] != "json_object" {
		t.Errorf("response_format = %v", got["response_format"])
	}
}

func TestTextOmitsResponseFormat(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode(reply("  Certificate of Death \n"))
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "k", BaseURL: srv.URL}, nil)
	text, err := c.Text(context.Background(), "classify")
	if err != nil {
		t.Fatal(err)
	}
	if text != "Certificate of Death" {
		t.Errorf("text = %q", text)
	}
	if _, ok := got["response_format"]; ok {
		t.Error("text mode should not request json_object")
	}
}

func TestErrorsAreCollaboratorErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewClient(Config{APIKey: "k", BaseURL: srv.URL}, nil).Text(context.Background(), "x")
	if !errors.Is(err, common.ErrCollaborator) {
		t.Fatalf("err = %v, want collaborator error", err)
	}
}

func TestCallTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "k", BaseURL: srv.URL, Timeout: 20 * time.Millisecond}, nil)
	_, err := c.Text(context.Background(), "x")
	if !errors.Is(err, common.ErrCollaborator) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want timed-out collaborator error", err)
	}
}

func TestUnparsableJSONFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(reply("sorry, no"))
	}))
	defer srv.Close()

	obj, err := NewClient(Config{APIKey: "k", BaseURL: srv.URL}, nil).JSON(context.Background(), "x")
	if err != nil {
		t.Fatal(err)
	}
	if obj["raw_text"] != "sorry, no" {
		t.Errorf("obj = %v", obj)
	}
}

func TestEmptyTextIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(reply(" \n"))
	}))
	defer srv.Close()

	text, err := NewClient(Config{APIKey: "k", BaseURL: srv.URL}, nil).Text(context.Background(), "classify")
	if err != nil || text != "" {
		t.Fatalf("text = %q, err = %v", text, err)
	}
}
