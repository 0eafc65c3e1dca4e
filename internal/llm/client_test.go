package llm

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
)

type roundTrip func(*http.Request) *http.Response

func (rt roundTrip) RoundTrip(req *http.Request) (*http.Response, error) {
	return rt(req), nil
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}
}

func TestChat(t *testing.T) {
	var gotURL, gotAuth, gotBody string
	client := &Client{
		BaseURL: "https://api.test/",
		APIKey:  "secret",
		Model:   DefaultModel,
		HTTPClient: &http.Client{
			Transport: roundTrip(func(req *http.Request) *http.Response {
				gotURL = req.URL.String()
				gotAuth = req.Header.Get("Authorization")
				body, _ := io.ReadAll(req.Body)
				gotBody = string(body)
				return jsonResponse(200, `{"choices":[{"message":{"role":"assistant","content":"  ethnographic \n"}}]}`)
			}),
		},
	}
	out, err := client.Chat(context.Background(), "system prompt", "user prompt")
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if out != "ethnographic" {
		t.Fatalf("unexpected chat output %q", out)
	}
	if gotURL != "https://api.test/v1/chat/completions" {
		t.Fatalf("unexpected url %s", gotURL)
	}
	if gotAuth != "Bearer secret" {
		t.Fatalf("unexpected auth header %q", gotAuth)
	}
	if !strings.Contains(gotBody, `"deepseek-chat"`) || !strings.Contains(gotBody, "user prompt") {
		t.Fatalf("unexpected payload %s", gotBody)
	}
}

func TestChatEmptyChoices(t *testing.T) {
	client := &Client{
		BaseURL: "https://api.test",
		Model:   "m",
		HTTPClient: &http.Client{
			Transport: roundTrip(func(req *http.Request) *http.Response {
				return jsonResponse(200, `{"choices":[]}`)
			}),
		},
	}
	if _, err := client.Chat(context.Background(), "s", "u"); err == nil {
		t.Fatal("expected error for empty choices")
	}
}

func TestChatServerError(t *testing.T) {
	client := &Client{
		BaseURL: "https://api.test",
		Model:   "m",
		HTTPClient: &http.Client{
			Transport: roundTrip(func(req *http.Request) *http.Response {
				return jsonResponse(500, `{"error":{"message":"bad","type":"server_error"}}`)
			}),
		},
	}
	if _, err := client.Complete(context.Background(), "s", "u"); err == nil {
		t.Fatal("expected error")
	}
}

func TestChatRequiresModel(t *testing.T) {
	client := &Client{BaseURL: "https://api.test"}
	if _, err := client.Chat(context.Background(), "s", "u"); err == nil {
		t.Fatal("expected configuration error")
	}
}
