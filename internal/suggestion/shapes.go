package suggestion

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// Shape adapts the ticket context to one provider request format.
type Shape interface {
	Name() string
	// Path is appended to the configured endpoint.
	Path() string
	Encode(cfg Config, req Request) (any, error)
	Decode(body []byte) (string, error)
	// Rejects reports whether status means "this shape is not accepted", allowing a fallback.
	Rejects(status int) bool
}

// GenericShape posts the ticket context as-is and reads {"suggestion": "..."}.
type GenericShape struct{}

func (GenericShape) Name() string { return "generic" }
func (GenericShape) Path() string { return "" }

func (GenericShape) Encode(_ Config, req Request) (any, error) {
	return req, nil
}

func (GenericShape) Decode(body []byte) (string, error) {
	var out struct {
		Suggestion *string `json:"suggestion"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if out.Suggestion == nil {
		return "", errMissingSuggestion
	}
	return *out.Suggestion, nil
}

func (GenericShape) Rejects(int) bool { return false }

// ResponsesShape targets the hosted provider's responses endpoint.
type ResponsesShape struct{}

func (ResponsesShape) Name() string { return "responses" }
func (ResponsesShape) Path() string { return "/responses" }

func (ResponsesShape) Encode(cfg Config, req Request) (any, error) {
	return map[string]any{
		"model":        cfg.Model,
		"instructions": cfg.SystemPrompt,
		"input":        userPrompt(req),
	}, nil
}

func (ResponsesShape) Decode(body []byte) (string, error) {
	var out struct {
		OutputText string `json:"output_text"`
		Output     []struct {
			Content []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
		} `json:"output"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if strings.TrimSpace(out.OutputText) != "" {
		return out.OutputText, nil
	}
	var parts []string
	for _, item := range out.Output {
		for _, content := range item.Content {
			if content.Type == "output_text" && content.Text != "" {
				parts = append(parts, content.Text)
			}
		}
	}
	if len(parts) == 0 {
		return "", errMissingSuggestion
	}
	return strings.Join(parts, "\n"), nil
}

func (ResponsesShape) Rejects(status int) bool {
	return isShapeRejection(status)
}

// ChatCompletionsShape targets the chat completions endpoint.
type ChatCompletionsShape struct{}

func (ChatCompletionsShape) Name() string { return "chat_completions" }
func (ChatCompletionsShape) Path() string { return "/chat/completions" }

func (ChatCompletionsShape) Encode(cfg Config, req Request) (any, error) {
	return map[string]any{
		"model": cfg.Model,
		"messages": []map[string]string{
			{"role": "system", "content": cfg.SystemPrompt},
			{"role": "user", "content": userPrompt(req)},
		},
	}, nil
}

func (ChatCompletionsShape) Decode(body []byte) (string, error) {
	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", errMissingSuggestion
	}
	return out.Choices[0].Message.Content, nil
}

func (ChatCompletionsShape) Rejects(status int) bool {
	return isShapeRejection(status)
}

func isShapeRejection(status int) bool {
	switch status {
	case http.StatusBadRequest, http.StatusNotFound, http.StatusMethodNotAllowed, http.StatusUnprocessableEntity:
		return true
	}
	return false
}

func userPrompt(req Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Campo da compilare: %s\n", req.Target)
	fmt.Fprintf(&b, "Oggetto: %s\n", req.Subject)
	if req.Product != "" {
		fmt.Fprintf(&b, "Prodotto: %s\n", req.Product)
	}
	if req.IssueDescription != "" {
		fmt.Fprintf(&b, "Problema riscontrato: %s\n", req.IssueDescription)
	}
	if req.Description != "" {
		fmt.Fprintf(&b, "Descrizione: %s\n", req.Description)
	}
	if req.RequestedBy != "" {
		fmt.Fprintf(&b, "Richiesto da: %s\n", req.RequestedBy)
	}
	return b.String()
}
