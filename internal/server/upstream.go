package server

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/dvcrn/responses-bridge/internal/credentials"
	"github.com/dvcrn/responses-bridge/internal/decode"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const (
	anthropicVersion         = "2023-06-01"
	defaultAnthropicMaxToken = 4096
)

// upstreamRequest is a backend request before credentials are attached.
type upstreamRequest struct {
	URL  string
	Body []byte
	auth func(h http.Header, apiKey string)
}

// doc builds a JSON document with sjson, keeping the first error.
type doc struct {
	b   []byte
	err error
}

func newDoc(template string) *doc {
	return &doc{b: []byte(template)}
}

func (d *doc) set(path string, v any) {
	if d.err == nil {
		d.b, d.err = sjson.SetBytes(d.b, path, v)
	}
}

func (d *doc) raw(path, raw string) {
	if d.err == nil {
		d.b, d.err = sjson.SetRawBytes(d.b, path, []byte(raw))
	}
}

// rawObject returns s when it is a JSON object, otherwise "{}".
func rawObject(s string) string {
	if s = strings.TrimSpace(s); s != "" && gjson.Valid(s) && gjson.Parse(s).IsObject() {
		return s
	}
	return "{}"
}

// buildUpstreamRequest maps the prompt onto the configured backend.
func (s *Server) buildUpstreamRequest(p Prompt) (upstreamRequest, error) {
	base := s.cfg.UpstreamBaseURL
	switch s.cfg.Provider() {
	case decode.Gemini:
		body, err := geminiBody(p)
		target := fmt.Sprintf("%s/models/%s:streamGenerateContent", base, url.PathEscape(p.Model))
		if s.cfg.GeminiUseSSE {
			target += "?alt=sse"
		}
		return upstreamRequest{URL: target, Body: body, auth: func(h http.Header, key string) {
			h.Set("x-goog-api-key", key)
		}}, err
	case decode.OpenAI:
		body, err := openAIBody(p)
		return upstreamRequest{URL: base + "/chat/completions", Body: body, auth: func(h http.Header, key string) {
			h.Set("authorization", "Bearer "+key)
		}}, err
	case decode.Anthropic:
		body, err := anthropicBody(p)
		return upstreamRequest{URL: base + "/messages", Body: body, auth: func(h http.Header, key string) {
			h.Set("x-api-key", key)
			h.Set("anthropic-version", anthropicVersion)
		}}, err
	}
	return upstreamRequest{}, fmt.Errorf("unsupported backend %q", s.cfg.Backend)
}

func geminiBody(p Prompt) ([]byte, error) {
	d := newDoc(`{"contents":[]}`)
	if p.Instructions != "" {
		d.set("systemInstruction.parts.0.text", p.Instructions)
	}

	names := map[string]string{}
	for i, m := range p.Messages {
		prefix := fmt.Sprintf("contents.%d", i)
		switch m.Role {
		case "assistant":
			d.set(prefix+".role", "model")
			n := 0
			if m.Content != "" {
				d.set(fmt.Sprintf("%s.parts.%d.text", prefix, n), m.Content)
				n++
			}
			for _, c := range m.ToolCalls {
				names[c.ID] = c.Name
				d.set(fmt.Sprintf("%s.parts.%d.functionCall.name", prefix, n), c.Name)
				d.raw(fmt.Sprintf("%s.parts.%d.functionCall.args", prefix, n), rawObject(c.Arguments))
				n++
			}
			if n == 0 {
				d.set(prefix+".parts.0.text", "")
			}
		case "tool":
			d.set(prefix+".role", "user")
			d.set(prefix+".parts.0.functionResponse.name", names[m.ToolCallID])
			d.set(prefix+".parts.0.functionResponse.response.result", m.Content)
		default:
			d.set(prefix+".role", "user")
			d.set(prefix+".parts.0.text", m.Content)
		}
	}

	for i, t := range p.Tools {
		prefix := fmt.Sprintf("tools.0.functionDeclarations.%d", i)
		d.set(prefix+".name", t.Name)
		if t.Description != "" {
			d.set(prefix+".description", t.Description)
		}
		if t.Parameters != "" {
			d.raw(prefix+".parameters", t.Parameters)
		}
	}
	if p.MaxOutputTokens > 0 {
		d.set("generationConfig.maxOutputTokens", p.MaxOutputTokens)
	}
	return d.b, d.err
}

func openAIBody(p Prompt) ([]byte, error) {
	d := newDoc(`{"stream":true,"stream_options":{"include_usage":true},"messages":[]}`)
	d.set("model", p.Model)

	i := 0
	next := func() string {
		prefix := fmt.Sprintf("messages.%d", i)
		i++
		return prefix
	}
	if p.Instructions != "" {
		prefix := next()
		d.set(prefix+".role", "system")
		d.set(prefix+".content", p.Instructions)
	}
	for _, m := range p.Messages {
		prefix := next()
		d.set(prefix+".role", m.Role)
		switch m.Role {
		case "assistant":
			if m.Content != "" || len(m.ToolCalls) == 0 {
				d.set(prefix+".content", m.Content)
			}
			for j, c := range m.ToolCalls {
				call := fmt.Sprintf("%s.tool_calls.%d", prefix, j)
				d.set(call+".id", c.ID)
				d.set(call+".type", "function")
				d.set(call+".function.name", c.Name)
				d.set(call+".function.arguments", c.Arguments)
			}
		case "tool":
			d.set(prefix+".tool_call_id", m.ToolCallID)
			d.set(prefix+".content", m.Content)
		default:
			d.set(prefix+".content", m.Content)
		}
	}

	for j, t := range p.Tools {
		prefix := fmt.Sprintf("tools.%d", j)
		d.set(prefix+".type", "function")
		d.set(prefix+".function.name", t.Name)
		if t.Description != "" {
			d.set(prefix+".function.description", t.Description)
		}
		if t.Parameters != "" {
			d.raw(prefix+".function.parameters", t.Parameters)
		}
	}
	if p.MaxOutputTokens > 0 {
		d.set("max_completion_tokens", p.MaxOutputTokens)
	}
	return d.b, d.err
}

func anthropicBody(p Prompt) ([]byte, error) {
	d := newDoc(`{"stream":true,"messages":[]}`)
	d.set("model", p.Model)
	maxTokens := p.MaxOutputTokens
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxToken
	}
	d.set("max_tokens", maxTokens)
	if p.Instructions != "" {
		d.set("system", p.Instructions)
	}

	for i, m := range p.Messages {
		prefix := fmt.Sprintf("messages.%d", i)
		switch m.Role {
		case "assistant":
			d.set(prefix+".role", "assistant")
			n := 0
			if m.Content != "" || len(m.ToolCalls) == 0 {
				d.set(prefix+".content.0.type", "text")
				d.set(prefix+".content.0.text", m.Content)
				n++
			}
			for _, c := range m.ToolCalls {
				block := fmt.Sprintf("%s.content.%d", prefix, n)
				d.set(block+".type", "tool_use")
				d.set(block+".id", c.ID)
				d.set(block+".name", c.Name)
				d.raw(block+".input", rawObject(c.Arguments))
				n++
			}
		case "tool":
			d.set(prefix+".role", "user")
			d.set(prefix+".content.0.type", "tool_result")
			d.set(prefix+".content.0.tool_use_id", m.ToolCallID)
			d.set(prefix+".content.0.content", m.Content)
		default:
			d.set(prefix+".role", "user")
			d.set(prefix+".content", m.Content)
		}
	}

	for j, t := range p.Tools {
		prefix := fmt.Sprintf("tools.%d", j)
		d.set(prefix+".name", t.Name)
		if t.Description != "" {
			d.set(prefix+".description", t.Description)
		}
		schema := t.Parameters
		if schema == "" {
			schema = `{"type":"object","properties":{}}`
		}
		d.raw(prefix+".input_schema", schema)
	}
	return d.b, d.err
}

func (s *Server) makeUpstreamRequest(ctx context.Context, up upstreamRequest, apiKey string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, up.URL, bytes.NewReader(up.Body))
	if err != nil {
		return nil, fmt.Errorf("failed to create upstream request: %w", err)
	}
	req.Header.Set("content-type", "application/json")
	req.Header.Set("accept", "text/event-stream")
	up.auth(req.Header, strings.TrimSpace(apiKey))

	s.logger.Debug().
		Str("url", up.URL).
		Str("key_preview", credentials.Preview(apiKey)).
		Int("body_bytes", len(up.Body)).
		Msg("Upstream request")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	return resp, nil
}

// makeUpstreamRequestWithRetry sends the request, refreshing credentials and
// retrying once when the backend answers 401.
func (s *Server) makeUpstreamRequestWithRetry(ctx context.Context, up upstreamRequest) (*http.Response, error) {
	apiKey, err := s.credsFetcher.GetCredentials()
	if err != nil {
		return nil, fmt.Errorf("failed to get credentials: %w", err)
	}

	resp, err := s.makeUpstreamRequest(ctx, up, apiKey)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}

	s.logger.Warn().Msg("Received 401 Unauthorized, refreshing credentials...")
	resp.Body.Close()

	if err := s.credsFetcher.RefreshCredentials(); err != nil {
		return nil, fmt.Errorf("credentials rejected and refresh failed: %w", err)
	}
	apiKey, err = s.credsFetcher.GetCredentials()
	if err != nil {
		return nil, fmt.Errorf("failed to get refreshed credentials: %w", err)
	}

	resp, err = s.makeUpstreamRequest(ctx, up, apiKey)
	if err != nil {
		return nil, fmt.Errorf("retry request failed: %w", err)
	}
	if resp.StatusCode == http.StatusUnauthorized {
		s.logger.Error().Msg("Still received 401 after refreshing credentials, giving up")
	} else {
		s.logger.Info().Msg("Request succeeded after refreshing credentials")
	}
	return resp, nil
}
