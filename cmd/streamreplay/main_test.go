package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

const geminiCapture = `[{"candidates":[{"content":{"role":"model","parts":[{"text":"Hello "}]}}]}
,{"candidates":[{"content":{"role":"model","parts":[{"text":"world"}]},"finishReason":"STOP"}]}]`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func run(t *testing.T, args ...string) string {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	require.NoError(t, cmd.Execute(), out.String())
	return out.String()
}

func TestEventsCommand(t *testing.T) {
	t.Parallel()

	in := writeFile(t, "gemini.json", geminiCapture)

	out := run(t, "events", "--jsonl", in)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.NotEmpty(t, lines)
	assert.Equal(t, "response.created", gjson.Get(lines[0], "type").String())
	last := lines[len(lines)-1]
	assert.Equal(t, "response.completed", gjson.Get(last, "type").String())
	assert.Equal(t, "Hello world", gjson.Get(last, "response.output.0.content.0.text").String())

	sse := run(t, "events", in)
	assert.True(t, strings.HasPrefix(sse, "event: response.created\ndata: "))
}

func TestAssembleCommand(t *testing.T) {
	t.Parallel()

	raw := writeFile(t, "gemini.json", geminiCapture)
	sse := writeFile(t, "events.sse", run(t, "events", raw))

	fromEvents := gjson.Parse(run(t, "assemble", sse))
	fromUpstream := gjson.Parse(run(t, "assemble", "--upstream", raw))

	assert.Equal(t, "completed", fromEvents.Get("status").String())
	assert.Equal(t, "Hello world", fromEvents.Get("output.0.content.0.text").String())
	assert.JSONEq(t, fromUpstream.Get("output").Raw, fromEvents.Get("output").Raw)

	// Cut the capture before its terminal event.
	text, err := os.ReadFile(sse)
	require.NoError(t, err)
	cut := string(text[:strings.Index(string(text), "event: response.output_text.done")])
	partial := gjson.Parse(run(t, "assemble", writeFile(t, "partial.sse", cut)))
	assert.Equal(t, "incomplete", partial.Get("status").String())
}

func TestMarkdownCommand(t *testing.T) {
	t.Parallel()

	in := writeFile(t, "doc.md", "# Title\n\nSome text.\n")
	out := run(t, "markdown", "--chunk", "3", in)

	assert.Contains(t, out, "heading")
	assert.Contains(t, out, "level=1")
	assert.Contains(t, out, "paragraph")
}

func TestUnknownProvider(t *testing.T) {
	t.Parallel()

	cmd := newRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"events", "--provider", "cohere", writeFile(t, "x", "")})
	assert.Error(t, cmd.Execute())
}
