// Package decode turns provider-shaped JSON frames into provider-agnostic
// content pieces.
package decode

import (
	"errors"
	"fmt"
	"strings"
)

// PlaceholderToolName names a tool call whose frame carried no name.
const PlaceholderToolName = "unknown_function"

// ErrUnknownProvider is returned by New for an unsupported provider.
var ErrUnknownProvider = errors.New("decode: unknown provider")

// Provider identifies an upstream wire dialect.
type Provider string

const (
	Gemini    Provider = "gemini"
	OpenAI    Provider = "openai"
	Anthropic Provider = "anthropic"
)

// Piece is one normalized unit of stream content.
type Piece interface {
	piece()
}

// Text is a fragment of assistant text.
type Text struct {
	Text string
}

// ToolCall is one complete function invocation.
type ToolCall struct {
	Name      string
	Arguments string
	CallID    string
}

// Completion marks the end of generation. Reason is the provider's finish
// reason, verbatim.
type Completion struct {
	Reason string
	Usage  *Usage
}

// Error is a failure reported in-band by the backend.
type Error struct {
	Code    string
	Message string
}

// Usage is the token accounting reported with a completion.
type Usage struct {
	InputTokens     int
	OutputTokens    int
	ReasoningTokens int
	TotalTokens     int
}

func (Text) piece()       {}
func (ToolCall) piece()   {}
func (Completion) piece() {}
func (Error) piece()      {}

var (
	_ Piece = Text{}
	_ Piece = ToolCall{}
	_ Piece = Completion{}
	_ Piece = Error{}
)

// Decoder maps frames to pieces. Decoders for providers that stream tool
// arguments in fragments keep per-stream state, so a Decoder must not be
// shared between streams.
type Decoder interface {
	// Decode returns the pieces carried by one frame. Malformed or
	// unrecognized frames yield no pieces.
	Decode(frame string) []Piece
	// Flush releases anything still held when the transport ends.
	Flush() []Piece
}

// New returns a fresh decoder for provider.
func New(provider Provider) (Decoder, error) {
	switch Provider(strings.ToLower(string(provider))) {
	case Gemini:
		return &geminiDecoder{}, nil
	case OpenAI:
		return newOpenAIDecoder(), nil
	case Anthropic:
		return newAnthropicDecoder(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, provider)
	}
}

func toolName(name string) string {
	if strings.TrimSpace(name) == "" {
		return PlaceholderToolName
	}
	return name
}
