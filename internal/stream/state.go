// Package stream folds normalized content into the Responses streaming event
// sequence.
package stream

import (
	"strconv"
	"strings"
	"time"

	"github.com/dvcrn/responses-bridge/internal/markdown"
	"github.com/google/uuid"
)

// IDFunc generates the n-th id of a stream for the given prefix.
type IDFunc func(prefix string, n int) string

// RandomIDs produces ids like "msg_3f0c...".
func RandomIDs(prefix string, _ int) string {
	return prefix + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// SequentialIDs produces ids like "msg_2"; reproducible across runs.
func SequentialIDs(prefix string, n int) string {
	return prefix + "_" + strconv.Itoa(n)
}

// Config is the part of a State that survives Reset.
type Config struct {
	Model    string
	Markdown markdown.Options
	IDs      IDFunc
	Now      func() time.Time
}

// Phase is the lifecycle position of a stream.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseStreaming
	PhaseCompleted
	PhaseIncomplete
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseStreaming:
		return "streaming"
	case PhaseCompleted:
		return "completed"
	case PhaseIncomplete:
		return "incomplete"
	case PhaseFailed:
		return "failed"
	}
	return "unknown"
}

// Terminal reports whether the stream has ended.
func (p Phase) Terminal() bool {
	return p >= PhaseCompleted
}

// OpenMessage is the message item currently receiving text.
type OpenMessage struct {
	ID          string
	OutputIndex int
	Text        string
}

// ToolCallRecord is a function call observed in this stream.
type ToolCallRecord struct {
	ItemID      string
	OutputIndex int
	Name        string
	Arguments   string
}

// State is everything the reducer knows about one stream. It is a value:
// Reduce never modifies the State it is given, and maps and slices are copied
// before they are written. A State belongs to exactly one stream.
type State struct {
	cfg Config

	ResponseID string
	CreatedAt  int64
	// SequenceNumber is the number of the last emitted event.
	SequenceNumber int
	// OutputIndex is the index the next opened item receives.
	OutputIndex int
	// ContentIndex counts characters emitted for the open message.
	ContentIndex int
	Message      *OpenMessage
	// ToolCalls is keyed by call id; Signatures maps name+arguments to it.
	ToolCalls  map[string]ToolCallRecord
	Signatures map[string]string
	Segmenter  markdown.Segmenter
	Phase      Phase
	Output     []Item
	Usage      *Usage

	idCount int
}

// New returns an idle state.
func New(cfg Config) State {
	if cfg.IDs == nil {
		cfg.IDs = RandomIDs
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return State{
		cfg:        cfg,
		ToolCalls:  map[string]ToolCallRecord{},
		Signatures: map[string]string{},
		Segmenter:  markdown.NewSegmenter(cfg.Markdown),
	}
}

// Reset discards all stream progress and keeps the configuration.
func (s State) Reset() State {
	return New(s.cfg)
}

// Config returns the configuration the state was created with.
func (s State) Config() Config {
	return s.cfg
}

func (s *State) newID(prefix string) string {
	s.idCount++
	return s.cfg.IDs(prefix, s.idCount)
}

// Snapshot returns the response object as of the current state.
func (s State) Snapshot() Response {
	status := StatusInProgress
	switch s.Phase {
	case PhaseCompleted:
		status = StatusCompleted
	case PhaseIncomplete:
		status = StatusIncomplete
	case PhaseFailed:
		status = StatusFailed
	}
	output := make([]Item, len(s.Output))
	copy(output, s.Output)
	return Response{
		ID:        s.ResponseID,
		Object:    "response",
		CreatedAt: s.CreatedAt,
		Model:     s.cfg.Model,
		Status:    status,
		Output:    output,
		Usage:     s.Usage,
	}
}
