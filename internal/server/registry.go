package server

import (
	"iter"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/dvcrn/responses-bridge/internal/stream"
	"github.com/google/uuid"
)

// streamInfo tracks one in-flight stream for /admin/streams.
type streamInfo struct {
	id        string
	endpoint  string
	backend   string
	model     string
	startedAt time.Time

	mu         sync.Mutex
	responseID string
	lastEvent  string
	events     int
}

func newStreamInfo(endpoint, backend, model string, now time.Time) *streamInfo {
	return &streamInfo{
		id:        uuid.NewString(),
		endpoint:  endpoint,
		backend:   backend,
		model:     model,
		startedAt: now,
	}
}

func (i *streamInfo) observe(ev stream.Event) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.events++
	i.lastEvent = ev.Type()
	if c, ok := ev.(stream.Created); ok {
		i.responseID = c.Response.ID
	}
}

// StreamStatus is the admin view of an in-flight stream.
type StreamStatus struct {
	ID         string    `json:"id"`
	ResponseID string    `json:"response_id,omitempty"`
	Endpoint   string    `json:"endpoint"`
	Backend    string    `json:"backend"`
	Model      string    `json:"model"`
	StartedAt  time.Time `json:"started_at"`
	Events     int       `json:"events"`
	LastEvent  string    `json:"last_event,omitempty"`
}

func (i *streamInfo) status() StreamStatus {
	i.mu.Lock()
	defer i.mu.Unlock()
	return StreamStatus{
		ID:         i.id,
		ResponseID: i.responseID,
		Endpoint:   i.endpoint,
		Backend:    i.backend,
		Model:      i.model,
		StartedAt:  i.startedAt,
		Events:     i.events,
		LastEvent:  i.lastEvent,
	}
}

// track registers info while events is being consumed.
func (s *Server) track(info *streamInfo, events iter.Seq2[stream.Event, error]) iter.Seq2[stream.Event, error] {
	return func(yield func(stream.Event, error) bool) {
		s.streams.Set(info.id, info)
		defer s.streams.Del(info.id)
		for ev, err := range events {
			if ev != nil {
				info.observe(ev)
			}
			if !yield(ev, err) {
				return
			}
		}
	}
}

// ActiveStreams lists the in-flight streams, oldest first.
func (s *Server) ActiveStreams() []StreamStatus {
	out := make([]StreamStatus, 0, int(s.streams.Len()))
	s.streams.ForEach(func(_ string, info *streamInfo) bool {
		out = append(out, info.status())
		return true
	})
	slices.SortFunc(out, func(a, b StreamStatus) int {
		return a.StartedAt.Compare(b.StartedAt)
	})
	return out
}

type streamsResponse struct {
	Object string         `json:"object"`
	Data   []StreamStatus `json:"data"`
}

// streamsHandler handles GET /admin/streams
func (s *Server) streamsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, http.StatusOK, streamsResponse{Object: "list", Data: s.ActiveStreams()})
}
