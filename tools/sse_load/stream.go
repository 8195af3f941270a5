package main

import (
	"bufio"
	"io"
	"strings"
	"sync"

	"go.uber.org/zap"
)

type stats struct {
	mu          sync.Mutex
	connected   int64
	connectErrs int64
	streamErrs  int64
	pings       int64
	events      map[string]int64
}

func newStats() *stats {
	return &stats{events: make(map[string]int64)}
}

func (s *stats) connectedOne() {
	s.mu.Lock()
	s.connected++
	s.mu.Unlock()
}

func (s *stats) connectFailed() {
	s.mu.Lock()
	s.connectErrs++
	s.mu.Unlock()
}

func (s *stats) streamFailed() {
	s.mu.Lock()
	s.streamErrs++
	s.mu.Unlock()
}

func (s *stats) ping() {
	s.mu.Lock()
	s.pings++
	s.mu.Unlock()
}

func (s *stats) event(name string) {
	s.mu.Lock()
	s.events[name]++
	s.mu.Unlock()
}

type statsSnapshot struct {
	connected, connectErrs, streamErrs, pings int64
	events                                    map[string]int64
}

func (s statsSnapshot) total() int64 {
	var n int64
	for _, v := range s.events {
		n += v
	}
	return n
}

func (s *stats) snapshot() statsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	events := make(map[string]int64, len(s.events))
	for k, v := range s.events {
		events[k] = v
	}
	return statsSnapshot{
		connected:   s.connected,
		connectErrs: s.connectErrs,
		streamErrs:  s.streamErrs,
		pings:       s.pings,
		events:      events,
	}
}

func (s *stats) fields() []zap.Field {
	snap := s.snapshot()
	return []zap.Field{
		zap.Int64("connected", snap.connected),
		zap.Int64("connect_errs", snap.connectErrs),
		zap.Int64("stream_errs", snap.streamErrs),
		zap.Int64("events", snap.total()),
		zap.Int64("pings", snap.pings),
	}
}

// readStream counts server-sent events by name until r is exhausted.
// An event without an explicit name counts as "message".
func readStream(r io.Reader, st *stats) error {
	reader := bufio.NewReader(r)
	name := ""
	pending := false
	for {
		line, err := reader.ReadString('\n')
		line = strings.TrimRight(line, "\r\n")
		switch {
		case line == "":
			if pending {
				if name == "" {
					name = "message"
				}
				st.event(name)
			}
			name, pending = "", false
		case strings.HasPrefix(line, ":"):
			st.ping()
		case strings.HasPrefix(line, "event:"):
			name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
			pending = true
		case strings.HasPrefix(line, "data:"):
			pending = true
		}
		if err != nil {
			if err == io.EOF {
				return io.ErrUnexpectedEOF
			}
			return err
		}
	}
}
