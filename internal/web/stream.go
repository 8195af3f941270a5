package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/vadiminshakov/somtrade/internal/domain"
	"go.uber.org/zap"
)

var (
	snapshotPollInterval = 3 * time.Second
	heartbeatInterval    = 20 * time.Second
)

const fullHistoryTail = 100

// BalanceStream replays the balance snapshot log as server-sent events and
// follows it. Clients resume with Last-Event-ID or ?last_event_id=.
func (s *Server) BalanceStream(c *gin.Context) {
	if s.deps.Snapshots == nil {
		abortError(c, http.StatusServiceUnavailable, codeInternal, "snapshot store not available")
		return
	}
	w := c.Writer
	r := c.Request

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	pollTicker := time.NewTicker(snapshotPollInterval)
	defer pollTicker.Stop()

	var wake chan domain.BalanceSnapshot
	if s.deps.Broadcaster != nil {
		wake = s.deps.Broadcaster.Subscribe()
		defer s.deps.Broadcaster.Unsubscribe(wake)
	}

	lastIndex := s.parseLastEventID(r.Header.Get("Last-Event-ID"), r.URL.Query().Get("last_event_id"))
	resumedFrom := lastIndex
	isFirstLoad := lastIndex == 0
	sendSnapshots := func() error {
		records, err := s.deps.Snapshots.SnapshotsAfter(lastIndex)
		if err != nil {
			return err
		}

		toSend := records
		if isFirstLoad {
			toSend = thinRecords(records)
			isFirstLoad = false
		}

		for _, record := range toSend {
			payload, err := json.Marshal(record.Snapshot)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "id: %d\n", record.Index)
			fmt.Fprintf(w, "event: balance\n")
			fmt.Fprintf(w, "data: %s\n\n", payload)
			w.Flush()
			lastIndex = record.Index
		}
		return nil
	}

	if err := sendSnapshots(); err != nil {
		s.l.Error("balance stream initial load", zap.Error(err))
		fmt.Fprintf(w, "event: error\ndata: {\"error\":\"failed to load snapshots\"}\n\n")
		w.Flush()
		return
	}

	// lets the client leave its loading state when there is nothing to replay
	if lastIndex == resumedFrom {
		fmt.Fprintf(w, "event: no_data\n")
		fmt.Fprintf(w, "data: {}\n\n")
		w.Flush()
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprintf(w, ": ping\n\n")
			w.Flush()
		case <-wake:
			if err := sendSnapshots(); err != nil {
				s.l.Warn("balance stream push", zap.Error(err))
			}
		case <-pollTicker.C:
			if err := sendSnapshots(); err != nil {
				s.l.Warn("balance stream poll", zap.Error(err))
			}
		}
	}
}

// parseLastEventID prefers the header; the query parameter allows manual reconnects.
func (s *Server) parseLastEventID(headerVal, queryVal string) uint64 {
	idStr := strings.TrimSpace(headerVal)
	if idStr == "" {
		idStr = strings.TrimSpace(queryVal)
	}
	if idStr == "" {
		return 0
	}

	id, err := strconv.ParseUint(idStr, 10, 64)
	if err != nil {
		s.l.Warn("invalid last event id", zap.String("id", idStr), zap.Error(err))
		return 0
	}
	return id
}

// thinRecords keeps the last fullHistoryTail records and exponentially thins the older ones.
func thinRecords(records []domain.BalanceSnapshotRecord) []domain.BalanceSnapshotRecord {
	if len(records) <= fullHistoryTail {
		return records
	}

	older := records[:len(records)-fullHistoryTail]
	var thinned []domain.BalanceSnapshotRecord

	skip := 1
	for i := len(older) - 1; i >= 0; i-- {
		thinned = append(thinned, older[i])
		i -= skip
		if (len(older)-1-i)%12 == 0 {
			skip *= 2
		}
	}
	for l, r := 0, len(thinned)-1; l < r; l, r = l+1, r-1 {
		thinned[l], thinned[r] = thinned[r], thinned[l]
	}

	return append(thinned, records[len(records)-fullHistoryTail:]...)
}
