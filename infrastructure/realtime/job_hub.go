package realtime

import (
	"encoding/json"
	"sync"

	"content-pipeline/domain/dto"

	"github.com/gin-gonic/gin"
)

// JobHub fans job reports out to every connected SSE subscriber.
type JobHub struct {
	mu   sync.RWMutex
	subs map[chan dto.JobReport]struct{}
}

func NewJobHub() *JobHub {
	return &JobHub{subs: make(map[chan dto.JobReport]struct{})}
}

// Serve streams job_report events until the client goes away.
func (h *JobHub) Serve(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no") // disable nginx buffering

	ch := make(chan dto.JobReport, 8)
	h.addSubscriber(ch)
	defer h.removeSubscriber(ch)

	_, _ = c.Writer.Write([]byte(":ok\n\n"))
	c.Writer.Flush()

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case report := <-ch:
			data, _ := json.Marshal(report)
			_, _ = c.Writer.Write([]byte("event: job_report\n"))
			_, _ = c.Writer.Write([]byte("data: "))
			_, _ = c.Writer.Write(data)
			_, _ = c.Writer.Write([]byte("\n\n"))
			c.Writer.Flush()
		}
	}
}

// Broadcast never blocks; a subscriber with a full buffer misses the report.
func (h *JobHub) Broadcast(report dto.JobReport) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs {
		select {
		case ch <- report:
		default:
		}
	}
}

func (h *JobHub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *JobHub) addSubscriber(ch chan dto.JobReport) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subs[ch] = struct{}{}
}

func (h *JobHub) removeSubscriber(ch chan dto.JobReport) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[ch]; ok {
		delete(h.subs, ch)
		close(ch)
	}
}
