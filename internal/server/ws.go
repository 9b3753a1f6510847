package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/raphaelgruber/toolbrief/internal/models"
	"github.com/raphaelgruber/toolbrief/internal/processor"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// statusPollInterval backstops the event stream: even without progress
// events, the job status is re-checked and pushed this often.
const statusPollInterval = 2 * time.Second

type wsMessage struct {
	Kind     string                   `json:"kind"`
	Job      *models.Job              `json:"job,omitempty"`
	Progress *processor.ProgressEvent `json:"progress,omitempty"`
}

// handleJobEvents upgrades to a websocket and streams progress events
// until the job reaches a terminal state or the client disconnects.
func (s *Server) handleJobEvents(c *gin.Context) {
	id := c.Param("id")
	job, err := s.store.GetJob(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	events, cancel := s.hub.Subscribe(id)
	defer cancel()

	// Reader goroutine: its only job is to notice the client going away.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := conn.WriteJSON(wsMessage{Kind: "job_update", Job: job}); err != nil {
		return
	}
	if job.Status.Terminal() {
		return
	}

	ticker := time.NewTicker(statusPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-c.Request.Context().Done():
			return
		case ev := <-events:
			if err := conn.WriteJSON(wsMessage{Kind: "progress", Progress: &ev}); err != nil {
				return
			}
		case <-ticker.C:
			job, err := s.store.GetJob(id)
			if err != nil {
				return
			}
			if err := conn.WriteJSON(wsMessage{Kind: "job_update", Job: job}); err != nil {
				return
			}
			if job.Status.Terminal() {
				return
			}
		}
	}
}
