// websocket.go - WebSocket progress streaming for extraction jobs
package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/alonraif/NGL-sub000/internal/models"
)

// WebSocket message types
const (
	MsgTypeProgress = "progress"
	MsgTypeComplete = "complete"
	MsgTypeError    = "error"
)

// WSMessage is the envelope for every server -> client frame
type WSMessage struct {
	Type      string             `json:"type"`
	Job       *models.ExtractJob `json:"job,omitempty"`
	Message   string             `json:"message,omitempty"`
	Timestamp int64              `json:"timestamp"`
}

// ProgressSocketHandler pushes job progress over a WebSocket connection.
// Unlike the SSE endpoint it survives proxies that buffer event streams.
type ProgressSocketHandler struct {
	jobs     JobManager
	upgrader websocket.Upgrader
}

// NewProgressSocketHandler creates a new WebSocket progress handler
func NewProgressSocketHandler(jobs JobManager) *ProgressSocketHandler {
	return &ProgressSocketHandler{
		jobs: jobs,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// The CORS policy is enforced at the middleware layer
				return true
			},
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 4 * 1024,
		},
	}
}

// HandleJobProgressSocket upgrades the connection and streams job status
// frames until the job reaches a terminal state or the client disconnects.
func (h *ProgressSocketHandler) HandleJobProgressSocket(c echo.Context) error {
	id := c.Param("jobId")
	if id == "" {
		return NewValidationError("jobId")
	}

	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return NewBadRequestError("websocket upgrade failed", err)
	}
	defer ws.Close()

	// Drain client frames so close messages are processed
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	timeout := time.NewTimer(10 * time.Minute)
	defer timeout.Stop()

	for {
		job, ok := h.jobs.GetJob(id)
		if !ok {
			h.writeFrame(ws, WSMessage{Type: MsgTypeError, Message: "job not found"})
			return nil
		}

		msgType := MsgTypeProgress
		if jobTerminal(job.Status) {
			msgType = MsgTypeComplete
		}
		if err := h.writeFrame(ws, WSMessage{Type: msgType, Job: job}); err != nil {
			return nil
		}
		if msgType == MsgTypeComplete {
			ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			return nil
		}

		select {
		case <-ticker.C:
		case <-timeout.C:
			h.writeFrame(ws, WSMessage{Type: MsgTypeError, Message: "stream timeout"})
			return nil
		case <-done:
			return nil
		}
	}
}

func (h *ProgressSocketHandler) writeFrame(ws *websocket.Conn, msg WSMessage) error {
	msg.Timestamp = time.Now().UnixMilli()
	ws.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return ws.WriteJSON(msg)
}
