package utils

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	EventProgress = "progress"
	EventError    = "error"
	EventDone     = "done"
)

// SSEKeepAliveInterval 长时间没有进度时发送注释行，避免被代理断开
const SSEKeepAliveInterval = 15 * time.Second

func SetSSEHeaders(c *gin.Context) {
	header := c.Writer.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")
}

func SendSSEMessage(c *gin.Context, event string, data any) {
	c.SSEvent(event, data)
	c.Writer.Flush()
}

// SendSSEKeepAlive 写入一行SSE注释，客户端会忽略
func SendSSEKeepAlive(c *gin.Context) error {
	if _, err := fmt.Fprint(c.Writer, ": keep-alive\n\n"); err != nil {
		return err
	}
	c.Writer.Flush()
	return nil
}
