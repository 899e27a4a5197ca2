package utils

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const WSWriteTimeout = 10 * time.Second

var Upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// 跨域由CORS中间件和JWT控制
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WriteWSJSON 带超时写入一条JSON消息
func WriteWSJSON(conn *websocket.Conn, v any) error {
	if err := conn.SetWriteDeadline(time.Now().Add(WSWriteTimeout)); err != nil {
		return err
	}
	return conn.WriteJSON(v)
}

// CloseWS 发送正常关闭帧后关闭连接
func CloseWS(conn *websocket.Conn, reason string) {
	deadline := time.Now().Add(WSWriteTimeout)
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason), deadline)
	_ = conn.Close()
}

// WSPingInterval 进度长时间不变时的心跳间隔
const WSPingInterval = 30 * time.Second

func PingWS(conn *websocket.Conn) error {
	return conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(WSWriteTimeout))
}
