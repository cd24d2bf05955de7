package server

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/MeKo-Tech/qrlens/internal/imageio"
	"github.com/MeKo-Tech/qrlens/internal/pipeline"
)

const (
	wsReadTimeout  = 60 * time.Second
	wsPingInterval = 30 * time.Second
	wsWriteTimeout = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origins are governed by the CORS setting.
	CheckOrigin: func(*http.Request) bool { return true },
}

// WebSocketRequest is a JSON frame asking for an image to be decoded. Image
// holds the encoded file, base64 in JSON.
type WebSocketRequest struct {
	Type      string `json:"type"`
	Image     []byte `json:"image,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// WebSocketResponse answers one frame.
type WebSocketResponse struct {
	Type      string                `json:"type"`
	Status    string                `json:"status"` // "completed" or "error"
	RequestID string                `json:"request_id,omitempty"`
	Text      string                `json:"text,omitempty"`
	Texts     []string              `json:"texts,omitempty"`
	Result    *pipeline.ImageResult `json:"result,omitempty"`
	Error     string                `json:"error,omitempty"`
	ErrorType string                `json:"error_type,omitempty"`
}

// WebSocketConnWriter is the write side of a connection.
type WebSocketConnWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// decodeWebSocketHandler streams decoding: each binary frame is an image
// file, each text frame a WebSocketRequest.
func (s *Server) decodeWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	websocketConnections.Inc()
	defer websocketConnections.Dec()

	slog.Info("WebSocket connection established", "remote_addr", r.RemoteAddr)
	s.handleWebSocketConnection(r.Context(), conn)
	slog.Info("WebSocket connection closed", "remote_addr", r.RemoteAddr)
}

func (s *Server) handleWebSocketConnection(ctx context.Context, conn *websocket.Conn) {
	conn.SetReadLimit(s.maxUploadMB * 1024 * 1024)
	_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(wsPingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout)); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Error("WebSocket error", "error", err)
			}
			return
		}
		websocketMessagesTotal.WithLabelValues("received").Inc()
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))

		s.sendWebSocketResponse(conn, s.handleWebSocketMessage(ctx, messageType, data))
	}
}

// handleWebSocketMessage decodes one frame into its response.
func (s *Server) handleWebSocketMessage(ctx context.Context, messageType int, data []byte) WebSocketResponse {
	req := WebSocketRequest{Type: "image"}
	switch messageType {
	case websocket.BinaryMessage:
		req.Image = data
	case websocket.TextMessage:
		if err := json.Unmarshal(data, &req); err != nil {
			return wsError(req.RequestID, "invalid_request", fmt.Sprintf("Failed to parse request: %v", err))
		}
	default:
		return wsError("", "invalid_request", "Unsupported frame type")
	}
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	if req.Type != "image" {
		return wsError(req.RequestID, "invalid_request", "Unsupported request type: "+req.Type)
	}
	if len(req.Image) == 0 {
		return wsError(req.RequestID, "invalid_request", "No image data provided")
	}

	img, _, err := imageio.Decode(req.Image)
	if err != nil {
		return wsError(req.RequestID, "invalid_image", fmt.Sprintf("Failed to decode image: %v", err))
	}
	return s.decodeFrame(ctx, img, req.RequestID)
}

func (s *Server) decodeFrame(ctx context.Context, img image.Image, requestID string) WebSocketResponse {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	res, err := s.pipeline.ProcessImage(ctx, img)
	if err != nil {
		decodeRequestsTotal.WithLabelValues("websocket", "error").Inc()
		return wsError(requestID, "processing_error", fmt.Sprintf("Decoding failed: %v", err))
	}
	observeDecode("websocket", time.Since(start), []*pipeline.ImageResult{res})

	return WebSocketResponse{
		Type:      "decode_result",
		Status:    "completed",
		RequestID: requestID,
		Text:      pipeline.ToPlainText([]*pipeline.ImageResult{res}, false),
		Texts:     res.Texts(),
		Result:    res,
	}
}

func wsError(requestID, errorType, message string) WebSocketResponse {
	return WebSocketResponse{
		Type:      "error",
		Status:    "error",
		RequestID: requestID,
		Error:     message,
		ErrorType: errorType,
	}
}

// sendWebSocketResponse sends a response message over WebSocket.
func (s *Server) sendWebSocketResponse(conn WebSocketConnWriter, response WebSocketResponse) {
	data, err := json.Marshal(response)
	if err != nil {
		slog.Error("Failed to marshal WebSocket response", "error", err)
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		slog.Error("Failed to send WebSocket message", "error", err)
		return
	}
	websocketMessagesTotal.WithLabelValues("sent").Inc()
}
