package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"anoa.com/yamdb/internal/logging"
	"anoa.com/yamdb/internal/metrics"
	ratingfeed "anoa.com/yamdb/internal/modules/ratingfeed/service"
	titleDto "anoa.com/yamdb/internal/modules/title/dto"
	"anoa.com/yamdb/pkg/apperror"
	"anoa.com/yamdb/pkg/response"
)

const pingInterval = 30 * time.Second

// TitleLookup confirms the title exists before a socket is opened.
type TitleLookup interface {
	GetTitle(ctx context.Context, id uint) (*titleDto.TitleResponse, error)
}

type RatingFeedHandler struct {
	feed     *ratingfeed.Publisher
	titles   TitleLookup
	upgrader websocket.Upgrader
}

func NewRatingFeedHandler(feed *ratingfeed.Publisher, titles TitleLookup, allowedOrigins []string) *RatingFeedHandler {
	origins := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		origins[o] = true
	}

	return &RatingFeedHandler{
		feed:   feed,
		titles: titles,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || origins["*"] || origins[origin]
			},
		},
	}
}

// Stream forwards rating updates of one title to a WebSocket client.
func (h *RatingFeedHandler) Stream(c *gin.Context) {
	titleID, err := response.ParamID(c, "title_id")
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	if !h.feed.Enabled() {
		response.ResponseError(c, fmt.Errorf("live rating feed is disabled: %w", apperror.ErrUnavailable))
		return
	}

	if _, err := h.titles.GetTitle(c.Request.Context(), titleID); err != nil {
		response.ResponseError(c, err)
		return
	}

	ctx := c.Request.Context()
	pubsub, err := h.feed.Subscribe(ctx, titleID)
	if err != nil {
		response.ResponseError(c, fmt.Errorf("%v: %w", err, apperror.ErrUnavailable))
		return
	}
	defer pubsub.Close()

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logging.Warn().Err(err).Msg("failed to upgrade websocket")
		return
	}
	defer conn.Close()

	metrics.RatingFeedConnections.Inc()
	defer metrics.RatingFeedConnections.Dec()

	clientClosed := make(chan struct{})
	go func() {
		defer close(clientClosed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	ch := pubsub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg.Payload)); err != nil {
				logging.Debug().Err(err).Uint("title_id", titleID).Msg("rating feed client gone")
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		case <-clientClosed:
			return
		case <-ctx.Done():
			return
		}
	}
}
