package server

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/sey-media/clientwatch/internal/biz/domain"
	"github.com/sey-media/clientwatch/internal/infra/lark"
	"github.com/sey-media/clientwatch/internal/service"
)

// WatchServer connects the Lark websocket stream to the monitor and runs the
// scheduler alongside it.
type WatchServer struct {
	client  *lark.Client
	monitor *service.Monitor
	sweeper *service.Sweeper
	log     zerolog.Logger
}

// NewWatchServer creates the server.
func NewWatchServer(
	client *lark.Client,
	monitor *service.Monitor,
	sweeper *service.Sweeper,
	log zerolog.Logger,
) *WatchServer {
	return &WatchServer{
		client:  client,
		monitor: monitor,
		sweeper: sweeper,
		log:     log.With().Str("component", "server").Logger(),
	}
}

// Start launches the scheduler, then blocks on the websocket connection.
func (s *WatchServer) Start() error {
	if err := s.sweeper.Start(); err != nil {
		return err
	}
	s.client.OnMessage(s.handleMessage)
	return s.client.Start()
}

// Stop shuts down the websocket and waits for in-flight sweeps.
func (s *WatchServer) Stop() {
	s.client.Stop()
	s.sweeper.Stop()
}

// handleMessage converts a platform message and hands it to the monitor.
// Bot-authored messages never enter the window.
func (s *WatchServer) handleMessage(msg *lark.Message) {
	if msg.SenderType == "app" {
		return
	}

	s.monitor.Ingest(context.Background(), domain.Message{
		ID:         msg.MsgID,
		ChannelID:  msg.ChatID,
		AuthorID:   msg.SenderOpenID,
		Text:       msg.Content,
		ThreadID:   msg.RootID,
		CreatedAt:  time.UnixMilli(msg.CreateTime),
		ReceivedAt: time.Now(),
	})
}
