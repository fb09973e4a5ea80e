package event_service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-zeromq/zmq4"
	"github.com/rs/zerolog"

	"media-vault/model"
)

const (
	TopicUploadCompleted = "upload.completed"
	TopicUploadDuration  = "upload.duration"

	defaultBuffer = 256
)

// UploadCompletedEvent published after a finalized file is recorded
type UploadCompletedEvent struct {
	FileId   string         `json:"fileId"`
	Key      string         `json:"key"`
	Url      string         `json:"url"`
	Name     string         `json:"name"`
	Size     int64          `json:"size"`
	MimeType string         `json:"mimeType"`
	FileType model.FileType `json:"fileType"`
	UserId   string         `json:"userId"`
	FolderId *string        `json:"folderId,omitempty"`
	At       time.Time      `json:"at"`
}

// DurationEvent published after a video duration is back-filled
type DurationEvent struct {
	FileId   string    `json:"fileId"`
	Duration float64   `json:"duration"`
	At       time.Time `json:"at"`
}

// Sender publishes one topic-framed message
type Sender interface {
	Send(topic string, payload []byte) error
	Close() error
}

type envelope struct {
	topic   string
	payload []byte
}

// Publisher fans events out through a Sender on a background goroutine.
// Events are dropped with a log line when the buffer is full.
type Publisher struct {
	sender Sender
	queue  chan envelope
	logger zerolog.Logger

	wg       sync.WaitGroup
	mu       sync.RWMutex
	closed   bool
	stopOnce sync.Once
}

// NewPublisher create publisher over a sender
func NewPublisher(sender Sender, buffer int, logger zerolog.Logger) *Publisher {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	p := &Publisher{
		sender: sender,
		queue:  make(chan envelope, buffer),
		logger: logger,
	}
	p.wg.Add(1)
	go p.run()
	return p
}

func (p *Publisher) run() {
	defer p.wg.Done()
	for env := range p.queue {
		if err := p.sender.Send(env.topic, env.payload); err != nil {
			p.logger.Warn().Err(err).Str("topic", env.topic).Msg("Failed to publish event")
		}
	}
}

func (p *Publisher) publish(topic string, event interface{}) {
	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Warn().Err(err).Str("topic", topic).Msg("Failed to encode event")
		return
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return
	}
	select {
	case p.queue <- envelope{topic: topic, payload: payload}:
	default:
		p.logger.Warn().Str("topic", topic).Msg("Event buffer full, dropping event")
	}
}

// UploadCompleted publishes an upload.completed event
func (p *Publisher) UploadCompleted(_ context.Context, file *model.FinalizedFile) {
	p.publish(TopicUploadCompleted, UploadCompletedEvent{
		FileId:   file.ID,
		Key:      file.Path,
		Url:      file.Url,
		Name:     file.Name,
		Size:     file.Size,
		MimeType: file.MimeType,
		FileType: file.FileType,
		UserId:   file.UserId,
		FolderId: file.FolderId,
		At:       time.Now().UTC(),
	})
}

// DurationProbed publishes an upload.duration event
func (p *Publisher) DurationProbed(_ context.Context, fileID string, seconds float64) {
	p.publish(TopicUploadDuration, DurationEvent{
		FileId:   fileID,
		Duration: seconds,
		At:       time.Now().UTC(),
	})
}

// Close flushes buffered events and closes the sender
func (p *Publisher) Close() error {
	var err error
	p.stopOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.queue)
		p.mu.Unlock()

		p.wg.Wait()
		err = p.sender.Close()
	})
	return err
}

// ZMQSender PUB socket bound to an address; frames are [topic, payload]
type ZMQSender struct {
	socket zmq4.Socket
}

// NewZMQSender binds a PUB socket, e.g. "tcp://*:5563"
func NewZMQSender(ctx context.Context, address string) (*ZMQSender, error) {
	socket := zmq4.NewPub(ctx)
	if err := socket.Listen(address); err != nil {
		socket.Close()
		return nil, fmt.Errorf("failed to bind zmq publisher on %s: %w", address, err)
	}
	return &ZMQSender{socket: socket}, nil
}

func (s *ZMQSender) Send(topic string, payload []byte) error {
	return s.socket.Send(zmq4.NewMsgFrom([]byte(topic), payload))
}

func (s *ZMQSender) Close() error {
	return s.socket.Close()
}

// Addr returns the bound address
func (s *ZMQSender) Addr() string {
	if addr := s.socket.Addr(); addr != nil {
		return addr.String()
	}
	return ""
}
