package bot

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/growagarden/gagstock-bot/internal/config"
	"github.com/growagarden/gagstock-bot/internal/graph"
	"github.com/growagarden/gagstock-bot/internal/metrics"
)

// Runtime implements BotContext over the Graph API client and tracks
// the last bot message per recipient so delete/edit commands can target
// it.
type Runtime struct {
	client *graph.Client
	cfg    config.Config
	logger *log.Logger

	mu       sync.Mutex
	lastSent map[string]string // recipientID -> last bot message ID
}

func NewRuntime(client *graph.Client, cfg config.Config, logger *log.Logger) *Runtime {
	if logger == nil {
		logger = log.Default()
	}
	return &Runtime{
		client:   client,
		cfg:      cfg,
		logger:   logger,
		lastSent: make(map[string]string),
	}
}

func (r *Runtime) SendMessage(ctx context.Context, recipientID, text string) (string, error) {
	messageID, err := r.client.SendText(ctx, recipientID, text)
	if err != nil {
		metrics.GraphSendsTotal.WithLabelValues("failed").Inc()
		return "", err
	}
	metrics.GraphSendsTotal.WithLabelValues("success").Inc()

	if messageID != "" {
		r.mu.Lock()
		r.lastSent[recipientID] = messageID
		r.mu.Unlock()
	}
	return messageID, nil
}

// SendText implements session.Sender by delegating to SendMessage.
func (r *Runtime) SendText(ctx context.Context, recipientID, text string) (string, error) {
	return r.SendMessage(ctx, recipientID, text)
}

func (r *Runtime) SendAttachment(ctx context.Context, recipientID, attachType, url string) error {
	return r.client.SendAttachment(ctx, recipientID, attachType, url)
}

func (r *Runtime) SendTyping(ctx context.Context, recipientID string, on bool) error {
	return r.client.SendTyping(ctx, recipientID, on)
}

func (r *Runtime) DeleteMessage(ctx context.Context, messageID string) error {
	return r.client.DeleteMessage(ctx, messageID)
}

func (r *Runtime) EditMessage(ctx context.Context, recipientID, messageID, newText string) (string, error) {
	// Best-effort delete of the message being replaced; a failure here
	// still leaves the new text delivered.
	if messageID != "" {
		if err := r.client.DeleteMessage(ctx, messageID); err != nil {
			r.logger.Printf("Runtime: could not delete message %s during edit: %v", messageID, err)
		}
	}

	newID, err := r.SendMessage(ctx, recipientID, newText)
	if err != nil {
		return "", fmt.Errorf("edit message for %s: %w", recipientID, err)
	}
	return newID, nil
}

func (r *Runtime) LastBotMessage(userID string) (string, string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	messageID, ok := r.lastSent[userID]
	if !ok {
		return "", ""
	}
	return messageID, userID
}

func (r *Runtime) Prefix() string {
	return r.cfg.Prefix
}

func (r *Runtime) Config() config.Config {
	return r.cfg
}

func (r *Runtime) Logger() *log.Logger {
	return r.logger
}

// Profile exposes Graph profile lookups to commands that need them.
func (r *Runtime) Profile(ctx context.Context, userID string) (*graph.UserProfile, error) {
	return r.client.GetUserProfile(ctx, userID)
}
