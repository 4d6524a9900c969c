package handlers

import (
	"log"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"github.com/growagarden/gagstock-bot/internal/bot"
	"github.com/growagarden/gagstock-bot/internal/metrics"
)

// WebhookEvent is the Graph webhook POST body: nested event batches.
type WebhookEvent struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

type Entry struct {
	ID        string      `json:"id"`
	Time      int64       `json:"time"`
	Messaging []Messaging `json:"messaging"`
}

type Messaging struct {
	Sender    Participant `json:"sender"`
	Recipient Participant `json:"recipient"`
	Timestamp int64       `json:"timestamp"`
	Message   *Message    `json:"message,omitempty"`
	Postback  *Postback   `json:"postback,omitempty"`
}

type Participant struct {
	ID string `json:"id"`
}

type Message struct {
	MID     string   `json:"mid"`
	Text    string   `json:"text"`
	ReplyTo *ReplyTo `json:"reply_to,omitempty"`
}

type ReplyTo struct {
	MID string `json:"mid"`
}

type Postback struct {
	Title   string `json:"title"`
	Payload string `json:"payload"`
}

type WebhookHandler struct {
	verifyToken string
	dispatcher  *bot.Dispatcher
	postbacks   *bot.PostbackRouter
	botCtx      bot.BotContext
}

func NewWebhookHandler(verifyToken string, dispatcher *bot.Dispatcher, postbacks *bot.PostbackRouter, botCtx bot.BotContext) *WebhookHandler {
	return &WebhookHandler{
		verifyToken: verifyToken,
		dispatcher:  dispatcher,
		postbacks:   postbacks,
		botCtx:      botCtx,
	}
}

// Verify answers the GET subscription handshake: echo the challenge
// when mode and token match, 403 on mismatch, 400 on missing params.
func (h *WebhookHandler) Verify(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode == "" || token == "" {
		c.String(http.StatusBadRequest, "Verification Failed: Missing parameters.")
		return
	}

	if mode == "subscribe" && token == h.verifyToken {
		log.Println("Webhook verified successfully")
		c.String(http.StatusOK, challenge)
		return
	}

	log.Printf("Webhook verification failed: mode=%q", mode)
	c.String(http.StatusForbidden, "Verification Failed: Token mismatch or invalid mode.")
}

// Receive accepts an event batch. The batch is always acked with
// EVENT_RECEIVED once parsed; per-event failures stay internal so the
// platform does not redeliver.
func (h *WebhookHandler) Receive(c *gin.Context) {
	var event WebhookEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		log.Printf("Webhook: malformed body: %v", err)
		c.String(http.StatusBadRequest, "MALFORMED_BODY")
		return
	}

	if event.Object == "page" {
		for _, entry := range event.Entry {
			for _, messaging := range entry.Messaging {
				h.processEvent(c, messaging)
			}
		}
	}

	c.String(http.StatusOK, "EVENT_RECEIVED")
}

// processEvent handles one messaging item. A panic or failure in one
// event must not abort its siblings in the batch.
func (h *WebhookHandler) processEvent(c *gin.Context, messaging Messaging) {
	defer func() {
		if r := recover(); r != nil {
			metrics.WebhookEventErrors.Inc()
			log.Printf("Webhook: PANIC processing event from %s: %v\n%s", messaging.Sender.ID, r, debug.Stack())
		}
	}()

	senderID := messaging.Sender.ID
	if senderID == "" {
		log.Println("Webhook: messaging event without sender ID")
		return
	}

	ctx := c.Request.Context()

	switch {
	case messaging.Message != nil && messaging.Message.Text != "":
		metrics.WebhookEventsTotal.WithLabelValues("message").Inc()

		if err := h.botCtx.SendTyping(ctx, senderID, true); err != nil {
			log.Printf("Webhook: typing on failed for %s: %v", senderID, err)
		}
		// Typing comes back off even when the handler blows up.
		defer func() {
			if err := h.botCtx.SendTyping(ctx, senderID, false); err != nil {
				log.Printf("Webhook: typing off failed for %s: %v", senderID, err)
			}
		}()

		h.dispatcher.Dispatch(ctx, senderID, messaging.Message.Text, h.botCtx)

	case messaging.Postback != nil:
		metrics.WebhookEventsTotal.WithLabelValues("postback").Inc()
		h.postbacks.Route(ctx, senderID, messaging.Postback.Payload, h.botCtx)

	default:
		metrics.WebhookEventsTotal.WithLabelValues("other").Inc()
		log.Printf("Webhook: event from %s without text or postback", senderID)
	}
}
