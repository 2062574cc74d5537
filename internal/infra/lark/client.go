package lark

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	larksdk "github.com/larksuite/oapi-sdk-go/v3"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	"github.com/larksuite/oapi-sdk-go/v3/event/dispatcher"
	larkcontact "github.com/larksuite/oapi-sdk-go/v3/service/contact/v3"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	larkws "github.com/larksuite/oapi-sdk-go/v3/ws"
	"github.com/rs/zerolog"
)

// Message is a received chat message after content extraction. Only text and
// post messages carry content; other types are dropped before reaching the
// handler.
type Message struct {
	ChatID       string
	MsgID        string
	RootID       string // thread root, empty for unthreaded messages
	Content      string
	SenderOpenID string
	SenderType   string // user, app
	CreateTime   int64  // milliseconds Unix timestamp
}

// MessageHandler is the callback for received messages
type MessageHandler func(msg *Message)

// Client is the Lark API client: a websocket listener for incoming messages
// plus the REST surface the watcher needs (send, history, user email).
type Client struct {
	appID     string
	appSecret string
	larkCli   *larksdk.Client
	wsCli     *larkws.Client
	onMessage MessageHandler
	log       zerolog.Logger
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewClient creates a new Lark client
func NewClient(appID, appSecret string, log zerolog.Logger) *Client {
	return &Client{
		appID:     appID,
		appSecret: appSecret,
		log:       log.With().Str("component", "lark").Logger(),
	}
}

// OnMessage sets the message handler
func (c *Client) OnMessage(handler MessageHandler) {
	c.onMessage = handler
}

// Start connects via WebSocket and blocks, listening for messages.
func (c *Client) Start() error {
	c.ctx, c.cancel = context.WithCancel(context.Background())

	c.larkCli = larksdk.NewClient(c.appID, c.appSecret)

	// The event handler must return quickly so the SDK can ACK; otherwise
	// Lark retries the delivery.
	eventHandler := dispatcher.NewEventDispatcher("", "").
		OnP2MessageReceiveV1(func(ctx context.Context, event *larkim.P2MessageReceiveV1) error {
			go c.handleMessage(event)
			return nil
		})

	c.wsCli = larkws.NewClient(c.appID, c.appSecret,
		larkws.WithEventHandler(eventHandler),
		larkws.WithLogLevel(larkcore.LogLevelInfo),
	)

	c.log.Info().Msg("starting websocket connection")
	return c.wsCli.Start(c.ctx)
}

// Stop disconnects the websocket
func (c *Client) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
}

func (c *Client) handleMessage(event *larkim.P2MessageReceiveV1) {
	rawMsg := event.Event.Message
	if rawMsg == nil {
		return
	}

	msg := &Message{
		ChatID: deref(rawMsg.ChatId),
		MsgID:  deref(rawMsg.MessageId),
		RootID: deref(rawMsg.RootId),
	}

	if event.Event.Sender != nil {
		if event.Event.Sender.SenderId != nil {
			msg.SenderOpenID = deref(event.Event.Sender.SenderId.OpenId)
		}
		msg.SenderType = deref(event.Event.Sender.SenderType)
	}

	if rawMsg.CreateTime != nil {
		if ts, err := strconv.ParseInt(*rawMsg.CreateTime, 10, 64); err == nil {
			msg.CreateTime = ts
		}
	}

	mentionMap := make(map[string]string)
	for _, mention := range rawMsg.Mentions {
		if mention.Key != nil && mention.Name != nil {
			mentionMap[*mention.Key] = *mention.Name
		}
	}

	switch deref(rawMsg.MessageType) {
	case "text":
		msg.Content = parseTextContent(deref(rawMsg.Content), mentionMap)
	case "post":
		msg.Content = parsePostContent(deref(rawMsg.Content), mentionMap)
	default:
		// Images, files, stickers: nothing to classify.
		return
	}

	c.log.Debug().
		Str("chat", msg.ChatID).
		Str("msg", msg.MsgID).
		Str("sender_type", msg.SenderType).
		Msg("message received")

	if c.onMessage != nil {
		c.onMessage(msg)
	}
}

// parseTextContent extracts text from a text message and resolves mention
// placeholders (@_user_1) to real names.
func parseTextContent(content string, mentionMap map[string]string) string {
	var parsed struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return ""
	}
	return replaceMentions(parsed.Text, mentionMap)
}

// parsePostContent flattens a rich text (post) message to plain text.
func parsePostContent(content string, mentionMap map[string]string) string {
	var parsed struct {
		Title   string `json:"title"`
		Content [][]struct {
			Tag    string `json:"tag"`
			Text   string `json:"text,omitempty"`
			UserID string `json:"user_id,omitempty"`
		} `json:"content"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return ""
	}

	var textParts []string
	if parsed.Title != "" {
		textParts = append(textParts, parsed.Title)
	}
	for _, line := range parsed.Content {
		var lineParts []string
		for _, elem := range line {
			switch elem.Tag {
			case "text":
				if elem.Text != "" {
					lineParts = append(lineParts, elem.Text)
				}
			case "at":
				if elem.UserID != "" {
					if name, ok := mentionMap[elem.UserID]; ok {
						lineParts = append(lineParts, "@"+name)
					} else {
						lineParts = append(lineParts, "@"+elem.UserID)
					}
				}
			}
		}
		if len(lineParts) > 0 {
			textParts = append(textParts, strings.Join(lineParts, ""))
		}
	}
	return replaceMentions(strings.Join(textParts, "\n"), mentionMap)
}

func replaceMentions(text string, mentionMap map[string]string) string {
	for key, name := range mentionMap {
		text = strings.ReplaceAll(text, key, "@"+name)
	}
	return text
}

// SendText sends a text message to a chat
func (c *Client) SendText(ctx context.Context, chatID, text string) error {
	content := map[string]string{"text": text}
	contentJSON, _ := json.Marshal(content)

	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType(larkim.ReceiveIdTypeChatId).
		Body(larkim.NewCreateMessageReqBodyBuilder().
			ReceiveId(chatID).
			MsgType(larkim.MsgTypeText).
			Content(string(contentJSON)).
			Build()).
		Build()

	resp, err := c.larkCli.Im.Message.Create(ctx, req)
	if err != nil {
		return fmt.Errorf("send message failed: %w", err)
	}
	if !resp.Success() {
		return fmt.Errorf("send message error: %s", resp.Msg)
	}
	return nil
}

// GetChatHistory retrieves messages from a chat created at or after startTime
// (seconds Unix timestamp), in chronological order.
func (c *Client) GetChatHistory(ctx context.Context, chatID string, startTime int64) ([]*Message, error) {
	var messages []*Message
	var pageToken string

	for {
		reqBuilder := larkim.NewListMessageReqBuilder().
			ContainerIdType("chat").
			ContainerId(chatID).
			StartTime(strconv.FormatInt(startTime, 10)).
			SortType("ByCreateTimeAsc").
			PageSize(50)
		if pageToken != "" {
			reqBuilder = reqBuilder.PageToken(pageToken)
		}

		resp, err := c.larkCli.Im.Message.List(ctx, reqBuilder.Build())
		if err != nil {
			return nil, fmt.Errorf("get chat history failed: %w", err)
		}
		if !resp.Success() {
			return nil, fmt.Errorf("get chat history error: %s", resp.Msg)
		}

		for _, item := range resp.Data.Items {
			msg := &Message{
				ChatID: chatID,
				MsgID:  deref(item.MessageId),
				RootID: deref(item.RootId),
			}
			if item.CreateTime != nil {
				if ts, err := strconv.ParseInt(*item.CreateTime, 10, 64); err == nil {
					msg.CreateTime = ts
				}
			}
			if item.Sender != nil {
				msg.SenderOpenID = deref(item.Sender.Id)
				msg.SenderType = deref(item.Sender.SenderType)
			}

			mentionMap := make(map[string]string)
			for _, mention := range item.Mentions {
				if mention.Key != nil && mention.Name != nil {
					mentionMap[*mention.Key] = *mention.Name
				}
			}
			if item.Body != nil && item.Body.Content != nil {
				switch deref(item.MsgType) {
				case "text":
					msg.Content = parseTextContent(*item.Body.Content, mentionMap)
				case "post":
					msg.Content = parsePostContent(*item.Body.Content, mentionMap)
				default:
					continue
				}
			}
			messages = append(messages, msg)
		}

		if resp.Data.PageToken == nil || *resp.Data.PageToken == "" {
			break
		}
		pageToken = *resp.Data.PageToken
	}

	c.log.Debug().Int("count", len(messages)).Str("chat", chatID).Msg("retrieved chat history")
	return messages, nil
}

// GetUserEmail resolves a user's email from their open_id. Enterprise email
// wins over the personal one when both are set.
func (c *Client) GetUserEmail(ctx context.Context, openID string) (string, error) {
	req := larkcontact.NewGetUserReqBuilder().
		UserId(openID).
		UserIdType("open_id").
		Build()

	resp, err := c.larkCli.Contact.User.Get(ctx, req)
	if err != nil {
		return "", fmt.Errorf("get user failed: %w", err)
	}
	if !resp.Success() {
		return "", fmt.Errorf("get user error: %s", resp.Msg)
	}
	if resp.Data == nil || resp.Data.User == nil {
		return "", fmt.Errorf("user %s not found", openID)
	}

	if email := deref(resp.Data.User.EnterpriseEmail); email != "" {
		return email, nil
	}
	return deref(resp.Data.User.Email), nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
