package channels

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"github.com/featherline/pigeonhole/internal/bus"
)

func init() {
	Register("slack", newSlackChannel)
}

type slackConfig struct {
	BotToken     string   `json:"botToken"`
	AppToken     string   `json:"appToken"`
	AllowedUsers []string `json:"allowedUsers"`
}

// SlackChannel implements Channel for Slack via socket mode.
type SlackChannel struct {
	client       *slack.Client
	socketClient *socketmode.Client
	bus          *bus.MessageBus
	allowedUsers map[string]bool
}

func newSlackChannel(cfg json.RawMessage, deps Deps) (Channel, error) {
	var c slackConfig
	if err := json.Unmarshal(cfg, &c); err != nil {
		return nil, err
	}
	allowed := make(map[string]bool, len(c.AllowedUsers))
	for _, u := range c.AllowedUsers {
		allowed[u] = true
	}
	client := slack.New(c.BotToken, slack.OptionAppLevelToken(c.AppToken))
	socketClient := socketmode.New(client)
	return &SlackChannel{
		client:       client,
		socketClient: socketClient,
		bus:          deps.Bus,
		allowedUsers: allowed,
	}, nil
}

func (c *SlackChannel) Name() string { return "slack" }

func (c *SlackChannel) Start(ctx context.Context) error {
	go func() {
		for evt := range c.socketClient.Events {
			if evt.Type != socketmode.EventTypeEventsAPI {
				if evt.Request != nil {
					c.socketClient.Ack(*evt.Request)
				}
				continue
			}
			eventsAPI, ok := evt.Data.(slackevents.EventsAPIEvent)
			if !ok {
				c.socketClient.Ack(*evt.Request)
				continue
			}
			c.socketClient.Ack(*evt.Request)
			if eventsAPI.Type != slackevents.CallbackEvent {
				continue
			}
			inner, ok := eventsAPI.InnerEvent.Data.(*slackevents.MessageEvent)
			if !ok {
				continue
			}
			// skip bot messages
			if inner.BotID != "" {
				continue
			}
			if !c.IsAllowed(inner.User) {
				slog.Warn("slack: message from disallowed user", "user", inner.User)
				continue
			}
			in := bus.InboundMessage{
				Source:     "slack",
				SenderID:   inner.User,
				ChatID:     inner.Channel,
				Type:       "text",
				Text:       inner.Text,
				PlatformID: inner.TimeStamp,
				Extra:      map[string]any{},
			}
			if inner.ThreadTimeStamp != "" {
				in.Extra["thread_ts"] = inner.ThreadTimeStamp
			}
			c.bus.PublishInbound(in)
		}
	}()
	go func() {
		if err := c.socketClient.RunContext(ctx); err != nil && ctx.Err() == nil {
			slog.Error("slack: socket mode stopped", "error", err)
		}
	}()
	return nil
}

func (c *SlackChannel) Stop() error { return nil }

func (c *SlackChannel) Send(msg bus.OutboundMessage) error {
	chatID, ok := msg.ChatID.(string)
	if !ok {
		chatID = fmt.Sprintf("%v", msg.ChatID)
	}
	opts := []slack.MsgOption{slack.MsgOptionText(msg.Text, false)}
	if msg.ThreadTS != "" {
		opts = append(opts, slack.MsgOptionTS(msg.ThreadTS))
	}
	if blocks, ok := buttonBlocks(msg.Buttons); ok {
		opts = append(opts, slack.MsgOptionBlocks(blocks...))
	}
	_, _, err := c.client.PostMessage(chatID, opts...)
	if err != nil {
		return fmt.Errorf("slack: post message: %w", err)
	}
	return nil
}

// buttonBlocks renders {text, callback_data} rows as a text section plus
// one action block per row.
func buttonBlocks(raw json.RawMessage) ([]slack.Block, bool) {
	if len(raw) == 0 {
		return nil, false
	}
	var rows [][]struct {
		Text         string `json:"text"`
		CallbackData string `json:"callback_data"`
	}
	if err := json.Unmarshal(raw, &rows); err != nil || len(rows) == 0 {
		slog.Warn("slack: unrenderable buttons payload", "error", err)
		return nil, false
	}
	var blocks []slack.Block
	for i, row := range rows {
		var elems []slack.BlockElement
		for _, b := range row {
			btn := slack.NewButtonBlockElement(b.CallbackData, b.CallbackData,
				slack.NewTextBlockObject(slack.PlainTextType, b.Text, false, false))
			elems = append(elems, btn)
		}
		if len(elems) > 0 {
			blocks = append(blocks, slack.NewActionBlock(fmt.Sprintf("row_%d", i), elems...))
		}
	}
	return blocks, len(blocks) > 0
}

func (c *SlackChannel) IsAllowed(senderID string) bool {
	if len(c.allowedUsers) == 0 {
		return true
	}
	return c.allowedUsers[senderID]
}
