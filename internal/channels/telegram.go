package channels

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/featherline/pigeonhole/internal/bus"
)

func init() {
	Register("telegram", newTelegramChannel)
}

type telegramConfig struct {
	Token        string   `json:"token"`
	AllowedUsers []string `json:"allowedUsers"`
}

type TelegramChannel struct {
	bot          *tgbotapi.BotAPI
	bus          *bus.MessageBus
	allowedUsers map[string]bool
	mediaDir     string
	stopCh       chan struct{}
}

func newTelegramChannel(cfg json.RawMessage, deps Deps) (Channel, error) {
	var tcfg telegramConfig
	if err := json.Unmarshal(cfg, &tcfg); err != nil {
		return nil, fmt.Errorf("failed to parse telegram config: %w", err)
	}
	bot, err := tgbotapi.NewBotAPI(tcfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	allowed := make(map[string]bool, len(tcfg.AllowedUsers))
	for _, u := range tcfg.AllowedUsers {
		allowed[u] = true
	}
	return &TelegramChannel{
		bot:          bot,
		bus:          deps.Bus,
		allowedUsers: allowed,
		mediaDir:     deps.MediaDir,
		stopCh:       make(chan struct{}),
	}, nil
}

func (c *TelegramChannel) Name() string { return "telegram" }

func (c *TelegramChannel) Start(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := c.bot.GetUpdatesChan(u)

	go func() {
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				if update.CallbackQuery != nil {
					c.handleCallback(update.CallbackQuery)
					continue
				}
				if update.Message != nil {
					c.handleMessage(update.Message)
				}
			case <-ctx.Done():
				c.bot.StopReceivingUpdates()
				return
			case <-c.stopCh:
				c.bot.StopReceivingUpdates()
				return
			}
		}
	}()
	return nil
}

func (c *TelegramChannel) handleMessage(msg *tgbotapi.Message) {
	senderID := strconv.FormatInt(msg.From.ID, 10)
	if !c.IsAllowed(senderID) {
		slog.Warn("telegram: message from disallowed user", "senderID", senderID)
		return
	}

	in := bus.InboundMessage{
		Source:     "telegram",
		SenderID:   senderID,
		ChatID:     msg.Chat.ID,
		Type:       "text",
		Text:       msg.Text,
		PlatformID: strconv.Itoa(msg.MessageID),
		Extra:      map[string]any{},
	}
	if msg.From.UserName != "" {
		in.Extra["username"] = msg.From.UserName
	}

	switch {
	case msg.Voice != nil:
		in.Type = "voice"
		in.Text = "[Voice message - pending transcription]"
		in.Extra["duration"] = msg.Voice.Duration
		if path, err := c.downloadFile(msg.Voice.FileID, fmt.Sprintf("voice_%d.ogg", msg.MessageID)); err != nil {
			slog.Error("telegram: voice download failed", "error", err)
		} else {
			in.Extra["file_path"] = path
		}
	case len(msg.Photo) > 0:
		in.Type = "photo"
		in.Text = "[Photo]"
		if msg.Caption != "" {
			in.Text = "[Photo] " + msg.Caption
		}
		largest := msg.Photo[len(msg.Photo)-1]
		if path, err := c.downloadFile(largest.FileID, fmt.Sprintf("photo_%d.jpg", msg.MessageID)); err != nil {
			slog.Error("telegram: photo download failed", "error", err)
		} else {
			in.Extra["file_path"] = path
		}
	case msg.Document != nil:
		in.Type = "document"
		in.Text = fmt.Sprintf("[Document: %s]", msg.Document.FileName)
		if msg.Caption != "" {
			in.Text += " " + msg.Caption
		}
		in.Extra["file_name"] = msg.Document.FileName
		if path, err := c.downloadFile(msg.Document.FileID, fmt.Sprintf("doc_%d_%s", msg.MessageID, msg.Document.FileName)); err != nil {
			slog.Error("telegram: document download failed", "error", err)
		} else {
			in.Extra["file_path"] = path
		}
	case msg.Text == "":
		return // stickers, locations etc. are out of scope
	}

	c.bus.PublishInbound(in)
}

func (c *TelegramChannel) handleCallback(cb *tgbotapi.CallbackQuery) {
	senderID := strconv.FormatInt(cb.From.ID, 10)
	if !c.IsAllowed(senderID) {
		return
	}
	// Ack first so the client spinner stops even if intake stalls.
	if _, err := c.bot.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		slog.Warn("telegram: callback ack failed", "error", err)
	}
	if cb.Message == nil {
		return
	}
	c.bus.PublishInbound(bus.InboundMessage{
		Source:     "telegram",
		SenderID:   senderID,
		ChatID:     cb.Message.Chat.ID,
		Type:       "callback",
		Text:       cb.Data,
		PlatformID: cb.ID,
		Extra:      map[string]any{"callback_message_id": cb.Message.MessageID},
	})
}

// downloadFile fetches a telegram file into the media directory and returns
// the local path.
func (c *TelegramChannel) downloadFile(fileID, name string) (string, error) {
	url, err := c.bot.GetFileDirectURL(fileID)
	if err != nil {
		return "", fmt.Errorf("resolve file url: %w", err)
	}
	if err := os.MkdirAll(c.mediaDir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(c.mediaDir, fmt.Sprintf("%d_%s", time.Now().UnixMilli(), name))

	resp, err := http.Get(url)
	if err != nil {
		return "", fmt.Errorf("fetch file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch file: status %s", resp.Status)
	}

	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("write file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return path, nil
}

func (c *TelegramChannel) Stop() error {
	close(c.stopCh)
	return nil
}

func (c *TelegramChannel) Send(msg bus.OutboundMessage) error {
	chatID, err := coerceChatID(msg.ChatID)
	if err != nil {
		return fmt.Errorf("telegram: invalid chatID %v: %w", msg.ChatID, err)
	}
	m := tgbotapi.NewMessage(chatID, msg.Text)
	m.ParseMode = tgbotapi.ModeMarkdown
	if kb, ok := inlineKeyboard(msg.Buttons); ok {
		m.ReplyMarkup = kb
	}
	if _, err = c.bot.Send(m); err != nil {
		// Markdown parse errors are common with model output; resend plain.
		m.ParseMode = ""
		_, err = c.bot.Send(m)
	}
	return err
}

// coerceChatID accepts the chat id however JSON delivered it.
func coerceChatID(v any) (int64, error) {
	switch id := v.(type) {
	case int64:
		return id, nil
	case int:
		return int64(id), nil
	case float64:
		return int64(id), nil
	case json.Number:
		return id.Int64()
	case string:
		return strconv.ParseInt(id, 10, 64)
	default:
		return 0, fmt.Errorf("unsupported chat id type %T", v)
	}
}

// inlineKeyboard renders rows of {text, callback_data} buttons.
func inlineKeyboard(raw json.RawMessage) (tgbotapi.InlineKeyboardMarkup, bool) {
	if len(raw) == 0 {
		return tgbotapi.InlineKeyboardMarkup{}, false
	}
	var rows [][]struct {
		Text         string `json:"text"`
		CallbackData string `json:"callback_data"`
	}
	if err := json.Unmarshal(raw, &rows); err != nil || len(rows) == 0 {
		slog.Warn("telegram: unrenderable buttons payload", "error", err)
		return tgbotapi.InlineKeyboardMarkup{}, false
	}
	kbRows := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		kbRow := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			kbRow = append(kbRow, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.CallbackData))
		}
		if len(kbRow) > 0 {
			kbRows = append(kbRows, kbRow)
		}
	}
	if len(kbRows) == 0 {
		return tgbotapi.InlineKeyboardMarkup{}, false
	}
	return tgbotapi.NewInlineKeyboardMarkup(kbRows...), true
}

func (c *TelegramChannel) IsAllowed(senderID string) bool {
	if len(c.allowedUsers) == 0 {
		return true
	}
	return c.allowedUsers[senderID]
}
