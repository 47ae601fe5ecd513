package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/plandrop/plandrop/internal/domain"
)

const apiBase = "https://api.telegram.org"

// Client is a minimal Telegram Bot API client. It implements
// domain.Transport for outbound delivery and domain.ByteFetcher for
// pulling inbound attachment bytes, and exposes Poll for the long-poll
// update loop.
type Client struct {
	token      string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the given bot token.
func NewClient(token string) *Client {
	return &Client{
		token:   token,
		baseURL: apiBase,
		httpClient: &http.Client{
			// Must exceed the long-poll timeout used in Poll.
			Timeout: 60 * time.Second,
		},
	}
}

// apiResponse is the Bot API envelope around every method result.
type apiResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}

func (c *Client) call(ctx context.Context, method string, params any, out any) error {
	body, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", method, err)
	}

	url := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute %s: %w", method, err)
	}
	defer resp.Body.Close()

	return decodeAPIResponse(method, resp, out)
}

func decodeAPIResponse(method string, resp *http.Response, out any) error {
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s response: %w", method, err)
	}

	var envelope apiResponse
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return fmt.Errorf("parse %s response (status %d): %w", method, resp.StatusCode, err)
	}
	if !envelope.OK {
		return fmt.Errorf("%s: api error: %s", method, envelope.Description)
	}
	if out != nil {
		if err := json.Unmarshal(envelope.Result, out); err != nil {
			return fmt.Errorf("parse %s result: %w", method, err)
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// domain.Transport

type inlineKeyboardButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data"`
}

type inlineKeyboardMarkup struct {
	InlineKeyboard [][]inlineKeyboardButton `json:"inline_keyboard"`
}

func markup(kb domain.Keyboard) *inlineKeyboardMarkup {
	if len(kb) == 0 {
		return nil
	}
	rows := make([][]inlineKeyboardButton, 0, len(kb))
	for _, row := range kb {
		r := make([]inlineKeyboardButton, 0, len(row))
		for _, btn := range row {
			r = append(r, inlineKeyboardButton{Text: btn.Label, CallbackData: btn.Data})
		}
		rows = append(rows, r)
	}
	return &inlineKeyboardMarkup{InlineKeyboard: rows}
}

func (c *Client) SendText(ctx context.Context, chatID int64, text string) error {
	params := map[string]any{"chat_id": chatID, "text": text}
	if err := c.call(ctx, "sendMessage", params, nil); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrDeliveryFailed, err)
	}
	return nil
}

func (c *Client) SendMenu(ctx context.Context, chatID int64, text string, kb domain.Keyboard) error {
	params := map[string]any{"chat_id": chatID, "text": text}
	if m := markup(kb); m != nil {
		params["reply_markup"] = m
	}
	if err := c.call(ctx, "sendMessage", params, nil); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrDeliveryFailed, err)
	}
	return nil
}

func (c *Client) EditMenu(ctx context.Context, chatID, messageID int64, text string, kb domain.Keyboard) error {
	params := map[string]any{"chat_id": chatID, "message_id": messageID, "text": text}
	if m := markup(kb); m != nil {
		params["reply_markup"] = m
	}
	if err := c.call(ctx, "editMessageText", params, nil); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrDeliveryFailed, err)
	}
	return nil
}

func (c *Client) SendMedia(ctx context.Context, chatID int64, kind domain.MediaKind, ref, caption string) error {
	var method, field string
	switch kind {
	case domain.MediaPhoto:
		method, field = "sendPhoto", "photo"
	case domain.MediaDocument:
		method, field = "sendDocument", "document"
	default:
		return fmt.Errorf("unsupported media kind %d", kind)
	}

	params := map[string]any{"chat_id": chatID, field: ref}
	if caption != "" {
		params["caption"] = caption
	}
	if err := c.call(ctx, method, params, nil); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrDeliveryFailed, err)
	}
	return nil
}

func (c *Client) SendDocumentUpload(ctx context.Context, chatID int64, filename string, src io.Reader, caption string) error {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	if err := w.WriteField("chat_id", fmt.Sprintf("%d", chatID)); err != nil {
		return fmt.Errorf("write chat_id field: %w", err)
	}
	if caption != "" {
		if err := w.WriteField("caption", caption); err != nil {
			return fmt.Errorf("write caption field: %w", err)
		}
	}
	part, err := w.CreateFormFile("document", filename)
	if err != nil {
		return fmt.Errorf("create document part: %w", err)
	}
	if _, err := io.Copy(part, src); err != nil {
		return fmt.Errorf("copy document bytes: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize multipart body: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendDocument", c.baseURL, c.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return fmt.Errorf("create sendDocument request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: execute sendDocument: %v", domain.ErrDeliveryFailed, err)
	}
	defer resp.Body.Close()

	if err := decodeAPIResponse("sendDocument", resp, nil); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrDeliveryFailed, err)
	}
	return nil
}

func (c *Client) AnswerCallback(ctx context.Context, callbackID string) error {
	return c.call(ctx, "answerCallbackQuery", map[string]any{"callback_query_id": callbackID}, nil)
}

// ---------------------------------------------------------------------------
// domain.ByteFetcher

type fileInfo struct {
	FilePath string `json:"file_path"`
}

// FetchBytes resolves a file_id to its download path and streams the bytes.
func (c *Client) FetchBytes(ctx context.Context, ref string) (io.ReadCloser, error) {
	var info fileInfo
	if err := c.call(ctx, "getFile", map[string]any{"file_id": ref}, &info); err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/file/bot%s/%s", c.baseURL, c.token, info.FilePath)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create download request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("download file: status %d", resp.StatusCode)
	}
	return resp.Body, nil
}

// ---------------------------------------------------------------------------
// Long-poll update loop

type apiUser struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

type apiPhotoSize struct {
	FileID string `json:"file_id"`
}

type apiDocument struct {
	FileID   string `json:"file_id"`
	FileName string `json:"file_name"`
}

type apiMessage struct {
	MessageID int64          `json:"message_id"`
	From      *apiUser       `json:"from"`
	Chat      struct {
		ID int64 `json:"id"`
	} `json:"chat"`
	Text     string         `json:"text"`
	Caption  string         `json:"caption"`
	Document *apiDocument   `json:"document"`
	Photo    []apiPhotoSize `json:"photo"`
}

type apiCallbackQuery struct {
	ID      string      `json:"id"`
	From    apiUser     `json:"from"`
	Message *apiMessage `json:"message"`
	Data    string      `json:"data"`
}

type apiUpdate struct {
	UpdateID      int64             `json:"update_id"`
	Message       *apiMessage       `json:"message"`
	CallbackQuery *apiCallbackQuery `json:"callback_query"`
}

// Handler consumes one mapped inbound update.
type Handler func(ctx context.Context, u domain.Update)

// Poll runs the getUpdates long-poll loop until the context is cancelled.
// Transient API errors are logged and retried after a short backoff.
func (c *Client) Poll(ctx context.Context, handle Handler) error {
	log.Printf("[Telegram] polling for updates")

	var offset int64
	for {
		select {
		case <-ctx.Done():
			log.Printf("[Telegram] poll loop stopping")
			return nil
		default:
		}

		params := map[string]any{
			"offset":          offset,
			"timeout":         30,
			"allowed_updates": []string{"message", "callback_query"},
		}
		var updates []apiUpdate
		if err := c.call(ctx, "getUpdates", params, &updates); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Printf("[Telegram] getUpdates failed: %v", err)
			time.Sleep(3 * time.Second)
			continue
		}

		for _, u := range updates {
			if u.UpdateID >= offset {
				offset = u.UpdateID + 1
			}
			if mapped, ok := mapUpdate(u); ok {
				handle(ctx, mapped)
			}
		}
	}
}

func mapUpdate(u apiUpdate) (domain.Update, bool) {
	switch {
	case u.Message != nil && u.Message.From != nil:
		return domain.Update{Message: mapMessage(u.Message)}, true

	case u.CallbackQuery != nil && u.CallbackQuery.Message != nil:
		q := u.CallbackQuery
		return domain.Update{Callback: &domain.Callback{
			ID:        q.ID,
			From:      domain.User{ID: q.From.ID, Username: q.From.Username},
			ChatID:    q.Message.Chat.ID,
			MessageID: q.Message.MessageID,
			Data:      q.Data,
		}}, true
	}
	return domain.Update{}, false
}

func mapMessage(m *apiMessage) *domain.Message {
	msg := &domain.Message{
		From:    domain.User{ID: m.From.ID, Username: m.From.Username},
		ChatID:  m.Chat.ID,
		Text:    m.Text,
		Caption: m.Caption,
	}
	if m.Document != nil {
		msg.Document = &domain.Document{Ref: m.Document.FileID, Filename: m.Document.FileName}
	}
	if len(m.Photo) > 0 {
		// Sizes arrive smallest first; take the largest.
		msg.PhotoRef = m.Photo[len(m.Photo)-1].FileID
	}
	return msg
}
