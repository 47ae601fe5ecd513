package telegram

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/plandrop/plandrop/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewClient("test-token")
	c.baseURL = srv.URL
	return c
}

func TestSendMenuBuildsInlineKeyboard(t *testing.T) {
	var got map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bottest-token/sendMessage", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		w.Write([]byte(`{"ok":true,"result":{}}`))
	})

	kb := domain.Keyboard{
		domain.Row("DTAC", "menu_dtac"),
		{{Label: "Contact", Data: "contact_admin"}, {Label: "Donate", Data: "donate_menu"}},
	}
	require.NoError(t, c.SendMenu(context.Background(), 42, "Main menu:", kb))

	assert.Equal(t, float64(42), got["chat_id"])
	assert.Equal(t, "Main menu:", got["text"])

	markup := got["reply_markup"].(map[string]any)
	rows := markup["inline_keyboard"].([]any)
	require.Len(t, rows, 2)
	first := rows[0].([]any)[0].(map[string]any)
	assert.Equal(t, "DTAC", first["text"])
	assert.Equal(t, "menu_dtac", first["callback_data"])
}

func TestSendTextAPIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":false,"description":"Forbidden: bot was blocked by the user"}`))
	})

	err := c.SendText(context.Background(), 42, "hi")
	assert.ErrorIs(t, err, domain.ErrDeliveryFailed)
	assert.Contains(t, err.Error(), "blocked")
}

func TestFetchBytesResolvesFilePath(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/bottest-token/getFile":
			w.Write([]byte(`{"ok":true,"result":{"file_path":"documents/file_7.hc"}}`))
		case "/file/bottest-token/documents/file_7.hc":
			w.Write([]byte("payload"))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	src, err := c.FetchBytes(context.Background(), "doc-ref")
	require.NoError(t, err)
	defer src.Close()

	data, err := io.ReadAll(src)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}

func TestMapUpdateMessage(t *testing.T) {
	raw := []byte(`{
		"update_id": 5,
		"message": {
			"message_id": 9,
			"from": {"id": 42, "username": "tester"},
			"chat": {"id": 42},
			"caption": "expiry:7",
			"document": {"file_id": "doc-ref", "file_name": "plan.hc"}
		}
	}`)
	var u apiUpdate
	require.NoError(t, json.Unmarshal(raw, &u))

	mapped, ok := mapUpdate(u)
	require.True(t, ok)
	require.NotNil(t, mapped.Message)
	assert.Equal(t, int64(42), mapped.Message.From.ID)
	assert.Equal(t, "expiry:7", mapped.Message.Caption)
	require.NotNil(t, mapped.Message.Document)
	assert.Equal(t, "doc-ref", mapped.Message.Document.Ref)
	assert.Equal(t, "plan.hc", mapped.Message.Document.Filename)
}

func TestMapUpdatePicksLargestPhoto(t *testing.T) {
	raw := []byte(`{
		"update_id": 6,
		"message": {
			"message_id": 10,
			"from": {"id": 42},
			"chat": {"id": 42},
			"photo": [{"file_id": "small"}, {"file_id": "medium"}, {"file_id": "large"}]
		}
	}`)
	var u apiUpdate
	require.NoError(t, json.Unmarshal(raw, &u))

	mapped, ok := mapUpdate(u)
	require.True(t, ok)
	assert.Equal(t, "large", mapped.Message.PhotoRef)
}

func TestMapUpdateCallback(t *testing.T) {
	raw := []byte(`{
		"update_id": 7,
		"callback_query": {
			"id": "cb9",
			"from": {"id": 42, "username": "tester"},
			"message": {"message_id": 11, "chat": {"id": 42}},
			"data": "cat:dtac_game_plan"
		}
	}`)
	var u apiUpdate
	require.NoError(t, json.Unmarshal(raw, &u))

	mapped, ok := mapUpdate(u)
	require.True(t, ok)
	require.NotNil(t, mapped.Callback)
	assert.Equal(t, "cb9", mapped.Callback.ID)
	assert.Equal(t, int64(11), mapped.Callback.MessageID)
	assert.Equal(t, "cat:dtac_game_plan", mapped.Callback.Data)
}

func TestMapUpdateDropsUnknownShapes(t *testing.T) {
	_, ok := mapUpdate(apiUpdate{UpdateID: 8})
	assert.False(t, ok)
}
