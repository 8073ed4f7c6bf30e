package notion

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmehdipour/mail-relay/internal/model"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(Options{
		BaseURL:    srv.URL,
		Token:      "secret",
		HTTPClient: srv.Client(),
		MaxRetries: 2,
		BaseDelay:  time.Millisecond,
		MaxDelay:   5 * time.Millisecond,
	})
}

func TestCreatePage(t *testing.T) {
	var got map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/pages", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "2022-06-28", r.Header.Get("Notion-Version"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"id":"page-1","url":"https://notion.so/page-1"}`))
	})

	props := Properties{
		"Name": Title("Board meeting"),
		"Date": Date(model.DateRange{Start: "2025-07-10T18:00:00+02:00"}),
	}
	props.SetIf("URL", "", URL)

	page, err := c.CreatePage(context.Background(), PageRequest{
		DatabaseID: "db-1",
		Properties: props,
		Body:       "first\n\nsecond",
	})
	require.NoError(t, err)
	assert.Equal(t, Page{ID: "page-1", URL: "https://notion.so/page-1"}, page)

	assert.Equal(t, map[string]any{"database_id": "db-1"}, got["parent"])
	properties := got["properties"].(map[string]any)
	assert.NotContains(t, properties, "URL")
	assert.Equal(t, map[string]any{"start": "2025-07-10T18:00:00+02:00"},
		properties["Date"].(map[string]any)["date"])
	assert.Len(t, got["children"], 2)
}

func TestCreatePageRequiresDatabase(t *testing.T) {
	c := NewClient(Options{Token: "secret"})
	_, err := c.CreatePage(context.Background(), PageRequest{})
	require.Error(t, err)
}

func TestMissingToken(t *testing.T) {
	c := NewClient(Options{BaseURL: "http://127.0.0.1:0"})
	err := c.AddComment(context.Background(), "page", "hi")
	require.ErrorIs(t, err, ErrNoToken)
}

func TestAddComment(t *testing.T) {
	var got map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/comments", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{}`))
	})

	require.NoError(t, c.AddComment(context.Background(), "page-1", "original email"))
	assert.Equal(t, map[string]any{"page_id": "page-1"}, got["parent"])
	assert.Len(t, got["rich_text"], 1)
}

func TestFindPageByTitle(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1/databases/weeks/query", r.URL.Path)
			var body map[string]any
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			filter := body["filter"].(map[string]any)
			assert.Equal(t, "Name", filter["property"])
			assert.Equal(t, map[string]any{"equals": "Week 27"}, filter["title"])
			_, _ = w.Write([]byte(`{"results":[{"id":"wk-27","url":"u"}]}`))
		})
		id, err := WeekContainers{Client: c, DatabaseID: "weeks"}.FindContainer(context.Background(), "Week 27")
		require.NoError(t, err)
		assert.Equal(t, "wk-27", id)
	})

	t.Run("missing", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"results":[]}`))
		})
		id, err := c.FindPageByTitle(context.Background(), "weeks", "Title", "Week 1")
		require.NoError(t, err)
		assert.Empty(t, id)
	})
}

func TestRetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"id":"p"}`))
	})

	page, err := c.CreatePage(context.Background(), PageRequest{DatabaseID: "db", Properties: Properties{}})
	require.NoError(t, err)
	assert.Equal(t, "p", page.ID)
	assert.Equal(t, int32(2), calls.Load())
}

func TestAPIError(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"object":"error","code":"validation_error","message":"Name is not a property"}`))
	})

	_, err := c.CreatePage(context.Background(), PageRequest{DatabaseID: "db", Properties: Properties{}})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "validation_error", apiErr.Code)
	assert.Equal(t, int32(1), calls.Load())
}

func TestDateProperty(t *testing.T) {
	assert.Equal(t, map[string]any{"date": nil}, Date(model.DateRange{}))
	assert.Equal(t,
		map[string]any{"date": map[string]any{"start": "2025-07-10", "end": "2025-07-12"}},
		Date(model.DateRange{Start: "2025-07-10", End: "2025-07-12"}))
}

func TestRichTextChunks(t *testing.T) {
	long := strings.Repeat("é", maxTextLen+10)
	chunks := richText(long)
	require.Len(t, chunks, 2)
	first := chunks[0]["text"].(map[string]any)["content"].(string)
	assert.Equal(t, maxTextLen, len([]rune(first)))
}
