package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmehdipour/mail-relay/internal/dedup"
	"github.com/jmehdipour/mail-relay/internal/extract"
	"github.com/jmehdipour/mail-relay/internal/model"
	"github.com/jmehdipour/mail-relay/internal/pipeline"
)

type stubExtractor struct {
	event model.EventFields
	inbox model.InboxFields
}

func (s *stubExtractor) ExtractEvent(context.Context, string, string) (model.EventFields, error) {
	return s.event, nil
}

func (s *stubExtractor) ExtractNewsletterItem(context.Context, string, string) (model.NewsletterFields, error) {
	return model.NewsletterFields{}, nil
}

func (s *stubExtractor) ExtractInbox(context.Context, string, string) (model.InboxFields, error) {
	return s.inbox, nil
}

type stubStore struct {
	created int
	fail    bool
	// during runs once while the first record is being written.
	during func()
}

func (s *stubStore) page() (model.PageRef, error) {
	if d := s.during; d != nil {
		s.during = nil
		d()
	}
	if s.fail {
		return model.PageRef{}, errors.New("notion unavailable")
	}
	s.created++
	return model.PageRef{ID: "p1", URL: "https://notion.so/p1"}, nil
}

func (s *stubStore) CreateEvent(context.Context, model.EventFields, model.DateRange, model.Envelope) (model.PageRef, error) {
	return s.page()
}

func (s *stubStore) CreateNewsletterItem(context.Context, model.NewsletterFields, model.Envelope) (model.PageRef, error) {
	return s.page()
}

func (s *stubStore) CreateInboxItem(context.Context, model.InboxFields, model.Envelope) (model.PageRef, error) {
	return s.page()
}

func (s *stubStore) LinkWeek(context.Context, string, string) error   { return nil }
func (s *stubStore) AddComment(context.Context, string, string) error { return nil }

type stubMailer struct{ sent []model.Email }

func (m *stubMailer) Send(_ context.Context, e model.Email) error {
	m.sent = append(m.sent, e)
	return nil
}

type fixture struct {
	srv    *Server
	ex     *stubExtractor
	store  *stubStore
	mailer *stubMailer
}

func newFixture(t *testing.T, claimer Claimer) *fixture {
	t.Helper()
	return newFixtureWith(t, claimer, nil)
}

// newFixtureWith swaps the stub extractor for ex when ex is non-nil.
func newFixtureWith(t *testing.T, claimer Claimer, ex pipeline.Extractor) *fixture {
	t.Helper()
	f := &fixture{ex: &stubExtractor{}, store: &stubStore{}, mailer: &stubMailer{}}
	if ex == nil {
		ex = f.ex
	}
	orch := pipeline.New(pipeline.Deps{
		Extractor: ex,
		Store:     f.store,
		Mailer:    f.mailer,
	}, pipeline.Options{MailFrom: "relay@example.com"})
	f.srv = NewServer(Options{Configured: map[string]bool{"notion": true}}, Deps{
		Processor: orch,
		Dedup:     claimer,
	})
	return f
}

func (f *fixture) post(path, body string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

const meetupPayload = `{"from":"a@x.com","subject":"Meetup","body":"Join us March 15, 2025 at 18:00"}`

var toEvents = http.Header{"X-Original-To": {"event@relay.example.com"}}

func TestWebhookEventEndToEnd(t *testing.T) {
	f := newFixture(t, nil)
	f.ex.event = model.EventFields{Name: "Meetup", Date: "2025-03-15", Time: "18:00"}

	rec := f.post("/webhook/inbound", meetupPayload, toEvents)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "event", body["type"])
	assert.Equal(t, "https://notion.so/p1", body["url"])
	assert.Equal(t, map[string]any{"start": "2025-03-15T18:00:00+01:00"}, body["date"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestWebhookEventMissingDate(t *testing.T) {
	f := newFixture(t, nil)
	f.ex.event = model.EventFields{Name: "Meetup"}

	rec := f.post("/webhook", meetupPayload, toEvents)
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, false, body["success"])
	assert.Contains(t, body["error"], "date")
	require.Len(t, f.mailer.sent, 1, "error email attempted")
	assert.Equal(t, []string{"a@x.com"}, f.mailer.sent[0].To)
	assert.Zero(t, f.store.created)
}

type cannedLLM string

func (c cannedLLM) CreateMessage(context.Context, *extract.MessagesRequest) (*extract.MessagesResponse, error) {
	return &extract.MessagesResponse{Content: []extract.ContentBlock{{Type: "text", Text: string(c)}}}, nil
}

func TestWebhookEventBlankDateSendsErrorEmail(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{"empty date", `{"name":"Meetup","date":""}`},
		{"empty date and time", `{"name":"Meetup","date":"","time":"","endDate":"","endTime":""}`},
		{"null date", `{"name":"Meetup","date":null}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex, err := extract.NewExtractor(cannedLLM(tt.reply), extract.Options{})
			require.NoError(t, err)
			f := newFixtureWith(t, nil, ex)

			rec := f.post("/webhook", meetupPayload, toEvents)
			require.Equal(t, http.StatusInternalServerError, rec.Code)
			assert.Contains(t, decode(t, rec)["error"], "date")
			require.Len(t, f.mailer.sent, 1, "error email sent")
			assert.Equal(t, "Could not process: Meetup", f.mailer.sent[0].Subject)
			assert.Zero(t, f.store.created)
		})
	}
}

func TestWebhookBadRequests(t *testing.T) {
	f := newFixture(t, nil)

	for name, body := range map[string]string{
		"not json":   `{"from":`,
		"json array": `[1,2]`,
		"json null":  `null`,
		"no body":    `{}`,
	} {
		t.Run(name, func(t *testing.T) {
			rec := f.post("/webhook/inbound", body, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.NotEmpty(t, decode(t, rec)["error"])
		})
	}
}

func TestWebhookRecordStoreFailure(t *testing.T) {
	f := newFixture(t, nil)
	f.store.fail = true

	rec := f.post("/webhook/inbound", `{"from":"a@x.com","text":"hello"}`, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, decode(t, rec)["error"], "notion unavailable")
}

func TestWebhookDeduplicatesRedelivery(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	f := newFixture(t, dedup.New(rdb, dedup.Config{}))
	f.ex.event = model.EventFields{Name: "Meetup", Date: "2025-03-15"}

	first := f.post("/webhook/inbound", meetupPayload, toEvents)
	require.Equal(t, http.StatusOK, first.Code)

	second := f.post("/webhook/inbound", meetupPayload, toEvents)
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, true, decode(t, second)["duplicate"])
	assert.Equal(t, 1, f.store.created)
}

func TestWebhookRedeliveryWhileInFlight(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	tests := []struct {
		name      string
		firstFail bool
		wantFirst int
		wantLater int
		wantDup   any
		wantPages int
	}{
		{"first attempt succeeds", false, http.StatusOK, http.StatusOK, true, 1},
		{"first attempt fails", true, http.StatusInternalServerError, http.StatusOK, nil, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mr.FlushAll()
			f := newFixture(t, dedup.New(rdb, dedup.Config{}))
			f.ex.event = model.EventFields{Name: "Meetup", Date: "2025-03-15"}

			var overlap *httptest.ResponseRecorder
			f.store.fail = tt.firstFail
			f.store.during = func() { overlap = f.post("/webhook/inbound", meetupPayload, toEvents) }

			first := f.post("/webhook/inbound", meetupPayload, toEvents)
			require.Equal(t, tt.wantFirst, first.Code)

			require.NotNil(t, overlap)
			require.Equal(t, http.StatusConflict, overlap.Code, "retryable while in flight")
			body := decode(t, overlap)
			assert.Equal(t, false, body["success"])
			assert.Equal(t, "delivery already in progress", body["error"])

			f.store.fail = false
			later := f.post("/webhook/inbound", meetupPayload, toEvents)
			require.Equal(t, tt.wantLater, later.Code)
			assert.Equal(t, tt.wantDup, decode(t, later)["duplicate"])
			assert.Equal(t, tt.wantPages, f.store.created)
		})
	}
}

func TestWebhookFailureReleasesClaim(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	f := newFixture(t, dedup.New(rdb, dedup.Config{}))
	f.store.fail = true
	payload := `{"from":"a@x.com","text":"hello"}`

	require.Equal(t, http.StatusInternalServerError, f.post("/webhook/inbound", payload, nil).Code)

	f.store.fail = false
	rec := f.post("/webhook/inbound", payload, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, decode(t, rec)["duplicate"])
	assert.Equal(t, 1, f.store.created)
}

func TestHealthz(t *testing.T) {
	f := newFixture(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{
		"status":     "ok",
		"configured": map[string]any{"notion": true},
	}, decode(t, rec))
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t, nil)
	f.post("/webhook/inbound", `{"from":"a@x.com","text":"hello"}`, nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "relay_inbound_total")
}
