package handlers_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	repochat "github.com/yungbote/threadchat-backend/internal/data/repos/chat"
	"github.com/yungbote/threadchat-backend/internal/data/repos/testutil"
	"github.com/yungbote/threadchat-backend/internal/http/handlers"
	"github.com/yungbote/threadchat-backend/internal/inference/engine"
	"github.com/yungbote/threadchat-backend/internal/inference/engine/mock"
	"github.com/yungbote/threadchat-backend/internal/realtime"
	"github.com/yungbote/threadchat-backend/internal/services"
	"github.com/yungbote/threadchat-backend/internal/upload"
)

type harness struct {
	router  *gin.Engine
	hub     *realtime.SSEHub
	threads services.ThreadService
}

type hubPublisher struct{ hub *realtime.SSEHub }

func (p hubPublisher) Publish(_ context.Context, msg realtime.SSEMessage) error {
	p.hub.Broadcast(msg)
	return nil
}

func newHarness(t *testing.T, eng engine.Engine) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.DB(t)
	log := testutil.Logger(t)
	threadRepo := repochat.NewThreadRepo(db, log)
	messageRepo := repochat.NewMessageRepo(db, log)

	hub := realtime.NewSSEHub(log)
	threads := services.NewThreadService(log, threadRepo, messageRepo, testutil.UniqueTitle("handlers"))
	history := services.NewHistoryLoader(log, messageRepo)
	chatSvc := services.NewChatService(log, services.ChatConfig{HistoryLimit: 20}, threads, history, messageRepo, eng,
		services.NewChatNotifier(hubPublisher{hub: hub}, log))

	health := handlers.NewHealthHandler(db)
	chatH := handlers.NewChatHandler(log, chatSvc, threads, history, 20)
	threadH := handlers.NewThreadHandler(threads)
	uploadH := handlers.NewUploadHandler(log, upload.Options{Policy: upload.PolicyStrict})
	realtimeH := handlers.NewRealtimeHandler(log, hub, threads)

	r := gin.New()
	r.GET("/healthcheck", health.HealthCheck)
	r.GET("/readyz", health.Ready)
	r.POST("/upload", uploadH.Upload)
	r.GET("/api/threads", threadH.List)
	r.GET("/api/threads/:id", threadH.Get)
	r.GET("/api/threads/:id/messages", threadH.Messages)
	r.GET("/api/threads/:id/events", realtimeH.ThreadEvents)
	r.GET("/api/chat/history", chatH.History)
	r.POST("/api/chat/stream", chatH.Stream)

	return &harness{router: r, hub: hub, threads: threads}
}

func (h *harness) do(t *testing.T, method, path string, body []byte, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	h := newHarness(t, mock.New())

	w := h.do(t, http.MethodGet, "/healthcheck", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "ok", w.Body.String())

	w = h.do(t, http.MethodGet, "/readyz", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
}

func TestChatStreamFramesDeltasAndPersists(t *testing.T) {
	h := newHarness(t, mock.Scripted("Hel", "Hello", "Hello\nwor", "Hello\nworld"))

	w := h.do(t, http.MethodPost, "/api/chat/stream", []byte(`{"message":"hi"}`), "application/json")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	threadID := w.Header().Get(handlers.HeaderThreadID)
	require.NotEmpty(t, threadID)
	require.Equal(t, "data: Hel\n\ndata: lo\n\ndata: \ndata: wor\n\ndata: ld\n\ndata: [DONE]\n\n", w.Body.String())

	w = h.do(t, http.MethodGet, "/api/threads/"+threadID+"/messages", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	out := decode(t, w)
	msgs := out["messages"].([]any)
	require.Len(t, msgs, 2)
	require.Equal(t, "user", msgs[0].(map[string]any)["role"])
	require.Equal(t, "hi", msgs[0].(map[string]any)["content"])
	require.Equal(t, "Hello\nworld", msgs[1].(map[string]any)["content"])
	require.EqualValues(t, 1, msgs[1].(map[string]any)["idx"])

	w = h.do(t, http.MethodGet, "/api/threads/"+threadID, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	out = decode(t, w)
	require.EqualValues(t, 2, out["message_count"])
	require.EqualValues(t, 1, out["last_idx"])
}

func TestChatStreamRejectsBlankMessageBeforeStreaming(t *testing.T) {
	h := newHarness(t, mock.New())

	w := h.do(t, http.MethodPost, "/api/chat/stream", []byte(`{"message":"   "}`), "application/json")
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Header().Get("Content-Type"), "application/json")
	out := decode(t, w)
	require.Equal(t, "message is required", out["detail"])
}

func TestChatStreamUnknownThreadIsNotFound(t *testing.T) {
	h := newHarness(t, mock.New())

	body := []byte(`{"message":"hi","thread_id":"` + uuid.NewString() + `"}`)
	w := h.do(t, http.MethodPost, "/api/chat/stream", body, "application/json")
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestChatStreamFailureEndsWithErrorSentinel(t *testing.T) {
	h := newHarness(t, mock.Failing(errors.New("upstream\nexploded"), "partial"))

	w := h.do(t, http.MethodPost, "/api/chat/stream", []byte(`{"message":"hi","thread_title":"failing"}`), "application/json")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	require.True(t, strings.HasPrefix(body, "data: partial\n\n"), body)
	require.True(t, strings.HasSuffix(body, "data: [ERROR] upstream exploded\n\n"), body)
	require.NotContains(t, body, "[DONE]")

	w = h.do(t, http.MethodGet, "/api/chat/history?thread_title=failing", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Empty(t, decode(t, w)["messages"])
}

func TestChatHistoryLimit(t *testing.T) {
	h := newHarness(t, mock.New())

	for _, q := range []string{"one", "two"} {
		w := h.do(t, http.MethodPost, "/api/chat/stream", []byte(`{"message":"`+q+`","thread_title":"hist"}`), "application/json")
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := h.do(t, http.MethodGet, "/api/chat/history?thread_title=hist&limit=3", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	msgs := decode(t, w)["messages"].([]any)
	require.Len(t, msgs, 3)
	require.Equal(t, "mock: one", msgs[0].(map[string]any)["content"])
	require.Equal(t, "mock: two", msgs[2].(map[string]any)["content"])

	w = h.do(t, http.MethodGet, "/api/chat/history?thread_title=hist&limit=abc", nil, "")
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(t, http.MethodGet, "/api/chat/history?thread_title=hist&limit=-1", nil, "")
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestThreadLookups(t *testing.T) {
	h := newHarness(t, mock.New())

	w := h.do(t, http.MethodGet, "/api/threads/not-a-uuid", nil, "")
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(t, http.MethodGet, "/api/threads/"+uuid.NewString(), nil, "")
	require.Equal(t, http.StatusNotFound, w.Code)

	w = h.do(t, http.MethodGet, "/api/threads", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var listed []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listed), w.Body.String())
	require.NotNil(t, listed)

	title := testutil.UniqueTitle("listed")
	th, err := h.threads.Resolve(context.Background(), title)
	require.NoError(t, err)
	w = h.do(t, http.MethodGet, "/api/threads?limit=10", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	listed = nil
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listed), w.Body.String())
	var found map[string]any
	for _, item := range listed {
		if item["id"] == th.ID.String() {
			found = item
		}
	}
	require.NotNil(t, found, w.Body.String())
	require.Equal(t, title, found["title"])
	require.Contains(t, found, "created_at")

	w = h.do(t, http.MethodGet, "/api/threads/"+th.ID.String(), nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	out := decode(t, w)
	require.EqualValues(t, 0, out["message_count"])
	require.Nil(t, out["last_idx"])
}

func multipartBody(t *testing.T, filename, content string) ([]byte, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return buf.Bytes(), mw.FormDataContentType()
}

func TestUpload(t *testing.T) {
	h := newHarness(t, mock.New())

	cases := []struct {
		name     string
		filename string
		content  string
		status   int
		detail   string
	}{
		{"csv", "counts.csv", "gene,s1,s2\nG1,1,2\nG2,3,4\n", http.StatusOK, ""},
		{"tsv", "counts.tsv", "gene\ts1\ts2\nG1\t1\t2\n", http.StatusOK, ""},
		{"pipe", "counts.txt", "gene|s1|s2\nG1|1|2\n", http.StatusBadRequest,
			"Could not determine the delimiter. Please use a comma or tab-separated file."},
		{"non numeric", "counts.csv", "gene,s1,s2\nG1,1,foo\n", http.StatusUnprocessableEntity,
			"Data validation error: All count columns must be numeric."},
		{"numeric index", "counts.csv", "gene,s1\n1,2\n2,3\n", http.StatusUnprocessableEntity,
			"Data validation error: The first column (gene IDs) should not be numeric."},
		{"newline only", "counts.csv", "\n", http.StatusBadRequest, ""},
		{"bad extension", "counts.xlsx", "gene,s1\nG1,1\n", http.StatusBadRequest, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			body, ct := multipartBody(t, tc.filename, tc.content)
			w := h.do(t, http.MethodPost, "/upload", body, ct)
			require.Equal(t, tc.status, w.Code, w.Body.String())
			out := decode(t, w)
			if tc.detail != "" {
				require.Equal(t, tc.detail, out["detail"])
			}
			if tc.status == http.StatusOK {
				require.Equal(t, tc.filename, out["filename"])
				require.Equal(t, "gene", out["index_name"])
			}
		})
	}
}

func TestUploadCSVMetadata(t *testing.T) {
	h := newHarness(t, mock.New())

	body, ct := multipartBody(t, "counts.csv", "gene,s1,s2\nG1,1,2\nG2,3,4\n")
	w := h.do(t, http.MethodPost, "/upload", body, ct)
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{
		"filename": "counts.csv",
		"format": "csv",
		"shape": [2, 2],
		"columns": ["s1", "s2"],
		"index_name": "gene",
		"dtypes": {"s1": "int64", "s2": "int64"},
		"head": {"index": ["G1", "G2"], "columns": ["s1", "s2"], "data": [[1, 2], [3, 4]]}
	}`, w.Body.String())
}

func TestUploadMissingFile(t *testing.T) {
	h := newHarness(t, mock.New())

	w := h.do(t, http.MethodPost, "/upload", []byte("{}"), "application/json")
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestThreadEventsReceivesMessagesAppended(t *testing.T) {
	h := newHarness(t, mock.New())
	srv := httptest.NewServer(h.router)
	defer srv.Close()

	th, err := h.threads.Resolve(context.Background(), "events")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/threads/"+th.ID.String()+"/events", nil)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.Eventually(t, func() bool { return h.hub.Subscribers(th.ID.String()) == 1 }, 2*time.Second, 10*time.Millisecond)

	post, err := srv.Client().Post(srv.URL+"/api/chat/stream", "application/json",
		strings.NewReader(`{"message":"hi","thread_id":"`+th.ID.String()+`"}`))
	require.NoError(t, err)
	_, _ = bufio.NewReader(post.Body).ReadString(0)
	post.Body.Close()

	rd := bufio.NewReader(resp.Body)
	var event string
	for event == "" {
		line, err := rd.ReadString('\n')
		require.NoError(t, err)
		if strings.HasPrefix(line, "event: ") {
			event = strings.TrimSpace(strings.TrimPrefix(line, "event: "))
		}
	}
	require.Equal(t, string(realtime.SSEEventMessagesAppended), event)

	cancel()
	require.Eventually(t, func() bool { return h.hub.Subscribers(th.ID.String()) == 0 }, 2*time.Second, 10*time.Millisecond)
}
