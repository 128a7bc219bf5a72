package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/threadchat-backend/internal/platform/apierr"
)

func TestWriteSSESplitsLines(t *testing.T) {
	rec := httptest.NewRecorder()
	if err := WriteSSE(rec, "", "a\nb"); err != nil {
		t.Fatalf("WriteSSE: %v", err)
	}
	if got := rec.Body.String(); got != "data: a\ndata: b\n\n" {
		t.Fatalf("framing=%q", got)
	}
}

func TestSSEWriterSentinels(t *testing.T) {
	rec := httptest.NewRecorder()
	sw, ok := NewSSEWriter(rec)
	if !ok {
		t.Fatalf("recorder should flush")
	}
	sw.WriteHeaders(map[string]string{"X-Thread-Id": "t1"})
	_ = sw.Data("hi")
	_ = sw.Error("boom\nagain")
	_ = sw.Done()

	want := "data: hi\n\ndata: [ERROR] boom again\n\ndata: [DONE]\n\n"
	if got := rec.Body.String(); got != want {
		t.Fatalf("body=%q", got)
	}
	if rec.Header().Get("X-Thread-Id") != "t1" || rec.Header().Get("Content-Type") != "text/event-stream" {
		t.Fatalf("headers=%v", rec.Header())
	}
}

func TestRespondAPIErrorEnvelope(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		err    error
		status int
		code   string
		msg    string
	}{
		{apierr.InputFormat("bad delimiter"), http.StatusBadRequest, apierr.CodeInvalidInput, "bad delimiter"},
		{apierr.ContentValidation("All count columns must be numeric"), http.StatusUnprocessableEntity, apierr.CodeContentInvalid, "All count columns must be numeric"},
		{errors.New("db password leaked"), http.StatusInternalServerError, apierr.CodeInternal, "internal server error"},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(rec)
		RespondAPIError(c, tc.err)

		if rec.Code != tc.status {
			t.Fatalf("status=%d want %d", rec.Code, tc.status)
		}
		var env ErrorEnvelope
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if env.Detail != tc.msg || env.Error.Message != tc.msg || env.Error.Code != tc.code {
			t.Fatalf("envelope=%+v", env)
		}
	}
}
