package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"summarai/internal/apperr"
	"summarai/internal/ids"
	"summarai/internal/mockserver"
	"summarai/internal/session"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fixedIDs struct{}

func (fixedIDs) Local() string             { return ids.LocalPrefix + "local" }
func (fixedIDs) Mock(prefix string) string { return prefix + "abcdefg" }
func (fixedIDs) Suffix() string            { return "sfx1234" }

func newMockBackend(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(mockserver.New("test-secret", nil).Router())
	t.Cleanup(srv.Close)
	return srv
}

// countingServer answers every request with status and body and counts hits.
func countingServer(t *testing.T, status int, body string) (*httptest.Server, *int32) {
	t.Helper()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func newTestClient(url string, opts ...Option) *Client {
	opts = append([]Option{WithIDs(fixedIDs{})}, opts...)
	return NewClient(url, 5*time.Second, nil, opts...)
}

func TestAgainstMockBackend(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(newMockBackend(t).URL)

	signup, err := c.Signup(ctx, "ana@example.com", "secret1", "secret1")
	require.NoError(t, err)
	assert.Equal(t, Real, signup.Origin)
	assert.Equal(t, "1", signup.Data.ID)
	assert.Equal(t, "ana@example.com", signup.Data.Email)

	login, err := c.Login(ctx, "ana@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, Real, login.Origin)
	assert.NotEmpty(t, login.Data.Token)
	assert.NotEqual(t, MockToken, login.Data.Token)
	assert.Equal(t, session.Identity{Email: "ana@example.com", Username: "ana"}, login.Data.Identity)

	video, err := c.ProcessVideo(ctx, "https://www.youtube.com/watch?v=xyz")
	require.NoError(t, err)
	assert.Equal(t, Real, video.Origin)
	assert.True(t, strings.HasPrefix(video.Data.ItemID, "yt_"))

	answer, err := c.RAGQuery(ctx, video.Data.ItemID, "what is it about?")
	require.NoError(t, err)
	assert.Equal(t, Real, answer.Origin)
	assert.Contains(t, answer.Data.Answer, "what is it about?")
	require.Len(t, answer.Data.Sources, 1)
	require.NotNil(t, answer.Data.Sources[0].Start)

	file, err := c.UploadFile(ctx, []byte("hello world"), "notes.txt")
	require.NoError(t, err)
	assert.Equal(t, Real, file.Origin)
	assert.True(t, strings.HasPrefix(file.Data.ItemID, "file_"))

	assert.NoError(t, c.HealthCheck(ctx))
}

func TestFallbacksWhenBackendUnreachable(t *testing.T) {
	ctx := context.Background()
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := newTestClient(url, WithBreaker(100, time.Minute), WithClock(func() time.Time {
		return time.UnixMilli(1700000000000)
	}))

	login, err := c.Login(ctx, "bob@example.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, Fallback, login.Origin)
	assert.Equal(t, MockToken, login.Data.Token)
	assert.Equal(t, session.Identity{Email: "bob@example.com", Username: "bob"}, login.Data.Identity)
	assert.True(t, apperr.Is(login.Cause, apperr.KindRemote))

	signup, err := c.Signup(ctx, "bob@example.com", "pw", "pw")
	require.NoError(t, err)
	assert.Equal(t, Fallback, signup.Origin)
	assert.Equal(t, "1700000000000", signup.Data.ID)

	video, err := c.ProcessVideo(ctx, "https://youtu.be/x")
	require.NoError(t, err)
	assert.True(t, video.IsFallback())
	assert.Equal(t, "mock_abcdefg", video.Data.ItemID)

	file, err := c.UploadFile(ctx, []byte("x"), "a.txt")
	require.NoError(t, err)
	assert.Equal(t, "mockfile_abcdefg", file.Data.ItemID)

	answer, err := c.RAGQuery(ctx, "mock_abcdefg", "q")
	require.NoError(t, err)
	assert.Equal(t, Fallback, answer.Origin)
	assert.Equal(t, MockAnswer, answer.Data.Answer)
	assert.Empty(t, answer.Data.Sources)

	assert.Error(t, c.HealthCheck(ctx))
}

func TestSignupMismatchNeverHitsNetwork(t *testing.T) {
	srv, hits := countingServer(t, http.StatusOK, `{}`)
	c := newTestClient(srv.URL)

	_, err := c.Signup(context.Background(), "a@example.com", "one", "two")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.Equal(t, PasswordMismatch, apperr.UserMessage(err))

	_, err = c.Login(context.Background(), "", "pw")
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	_, err = c.Login(context.Background(), "not-an-email", "pw")
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	assert.Equal(t, int32(0), atomic.LoadInt32(hits))
}

func TestErrorMessageExtraction(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"detail", 400, `{"detail":"Email already registered","error":"x"}`, "Email already registered"},
		{"error", 500, `{"error":"boom","message":"m"}`, "boom"},
		{"message", 502, `{"message":"bad gateway"}`, "bad gateway"},
		{"structured detail", 422, `{"detail":[{"loc":["body","email"]}]}`, `[{"loc":["body","email"]}]`},
		{"no fields", 503, `{"other":1}`, "HTTP 503"},
		{"not json", 500, `<html>oops</html>`, "HTTP 500"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := countingServer(t, tt.status, tt.body)
			c := newTestClient(srv.URL)

			res, err := c.RAGQuery(context.Background(), "id", "q")
			require.NoError(t, err)
			require.True(t, res.IsFallback())
			assert.Equal(t, tt.want, apperr.UserMessage(res.Cause))

			var appErr *apperr.Error
			require.ErrorAs(t, res.Cause, &appErr)
			assert.Equal(t, tt.status, appErr.Status)
		})
	}
}

func TestMissingIDsAreFilledIn(t *testing.T) {
	srv, _ := countingServer(t, http.StatusOK, `{"status":"processed"}`)
	c := newTestClient(srv.URL)
	ctx := context.Background()

	video, err := c.ProcessVideo(ctx, "https://youtu.be/x")
	require.NoError(t, err)
	assert.Equal(t, Real, video.Origin)
	assert.Equal(t, "sfx1234", video.Data.ItemID)

	file, err := c.UploadFile(ctx, []byte("x"), "a.txt")
	require.NoError(t, err)
	assert.Equal(t, Real, file.Origin)
	assert.Equal(t, "sfx1234", file.Data.ItemID)

	answer, err := c.RAGQuery(ctx, "id", "q")
	require.NoError(t, err)
	assert.Equal(t, Real, answer.Origin)
	assert.Equal(t, NoAnswerText, answer.Data.Answer)
}

func TestAlternateIDFields(t *testing.T) {
	ctx := context.Background()

	srv, _ := countingServer(t, http.StatusOK, `{"videoId":"v-2","id":"f-2"}`)
	c := newTestClient(srv.URL)
	video, err := c.ProcessVideo(ctx, "https://youtu.be/x")
	require.NoError(t, err)
	assert.Equal(t, "v-2", video.Data.ItemID)
	file, err := c.UploadFile(ctx, []byte("x"), "a.txt")
	require.NoError(t, err)
	assert.Equal(t, "f-2", file.Data.ItemID)
}

func TestLegacyLoginShape(t *testing.T) {
	srv, _ := countingServer(t, http.StatusOK, `{"id":4,"email":"carol@example.com"}`)
	c := newTestClient(srv.URL)

	res, err := c.Login(context.Background(), "carol@example.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, Real, res.Origin)
	assert.Empty(t, res.Data.Token)
	assert.Equal(t, session.Identity{Email: "carol@example.com", Username: "carol"}, res.Data.Identity)
}

func TestMalformedBodyFallsBack(t *testing.T) {
	srv, _ := countingServer(t, http.StatusOK, `not json`)
	c := newTestClient(srv.URL)

	res, err := c.ProcessVideo(context.Background(), "https://youtu.be/x")
	require.NoError(t, err)
	assert.True(t, res.IsFallback())
	assert.Equal(t, "malformed response", apperr.UserMessage(res.Cause))
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	srv, hits := countingServer(t, http.StatusInternalServerError, `{"detail":"down"}`)
	c := newTestClient(srv.URL, WithBreaker(2, time.Minute))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		res, err := c.RAGQuery(ctx, "id", "q")
		require.NoError(t, err)
		assert.True(t, res.IsFallback())
	}
	require.Equal(t, int32(2), atomic.LoadInt32(hits))

	res, err := c.RAGQuery(ctx, "id", "q")
	require.NoError(t, err)
	assert.True(t, res.IsFallback())
	assert.Equal(t, "backend temporarily unavailable", apperr.UserMessage(res.Cause))
	assert.Equal(t, int32(2), atomic.LoadInt32(hits))
}

func TestCanceledContextIsReturned(t *testing.T) {
	srv, _ := countingServer(t, http.StatusOK, `{}`)
	c := newTestClient(srv.URL)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.RAGQuery(ctx, "id", "q")
	assert.ErrorIs(t, err, context.Canceled)
	_, err = c.ProcessVideo(ctx, "https://youtu.be/x")
	assert.ErrorIs(t, err, context.Canceled)
}
