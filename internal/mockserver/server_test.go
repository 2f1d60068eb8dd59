package mockserver

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	return rec, out
}

func TestHealth(t *testing.T) {
	h := New("secret", nil).Router()
	rec, body := doJSON(t, h, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
}

func TestSignupAndLogin(t *testing.T) {
	s := New("secret", nil)
	h := s.Router()
	creds := map[string]string{"email": "Ana@Example.com", "password": "pw123456"}

	rec, body := doJSON(t, h, http.MethodPost, "/signup", creds)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ana@example.com", body["email"])
	assert.NotNil(t, body["id"])

	rec, body = doJSON(t, h, http.MethodPost, "/signup", creds)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Email already registered", body["detail"])

	rec, body = doJSON(t, h, http.MethodPost, "/login", creds)
	require.Equal(t, http.StatusOK, rec.Code)
	token, _ := body["access_token"].(string)
	require.NotEmpty(t, token)
	sub, err := s.parseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "1", sub)
	u := body["user"].(map[string]any)
	assert.Equal(t, "ana", u["username"])

	rec, body = doJSON(t, h, http.MethodPost, "/login", map[string]string{"email": "ana@example.com", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid credentials", body["detail"])

	_, err = New("other", nil).parseToken(token)
	assert.Error(t, err)
}

func TestProcessAndQuery(t *testing.T) {
	h := New("secret", nil).Router()

	rec, body := doJSON(t, h, http.MethodPost, "/youtube/process?youtube_url=https://youtu.be/abc", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	id := body["video_id"].(string)
	assert.True(t, strings.HasPrefix(id, "yt_"))

	rec, body = doJSON(t, h, http.MethodPost, "/rag/query", map[string]string{"video_id": id, "question": "what?"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, body["answer"], "what?")
	sources := body["sources"].([]any)
	require.Len(t, sources, 1)
	assert.Equal(t, 0.0, sources[0].(map[string]any)["start"])

	rec, body = doJSON(t, h, http.MethodPost, "/rag/query", map[string]string{"video_id": "nope", "question": "q"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Item not found", body["detail"])

	rec, _ = doJSON(t, h, http.MethodPost, "/youtube/process?youtube_url=https://vimeo.com/1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadFile(t *testing.T) {
	h := New("secret", nil).Router()

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	part, err := form.CreateFormFile("file", "notes.txt")
	require.NoError(t, err)
	_, err = part.Write([]byte("the mitochondria is the powerhouse"))
	require.NoError(t, err)
	require.NoError(t, form.Close())

	req := httptest.NewRequest(http.MethodPost, "/files/upload", &buf)
	req.Header.Set("Content-Type", form.FormDataContentType())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	id := body["file_id"].(string)
	assert.True(t, strings.HasPrefix(id, "file_"))

	rec2, answer := doJSON(t, h, http.MethodPost, "/rag/query", map[string]string{"video_id": id, "question": "q"})
	require.Equal(t, http.StatusOK, rec2.Code)
	src := answer["sources"].([]any)[0].(map[string]any)
	assert.Equal(t, "the mitochondria is the powerhouse", src["text"])
	assert.NotContains(t, src, "start")
}

func TestBearerToken(t *testing.T) {
	s := New("secret", nil)
	h := s.Router()
	creds := map[string]string{"email": "ana@example.com", "password": "pw123456"}
	rec, _ := doJSON(t, h, http.MethodPost, "/signup", creds)
	require.Equal(t, http.StatusOK, rec.Code)
	_, body := doJSON(t, h, http.MethodPost, "/login", creds)
	token := body["access_token"].(string)
	forged, err := New("other", nil).issueToken(&user{ID: 1})
	require.NoError(t, err)

	process := func(auth string) (*httptest.ResponseRecorder, map[string]any) {
		req := httptest.NewRequest(http.MethodPost, "/youtube/process?youtube_url=https://youtu.be/abc", nil)
		if auth != "" {
			req.Header.Set("Authorization", auth)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		var out map[string]any
		_ = json.Unmarshal(rec.Body.Bytes(), &out)
		return rec, out
	}

	rec, _ = process("")
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = process("Bearer " + token)
	assert.Equal(t, http.StatusOK, rec.Code)

	for _, auth := range []string{"Bearer " + forged, "Bearer garbage", "Basic " + token} {
		rec, body = process(auth)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, auth)
		assert.Equal(t, "Invalid token", body["detail"])
	}
}

func TestExcerptKeepsWholeRunes(t *testing.T) {
	h := New("secret", nil).Router()

	content := strings.Repeat("é", 150) + strings.Repeat("日本", 100)
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	part, err := form.CreateFormFile("file", "notes.txt")
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, form.Close())

	req := httptest.NewRequest(http.MethodPost, "/files/upload", &buf)
	req.Header.Set("Content-Type", form.FormDataContentType())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var uploaded map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &uploaded))

	rec, answer := doJSON(t, h, http.MethodPost, "/rag/query", map[string]string{"video_id": uploaded["file_id"].(string), "question": "q"})
	require.Equal(t, http.StatusOK, rec.Code)
	text := answer["sources"].([]any)[0].(map[string]any)["text"].(string)
	assert.True(t, utf8.ValidString(text))
	assert.Equal(t, 200, utf8.RuneCountInString(text))
	assert.Equal(t, strings.Repeat("é", 150)+strings.Repeat("日本", 25), text)

	assert.Equal(t, "short", excerpt("short"))
}
