// Package mockserver is a stand-in for the SummarAI backend. It implements
// the same routes with in-memory state, for local development and tests.
package mockserver

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"summarai/internal/logging"
)

const maxExcerpt = 200

// Source is a transcript or document excerpt returned with an answer.
type Source struct {
	Start *float64 `json:"start,omitempty"`
	End   *float64 `json:"end,omitempty"`
	Text  string   `json:"text"`
}

type user struct {
	ID           int64
	Email        string
	Username     string
	PasswordHash []byte
}

type item struct {
	ID      string
	Kind    string
	Name    string
	Content string
}

// Server holds the mock backend state.
type Server struct {
	secret []byte
	ttl    time.Duration
	logger *zap.Logger

	mu     sync.RWMutex
	users  map[string]*user
	items  map[string]*item
	nextID int64
}

// New creates a mock backend that signs tokens with secret.
func New(secret string, logger *zap.Logger) *Server {
	return &Server{
		secret: []byte(secret),
		ttl:    24 * time.Hour,
		logger: logging.OrNop(logger),
		users:  make(map[string]*user),
		items:  make(map[string]*item),
		nextID: 1,
	}
}

type credentials struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type ragQuery struct {
	VideoID  string `json:"video_id" binding:"required"`
	Question string `json:"question" binding:"required"`
}

// Router returns the HTTP handler.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), s.accessLog())

	router.GET("/", s.health)
	router.POST("/signup", s.signup)
	router.POST("/login", s.login)

	items := router.Group("/", s.bearerAuth())
	items.POST("/youtube/process", s.processVideo)
	items.POST("/files/upload", s.uploadFile)
	items.POST("/rag/query", s.ragQuery)
	return router
}

// bearerAuth rejects requests carrying a token this server did not issue.
// Requests without an Authorization header pass through anonymously.
func (s *Server) bearerAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.Next()
			return
		}
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			detail(c, http.StatusUnauthorized, "Invalid token")
			return
		}
		sub, err := s.parseToken(strings.TrimSpace(token))
		if err != nil {
			detail(c, http.StatusUnauthorized, "Invalid token")
			return
		}
		c.Set("user_id", sub)
		c.Next()
	}
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}

func detail(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"detail": msg})
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) signup(c *gin.Context) {
	var req credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		detail(c, http.StatusUnprocessableEntity, "invalid request payload")
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.MinCost)
	if err != nil {
		detail(c, http.StatusInternalServerError, "signup failed")
		return
	}

	s.mu.Lock()
	if _, exists := s.users[email]; exists {
		s.mu.Unlock()
		detail(c, http.StatusBadRequest, "Email already registered")
		return
	}
	u := &user{ID: s.nextID, Email: email, PasswordHash: hash}
	u.Username, _, _ = strings.Cut(email, "@")
	s.nextID++
	s.users[email] = u
	s.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{"id": u.ID, "email": u.Email})
}

func (s *Server) login(c *gin.Context) {
	var req credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		detail(c, http.StatusUnprocessableEntity, "invalid request payload")
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	s.mu.RLock()
	u, ok := s.users[email]
	s.mu.RUnlock()
	if !ok || bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(req.Password)) != nil {
		detail(c, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, err := s.issueToken(u)
	if err != nil {
		detail(c, http.StatusInternalServerError, "login failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"access_token": token,
		"token_type":   "bearer",
		"user": gin.H{
			"id":       u.ID,
			"email":    u.Email,
			"username": u.Username,
		},
	})
}

func (s *Server) issueToken(u *user) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(u.ID, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// parseToken validates a token issued by this server and returns its subject.
func (s *Server) parseToken(token string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	})
	if err != nil {
		return "", err
	}
	if !parsed.Valid {
		return "", errors.New("invalid token")
	}
	return claims.Subject, nil
}

func (s *Server) processVideo(c *gin.Context) {
	videoURL := strings.TrimSpace(c.Query("youtube_url"))
	if videoURL == "" {
		detail(c, http.StatusUnprocessableEntity, "youtube_url is required")
		return
	}
	if !strings.Contains(videoURL, "youtube.com") && !strings.Contains(videoURL, "youtu.be") {
		detail(c, http.StatusBadRequest, "Not a YouTube URL")
		return
	}

	id := "yt_" + randomHex(4)
	s.store(&item{
		ID:      id,
		Kind:    "video",
		Name:    videoURL,
		Content: "Transcript of " + videoURL,
	})
	c.JSON(http.StatusOK, gin.H{"video_id": id, "status": "processed"})
}

func (s *Server) uploadFile(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		detail(c, http.StatusUnprocessableEntity, "file is required")
		return
	}
	f, err := header.Open()
	if err != nil {
		detail(c, http.StatusBadRequest, "unreadable file")
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		detail(c, http.StatusBadRequest, "unreadable file")
		return
	}

	id := "file_" + randomHex(4)
	s.store(&item{
		ID:      id,
		Kind:    "file",
		Name:    header.Filename,
		Content: string(data),
	})
	c.JSON(http.StatusOK, gin.H{"file_id": id, "filename": header.Filename})
}

func (s *Server) ragQuery(c *gin.Context) {
	var req ragQuery
	if err := c.ShouldBindJSON(&req); err != nil {
		detail(c, http.StatusUnprocessableEntity, "invalid request payload")
		return
	}

	s.mu.RLock()
	it, ok := s.items[req.VideoID]
	s.mu.RUnlock()
	if !ok {
		detail(c, http.StatusNotFound, "Item not found")
		return
	}

	source := Source{Text: excerpt(it.Content)}
	if it.Kind == "video" {
		start, end := 0.0, 30.0
		source.Start, source.End = &start, &end
	}
	c.JSON(http.StatusOK, gin.H{
		"answer":  "Based on " + it.Name + ": " + req.Question,
		"sources": []Source{source},
	})
}

// excerpt cuts content to maxExcerpt characters on a rune boundary.
func excerpt(content string) string {
	if utf8.RuneCountInString(content) <= maxExcerpt {
		return content
	}
	return string([]rune(content)[:maxExcerpt])
}

func (s *Server) store(it *item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[it.ID] = it
}

func randomHex(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return strconv.FormatInt(time.Now().UnixNano(), 16)
	}
	return hex.EncodeToString(buf)
}
