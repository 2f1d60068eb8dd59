// Package gateway talks to the SummarAI backend.
//
// Every operation tries the backend first. When the call fails in
// transport, returns a non-2xx status, or answers with a body that can't be
// decoded, the failure is logged and a placeholder result is returned with
// Origin set to Fallback, so callers always get a usable value. Only local
// validation failures and context cancellation are returned as errors.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"summarai/internal/apperr"
	"summarai/internal/ids"
	"summarai/internal/logging"
	"summarai/internal/session"
)

// maxErrorBody bounds how much of a failed response is read for its message.
const maxErrorBody = 64 * 1024

// Client handles communication with the backend
type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	validate   *validator.Validate
	ids        ids.Generator
	logger     *zap.Logger
	now        func() time.Time
}

// Option customizes a Client.
type Option func(*Client)

// WithIDs replaces the id generator used for placeholders.
func WithIDs(gen ids.Generator) Option {
	return func(c *Client) { c.ids = gen }
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// WithBreaker configures the circuit breaker: it opens after failures
// consecutive failed calls and probes the backend again after timeout.
func WithBreaker(failures uint32, timeout time.Duration) Option {
	return func(c *Client) { c.breaker = newBreaker(failures, timeout, c.logger) }
}

// NewClient creates a new backend client
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger, opts ...Option) *Client {
	logger = logging.OrNop(logger)
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		validate: validator.New(),
		ids:      ids.NewGenerator(),
		logger:   logger,
		now:      time.Now,
	}
	c.breaker = newBreaker(3, 30*time.Second, logger)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func newBreaker(failures uint32, timeout time.Duration, logger *zap.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "summarai-backend",
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
		IsSuccessful: func(err error) bool {
			// canceled calls and client errors say nothing about backend health
			if err == nil || errors.Is(err, context.Canceled) {
				return true
			}
			var appErr *apperr.Error
			return errors.As(err, &appErr) && appErr.Status >= 400 && appErr.Status < 500
		},
	})
}

// Login authenticates a user.
func (c *Client) Login(ctx context.Context, email, password string) (Result[LoginResult], error) {
	req := credentialsRequest{Email: strings.TrimSpace(email), Password: password}
	if err := c.check(req); err != nil {
		return Result[LoginResult]{}, err
	}

	var resp loginResponse
	err := c.do(ctx, "login", func(ctx context.Context) (*http.Request, error) {
		return c.jsonRequest(ctx, "/login", req)
	}, &resp)
	if err != nil {
		if ctx.Err() != nil {
			return Result[LoginResult]{}, ctx.Err()
		}
		c.warnFallback("login", err)
		return fallbackResult(LoginResult{
			Token:    MockToken,
			Identity: session.IdentityFromEmail(req.Email),
		}, err), nil
	}

	identity := session.IdentityFromEmail(req.Email)
	if resp.User != nil {
		if resp.User.Email != "" {
			identity.Email = resp.User.Email
		}
		if resp.User.Username != "" {
			identity.Username = resp.User.Username
		} else {
			identity.Username = session.IdentityFromEmail(identity.Email).Username
		}
	} else if resp.Email != "" {
		identity = session.IdentityFromEmail(resp.Email)
	}
	return realResult(LoginResult{Token: resp.AccessToken, Identity: identity}), nil
}

// Signup registers a user. A password that doesn't match its confirmation
// fails locally without contacting the backend.
func (c *Client) Signup(ctx context.Context, email, password, confirmPassword string) (Result[SignupResult], error) {
	req := signupRequest{Email: strings.TrimSpace(email), Password: password, ConfirmPassword: confirmPassword}
	if err := c.check(req); err != nil {
		return Result[SignupResult]{}, err
	}

	var resp signupResponse
	err := c.do(ctx, "signup", func(ctx context.Context) (*http.Request, error) {
		return c.jsonRequest(ctx, "/signup", credentialsRequest{Email: req.Email, Password: req.Password})
	}, &resp)
	if err != nil {
		if ctx.Err() != nil {
			return Result[SignupResult]{}, ctx.Err()
		}
		c.warnFallback("signup", err)
		return fallbackResult(SignupResult{
			ID:    strconv.FormatInt(c.now().UnixMilli(), 10),
			Email: req.Email,
		}, err), nil
	}

	out := SignupResult{ID: formatID(resp.ID), Email: resp.Email}
	if out.ID == "" {
		out.ID = c.ids.Suffix()
	}
	if out.Email == "" {
		out.Email = req.Email
	}
	return realResult(out), nil
}

// ProcessVideo asks the backend to transcribe and index a YouTube video.
func (c *Client) ProcessVideo(ctx context.Context, videoURL string) (Result[ItemResult], error) {
	var resp processResponse
	err := c.do(ctx, "process_video", func(ctx context.Context) (*http.Request, error) {
		endpoint := c.baseURL + "/youtube/process?youtube_url=" + url.QueryEscape(videoURL)
		return http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	}, &resp)
	if err != nil {
		if ctx.Err() != nil {
			return Result[ItemResult]{}, ctx.Err()
		}
		c.warnFallback("process_video", err)
		return fallbackResult(ItemResult{ItemID: c.ids.Mock(ids.MockVideoPrefix)}, err), nil
	}

	id := firstNonEmpty(resp.VideoID, resp.VideoID2)
	if id == "" {
		id = c.ids.Suffix()
	}
	return realResult(ItemResult{ItemID: id}), nil
}

// UploadFile sends a document to the backend for ingestion.
func (c *Client) UploadFile(ctx context.Context, content []byte, fileName string) (Result[ItemResult], error) {
	var resp uploadResponse
	err := c.do(ctx, "upload_file", func(ctx context.Context) (*http.Request, error) {
		var body bytes.Buffer
		form := multipart.NewWriter(&body)
		part, err := form.CreateFormFile("file", fileName)
		if err != nil {
			return nil, fmt.Errorf("failed to create form file: %w", err)
		}
		if _, err := part.Write(content); err != nil {
			return nil, fmt.Errorf("failed to write form file: %w", err)
		}
		if err := form.Close(); err != nil {
			return nil, fmt.Errorf("failed to close form: %w", err)
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/files/upload", &body)
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set("Content-Type", form.FormDataContentType())
		return httpReq, nil
	}, &resp)
	if err != nil {
		if ctx.Err() != nil {
			return Result[ItemResult]{}, ctx.Err()
		}
		c.warnFallback("upload_file", err)
		return fallbackResult(ItemResult{ItemID: c.ids.Mock(ids.MockFilePrefix)}, err), nil
	}

	id := firstNonEmpty(resp.FileID, resp.ID)
	if id == "" {
		id = c.ids.Suffix()
	}
	return realResult(ItemResult{ItemID: id}), nil
}

// RAGQuery asks a question about a processed item.
func (c *Client) RAGQuery(ctx context.Context, itemID, question string) (Result[Answer], error) {
	var resp ragResponse
	err := c.do(ctx, "rag_query", func(ctx context.Context) (*http.Request, error) {
		return c.jsonRequest(ctx, "/rag/query", ragRequest{VideoID: itemID, Question: question})
	}, &resp)
	if err != nil {
		if ctx.Err() != nil {
			return Result[Answer]{}, ctx.Err()
		}
		c.warnFallback("rag_query", err)
		return fallbackResult(Answer{Answer: MockAnswer, Sources: []Citation{}}, err), nil
	}

	answer := Answer{Answer: resp.Answer, Sources: resp.Sources}
	if strings.TrimSpace(answer.Answer) == "" {
		answer.Answer = NoAnswerText
	}
	if answer.Sources == nil {
		answer.Sources = []Citation{}
	}
	return realResult(answer), nil
}

// HealthCheck verifies that the backend is reachable
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return c.do(ctx, "health", func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	}, nil)
}

// do executes a request through the circuit breaker. out may be nil when
// the body is irrelevant. All failures are *apperr.Error of KindRemote,
// except context errors which are returned as is.
func (c *Client) do(ctx context.Context, op string, build func(context.Context) (*http.Request, error), out any) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := build(ctx)
		if err != nil {
			return nil, apperr.Remote(op, 0, "failed to create request", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, apperr.Remote(op, 0, networkFailure, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
			return nil, apperr.Remote(op, resp.StatusCode, errorMessage(body, resp.StatusCode), nil)
		}

		if out == nil {
			return nil, nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return nil, apperr.Remote(op, resp.StatusCode, "malformed response", err)
		}
		return nil, nil
	})

	switch {
	case err == nil:
		return nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return apperr.Remote(op, 0, "backend temporarily unavailable", err)
	default:
		return err
	}
}

func (c *Client) jsonRequest(ctx context.Context, path string, payload any) (*http.Request, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func (c *Client) warnFallback(op string, err error) {
	c.logger.Warn("backend call failed, returning fallback",
		zap.String("op", op),
		zap.Error(err))
}

// errorMessage picks detail, error or message from a JSON error body.
func errorMessage(body []byte, status int) string {
	var fields map[string]any
	if err := json.Unmarshal(body, &fields); err == nil {
		for _, key := range []string{"detail", "error", "message"} {
			if msg := stringify(fields[key]); msg != "" {
				return msg
			}
		}
	}
	return fmt.Sprintf("HTTP %d", status)
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		// FastAPI validation errors arrive as a list of objects
		data, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(data)
	}
}

func formatID(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
