package gateway

import (
	"summarai/internal/session"
)

// Origin tells whether a result came from the backend or was synthesized
// locally because the backend could not be used.
type Origin string

const (
	Real     Origin = "real"
	Fallback Origin = "fallback"
)

// Result carries an operation's data and where it came from. Cause holds
// the masked remote error for fallback results.
type Result[T any] struct {
	Origin Origin
	Data   T
	Cause  error
}

// IsFallback reports whether Data is a locally synthesized placeholder.
func (r Result[T]) IsFallback() bool {
	return r.Origin == Fallback
}

func realResult[T any](data T) Result[T] {
	return Result[T]{Origin: Real, Data: data}
}

func fallbackResult[T any](data T, cause error) Result[T] {
	return Result[T]{Origin: Fallback, Data: data, Cause: cause}
}

// LoginResult is the outcome of Login.
type LoginResult struct {
	Token    string
	Identity session.Identity
}

// SignupResult is the outcome of Signup.
type SignupResult struct {
	ID    string
	Email string
}

// ItemResult identifies a processed video or document.
type ItemResult struct {
	ItemID string
}

// Citation is a transcript or document excerpt an answer drew on.
type Citation struct {
	Start *float64 `json:"start,omitempty"`
	End   *float64 `json:"end,omitempty"`
	Text  string   `json:"text"`
}

// Answer is the outcome of RAGQuery.
type Answer struct {
	Answer  string
	Sources []Citation
}

// Fixed fallback values.
const (
	MockToken      = "mock_token"
	MockAnswer     = "Mock answer: backend unavailable."
	NoAnswerText   = "No answer returned."
	networkFailure = "Network error"
)

// Wire shapes.

type credentialsRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type signupRequest struct {
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required"`
	ConfirmPassword string `json:"-" validate:"eqfield=Password"`
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
	User        *struct {
		Email    string `json:"email"`
		Username string `json:"username"`
	} `json:"user"`
	// the legacy /login returns the user record at top level
	Email string `json:"email"`
}

type signupResponse struct {
	ID    any    `json:"id"`
	Email string `json:"email"`
}

type processResponse struct {
	VideoID  string `json:"video_id"`
	VideoID2 string `json:"videoId"`
}

type uploadResponse struct {
	FileID string `json:"file_id"`
	ID     string `json:"id"`
}

type ragRequest struct {
	VideoID  string `json:"video_id"`
	Question string `json:"question"`
}

type ragResponse struct {
	Answer  string     `json:"answer"`
	Sources []Citation `json:"sources"`
}
