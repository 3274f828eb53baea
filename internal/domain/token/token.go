package token

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrNotFoundOrExpired = errors.New("token: not found or expired")
	ErrMismatch          = errors.New("token: mismatch")
	ErrInvalidKey        = errors.New("token: scene and user id are required")
	ErrSystem            = errors.New("token: system error")
)

// DefaultTTL is how long an issued token stays valid.
const DefaultTTL = 300 * time.Second

// Key scopes a token. BizID is optional.
type Key struct {
	Scene  string
	UserID string
	BizID  string
}

func (k Key) Validate() error {
	if strings.TrimSpace(k.Scene) == "" || strings.TrimSpace(k.UserID) == "" {
		return ErrInvalidKey
	}
	return nil
}

// Result is the outcome of a validation attempt.
type Result int

const (
	Valid Result = iota + 1
	NotFoundOrExpired
	Mismatch
)

func (r Result) String() string {
	switch r {
	case Valid:
		return "valid"
	case NotFoundOrExpired:
		return "not_found_or_expired"
	case Mismatch:
		return "mismatch"
	default:
		return "unknown"
	}
}

func (r Result) Err() error {
	switch r {
	case Valid:
		return nil
	case NotFoundOrExpired:
		return ErrNotFoundOrExpired
	case Mismatch:
		return ErrMismatch
	default:
		return ErrSystem
	}
}

// Issued is a freshly generated token.
type Issued struct {
	Token    string
	TTL      time.Duration
	IssuedAt time.Time
}
