package core

import (
	"fmt"
	"time"
)

const InvalidMewMessage = "Hey! Name and Content are required! Name cannot be longer than 50 characters. Content cannot be longer than 140 characters."

const RateLimitedMessage = "Too many requests, please try again later."

type ErrorInvalidMew struct {
}

func (e ErrorInvalidMew) Error() string {
	return InvalidMewMessage
}

func NewErrorInvalidMew() ErrorInvalidMew {
	return ErrorInvalidMew{}
}

type ErrorRateLimited struct {
	RetryAfter time.Duration
}

func (e ErrorRateLimited) Error() string {
	return fmt.Sprintf("rate limited: retry after %s", e.RetryAfter)
}

func NewErrorRateLimited(retryAfter time.Duration) ErrorRateLimited {
	return ErrorRateLimited{RetryAfter: retryAfter}
}
