package memory

import (
	"sync/atomic"
	"time"

	"github.com/pkoukk/tiktoken-go"
)

const (
	tokenEncoding = "cl100k_base"

	// loadRetryInterval spaces out attempts to fetch the encoding after a failure.
	loadRetryInterval = time.Minute
)

// TokenEstimator approximates the prompt size of a history. The numbers are
// reported in memory stats only; windowing stays count based.
//
// The encoding is fetched in the background. Until it is available Count
// uses a character heuristic, so a slow or unreachable network never delays
// a chat turn.
type TokenEstimator struct {
	enc     atomic.Pointer[tiktoken.Tiktoken]
	loading atomic.Bool
	// nextLoad is the earliest time, in unix nanoseconds, of the next attempt.
	nextLoad atomic.Int64

	// offline skips loading the encoding and always uses the character heuristic.
	offline bool
	load    func() (*tiktoken.Tiktoken, error)
	retry   time.Duration
}

func NewTokenEstimator() *TokenEstimator {
	return &TokenEstimator{
		load: func() (*tiktoken.Tiktoken, error) {
			return tiktoken.GetEncoding(tokenEncoding)
		},
		retry: loadRetryInterval,
	}
}

// NewHeuristicTokenEstimator never loads an encoding.
func NewHeuristicTokenEstimator() *TokenEstimator {
	return &TokenEstimator{offline: true}
}

// Warm starts loading the encoding unless it is loaded, already loading, or
// a failed attempt was too recent. It never blocks.
func (e *TokenEstimator) Warm() {
	if e.offline || e.enc.Load() != nil {
		return
	}
	if time.Now().UnixNano() < e.nextLoad.Load() {
		return
	}
	if !e.loading.CompareAndSwap(false, true) {
		return
	}

	go func() {
		defer e.loading.Store(false)
		enc, err := e.load()
		if err != nil || enc == nil {
			e.nextLoad.Store(time.Now().Add(e.retry).UnixNano())
			return
		}
		e.enc.Store(enc)
	}()
}

// Count estimates the tokens of messages, counting role and content.
func (e *TokenEstimator) Count(messages []Message) int {
	enc := e.enc.Load()
	if enc == nil {
		e.Warm()
	}

	total := 0
	for _, msg := range messages {
		text := string(msg.Role) + "\n" + msg.Content
		if enc != nil {
			total += len(enc.Encode(text, nil, nil))
			continue
		}
		total += heuristicTokens(text)
	}
	return total
}

// roughly four characters per token
func heuristicTokens(text string) int {
	n := len(text) / 4
	if n == 0 && text != "" {
		n = 1
	}
	return n
}
