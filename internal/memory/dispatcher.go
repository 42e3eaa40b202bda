package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
)

// SummarizeFunc matches Summarizer.Summarize.
type SummarizeFunc func(ctx context.Context, conversationID uuid.UUID) bool

// Dispatcher runs summarizations in the background, at most one at a time per
// conversation within this process.
type Dispatcher struct {
	summarize SummarizeFunc
	logger    logrus.FieldLogger

	wg       conc.WaitGroup
	mu       sync.Mutex
	inflight map[uuid.UUID]struct{}
}

func NewDispatcher(summarize SummarizeFunc, logger logrus.FieldLogger) *Dispatcher {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Dispatcher{
		summarize: summarize,
		logger:    logger,
		inflight:  make(map[uuid.UUID]struct{}),
	}
}

// Schedule starts a summarization for conversationID and returns immediately.
// It returns false when one is already running for that conversation.
func (d *Dispatcher) Schedule(conversationID uuid.UUID) bool {
	d.mu.Lock()
	if _, running := d.inflight[conversationID]; running {
		d.mu.Unlock()
		return false
	}
	d.inflight[conversationID] = struct{}{}
	d.mu.Unlock()

	d.wg.Go(func() {
		defer d.release(conversationID)

		var pc panics.Catcher
		pc.Try(func() {
			// Detached from the request: the turn has already been answered.
			d.summarize(context.Background(), conversationID)
		})
		if r := pc.Recovered(); r != nil {
			d.logger.WithFields(logrus.Fields{
				"conversation_id": conversationID,
				"panic":           r.Value,
			}).Error("Summarization panicked")
		}
	})
	return true
}

// Running reports whether a summarization is in flight for conversationID.
func (d *Dispatcher) Running(conversationID uuid.UUID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, running := d.inflight[conversationID]
	return running
}

// Wait blocks until every scheduled summarization has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) release(conversationID uuid.UUID) {
	d.mu.Lock()
	delete(d.inflight, conversationID)
	d.mu.Unlock()
}
