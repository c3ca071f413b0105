package app

import (
	"context"
	"log"
	"sync"
	"time"

	"livequiz-service/internal/domain"
)

// AnswerSink persists accepted answer records (Postgres in production).
type AnswerSink interface {
	WriteAnswer(ctx context.Context, record domain.AnswerRecord) error
}

// AnswerWorker decouples answer persistence from the live path: the engine
// enqueues and moves on, a single goroutine drains to the sink. Write errors
// are logged and swallowed; in-memory session state stays authoritative.
type AnswerWorker struct {
	sink  AnswerSink
	queue chan domain.AnswerRecord
	done  chan struct{}

	mu     sync.Mutex
	closed bool
}

func NewAnswerWorker(sink AnswerSink, buffer int) *AnswerWorker {
	if buffer <= 0 {
		buffer = 256
	}
	w := &AnswerWorker{
		sink:  sink,
		queue: make(chan domain.AnswerRecord, buffer),
		done:  make(chan struct{}),
	}
	go w.run()
	return w
}

// Enqueue hands a record to the worker. A full queue drops the record rather
// than block a submission handler, and a closed worker drops it too: during
// shutdown a websocket read loop can still accept a submission after the
// worker has stopped, and that must not crash the process.
func (w *AnswerWorker) Enqueue(record domain.AnswerRecord) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		log.Printf("answer worker closed, dropping record for session %s", record.SessionCode)
		return
	}
	select {
	case w.queue <- record:
	default:
		log.Printf("answer queue full, dropping record for session %s", record.SessionCode)
	}
}

// Close drains outstanding records and stops the worker. Safe to call more
// than once.
func (w *AnswerWorker) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		<-w.done
		return
	}
	w.closed = true
	close(w.queue)
	w.mu.Unlock()
	<-w.done
}

func (w *AnswerWorker) run() {
	defer close(w.done)
	for record := range w.queue {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := w.sink.WriteAnswer(ctx, record); err != nil {
			log.Printf("persist answer for session %s: %v", record.SessionCode, err)
		}
		cancel()
	}
}
