// Package eventlog wraps a zap.Logger behind a bounded, async,
// drop-oldest queue so that a slow or stalled log sink can never
// back-pressure the matching thread: when the queue is full, the
// oldest queued record is discarded to make room for the new one and
// counted (see Logger.Dropped); the caller never blocks.
//
// Grounded on original_source/include/logger/logger.hpp, whose
// Logger::push counts every dropped event rather than ever blocking
// the caller.
package eventlog

import (
	"go.uber.org/zap"
)

// record is one queued log line, deferred to the background worker so
// the caller never blocks on serialization or I/O.
type record struct {
	level  zapLevel
	msg    string
	fields []zap.Field
}

type zapLevel int

const (
	levelDebug zapLevel = iota
	levelInfo
	levelWarn
	levelError
)

// Logger is a constructor-injected, never-block logging facade. It is
// never a package global — every component that logs takes one
// explicitly, the same way the teacher threads *zap.Logger through
// its engine and book constructors.
type Logger struct {
	backend *zap.Logger
	queue   chan record
	done    chan struct{}

	dropped uint64
}

// Config controls the bounded queue's capacity.
type Config struct {
	QueueCapacity int
}

// New starts the background worker draining backend writes from a
// bounded channel. Closing the returned Logger drains any buffered
// records before stopping.
func New(backend *zap.Logger, cfg Config) *Logger {
	if cfg.QueueCapacity <= 0 {
		cfg.QueueCapacity = 4096
	}
	l := &Logger{
		backend: backend,
		queue:   make(chan record, cfg.QueueCapacity),
		done:    make(chan struct{}),
	}
	go l.run()
	return l
}

func (l *Logger) run() {
	for rec := range l.queue {
		switch rec.level {
		case levelDebug:
			l.backend.Debug(rec.msg, rec.fields...)
		case levelInfo:
			l.backend.Info(rec.msg, rec.fields...)
		case levelWarn:
			l.backend.Warn(rec.msg, rec.fields...)
		case levelError:
			l.backend.Error(rec.msg, rec.fields...)
		}
	}
	close(l.done)
}

func (l *Logger) enqueue(level zapLevel, msg string, fields []zap.Field) {
	rec := record{level: level, msg: msg, fields: fields}
	for {
		select {
		case l.queue <- rec:
			return
		default:
		}
		// Queue full: discard the oldest queued record to make room.
		select {
		case <-l.queue:
			l.dropped++
		default:
		}
	}
}

func (l *Logger) Debug(msg string, fields ...zap.Field) { l.enqueue(levelDebug, msg, fields) }
func (l *Logger) Info(msg string, fields ...zap.Field)  { l.enqueue(levelInfo, msg, fields) }
func (l *Logger) Warn(msg string, fields ...zap.Field)  { l.enqueue(levelWarn, msg, fields) }
func (l *Logger) Error(msg string, fields ...zap.Field) { l.enqueue(levelError, msg, fields) }

// Dropped reports how many records were discarded because the queue
// was full.
func (l *Logger) Dropped() uint64 { return l.dropped }

// Close stops accepting new records and blocks until the worker has
// drained everything already queued.
func (l *Logger) Close() error {
	close(l.queue)
	<-l.done
	return l.backend.Sync()
}
