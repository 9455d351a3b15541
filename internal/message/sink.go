package message

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Sink persists or forwards messages. Controllers ignore sink errors
// beyond logging them.
type Sink interface {
	Write(m Message) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(m Message) error

func (f SinkFunc) Write(m Message) error { return f(m) }

// MultiSink writes every message to each sink in turn and joins the errors.
type MultiSink []Sink

func (ms MultiSink) Write(m Message) error {
	var errs []error
	for _, s := range ms {
		if s == nil {
			continue
		}
		if err := s.Write(m); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// FileSink appends messages as JSON lines to a size-rotated file.
type FileSink struct {
	mu  sync.Mutex
	out *lumberjack.Logger
	enc *json.Encoder
}

// FileSinkConfig configures a FileSink.
type FileSinkConfig struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
}

func NewFileSink(config FileSinkConfig) (*FileSink, error) {
	if config.Path == "" {
		return nil, fmt.Errorf("message log path is required")
	}
	if config.MaxSizeMB <= 0 {
		config.MaxSizeMB = 64
	}
	out := &lumberjack.Logger{
		Filename:   config.Path,
		MaxSize:    config.MaxSizeMB,
		MaxBackups: config.MaxBackups,
	}
	return &FileSink{out: out, enc: json.NewEncoder(out)}, nil
}

func (s *FileSink) Write(m Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enc.Encode(m); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	return nil
}

func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.out.Close()
}
