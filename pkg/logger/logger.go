package logger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/IBM/sarama"
)

// ANSI color codes for log levels
const (
	ColorReset  = "\033[0m"
	ColorRed    = "\033[31m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorBlue   = "\033[34m"
)

// Options configures NewLogger.
type Options struct {
	ServiceName  string
	BufferSize   int
	LogDir       string // defaults to "logs"
	KafkaBrokers []string
	KafkaTopic   string
	Level        slog.Level
}

// withAttrs returns a copy of the record carrying the handler's accumulated attributes.
func withAttrs(record slog.Record, attrs []slog.Attr) slog.Record {
	if len(attrs) == 0 {
		return record
	}
	rec := record.Clone()
	rec.AddAttrs(attrs...)
	return rec
}

func appendAttrs(base []slog.Attr, group string, attrs []slog.Attr) []slog.Attr {
	out := make([]slog.Attr, 0, len(base)+len(attrs))
	out = append(out, base...)
	for _, a := range attrs {
		if group != "" {
			a.Key = group + "." + a.Key
		}
		out = append(out, a)
	}
	return out
}

// fields flattens the record attributes to key/value pairs.
func fields(record slog.Record) map[string]any {
	m := make(map[string]any, record.NumAttrs())
	record.Attrs(func(a slog.Attr) bool {
		v := a.Value.Resolve()
		switch v.Kind() {
		case slog.KindAny:
			if err, ok := v.Any().(error); ok {
				m[a.Key] = err.Error()
				return true
			}
			m[a.Key] = v.Any()
		default:
			m[a.Key] = v.String()
		}
		return true
	})
	return m
}

// formatAttrs renders attributes as " key=value" pairs for text sinks.
func formatAttrs(record slog.Record) string {
	var b strings.Builder
	record.Attrs(func(a slog.Attr) bool {
		fmt.Fprintf(&b, " %s=%v", a.Key, a.Value.Resolve())
		return true
	})
	return b.String()
}

// kafkaSink owns the producer shared by all KafkaHandler views.
type kafkaSink struct {
	producer sarama.AsyncProducer
	topic    string
	service  string
	logChan  chan slog.Record
	wg       sync.WaitGroup
	quitChan chan struct{}
	once     sync.Once
}

// KafkaHandler sends logs to Kafka topic asynchronously.
type KafkaHandler struct {
	sink  *kafkaSink
	attrs []slog.Attr
	group string
	level slog.Leveler
}

// NewKafkaHandler initializes a new KafkaHandler.
func NewKafkaHandler(brokers []string, topic, serviceName string, bufferSize int) (*KafkaHandler, error) {
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Return.Successes = false
	config.Producer.Return.Errors = true
	config.Producer.Partitioner = sarama.NewHashPartitioner

	producer, err := sarama.NewAsyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create async producer: %w", err)
	}
	return newKafkaHandler(producer, topic, serviceName, bufferSize), nil
}

func newKafkaHandler(producer sarama.AsyncProducer, topic, serviceName string, bufferSize int) *KafkaHandler {
	sink := &kafkaSink{
		producer: producer,
		topic:    topic,
		service:  serviceName,
		logChan:  make(chan slog.Record, bufferSize),
		quitChan: make(chan struct{}),
	}

	sink.wg.Add(2)
	go sink.processLogs()
	go sink.handleProducerErrors()

	return &KafkaHandler{sink: sink, level: slog.LevelDebug}
}

// encode builds the JSON payload published for a record.
func (k *kafkaSink) encode(record slog.Record) ([]byte, error) {
	logEntry := map[string]any{
		"time":    record.Time.Format(time.RFC3339),
		"level":   record.Level.String(),
		"msg":     record.Message,
		"service": k.service,
	}
	if attrs := fields(record); len(attrs) > 0 {
		logEntry["attrs"] = attrs
	}
	return json.Marshal(logEntry)
}

// processLogs drains the channel and hands messages to the producer.
// Records still buffered at shutdown are published before returning.
func (k *kafkaSink) processLogs() {
	defer k.wg.Done()
	for {
		select {
		case record := <-k.logChan:
			k.publish(record)
		case <-k.quitChan:
			for {
				select {
				case record := <-k.logChan:
					k.publish(record)
				default:
					return
				}
			}
		}
	}
}

func (k *kafkaSink) publish(record slog.Record) {
	payload, err := k.encode(record)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to marshal log entry: %v\n", err)
		return
	}

	k.producer.Input() <- &sarama.ProducerMessage{
		Topic: k.topic,
		Key:   sarama.StringEncoder(k.service),
		Value: sarama.ByteEncoder(payload),
	}
}

// handleProducerErrors processes producer errors.
func (k *kafkaSink) handleProducerErrors() {
	defer k.wg.Done()
	for {
		select {
		case err, ok := <-k.producer.Errors():
			if !ok {
				return
			}
			fmt.Fprintf(os.Stderr, "failed to write message to kafka: %v\n", err)
		case <-k.quitChan:
			return
		}
	}
}

// Enabled checks if the level is enabled.
func (k *KafkaHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= k.level.Level()
}

// Handle sends logs into a channel for asynchronous processing.
func (k *KafkaHandler) Handle(_ context.Context, record slog.Record) error {
	select {
	case k.sink.logChan <- withAttrs(record, k.attrs):
	default:
		fmt.Fprintln(os.Stderr, "log channel is full, dropping log message")
	}
	return nil
}

// WithAttrs adds attributes to the handler.
func (k *KafkaHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &KafkaHandler{sink: k.sink, attrs: appendAttrs(k.attrs, k.group, attrs), group: k.group, level: k.level}
}

// WithGroup adds a group to the handler.
func (k *KafkaHandler) WithGroup(name string) slog.Handler {
	return &KafkaHandler{sink: k.sink, attrs: k.attrs, group: joinGroup(k.group, name), level: k.level}
}

// Close gracefully shuts down KafkaHandler.
func (k *KafkaHandler) Close() error {
	var err error
	k.sink.once.Do(func() {
		close(k.sink.quitChan)
		k.sink.wg.Wait()
		if cerr := k.sink.producer.Close(); cerr != nil {
			err = fmt.Errorf("failed to close producer: %w", cerr)
		}
	})
	return err
}

// fileSink owns the log file shared by all FileHandler views.
type fileSink struct {
	out      io.WriteCloser
	logChan  chan slog.Record
	wg       sync.WaitGroup
	quitChan chan struct{}
	once     sync.Once
}

// FileHandler saves logs to a file asynchronously.
type FileHandler struct {
	sink  *fileSink
	attrs []slog.Attr
	group string
	level slog.Leveler
}

// NewFileHandler initializes a new FileHandler writing to <logDir>/<serviceName>/app.log.
func NewFileHandler(logDir, serviceName string, bufferSize int) (*FileHandler, error) {
	dir := filepath.Join(logDir, serviceName)
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return nil, err
	}

	file, err := os.OpenFile(filepath.Join(dir, "app.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	return newFileHandler(file, bufferSize), nil
}

func newFileHandler(out io.WriteCloser, bufferSize int) *FileHandler {
	sink := &fileSink{
		out:      out,
		logChan:  make(chan slog.Record, bufferSize),
		quitChan: make(chan struct{}),
	}
	sink.wg.Add(1)
	go sink.processLogs()
	return &FileHandler{sink: sink, level: slog.LevelDebug}
}

func (f *fileSink) write(record slog.Record) {
	line := fmt.Sprintf("[%s] - %s - %s%s\n", record.Level.String(), record.Time.Format(time.RFC3339), record.Message, formatAttrs(record))
	if _, err := io.WriteString(f.out, line); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write log file: %v\n", err)
	}
}

// processLogs reads log records from a channel and writes them to the file.
// Records still buffered at shutdown are flushed.
func (f *fileSink) processLogs() {
	defer f.wg.Done()
	for {
		select {
		case record := <-f.logChan:
			f.write(record)
		case <-f.quitChan:
			for {
				select {
				case record := <-f.logChan:
					f.write(record)
				default:
					return
				}
			}
		}
	}
}

// Enabled checks if the level is enabled.
func (f *FileHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= f.level.Level()
}

// Handle sends logs into a channel for asynchronous processing.
func (f *FileHandler) Handle(_ context.Context, record slog.Record) error {
	select {
	case f.sink.logChan <- withAttrs(record, f.attrs):
	default:
		fmt.Fprintln(os.Stderr, "file log channel is full, dropping log message")
	}
	return nil
}

// WithAttrs adds attributes to the handler.
func (f *FileHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &FileHandler{sink: f.sink, attrs: appendAttrs(f.attrs, f.group, attrs), group: f.group, level: f.level}
}

// WithGroup adds a group to the handler.
func (f *FileHandler) WithGroup(name string) slog.Handler {
	return &FileHandler{sink: f.sink, attrs: f.attrs, group: joinGroup(f.group, name), level: f.level}
}

// Close gracefully shuts down FileHandler.
func (f *FileHandler) Close() error {
	var err error
	f.sink.once.Do(func() {
		close(f.sink.quitChan)
		f.sink.wg.Wait()
		err = f.sink.out.Close()
	})
	return err
}

// StdoutHandler sends logs to stdout with colored text synchronously.
type StdoutHandler struct {
	mu     *sync.Mutex
	writer io.Writer
	attrs  []slog.Attr
	group  string
	level  slog.Leveler
}

// NewStdoutHandler initializes a new StdoutHandler.
func NewStdoutHandler() *StdoutHandler {
	return newStdoutHandler(os.Stdout)
}

func newStdoutHandler(w io.Writer) *StdoutHandler {
	return &StdoutHandler{mu: &sync.Mutex{}, writer: w, level: slog.LevelDebug}
}

// Enabled checks if the level is enabled.
func (s *StdoutHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= s.level.Level()
}

// Handle processes and outputs the log record to stdout with colors synchronously.
func (s *StdoutHandler) Handle(_ context.Context, record slog.Record) error {
	color := ColorReset
	switch {
	case record.Level >= slog.LevelError:
		color = ColorRed
	case record.Level >= slog.LevelWarn:
		color = ColorYellow
	case record.Level >= slog.LevelInfo:
		color = ColorGreen
	default:
		color = ColorBlue
	}
	line := fmt.Sprintf("%s[%s]%s - %s - %s%s\n",
		color,
		record.Level.String(),
		ColorReset,
		record.Time.Format("2006-01-02 15:04:05"),
		record.Message,
		formatAttrs(withAttrs(record, s.attrs)),
	)
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := io.WriteString(s.writer, line)
	return err
}

// WithAttrs adds attributes to the handler.
func (s *StdoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &StdoutHandler{mu: s.mu, writer: s.writer, attrs: appendAttrs(s.attrs, s.group, attrs), group: s.group, level: s.level}
}

// WithGroup adds a group to the handler.
func (s *StdoutHandler) WithGroup(name string) slog.Handler {
	return &StdoutHandler{mu: s.mu, writer: s.writer, attrs: s.attrs, group: joinGroup(s.group, name), level: s.level}
}

// Close is a no-op for synchronous handler.
func (s *StdoutHandler) Close() error {
	return nil
}

func joinGroup(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "." + name
}

// MultiHandler combines multiple handlers.
type MultiHandler struct {
	handlers []slog.Handler
}

// NewMultiHandler initializes a new MultiHandler.
func NewMultiHandler(handlers ...slog.Handler) *MultiHandler {
	return &MultiHandler{
		handlers: handlers,
	}
}

// Enabled checks if the level is enabled for any handler.
func (m *MultiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle adds the record to all handlers.
func (m *MultiHandler) Handle(ctx context.Context, record slog.Record) error {
	var firstErr error
	for _, h := range m.handlers {
		if !h.Enabled(ctx, record.Level) {
			continue
		}
		if err := h.Handle(ctx, record); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// WithAttrs adds attributes to all handlers.
func (m *MultiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		handlers[i] = h.WithAttrs(attrs)
	}
	return NewMultiHandler(handlers...)
}

// WithGroup adds a group to all handlers.
func (m *MultiHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		handlers[i] = h.WithGroup(name)
	}
	return NewMultiHandler(handlers...)
}

// CloseAll closes all handlers that implement the Close method.
func (m *MultiHandler) CloseAll() {
	for _, h := range m.handlers {
		if closer, ok := h.(interface{ Close() error }); ok {
			if err := closer.Close(); err != nil {
				fmt.Fprintf(os.Stderr, "failed to close log handler: %v\n", err)
			}
		}
	}
}

// NewLogger initializes the combined logger with Stdout and File handlers,
// plus a Kafka handler when brokers are configured.
func NewLogger(opts Options) (*slog.Logger, error) {
	if opts.BufferSize <= 0 {
		opts.BufferSize = 100
	}
	if opts.LogDir == "" {
		opts.LogDir = "logs"
	}

	stdoutHandler := NewStdoutHandler()
	stdoutHandler.level = opts.Level

	fileHandler, err := NewFileHandler(opts.LogDir, opts.ServiceName, opts.BufferSize)
	if err != nil {
		return nil, err
	}
	fileHandler.level = opts.Level

	handlers := []slog.Handler{stdoutHandler, fileHandler}

	if len(opts.KafkaBrokers) > 0 {
		kafkaHandler, err := NewKafkaHandler(opts.KafkaBrokers, opts.KafkaTopic, opts.ServiceName, opts.BufferSize)
		if err != nil {
			fileHandler.Close()
			return nil, err
		}
		kafkaHandler.level = opts.Level
		handlers = append(handlers, kafkaHandler)
	}

	return slog.New(NewMultiHandler(handlers...)), nil
}

// Close flushes and closes the handlers behind a logger built by NewLogger.
func Close(l *slog.Logger) {
	if multiHandler, ok := l.Handler().(*MultiHandler); ok {
		multiHandler.CloseAll()
	}
}
