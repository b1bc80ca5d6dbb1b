// Package buildworker compiles projects read from a Kafka topic and
// publishes the programs to another topic.
package buildworker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

type State string

const (
	StateCreated        State = "CREATED"
	StateRunning        State = "RUNNING"
	StateCloseRequested State = "CLOSE_REQUESTED"
	StateClosed         State = "CLOSED"
)

// Config holds configuration for a Worker
type Config struct {
	Brokers     []string
	Group       string
	InputTopic  string
	OutputTopic string

	// Partitions and ReplicationFactor are used when the worker creates
	// missing topics.
	Partitions        int32
	ReplicationFactor int16

	PollTimeout    time.Duration
	MaxPollRecords int
}

func (c *Config) setDefaults() {
	if c.Partitions <= 0 {
		c.Partitions = 1
	}
	if c.ReplicationFactor <= 0 {
		c.ReplicationFactor = 1
	}
	if c.PollTimeout <= 0 {
		c.PollTimeout = 10 * time.Second
	}
	if c.MaxPollRecords <= 0 {
		c.MaxPollRecords = 100
	}
}

// ErrShutdownTimeout is returned when graceful shutdown exceeds the timeout
var ErrShutdownTimeout = errors.New("worker shutdown timed out")

// Worker consumes projects as a member of a consumer group. Offsets are
// committed only after the compiled records have been produced.
type Worker struct {
	client   *kgo.Client
	admin    *kadm.Client
	log      *slog.Logger
	compiler Compiler
	cfg      Config

	state State

	closeRequested chan struct{}

	cancelPollMtx sync.Mutex
	cancelPoll    func()

	closed    sync.WaitGroup
	closeOnce sync.Once

	err error
}

// New creates a Worker. It does not contact the brokers until Run.
func New(log *slog.Logger, compiler Compiler, cfg Config) (*Worker, error) {
	cfg.setDefaults()
	if cfg.InputTopic == "" || cfg.OutputTopic == "" {
		return nil, fmt.Errorf("input and output topics are required")
	}
	if cfg.Group == "" {
		return nil, fmt.Errorf("consumer group is required")
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ConsumerGroup(cfg.Group),
		kgo.ConsumeTopics(cfg.InputTopic),
		kgo.DisableAutoCommit(),
		kgo.AllowAutoTopicCreation(),
	)
	if err != nil {
		return nil, err
	}

	w := &Worker{
		client:         client,
		admin:          kadm.NewClient(client),
		log:            log.With("group", cfg.Group),
		compiler:       compiler,
		cfg:            cfg,
		state:          StateCreated,
		closeRequested: make(chan struct{}, 1),
	}
	w.closed.Add(1)
	return w, nil
}

func (w *Worker) changeState(newState State) {
	w.log.Info("Change state", "from", w.state, "to", newState)
	w.state = newState
}

// Run blocks until the worker is closed or fails.
// State transitions may only be done from within the loop
func (w *Worker) Run() error {
	for {
		switch w.state {
		case StateCreated:
			w.handleCreated()
		case StateRunning:
			w.handleRunning()
		case StateCloseRequested:
			w.handleCloseRequested()
		case StateClosed:
			w.closed.Done()
			return w.err
		}
	}
}

func (w *Worker) handleCreated() {
	ctx, cancel := context.WithTimeout(context.Background(), w.cfg.PollTimeout)
	defer cancel()

	if err := w.EnsureTopics(ctx); err != nil {
		w.fail(err)
		return
	}
	w.changeState(StateRunning)
}

// EnsureTopics creates the input and output topics if they do not exist.
func (w *Worker) EnsureTopics(ctx context.Context) error {
	resp, err := w.admin.CreateTopics(ctx, w.cfg.Partitions, w.cfg.ReplicationFactor, nil, w.cfg.InputTopic, w.cfg.OutputTopic)
	if err != nil {
		return fmt.Errorf("failed to create topics: %w", err)
	}
	for _, t := range resp.Sorted() {
		if t.Err != nil && !errors.Is(t.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("failed to create topic %s: %w", t.Topic, t.Err)
		}
	}
	return nil
}

func (w *Worker) handleRunning() {
	w.cancelPollMtx.Lock()

	select {
	case <-w.closeRequested:
		w.changeState(StateCloseRequested)
		w.cancelPollMtx.Unlock()
		return
	default:
	}

	ctx, cancel := context.WithTimeout(context.Background(), w.cfg.PollTimeout)
	defer cancel()
	w.cancelPoll = cancel

	w.cancelPollMtx.Unlock()

	f := w.client.PollRecords(ctx, w.cfg.MaxPollRecords)
	if f.IsClientClosed() {
		w.changeState(StateCloseRequested)
		return
	}
	for _, fe := range f.Errors() {
		if errors.Is(fe.Err, context.Canceled) || errors.Is(fe.Err, context.DeadlineExceeded) {
			continue
		}
		w.log.Error("Fetch failed", "topic", fe.Topic, "partition", fe.Partition, "error", fe.Err)
	}

	records := f.Records()
	if len(records) == 0 {
		return
	}

	if err := w.process(context.Background(), records); err != nil {
		w.fail(err)
	}
}

// process compiles, produces and commits one batch.
func (w *Worker) process(ctx context.Context, records []*kgo.Record) error {
	out := make([]*kgo.Record, 0, len(records))
	for _, rec := range records {
		res, err := Transform(ctx, w.compiler, rec, w.cfg.OutputTopic)
		if err != nil {
			return fmt.Errorf("failed to compile record at %s/%d@%d: %w", rec.Topic, rec.Partition, rec.Offset, err)
		}
		if kind := header(res, HeaderErrorKind); kind != "" {
			w.log.Warn("Project rejected", "partition", rec.Partition, "offset", rec.Offset, "kind", kind)
		}
		out = append(out, res)
	}

	if err := w.client.ProduceSync(ctx, out...).FirstErr(); err != nil {
		if kerr.IsRetriable(err) {
			w.log.Warn("Retriable produce error", "error", err)
		}
		return fmt.Errorf("failed to produce: %w", err)
	}

	if err := w.client.CommitRecords(ctx, records...); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	w.log.Debug("Processed batch", "count", len(records))
	return nil
}

func (w *Worker) fail(err error) {
	w.log.Error("Worker failed", "error", err)
	w.err = err
	w.changeState(StateCloseRequested)
}

func (w *Worker) handleCloseRequested() {
	w.client.Close()
	w.changeState(StateClosed)
}

// Close requests shutdown and waits until Run returns or timeout elapses.
func (w *Worker) Close(timeout time.Duration) error {
	w.closeOnce.Do(func() {
		w.cancelPollMtx.Lock()
		select {
		case w.closeRequested <- struct{}{}:
		default:
		}
		if w.cancelPoll != nil {
			w.cancelPoll()
		}
		w.cancelPollMtx.Unlock()
	})

	done := make(chan struct{})
	go func() {
		w.closed.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		w.log.Error("Shutdown timeout exceeded", "timeout", timeout)
		return ErrShutdownTimeout
	}
}
