// Package fs provides a filesystem-backed messaging queue built on the
// viant/afs storage abstraction. It is the durable transport for the
// lifecycle event journal: every message is one JSON file that moves
// between state directories, so a crash leaves an inspectable trail.
package fs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/option"
	"github.com/viant/afs/storage"

	"github.com/mirkoboehm/threadweaver/internal/clock"
	"github.com/mirkoboehm/threadweaver/internal/idgen"
	"github.com/mirkoboehm/threadweaver/service/messaging"
)

// MessageState is the on-disk state of a message.
type MessageState string

const (
	MessageStatePending    MessageState = "pending"
	MessageStateProcessing MessageState = "processing"
	MessageStateCompleted  MessageState = "completed"
	MessageStateFailed     MessageState = "failed"
)

// Config holds the filesystem queue settings.
type Config struct {
	// BasePath is the directory (or afs URL) holding the queue state
	// directories.
	BasePath string
}

// DefaultConfig returns the standard filesystem queue configuration.
func DefaultConfig() Config {
	return Config{BasePath: "/tmp/threadweaver/queue"}
}

// Message implements messaging.Message for the filesystem queue.
type Message[T any] struct {
	ID        string       `json:"id"`
	Seq       uint64       `json:"seq"`
	Data      T            `json:"data"`
	State     MessageState `json:"state"`
	Error     string       `json:"error,omitempty"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`

	queue     *Queue[T]
	name      string
	mu        sync.Mutex
	processed bool
}

func (m *Message[T]) T() *T { return &m.Data }

// Ack moves the message file to the completed directory.
func (m *Message[T]) Ack() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.processed {
		return fmt.Errorf("message %s already processed", m.ID)
	}
	m.processed = true
	m.State = MessageStateCompleted
	m.UpdatedAt = clock.Now()
	return m.queue.settle(context.Background(), m, m.queue.completedDir)
}

// Nack records err and moves the message file to the failed directory.
func (m *Message[T]) Nack(err error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.processed {
		return fmt.Errorf("message %s already processed", m.ID)
	}
	m.processed = true
	m.State = MessageStateFailed
	if err != nil {
		m.Error = err.Error()
	}
	m.UpdatedAt = clock.Now()
	return m.queue.settle(context.Background(), m, m.queue.failedDir)
}

// Queue implements messaging.Queue on top of an afs service.
type Queue[T any] struct {
	fs     afs.Service
	config Config

	pendingDir    string
	processingDir string
	completedDir  string
	failedDir     string

	mu      sync.Mutex
	nextSeq uint64
}

// NewQueue creates the state directories and returns a ready queue.
func NewQueue[T any](fsService afs.Service, config Config) (*Queue[T], error) {
	if config.BasePath == "" {
		return nil, fmt.Errorf("base path cannot be empty")
	}
	q := &Queue[T]{
		fs:            fsService,
		config:        config,
		pendingDir:    path.Join(config.BasePath, "pending"),
		processingDir: path.Join(config.BasePath, "processing"),
		completedDir:  path.Join(config.BasePath, "completed"),
		failedDir:     path.Join(config.BasePath, "failed"),
	}
	ctx := context.Background()
	for _, dir := range []string{q.pendingDir, q.processingDir, q.completedDir, q.failedDir} {
		exists, _ := fsService.Exists(ctx, dir)
		if exists {
			continue
		}
		if err := fsService.Create(ctx, dir, file.DefaultDirOsMode, true); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return q, nil
}

// Publish writes the message as a JSON file into the pending directory.
// The sequence-number filename prefix keeps consumption in publish order.
func (q *Queue[T]) Publish(ctx context.Context, t *T) error {
	q.mu.Lock()
	seq := q.nextSeq
	q.nextSeq++
	q.mu.Unlock()

	now := clock.Now()
	message := &Message[T]{
		ID:        idgen.New(),
		Seq:       seq,
		Data:      *t,
		State:     MessageStatePending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	name := fmt.Sprintf("%020d-%s.json", seq, message.ID)
	return q.upload(ctx, path.Join(q.pendingDir, name), data)
}

// Consume moves the oldest pending message to the processing directory and
// returns it. It returns (nil, nil) when nothing is pending.
func (q *Queue[T]) Consume(ctx context.Context) (messaging.Message[T], error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	objects, err := q.fs.List(ctx, q.pendingDir, option.NewRecursive(false))
	if err != nil {
		return nil, fmt.Errorf("failed to list pending messages: %w", err)
	}
	oldest := oldestJSON(objects)
	if oldest == nil {
		return nil, nil
	}

	message, err := q.read(ctx, oldest.URL())
	if err != nil {
		_ = q.fs.Move(ctx, oldest.URL(), path.Join(q.failedDir, "invalid-"+oldest.Name()))
		return nil, err
	}
	message.State = MessageStateProcessing
	message.UpdatedAt = clock.Now()
	message.queue = q
	message.name = oldest.Name()

	data, err := json.Marshal(message)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}
	if err := q.upload(ctx, path.Join(q.processingDir, oldest.Name()), data); err != nil {
		return nil, fmt.Errorf("failed to move message to processing: %w", err)
	}
	if err := q.fs.Delete(ctx, oldest.URL()); err != nil {
		return nil, fmt.Errorf("failed to delete pending message: %w", err)
	}
	return message, nil
}

// Pending returns the number of messages waiting for consumption.
func (q *Queue[T]) Pending(ctx context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	objects, err := q.fs.List(ctx, q.pendingDir, option.NewRecursive(false))
	if err != nil {
		return 0, err
	}
	count := 0
	for _, obj := range objects {
		if !obj.IsDir() && strings.HasSuffix(obj.Name(), ".json") {
			count++
		}
	}
	return count, nil
}

// settle rewrites the message into dir and removes it from processing.
func (q *Queue[T]) settle(ctx context.Context, m *Message[T], dir string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	if err := q.upload(ctx, path.Join(dir, m.name), data); err != nil {
		return fmt.Errorf("failed to write message to %s: %w", dir, err)
	}
	processingPath := path.Join(q.processingDir, m.name)
	if exists, _ := q.fs.Exists(ctx, processingPath); exists {
		if err := q.fs.Delete(ctx, processingPath); err != nil {
			return fmt.Errorf("failed to delete processing message: %w", err)
		}
	}
	return nil
}

func (q *Queue[T]) upload(ctx context.Context, dest string, data []byte) error {
	return q.fs.Upload(ctx, dest, file.DefaultFileOsMode, bytes.NewBuffer(data))
}

func (q *Queue[T]) read(ctx context.Context, url string) (*Message[T], error) {
	data, err := q.fs.DownloadWithURL(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to read message %s: %w", url, err)
	}
	var message Message[T]
	if err := json.Unmarshal(data, &message); err != nil {
		return nil, fmt.Errorf("failed to unmarshal message %s: %w", url, err)
	}
	return &message, nil
}

// oldestJSON picks the message file with the lowest name; the sequence
// prefix makes lexicographic order the publish order.
func oldestJSON(objects []storage.Object) storage.Object {
	var oldest storage.Object
	for _, obj := range objects {
		if obj.IsDir() || !strings.HasSuffix(obj.Name(), ".json") {
			continue
		}
		if oldest == nil || obj.Name() < oldest.Name() {
			oldest = obj
		}
	}
	return oldest
}

var _ messaging.Queue[any] = (*Queue[any])(nil)
