package event

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/mirkoboehm/threadweaver/service/messaging"
)

// Listener consumes records from a queue on its own goroutine and hands
// them to a handler.
type Listener struct {
	queue    messaging.Queue[Record]
	handler  func(*Record)
	ctx      context.Context
	cancelFn context.CancelFunc
	done     chan struct{}
}

func NewListener(queue messaging.Queue[Record], handler func(*Record)) *Listener {
	ctx, cancel := context.WithCancel(context.Background())
	return &Listener{
		queue:    queue,
		handler:  handler,
		ctx:      ctx,
		cancelFn: cancel,
		done:     make(chan struct{}),
	}
}

// Start launches the consume loop.
func (l *Listener) Start() {
	go func() {
		defer close(l.done)
		for {
			msg, err := l.queue.Consume(l.ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return
				}
				log.Printf("threadweaver: error consuming event: %v", err)
				continue
			}
			if msg == nil {
				// polling transport with nothing pending
				select {
				case <-l.ctx.Done():
					return
				case <-time.After(10 * time.Millisecond):
				}
				continue
			}
			l.handler(msg.T())
			_ = msg.Ack()
		}
	}()
}

// Stop terminates the consume loop and waits for it to exit.
func (l *Listener) Stop() {
	l.cancelFn()
	<-l.done
}
