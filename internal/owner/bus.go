package owner

import "github.com/spoq-dev/spoq/internal/stream"

// messageBus is an unbounded single-consumer queue: a sender on In()
// never blocks waiting for the owner to catch up, which matters
// because stream sessions must never stall on a slow UI tick just to
// enqueue a token. A relay goroutine shuttles buffered messages onto
// Out() as the consumer drains it.
type messageBus struct {
	in  chan stream.BusMessage
	out chan stream.BusMessage
}

func newMessageBus() *messageBus {
	b := &messageBus{
		in:  make(chan stream.BusMessage),
		out: make(chan stream.BusMessage),
	}
	go b.relay()
	return b
}

func (b *messageBus) In() chan<- stream.BusMessage  { return b.in }
func (b *messageBus) Out() <-chan stream.BusMessage { return b.out }

func (b *messageBus) relay() {
	var pending []stream.BusMessage

	for {
		if len(pending) == 0 {
			msg, ok := <-b.in
			if !ok {
				close(b.out)
				return
			}
			pending = append(pending, msg)
			continue
		}

		select {
		case msg, ok := <-b.in:
			if !ok {
				for _, m := range pending {
					b.out <- m
				}
				close(b.out)
				return
			}
			pending = append(pending, msg)
		case b.out <- pending[0]:
			pending = pending[1:]
		}
	}
}
