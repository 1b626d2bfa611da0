package rpc

import (
	"code.hybscloud.com/iox"
	"code.hybscloud.com/lfq"
	"github.com/khangthk/asio-grpc/cq"
)

// laneCapacity bounds the commands queued on one lane. A well behaved call
// has at most one command outstanding per lane.
const laneCapacity = 8

type laneCommand struct {
	tag    any
	action func() bool
}

// lane runs blocking actions in submission order on a dedicated goroutine,
// delivering each result to the poster. Only one goroutine may submit.
type lane struct {
	poster   cq.Poster
	shutdown <-chan struct{}
	commands lfq.SPSC[laneCommand]
	doorbell chan struct{}
	closed   chan struct{}
}

// start initializes the lane and launches its goroutine. The lane exits
// once closed, or once shutdown is closed.
func (x *lane) start(poster cq.Poster, shutdown <-chan struct{}) {
	x.poster = poster
	x.shutdown = shutdown
	x.commands.Init(laneCapacity)
	x.doorbell = make(chan struct{}, 1)
	x.closed = make(chan struct{})
	go x.run()
}

// submit reserves an event on the poster, then queues action. On success
// the event for tag is delivered exactly once.
func (x *lane) submit(tag any, action func() bool) error {
	if err := x.poster.Begin(); err != nil {
		return err
	}
	cmd := laneCommand{tag: tag, action: action}
	var bo iox.Backoff
	for {
		err := x.commands.Enqueue(&cmd)
		if err == nil {
			break
		}
		if !iox.IsWouldBlock(err) {
			x.poster.Complete(tag, false)
			return nil
		}
		bo.Wait()
	}
	select {
	case x.doorbell <- struct{}{}:
	default:
	}
	return nil
}

// close stops the lane once any queued commands have run.
func (x *lane) close() {
	close(x.closed)
}

func (x *lane) run() {
	for {
		x.drain()
		select {
		case <-x.doorbell:
		case <-x.closed:
			x.drain()
			return
		case <-x.shutdown:
			// submission is only possible from the loop goroutine, and the
			// loop is no longer running once the backend has shut down
			x.drain()
			return
		}
	}
}

func (x *lane) drain() {
	for {
		cmd, err := x.commands.Dequeue()
		if err != nil {
			return
		}
		x.poster.Complete(cmd.tag, cmd.action())
	}
}
