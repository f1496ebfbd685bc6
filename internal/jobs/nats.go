package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

const workerQueue = "occupancy-workers"

type runRequest struct {
	RunID  string          `json:"runId"`
	Params json.RawMessage `json:"params"`
}

// Connect dials NATS with connection lifecycle logging. onStatus, when not
// nil, is told about every connect and disconnect.
func Connect(url, name string, onStatus func(connected bool)) (*nats.Conn, error) {
	report := func(b bool) {
		if onStatus != nil {
			onStatus(b)
		}
	}
	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Printf("nats disconnected: %v", err)
			report(false)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Printf("nats reconnected")
			report(true)
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			log.Printf("nats closed")
			report(false)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect %s: %w", url, err)
	}
	report(true)
	return nc, nil
}

// NATSRunner submits runs as messages on subject; workers pick them up from a
// queue group and record progress in the shared StatusStore.
type NATSRunner struct {
	nc      *nats.Conn
	subject string
	store   StatusStore
}

func NewNATSRunner(nc *nats.Conn, subject string, store StatusStore) *NATSRunner {
	return &NATSRunner{nc: nc, subject: subject, store: store}
}

func (n *NATSRunner) Submit(ctx context.Context, p Params) (string, error) {
	params, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	req := runRequest{RunID: uuid.NewString(), Params: params}
	b, err := json.Marshal(req)
	if err != nil {
		return "", err
	}
	if err := n.store.Put(ctx, req.RunID, RunStatus{State: StatePending}); err != nil {
		return "", err
	}
	if err := n.nc.Publish(n.subject, b); err != nil {
		return "", fmt.Errorf("publish run %s: %w", req.RunID, err)
	}
	if err := n.nc.FlushTimeout(5 * time.Second); err != nil {
		return "", fmt.Errorf("flush run %s: %w", req.RunID, err)
	}
	return req.RunID, nil
}

func (n *NATSRunner) Status(ctx context.Context, runID string) (RunStatus, error) {
	return n.store.Get(ctx, runID)
}

// Worker consumes run requests and executes them with a Handler.
type Worker struct {
	nc      *nats.Conn
	subject string
	store   StatusStore
	handler Handler
	metrics Metrics

	sub       *nats.Subscription
	runCtx    context.Context
	cancelRun context.CancelFunc
}

func NewWorker(nc *nats.Conn, subject string, store StatusStore, h Handler, m Metrics) *Worker {
	return &Worker{nc: nc, subject: subject, store: store, handler: h, metrics: m}
}

// Start subscribes to the run subject. Runs keep ctx's values but not its
// cancellation: queued runs are cut short only when Stop times out.
func (w *Worker) Start(ctx context.Context) error {
	w.detach(ctx)
	sub, err := w.nc.QueueSubscribe(w.subject, workerQueue, func(msg *nats.Msg) {
		w.handle(w.runCtx, msg.Data)
	})
	if err != nil {
		w.cancelRun()
		return fmt.Errorf("subscribe %s: %w", w.subject, err)
	}
	w.sub = sub
	log.Printf("worker listening on %s (queue %s)", w.subject, workerQueue)
	return nil
}

func (w *Worker) detach(ctx context.Context) {
	w.runCtx, w.cancelRun = context.WithCancel(context.WithoutCancel(ctx))
}

func (w *Worker) handle(ctx context.Context, data []byte) {
	var req runRequest
	if err := json.Unmarshal(data, &req); err != nil || req.RunID == "" {
		log.Printf("dropping undecodable run request (%d bytes): %v", len(data), err)
		return
	}
	var p Params
	if err := json.Unmarshal(req.Params, &p); err != nil {
		log.Printf("run %s: bad params: %v", req.RunID, err)
		st := RunStatus{State: StateSkipped, Message: fmt.Sprintf("bad params: %v", err)}
		if err := w.store.Put(ctx, req.RunID, st); err != nil {
			log.Printf("run %s: %v", req.RunID, err)
		}
		if w.metrics != nil {
			w.metrics.RunFinished(StateSkipped, 0)
		}
		return
	}
	log.Printf("run %s started (route=%q, limit=%d, staged=%t)", req.RunID, p.RouteFilter, p.Limit, p.StagedBatchRef != "")
	if err := execute(ctx, w.store, req.RunID, p, w.handler, w.metrics); err != nil {
		log.Printf("run %s: %v", req.RunID, err)
	}
}

// Stop drains the subscription, letting queued runs finish, bounded by
// timeout. Runs still going when the timeout expires are cancelled.
func (w *Worker) Stop(timeout time.Duration) {
	if w.sub == nil {
		return
	}
	defer w.cancelRun()
	if err := w.sub.Drain(); err != nil {
		log.Printf("drain %s: %v", w.subject, err)
		return
	}
	deadline := time.Now().Add(timeout)
	for w.sub.IsValid() {
		if time.Now().After(deadline) {
			log.Printf("worker stop timed out after %s; cancelling runs in flight", timeout)
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
}
