package receiver

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"

	"github.com/beaconsentry/engine/internal/adapters/mempool"
	"github.com/beaconsentry/engine/internal/adapters/workerpool"
	"github.com/beaconsentry/engine/internal/domain"
	"github.com/beaconsentry/engine/internal/telemetry"
)

// memPoolName labels the packet buffer pool in telemetry.MemPoolUtilization.
const memPoolName = "packet"

// maxDatagramSize bounds one packetContent slot; envelopes larger than
// this are truncated by ReadFromUDP and will fail envelope parsing.
const maxDatagramSize = 2048

// readTimeout bounds each ReadFromUDP call so Run can observe ctx
// cancellation promptly instead of blocking indefinitely on recv.
const readTimeout = time.Second

// backpressureRecheck is how long Run sleeps before retrying Alloc when
// the memory pool is momentarily exhausted.
const backpressureRecheck = 5 * time.Millisecond

// packetContent is the pool-B record of spec §4.B: a reusable buffer
// holding one inbound datagram's sender address and raw payload.
type packetContent struct {
	Addr    *net.UDPAddr
	Payload [maxDatagramSize]byte
	N       int
}

// Dispatcher processes one parsed envelope. Implemented by the ingest
// persister (§4.F); kept narrow so this package does not depend on the
// persister's full storage surface.
type Dispatcher interface {
	Dispatch(ctx context.Context, env Envelope)
}

// Receiver is the single dedicated-goroutine UDP packet receiver of
// §4.C, backed by a memory pool for buffer reuse and a worker pool for
// dispatch.
type Receiver struct {
	conn    *net.UDPConn
	pool    *mempool.Pool[packetContent]
	workers *workerpool.Pool
	disp    Dispatcher
	log     *slog.Logger
}

// NewPool allocates the pool-B memory pool a Receiver draws packet
// buffers from. Kept here since packetContent is unexported.
func NewPool(capacity int) *mempool.Pool[packetContent] {
	return mempool.New[packetContent](capacity)
}

// New constructs a Receiver over an already-bound UDP socket.
func New(conn *net.UDPConn, pool *mempool.Pool[packetContent], workers *workerpool.Pool, disp Dispatcher, log *slog.Logger) *Receiver {
	return &Receiver{conn: conn, pool: pool, workers: workers, disp: disp, log: log}
}

// Run loops until ctx is cancelled, implementing §4.C's four steps. Per
// the backpressure Open Question decision, saturation is handled by
// Submit's blocking channel send rather than a busy-wait sleep/recheck;
// the sleep/recheck here is reserved for pool-B exhaustion only.
func (r *Receiver) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		slot, ok := r.pool.Alloc()
		if !ok {
			telemetry.PacketsDropped.WithLabelValues("mempool_exhausted").Inc()
			r.log.Debug("packet pool exhausted", "code", string(domain.ErrMalloc))
			time.Sleep(backpressureRecheck)
			continue
		}
		telemetry.MemPoolUtilization.WithLabelValues(memPoolName).Set(float64(r.pool.Len()) / float64(r.pool.Cap()))

		if err := r.conn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
			r.pool.Free(slot)
			return
		}

		n, addr, err := r.conn.ReadFromUDP(slot.Payload[:])
		if err != nil {
			r.pool.Free(slot)
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			select {
			case <-ctx.Done():
				return
			default:
			}
			telemetry.PacketsDropped.WithLabelValues("read_error").Inc()
			r.log.Debug("udp read error", "error", err.Error())
			continue
		}
		telemetry.PacketsReceived.WithLabelValues().Inc()
		slot.Addr = addr
		slot.N = n

		if !r.workers.Submit(r.jobFor(slot)) {
			telemetry.PacketsDropped.WithLabelValues("worker_pool_closed").Inc()
			r.pool.Free(slot)
		}
	}
}

func (r *Receiver) jobFor(slot *packetContent) workerpool.Job {
	return func(ctx context.Context) {
		defer r.pool.Free(slot)

		payload := string(slot.Payload[:slot.N])
		env, err := ParseEnvelope(payload)
		if err != nil {
			telemetry.PacketsDropped.WithLabelValues("parse_error").Inc()
			r.log.Debug("envelope parse failed",
				"error", err.Error(),
				"remote", slot.Addr.String(),
				"code", string(domain.ErrAPIProtocol))
			return
		}
		telemetry.PacketsProcessed.WithLabelValues(env.Kind().String()).Inc()
		r.disp.Dispatch(ctx, env)
	}
}
