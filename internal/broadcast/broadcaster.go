package broadcast

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/SJang1/traffic-light-websocket/internal/domain"
	"github.com/SJang1/traffic-light-websocket/internal/lights"
	"github.com/SJang1/traffic-light-websocket/internal/metrics"
)

const (
	commandTimeout = 5 * time.Second
	stopTimeout    = 10 * time.Second
	cmdChannelSize = 256
)

// broadcasterCmd is the command interface for the Broadcaster actor.
type broadcasterCmd interface{ isBroadcasterCmd() }

type baseBroadcasterCmd struct{}

func (baseBroadcasterCmd) isBroadcasterCmd() {}

type registerCmd struct {
	baseBroadcasterCmd
	connection   *websocket.Conn
	errorChannel chan error
}

type unregisterCmd struct {
	baseBroadcasterCmd
	connection *websocket.Conn
}

type pushCmd struct {
	baseBroadcasterCmd
	snapshot    domain.Snapshot
	doneChannel chan struct{}
}

type clientCountCmd struct {
	baseBroadcasterCmd
	replyChannel chan int
}

type stopCmd struct {
	baseBroadcasterCmd
}

// Broadcaster owns the set of websocket subscribers and all fan-out. It runs
// as a single goroutine fed by a command channel, so registration, explicit
// pushes and the periodic sampler never race. Per-connection writer
// goroutines keep one slow subscriber from stalling the rest.
//
// Two triggers cause a fan-out: an explicit Push after an accepted mutation
// (always broadcasts), and the sampler tick (broadcasts only when status or
// distance changed since the last broadcast).
type Broadcaster struct {
	cmdCh          chan broadcasterCmd
	clock          clockwork.Clock
	source         domain.SnapshotSource
	clients        map[*websocket.Conn]*clientWriter
	lastSent       domain.Snapshot
	tickInterval   time.Duration
	maxSubscribers int
	done           chan struct{}
}

// NewBroadcaster creates and starts a broadcaster sampling source every
// tickInterval. maxSubscribers bounds the registry; further registrations
// are refused.
func NewBroadcaster(source domain.SnapshotSource, clock clockwork.Clock, tickInterval time.Duration, maxSubscribers int) *Broadcaster {
	b := &Broadcaster{
		cmdCh:          make(chan broadcasterCmd, cmdChannelSize),
		clock:          clock,
		source:         source,
		clients:        make(map[*websocket.Conn]*clientWriter),
		tickInterval:   tickInterval,
		maxSubscribers: maxSubscribers,
		done:           make(chan struct{}),
	}
	go b.run()
	return b
}

// Register adds a subscriber and sends it one priming snapshot before it
// sees any broadcast, so a fresh observer never waits for the next tick.
func (b *Broadcaster) Register(conn *websocket.Conn) error {
	errCh := make(chan error, 1)
	b.cmdCh <- registerCmd{connection: conn, errorChannel: errCh}

	timer := b.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case err := <-errCh:
		return err
	case <-timer.Chan():
		return fmt.Errorf("register command timed out after %v", commandTimeout)
	}
}

// Unregister removes a subscriber. Safe to call for connections already
// evicted by a failed send.
func (b *Broadcaster) Unregister(conn *websocket.Conn) {
	b.cmdCh <- unregisterCmd{connection: conn}
}

// Push broadcasts snapshot to every subscriber and returns once the fan-out
// completed. Delivery failures evict the affected subscriber and are never
// surfaced to the caller.
func (b *Broadcaster) Push(snapshot domain.Snapshot) {
	doneCh := make(chan struct{})
	b.cmdCh <- pushCmd{snapshot: snapshot, doneChannel: doneCh}

	timer := b.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case <-doneCh:
	case <-timer.Chan():
		slog.Warn("Push command timed out", "timeout", commandTimeout)
	}
}

// ClientCount returns the number of registered subscribers, or -1 if the
// command times out.
func (b *Broadcaster) ClientCount() int {
	replyCh := make(chan int, 1)
	b.cmdCh <- clientCountCmd{replyChannel: replyCh}

	timer := b.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case count := <-replyCh:
		return count
	case <-timer.Chan():
		slog.Warn("ClientCount timed out", "timeout", commandTimeout)
		return -1
	}
}

// Stop shuts the broadcaster down, sending close frames to all subscribers.
// Blocks until the actor goroutine exited or the stop timeout elapsed.
func (b *Broadcaster) Stop() {
	b.cmdCh <- stopCmd{}

	timer := b.clock.NewTimer(stopTimeout)
	defer timer.Stop()

	select {
	case <-b.done:
		slog.Info("Broadcaster stopped gracefully")
	case <-timer.Chan():
		slog.Warn("Broadcaster stop timeout exceeded", "timeout", stopTimeout)
	}
}

func (b *Broadcaster) run() {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Broadcaster panic recovered", "panic", r)
			b.closeAllClients("broadcaster panic")
			close(b.done)
		}
	}()

	ticker := b.clock.NewTicker(b.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case cmd := <-b.cmdCh:
			switch c := cmd.(type) {
			case registerCmd:
				b.handleRegister(c)
			case unregisterCmd:
				b.handleUnregister(c.connection)
			case pushCmd:
				b.fanOut(c.snapshot, "mutation")
				close(c.doneChannel)
			case clientCountCmd:
				c.replyChannel <- len(b.clients)
			case stopCmd:
				b.handleStop()
				close(b.done)
				return
			default:
				slog.Warn("Broadcaster received unknown command type", "command_type", fmt.Sprintf("%T", cmd))
			}
		case <-ticker.Chan():
			b.handleTick()
		}
	}
}

func (b *Broadcaster) handleRegister(c registerCmd) {
	if len(b.clients) >= b.maxSubscribers {
		slog.Warn("Rejecting subscriber: limit reached", "max_subscribers", b.maxSubscribers)
		c.connection.Close()
		c.errorChannel <- fmt.Errorf("subscriber limit (%d) reached", b.maxSubscribers)
		return
	}

	cw := newClientWriter(c.connection, b.clock)
	b.clients[c.connection] = cw
	metrics.ConnectedSubscribers.Set(float64(len(b.clients)))
	slog.Debug("Subscriber registered", "subscriber_id", cw.id.String(), "total_subscribers", len(b.clients))

	// Priming push: the new subscriber sees current state immediately, and
	// actor ordering guarantees it lands before any later broadcast.
	snapshot := b.source.Snapshot()
	snapshot.ConnectedUsers = len(b.clients)
	if data, err := json.Marshal(snapshot); err != nil {
		slog.Error("Failed to marshal priming snapshot", "subscriber_id", cw.id.String(), "error", err)
	} else if !cw.trySend(data) {
		slog.Warn("Priming push failed, evicting subscriber", "subscriber_id", cw.id.String())
		b.evict(c.connection)
	} else {
		metrics.BroadcastsTotal.WithLabelValues("priming").Inc()
	}

	c.errorChannel <- nil
}

func (b *Broadcaster) handleUnregister(conn *websocket.Conn) {
	cw, exists := b.clients[conn]
	if !exists {
		return
	}

	cw.stop()
	delete(b.clients, conn)
	metrics.ConnectedSubscribers.Set(float64(len(b.clients)))
	slog.Debug("Subscriber unregistered", "subscriber_id", cw.id.String(), "remaining_subscribers", len(b.clients))
}

func (b *Broadcaster) handleTick() {
	snapshot := b.source.Snapshot()
	if !lights.Changed(b.lastSent, snapshot) {
		metrics.SuppressedTicksTotal.Inc()
		return
	}
	b.fanOut(snapshot, "tick")
}

// fanOut serializes snapshot once and hands the identical bytes to every
// subscriber's writer. A full send buffer means the subscriber cannot keep
// up; it is evicted rather than awaited.
func (b *Broadcaster) fanOut(snapshot domain.Snapshot, trigger string) {
	timer := prometheus.NewTimer(metrics.BroadcastDuration)
	defer timer.ObserveDuration()

	snapshot.ConnectedUsers = len(b.clients)
	data, err := json.Marshal(snapshot)
	if err != nil {
		slog.Error("Failed to marshal broadcast payload", "error", err)
		return
	}

	var stalled []*websocket.Conn
	for conn, writer := range b.clients {
		if !writer.trySend(data) {
			stalled = append(stalled, conn)
		}
	}
	for _, conn := range stalled {
		slog.Warn("Evicting stalled subscriber", "subscriber_id", b.clients[conn].id.String())
		b.evict(conn)
	}

	b.lastSent = snapshot
	metrics.BroadcastsTotal.WithLabelValues(trigger).Inc()
}

func (b *Broadcaster) evict(conn *websocket.Conn) {
	metrics.SubscribersEvicted.Inc()
	b.handleUnregister(conn)
}

func (b *Broadcaster) handleStop() {
	slog.Info("Broadcaster shutting down", "subscribers", len(b.clients))
	b.closeAllClients("server shutting down")
}

func (b *Broadcaster) closeAllClients(reason string) {
	for conn, cw := range b.clients {
		cw.stopGraceful(reason)
		delete(b.clients, conn)
	}
	metrics.ConnectedSubscribers.Set(0)
}
