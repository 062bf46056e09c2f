package swarm

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/drep-project/dswarm/chainiface"
	"github.com/drep-project/dswarm/dispatch"
	"github.com/drep-project/dswarm/gossip"
	"github.com/drep-project/dswarm/identity"
	"github.com/drep-project/dswarm/logging"
	"github.com/drep-project/dswarm/message"
	"github.com/drep-project/dswarm/peerset"
	"github.com/drep-project/dswarm/signal"
	"github.com/drep-project/dswarm/swarmerr"
	"github.com/drep-project/dswarm/transport"
)

// Swarm is the public facade of §6: the identity, peer set, gossip
// engine, transport, and dispatcher of one node, wired together and
// exposed through the operations the distilled spec names.
type Swarm struct {
	self   *identity.Identity
	config Config
	engine *gossip.Engine

	runMu      sync.Mutex
	running    bool
	server     *transport.Server
	dispatcher *dispatch.Dispatcher
	cancelRun  context.CancelFunc
	runWG      sync.WaitGroup

	DeltaDistributed *signal.Signal
	DeltaReceived    *signal.Signal
	TxReceived       *signal.Signal

	log *logrus.Entry
}

// New constructs a Swarm for the given identity and configuration. It
// does not bind any socket; call Start to do that.
func New(self *identity.Identity, config Config) *Swarm {
	engine := gossip.New(self, config.dialTimeout())
	return &Swarm{
		self:             self,
		config:           config,
		engine:           engine,
		DeltaDistributed: engine.DeltaDistributed,
		DeltaReceived:    engine.DeltaReceived,
		TxReceived:       signal.New(),
		log:              logging.For("swarm"),
	}
}

// --- peer-set collection operations (§6) ---

func (s *Swarm) Contains(p peerset.Peer) bool { return s.engine.Peers().Contains(p) }

func (s *Swarm) Count() int { return s.engine.Peers().Count() }

func (s *Swarm) Clear() { s.engine.Peers().Clear() }

func (s *Swarm) Enumerate() []peerset.Peer { return s.engine.Peers().Enumerate() }

func (s *Swarm) CopyTo(out []peerset.Peer, offset int) (int, error) {
	return s.engine.Peers().CopyTo(out, offset)
}

func (s *Swarm) Remove(p peerset.Peer) bool { return s.engine.Remove(p) }

// AddPeersAsync implements add_peers_async(peers, ts?) (§6).
func (s *Swarm) AddPeersAsync(ctx context.Context, peers []peerset.Peer, ts time.Time) []peerset.Peer {
	if ts.IsZero() {
		ts = time.Now()
	}
	return s.engine.AddPeers(ctx, peers, ts)
}

// Address returns the local node's derived address.
func (s *Swarm) Address() identity.Address { return s.self.Address() }

// ListenAddr returns the server endpoint's bound address and true once
// Start has bound it, or false before then.
func (s *Swarm) ListenAddr() (string, bool) {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.server == nil {
		return "", false
	}
	return "tcp://" + s.server.Addr().String(), true
}

// --- lifecycle (§4.6) ---

// StartAsync binds the server endpoint, dials every known peer, and runs
// the gossip ticker and dispatcher until ctx is cancelled or Stop is
// called. It blocks for the duration of the run.
func (s *Swarm) StartAsync(ctx context.Context, chain chainiface.Chain) error {
	s.runMu.Lock()
	if s.running {
		s.runMu.Unlock()
		return swarmerr.ErrAlreadyRunning
	}
	s.running = true
	s.runMu.Unlock()

	server, err := transport.Listen(s.config.ListenURL)
	if err != nil {
		s.runMu.Lock()
		s.running = false
		s.runMu.Unlock()
		return err
	}
	s.runMu.Lock()
	s.server = server
	s.runMu.Unlock()
	s.engine.SetRunning(true)
	s.engine.DialAllKnown(ctx)

	listenURLs := []string{"tcp://" + server.Addr().String()}
	d, err := dispatch.New(s.self, server, s.engine, chain, listenURLs, s.config.HandlerPoolSize, s.config.BlockDecode, s.config.TxDecode)
	if err != nil {
		server.Close()
		s.runMu.Lock()
		s.running = false
		s.runMu.Unlock()
		return err
	}
	d.TxReceived = s.TxReceived
	s.dispatcher = d

	runCtx, cancel := context.WithCancel(ctx)
	s.cancelRun = cancel

	s.runWG.Add(2)
	go func() {
		defer s.runWG.Done()
		s.engine.Run(runCtx, s.config.DistributeInterval, listenURLs)
	}()
	go func() {
		defer s.runWG.Done()
		d.Run(runCtx)
	}()

	<-runCtx.Done()
	s.runWG.Wait()
	return runCtx.Err()
}

// StopAsync implements the idempotent stop of §4.6: tombstone self,
// distribute a final farewell delta, close every endpoint, close the
// server, and mark not-running.
func (s *Swarm) StopAsync(ctx context.Context) {
	s.runMu.Lock()
	if !s.running {
		s.runMu.Unlock()
		return
	}
	s.running = false
	cancel := s.cancelRun
	s.runMu.Unlock()

	selfPeer := peerset.NewPeer(s.self.PublicKey(), s.config.ListenURL)
	now := time.Now()

	farewell := message.PeerSetDeltaPayload{
		Sender:            message.ToWirePeer(selfPeer, now.UnixNano()),
		TimestampUnixNano: now.UnixNano(),
		Removed:           []message.WirePeer{message.ToWirePeer(selfPeer, now.UnixNano())},
	}
	if frames, err := message.Encode(s.self, &message.Message{Kind: message.KindPeerSetDelta, PeerSetDelta: &farewell}); err == nil {
		for _, p := range s.engine.Peers().Enumerate() {
			if ep, ok := s.engine.Endpoints().Get(p.Address()); ok {
				ep.Send(frames, 300*time.Millisecond)
			}
		}
	} else {
		s.log.WithError(err).Error("failed to encode farewell delta")
	}

	s.engine.Endpoints().CloseAll()
	if s.server != nil {
		s.server.Close()
	}
	s.engine.SetRunning(false)

	if cancel != nil {
		cancel()
	}
}
