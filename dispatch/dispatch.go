// Package dispatch implements the receive loop and handler routing of
// §4.4: inbound messages are parsed at the server endpoint and routed to
// one of two protoactor-go actor references, mirroring the teacher's own
// use of actor.FromProducer/actor.SpawnNamed to give a service a
// mailbox-addressable PID fed by the p2p layer (chain/service/chain.go).
package dispatch

import (
	"context"
	"time"

	"github.com/AsynkronIT/protoactor-go/actor"
	"github.com/sirupsen/logrus"

	"github.com/drep-project/dswarm/catchup"
	"github.com/drep-project/dswarm/chainiface"
	"github.com/drep-project/dswarm/gossip"
	"github.com/drep-project/dswarm/identity"
	"github.com/drep-project/dswarm/logging"
	"github.com/drep-project/dswarm/message"
	"github.com/drep-project/dswarm/signal"
	"github.com/drep-project/dswarm/swarmerr"
	"github.com/drep-project/dswarm/transport"
)

// DefaultPoolSize is the round-robin handler pool width (§4.4.1).
const DefaultPoolSize = 8

// defaultTxFetchTimeout bounds the GetTxs round trip issued when a peer
// announces transaction ids we may not have.
const defaultTxFetchTimeout = 5 * time.Second

// TxDecoder turns the raw bytes carried by a Tx reply back into a
// chainiface.Transaction, keeping the dispatcher chain-agnostic the same
// way catchup.BlockDecoder does for blocks.
type TxDecoder func([]byte) (chainiface.Transaction, error)

// workItem is the mailbox message fed to both actors.
type workItem struct {
	received *transport.Received
}

// Dispatcher runs the receive loop and owns the two actor references the
// REDESIGN FLAG on fire-and-forget goroutine spawning calls for: a serial
// PID for PeerSetDelta application, and a bounded round-robin pool for
// every other handler kind.
type Dispatcher struct {
	self       *identity.Identity
	server     *transport.Server
	engine     *gossip.Engine
	chain      chainiface.Chain
	listenURLs []string
	blockDecode catchup.BlockDecoder
	txDecode    TxDecoder

	deltaPID *actor.PID
	poolPID  *actor.PID

	TxReceived *signal.Signal

	log *logrus.Entry
}

// New builds a Dispatcher and spawns its actor pool. poolSize <= 0 uses
// DefaultPoolSize. blockDecode/txDecode turn the raw bytes a remote sends
// back into chainiface.Block/Transaction values for whatever concrete
// chain implementation the caller is running — the dispatcher itself never
// imports one.
func New(self *identity.Identity, server *transport.Server, engine *gossip.Engine, chain chainiface.Chain, listenURLs []string, poolSize int, blockDecode catchup.BlockDecoder, txDecode TxDecoder) (*Dispatcher, error) {
	if poolSize <= 0 {
		poolSize = DefaultPoolSize
	}
	d := &Dispatcher{
		self:        self,
		server:      server,
		engine:      engine,
		chain:       chain,
		listenURLs:  listenURLs,
		blockDecode: blockDecode,
		txDecode:    txDecode,
		TxReceived:  signal.New(),
		log:         logging.For("dispatch"),
	}

	deltaProps := actor.FromProducer(func() actor.Actor { return &deltaActor{d: d} })
	deltaPID, err := actor.SpawnNamed(deltaProps, "peerset-delta-"+self.Address().String())
	if err != nil {
		return nil, err
	}
	d.deltaPID = deltaPID

	poolProps := actor.NewRoundRobinPool(poolSize).WithProducer(func() actor.Actor {
		return &handlerActor{d: d}
	})
	poolPID, err := actor.SpawnNamed(poolProps, "swarm-handlers-"+self.Address().String())
	if err != nil {
		return nil, err
	}
	d.poolPID = poolPID

	return d, nil
}

// deltaActor applies inbound PeerSetDelta messages one at a time; a
// protoactor-go actor processes its mailbox serially, giving §5's ordering
// guarantee for free at the dispatch layer (ApplyDelta's own receive lock
// still protects direct callers, e.g. tests).
type deltaActor struct {
	d *Dispatcher
}

func (a *deltaActor) Receive(ctx actor.Context) {
	item, ok := ctx.Message().(*workItem)
	if !ok {
		return
	}
	if err := a.d.handlePeerSetDelta(context.Background(), item.received); err != nil {
		a.d.log.WithError(err).Debug("peer set delta handling failed")
	}
}

// handlerActor services every non-delta message kind, running up to the
// configured pool size of instances concurrently via the round-robin pool.
type handlerActor struct {
	d *Dispatcher
}

func (a *handlerActor) Receive(ctx actor.Context) {
	item, ok := ctx.Message().(*workItem)
	if !ok {
		return
	}
	if err := a.d.handle(context.Background(), item.received); err != nil {
		a.d.log.WithError(err).WithField("kind", item.received.Msg.Kind.String()).Debug("handler failed")
	}
}

// Run polls the server endpoint until ctx is cancelled, routing each
// parsed message to the appropriate actor (§4.4).
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		r, err := d.server.Poll(ctx)
		if err != nil {
			return err
		}
		if r == nil {
			continue
		}

		item := &workItem{received: r}
		if r.Msg.Kind == message.KindPeerSetDelta {
			d.deltaPID.Tell(item)
		} else {
			d.poolPID.Tell(item)
		}
	}
}

func (d *Dispatcher) handlePeerSetDelta(ctx context.Context, r *transport.Received) error {
	if r.Msg.PeerSetDelta == nil {
		return swarmerr.ErrInvalidMessage
	}
	return d.engine.ApplyDelta(ctx, r.Msg.PeerSetDelta, d.listenURLs)
}

func (d *Dispatcher) handle(ctx context.Context, r *transport.Received) error {
	switch r.Msg.Kind {
	case message.KindPing:
		return d.handlePing(r)
	case message.KindGetBlockHashes:
		return d.handleGetBlockHashes(ctx, r)
	case message.KindGetBlocks:
		return d.handleGetBlocks(ctx, r)
	case message.KindGetTxs:
		return d.handleGetTxs(ctx, r)
	case message.KindTxIds:
		return d.handleTxIds(ctx, r)
	case message.KindBlockHashes:
		return d.handleBlockHashesAnnouncement(ctx, r)
	default:
		d.log.WithField("kind", r.Msg.Kind.String()).Error("fatal: unexpected message kind reached the dispatcher")
		return swarmerr.ErrInvalidMessage
	}
}

func (d *Dispatcher) handlePing(r *transport.Received) error {
	frames, err := message.Encode(d.self, &message.Message{Kind: message.KindPong, Pong: &message.Pong{}})
	if err != nil {
		return err
	}
	return transport.Reply(r.Conn, frames)
}

func (d *Dispatcher) handleGetBlockHashes(ctx context.Context, r *transport.Received) error {
	req := r.Msg.GetBlockHashes
	locator := chainiface.BlockLocator{}
	for _, h := range req.LocatorHashes {
		locator.Hashes = append(locator.Hashes, chainiface.Hash(h))
	}
	hashes, err := d.chain.FindNextHashes(ctx, locator, chainiface.Hash(req.Stop), 500)
	if err != nil {
		return err
	}
	wire := make([][32]byte, len(hashes))
	for i, h := range hashes {
		wire[i] = [32]byte(h)
	}
	frames, err := message.Encode(d.self, &message.Message{Kind: message.KindBlockHashes, BlockHashesMsg: &message.BlockHashes{Hashes: wire}})
	if err != nil {
		return err
	}
	return transport.Reply(r.Conn, frames)
}

func (d *Dispatcher) handleGetBlocks(ctx context.Context, r *transport.Received) error {
	for _, h := range r.Msg.GetBlocksMsg.Hashes {
		b, ok := d.chain.BlockByHash(chainiface.Hash(h))
		if !ok {
			continue
		}
		raw, err := b.Encode()
		if err != nil {
			return err
		}
		frames, err := message.Encode(d.self, &message.Message{Kind: message.KindBlock, BlockMsg: &message.BlockPayload{Bytes: raw}})
		if err != nil {
			return err
		}
		if err := transport.Reply(r.Conn, frames); err != nil {
			return err
		}
	}
	return nil
}

func (d *Dispatcher) handleGetTxs(ctx context.Context, r *transport.Received) error {
	for _, id := range r.Msg.GetTxsMsg.IDs {
		tx, ok := d.chain.TransactionByID(chainiface.Hash(id))
		if !ok {
			continue
		}
		raw, err := tx.Encode()
		if err != nil {
			return err
		}
		frames, err := message.Encode(d.self, &message.Message{Kind: message.KindTx, TxMsg: &message.TxPayload{Bytes: raw}})
		if err != nil {
			return err
		}
		if err := transport.Reply(r.Conn, frames); err != nil {
			return err
		}
	}
	return nil
}

func (d *Dispatcher) handleTxIds(ctx context.Context, r *transport.Received) error {
	if !r.Msg.HasIdentity {
		return nil
	}
	ep, ok := d.engine.Endpoints().Get(r.Msg.Identity)
	if !ok {
		return nil
	}
	var unknown [][32]byte
	for _, id := range r.Msg.TxIdsMsg.IDs {
		if _, known := d.chain.TransactionByID(chainiface.Hash(id)); !known {
			unknown = append(unknown, id)
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	req, err := message.Encode(d.self, &message.Message{Kind: message.KindGetTxs, GetTxsMsg: &message.GetTxs{IDs: unknown}})
	if err != nil {
		return err
	}
	replies, err := ep.RequestMany(req, len(unknown), defaultTxFetchTimeout)
	if err != nil {
		return err
	}
	var txs []chainiface.Transaction
	for _, reply := range replies {
		msg, err := message.Decode(reply, false)
		if err != nil {
			return err
		}
		if msg.Kind != message.KindTx {
			return swarmerr.ErrInvalidMessage
		}
		tx, err := d.txDecode(msg.TxMsg.Bytes)
		if err != nil {
			return err
		}
		txs = append(txs, tx)
	}
	if err := d.chain.StageTransactions(ctx, txs); err != nil {
		return err
	}
	d.TxReceived.Fire()
	return nil
}

func (d *Dispatcher) handleBlockHashesAnnouncement(ctx context.Context, r *transport.Received) error {
	if !r.Msg.HasIdentity {
		return swarmerr.ErrPeerNotFound
	}
	ep, ok := d.engine.Endpoints().Get(r.Msg.Identity)
	if !ok {
		return swarmerr.ErrPeerNotFound
	}
	return catchup.Run(ctx, d.self, d.chain, ep, r.Msg.BlockHashesMsg.Hashes, d.blockDecode)
}
