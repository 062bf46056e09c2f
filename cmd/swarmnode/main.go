// Command swarmnode is a thin runnable demo of the swarm subsystem, wired
// with the in-memory/leveldb reference chain (memchain) and a urfave/cli.v1
// flag set in the teacher's own Flags()/CommandFlags() idiom
// (pkgs/trace/service.go). It is not part of the swarm's tested surface —
// only a way to run a real node end to end.
package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/sirupsen/logrus"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/drep-project/dswarm/identity"
	"github.com/drep-project/dswarm/logging"
	"github.com/drep-project/dswarm/memchain"
	"github.com/drep-project/dswarm/peerset"
	"github.com/drep-project/dswarm/swarm"
)

var (
	ListenFlag = cli.StringFlag{
		Name:  "listen",
		Usage: "local swarm listen URL, e.g. tcp://127.0.0.1:7946",
		Value: "tcp://127.0.0.1:7946",
	}
	DialTimeoutFlag = cli.DurationFlag{
		Name:  "dial-timeout",
		Usage: "per-peer dial timeout",
		Value: swarm.DefaultDialTimeout,
	}
	DistributeIntervalFlag = cli.DurationFlag{
		Name:  "distribute-interval",
		Usage: "gossip delta distribution interval",
		Value: 0,
	}
	PeerFlag = cli.StringSliceFlag{
		Name:  "peer",
		Usage: "hex-pubkey@url of a peer to add at startup, repeatable",
	}
	DataDirFlag = cli.StringFlag{
		Name:  "datadir",
		Usage: "directory for the leveldb-backed reference chain; empty means in-memory only",
	}
)

func main() {
	app := cli.NewApp()
	app.Name = "swarmnode"
	app.Usage = "run a demo swarm node over the reference chain"
	app.Flags = []cli.Flag{ListenFlag, DialTimeoutFlag, DistributeIntervalFlag, PeerFlag, DataDirFlag}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	logging.SetLevel(logrus.InfoLevel)
	log := logging.For("swarmnode")

	self, err := identity.New()
	if err != nil {
		return err
	}
	log.WithField("address", self.Address().String()).Info("generated node identity")

	var store *memchain.Store
	if dir := c.String(DataDirFlag.Name); dir != "" {
		store, err = memchain.OpenStore(dir)
		if err != nil {
			return err
		}
		defer store.Close()
	}
	chain := memchain.New(store)
	if store != nil {
		if err := store.LoadInto(chain); err != nil {
			return err
		}
	}

	cfg := swarm.Config{
		ListenURL:          c.String(ListenFlag.Name),
		DialTimeout:        c.Duration(DialTimeoutFlag.Name),
		DistributeInterval: c.Duration(DistributeIntervalFlag.Name),
		BlockDecode:        memchain.DecodeBlockAsChainBlock,
		TxDecode:           memchain.DecodeTransactionAsChainTx,
	}
	node := swarm.New(self, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("shutting down")
		node.StopAsync(context.Background())
		cancel()
	}()

	seeds, err := parsePeerFlags(c.StringSlice(PeerFlag.Name))
	if err != nil {
		return err
	}
	if len(seeds) > 0 {
		go func() {
			time.Sleep(200 * time.Millisecond)
			added := node.AddPeersAsync(ctx, seeds, time.Now())
			log.WithField("count", len(added)).Info("seeded peers from --peer flags")
		}()
	}

	return node.StartAsync(ctx, chain)
}

// parsePeerFlags parses "hex-pubkey@url" entries. Discovering a peer's
// public key out of band (bootstrap discovery) is outside the swarm
// subsystem's scope, so this demo only accepts it pre-resolved on the
// command line.
func parsePeerFlags(entries []string) ([]peerset.Peer, error) {
	peers := make([]peerset.Peer, 0, len(entries))
	for _, e := range entries {
		parts := strings.SplitN(e, "@", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid --peer %q, want hex-pubkey@url", e)
		}
		raw, err := hex.DecodeString(parts[0])
		if err != nil {
			return nil, fmt.Errorf("invalid --peer pubkey %q: %w", parts[0], err)
		}
		pub, err := secp256k1.ParsePubKey(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid --peer pubkey %q: %w", parts[0], err)
		}
		peers = append(peers, peerset.NewPeer(pub, parts[1]))
	}
	return peers, nil
}
