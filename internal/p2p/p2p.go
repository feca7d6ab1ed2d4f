// Package p2p hosts the libp2p transport the Blockpool uses to exchange
// block proposals and votes with the rest of the network. It only moves
// bytes: message framing is core's wire codec, and validation/quorum live
// entirely in core.Blockpool.
package p2p

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/libp2p/go-libp2p"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/p2p/discovery/mdns"
	log "github.com/sirupsen/logrus"

	"champ/core"
)

var p2pLog = log.WithField("component", "p2p")

// SetLogger overrides the package-level logger entry.
func SetLogger(l *log.Logger) {
	p2pLog = l.WithField("component", "p2p")
}

const (
	topicProposals  = "champ/proposals/v1"
	topicFinalVotes = "champ/final-votes/v1"
)

// Config configures a Node.
type Config struct {
	ListenAddr     string
	BootstrapPeers []string
	DiscoveryTag   string
}

// NodeID identifies a peer by its libp2p peer id string.
type NodeID string

// Peer is a known remote participant.
type Peer struct {
	ID   NodeID
	Addr string
}

// Node hosts a libp2p host plus gossipsub, and bridges its two fixed
// topics (proposals, final votes) onto a Blockpool.
type Node struct {
	host   hostCloser
	pubsub *pubsub.PubSub

	topicLock sync.Mutex
	topics    map[string]*pubsub.Topic

	subLock sync.Mutex
	subs    map[string]*pubsub.Subscription

	peerLock sync.RWMutex
	peers    map[NodeID]*Peer

	ctx    context.Context
	cancel context.CancelFunc
	cfg    Config

	pool *core.Blockpool
}

// hostCloser is the subset of host.Host Node depends on directly, kept
// narrow so tests can stub it if needed.
type hostCloser interface {
	ID() peer.ID
	Connect(context.Context, peer.AddrInfo) error
	Close() error
}

// NewNode creates and bootstraps a node, wiring its incoming proposal and
// final-vote topics onto pool.
func NewNode(cfg Config, pool *core.Blockpool) (*Node, error) {
	ctx, cancel := context.WithCancel(context.Background())

	h, err := libp2p.New(libp2p.ListenAddrStrings(cfg.ListenAddr))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("create host: %w", err)
	}

	ps, err := pubsub.NewGossipSub(ctx, h)
	if err != nil {
		h.Close()
		cancel()
		return nil, fmt.Errorf("create pubsub: %w", err)
	}

	n := &Node{
		host:   h,
		pubsub: ps,
		topics: make(map[string]*pubsub.Topic),
		subs:   make(map[string]*pubsub.Subscription),
		peers:  make(map[NodeID]*Peer),
		ctx:    ctx,
		cancel: cancel,
		cfg:    cfg,
		pool:   pool,
	}

	if err := n.DialSeed(cfg.BootstrapPeers); err != nil {
		p2pLog.WithError(err).Warn("dial seed warning")
	}

	mdns.NewMdnsService(h, cfg.DiscoveryTag, n)

	if err := n.subscribeProposals(); err != nil {
		n.Close()
		return nil, err
	}
	if err := n.subscribeFinalVotes(); err != nil {
		n.Close()
		return nil, err
	}

	return n, nil
}

var _ mdns.Notifee = (*Node)(nil)

// HandlePeerFound implements mdns.Notifee.
func (n *Node) HandlePeerFound(info peer.AddrInfo) {
	if info.ID == n.host.ID() {
		return
	}
	n.peerLock.RLock()
	_, exists := n.peers[NodeID(info.ID.String())]
	n.peerLock.RUnlock()
	if exists {
		return
	}
	if err := n.host.Connect(n.ctx, info); err != nil {
		p2pLog.WithError(err).Warnf("connect to discovered peer %s", info.ID)
		return
	}
	n.peerLock.Lock()
	n.peers[NodeID(info.ID.String())] = &Peer{ID: NodeID(info.ID.String()), Addr: info.String()}
	n.peerLock.Unlock()
	p2pLog.Infof("connected to peer %s via mdns", info.ID)
}

// DialSeed connects to a list of bootstrap peer multiaddrs.
func (n *Node) DialSeed(seeds []string) error {
	var errs []string
	for _, addr := range seeds {
		pi, err := peer.AddrInfoFromString(addr)
		if err != nil {
			errs = append(errs, fmt.Sprintf("invalid addr %s: %v", addr, err))
			continue
		}
		if err := n.host.Connect(n.ctx, *pi); err != nil {
			errs = append(errs, fmt.Sprintf("connect %s: %v", addr, err))
			continue
		}
		n.peerLock.Lock()
		n.peers[NodeID(pi.ID.String())] = &Peer{ID: NodeID(pi.ID.String()), Addr: addr}
		n.peerLock.Unlock()
		p2pLog.Infof("bootstrapped to %s", addr)
	}
	if len(errs) > 0 {
		return fmt.Errorf("dial errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Peers returns the current known peer list.
func (n *Node) Peers() []*Peer {
	n.peerLock.RLock()
	defer n.peerLock.RUnlock()
	out := make([]*Peer, 0, len(n.peers))
	for _, p := range n.peers {
		out = append(out, p)
	}
	return out
}

// Close tears down the node.
func (n *Node) Close() error {
	n.cancel()
	return n.host.Close()
}

func (n *Node) joinTopic(topic string) (*pubsub.Topic, error) {
	n.topicLock.Lock()
	defer n.topicLock.Unlock()
	if t, ok := n.topics[topic]; ok {
		return t, nil
	}
	t, err := n.pubsub.Join(topic)
	if err != nil {
		return nil, fmt.Errorf("join topic %s: %w", topic, err)
	}
	n.topics[topic] = t
	return t, nil
}

func (n *Node) publish(topic string, data []byte) error {
	t, err := n.joinTopic(topic)
	if err != nil {
		return err
	}
	if err := t.Publish(n.ctx, data); err != nil {
		return fmt.Errorf("publish topic %s: %w", topic, err)
	}
	return nil
}

// BroadcastProposal wire-encodes block and vote and publishes it to the
// proposals topic. Wired as the Blockpool's rebroadcast hook for prime
// delegates.
func (n *Node) BroadcastProposal(block *core.Block, vote uint64) error {
	data, err := encodeVoteMessage(block, vote)
	if err != nil {
		return err
	}
	return n.publish(topicProposals, data)
}

// BroadcastFinalVote wire-encodes block and vote and publishes it to the
// final-votes topic.
func (n *Node) BroadcastFinalVote(block *core.Block, vote uint64) error {
	data, err := encodeVoteMessage(block, vote)
	if err != nil {
		return err
	}
	return n.publish(topicFinalVotes, data)
}

func (n *Node) subscribeProposals() error {
	sub, err := n.subscribe(topicProposals)
	if err != nil {
		return err
	}
	go n.pumpVotes(sub, func(ctx context.Context, block *core.Block, vote uint64) error {
		_, err := n.pool.ProposalVote(ctx, block, vote)
		return err
	})
	return nil
}

func (n *Node) subscribeFinalVotes() error {
	sub, err := n.subscribe(topicFinalVotes)
	if err != nil {
		return err
	}
	go n.pumpVotes(sub, n.pool.FinalVote)
	return nil
}

func (n *Node) subscribe(topic string) (*pubsub.Subscription, error) {
	if _, err := n.joinTopic(topic); err != nil {
		return nil, err
	}
	n.subLock.Lock()
	defer n.subLock.Unlock()
	if sub, ok := n.subs[topic]; ok {
		return sub, nil
	}
	sub, err := n.pubsub.Subscribe(topic)
	if err != nil {
		return nil, fmt.Errorf("subscribe topic %s: %w", topic, err)
	}
	n.subs[topic] = sub
	return sub, nil
}

// pumpVotes drains sub and calls deliver with every decoded (block, vote)
// pair, logging and skipping anything that fails to decode.
func (n *Node) pumpVotes(sub *pubsub.Subscription, deliver func(context.Context, *core.Block, uint64) error) {
	for {
		msg, err := sub.Next(n.ctx)
		if err != nil {
			p2pLog.WithError(err).Warn("subscription closed")
			return
		}
		if msg.GetFrom() == n.host.ID() {
			continue
		}
		block, vote, err := decodeVoteMessage(msg.Data)
		if err != nil {
			p2pLog.WithError(err).Warn("dropping undecodable message")
			continue
		}
		if err := deliver(n.ctx, block, vote); err != nil {
			p2pLog.WithError(err).Debug("vote delivery rejected")
		}
	}
}
