package core

// Blockpool is the single-owner actor that turns per-peer votes into
// finalized blocks. One goroutine started by Run owns votes and decided;
// every other goroutine talks to it only by sending a command and
// waiting on that command's reply channel, so the tally and decision set
// are never touched concurrently.

import (
	"context"

	log "github.com/sirupsen/logrus"
)

// VoteThreshold is the fraction of total network power a block's vote set
// must reach to be considered decided.
const VoteThreshold = 0.60

// commandQueueCapacity bounds the inbound command channel.
const commandQueueCapacity = 1000

// pendingCapacityHint is a capacity hint for the pending-block backlog,
// not a hard limit.
const pendingCapacityHint = 10000

var blockpoolLog = log.WithField("component", "blockpool")

// SetBlockpoolLogger overrides the package-level logger entry used by
// Blockpool.
func SetBlockpoolLogger(l *log.Logger) {
	blockpoolLog = l.WithField("component", "blockpool")
}

type proposalVoteCmd struct {
	block *Block
	vote  uint64
	reply chan proposalVoteReply
}

// proposalVoteReply reports whether this vote pushed the block's tally
// over quorum and, if it did, whether Blockpool finalized it successfully.
type proposalVoteReply struct {
	reachedQuorum bool
	err           error
}

type finalVoteCmd struct {
	block *Block
	vote  uint64
	reply chan error
}

type queueSizeCmd struct {
	reply chan int
}

// Blockpool consumes proposal and final votes for blocks it has not yet
// committed, and commits a block the moment its vote tally clears quorum.
type Blockpool struct {
	store         *Store
	validator     *Validator
	cmds          chan any
	pending       []*Block
	pendingIDs    map[BlockID]uint64
	nextPendingID uint64
	votes         map[BlockID][]uint64
	decided       map[BlockID]struct{}
	isPrime       func() bool
	rebroadcast   func(block *Block, vote uint64)
	threshold     float64
}

// NewBlockpool constructs a Blockpool over store/validator. isPrime reports
// whether this node currently holds prime-delegate status; rebroadcast (if
// non-nil) is called with a proposal's own-weight vote when isPrime()
// holds, so the P2P layer can forward it to the rest of the network. Both
// may be nil for a node that never acts as a prime delegate.
func NewBlockpool(store *Store, validator *Validator, isPrime func() bool, rebroadcast func(*Block, uint64)) *Blockpool {
	return &Blockpool{
		store:       store,
		validator:   validator,
		cmds:        make(chan any, commandQueueCapacity),
		pending:     make([]*Block, 0, pendingCapacityHint),
		pendingIDs:  make(map[BlockID]uint64),
		votes:       make(map[BlockID][]uint64),
		decided:     make(map[BlockID]struct{}),
		isPrime:     isPrime,
		rebroadcast: rebroadcast,
		threshold:   VoteThreshold,
	}
}

// Recover reloads blocks recorded in the store's pending_blocks index into
// the in-memory backlog, so a node restarted after a crash between
// accepting a proposal and reaching quorum doesn't lose track of it. Votes
// are not persisted, so recovered blocks start with an empty tally; peers
// resending their votes rebuilds it. Must be called before Run starts.
func (bp *Blockpool) Recover() error {
	entries, err := bp.store.ListPending()
	if err != nil {
		return Wrap(err, "recover pending blocks")
	}
	for id, block := range entries {
		blockID, err := block.ID()
		if err != nil {
			blockpoolLog.WithError(err).WithField("pending_id", id).Warn("dropping unrecoverable pending block")
			continue
		}
		bp.pending = append(bp.pending, &block)
		bp.pendingIDs[blockID] = id
		if id >= bp.nextPendingID {
			bp.nextPendingID = id + 1
		}
	}
	return nil
}

// SetVoteThreshold overrides the quorum fraction away from VoteThreshold.
// Intended for CHAMP_DEBUG_SKIP_CONSENSUS-style single-node development,
// where a threshold of 0 finalizes a block on its first vote.
func (bp *Blockpool) SetVoteThreshold(threshold float64) {
	bp.threshold = threshold
}

// Run processes commands until ctx is cancelled or the command channel is
// closed. It must run in its own goroutine; it is the only goroutine ever
// allowed to touch bp.votes, bp.decided, or bp.pending.
func (bp *Blockpool) Run(ctx context.Context) {
	blockpoolLog.Info("blockpool started listening to incoming commands")
	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-bp.cmds:
			if !ok {
				return
			}
			switch cmd := raw.(type) {
			case *proposalVoteCmd:
				bp.handleProposalVote(cmd)
			case *finalVoteCmd:
				bp.handleFinalVote(cmd)
			case *queueSizeCmd:
				cmd.reply <- len(bp.pending)
			default:
				blockpoolLog.Error(ErrUnknownCommand)
			}
		}
	}
}

// ProposalVote validates block, records vote against it, and if this node
// is a prime delegate rebroadcasts the proposal carrying vote. If the
// tally clears quorum, the block is finalized before this call returns.
func (bp *Blockpool) ProposalVote(ctx context.Context, block *Block, vote uint64) (bool, error) {
	reply := make(chan proposalVoteReply, 1)
	cmd := &proposalVoteCmd{block: block, vote: vote, reply: reply}
	if err := bp.submit(ctx, cmd); err != nil {
		return false, err
	}
	select {
	case r := <-reply:
		return r.reachedQuorum, r.err
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// FinalVote records vote against block.id; if quorum is reached and the
// block is not already decided, it is validated and appended to the
// store. Re-delivery of a final vote for an already-decided block is a
// no-op success.
func (bp *Blockpool) FinalVote(ctx context.Context, block *Block, vote uint64) error {
	reply := make(chan error, 1)
	cmd := &finalVoteCmd{block: block, vote: vote, reply: reply}
	if err := bp.submit(ctx, cmd); err != nil {
		return err
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// QueueSize returns the current pending-block count.
func (bp *Blockpool) QueueSize(ctx context.Context) (int, error) {
	reply := make(chan int, 1)
	cmd := &queueSizeCmd{reply: reply}
	if err := bp.submit(ctx, cmd); err != nil {
		return 0, err
	}
	select {
	case n := <-reply:
		return n, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (bp *Blockpool) submit(ctx context.Context, cmd any) error {
	select {
	case bp.cmds <- cmd:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (bp *Blockpool) handleProposalVote(cmd *proposalVoteCmd) {
	if err := bp.validator.Validate(cmd.block); err != nil {
		cmd.reply <- proposalVoteReply{err: err}
		return
	}
	blockID, err := cmd.block.ID()
	if err != nil {
		cmd.reply <- proposalVoteReply{err: err}
		return
	}

	bp.addVote(blockID, cmd.vote)
	bp.pending = append(bp.pending, cmd.block)
	bp.addPending(blockID, cmd.block)

	if bp.isPrime != nil && bp.isPrime() && bp.rebroadcast != nil {
		bp.rebroadcast(cmd.block, cmd.vote)
	}

	reachedQuorum := bp.quorum(blockID) >= bp.threshold
	if reachedQuorum {
		if err := bp.finalize(cmd.block, blockID); err != nil {
			cmd.reply <- proposalVoteReply{reachedQuorum: true, err: err}
			return
		}
	}
	cmd.reply <- proposalVoteReply{reachedQuorum: reachedQuorum}
}

func (bp *Blockpool) handleFinalVote(cmd *finalVoteCmd) {
	blockID, err := cmd.block.ID()
	if err != nil {
		cmd.reply <- err
		return
	}
	if _, already := bp.decided[blockID]; already {
		cmd.reply <- nil
		return
	}

	bp.addVote(blockID, cmd.vote)
	if bp.quorum(blockID) < bp.threshold {
		cmd.reply <- nil
		return
	}
	cmd.reply <- bp.finalize(cmd.block, blockID)
}

// finalize validates and commits block, marking blockID decided on
// success. A store-write failure after quorum is fatal to this block but
// not to the pool: the vote tally is dropped so the block can be
// reproposed from scratch, and Run keeps serving other commands.
func (bp *Blockpool) finalize(block *Block, blockID BlockID) error {
	if _, already := bp.decided[blockID]; already {
		return nil
	}
	if err := bp.validator.Validate(block); err != nil {
		delete(bp.votes, blockID)
		return err
	}
	if err := bp.store.AddBlock(block); err != nil {
		blockpoolLog.WithError(err).WithField("block_id", blockID).Error("store write failed after quorum")
		delete(bp.votes, blockID)
		return err
	}
	bp.decided[blockID] = struct{}{}
	delete(bp.votes, blockID)
	bp.removePending(blockID)
	return nil
}

func (bp *Blockpool) addVote(blockID BlockID, vote uint64) {
	bp.votes[blockID] = append(bp.votes[blockID], vote)
}

func (bp *Blockpool) quorum(blockID BlockID) float64 {
	var total uint64
	for _, v := range bp.votes[blockID] {
		total += v
	}
	return float64(total) / float64(TotalNetworkPower)
}

// addPending records block's acceptance into the pool's durable backlog
// under a fresh monotonic id, unless blockID is already tracked there. A
// store-write failure here is not fatal to the proposal: the persisted
// backlog is a crash-recovery aid, not a correctness requirement.
func (bp *Blockpool) addPending(blockID BlockID, block *Block) {
	if _, exists := bp.pendingIDs[blockID]; exists {
		return
	}
	id := bp.nextPendingID
	bp.nextPendingID++
	bp.pendingIDs[blockID] = id
	if err := bp.store.PutPending(id, block); err != nil {
		blockpoolLog.WithError(err).WithField("block_id", blockID).Warn("failed to persist pending block")
	}
}

func (bp *Blockpool) removePending(blockID BlockID) {
	for i, b := range bp.pending {
		if id, err := b.ID(); err == nil && id == blockID {
			bp.pending = append(bp.pending[:i], bp.pending[i+1:]...)
			break
		}
	}
	if id, exists := bp.pendingIDs[blockID]; exists {
		delete(bp.pendingIDs, blockID)
		if err := bp.store.DropPending(id); err != nil {
			blockpoolLog.WithError(err).WithField("block_id", blockID).Warn("failed to drop persisted pending block")
		}
	}
}
