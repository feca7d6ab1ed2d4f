// Package rpc implements the node's HTTP facade: an Account/Lattice
// service (balances, blocks, transactions, voting power, delegate lookup,
// block submission) and an Admin service (version, pool size, node name),
// per spec.md §6. It is an external collaborator of core: handlers
// translate requests into Store/VotingPower/Blockpool calls and responses
// back into JSON, with no domain logic of its own.
package rpc

import (
	"context"

	"champ/core"
)

// AccountService is the Account/Lattice RPC surface.
type AccountService interface {
	GetBalance(ctx context.Context, account core.AccountID) (uint64, error)
	GetBlockByID(ctx context.Context, id core.BlockID) (*core.Block, error)
	GetLatestBlock(ctx context.Context, account core.AccountID) (*core.Block, error)
	GetBlocks(ctx context.Context, sort core.BlockSort, limit, offset int, account *core.AccountID) ([]core.Block, error)
	GetTransactionByID(ctx context.Context, id core.TransactionID) (*core.Transaction, error)
	GetUnclaimedTransactions(ctx context.Context, account core.AccountID) ([]core.UnclaimedSend, error)
	GetVotingPower(ctx context.Context, account core.AccountID, active bool) (uint64, error)
	GetDelegate(ctx context.Context, account core.AccountID) (*core.AccountID, error)
	SubmitBlock(ctx context.Context, raw []byte) error
}

// AdminService is the Admin RPC surface.
type AdminService interface {
	GetVersion(ctx context.Context) string
	GetBlockPoolSize(ctx context.Context) (int, error)
	GetNodeName(ctx context.Context) string
	SetNodeName(ctx context.Context, name string) error
}

// accountService is the concrete binding of AccountService over a Store,
// VotingPower calculator and Blockpool. SubmitBlock casts its own vote of
// weight 1: the owning node always sees its own proposal, and the rest of
// the quorum accrues as peers relay their votes over internal/p2p.
type accountService struct {
	store *core.Store
	vp    *core.VotingPower
	pool  *core.Blockpool
}

// NewAccountService builds the default AccountService binding.
func NewAccountService(store *core.Store, vp *core.VotingPower, pool *core.Blockpool) AccountService {
	return &accountService{store: store, vp: vp, pool: pool}
}

func (a *accountService) GetBalance(ctx context.Context, account core.AccountID) (uint64, error) {
	blk, err := a.store.GetLatestBlock(account)
	if err != nil {
		return 0, err
	}
	return blk.Data.Balance, nil
}

func (a *accountService) GetBlockByID(ctx context.Context, id core.BlockID) (*core.Block, error) {
	return a.store.GetBlock(id)
}

func (a *accountService) GetLatestBlock(ctx context.Context, account core.AccountID) (*core.Block, error) {
	return a.store.GetLatestBlock(account)
}

func (a *accountService) GetBlocks(ctx context.Context, sort core.BlockSort, limit, offset int, account *core.AccountID) ([]core.Block, error) {
	return a.store.GetBlocks(sort, limit, offset, account)
}

func (a *accountService) GetTransactionByID(ctx context.Context, id core.TransactionID) (*core.Transaction, error) {
	return a.store.GetTransaction(id)
}

func (a *accountService) GetUnclaimedTransactions(ctx context.Context, account core.AccountID) ([]core.UnclaimedSend, error) {
	return a.store.GetUnclaimed(account)
}

func (a *accountService) GetVotingPower(ctx context.Context, account core.AccountID, active bool) (uint64, error) {
	if active {
		return a.vp.GetActivePower(account)
	}
	return a.vp.GetActualPower(account)
}

func (a *accountService) GetDelegate(ctx context.Context, account core.AccountID) (*core.AccountID, error) {
	return a.store.GetDelegate(account)
}

// ownVoteWeight is the weight a node casts for its own locally-submitted
// block proposal before relaying it for the rest of the network to vote.
const ownVoteWeight = 1

func (a *accountService) SubmitBlock(ctx context.Context, raw []byte) error {
	blk, err := core.DecodeBlock(raw)
	if err != nil {
		return err
	}
	_, err = a.pool.ProposalVote(ctx, &blk, ownVoteWeight)
	return err
}

// adminService is the concrete binding of AdminService. Node name is
// read-mostly state behind a writer lease, per SPEC_FULL.md §2.7's
// config/admin locking design.
type adminService struct {
	version string
	pool    *core.Blockpool
	name    nameStore
}

// NewAdminService builds the default AdminService binding. version is
// typically a build-time constant (e.g. set via -ldflags).
func NewAdminService(version string, pool *core.Blockpool, initialName string) AdminService {
	return &adminService{version: version, pool: pool, name: newNameStore(initialName)}
}

func (a *adminService) GetVersion(ctx context.Context) string {
	return a.version
}

func (a *adminService) GetBlockPoolSize(ctx context.Context) (int, error) {
	return a.pool.QueueSize(ctx)
}

func (a *adminService) GetNodeName(ctx context.Context) string {
	return a.name.get()
}

func (a *adminService) SetNodeName(ctx context.Context, name string) error {
	a.name.set(name)
	return nil
}
