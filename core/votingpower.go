package core

// VotingPower scores an account's influence from shaped functions over its
// chain history: how much it holds, how it moves funds, how often it
// posts blocks, and how long it has been active. Delegation lets an
// account borrow other accounts' power, capped at a fraction of the
// network total.

import (
	"math"
	"time"
)

const (
	normalizeBalance  = 1.0
	normalizeCashflow = 1.0
	inactiveTaxCut    = 5.0
	txCurveMax        = 15
	plateauSize       = 350.0

	week        = 7 * 24 * time.Hour
	lookback    = 30 * 24 * time.Hour
	maxLookback = 60 * 24 * time.Hour

	blockWeight        = 1.2
	balanceWeight      = 0.75
	cashflowWeight     = 1.0
	ageWeight          = 1.0
	inactiveTaxWeight  = 1.0
	maxNetworkPowerPct = 0.3
)

// TotalNetworkPower is the network-wide voting power total used to cap a
// single account's active power. A real deployment aggregates this from
// live peer state; until that's wired in it's a configurable constant.
// TODO: replace with a live aggregate once the P2P adapter tracks peer
// voting power.
var TotalNetworkPower uint64 = 100_000_000

func balanceGraph(balance uint64) float64 {
	return float64(balance) / normalizeBalance
}

func cashflowGraph(newBalance, oldBalance uint64) float64 {
	cashflow := int64(newBalance) - int64(oldBalance)
	if cashflow == 0 && newBalance > 0 {
		return -(float64(newBalance) / normalizeBalance) / inactiveTaxCut
	}
	return -float64(cashflow) / normalizeCashflow
}

func blockGraph(height uint64, newTS, oldTS time.Time) float64 {
	dt := newTS.Sub(oldTS)
	if dt < week {
		dt = week
	}
	blocksPerWeek := (dt.Seconds() / float64(height)) / week.Seconds()
	x := blocksPerWeek/(plateauSize/2.0) - 1.0
	return 10.0 * (1.0/math.Pow(x, 2*txCurveMax) + 1.0)
}

func ageGraph(age time.Duration) float64 {
	w := math.Floor(age.Seconds() / week.Seconds())
	return math.Log10(w+1) + math.Sqrt(0.1*w+3) - 4
}

func inactiveTaxGraph(newBalance, oldBalance uint64, net float64) float64 {
	if newBalance == oldBalance && newBalance > 0 {
		return -(float64(newBalance) / normalizeBalance) / inactiveTaxCut
	}
	return 0
}

// VotingPower computes actual and active voting power from a Store.
type VotingPower struct {
	store *Store
}

// NewVotingPower constructs a VotingPower reading through store.
func NewVotingPower(store *Store) *VotingPower {
	return &VotingPower{store: store}
}

// GetActualPower computes an account's power from its own chain alone, with
// no delegation folded in.
func (vp *VotingPower) GetActualPower(account AccountID) (uint64, error) {
	latest, err := vp.store.GetLatestBlock(account)
	if err != nil {
		return 0, err
	}
	first, err := vp.store.GetBlockAt(account, 0)
	if err != nil {
		return 0, err
	}
	if first == nil {
		return 0, ErrNoLastBlock
	}

	old, err := vp.store.GetLatestBlockBefore(account,
		latest.Header.Timestamp.Add(-lookback),
		latest.Header.Timestamp.Add(-maxLookback))
	if err != nil {
		return 0, err
	}
	if old == nil {
		old = first
	}

	newBalance := latest.Data.Balance
	oldBalance := old.Data.Balance

	bresult := balanceGraph(newBalance)
	cresult := cashflowGraph(newBalance, oldBalance)
	bbresult := blockGraph(latest.Data.Height, latest.Header.Timestamp, old.Header.Timestamp)
	aresult := ageGraph(latest.Header.Timestamp.Sub(first.Header.Timestamp))

	net := blockWeight*bbresult + balanceWeight*bresult + ageWeight*aresult + cashflowWeight*cresult
	iresult := inactiveTaxGraph(newBalance, oldBalance, net)
	raw := net + inactiveTaxWeight*iresult

	if raw < 0 {
		return 0, nil
	}
	return uint64(raw), nil
}

// getDelegatedPower sums the actual power of every account currently
// delegating to account.
func (vp *VotingPower) getDelegatedPower(account AccountID) (uint64, error) {
	delegators, err := vp.store.GetDelegators(account)
	if err != nil {
		return 0, err
	}
	var total uint64
	for _, d := range delegators {
		p, err := vp.GetActualPower(d)
		if err != nil {
			if err == ErrNoLastBlock {
				continue
			}
			return 0, err
		}
		total += p
	}
	return total, nil
}

// GetActivePower is actual power plus delegated power, capped at
// maxNetworkPowerPct of TotalNetworkPower.
func (vp *VotingPower) GetActivePower(account AccountID) (uint64, error) {
	actual, err := vp.GetActualPower(account)
	if err != nil {
		return 0, err
	}
	delegated, err := vp.getDelegatedPower(account)
	if err != nil {
		return 0, err
	}
	total := actual + delegated
	cap := uint64(float64(TotalNetworkPower) * maxNetworkPowerPct)
	if total > cap {
		return cap, nil
	}
	return total, nil
}
