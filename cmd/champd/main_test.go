package main

import (
	"crypto/ed25519"
	"testing"

	log "github.com/sirupsen/logrus"

	"champ/core"
	"champ/pkg/config"
)

func newTestConfig(primaryWallet string, threshold float64) *config.Config {
	var cfg config.Config
	cfg.Consensus.PrimaryWallet = primaryWallet
	cfg.Consensus.PrimeDelegateThreshold = threshold
	cfg.Consensus.TotalNetworkPower = 100
	return &cfg
}

func TestPrimeDelegateCheckNoPrimaryWalletReturnsFalse(t *testing.T) {
	store, err := core.NewStore(core.Options{Path: ""})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	defer store.Close()

	isPrime := primeDelegateCheck(newTestConfig("", 0.6), core.NewVotingPower(store), log.StandardLogger())
	if isPrime() {
		t.Fatal("expected false with no primary_wallet configured")
	}
}

func TestPrimeDelegateCheckInvalidAddressReturnsFalse(t *testing.T) {
	store, err := core.NewStore(core.Options{Path: ""})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	defer store.Close()

	isPrime := primeDelegateCheck(newTestConfig("not-a-valid-address", 0.6), core.NewVotingPower(store), log.StandardLogger())
	if isPrime() {
		t.Fatal("expected false for an unparseable primary_wallet address")
	}
}

func TestPrimeDelegateCheckUnknownAccountReturnsFalse(t *testing.T) {
	store, err := core.NewStore(core.Options{Path: ""})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	defer store.Close()

	pub, _, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	account := core.AddressOf(pub)

	isPrime := primeDelegateCheck(newTestConfig(account.String(), 0.6), core.NewVotingPower(store), log.StandardLogger())
	if isPrime() {
		t.Fatal("expected false for an account with no chain history")
	}
}
