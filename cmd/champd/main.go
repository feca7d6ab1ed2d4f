// Command champd is the champ node daemon: it opens the account-chain
// store, wires the validator and blockpool, joins the libp2p network, and
// serves the Account/Admin RPC facade over HTTP.
package main

import (
	"context"
	"crypto/rand"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"champ/core"
	"champ/internal/auth"
	"champ/internal/p2p"
	"champ/internal/rpc"
	"champ/internal/wallet"
	"champ/pkg/config"
)

func main() {
	_ = godotenv.Load()

	logger := log.StandardLogger()
	if lvl, err := log.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		logger.SetLevel(lvl)
	}
	core.SetStoreLogger(logger)
	core.SetBlockpoolLogger(logger)
	p2p.SetLogger(logger)
	auth.SetAuthLogger(logger)
	wallet.SetWalletLogger(logger)
	rpc.SetRPCLogger(logger)

	if err := run(logger); err != nil {
		logger.WithError(err).Fatal("champd exited")
	}
}

func run(logger *log.Logger) error {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	core.TotalNetworkPower = cfg.Consensus.TotalNetworkPower

	store, err := core.NewStore(core.Options{Path: cfg.Storage.DBPath})
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	validator := core.NewValidator(store)
	validator.SetSkipChecks(cfg.Internal.DebugSkipBlockValidation)

	vp := core.NewVotingPower(store)
	isPrime := primeDelegateCheck(cfg, vp, logger)

	// NewNode needs an already-constructed Blockpool, but the Blockpool's
	// rebroadcast hook needs to call into the Node. node is assigned after
	// NewBlockpool returns; the closure captures the variable, not its
	// zero value, so it safely calls through once p2p is up.
	var node *p2p.Node
	rebroadcast := func(block *core.Block, vote uint64) {
		if node != nil {
			if err := node.BroadcastProposal(block, vote); err != nil {
				logger.WithError(err).Warn("broadcast proposal failed")
			}
		}
	}
	pool := core.NewBlockpool(store, validator, isPrime, rebroadcast)
	if cfg.Internal.DebugSkipConsensus {
		pool.SetVoteThreshold(0)
	}
	if err := pool.Recover(); err != nil {
		return fmt.Errorf("recover pending blocks: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go pool.Run(ctx)

	node, err = p2p.NewNode(p2p.Config{
		ListenAddr:     cfg.Network.ListenAddr,
		BootstrapPeers: cfg.Network.BootstrapPeers,
		DiscoveryTag:   cfg.Network.DiscoveryTag,
	}, pool)
	if err != nil {
		return fmt.Errorf("start p2p node: %w", err)
	}
	defer node.Close()

	if err := bootstrapDebugKnobs(cfg, logger); err != nil {
		return fmt.Errorf("debug bootstrap: %w", err)
	}

	accountSvc := rpc.NewAccountService(store, vp, pool)
	adminSvc := rpc.NewAdminService(cfg.Admin.Version, pool, cfg.Admin.NodeName)

	var verifier auth.Verifier
	if pub, err := auth.ReadPublicKeyPEM(jwtPublicKeyPath); err == nil {
		verifier = auth.NewECDSAVerifier(pub, auth.DecodeJSONClaims)
	} else if err == auth.ErrNoKeyPair {
		logger.Warn("no jwt keypair on disk, rpc facade running unauthenticated")
	} else {
		return fmt.Errorf("load jwt public key: %w", err)
	}

	server := rpc.NewServer(accountSvc, adminSvc, verifier)

	httpSrv := &http.Server{Addr: cfg.Network.RPCAddr, Handler: server}
	go func() {
		logger.WithField("addr", httpSrv.Addr).Info("rpc facade listening")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("rpc facade stopped")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logger.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer shutdownCancel()
	return httpSrv.Shutdown(shutdownCtx)
}

const shutdownGrace = 10 * time.Second

// primeDelegateCheck builds the Blockpool's isPrime predicate: this node
// rebroadcasts its own proposal votes once its configured primary_wallet's
// actual voting power clears consensus.prime_delegate_threshold. A node
// with no primary_wallet configured never acts as a prime delegate.
func primeDelegateCheck(cfg *config.Config, vp *core.VotingPower, logger *log.Logger) func() bool {
	if cfg.Consensus.PrimaryWallet == "" {
		return func() bool { return false }
	}
	account, err := core.ParseAddress(cfg.Consensus.PrimaryWallet)
	if err != nil {
		logger.WithError(err).Warn("invalid consensus.primary_wallet, disabling prime delegate status")
		return func() bool { return false }
	}
	return func() bool {
		power, err := vp.GetActualPower(account)
		if err != nil {
			return false
		}
		return float64(power) >= cfg.Consensus.PrimeDelegateThreshold*float64(core.TotalNetworkPower)
	}
}

const (
	jwtPrivateKeyPath = "data/admin/jwt_private.pem"
	jwtPublicKeyPath  = "data/admin/jwt_public.pem"
	usersFilePath     = "data/admin/users.json"
)

// bootstrapDebugKnobs applies the CHAMP_DEBUG_*/CHAMP_GENERATE_* env knobs
// config.LoadFromEnv already parsed, the Go equivalent of the original
// node's process_env bootstrap pass.
func bootstrapDebugKnobs(cfg *config.Config, logger *log.Logger) error {
	if cfg.Internal.GenerateJWTKeys && !auth.KeyPairExists(jwtPrivateKeyPath, jwtPublicKeyPath) {
		key, err := auth.GenerateKeyPair(rand.Reader)
		if err != nil {
			return err
		}
		if err := auth.WriteKeyPairPEM(jwtPrivateKeyPath, jwtPublicKeyPath, key); err != nil {
			return err
		}
		logger.Info("generated jwt signing keypair")
	}

	if cfg.Internal.DebugCreateSuperadmin != "" {
		username, password, ok := strings.Cut(cfg.Internal.DebugCreateSuperadmin, "::")
		if !ok {
			return fmt.Errorf("CHAMP_DEBUG_CREATE_SUPERADMIN must be username::password")
		}
		store, err := auth.NewUserStore(usersFilePath)
		if err != nil {
			return err
		}
		if _, err := store.CreateUser(username, password, []string{"*"}); err != nil && err != auth.ErrUserExists {
			return err
		}
		logger.WithField("username", username).Info("ensured debug superadmin user")
	}

	if cfg.Internal.GeneratePrimaryWallet {
		if cfg.Internal.PrimaryWalletPassword == "" {
			return fmt.Errorf("CHAMP_GENERATE_PRIMARY_WALLET requires CHAMP_PRIMARY_WALLET_PASSWORD")
		}
		m, err := wallet.NewManager(cfg.Wallet.Dir)
		if err != nil {
			return err
		}
		if len(m.Accounts()) == 0 {
			w, err := m.Generate(cfg.Internal.PrimaryWalletPassword, "primary")
			if err != nil {
				return err
			}
			logger.WithField("account", w.Account.String()).Info("generated primary wallet")
		}
	}

	return nil
}

