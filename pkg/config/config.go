package config

// Package config provides a reusable loader for champ node configuration
// files and environment variables. It is versioned so that applications
// can depend on a stable API contract.
//
// Version: v0.2.0

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"champ/pkg/utils"
)

// Version is the semantic version of this configuration package.
const Version = "v0.2.0"

// Config represents the unified, immutable configuration snapshot for a
// champ node, loaded once at startup and handed to every component's
// constructor.
type Config struct {
	Network struct {
		ListenAddr     string   `mapstructure:"listen_addr" json:"listen_addr"`
		DiscoveryTag   string   `mapstructure:"discovery_tag" json:"discovery_tag"`
		BootstrapPeers []string `mapstructure:"bootstrap_peers" json:"bootstrap_peers"`
		// RPCAddr is the HTTP listen address for internal/rpc's facade, a
		// plain host:port rather than a libp2p multiaddr.
		RPCAddr string `mapstructure:"rpc_addr" json:"rpc_addr"`
	} `mapstructure:"network" json:"network"`

	Consensus struct {
		// TotalNetworkPower is the network-wide voting power total used
		// to evaluate quorum and to cap a single account's active power.
		// A real deployment aggregates this from live peer state; until
		// that's wired in it's a configurable constant.
		// TODO: replace with a live aggregate once the P2P adapter tracks
		// peer voting power.
		TotalNetworkPower uint64 `mapstructure:"total_network_power" json:"total_network_power"`
		// PrimaryWallet is the account address this node votes and proposes
		// blocks under. Set by hand after `champctl wallet generate --primary`,
		// or by CHAMP_GENERATE_PRIMARY_WALLET at bootstrap.
		PrimaryWallet string `mapstructure:"primary_wallet" json:"primary_wallet"`
		// PrimeDelegateThreshold is the actual-voting-power fraction of
		// TotalNetworkPower above which this node rebroadcasts its own
		// proposal votes as a prime delegate, per spec.md's blockpool design.
		PrimeDelegateThreshold float64 `mapstructure:"prime_delegate_threshold" json:"prime_delegate_threshold"`
	} `mapstructure:"consensus" json:"consensus"`

	Storage struct {
		DBPath string `mapstructure:"db_path" json:"db_path"`
	} `mapstructure:"storage" json:"storage"`

	Logging struct {
		Level string `mapstructure:"level" json:"level"`
		File  string `mapstructure:"file" json:"file"`
	} `mapstructure:"logging" json:"logging"`

	Wallet struct {
		Dir string `mapstructure:"dir" json:"dir"`
	} `mapstructure:"wallet" json:"wallet"`

	Admin struct {
		NodeName string `mapstructure:"node_name" json:"node_name"`
		Version  string `mapstructure:"version" json:"version"`
	} `mapstructure:"admin" json:"admin"`

	// Internal holds the CHAMP_DEBUG_*/CHAMP_GENERATE_* bootstrap knobs from
	// spec.md §6, none of which belong in a checked-in config file.
	Internal struct {
		DebugSkipConsensus       bool
		DebugSkipBlockValidation bool
		DebugCreateSuperadmin    string
		GenerateJWTKeys          bool
		GeneratePrimaryWallet    bool
		PrimaryWalletPassword    string
	} `mapstructure:"-" json:"-" yaml:"-"`
}

// AppConfig holds the configuration loaded via Load or LoadFromEnv.
var AppConfig Config

// defaultTotalNetworkPower is the fallback when neither a config file nor
// an environment override sets consensus.total_network_power.
const defaultTotalNetworkPower = 100_000_000

// defaultRPCAddr is the fallback HTTP listen address for the RPC facade.
const defaultRPCAddr = ":8080"

// defaultPrimeDelegateThreshold mirrors core.VoteThreshold; kept as an
// independent constant since pkg/config does not import core.
const defaultPrimeDelegateThreshold = 0.60

// Load reads configuration files and merges any environment specific
// overrides. The resulting configuration is stored in AppConfig and
// returned.
//
// The function uses the provided environment name to merge additional
// config files. If env is empty, only the default configuration is
// loaded.
func Load(env string) (*Config, error) {
	viper.SetConfigName("default")
	viper.AddConfigPath("cmd/config")
	viper.AddConfigPath("config")
	viper.SetConfigType("yaml")
	viper.SetDefault("consensus.total_network_power", defaultTotalNetworkPower)
	viper.SetDefault("network.rpc_addr", defaultRPCAddr)
	viper.SetDefault("consensus.prime_delegate_threshold", defaultPrimeDelegateThreshold)
	if err := viper.ReadInConfig(); err != nil {
		return nil, utils.Wrap(err, "load config")
	}

	if env != "" {
		viper.SetConfigName(env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, utils.Wrap(err, fmt.Sprintf("merge %s config", env))
		}
	}

	viper.AutomaticEnv() // env vars named after the upper-cased keys, no prefix; CHAMP_* knobs are read by applyEnvKnobs

	if err := viper.Unmarshal(&AppConfig); err != nil {
		return nil, utils.Wrap(err, "unmarshal config")
	}
	applyEnvKnobs(&AppConfig)
	return &AppConfig, nil
}

// LoadFromEnv loads configuration using the CHAMP_ENV environment variable.
func LoadFromEnv() (*Config, error) {
	return Load(utils.EnvOrDefault("CHAMP_ENV", ""))
}

// applyEnvKnobs layers spec.md §6's environment knobs over whatever the
// config file set, since these are meant to override it at deploy time
// rather than merely seed a default.
func applyEnvKnobs(c *Config) {
	if peers := utils.EnvOrDefault("CHAMP_INITIAL_PEERS", ""); peers != "" {
		var list []string
		for _, p := range strings.Split(peers, ",") {
			if p = strings.TrimSpace(p); p != "" {
				list = append(list, p)
			}
		}
		c.Network.BootstrapPeers = list
	}
	c.Consensus.TotalNetworkPower = utils.EnvOrDefaultUint64("CHAMP_TOTAL_NETWORK_POWER", c.Consensus.TotalNetworkPower)
	if c.Consensus.TotalNetworkPower == 0 {
		c.Consensus.TotalNetworkPower = defaultTotalNetworkPower
	}

	c.Internal.DebugSkipConsensus = utils.EnvOrDefault("CHAMP_DEBUG_SKIP_CONSENSUS", "") != ""
	c.Internal.DebugSkipBlockValidation = utils.EnvOrDefault("CHAMP_DEBUG_SKIP_BLOCK_VALIDATION", "") != ""
	c.Internal.DebugCreateSuperadmin = utils.EnvOrDefault("CHAMP_DEBUG_CREATE_SUPERADMIN", "")
	c.Internal.GenerateJWTKeys = utils.EnvOrDefault("CHAMP_GENERATE_JWT_KEYS", "") != ""
	c.Internal.GeneratePrimaryWallet = utils.EnvOrDefault("CHAMP_GENERATE_PRIMARY_WALLET", "") != ""
	c.Internal.PrimaryWalletPassword = utils.EnvOrDefault("CHAMP_PRIMARY_WALLET_PASSWORD", "")
}
