// Command champctl is the operator CLI for a champ node: issuing admin
// users and token-signing keys, and generating account wallets. It talks
// directly to the on-disk stores the node itself reads, rather than to a
// running node's RPC facade.
package main

import (
	"crypto/rand"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"champ/internal/auth"
	"champ/internal/wallet"
	"champ/pkg/config"
)

var logger = logrus.StandardLogger()

func main() {
	_ = godotenv.Load()
	if lvl, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		logger.SetLevel(lvl)
	}
	auth.SetAuthLogger(logger)
	wallet.SetWalletLogger(logger)

	root := &cobra.Command{Use: "champctl"}
	root.AddCommand(adminCmd(), walletCmd(), configCmd())
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func adminCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "admin", Short: "node administration"}
	cmd.AddCommand(createUserCmd(), generateKeyCmd())
	return cmd
}

func createUserCmd() *cobra.Command {
	var (
		username, password string
		usersFile          string
		privKeyPath        string
		pubKeyPath         string
	)
	cmd := &cobra.Command{
		Use:   "create-user",
		Short: "create an admin user with the given permissions",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, perms []string) error {
			if username == "" || password == "" {
				return fmt.Errorf("--username and --password are required")
			}
			if !auth.KeyPairExists(privKeyPath, pubKeyPath) {
				return auth.ErrNoKeyPair
			}
			store, err := auth.NewUserStore(usersFile)
			if err != nil {
				return err
			}
			if _, err := store.CreateUser(username, password, perms); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created user %s\n", username)
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password")
	cmd.Flags().StringVar(&usersFile, "users-file", "data/admin/users.json", "path to the user store file")
	cmd.Flags().StringVar(&privKeyPath, "priv", "data/admin/jwt_private.pem", "path to the token-signing private key")
	cmd.Flags().StringVar(&pubKeyPath, "pub", "data/admin/jwt_public.pem", "path to the token-signing public key")
	return cmd
}

func generateKeyCmd() *cobra.Command {
	var privKeyPath, pubKeyPath string
	cmd := &cobra.Command{
		Use:   "generate-key",
		Short: "generate the ECDSA keypair used to sign bearer tokens",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			key, err := auth.GenerateKeyPair(rand.Reader)
			if err != nil {
				return err
			}
			if err := auth.WriteKeyPairPEM(privKeyPath, pubKeyPath, key); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote keypair to %s and %s\n", privKeyPath, pubKeyPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&privKeyPath, "priv", "data/admin/jwt_private.pem", "output path for the private key")
	cmd.Flags().StringVar(&pubKeyPath, "pub", "data/admin/jwt_public.pem", "output path for the public key")
	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "config", Short: "inspect node configuration"}
	cmd.AddCommand(configShowCmd())
	return cmd
}

func configShowCmd() *cobra.Command {
	var env string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "print the resolved configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(env)
			if err != nil {
				return err
			}
			out, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("render config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
	cmd.Flags().StringVar(&env, "env", "", "environment overlay to merge (e.g. bootstrap)")
	return cmd
}

func walletCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "wallet", Short: "wallet management"}
	cmd.AddCommand(walletGenerateCmd())
	return cmd
}

func walletGenerateCmd() *cobra.Command {
	var (
		password string
		primary  bool
		mnemonic bool
		dir      string
		name     string
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "generate a new account wallet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if password == "" {
				return fmt.Errorf("--password is required")
			}
			if err := auth.CheckPasswordPolicy(password); err != nil {
				return err
			}

			m, err := wallet.NewManager(dir)
			if err != nil {
				return err
			}

			var w *wallet.Wallet
			if mnemonic {
				var phrase string
				w, phrase, err = m.GenerateWithMnemonic(password, name)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "mnemonic (WRITE IT DOWN): %s\n", phrase)
			} else {
				w, err = m.Generate(password, name)
				if err != nil {
					return err
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "generated wallet: %s\n", w.Account.String())
			if primary {
				fmt.Fprintf(cmd.OutOrStdout(), "set consensus.primary_wallet to %s in your config to use it as the primary wallet\n", w.Account.String())
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&password, "password", "p", "", "wallet encryption password")
	cmd.Flags().BoolVar(&primary, "primary", false, "mark this as the node's primary wallet")
	cmd.Flags().BoolVar(&mnemonic, "mnemonic", false, "derive the wallet from a fresh BIP-39 mnemonic and print it")
	cmd.Flags().StringVar(&dir, "dir", "data/wallets", "wallet directory")
	cmd.Flags().StringVar(&name, "name", "", "user name to record against the new wallet in the index")
	return cmd
}
