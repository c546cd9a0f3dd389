package cmd

import (
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/crypto"
	sol "github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"

	"github.com/michaelpento.lv/arbbot/config"
)

var keygenChain string

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a signing key for execution or Flashbots authentication",
	RunE: func(cmd *cobra.Command, args []string) error {
		return generateKey(cmd.OutOrStdout(), keygenChain)
	},
}

func init() {
	rootCmd.AddCommand(keygenCmd)
	keygenCmd.Flags().StringVar(&keygenChain, "chain", config.ChainEVM, "key type: evm or solana")
}

func generateKey(w io.Writer, chain string) error {
	switch chain {
	case config.ChainEVM:
		privateKey, err := crypto.GenerateKey()
		if err != nil {
			return fmt.Errorf("failed to generate key: %w", err)
		}
		fmt.Fprintf(w, "Private Key: 0x%x\n", crypto.FromECDSA(privateKey))
		fmt.Fprintf(w, "Public Address: %s\n", crypto.PubkeyToAddress(privateKey.PublicKey).Hex())
	case config.ChainSolana:
		privateKey, err := sol.NewRandomPrivateKey()
		if err != nil {
			return fmt.Errorf("failed to generate key: %w", err)
		}
		fmt.Fprintf(w, "Private Key: %s\n", privateKey)
		fmt.Fprintf(w, "Public Key: %s\n", privateKey.PublicKey())
	default:
		return fmt.Errorf("unknown chain %q", chain)
	}
	return nil
}
