package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/brentmartinmiller/healthcare-etl-pipeline/pkg/phi"
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a PHI encryption key",
	Long:  `Prints a fresh base64 AES-256 key suitable for PHI_ENCRYPTION_KEY.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := phi.GenerateKey()
		if err != nil {
			return err
		}
		fmt.Println(key)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(keygenCmd)
}
