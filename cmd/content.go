package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/darmiel/lastword/internal/content"
)

var (
	sealRecipients []string
	sealArmor      bool
	sealOut        string
)

var contentCmd = &cobra.Command{
	Use:   "content",
	Short: "Prepare the protected content",
}

var contentSealCmd = &cobra.Command{
	Use:   "seal [FILE]",
	Short: "Encrypt the protected content for the age content source",
	Long: `Encrypts FILE (or stdin when omitted or "-") to one or more age recipients.
Point the "age" content source at the output and its identity file to release it.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			plaintext []byte
			err       error
		)
		if len(args) == 0 || args[0] == "-" {
			plaintext, err = io.ReadAll(os.Stdin)
		} else {
			plaintext, err = os.ReadFile(args[0])
		}
		if err != nil {
			return fmt.Errorf("reading content: %w", err)
		}

		sealed, err := content.Seal(plaintext, sealRecipients, sealArmor)
		if err != nil {
			return err
		}

		if sealOut == "" || sealOut == "-" {
			_, err = os.Stdout.Write(sealed)
			return err
		}
		if err := os.WriteFile(sealOut, sealed, 0o600); err != nil {
			return fmt.Errorf("writing %s: %w", sealOut, err)
		}
		log.Info().Msgf("Sealed %d bytes for %d recipient(s)", len(plaintext), len(sealRecipients))
		logSuccess("wrote %s", bold(sealOut))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(contentCmd)
	contentCmd.AddCommand(contentSealCmd)

	flags := contentSealCmd.Flags()
	flags.StringSliceVarP(&sealRecipients, "recipient", "r", nil, "age recipient (age1...), repeatable")
	flags.BoolVarP(&sealArmor, "armor", "a", false, "Write PEM-armored output")
	flags.StringVarP(&sealOut, "out", "o", "", "Output file (default stdout)")
	_ = contentSealCmd.MarkFlagRequired("recipient")
}
