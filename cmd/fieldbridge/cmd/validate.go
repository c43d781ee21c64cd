package cmd

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/solatis/fieldbridge/internal/rules"
)

var validateCmd = &cobra.Command{
	Use:   "validate <rules-file>",
	Short: "Validate a rule set without running it",
	Long: `Validate compiles every rule in the file and resolves the dependency
order. Exits nonzero on the first validation or resolution error.`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read rules file: %w", err)
	}

	ruleSet, err := rules.FromJSON(data)
	if err != nil {
		return fmt.Errorf("invalid rule set: %w", err)
	}

	ordered, err := rules.ResolveOrder(ruleSet)
	if err != nil {
		return fmt.Errorf("invalid rule set: %w", err)
	}

	log.Printf("%d rules valid; execution order:", len(ordered))
	for i, r := range ordered {
		log.Printf("  %d. %s (v%d)", i+1, r.Name(), r.Version())
	}
	return nil
}
