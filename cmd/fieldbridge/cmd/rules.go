package cmd

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/solatis/fieldbridge/internal/core/catalog"
	"github.com/solatis/fieldbridge/internal/core/config"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Manage catalog rule sets",
}

var rulesImportCmd = &cobra.Command{
	Use:   "import <name> <rules-file>",
	Short: "Validate and store a rule set in the catalog",
	Args:  cobra.ExactArgs(2),
	RunE:  runRulesImport,
}

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored rule sets",
	RunE:  runRulesList,
}

var rulesDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a stored rule set",
	Args:  cobra.ExactArgs(1),
	RunE:  runRulesDelete,
}

func init() {
	rootCmd.AddCommand(rulesCmd)
	rulesCmd.AddCommand(rulesImportCmd)
	rulesCmd.AddCommand(rulesListCmd)
	rulesCmd.AddCommand(rulesDeleteCmd)
}

func catalogService() (*catalog.Service, func(), error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	return openCatalog(cfg)
}

func runRulesImport(cmd *cobra.Command, args []string) error {
	name, rulesFile := args[0], args[1]

	data, err := os.ReadFile(rulesFile)
	if err != nil {
		return fmt.Errorf("failed to read rules file: %w", err)
	}

	svc, cleanup, err := catalogService()
	if err != nil {
		return err
	}
	defer cleanup()

	info, err := svc.ImportRuleSet(context.Background(), name, data)
	if err != nil {
		return err
	}

	log.Printf("Imported rule set %s (%d rules, revision %.12s)", info.Name, info.RuleCount, info.Revision)
	return nil
}

func runRulesList(cmd *cobra.Command, args []string) error {
	svc, cleanup, err := catalogService()
	if err != nil {
		return err
	}
	defer cleanup()

	infos, err := svc.ListRuleSets(context.Background())
	if err != nil {
		return err
	}

	if len(infos) == 0 {
		log.Println("No rule sets in catalog")
		return nil
	}
	for _, info := range infos {
		log.Printf("%-30s %4d rules  rev %.12s  %s", info.Name, info.RuleCount, info.Revision, info.CreatedAt)
	}
	return nil
}

func runRulesDelete(cmd *cobra.Command, args []string) error {
	svc, cleanup, err := catalogService()
	if err != nil {
		return err
	}
	defer cleanup()

	if err := svc.DeleteRuleSet(context.Background(), args[0]); err != nil {
		return err
	}
	log.Printf("Deleted rule set %s", args[0])
	return nil
}
