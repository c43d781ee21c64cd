package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/solatis/fieldbridge/internal/core/catalog"
	"github.com/solatis/fieldbridge/internal/core/config"
	"github.com/solatis/fieldbridge/internal/core/db"
	"github.com/solatis/fieldbridge/internal/record"
	"github.com/solatis/fieldbridge/internal/rules"
)

var translateCmd = &cobra.Command{
	Use:   "translate",
	Short: "Translate records using a rule set",
	Long: `Translate reads source records from a JSON file and applies a rule set,
either from a local rules file or from the catalog by name. The run summary
is printed to stdout; translated records go to --output when given.`,
	RunE: runTranslate,
}

func init() {
	rootCmd.AddCommand(translateCmd)
	translateCmd.Flags().String("rules", "", "rules file (JSON array of rule specs)")
	translateCmd.Flags().String("rule-set", "", "catalog rule set name (requires --db-url or config)")
	translateCmd.Flags().String("records", "", "source records file (JSON array, each with a \"type\" member)")
	translateCmd.Flags().String("output", "", "write translated records to this file as JSON")
	translateCmd.Flags().Int("workers", 0, "parallel workers per rule (0 = config value)")
	translateCmd.Flags().Bool("fail-fast", false, "stop at the first failed rule")
	translateCmd.MarkFlagRequired("records")
}

func runTranslate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if workers, _ := cmd.Flags().GetInt("workers"); workers > 0 {
		cfg.Workers = workers
	}
	if cmd.Flags().Changed("fail-fast") {
		cfg.FailFast, _ = cmd.Flags().GetBool("fail-fast")
	}

	ruleSet, err := loadRules(cmd, cfg)
	if err != nil {
		return err
	}

	recordsFile, _ := cmd.Flags().GetString("records")
	data, err := os.ReadFile(recordsFile)
	if err != nil {
		return fmt.Errorf("failed to read records file: %w", err)
	}
	sources, err := record.UnmarshalJSONRecords(data)
	if err != nil {
		return fmt.Errorf("invalid records file: %w", err)
	}

	engine := rules.NewEngine(genericRegistry(ruleSet), nil, rules.Options{
		Workers:  cfg.Workers,
		FailFast: cfg.FailFast,
	})

	records := record.NewSet(sources)
	before := records.Len()

	result, err := engine.ApplyRulesToContext(ruleSet, records)
	if err != nil {
		return fmt.Errorf("translation failed: %w", err)
	}

	fmt.Print(result.Summary())

	if outputFile, _ := cmd.Flags().GetString("output"); outputFile != "" {
		produced := records.Snapshot()[before:]
		if err := writeRecords(outputFile, produced); err != nil {
			return err
		}
		log.Printf("Wrote %d translated records to %s", len(produced), outputFile)
	}

	if !result.Success() {
		return fmt.Errorf("%d of %d rules failed", result.FailedRules, result.TotalRules)
	}
	return nil
}

// loadRules resolves the rule set from --rules or the catalog, exactly one.
func loadRules(cmd *cobra.Command, cfg *config.Config) ([]rules.Rule, error) {
	rulesFile, _ := cmd.Flags().GetString("rules")
	ruleSetName, _ := cmd.Flags().GetString("rule-set")

	switch {
	case rulesFile != "" && ruleSetName != "":
		return nil, fmt.Errorf("--rules and --rule-set are mutually exclusive")
	case rulesFile != "":
		data, err := os.ReadFile(rulesFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read rules file: %w", err)
		}
		ruleSet, err := rules.FromJSON(data)
		if err != nil {
			return nil, fmt.Errorf("invalid rules file: %w", err)
		}
		return ruleSet, nil
	case ruleSetName != "":
		svc, cleanup, err := openCatalog(cfg)
		if err != nil {
			return nil, err
		}
		defer cleanup()
		return svc.LoadRuleSet(context.Background(), ruleSetName)
	default:
		return nil, fmt.Errorf("either --rules or --rule-set is required")
	}
}

// genericRegistry builds constructors for every type tag the rule set
// mentions. Source tags must resolve before a rule runs, so they register
// alongside targets. The CLI works on schemaless JSON records, so every tag
// constructs as a plain map-backed record. Programmatic embedders register
// typed constructors instead.
func genericRegistry(ruleSet []rules.Rule) rules.Registry {
	passthrough := func(typeTag string, fields map[string]any) (record.Record, error) {
		return record.New(typeTag, fields), nil
	}

	registry := make(rules.Registry)
	for _, r := range ruleSet {
		for _, tag := range r.SourceTypes() {
			registry[tag] = passthrough
		}
		for _, tag := range r.TargetTypes() {
			registry[tag] = passthrough
		}
	}
	return registry
}

func writeRecords(path string, produced []record.Record) error {
	out := make([]map[string]any, 0, len(produced))
	for _, rec := range produced {
		m, ok := rec.(record.MapRecord)
		if !ok {
			continue
		}
		entry := make(map[string]any, len(m.Fields)+1)
		for k, v := range m.Fields {
			entry[k] = v
		}
		entry["type"] = m.Tag
		out = append(out, entry)
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode records: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	return nil
}

// openCatalog connects to the rule catalog using --db-url or the config.
func openCatalog(cfg *config.Config) (*catalog.Service, func(), error) {
	connURL := dbURL
	if connURL == "" {
		connURL = cfg.DatabaseURL
	}
	if connURL == "" {
		return nil, nil, fmt.Errorf("--db-url or database_url config required")
	}

	database, err := db.Open(connURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}

	queries, err := db.LoadQueries(database)
	if err != nil {
		database.Close()
		return nil, nil, fmt.Errorf("failed to load queries: %w", err)
	}

	svc, err := catalog.NewService(database, queries)
	if err != nil {
		database.Close()
		return nil, nil, err
	}

	return svc, func() { database.Close() }, nil
}
