package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/redhat-et/script-archive/archive-service/internal/index"
	"github.com/redhat-et/script-archive/archive-service/internal/lifecycle"
	"github.com/redhat-et/script-archive/pkg/logger"
	"github.com/redhat-et/script-archive/pkg/storage"
)

var (
	seedIfEmpty bool
	seedFile    string
	seedAnalyze bool
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the ledger with sample scripts",
	Long: `Seed the ledger with scripts owned by the connected account.

Scripts are read from a YAML file given with --file, or the built-in samples
are used. It's typically run as an init container in Kubernetes.`,
	RunE: runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)
	seedCmd.Flags().BoolVar(&seedIfEmpty, "if-empty", false, "Only seed if the key index is empty")
	seedCmd.Flags().StringVarP(&seedFile, "file", "f", "", "YAML file with the scripts to seed")
	seedCmd.Flags().BoolVar(&seedAnalyze, "analyze", false, "Analyze every seeded script")
}

// seedDocument is the layout of a seed file.
type seedDocument struct {
	Scripts []lifecycle.CreateRequest `yaml:"scripts"`
}

func parseSeed(data []byte) ([]lifecycle.CreateRequest, error) {
	var doc seedDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}
	if len(doc.Scripts) == 0 {
		return nil, fmt.Errorf("seed file lists no scripts")
	}
	return doc.Scripts, nil
}

func loadSeed(path string) ([]lifecycle.CreateRequest, error) {
	if path == "" {
		return sampleScripts(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	return parseSeed(data)
}

// sampleScripts returns the default sample scripts
func sampleScripts() []lifecycle.CreateRequest {
	return []lifecycle.CreateRequest{
		{
			Title: "The Tragedy of the Salt Merchant",
			Era:   "Elizabethan",
			Content: `ACT I. SCENE I. A wharf at dawn.

ANSELM: The tide that brought my ships brings rumor too.
MARGERY: Then trust the ships and let the rumor drown.`,
		},
		{
			Title: "Chorus of the Olive Grove",
			Era:   "Ancient",
			Content: `PARODOS

CHORUS: Who plants for sons he will not live to see?
ELDER: A king who fears the gods more than his heirs.`,
		},
		{
			Title: "The Mummers of Saint Aldric",
			Era:   "Medieval",
			Content: `Enter FATHER CHRISTMAS and the DRAGON.

FATHER CHRISTMAS: Make room, make room, good people all.
DRAGON: Stand back, old man, the feast is mine.`,
		},
		{
			Title: "A Quarrel at the Assembly Rooms",
			Era:   "Restoration",
			Content: `SCENE: A card table. LADY FANCOURT, SIR TOBY WELLBRED.

LADY FANCOURT: You play as you court, sir, with borrowed money.
SIR TOBY: And lose as gracefully, madam.`,
		},
		{
			Title: "Static on Line Four",
			Era:   "Modern",
			Content: `A switchboard, 1962. NORA alone, headset on.

NORA: Hello? Hello. You've been calling every night.
VOICE: Then you've been answering every night.`,
		},
	}
}

// indexEmpty reports whether the key index lists no scripts.
func indexEmpty(ctx context.Context, store storage.BlobStore, log *logger.Logger) (bool, error) {
	ids, err := index.New(store, log).Load(ctx)
	if err != nil {
		return false, err
	}
	return len(ids) == 0, nil
}

// seedScripts registers reqs in order and optionally analyzes each one.
// It stops at the first failure and reports how many were created.
func seedScripts(ctx context.Context, m *lifecycle.Manager, reqs []lifecycle.CreateRequest, analyze bool, log *logger.Logger) (int, error) {
	for i, req := range reqs {
		s, err := m.Create(ctx, req)
		if err != nil {
			return i, fmt.Errorf("failed to seed %q: %w", req.Title, err)
		}
		log.Script(s.ID, "Seeded script", "title", s.Title, "era", s.Era)

		if analyze {
			if _, err := m.Analyze(ctx, s.ID); err != nil {
				return i + 1, fmt.Errorf("failed to analyze %q: %w", req.Title, err)
			}
		}
	}
	return len(reqs), nil
}

func runSeed(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	reqs, err := loadSeed(seedFile)
	if err != nil {
		return err
	}

	a, err := newCLIApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	log := a.log

	if seedIfEmpty {
		empty, err := indexEmpty(ctx, a.ledger, logger.New(logger.ComponentIndex))
		if err != nil {
			return fmt.Errorf("failed to check if ledger is empty: %w", err)
		}
		if !empty {
			log.Info("Ledger is not empty, skipping seed (--if-empty flag)")
			return nil
		}
	}

	log.Section("SEEDING SCRIPTS")
	log.Info("Seeding scripts", "count", len(reqs))

	n, err := seedScripts(ctx, a.manager, reqs, seedAnalyze, log)
	if err != nil {
		return err
	}
	log.Success("Seeding complete", "scripts", n)
	return nil
}
