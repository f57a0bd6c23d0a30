package commands

import (
	"context"
	"fmt"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/appshell/engine/internal/index"
	"github.com/appshell/engine/internal/orchestrator"
	"github.com/appshell/engine/pkg/config"
	"github.com/appshell/engine/pkg/logger"
	"github.com/appshell/engine/pkg/persistence"
	"github.com/appshell/engine/pkg/scheduler"
)

var (
	simModules int
	simSteps   int
	simSeed    int64
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Replay a synthetic navigation session against an in-memory engine",
	RunE:  runSimulate,
}

func init() {
	simulateCmd.Flags().IntVar(&simModules, "modules", 6, "number of distinct modules")
	simulateCmd.Flags().IntVar(&simSteps, "steps", 40, "navigation steps to replay")
	simulateCmd.Flags().Int64Var(&simSeed, "seed", 1, "random seed")
}

var simModuleNames = []string{
	"notes", "tasks", "calendar", "journal", "media", "contacts",
	"mail", "files", "photos", "settings",
}

func runSimulate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger.Setup("warn", "text")

	if simModules < 2 {
		simModules = 2
	}
	if simModules > len(simModuleNames) {
		simModules = len(simModuleNames)
	}
	modules := simModuleNames[:simModules]
	rng := rand.New(rand.NewSource(simSeed))

	loader := &printLoader{}
	engine := orchestrator.New(
		cfg,
		persistence.NewMemory(),
		fixedRegistry{},
		loader,
		func(moduleID string) {
			fmt.Printf("  evicted: %s\n", moduleID)
		},
		scheduler.NewReal(),
		nil,
	)
	ctx := context.Background()
	if err := engine.Start(ctx); err != nil {
		return err
	}
	defer engine.Stop()

	seedContent(engine, modules, rng)
	fmt.Printf("indexed %d items across %d modules\n\n", engine.IndexStats().TotalItems, len(modules))

	current := modules[0]
	for step := 0; step < simSteps; step++ {
		// Weighted walk: mostly move to a neighbor so patterns emerge.
		next := modules[(indexOf(modules, current)+1)%len(modules)]
		if rng.Float64() < 0.3 {
			next = modules[rng.Intn(len(modules))]
		}
		if next == current {
			continue
		}
		engine.ModuleEntered(ctx, next, 10+rng.Float64()*20)
		current = next
	}
	// Let pending prefetch tasks fire.
	time.Sleep(cfg.Prefetch.PrefetchDelay + 100*time.Millisecond)

	fmt.Printf("session: %d steps, current module %q\n\n", simSteps, current)
	fmt.Println("predictions:")
	for _, p := range engine.Predictions(current) {
		fmt.Printf("  %-10s p=%.2f (%s)\n", p.ModuleID, p.Probability, p.Reason)
	}

	usage := engine.MemoryUsage()
	fmt.Printf("\nmemory: %.1f MB (%.0f%% of hard limit, level %s)\n",
		usage.TotalMB, usage.PercentHard, usage.Level)
	result := engine.Cleanup()
	fmt.Printf("cleanup: evicted %d modules, freed %.1f MB, now %.1f MB\n",
		len(result.Evicted), result.FreedMB, result.UsageAfterMB)

	query := "meeting"
	fmt.Printf("\nsearch %q:\n", query)
	for _, r := range engine.Search(query, index.SearchOptions{MaxResults: 5}) {
		fmt.Printf("  %.1f  [%s] %s\n", r.Score, r.Item.ModuleType, r.Item.Title)
	}
	fmt.Printf("\nprefetches issued: %d\n", loader.count.Load())
	return nil
}

func seedContent(engine *orchestrator.Orchestrator, modules []string, rng *rand.Rand) {
	titles := []string{
		"Meeting Notes", "Weekly Review", "Project Plan", "Shopping List",
		"Standup Summary", "Design Sketches", "Travel Itinerary", "Reading List",
	}
	bodies := []string{
		"project discussion and follow ups",
		"meeting agenda with action items",
		"ideas collected during the week",
		"draft outline for the quarterly review",
	}
	for _, moduleType := range modules {
		for n := 0; n < 4; n++ {
			engine.AddItem(index.Item{
				ID:             uuid.NewString(),
				ModuleType:     moduleType,
				Title:          titles[rng.Intn(len(titles))],
				SearchableText: bodies[rng.Intn(len(bodies))],
				Timestamp:      time.Now().UnixMilli(),
			})
		}
	}
}

func indexOf(items []string, target string) int {
	for i, item := range items {
		if item == target {
			return i
		}
	}
	return 0
}

// printLoader counts prefetches; callbacks arrive on timer goroutines.
type printLoader struct {
	count atomic.Int64
}

func (l *printLoader) Preload(_ context.Context, moduleID string) {
	l.count.Add(1)
}
