package main

import (
	"context"
	"fmt"
	"log"
	"math/rand/v2"
	"strings"

	"github.com/tatianab/seven-sects/internal/app"
	"github.com/tatianab/seven-sects/internal/config"
	"github.com/tatianab/seven-sects/internal/models"
	"github.com/tatianab/seven-sects/internal/referee"
	"go.uber.org/zap"
)

const maxDays = 40

func main() {
	ctx := context.Background()
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := config.NewLogger(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("Failed to build engine: %v", err)
	}
	defer a.Close()

	eng := a.Engine
	dice := rand.New(rand.NewPCG(uint64(a.Seed), uint64(a.Seed)>>1|1))
	fmt.Printf("--- Seven sects set out (seed %d) ---\n\n", a.Seed)

	for eng.State().Day <= maxDays {
		st := eng.State()
		if st.ActiveIndex == 0 {
			fmt.Printf("=== Day %d, %s ===\n", st.Day, st.Weather)
		}

		mag := float64(dice.IntN(10) + 1)
		r, err := referee.PlayTurn(ctx, eng, mag)
		if err != nil {
			logger.Error("turn failed", zap.Error(err))
			fmt.Printf("Error playing turn: %v\n", err)
			break
		}
		printReport(r, mag)

		if finishers := eng.State().Finishers(); len(finishers) > 0 {
			names := make([]string, len(finishers))
			for i, id := range finishers {
				names[i] = id.Name()
			}
			fmt.Printf("\nGame Ended: %s reached the goal!\n", strings.Join(names, "、"))
			break
		}
	}

	printStandings(eng.State())

	doc, err := eng.Save()
	if err != nil {
		log.Fatalf("Failed to save: %v", err)
	}
	if err := a.Slots.Save(ctx, "simulation", doc); err != nil {
		log.Fatalf("Failed to save slot: %v", err)
	}
	fmt.Println("\nFinal state saved to slot \"simulation\".")
}

func printReport(r referee.Report, mag float64) {
	if r.Skipped {
		fmt.Printf("%s sits out the turn.\n", r.Sect.Name())
		return
	}
	if r.Conflict != nil {
		fmt.Printf("%s rolls %.0f and meets %s at %s.\n", r.Sect.Name(), mag, r.Conflict.Occupant.Name(), r.Conflict.LocationName)
		fmt.Printf("  %s\n", r.Conflict.Narrative)
	} else {
		fmt.Printf("%s rolls %.0f.\n", r.Sect.Name(), mag)
	}
	if r.Scene != nil {
		fmt.Printf("  %s: %s\n", r.Scene.Payload.Title, r.Scene.Payload.Description)
		if r.Ruling.LogText != "" {
			fmt.Printf("  %s\n", r.Ruling.LogText)
		}
	}
}

func printStandings(s models.GameState) {
	fmt.Printf("\n--- Standings after day %d ---\n", s.Day)
	for _, id := range s.TurnQueue {
		sect := s.Sects[id]
		fmt.Printf("%-6s %5.1f  %-6s 武%d 智%d 财%d 望%d\n", id.Name(), sect.Progress, sect.CurrentLocationName,
			sect.Stats.Martial, sect.Stats.Strategy, sect.Stats.Wealth, sect.Stats.Prestige)
	}
}
