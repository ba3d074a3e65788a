// Command demo is a terminal monitor that starts an analysis session and
// follows it until the positions are in.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"catalystbot/config"
	"catalystbot/demo/tui"
	"catalystbot/types"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	apiURL := flag.String("url", "http://localhost:"+config.GetEnvOrDefault("PORT", "8080"), "CatalystBot API URL")
	sources := flag.String("sources", "yahoo,cnbc", "Comma-separated sources for new sessions")
	model := flag.String("model", "", "Model id (server default when empty)")
	mode := flag.String("mode", string(types.ModeHeadlines), "headlines or full")
	maxPositions := flag.Int("max-positions", config.DefaultMaxPositions, "Positions to surface")
	minConfidence := flag.Float64("min-confidence", config.DefaultMinConfidence, "Minimum position confidence")
	attach := flag.String("session", "", "Attach to an existing session id")
	flag.Parse()

	cfg := types.SessionConfig{
		Sources:       strings.Split(*sources, ","),
		Model:         *model,
		Mode:          types.AnalysisMode(*mode),
		MaxPositions:  *maxPositions,
		MinConfidence: *minConfidence,
	}

	program := tea.NewProgram(tui.NewModel(*apiURL, cfg, *attach))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		program.Quit()
	}()

	if _, err := program.Run(); err != nil {
		fmt.Printf("Error running program: %v\n", err)
		os.Exit(1)
	}
}
