package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tomasvold/Drum-Cheat-Sheet/internal/config"
)

func init() {
	rootCmd.AddCommand(modelsCmd)
}

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List models that can generate charts",
	Long: `Ask the provider which models support content generation. Any
listed name works as the "model" config setting or DRUMCHART_MODEL.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return listModels()
	},
}

func listModels() error {
	settings, err := config.Load(configPath)
	if err != nil {
		return err
	}

	provider, err := buildProvider(settings, false)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Println("Checking available models...")
	models, err := provider.ListModels(ctx)
	if err != nil {
		return err
	}

	for _, m := range models {
		if m.DisplayName != "" {
			fmt.Printf("- %s (%s)\n", m.Name, m.DisplayName)
		} else {
			fmt.Printf("- %s\n", m.Name)
		}
	}
	return nil
}
