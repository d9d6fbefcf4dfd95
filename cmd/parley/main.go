package main

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"

	"github.com/parley-chat/parley/internal/app"
	"github.com/parley-chat/parley/internal/config"
	"github.com/parley-chat/parley/internal/paths"
	"go.uber.org/fx"
)

func main() {
	profileFlag := flag.String("profile", "", "profile name (overrides config default)")
	nameFlag := flag.String("name", "", "display name for a new profile")
	offlineFlag := flag.Bool("offline", false, "start with the simulated link down")
	flag.Parse()

	profileName := config.Resolve(*profileFlag, paths.ConfigPath())
	if err := paths.ValidateProfileName(profileName); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load(paths.ConfigPath())
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "warning: %v (using defaults)\n", err)
	}

	fxApp := fx.New(
		app.Module(app.Params{
			ProfileName: profileName,
			DisplayName: *nameFlag,
			StartOnline: !*offlineFlag,
		}, cfg),
		fx.NopLogger,
	)

	fxApp.Run()
}
