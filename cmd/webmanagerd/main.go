package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/danmuck/webmanager/internal/observability"
	"github.com/danmuck/webmanager/internal/webmanager"
)

func main() {
	configPath := flag.String("config", "", "path to a TOML config file")
	validate := flag.Bool("validate", false, "validate the config file and exit")
	flag.Parse()

	observability.InitLogger("webmanagerd")

	cfg := webmanager.DefaultServiceConfig()
	if *configPath != "" {
		loaded, err := loadServiceConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "webmanagerd: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if *validate {
		fmt.Printf("webmanagerd: config ok (listen=%s websocket=%s)\n", cfg.ListenAddr, cfg.WebsocketPath)
		return
	}

	collab, err := webmanager.DefaultCollaborators()
	if err != nil {
		fmt.Fprintf(os.Stderr, "webmanagerd: %v\n", err)
		os.Exit(1)
	}
	svc, err := webmanager.NewServiceWithConfig(cfg, collab)
	if err != nil {
		fmt.Fprintf(os.Stderr, "webmanagerd: %v\n", err)
		os.Exit(1)
	}
	if err := svc.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "webmanagerd: %v\n", err)
		os.Exit(1)
	}
}
