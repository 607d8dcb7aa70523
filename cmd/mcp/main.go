package main

import (
	"fmt"
	"os"
	"time"

	"github.com/RRaffay/Finance-Data-Agent/internal/config"
	"github.com/RRaffay/Finance-Data-Agent/internal/mcp"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %s\n", err)
		os.Exit(1)
	}

	server := mcp.NewServer(cfg.ServerURL, cfg.APIKey, 10*time.Minute)
	if err := server.Run(os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "mcp server error: %s\n", err)
		os.Exit(1)
	}
}
