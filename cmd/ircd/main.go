package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	_ "github.com/joho/godotenv/autoload"

	"github.com/oliynykmax/irc-hive/internal/config"
	"github.com/oliynykmax/irc-hive/internal/server"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML, TOML or JSON config file")
	adminEnabled := flag.Bool("admin", false, "enable the admin HTTP endpoint")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] [port] [password]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Printf("config: %v", err)
		os.Exit(1)
	}
	if *adminEnabled {
		cfg.Admin.Enabled = true
	}

	// Positional arguments override the config file for the classic
	// "ircd <port> <password>" invocation.
	args := flag.Args()
	if len(args) > 2 {
		flag.Usage()
		os.Exit(1)
	}
	if len(args) > 0 {
		port, err := strconv.Atoi(args[0])
		if err != nil || port < 1 || port > 65535 {
			log.Printf("invalid port %q", args[0])
			os.Exit(1)
		}
		cfg.Server.Port = port
	}
	if len(args) > 1 {
		cfg.Server.Password = args[1]
	}

	srv := server.New(cfg)
	if err := srv.Start(); err != nil {
		log.Printf("failed to start server: %v", err)
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGQUIT, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutdown signal received, stopping server...")
	srv.Stop()
}
