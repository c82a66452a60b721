package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/omochice/turn-chat/internal/chat"
	"github.com/omochice/turn-chat/internal/client"
	"github.com/omochice/turn-chat/internal/config"
	"github.com/omochice/turn-chat/internal/console"
	"github.com/omochice/turn-chat/internal/logger"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "", "Path to a YAML config file")
	host := flag.String("host", "", "Server host")
	port := flag.Int("port", 0, "Server port")
	handle := flag.String("handle", "", "Handle shown before outgoing messages (asked for when empty)")
	transport := flag.String("transport", "", "Transport to use (tcp or ws)")
	logLevel := flag.String("log-level", "", "Log level (debug, info, warn, error)")
	logDev := flag.Bool("log-dev", false, "Human readable log output")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] <host> <port>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg := config.DefaultClient()
	if *configPath != "" {
		loaded, err := config.Load(*configPath, cfg)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = *loaded
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "host":
			cfg.Host = *host
		case "port":
			cfg.Port = *port
		case "handle":
			cfg.Handle = *handle
		case "transport":
			cfg.Transport = *transport
		case "log-level":
			cfg.Log.Level = *logLevel
		case "log-dev":
			cfg.Log.Development = *logDev
		}
	})

	switch flag.NArg() {
	case 0:
	case 2:
		p, err := strconv.Atoi(flag.Arg(1))
		if err != nil {
			log.Fatalf("Invalid port %q", flag.Arg(1))
		}
		cfg.Host = flag.Arg(0)
		cfg.Port = p
	default:
		flag.Usage()
		os.Exit(2)
	}
	if cfg.Port == 0 {
		flag.Usage()
		os.Exit(2)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	if err := logger.Init(logger.Options{Level: cfg.Log.Level, Development: cfg.Log.Development}); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	con := console.New(os.Stdin, os.Stdout)
	if cfg.Handle == "" {
		h, err := con.AskHandle(ctx)
		if err != nil {
			log.Fatalf("No handle chosen: %v", err)
		}
		cfg.Handle = h
	}

	fmt.Printf("client: connecting to %s\n", cfg.Address())
	c := client.New(cfg.Address(), cfg.Handle,
		client.WithTransport(cfg.Transport),
		client.WithDialTimeout(cfg.DialTimeout.Duration),
		client.WithMaxMessageSize(cfg.MaxMessageSize),
		client.WithLogger(logger.L()),
	)
	res, err := c.Run(ctx, con, con)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		if res.Reason == chat.EndFailed {
			logger.Error("failed to connect", "address", cfg.Address(), "error", err)
			stop()
			logger.Sync()
			os.Exit(1)
		}
		logger.Info("session ended", "reason", res.Reason.String(), "error", err)
	}
}
