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
	"github.com/omochice/turn-chat/internal/config"
	"github.com/omochice/turn-chat/internal/console"
	"github.com/omochice/turn-chat/internal/logger"
	"github.com/omochice/turn-chat/internal/server"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "", "Path to a YAML config file")
	host := flag.String("host", "", "Interface to listen on (empty for all)")
	port := flag.Int("port", 0, "Port to listen on")
	handle := flag.String("handle", "", "Handle shown before outgoing messages")
	websocket := flag.Bool("websocket", true, "Also accept WebSocket clients on the same port")
	concurrent := flag.Int("concurrent", 0, "Maximum parallel sessions (0 serves one peer at a time)")
	logLevel := flag.String("log-level", "", "Log level (debug, info, warn, error)")
	logDev := flag.Bool("log-dev", false, "Human readable log output")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] <port>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg := config.DefaultServer()
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
		case "websocket":
			cfg.WebSocket = *websocket
		case "concurrent":
			cfg.Concurrent = *concurrent
		case "log-level":
			cfg.Log.Level = *logLevel
		case "log-dev":
			cfg.Log.Development = *logDev
		}
	})

	if flag.NArg() > 0 {
		p, err := strconv.Atoi(flag.Arg(0))
		if err != nil {
			log.Fatalf("Invalid port %q", flag.Arg(0))
		}
		cfg.Port = p
	}
	if cfg.Port == 0 && *configPath == "" && flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}
	if cfg.Handle == "" {
		cfg.Handle = config.DefaultServerHandle
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
	srv := server.New(cfg.Address(), sessionHandler(cfg.Handle, con),
		server.WithLogger(logger.L()),
		server.WithWebSocket(cfg.WebSocket),
		server.WithConcurrentSessions(cfg.Concurrent),
		server.WithMaxMessageSize(cfg.MaxMessageSize),
	)
	if err := srv.Listen(); err != nil {
		var bindErr *server.BindError
		if errors.As(err, &bindErr) {
			logger.Fatal("failed to bind", "address", bindErr.Addr, "error", bindErr.Err)
		}
		logger.Fatal("failed to start", "error", err)
	}
	fmt.Printf("Server started on port %d\n", cfg.Port)

	if err := srv.Serve(ctx); err != nil {
		logger.Error("server error", "error", err)
	}
	srv.Stop()
	logger.Info("server stopped")
}

// sessionHandler runs an acceptor session per connection on the shared
// console. The session logger already carries the peer address.
func sessionHandler(handle string, con *console.Console) server.Handler {
	return func(ctx context.Context, conn chat.Conn) error {
		s := chat.NewSession(conn, handle, chat.RoleAcceptor, con, con,
			chat.WithLogger(logger.L()))
		_, err := s.Run(ctx)
		return err
	}
}
