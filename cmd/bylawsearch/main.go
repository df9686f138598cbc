package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/micro"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/civicgrid/bylawsearch"
	"github.com/civicgrid/bylawsearch/embedding"
	"github.com/civicgrid/bylawsearch/embedding/ollama"
	"github.com/civicgrid/bylawsearch/embedding/openai"
	"github.com/civicgrid/bylawsearch/persistence/chromem"
	"github.com/civicgrid/bylawsearch/registry"

	mcpE "github.com/civicgrid/bylawsearch/mcp"
	httpT "github.com/civicgrid/bylawsearch/transport/http"
	natsT "github.com/civicgrid/bylawsearch/transport/nats"
)

func main() {
	cmd := &cli.Command{
		Name:  "bylawsearch",
		Usage: "Bylaw semantic search service",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "path",
				Usage: "Path to the bylawsearch data directory",
			},
			&cli.StringFlag{
				Name:    "nats",
				Usage:   "NATS server URL (empty disables the NATS transport)",
				Sources: cli.EnvVars("NATS_URL"),
			},
			&cli.BoolFlag{
				Name:  "http",
				Usage: "Enable HTTP transport",
				Value: true,
			},
			&cli.StringFlag{
				Name:  "http-addr",
				Usage: "HTTP server address",
				Value: ":8080",
			},
		},
		Action: run,
	}

	err := cmd.Run(context.Background(), os.Args)
	if err != nil {
		log.Fatal(err.Error())
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("path")
	if path == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return err
		}

		path = filepath.Join(homeDir, ".civicgrid", "bylawsearch")
	}

	log, err := zap.NewDevelopment()
	if err != nil {
		return err
	}
	defer log.Sync()

	zap.ReplaceGlobals(log)

	f, err := os.Open(filepath.Join(path, "config.yaml"))
	if err != nil {
		return err
	}
	defer f.Close()

	var cfg bylawsearch.Config
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return err
	}

	if cfg.Vector.Path == "" {
		cfg.Vector.Path = filepath.Join(path, "vectors")
	}

	if cfg.Vector.Collection == "" {
		cfg.Vector.Collection = "bylaws"
	}

	if cfg.Registry.Path == "" {
		cfg.Registry.Path = filepath.Join(path, "registry.yaml")
	}

	index, err := chromem.NewIndex(cfg.Vector)
	if err != nil {
		return err
	}

	embedder, err := newEmbedder(cfg.Embedding)
	if err != nil {
		return err
	}

	reg, err := registry.Load(cfg.Registry)
	if err != nil {
		return err
	}

	svc, err := bylawsearch.NewService(cfg, embedder, index, reg)
	if err != nil {
		return err
	}
	defer svc.Close()

	svc = bylawsearch.LoggingMiddleware(log)(svc)

	endpoints := bylawsearch.EndpointSet{
		Search:         bylawsearch.SearchEndpoint(svc),
		IngestDocument: bylawsearch.IngestDocumentEndpoint(svc),
		ListBylaws:     bylawsearch.ListBylawsEndpoint(svc),
	}

	// Add NATS Transport
	natsURL := cmd.String("nats")
	if natsURL != "" {
		nc, err := nats.Connect(natsURL,
			nats.Name("BylawSearch Server"),
		)

		if err != nil {
			return err
		}
		defer nc.Drain()

		srv, err := micro.AddService(nc, micro.Config{
			Name:    "bylawsearch",
			Version: "1.0.0",
		})

		if err != nil {
			return err
		}
		defer srv.Stop()

		root := srv.AddGroup("bylawsearch")
		natsT.AddEndpoints(root, endpoints)
	}

	httpEnabled := cmd.Bool("http")
	if httpEnabled {
		r := gin.Default()
		httpT.AddRouters(r, endpoints)

		endpoints := make(map[mcp.MCPMethod]mcpE.MCPEndpoint)
		endpoints[mcp.MethodInitialize] = mcpE.InitializeEndpoint(svc)
		endpoints[mcp.MethodPing] = mcpE.PingEndpoint(svc)
		endpoints[mcp.MethodToolsList] = mcpE.ListToolsEndpoint(svc)
		endpoints[mcp.MethodToolsCall] = mcpE.CallToolEndpoint(svc)
		httpT.AddStreamableRouters(r, endpoints)

		httpAddr := cmd.String("http-addr")
		go r.Run(httpAddr)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sign := <-quit

	log.Info("graceful shutdown", zap.String("signal", sign.String()))
	return nil
}

func newEmbedder(cfg embedding.Config) (embedding.Embedder, error) {
	switch cfg.Provider {
	case "", "openai":
		return openai.NewClient(cfg)

	case "ollama":
		return ollama.NewClient(cfg), nil

	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}
}
