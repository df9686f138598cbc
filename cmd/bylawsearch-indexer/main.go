package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/civicgrid/bylawsearch"
	"github.com/civicgrid/bylawsearch/embedding"
	"github.com/civicgrid/bylawsearch/embedding/ollama"
	"github.com/civicgrid/bylawsearch/embedding/openai"
	"github.com/civicgrid/bylawsearch/persistence/chromem"
	"github.com/civicgrid/bylawsearch/registry"
)

func main() {
	cmd := &cli.Command{
		Name:  "bylawsearch-indexer",
		Usage: "Batch-ingest bylaw documents into the vector index",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "path",
				Usage: "Path to the bylawsearch data directory",
			},
			&cli.StringFlag{
				Name:     "docs",
				Usage:    "Directory of bylaw documents to ingest",
				Required: true,
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

	logger, err := zap.NewDevelopment()
	if err != nil {
		return err
	}
	defer logger.Sync()

	zap.ReplaceGlobals(logger)

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

	// The indexer writes the same store the query service reads.
	cfg.Vector.Persistent = true

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

	docs, err := loadDocuments(cmd.String("docs"))
	if err != nil {
		return err
	}

	if len(docs) == 0 {
		return fmt.Errorf("no documents found in %s", cmd.String("docs"))
	}

	report, err := svc.IngestDocuments(ctx, docs)
	if err != nil {
		return err
	}

	for _, result := range report.Results {
		if result.Err != "" {
			fmt.Printf("FAIL %s: %s\n", result.Filename, result.Err)
			continue
		}

		fmt.Printf("OK   %s (bylaw %s, %d chunks, %d batches, %s)\n",
			result.Filename, result.BylawNumber, result.Chunks, result.Batches, result.Duration)
	}

	fmt.Printf("%d documents: %d succeeded, %d failed\n",
		report.Documents, report.Succeeded, report.Failed)

	if report.Succeeded == 0 {
		return fmt.Errorf("all documents failed")
	}

	return nil
}

func loadDocuments(dir string) ([]bylawsearch.Document, error) {
	var docs []bylawsearch.Document

	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			return nil
		}

		switch strings.ToLower(filepath.Ext(path)) {
		case ".txt", ".md":
		default:
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		docs = append(docs, bylawsearch.Document{
			Filename: d.Name(),
			Text:     string(data),
			ModTime:  info.ModTime(),
		})

		return nil
	})

	if err != nil {
		return nil, err
	}

	return docs, nil
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
