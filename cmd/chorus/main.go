package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/choruslabs/chorus/internal/capability"
	"github.com/choruslabs/chorus/internal/conduit"
	"github.com/choruslabs/chorus/internal/engine"
	"github.com/choruslabs/chorus/internal/msgstore"
	"github.com/choruslabs/chorus/internal/persona"
	"github.com/choruslabs/chorus/internal/session"
)

func main() {
	_ = godotenv.Load()

	personaFile := flag.String("personas", "", "Path to a JSON persona file (default: built-in personas)")
	storePath := flag.String("store", "chorus.db", "Path to the message store database")
	indexPath := flag.String("index", "", "Path to the recall index (default: <store>.bleve)")
	searchCmd := flag.String("search-cmd", "", "Command for the stdio web-search/crawl tool process")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *personaFile, *storePath, *indexPath, *searchCmd); err != nil {
		log.Fatalf("chorus failed: %v", err)
	}
}

func run(ctx context.Context, personaFile, storePath, indexPath, searchCmd string) error {
	personas, err := loadPersonas(personaFile)
	if err != nil {
		return err
	}

	store, err := openStore(ctx, storePath, indexPath)
	if err != nil {
		return err
	}
	defer store.Close()

	runners := make(map[string]*session.Runner, len(personas))
	var order []string
	for _, p := range personas {
		registry := buildRegistry(store, p, searchCmd)
		gen, err := conduit.NewGenerator(p.Provider, p.Model)
		if err != nil {
			return fmt.Errorf("persona %s: %w", p.ID, err)
		}
		hooks := engine.Hooks{engine.LogHook{Persona: p.ID}}
		runners[p.ID] = session.NewRunner(p, gen, registry, store, hooks)
		order = append(order, p.ID)
	}

	log.Printf("🎭 chorus ready with personas: %s", strings.Join(order, ", "))
	log.Printf("   type a message, or @<persona> <message> to pick one (default: %s)", order[0])

	return repl(ctx, runners, order[0])
}

func loadPersonas(path string) ([]persona.Persona, error) {
	if path == "" {
		return persona.Defaults(), nil
	}
	return persona.Load(path)
}

func openStore(ctx context.Context, storePath, indexPath string) (*msgstore.Store, error) {
	store, err := msgstore.Open(ctx, storePath)
	if err != nil {
		return nil, err
	}
	if indexPath == "" {
		indexPath = storePath + ".bleve"
	}
	index, err := msgstore.NewIndex(indexPath)
	if err != nil {
		store.Close()
		return nil, err
	}
	store.AttachIndex(index)
	return store, nil
}

// buildRegistry assembles the capability set one persona may dispatch.
func buildRegistry(store *msgstore.Store, p persona.Persona, searchCmd string) *capability.Registry {
	registry := capability.NewRegistry()
	registry.Register(capability.NewPublishMessage(store, p.ID))
	registry.Register(capability.NewReadMessages(store))
	registry.Register(capability.NewRecallMemory(store))

	if searchCmd != "" {
		proc := capability.NewStdioProcess(searchCmd)
		registry.Register(proc.Capability(
			engine.WebSearchToolName,
			"Search the web. Parameters: {\"query\": string}.",
			`{"type":"object","properties":{"query":{"type":"string","minLength":1}},"required":["query"]}`,
		))
		registry.Register(proc.Capability(
			engine.ReadWebpageToolName,
			"Fetch and read web pages. Parameters: {\"urls\": [string, ...]}.",
			`{"type":"object","properties":{"urls":{"type":"array","items":{"type":"string"},"minItems":1}},"required":["urls"]}`,
		))
	}

	if len(p.Capabilities) > 0 {
		registry.Allow(p.ID, p.Capabilities...)
	}
	return registry
}

func repl(ctx context.Context, runners map[string]*session.Runner, defaultPersona string) error {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	fmt.Print("> ")
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			fmt.Print("> ")
			continue
		}
		if line == "exit" || line == "quit" {
			return nil
		}

		id, message := defaultPersona, line
		if strings.HasPrefix(line, "@") {
			parts := strings.SplitN(line[1:], " ", 2)
			if len(parts) == 2 {
				id, message = parts[0], strings.TrimSpace(parts[1])
			}
		}

		runner, ok := runners[id]
		if !ok {
			fmt.Printf("unknown persona: %s\n> ", id)
			continue
		}

		out := runner.Run(ctx, message, "")
		if out.Err != nil {
			fmt.Printf("[%s] error: %v\n", out.Persona, out.Err)
		} else {
			fmt.Printf("[%s] %s\n", out.Persona, out.Result)
		}
		fmt.Print("> ")
	}
	return scanner.Err()
}
