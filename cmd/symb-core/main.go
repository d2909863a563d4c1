// Command symb-core is a minimal demo CLI that drives the agent loop (C10)
// against a configured provider and prints its event stream, grounded in
// cmd/symb/main.go's config-load / registry-build / provider-select
// sequence but stripped of the TUI.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/xonecas/symb-core/internal/agent"
	"github.com/xonecas/symb-core/internal/config"
	"github.com/xonecas/symb-core/internal/events"
	"github.com/xonecas/symb-core/internal/executor"
	"github.com/xonecas/symb-core/internal/message"
	"github.com/xonecas/symb-core/internal/provider"
)

func main() {
	if err := setupFileLogging(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to set up logging: %v\n", err)
	}

	mode := flag.String("mode", "ask", "agent mode: code | plan | ask")
	prompt := flag.String("prompt", "", "initial user message (reads stdin if empty)")
	flag.Parse()

	configPath := filepath.Join(".", "config.toml")
	if dataDir, err := config.DataDir(); err == nil {
		dataDirPath := filepath.Join(dataDir, "config.toml")
		if _, err := os.Stat(dataDirPath); err == nil {
			configPath = dataDirPath
		}
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading config: %v\n", err)
		os.Exit(1)
	}

	creds, err := config.LoadCredentials()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading credentials: %v\n", err)
		os.Exit(1)
	}

	registry := buildRegistry(cfg, creds)
	providerName, providerCfg := resolveProvider(cfg, registry)

	prov, err := registry.Create(providerName, provider.Options{
		APIKey:      creds.GetAPIKey(providerName),
		BaseURL:     providerCfg.Endpoint,
		Model:       providerCfg.Model,
		Temperature: providerCfg.Temperature,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error creating provider %q: %v\n", providerName, err)
		os.Exit(1)
	}

	execs := executor.NewRegistry()
	execs.Register(executor.Noop{})
	execs.Register(executor.UserQuestion{})

	userText := *prompt
	if userText == "" {
		userText = readStdin()
	}

	projectRoot, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error getting working directory: %v\n", err)
		os.Exit(1)
	}

	req := agent.Request{
		Messages:    []message.Message{message.User(userText)},
		Mode:        agent.Mode(*mode),
		Model:       providerCfg.Model,
		ProjectRoot: projectRoot,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	for evt := range agent.Run(ctx, req, prov, execs, cfg.Engine) {
		printEvent(evt)
	}
}

func readStdin() string {
	scanner := bufio.NewScanner(os.Stdin)
	var b strings.Builder
	for scanner.Scan() {
		b.WriteString(scanner.Text())
		b.WriteByte('\n')
	}
	return strings.TrimSpace(b.String())
}

func printEvent(evt events.Event) {
	switch evt.Kind {
	case events.KindTextMessageContent:
		fmt.Print(evt.Delta)
	case events.KindToolCallStart:
		fmt.Printf("\n[tool: %s]\n", evt.Name)
	case events.KindCustom:
		fmt.Printf("\n(%s: %v)\n", evt.CustomName, evt.CustomData)
	case events.KindRunError:
		fmt.Fprintf(os.Stderr, "\nerror: %s (%s)\n", evt.Message, evt.Code)
	case events.KindRunFinished:
		fmt.Printf("\n[finished: %s]\n", evt.FinishReason)
	}
}

func buildRegistry(cfg *config.Config, creds *config.Credentials) *provider.Registry {
	registry := provider.NewRegistry()
	for name := range cfg.Providers {
		registry.RegisterFactory(name, provider.NewZenFactory(name, creds.GetAPIKey(name), cfg.Providers[name].Endpoint))
	}
	registry.RegisterFactory("mock", provider.NewMockFactory("mock", "This is a demo response with no tool calls."))
	return registry
}

func resolveProvider(cfg *config.Config, registry *provider.Registry) (string, config.ProviderConfig) {
	name := cfg.DefaultProvider
	if name == "" {
		providers := registry.List()
		if len(providers) == 0 {
			fmt.Fprintln(os.Stderr, "error: no providers configured")
			os.Exit(1)
		}
		name = providers[0]
	}
	pcfg, ok := cfg.Providers[name]
	if !ok {
		if name == "mock" {
			return name, config.ProviderConfig{Model: "mock"}
		}
		fmt.Fprintf(os.Stderr, "error: provider %q not found\n", name)
		os.Exit(1)
	}
	return name, pcfg
}

func setupFileLogging() error {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	dataDir, err := config.DataDir()
	if err != nil {
		return err
	}

	logDir := filepath.Join(dataDir, "logs")
	if err := os.MkdirAll(logDir, 0750); err != nil {
		return err
	}

	logFile := filepath.Join(logDir, "symb-core.log")
	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}

	log.Logger = log.Output(file)
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	return nil
}
