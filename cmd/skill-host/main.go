// ABOUTME: Entry point for skill-host, a console runtime for the root bot
// ABOUTME: Wires config, state store, skill connectors, and the turn dispatcher

package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"

	"github.com/brunobisognidev/botframework-solutions/internal/activity"
	"github.com/brunobisognidev/botframework-solutions/internal/config"
	"github.com/brunobisognidev/botframework-solutions/internal/dedupe"
	"github.com/brunobisognidev/botframework-solutions/internal/dispatch"
	"github.com/brunobisognidev/botframework-solutions/internal/routing"
	"github.com/brunobisognidev/botframework-solutions/internal/skill"
	"github.com/brunobisognidev/botframework-solutions/internal/state"
	"github.com/brunobisognidev/botframework-solutions/internal/transcript"
)

// Version is set at build time.
var version = "dev"

const banner = `
      _    _ _ _   _               _
  ___| | _(_) | | | |__   ___  ___| |_
 / __| |/ / | | | | '_ \ / _ \/ __| __|
 \__ \   <| | | | | | | | (_) \__ \ |_
 |___/_|\_\_|_|_| |_| |_|\___/|___/\__|
`

// getConfigPath returns the path to the host config file.
// Priority: SKILLHOST_CONFIG env var > XDG_CONFIG_HOME/skillhost/host.yaml > ~/.config/skillhost/host.yaml
func getConfigPath() string {
	if envPath := os.Getenv("SKILLHOST_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "host.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "skillhost", "host.yaml")
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: skill-host <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  chat                      Start a console conversation with the root bot")
		fmt.Println("  transcript <conv-id>      Export a conversation transcript as HTML")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "chat":
		err = runChat(ctx)
	case "transcript":
		err = runTranscript(ctx, os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runChat(ctx context.Context) error {
	configPath := getConfigPath()

	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)
	slog.SetDefault(logger)

	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Config:   %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("Database: %s\n", cfg.Database.Path)
	for _, sk := range cfg.Skills {
		green.Print("    ▶ ")
		fmt.Printf("Skill:    %s (%s)\n", sk.ID, sk.Endpoint)
	}
	fmt.Println()

	store, err := state.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening state store: %w", err)
	}
	defer store.Close()

	dispatcher, err := buildDispatcher(cfg, store, logger)
	if err != nil {
		return err
	}

	return chatLoop(ctx, dispatcher)
}

// buildDispatcher assembles the routing core and dispatcher from config:
// one connector per skill, one starter per flow.
func buildDispatcher(cfg *config.Config, store *state.SQLiteStore, logger *slog.Logger) (*dispatch.Dispatcher, error) {
	connectors := make(map[string]skill.Connector, len(cfg.Skills))
	for _, sk := range cfg.Skills {
		opts := []skill.Option{skill.WithLogger(logger)}
		if sk.AppID != "" {
			opts = append(opts, skill.WithCredentials(skill.NewAppCredentials(sk.AppID, sk.AppSecret)))
		}
		connectors[sk.ID] = skill.NewWebSocketConnector(sk.Endpoint, opts...)
	}

	welcomeText := cfg.Bot.WelcomeText
	if welcomeText == "" {
		welcomeText = "Hello and welcome!"
	}
	welcome := dispatch.Welcome(welcomeText, cfg.StarterKeys())

	var coreOpts []routing.CoreOption
	coreOpts = append(coreOpts, routing.WithWelcome(welcome), routing.WithLogger(logger))
	if cfg.Bot.NotUnderstoodText != "" {
		coreOpts = append(coreOpts, routing.WithNotUnderstoodText(cfg.Bot.NotUnderstoodText))
	}
	if cfg.Bot.SkillEndedText != "" {
		coreOpts = append(coreOpts, routing.WithSkillEndedText(cfg.Bot.SkillEndedText))
	}

	core := routing.NewCore(coreOpts...)
	for _, flow := range cfg.Flows {
		st := routing.Starter{
			Key:       flow.Key,
			Flow:      flow.Flow,
			Connector: connectors[flow.Skill],
		}
		if flow.SemanticAction != nil {
			st.Decorate = routing.SemanticActionDecoration(flow.SemanticAction.Name, flow.SemanticAction.Entities)
		}
		if err := core.Register(st); err != nil {
			return nil, fmt.Errorf("registering flow %s: %w", flow.Key, err)
		}
	}

	dispatchOpts := []dispatch.DispatcherOption{
		dispatch.WithTranscript(store),
		dispatch.WithDedupe(dedupe.NewCache(time.Hour, 10000)),
		dispatch.WithDispatcherLogger(logger),
	}
	if cfg.Bot.SkillFailureText != "" {
		dispatchOpts = append(dispatchOpts, dispatch.WithSkillFailureText(cfg.Bot.SkillFailureText))
	}

	return dispatch.New(store, core, welcome, dispatchOpts...), nil
}

// consoleResponder prints outbound activities to the terminal.
type consoleResponder struct {
	bot *color.Color
}

func (r *consoleResponder) SendActivity(_ context.Context, a *activity.Activity) error {
	if a.Text != "" {
		r.bot.Printf("bot> ")
		fmt.Println(a.Text)
	}
	if len(a.SuggestedActions) > 0 {
		fmt.Printf("     [%s]\n", strings.Join(a.SuggestedActions, " | "))
	}
	return nil
}

// chatLoop runs a single-conversation console session: a member-added turn
// first, then one message turn per input line. "/end" delivers a root-level
// endOfConversation.
func chatLoop(ctx context.Context, dispatcher *dispatch.Dispatcher) error {
	conversationID := uuid.New().String()
	user := activity.ChannelAccount{ID: "user", Name: "Console User"}
	bot := activity.ChannelAccount{ID: "bot", Name: "Root Bot"}
	respond := &consoleResponder{bot: color.New(color.FgCyan, color.Bold)}

	joined := &activity.Activity{
		ID:             uuid.New().String(),
		Type:           activity.TypeConversationUpdate,
		ConversationID: conversationID,
		From:           user,
		Recipient:      bot,
		MembersAdded:   []activity.ChannelAccount{user},
	}
	if err := dispatcher.OnTurn(ctx, dispatch.NewTurnContext(joined, respond)); err != nil {
		return err
	}

	scanner := bufio.NewScanner(os.Stdin)
	prompt := color.New(color.FgGreen, color.Bold)

	for {
		prompt.Print("you> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var a *activity.Activity
		if line == "/end" {
			a = activity.NewEndOfConversation(conversationID)
		} else {
			a = activity.NewMessage(conversationID, line)
		}
		a.From = user
		a.Recipient = bot

		if err := dispatcher.OnTurn(ctx, dispatch.NewTurnContext(a, respond)); err != nil {
			color.Red("error: %v", err)
		}
		if ctx.Err() != nil {
			break
		}
	}

	fmt.Println()
	return scanner.Err()
}

func runTranscript(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: skill-host transcript <conversation-id>")
	}
	conversationID := args[0]

	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	store, err := state.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening state store: %w", err)
	}
	defer store.Close()

	return transcript.ExportHTML(ctx, store, conversationID, os.Stdout)
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelWarn
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}
