package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/mattn/go-isatty"

	nanodb "github.com/jibon-roy/nano-db"
	"github.com/jibon-roy/nano-db/config"
	"github.com/jibon-roy/nano-db/db"
	"github.com/jibon-roy/nano-db/sql"
)

const (
	ErrorColor   = "\033[31m" // Red
	SuccessColor = "\033[32m" // Green
	ResetColor   = "\033[0m"

	defaultPrompt = "nano"
	maxHistory    = 1000
	loginAttempts = 3
)

// Version is set at build time via -ldflags
var Version = "0.1.0"

var errLoginFailed = errors.New("login failed")

// Terminals without line editing send arrow keys as raw escape sequences.
var arrowKeys = []string{
	"\x1b[A", "\x1b[B", "\x1b[C", "\x1b[D",
	"^[[A", "^[[B", "^[[C", "^[[D",
}

var commands = []string{
	"create db <name>",
	"drop db <name>",
	"list db",
	"use <name>",
	"create table <name>",
	"drop table <name>",
	"list table",
	"insert into <table> values (<field>:<value>, ...)",
	"select * from <table> [where <field>:<value>]",
	"update <table> set <field>:<value> where <field>:<value>",
	"delete from <table> where <field>:<value>",
	"history [<table>]",
	"restore <transaction>",
	"export <table> to <path|url>",
	"import <table> from <path|url>",
	"clear",
	"cls",
	"help",
	"version",
	"exit",
	"quit",
}

// CLI holds the CLI state
type CLI struct {
	engine      *db.Engine
	session     *db.Session
	out         io.Writer
	color       bool
	history     []string
	historyFile string
}

func main() {
	if err := mainImpl(); err != nil {
		fmt.Fprintf(os.Stderr, "nanodb: %v\n", err)
		os.Exit(1)
	}
}

func mainImpl() error {
	configPath := flag.String("config", "nanodb.yaml", "YAML config file")
	baseDir := flag.String("baseDir", "", "Base directory for the database (overrides data_dir)")
	memory := flag.Bool("memory", false, "Keep everything in memory")
	history := flag.Bool("history", false, "Record every write as a git commit")
	strict := flag.Bool("strict", false, "Match whole field values instead of substrings")
	scriptFile := flag.String("file", "", "Command file to execute (non-interactive)")
	logLevel := flag.String("log-level", "", "Log level: debug, info, warn or error")
	userName := flag.String("name", "", "Author name recorded on writes")
	userEmail := flag.String("email", "", "Author email recorded on writes")
	showVersion := flag.Bool("version", false, "Print the version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("nanoDB version %s\n", Version)
		return nil
	}

	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	cfg, err := config.Load(*configPath, !set["config"])
	if err != nil {
		return err
	}
	if set["baseDir"] {
		cfg.DataDir = *baseDir
	}
	if *memory {
		cfg.DataDir = ""
	}
	if set["history"] {
		cfg.History = *history
	}
	if set["strict"] {
		cfg.StrictMatch = *strict
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *userName != "" {
		cfg.Identity.Name = *userName
	}
	if *userEmail != "" {
		cfg.Identity.Email = *userEmail
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	level, err := config.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	slog.SetDefault(config.NewLogger(level))

	instance, err := nanodb.OpenConfig(cfg)
	if err != nil {
		return err
	}
	slog.Debug("Opened persistence", "dataDir", cfg.DataDir, "history", cfg.History, "strict", cfg.StrictMatch)

	engine := instance.Engine(cfg.Identity)
	cli := &CLI{
		engine:      engine,
		session:     engine.NewSession(),
		out:         os.Stdout,
		color:       isatty.IsTerminal(os.Stdout.Fd()),
		historyFile: getHistoryPath(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *scriptFile != "" {
		return cli.runScript(ctx, *scriptFile)
	}

	cli.loadHistory()
	defer cli.saveHistory()

	lines := readLines(ctx, os.Stdin)
	if cfg.LoginRequired() {
		if err := cli.login(ctx, &cfg, lines); err != nil {
			return err
		}
	}
	cli.run(ctx, lines)
	return nil
}

// readLines feeds the lines of r to the returned channel until r is exhausted
// or ctx is done.
func readLines(ctx context.Context, r io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			slog.Error("Failed to read input", "err", err)
		}
	}()
	return lines
}

func next(ctx context.Context, lines <-chan string) (string, bool) {
	select {
	case line, ok := <-lines:
		return line, ok
	case <-ctx.Done():
		return "", false
	}
}

func (cli *CLI) login(ctx context.Context, cfg *config.Config, lines <-chan string) error {
	for range loginAttempts {
		fmt.Fprint(cli.out, "Username: ")
		user, ok := next(ctx, lines)
		if !ok {
			return errLoginFailed
		}
		fmt.Fprint(cli.out, "Password: ")
		password, ok := next(ctx, lines)
		if !ok {
			return errLoginFailed
		}

		if cfg.CheckLogin(strings.TrimSpace(user), password) {
			cli.session.Identity.Name = strings.TrimSpace(user)
			return nil
		}
		slog.Warn("Rejected login", "user", user)
		cli.printError("Invalid username or password")
	}
	return errLoginFailed
}

func (cli *CLI) run(ctx context.Context, lines <-chan string) {
	for {
		fmt.Fprint(cli.out, cli.getPrompt())

		line, ok := next(ctx, lines)
		if !ok {
			fmt.Fprintln(cli.out)
			fmt.Fprintln(cli.out, "Logout.")
			return
		}

		if cli.handleLine(ctx, line) {
			return
		}
	}
}

func (cli *CLI) getPrompt() string {
	if cli.session.InDatabase() {
		return cli.session.Database + "~$: "
	}
	return defaultPrompt + "~$: "
}

// handleLine runs one line of input and reports whether the shell should quit.
func (cli *CLI) handleLine(ctx context.Context, line string) bool {
	input := strings.TrimSpace(stripArrowKeys(line))
	input = strings.TrimSpace(strings.TrimSuffix(input, ";"))
	if input == "" {
		return false
	}

	switch strings.ToLower(input) {
	case "exit", "quit":
		if cli.session.InDatabase() {
			cli.session.Leave()
			return false
		}
		fmt.Fprintln(cli.out, "Logout.")
		return true

	case "help":
		cli.printHelp()

	case "version":
		fmt.Fprintf(cli.out, "nanoDB version %s\n", Version)

	case "clear", "cls":
		fmt.Fprint(cli.out, "\033[H\033[2J")

	default:
		cli.addToHistory(input)
		result, err := cli.engine.Execute(ctx, cli.session, input)
		switch {
		case errors.Is(err, sql.ErrUnknownStatement):
			fmt.Fprintf(cli.out, "Command not recognized: %s\n", input)
		case err != nil:
			cli.printError("Error: %v", err)
		default:
			result.Display(cli.out)
		}
	}
	return false
}

func stripArrowKeys(line string) string {
	for _, seq := range arrowKeys {
		line = strings.ReplaceAll(line, seq, "")
	}
	return line
}

func (cli *CLI) printError(format string, args ...any) {
	msg := "✗ " + fmt.Sprintf(format, args...)
	if cli.color {
		msg = ErrorColor + msg + ResetColor
	}
	fmt.Fprintln(cli.out, msg)
}

func (cli *CLI) printSuccess(format string, args ...any) {
	msg := "✓ " + fmt.Sprintf(format, args...)
	if cli.color {
		msg = SuccessColor + msg + ResetColor
	}
	fmt.Fprintln(cli.out, msg)
}

func (cli *CLI) printHelp() {
	fmt.Fprintln(cli.out, "Available commands:")
	for _, cmd := range commands {
		fmt.Fprintf(cli.out, " - %s\n", cmd)
	}
}

func (cli *CLI) addToHistory(cmd string) {
	// Don't add duplicates of the last command
	if len(cli.history) > 0 && cli.history[len(cli.history)-1] == cmd {
		return
	}
	cli.history = append(cli.history, cmd)

	if len(cli.history) > maxHistory {
		cli.history = cli.history[len(cli.history)-maxHistory:]
	}
}

func getHistoryPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".nanodb_history")
}

func (cli *CLI) loadHistory() {
	if cli.historyFile == "" {
		return
	}

	file, err := os.Open(cli.historyFile)
	if err != nil {
		return
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		cli.history = append(cli.history, scanner.Text())
	}
}

func (cli *CLI) saveHistory() {
	if cli.historyFile == "" {
		return
	}

	file, err := os.Create(cli.historyFile)
	if err != nil {
		slog.Warn("Failed to save command history", "path", cli.historyFile, "err", err)
		return
	}
	defer file.Close()

	start := max(0, len(cli.history)-maxHistory)
	w := bufio.NewWriter(file)
	for _, cmd := range cli.history[start:] {
		_, _ = w.WriteString(cmd + "\n")
	}
	if err := w.Flush(); err != nil {
		slog.Warn("Failed to save command history", "path", cli.historyFile, "err", err)
	}
}

// runScript executes every line of filename as a command. Blank lines and
// lines starting with -- or # are skipped, exit and quit stop the script.
func (cli *CLI) runScript(ctx context.Context, filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	defer file.Close()

	successCount := 0
	errorCount := 0

	scanner := bufio.NewScanner(file)
	for lineNo := 1; scanner.Scan(); lineNo++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		stmt := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(scanner.Text()), ";"))
		if stmt == "" || strings.HasPrefix(stmt, "--") || strings.HasPrefix(stmt, "#") {
			continue
		}
		if lower := strings.ToLower(stmt); lower == "exit" || lower == "quit" {
			break
		}

		result, err := cli.engine.Execute(ctx, cli.session, stmt)
		if err != nil {
			cli.printError("[%d] %s", lineNo, truncate(stmt, 50))
			fmt.Fprintf(cli.out, "      Error: %v\n", err)
			errorCount++
			continue
		}
		successCount++

		switch r := result.(type) {
		case db.QueryResult:
			cli.printSuccess("[%d] %s (%d rows)", lineNo, truncate(stmt, 50), r.RecordsRead)
		case db.CommitResult:
			if r.RecordsWritten > 0 {
				cli.printSuccess("[%d] %s (id:%d)", lineNo, truncate(stmt, 50), r.AssignedID)
			} else {
				cli.printSuccess("[%d] %s", lineNo, truncate(stmt, 50))
			}
		default:
			cli.printSuccess("[%d] %s", lineNo, truncate(stmt, 50))
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	fmt.Fprintf(cli.out, "\n%d succeeded, %d failed\n", successCount, errorCount)
	if errorCount > 0 {
		return fmt.Errorf("%d command(s) failed", errorCount)
	}
	return nil
}

// truncate shortens s to max runes with an ellipsis.
func truncate(s string, max int) string {
	s = strings.ReplaceAll(s, "\t", " ")
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}
