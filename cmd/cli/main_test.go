package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	nanodb "github.com/jibon-roy/nano-db"
	"github.com/jibon-roy/nano-db/config"
	"github.com/jibon-roy/nano-db/core"
	"github.com/jibon-roy/nano-db/ps"
)

func setupTestCLI(t *testing.T) (*CLI, *bytes.Buffer) {
	t.Helper()

	persistence, err := ps.NewMemoryPersistence()
	if err != nil {
		t.Fatalf("Failed to create persistence: %v", err)
	}

	engine := nanodb.Open(persistence).Engine(core.Identity{
		Name:  "test",
		Email: "test@test.com",
	})

	var out bytes.Buffer
	return &CLI{
		engine:  engine,
		session: engine.NewSession(),
		out:     &out,
	}, &out
}

func feed(input string) <-chan string {
	return readLines(context.Background(), strings.NewReader(input))
}

func TestCLISession(t *testing.T) {
	cli, out := setupTestCLI(t)

	cli.run(context.Background(), feed(strings.Join([]string{
		"create db shop",
		"use shop",
		"create table users",
		"insert into users values (name:Ann, age:30)",
		"select * from users where name:Ann",
		"exit",
		"exit",
		"list db",
	}, "\n")))

	output := out.String()
	if !strings.Contains(output, "nano~$: ") || !strings.Contains(output, "shop~$: ") {
		t.Errorf("Expected both prompts, got %q", output)
	}
	if !strings.Contains(output, "Switched to database 'shop'") {
		t.Errorf("Expected use confirmation, got %q", output)
	}
	if !strings.Contains(output, "Ann") {
		t.Errorf("Expected the selected record, got %q", output)
	}
	if !strings.HasSuffix(output, "Logout.\n") {
		t.Errorf("Expected logout after the second exit, got %q", output)
	}
	if strings.Contains(output, "Databases:") {
		t.Error("Expected commands after logout to be ignored")
	}
}

func TestCLIExitLeavesDatabaseFirst(t *testing.T) {
	cli, out := setupTestCLI(t)
	ctx := context.Background()

	cli.handleLine(ctx, "create db shop")
	cli.handleLine(ctx, "use shop")

	if quit := cli.handleLine(ctx, "exit"); quit {
		t.Fatal("Expected exit to leave the database without quitting")
	}
	if cli.getPrompt() != "nano~$: " {
		t.Errorf("Expected default prompt, got %q", cli.getPrompt())
	}
	if quit := cli.handleLine(ctx, "QUIT"); !quit {
		t.Error("Expected quit without a database to end the shell")
	}
	if !strings.Contains(out.String(), "Logout.") {
		t.Errorf("Expected Logout., got %q", out.String())
	}
}

func TestCLIUnknownCommand(t *testing.T) {
	cli, out := setupTestCLI(t)

	cli.handleLine(context.Background(), "frobnicate all")

	if out.String() != "Command not recognized: frobnicate all\n" {
		t.Errorf("Unexpected output %q", out.String())
	}
}

func TestCLIErrors(t *testing.T) {
	cli, out := setupTestCLI(t)

	cli.handleLine(context.Background(), "use missing")

	if !strings.HasPrefix(out.String(), "✗ Error: ") || !strings.Contains(out.String(), "not found") {
		t.Errorf("Expected error line, got %q", out.String())
	}
}

func TestCLIArrowKeysIgnored(t *testing.T) {
	cli, out := setupTestCLI(t)
	ctx := context.Background()

	cli.handleLine(ctx, "\x1b[A")
	cli.handleLine(ctx, "^[[B^[[C")
	if out.Len() != 0 {
		t.Errorf("Expected no output for arrow keys, got %q", out.String())
	}
	if len(cli.history) != 0 {
		t.Errorf("Expected arrow keys to stay out of history, got %v", cli.history)
	}

	cli.handleLine(ctx, "\x1b[Alist db")
	if !strings.Contains(out.String(), "No databases found.") {
		t.Errorf("Expected the command after the escape to run, got %q", out.String())
	}
}

func TestCLIHelpAndVersion(t *testing.T) {
	cli, out := setupTestCLI(t)
	ctx := context.Background()

	cli.handleLine(ctx, "help")
	if !strings.HasPrefix(out.String(), "Available commands:\n") || !strings.Contains(out.String(), " - create db <name>\n") {
		t.Errorf("Unexpected help output %q", out.String())
	}

	out.Reset()
	cli.handleLine(ctx, "version")
	if out.String() != "nanoDB version "+Version+"\n" {
		t.Errorf("Unexpected version output %q", out.String())
	}

	out.Reset()
	cli.handleLine(ctx, "cls")
	if out.String() != "\033[H\033[2J" {
		t.Errorf("Expected clear sequence, got %q", out.String())
	}
}

func TestCLILogin(t *testing.T) {
	hash, err := config.HashPassword("s3cret")
	if err != nil {
		t.Fatalf("Failed to hash password: %v", err)
	}
	cfg := config.Default()
	cfg.Admin.PasswordHash = hash

	t.Run("Accepted", func(t *testing.T) {
		cli, _ := setupTestCLI(t)
		if err := cli.login(context.Background(), &cfg, feed("admin\ns3cret\n")); err != nil {
			t.Fatalf("Expected login to succeed, got %v", err)
		}
		if cli.session.Identity.Name != "admin" {
			t.Errorf("Expected session identity admin, got %q", cli.session.Identity.Name)
		}
	})

	t.Run("Rejected", func(t *testing.T) {
		cli, out := setupTestCLI(t)
		err := cli.login(context.Background(), &cfg, feed("admin\nx\nadmin\ny\nroot\ns3cret\n"))
		if !errors.Is(err, errLoginFailed) {
			t.Errorf("Expected errLoginFailed, got %v", err)
		}
		if strings.Count(out.String(), "Invalid username or password") != loginAttempts {
			t.Errorf("Expected %d rejections, got %q", loginAttempts, out.String())
		}
	})
}

func TestCLIScript(t *testing.T) {
	cli, out := setupTestCLI(t)

	script := filepath.Join(t.TempDir(), "seed.nano")
	content := `-- seed data
create db shop
use shop
create table users

# records
insert into users values (name:Ann)
insert into users values (name:Bo);
exit
insert into users values (name:Never)
`
	if err := os.WriteFile(script, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write script: %v", err)
	}

	if err := cli.runScript(context.Background(), script); err != nil {
		t.Fatalf("Failed to run script: %v", err)
	}

	if !strings.Contains(out.String(), "5 succeeded, 0 failed") {
		t.Errorf("Unexpected summary %q", out.String())
	}

	count, err := cli.engine.ReadAll(core.Table{Database: "shop", Name: "users"})
	if err != nil {
		t.Fatalf("Failed to read table: %v", err)
	}
	if count.Count != 2 {
		t.Errorf("Expected 2 records, got %v", count.Lines)
	}
}

func TestCLIScriptFailure(t *testing.T) {
	cli, out := setupTestCLI(t)

	script := filepath.Join(t.TempDir(), "bad.nano")
	if err := os.WriteFile(script, []byte("create db shop\nselect * from nowhere\n"), 0o600); err != nil {
		t.Fatalf("Failed to write script: %v", err)
	}

	if err := cli.runScript(context.Background(), script); err == nil {
		t.Error("Expected error for failed command")
	}
	if !strings.Contains(out.String(), "[2] select * from nowhere") {
		t.Errorf("Expected failing line to be reported, got %q", out.String())
	}
}

func TestCLIHistoryFile(t *testing.T) {
	cli, _ := setupTestCLI(t)
	cli.historyFile = filepath.Join(t.TempDir(), ".nanodb_history")

	cli.addToHistory("list db")
	cli.addToHistory("list db")
	cli.addToHistory("create db shop")
	cli.saveHistory()

	reloaded, _ := setupTestCLI(t)
	reloaded.historyFile = cli.historyFile
	reloaded.loadHistory()

	if strings.Join(reloaded.history, "|") != "list db|create db shop" {
		t.Errorf("Unexpected history %v", reloaded.history)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		input    string
		max      int
		expected string
	}{
		{"short", 10, "short"},
		{"a\tb", 10, "a b"},
		{"select * from users", 10, "select ..."},
		{"insert into t values (név:Ádám)", 27, "insert into t values (né..."},
		{"ééééééééééé", 8, "ééééé..."},
	}

	for _, tt := range tests {
		got := truncate(tt.input, tt.max)
		if got != tt.expected {
			t.Errorf("truncate(%q, %d) = %q, expected %q", tt.input, tt.max, got, tt.expected)
		}
		if !utf8.ValidString(got) {
			t.Errorf("truncate(%q, %d) returned invalid UTF-8", tt.input, tt.max)
		}
	}
}
