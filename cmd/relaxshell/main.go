package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/chzyer/readline"

	"github.com/relaxdb/engine/internal/config"
	"github.com/relaxdb/engine/internal/engine"
	"github.com/relaxdb/engine/internal/statement"
)

func main() {
	dataDir := flag.String("data-dir", "./data", "Working directory for database files")
	cfgPath := flag.String("config", "", "Optional config file (viper-compatible)")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}

	db, err := engine.Open(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open database:", err)
		os.Exit(1)
	}
	defer func() {
		if err := db.Close(); err != nil {
			slog.Error("close database", "err", err)
		}
	}()

	sess := db.NewSession("PUBLIC", noopCompiler)

	rl, err := readline.New("relaxdb> ")
	if err != nil {
		fmt.Fprintln(os.Stderr, "readline:", err)
		os.Exit(1)
	}
	defer func() { _ = rl.Close() }()

	fmt.Printf("relaxdb shell, data dir %q. Type .help for commands.\n", cfg.DataDir)

	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt || errors.Is(err, io.EOF) {
				return
			}
			fmt.Fprintln(os.Stderr, "readline:", err)
			return
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		switch {
		case line == ".help":
			printHelp()
		case line == ".tables":
			for _, t := range db.AllTables() {
				fmt.Println(t.Name)
			}
		case line == ".schema":
			printSchemas(db)
		case strings.HasPrefix(line, ".autocommit"):
			handleAutocommit(sess, line)
		case line == ".exit" || line == ".quit":
			return
		default:
			stmt, err := sess.PrepareAndCache(line, nil, nil)
			if err != nil {
				fmt.Fprintln(os.Stderr, "error:", err)
				continue
			}
			if err := sess.Commit(); err != nil {
				fmt.Fprintln(os.Stderr, "commit:", err)
				continue
			}
			fmt.Printf("ok (statement id=%d)\n", stmt.ID)
		}
	}
}

// noopCompiler is a placeholder SQL compiler: this shell only exercises
// the storage/catalog engine's statement-cache plumbing, not a real SQL
// parser. Every submitted line is treated as its own opaque statement
// text.
func noopCompiler(sql string, _ any) (*statement.Statement, error) {
	return &statement.Statement{SQLText: sql, Executable: sql}, nil
}

func handleAutocommit(sess interface{ SetAutocommit(bool) }, line string) {
	fields := strings.Fields(line)
	if len(fields) != 2 {
		fmt.Println("usage: .autocommit on|off")
		return
	}
	switch fields[1] {
	case "on":
		sess.SetAutocommit(true)
	case "off":
		sess.SetAutocommit(false)
	default:
		fmt.Println("usage: .autocommit on|off")
	}
}

func printSchemas(db *engine.Database) {
	for _, t := range db.AllTables() {
		fmt.Printf("TABLE %s\n", t.Name)
		for _, c := range t.Schema.Columns {
			fmt.Printf("  %s\n", c.Name)
		}
	}
}

func printHelp() {
	fmt.Println(`.tables              list tables
.schema              list tables and columns
.autocommit on|off   toggle autocommit for this session
.exit                quit`)
}
