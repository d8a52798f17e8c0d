package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/syloe1/lightDb/pkg/config"
	"github.com/syloe1/lightDb/pkg/database"
	"github.com/syloe1/lightDb/pkg/logger"
	"github.com/syloe1/lightDb/pkg/metrics"
)

const (
	version = "0.1.0"
	banner  = `LightDB v%s - educational relational storage engine

Type 'help' for available commands
Type 'exit' or 'quit' to exit

`
)

type cli struct {
	db      *database.DB
	scanner *bufio.Scanner
}

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	logLevel := flag.String("log-level", "", "override log level (debug|info|warn|error)")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "lightdb: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	level, err := logger.ParseLevel(cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "lightdb: %v\n", err)
		os.Exit(1)
	}
	logger.SetLevel(level)

	c := &cli{
		db:      database.Open(cfg),
		scanner: bufio.NewScanner(os.Stdin),
	}
	c.run()
}

func (c *cli) run() {
	fmt.Printf(banner, version)

	var pending strings.Builder
	for {
		if pending.Len() == 0 {
			fmt.Print("lightdb> ")
		} else {
			fmt.Print("      -> ")
		}
		if !c.scanner.Scan() {
			fmt.Println()
			return
		}
		line := strings.TrimSpace(c.scanner.Text())
		if line == "" {
			continue
		}

		if pending.Len() == 0 && c.handleMetaCommand(line) {
			continue
		}
		if pending.Len() == 0 && (line == "exit" || line == "quit") {
			return
		}

		pending.WriteString(line)
		pending.WriteString(" ")
		if !strings.HasSuffix(line, ";") {
			continue
		}

		sql := pending.String()
		pending.Reset()
		result, err := c.db.Execute(sql)
		if err != nil {
			fmt.Printf("error: %v\n", err)
			continue
		}
		c.printResult(result)
	}
}

// handleMetaCommand intercepts non-SQL commands; returns true if handled
func (c *cli) handleMetaCommand(line string) bool {
	fields := strings.Fields(line)
	switch fields[0] {
	case "help":
		c.printHelp()
	case "stats":
		c.printStats()
	case "index":
		if len(fields) != 3 {
			fmt.Println("usage: index <table> <column>")
			return true
		}
		info, err := c.db.Catalog().CreateIndex(fields[1], fields[2])
		if err != nil {
			fmt.Printf("error: %v\n", err)
			return true
		}
		fmt.Printf("created index %s\n", info.Name)
	case "export":
		if len(fields) != 3 {
			fmt.Println("usage: export <table> <file>")
			return true
		}
		c.exportTable(fields[1], fields[2])
	case "import":
		if len(fields) != 3 {
			fmt.Println("usage: import <table> <file>")
			return true
		}
		c.importTable(fields[1], fields[2])
	default:
		return false
	}
	return true
}

func (c *cli) exportTable(table, path string) {
	f, err := os.Create(path)
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	defer f.Close()

	info, err := c.db.ExportTable(table, f)
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	fmt.Printf("exported %d records to %s (snapshot %s, %s)\n", info.Records, path, info.ID, info.Algorithm)
}

func (c *cli) importTable(table, path string) {
	f, err := os.Open(path)
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	defer f.Close()

	imported, skipped, err := c.db.ImportTable(table, f)
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	fmt.Printf("imported %d records into %s (%d skipped)\n", imported, table, skipped)
}

func (c *cli) printResult(res *database.Result) {
	if len(res.Columns) == 0 {
		if res.Message != "" {
			fmt.Println(res.Message)
		} else {
			fmt.Printf("ok, %d rows affected\n", res.Affected)
		}
		return
	}

	fmt.Println(strings.Join(res.Columns, " | "))
	fmt.Println(strings.Repeat("-", len(strings.Join(res.Columns, " | "))))
	for _, row := range res.Rows {
		fmt.Println(strings.Join(row, " | "))
	}
	fmt.Printf("(%d rows)\n", len(res.Rows))
}

func (c *cli) printStats() {
	s := metrics.Default.Snapshot()
	fmt.Printf("fetch hits:       %d\n", s.FetchHits)
	fmt.Printf("fetch misses:     %d\n", s.FetchMisses)
	fmt.Printf("hit rate:         %.1f%%\n", s.HitRate)
	fmt.Printf("evictions:        %d\n", s.Evictions)
	fmt.Printf("flushes:          %d\n", s.Flushes)
	fmt.Printf("records inserted: %d\n", s.RecordsInserted)
	fmt.Printf("records deleted:  %d\n", s.RecordsDeleted)
	fmt.Printf("keys inserted:    %d\n", s.KeysInserted)
	fmt.Printf("keys deleted:     %d\n", s.KeysDeleted)
}

func (c *cli) printHelp() {
	fmt.Print(`SQL statements (terminate with ';'):
  CREATE TABLE users (id INT, name VARCHAR(50));
  INSERT INTO users VALUES (1, 'Alice');
  SELECT * FROM users WHERE id = 1;
  UPDATE users SET name = 'Bob' WHERE id = 1;
  DELETE FROM users WHERE id = 1;

Commands:
  index <table> <column>    create a B+tree index on an INT column
  export <table> <file>     write a compressed table snapshot
  import <table> <file>     load a snapshot into an existing table
  stats                     show storage engine counters
  help                      show this help
  exit | quit               leave
`)
}
