package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kotadb/kotadb/pkg/config"
	"github.com/kotadb/kotadb/pkg/document"
	"github.com/kotadb/kotadb/pkg/kotadb"
	"github.com/kotadb/kotadb/pkg/log"
	"github.com/kotadb/kotadb/pkg/metrics"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "kotadb",
	Short: "KotaDB - a document-oriented storage and indexing core",
	Long: `KotaDB stores markdown-like documents on disk with a write-ahead
log, a B+ tree primary-path index, and an inverted trigram content
index, composed behind a durability/caching/retry wrapper stack.`,
}

func init() {
	rootCmd.PersistentFlags().String("data-dir", "./kotadb-data", "Root directory for all on-disk state")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().Bool("use-binary-index", false, "Use the memory-mapped trigram index variant")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(insertCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(searchPathCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(serveMetricsCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")
	log.Init(log.Config{Level: log.Level(logLevel), JSONOutput: logJSON})
}

func openDatabase(cmd *cobra.Command) (*kotadb.Database, error) {
	dataDir, _ := cmd.Flags().GetString("data-dir")
	useBinary, _ := cmd.Flags().GetBool("use-binary-index")
	cfg := config.FromEnv(config.Apply(config.Default(),
		config.WithDataDir(dataDir),
		config.WithBinaryIndex(useBinary),
	))
	return kotadb.Open(cfg)
}

var insertCmd = &cobra.Command{
	Use:   "insert PATH TITLE",
	Short: "Insert a document, reading its content from stdin",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDatabase(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		path, err := document.NewValidatedPath(args[0])
		if err != nil {
			return err
		}
		title, err := document.NewValidatedTitle(args[1])
		if err != nil {
			return err
		}
		content, err := readAllStdin()
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		doc, err := document.NewBuilder().WithPath(path).WithTitle(title).WithContent(content).IntoPersisted()
		if err != nil {
			return err
		}
		if err := db.Insert(doc); err != nil {
			return err
		}
		fmt.Printf("inserted %s (%s)\n", doc.Path(), doc.ID())
		return nil
	},
}

var getCmd = &cobra.Command{
	Use:   "get ID",
	Short: "Fetch a document by id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDatabase(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		id, err := document.ParseDocumentId(args[0])
		if err != nil {
			return err
		}
		doc, err := db.Get(id)
		if err != nil {
			return err
		}
		return printDocument(doc)
	},
}

var searchCmd = &cobra.Command{
	Use:   "search QUERY",
	Short: "Search document content via the trigram index",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDatabase(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		limit, _ := cmd.Flags().GetInt("limit")
		results, err := db.Search(args[0], limit)
		if err != nil {
			return err
		}
		for _, doc := range results {
			fmt.Printf("%s  %s\n", doc.ID(), doc.Path())
		}
		return nil
	},
}

var searchPathCmd = &cobra.Command{
	Use:   "search-path PATTERN",
	Short: "Search document paths via the primary index",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDatabase(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		results, err := db.SearchPath(args[0])
		if err != nil {
			return err
		}
		for _, doc := range results {
			fmt.Printf("%s  %s\n", doc.ID(), doc.Path())
		}
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Coordinated-delete a document from all three stores",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDatabase(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		id, err := document.ParseDocumentId(args[0])
		if err != nil {
			return err
		}
		if err := db.Delete(id); err != nil {
			return err
		}
		fmt.Printf("deleted %s\n", id)
		return nil
	},
}

var serveMetricsCmd = &cobra.Command{
	Use:   "serve-metrics",
	Short: "Open the database and serve Prometheus metrics and health endpoints",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDatabase(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		metrics.SetVersion("dev")
		metrics.RegisterComponent("database", true, "ready")

		addr, _ := cmd.Flags().GetString("addr")
		http.Handle("/metrics", metrics.Handler())
		http.Handle("/health", metrics.HealthHandler())
		http.Handle("/ready", metrics.ReadyHandler())
		http.Handle("/live", metrics.LivenessHandler())

		errCh := make(chan error, 1)
		go func() {
			if err := http.ListenAndServe(addr, nil); err != nil {
				errCh <- err
			}
		}()
		fmt.Printf("metrics endpoint: http://%s/metrics\n", addr)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		select {
		case <-sigCh:
			fmt.Println("shutting down")
		case err := <-errCh:
			return fmt.Errorf("metrics server error: %w", err)
		}
		return nil
	},
}

func init() {
	searchCmd.Flags().Int("limit", 20, "Maximum number of results")
	serveMetricsCmd.Flags().String("addr", "127.0.0.1:9090", "Metrics server listen address")
}

func readAllStdin() ([]byte, error) {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return nil, err
	}
	if (stat.Mode() & os.ModeCharDevice) != 0 {
		return nil, nil
	}
	buf := make([]byte, 0, 4096)
	chunk := make([]byte, 4096)
	for {
		n, err := os.Stdin.Read(chunk)
		buf = append(buf, chunk[:n]...)
		if err != nil {
			break
		}
	}
	return buf, nil
}

func printDocument(doc document.Document) error {
	out := struct {
		ID      string `json:"id"`
		Path    string `json:"path"`
		Title   string `json:"title"`
		Content string `json:"content"`
	}{
		ID:      doc.ID().String(),
		Path:    doc.Path().String(),
		Title:   doc.Title().String(),
		Content: string(doc.Content()),
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
