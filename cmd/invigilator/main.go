package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pavelanni/invigilator/internal/handler"
	"github.com/pavelanni/invigilator/internal/model"
	"github.com/pavelanni/invigilator/internal/session"
	"github.com/pavelanni/invigilator/internal/store"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "invigilator",
		Short: "Timed exam server with integrity monitoring",
	}

	serve := serveCmd()
	root.AddCommand(serve, exportCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `invigilator --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP exam server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("db", "invigilator.db", "SQLite database path")
	f.StringSliceP("questions", "q", nil, "Paths to questions JSON files (repeatable)")
	f.Int("duration", 3600, "Exam duration in seconds")
	f.IntP("num-questions", "n", 0, "Number of questions per paper (0 = all matching)")
	f.Bool("shuffle", true, "Randomize question order")
	f.Int("teacher-clicks", 5, "Hidden clicks required before the dashboard key prompt")
	f.String("teacher-key", "", "Dashboard access key (or set INVIGILATOR_TEACHER_KEY)")
	f.Duration("tick-interval", time.Second, "How often session clocks are polled")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export exam results as CSV",
		RunE:  runExport,
	}
	f := cmd.Flags()
	f.String("db", "invigilator.db", "SQLite database path")
	f.String("class", "", "Filter by class level")
	f.String("department", "", "Filter by department")
	f.String("subject", "", "Filter by subject")
	f.String("rating", "", "Filter by behavior rating")
	f.String("from", "", "Earliest submission date (YYYY-MM-DD)")
	f.String("to", "", "Latest submission date (YYYY-MM-DD)")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("INVIGILATOR")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("invigilator")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/invigilator")
	v.AddConfigPath("/etc/invigilator")
	v.AddConfigPath("/data")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := seedTeacherKey(db, v.GetString("teacher-key")); err != nil {
		return fmt.Errorf("seed teacher key: %w", err)
	}

	if err := loadQuestions(db, v.GetStringSlice("questions")); err != nil {
		return fmt.Errorf("load questions: %w", err)
	}

	if err := db.CleanupExpiredSessions(); err != nil {
		slog.Warn("failed to clean up expired dashboard tokens", "error", err)
	}

	examCfg := model.ExamConfig{
		DurationSeconds: v.GetInt("duration"),
		NumQuestions:    v.GetInt("num-questions"),
		Shuffle:         v.GetBool("shuffle"),
		TeacherClicks:   v.GetInt("teacher-clicks"),
	}

	manager := session.NewManager(db, db, db, examCfg, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go manager.Run(ctx, v.GetDuration("tick-interval"))

	h := handler.New(manager, db, examCfg)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	h.Routes(r)

	addr := v.GetString("addr")
	slog.Info("starting server",
		"addr", addr,
		"duration_seconds", examCfg.DurationSeconds,
		"num_questions", examCfg.NumQuestions,
		"shuffle", examCfg.Shuffle,
		"tick_interval", v.GetDuration("tick-interval"),
	)
	return http.ListenAndServe(addr, r)
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	filter := store.ResultFilter{
		Class:      v.GetString("class"),
		Department: v.GetString("department"),
		Subject:    v.GetString("subject"),
		Rating:     v.GetString("rating"),
	}
	if from := v.GetString("from"); from != "" {
		filter.From, err = time.Parse("2006-01-02", from)
		if err != nil {
			return fmt.Errorf("parse --from: %w", err)
		}
	}
	if to := v.GetString("to"); to != "" {
		t, err := time.Parse("2006-01-02", to)
		if err != nil {
			return fmt.Errorf("parse --to: %w", err)
		}
		filter.To = t.Add(24*time.Hour - time.Second)
	}

	outPath := v.GetString("output")
	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = os.Stdout
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	return db.ExportResultsCSV(w, filter)
}

// loadQuestions imports question files, skipping files that were already
// imported with the same content. A changed file is skipped too: its
// questions may be referenced by running sessions.
func loadQuestions(db *store.Store, paths []string) error {
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}

		hash := sha256sum(data)
		storedHash, err := db.GetImportedFileHash(path)
		if err != nil {
			return fmt.Errorf("check import status for %s: %w", path, err)
		}

		if storedHash == hash {
			slog.Info("questions file unchanged, skipping", "path", path)
			continue
		}
		if storedHash != "" {
			slog.Warn("questions file changed since last import, skipping to avoid breaking existing sessions",
				"path", path)
			continue
		}

		var questions []model.Question
		if err := json.Unmarshal(data, &questions); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}

		for _, q := range questions {
			if _, err := db.InsertQuestion(q); err != nil {
				return fmt.Errorf("insert question from %s: %w", path, err)
			}
		}

		if err := db.SetImportedFileHash(path, hash); err != nil {
			return fmt.Errorf("record import for %s: %w", path, err)
		}
		slog.Info("imported questions", "path", path, "count", len(questions))
	}

	return nil
}

func sha256sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// seedTeacherKey stores the dashboard key on first run. A key passed on
// a later run replaces the stored one.
func seedTeacherKey(db *store.Store, key string) error {
	if key != "" {
		if err := db.SetTeacherKey(key); err != nil {
			return err
		}
		slog.Info("dashboard access key updated")
		return nil
	}

	configured, err := db.HasTeacherKey()
	if err != nil {
		return err
	}
	if !configured {
		return fmt.Errorf("dashboard key is required: set --teacher-key flag or INVIGILATOR_TEACHER_KEY env var")
	}
	return nil
}
