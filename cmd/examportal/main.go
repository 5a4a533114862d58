package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"

	"github.com/pavelanni/examportal/internal/auth"
	"github.com/pavelanni/examportal/internal/exam"
	"github.com/pavelanni/examportal/internal/handler"
	appI18n "github.com/pavelanni/examportal/internal/i18n"
	"github.com/pavelanni/examportal/internal/llm"
	"github.com/pavelanni/examportal/internal/llm/prompts"
	"github.com/pavelanni/examportal/internal/model"
	"github.com/pavelanni/examportal/internal/questions"
	"github.com/pavelanni/examportal/internal/store"
)

func main() {
	// A missing .env is fine; real environment variables still apply.
	_ = godotenv.Load()

	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "examportal",
		Short: "Online exam portal with automatic scoring and teacher review",
	}

	serve := serveCmd()
	root.AddCommand(serve, exportCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("db", "examportal.db", "SQLite database path")
	f.StringSliceP("questions", "q", nil, "Paths to questions JSON files (repeatable)")
	f.StringP("lang", "l", "en", "Default language for API messages (en, ru)")
	f.String("jwt-secret", "", "Secret for signing access tokens (or set EXAMPORTAL_JWT_SECRET)")
	f.Duration("token-ttl", auth.DefaultTTL, "Access token lifetime")
	f.String("admin-password", "", "Initial admin password (or set EXAMPORTAL_ADMIN_PASSWORD)")
	f.Int("max-attempts", exam.DefaultMaxAttempts, "Times a student may start an assigned exam")
	f.Duration("abandon-after", 0, "Fail started exams not submitted within this duration (0 = never)")
	f.Duration("sweep-interval", 5*time.Minute, "How often to look for abandoned exams")
	f.String("llm-url", "", "OpenAI-compatible API base URL for advisory marks (empty = disabled)")
	f.String("llm-key", "ollama", "API key for LLM")
	f.String("llm-model", "llama3.2", "LLM model name")
	f.Int("llm-concurrency", 2, "Maximum concurrent advisory requests")
	f.String("prompt-variant", string(prompts.PromptStandard), "Advisory prompt variant (strict, standard, lenient)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the submissions of an exam as JSON",
		RunE:  runExport,
	}
	f := cmd.Flags()
	f.String("db", "examportal.db", "SQLite database path")
	f.String("exam", "", "Exam title to export (required)")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")

	_ = cmd.MarkFlagRequired("exam")

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

	v.SetEnvPrefix("EXAMPORTAL")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("examportal")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/examportal")
	v.AddConfigPath("/etc/examportal")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := seedAdmin(ctx, db, v.GetString("admin-password")); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	if err := loadQuestions(ctx, db, v.GetStringSlice("questions")); err != nil {
		return fmt.Errorf("load questions: %w", err)
	}
	if count, err := db.QuestionCount(ctx); err == nil {
		slog.Info("question bank ready", "questions", count)
	}

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	tokens, err := auth.NewIssuer(v.GetString("jwt-secret"), v.GetDuration("token-ttl"))
	if err != nil {
		return fmt.Errorf("create token issuer: %w", err)
	}

	gate := exam.NewGate(db, v.GetInt("max-attempts"))
	subs := exam.NewSubmissions(db, gate)
	advisoryCtx, cancelAdvisory := context.WithCancel(ctx)
	defer subs.Wait()
	defer cancelAdvisory()

	if llmURL := v.GetString("llm-url"); llmURL != "" {
		variant := strings.ToLower(strings.TrimSpace(v.GetString("prompt-variant")))
		if !prompts.IsValidVariant(variant) {
			slog.Warn("invalid prompt-variant, using standard", "variant", variant)
			variant = string(prompts.PromptStandard)
		}
		advisor, err := llm.New(llmURL, v.GetString("llm-key"), v.GetString("llm-model"), prompts.PromptVariant(variant))
		if err != nil {
			return fmt.Errorf("create LLM client: %w", err)
		}
		subs.UseAdvisor(advisoryCtx, advisor, v.GetInt("llm-concurrency"))
		slog.Info("advisory marking enabled", "url", llmURL, "model", v.GetString("llm-model"), "variant", variant)
	}

	h, err := handler.New(db, gate, subs, tokens, model.ExamConfig{
		MaxAttempts: gate.MaxAttempts(),
		Lang:        lang,
	})
	if err != nil {
		return fmt.Errorf("create handler: %w", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	h.Routes(r)

	srv := &http.Server{
		Addr:              v.GetString("addr"),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("starting server", "addr", srv.Addr, "lang", lang, "max_attempts", gate.MaxAttempts())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if abandonAfter := v.GetDuration("abandon-after"); abandonAfter > 0 {
		sweeper, err := startSweeper(gate, abandonAfter, v.GetDuration("sweep-interval"))
		if err != nil {
			return fmt.Errorf("schedule abandoned exam sweep: %w", err)
		}
		g.Go(func() error {
			<-gctx.Done()
			<-sweeper.Stop().Done()
			return nil
		})
	}

	return g.Wait()
}

// startSweeper schedules a periodic job that fails started exams left unsubmitted
// for longer than abandonAfter.
func startSweeper(gate *exam.Gate, abandonAfter, interval time.Duration) (*cron.Cron, error) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	c := cron.New()
	_, err := c.AddFunc("@every "+interval.String(), func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		n, err := gate.ExpireAbandoned(ctx, abandonAfter)
		if err != nil {
			slog.Error("abandoned exam sweep failed", "error", err)
			return
		}
		if n > 0 {
			slog.Info("failed abandoned exams", "count", n)
		}
	})
	if err != nil {
		return nil, err
	}
	c.Start()
	slog.Info("abandoned exam sweep scheduled", "abandon_after", abandonAfter, "interval", interval)
	return c, nil
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	title := v.GetString("exam")
	results, err := db.ExportExam(ctx, title)
	if err != nil {
		return fmt.Errorf("export submissions: %w", err)
	}
	if results == nil {
		results = []model.StudentResult{}
	}

	export := model.ExamExport{
		ExamTitle:  title,
		ExportedAt: time.Now().UTC(),
		Results:    results,
	}
	summaries, err := db.ExamSummaries(ctx)
	if err != nil {
		return fmt.Errorf("summarize exams: %w", err)
	}
	for i := range summaries {
		if summaries[i].ExamTitle == title {
			export.Summary = &summaries[i]
			break
		}
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
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

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	_, _ = fmt.Fprintln(w)

	slog.Info("exported exam", "exam", title, "submissions", len(results))
	return nil
}

// loadQuestions imports question files given on the command line. Files already
// imported are skipped; files whose content changed are skipped with a warning
// so existing submissions keep the question order they were graded against.
func loadQuestions(ctx context.Context, db *store.Store, paths []string) error {
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		_, err = questions.Import(ctx, db, path, data, "", false)
		switch {
		case errors.Is(err, questions.ErrUnchanged):
			slog.Info("questions file unchanged, skipping", "path", path)
		case errors.Is(err, questions.ErrChanged):
			slog.Warn("questions file changed since last import, skipping", "path", path)
		case err != nil:
			return err
		}
	}
	return nil
}

func seedAdmin(ctx context.Context, db *store.Store, password string) error {
	count, err := db.UserCount(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	if password == "" {
		return fmt.Errorf("admin password is required: set --admin-password flag or EXAMPORTAL_ADMIN_PASSWORD env var")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	_, err = db.CreateUser(ctx, model.User{
		Username:     "admin",
		DisplayName:  "Administrator",
		PasswordHash: string(hash),
		Role:         model.UserRoleAdmin,
		Active:       true,
	})
	if err != nil {
		return fmt.Errorf("create admin user: %w", err)
	}

	slog.Info("seeded default admin user", "username", "admin")
	return nil
}
