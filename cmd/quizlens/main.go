package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/quizlens/client/internal/api"
	"github.com/quizlens/client/internal/apierr"
	"github.com/quizlens/client/internal/extract"
	"github.com/quizlens/client/internal/infrastructure/config"
	"github.com/quizlens/client/internal/service"
	"github.com/quizlens/client/internal/store"
	"github.com/quizlens/client/internal/transport"
)

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: quizlens <command> [options]

Commands:
  login    -email <email> -password <password>
  logout
  whoami
  banks    list your question banks
  upload   [-bank <id>] [-save] <image> [<image>...]
  jobs     show recent extraction jobs
  resume   [-bank <id>] [-save] <job-id>`)
	os.Exit(1)
}

// app bundles the wired dependencies every command needs.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *store.SQLiteStore
	api    *api.Client
	http   *transport.Client
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}

	cfg := config.Load()
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel()}))

	db, err := store.NewSQLite(cfg.StorePath)
	if err != nil {
		logger.Error("failed to open device store", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	httpClient := transport.New()
	a := &app{
		cfg:    cfg,
		logger: logger,
		store:  db,
		api:    api.NewClient(httpClient, cfg.BaseURL, cfg.Endpoints, logger),
		http:   httpClient,
	}

	// Ctrl-C cancels the in-flight session; the pipeline exits silently.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var cmdErr error
	switch os.Args[1] {
	case "login":
		cmdErr = a.cmdLogin(ctx, os.Args[2:])
	case "logout":
		cmdErr = a.cmdLogout()
	case "whoami":
		cmdErr = a.cmdWhoami(ctx)
	case "banks":
		cmdErr = a.cmdBanks(ctx)
	case "upload":
		cmdErr = a.cmdUpload(ctx, os.Args[2:])
	case "jobs":
		cmdErr = a.cmdJobs()
	case "resume":
		cmdErr = a.cmdResume(ctx, os.Args[2:])
	default:
		usage()
	}

	if cmdErr != nil {
		if apierr.Is(cmdErr, apierr.KindCancelled) {
			// User-initiated abort is not an error.
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, apierr.UserMessage(cmdErr))
		logger.Debug("command failed", "error", cmdErr)
		os.Exit(1)
	}
}

func logLevel() slog.Level {
	if os.Getenv("QUIZLENS_DEBUG") != "" {
		return slog.LevelDebug
	}
	return slog.LevelWarn
}

// ── Auth commands ───────────────────────────────────────────────────────────

func (a *app) cmdLogin(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	fs.Parse(args)

	token, u, err := a.api.Login(ctx, *email, *password)
	if err != nil {
		return err
	}
	if err := a.store.SaveAuth(token, u); err != nil {
		return err
	}
	fmt.Printf("Signed in as %s <%s>\n", u.Name, u.Email)
	return nil
}

func (a *app) cmdLogout() error {
	if err := a.store.ClearAuth(); err != nil {
		return err
	}
	fmt.Println("Signed out.")
	return nil
}

func (a *app) cmdWhoami(ctx context.Context) error {
	token, cached, err := a.store.Auth()
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apierr.New(apierr.KindUnauthenticated, "Not signed in. Run: quizlens login")
		}
		return err
	}

	// Prefer a fresh record; fall back to the cached one when offline.
	u, err := a.api.Me(ctx, token)
	if err != nil {
		if apierr.Is(err, apierr.KindNetworkUnavailable) {
			u = cached
		} else {
			return err
		}
	}
	fmt.Printf("%s <%s>\n", u.Name, u.Email)
	return nil
}

func (a *app) cmdBanks(ctx context.Context) error {
	token, err := a.token()
	if err != nil {
		return err
	}

	banks, err := a.api.Banks(ctx, token)
	if err != nil {
		return err
	}
	if len(banks) == 0 {
		fmt.Println("No question banks yet.")
		return nil
	}
	for _, b := range banks {
		fmt.Printf("%-20s  %s (%d questions)\n", b.ID, b.Name, b.QuestionsCount)
	}
	return nil
}

// ── Job history commands ────────────────────────────────────────────────────

func (a *app) cmdJobs() error {
	records, err := a.store.Jobs(20)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("No extraction jobs yet.")
		return nil
	}
	for _, rec := range records {
		fmt.Printf("%-36s  %-9s  %-3d  %s  %s\n",
			rec.JobID, rec.Status, rec.ItemsCount, rec.CreatedAt.Format("2006-01-02 15:04"), rec.FileName)
	}
	return nil
}

func (a *app) cmdResume(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("resume", flag.ExitOnError)
	bankID := fs.String("bank", "", "bank to save extracted questions into")
	save := fs.Bool("save", false, "save extracted questions after polling")
	fs.Parse(args)
	if fs.NArg() != 1 {
		usage()
	}
	jobID := fs.Arg(0)

	token, err := a.token()
	if err != nil {
		return err
	}
	if _, err := a.store.Job(jobID); errors.Is(err, store.ErrNotFound) {
		a.logger.Warn("resuming a job not in local history", "job_id", jobID)
	}

	poller := a.newPoller()
	result, err := poller.Poll(ctx, jobID, token, nil)
	if err != nil {
		return err
	}

	questions := normalizeAll(result.Items)
	if err := a.store.CompleteJob(jobID, string(extract.JobReady), len(questions)); err != nil && !errors.Is(err, store.ErrNotFound) {
		a.logger.Warn("failed to update job history", "error", err)
	}
	printQuestions(questions)
	return a.maybeSave(ctx, token, *bankID, *save, questions)
}

func (a *app) token() (string, error) {
	token, _, err := a.store.Auth()
	if errors.Is(err, store.ErrNotFound) {
		return "", apierr.New(apierr.KindUnauthenticated, "Not signed in. Run: quizlens login")
	}
	return token, err
}

func (a *app) newPoller() *extract.Poller {
	return extract.NewPoller(a.http, a.cfg.BaseURL+a.cfg.Endpoints.ImageResult, pollerConfig(a.cfg.Poll), a.logger)
}

func pollerConfig(p config.PollConfig) extract.PollerConfig {
	steps := make([]extract.BackoffStep, len(p.Steps))
	for i, s := range p.Steps {
		steps[i] = extract.BackoffStep{UpToAttempt: s.UpToAttempt, Interval: s.Interval}
	}
	return extract.PollerConfig{
		MaxAttempts:        p.MaxAttempts,
		AttemptTimeout:     p.AttemptTimeout,
		ErrorAllowance:     p.ErrorAllowance,
		NetworkDelayFactor: p.NetworkDelayFactor,
		Backoff:            extract.Backoff{Steps: steps},
	}
}

func newService(a *app) *service.UploadService {
	submitter := extract.NewSubmitter(a.http, a.cfg.BaseURL+a.cfg.Endpoints.ImageUpload, a.logger)
	svc := service.NewUploadService(submitter, a.newPoller(), a.store, a.logger)
	svc.SetTiming(a.cfg.GraceWait, a.cfg.RetryDelay, a.cfg.MaxRetries)
	return svc
}

// readFile loads an image or PDF from disk into a FileRef.
func readFile(path string) (extract.FileRef, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return extract.FileRef{}, apierr.Wrap(apierr.KindInvalidInput, "Could not read "+path+".", err)
	}
	return extract.FileRef{
		Name: filepath.Base(path),
		MIME: mimeFromPath(path),
		Data: data,
	}, nil
}

func mimeFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	case ".heic":
		return "image/heic"
	case ".pdf":
		return "application/pdf"
	default:
		return ""
	}
}
