package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/quizlens/client/internal/apierr"
	"github.com/quizlens/client/internal/domain/question"
	"github.com/quizlens/client/internal/extract"
	"github.com/quizlens/client/internal/progress"
	"github.com/quizlens/client/internal/service"
	"github.com/quizlens/client/internal/worker"
)

func (a *app) cmdUpload(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	bankID := fs.String("bank", "", "bank to save extracted questions into")
	save := fs.Bool("save", false, "save extracted questions after extraction")
	fs.Parse(args)
	if fs.NArg() == 0 {
		usage()
	}

	token, err := a.token()
	if err != nil {
		return err
	}

	if fs.NArg() == 1 {
		return a.uploadOne(ctx, fs.Arg(0), token, *bankID, *save)
	}
	return a.uploadBatch(ctx, fs.Args(), token, *bankID, *save)
}

// uploadOne runs a single interactive session with a progress bar.
func (a *app) uploadOne(ctx context.Context, path, token, bankID string, save bool) error {
	file, err := readFile(path)
	if err != nil {
		return err
	}

	svc := newService(a)
	est := progress.NewEstimator()
	est.StartSession()

	barCtx, stopBar := context.WithCancel(ctx)
	defer stopBar()
	barDone := make(chan struct{})
	go func() {
		defer close(barDone)
		est.Run(barCtx, 100*time.Millisecond, renderBar)
	}()

	result, err := svc.Upload(ctx, file, token, func(st service.Status) {
		switch st.Stage {
		case service.StagePolling:
			est.EnterPoll()
		case service.StageRetrying:
			fmt.Fprintf(os.Stderr, "\r%s\n", st.Message)
		}
	})
	if err != nil {
		stopBar()
		<-barDone
		fmt.Fprintln(os.Stderr)
		return err
	}

	// Let the bar play out its finish animation before printing results.
	est.Finish()
	select {
	case <-barDone:
	case <-time.After(2 * time.Second):
		stopBar()
	}
	fmt.Fprintln(os.Stderr)

	fmt.Printf("Extracted %d question(s) from %s (job %s)\n", len(result.Questions), file.Name, result.JobID)
	printQuestions(result.Questions)
	return a.maybeSave(ctx, token, bankID, save, result.Questions)
}

// uploadBatch pushes several files through a bounded worker pool; each file
// gets its own upload session.
func (a *app) uploadBatch(ctx context.Context, paths []string, token, bankID string, save bool) error {
	type outcome struct {
		questions []question.Question
		err       error
	}

	pool := worker.NewPool[outcome](ctx, a.cfg.BatchWorkers, len(paths))
	for _, path := range paths {
		p := path
		pool.Submit(p, func(ctx context.Context) outcome {
			file, err := readFile(p)
			if err != nil {
				return outcome{err: err}
			}
			// One service per file: a session never shares its service.
			result, err := newService(a).Upload(ctx, file, token, nil)
			if err != nil {
				return outcome{err: err}
			}
			return outcome{questions: result.Questions}
		})
	}
	pool.Close()

	var all []question.Question
	failures := 0
	for r := range pool.Results() {
		if r.Output.err != nil {
			failures++
			fmt.Fprintf(os.Stderr, "%s: %s\n", r.JobID, apierr.UserMessage(r.Output.err))
			continue
		}
		fmt.Printf("%s: %d question(s)\n", r.JobID, len(r.Output.questions))
		all = append(all, r.Output.questions...)
	}

	if len(all) > 0 {
		if err := a.maybeSave(ctx, token, bankID, save, all); err != nil {
			return err
		}
	}
	if failures > 0 {
		return fmt.Errorf("%d of %d uploads failed", failures, len(paths))
	}
	return nil
}

func (a *app) maybeSave(ctx context.Context, token, bankID string, save bool, questions []question.Question) error {
	if !save {
		return nil
	}
	if err := a.api.SaveQuestions(ctx, token, bankID, questions); err != nil {
		return err
	}
	fmt.Printf("Saved %d question(s) to bank %s\n", len(questions), bankID)
	return nil
}

func normalizeAll(items []extract.ExtractedItem) []question.Question {
	questions := make([]question.Question, len(items))
	for i, item := range items {
		questions[i] = item.Normalize()
	}
	return questions
}

func printQuestions(questions []question.Question) {
	for i, q := range questions {
		fmt.Printf("\n%d. %s", i+1, q.Text)
		if label := q.Difficulty.Label(); label != "" {
			fmt.Printf("  [%s]", label)
		}
		if q.Topic != "" {
			fmt.Printf("  (%s)", q.Topic)
		}
		fmt.Println()
		for _, opt := range q.Options {
			marker := " "
			if opt.Correct {
				marker = "*"
			}
			fmt.Printf("  %s %s) %s\n", marker, opt.Label, opt.Text)
		}
	}
}

// renderBar draws a one-line progress bar on stderr.
func renderBar(v float64) {
	const width = 30
	filled := int(v / 100 * width)
	bar := strings.Repeat("=", filled) + strings.Repeat(" ", width-filled)
	fmt.Fprintf(os.Stderr, "\r[%s] %3.0f%%", bar, v)
}
