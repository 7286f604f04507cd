package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jackzampolin/docpond/internal/config"
	"github.com/jackzampolin/docpond/internal/home"
	"github.com/jackzampolin/docpond/internal/jobs"
	"github.com/jackzampolin/docpond/internal/pdf"
	"github.com/jackzampolin/docpond/internal/pipeline/processdoc"
	"github.com/jackzampolin/docpond/internal/providers"
	"github.com/jackzampolin/docpond/internal/records"
	"github.com/jackzampolin/docpond/internal/storage"
	"github.com/jackzampolin/docpond/internal/svcctx"
)

var (
	processBackend string
	processZoom    float64
	processOut     string
)

var processCmd = &cobra.Command{
	Use:   "process <pdf>",
	Short: "Process one PDF without the server",
	Long: `Process a single scanned PDF through the full OCR pipeline and write
per-page markdown to an output directory. Uses the same configuration as
the server but runs entirely in-process.

Examples:
  docpond process book.pdf
  docpond process book.pdf --backend ollama --out ./book-md`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))

		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		if err := pdf.Validate(data); err != nil {
			return err
		}

		h, err := home.New(homeDir)
		if err != nil {
			return err
		}
		if err := h.EnsureExists(); err != nil {
			return err
		}
		cm, err := config.NewManager(cfgFile)
		if err != nil {
			return err
		}

		registry := providers.NewRegistry()
		registry.SetLogger(logger)
		registry.Reload(cm.Get().ToProviderRegistryConfig())

		store := records.NewMemoryStore()
		blobs := storage.NewMemory()
		manager := jobs.NewManager()
		scheduler := jobs.NewScheduler(jobs.SchedulerConfig{Logger: logger, Manager: manager})
		if err := scheduler.InitFromRegistry(registry); err != nil {
			return err
		}
		scheduler.InitCPUPool(cm.Get().Defaults.MaxWorkers)
		processdoc.RegisterHandlers(scheduler)

		services := &svcctx.Services{
			Records:   store,
			Storage:   blobs,
			Engine:    pdf.NewEngine(),
			Registry:  registry,
			Scheduler: scheduler,
			Config:    cm,
			Logger:    logger,
			Home:      h,
		}
		runCtx, cancel := context.WithCancel(svcctx.WithServices(ctx, services))
		defer cancel()
		go scheduler.Start(runCtx)

		doc := &records.Document{
			ID:     uuid.New().String(),
			Title:  strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0])),
			Status: records.StatusPending,
		}
		doc.SourceID = storage.SourcePDFKey(doc.ID)
		if _, err := blobs.Save(doc.SourceID, data); err != nil {
			return err
		}
		if err := store.CreateDocument(runCtx, doc); err != nil {
			return err
		}

		jobCfg := processdoc.Config{
			DocumentID:    doc.ID,
			Backend:       processBackend,
			Zoom:          processZoom,
			SkipThumbnail: true,
		}
		if jobCfg.Backend == "" {
			jobCfg.Backend = cm.Get().DefaultBackend()
		}
		job, err := processdoc.New(jobCfg)
		if err != nil {
			return err
		}
		if err := scheduler.Submit(runCtx, job); err != nil {
			return err
		}

		// Poll the job record until it reaches a terminal state.
		ticker := time.NewTicker(500 * time.Millisecond)
		defer ticker.Stop()
	wait:
		for {
			select {
			case <-runCtx.Done():
				return runCtx.Err()
			case <-ticker.C:
			}
			rec, err := manager.Get(runCtx, job.ID())
			if err != nil {
				return err
			}
			switch rec.Status {
			case jobs.StatusCompleted:
				break wait
			case jobs.StatusFailed:
				return fmt.Errorf("processing failed: %s", rec.Error)
			}
		}

		outDir := processOut
		if outDir == "" {
			outDir = doc.Title + "-md"
		}
		if err := os.MkdirAll(outDir, 0755); err != nil {
			return err
		}

		pages, err := store.ListPages(runCtx, doc.ID)
		if err != nil {
			return err
		}
		written := 0
		for _, p := range pages {
			if p.Status != records.StatusCompleted {
				logger.Warn("page not completed", "page", p.PageNumber, "status", p.Status)
				continue
			}
			name := filepath.Join(outDir, fmt.Sprintf("page_%04d.md", p.PageNumber))
			if err := os.WriteFile(name, []byte(p.Markdown), 0644); err != nil {
				return err
			}
			written++
		}

		fmt.Printf("Wrote %d pages to %s\n", written, outDir)
		return nil
	},
}

func init() {
	processCmd.Flags().StringVar(&processBackend, "backend", "", "OCR backend name")
	processCmd.Flags().Float64Var(&processZoom, "zoom", 0, "render zoom factor")
	processCmd.Flags().StringVar(&processOut, "out", "", "output directory (default: <title>-md)")
	rootCmd.AddCommand(processCmd)
}
