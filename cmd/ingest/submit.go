package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/timmy/doclens/internal/domain"
	"github.com/timmy/doclens/internal/logger"
)

var submitCmd = &cobra.Command{
	Use:   "submit [file]",
	Short: "Ingest a local file and wait for it to finish",
	Args:  cobra.ExactArgs(1),
	RunE:  runSubmit,
}

var (
	submitContentType string
	submitPoll        time.Duration
)

func init() {
	submitCmd.Flags().StringVar(&submitContentType, "content-type", "", "Content type (detected from the extension when empty)")
	submitCmd.Flags().DurationVar(&submitPoll, "poll", 500*time.Millisecond, "Status poll interval")
	rootCmd.AddCommand(submitCmd)
}

// contentTypeFor maps a file extension to a supported content type.
func contentTypeFor(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return domain.ContentTypePDF, nil
	case ".docx":
		return domain.ContentTypeDOCX, nil
	case ".md", ".markdown":
		return domain.ContentTypeMarkdown, nil
	default:
		return "", fmt.Errorf("%w: cannot detect content type of %s, pass --content-type", domain.ErrUnsupportedContentType, filepath.Base(path))
	}
}

func runSubmit(cmd *cobra.Command, args []string) error {
	if err := requireOwner(); err != nil {
		return err
	}
	path := args[0]
	contentType := submitContentType
	if contentType == "" {
		var err error
		if contentType, err = contentTypeFor(path); err != nil {
			return err
		}
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	ctx, cancel, application, err := bootstrap()
	if err != nil {
		return err
	}
	defer cancel()
	defer func() {
		if err := application.Close(application.Config.Server.ShutdownGrace); err != nil {
			logger.CtxWarn(ctx, "Ingestion did not stop cleanly: %v", err)
		}
	}()

	if err := application.StartIngestion(ctx, false); err != nil {
		return err
	}

	doc, err := application.Dispatcher.Submit(ctx, ownerID, filepath.Base(path), contentType, file)
	if err != nil {
		return fmt.Errorf("failed to submit %s: %w", path, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Submitted document %d (%s)\n", doc.ID, doc.Filename)

	status, err := waitForTerminal(ctx, doc.ID, submitPoll, func(ctx context.Context, id uint) (*domain.UploadStatus, error) {
		return application.Status.GetStatus(ctx, id, ownerID)
	})
	if err != nil {
		return err
	}
	printStatus(cmd, doc.ID, status)
	if status.Status == domain.DocumentStatusFailed {
		return fmt.Errorf("document %d failed", doc.ID)
	}
	return nil
}

type statusFunc func(ctx context.Context, id uint) (*domain.UploadStatus, error)

// waitForTerminal polls get until the document completes, fails or ctx ends.
func waitForTerminal(ctx context.Context, id uint, interval time.Duration, get statusFunc) (*domain.UploadStatus, error) {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		status, err := get(ctx, id)
		if err != nil {
			return nil, err
		}
		if status.Status.IsTerminal() {
			return status, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
