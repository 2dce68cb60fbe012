package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/timmy/doclens/internal/domain"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List documents for an owner",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

var statusCmd = &cobra.Command{
	Use:   "status [doc-id]",
	Short: "Show the ingestion status of a document",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Fail interrupted documents and requeue pending uploads",
	Long: `Marks documents left in processing by a dead process as failed, requeues
documents still waiting in uploading, and waits for the requeued work to finish.

Only documents whose processing started longer ago than the ingest job timeout
plus one minute are failed. A running server finishes or fails its own jobs
within the job timeout, so its in-flight work is left untouched. A pending
upload that a running server also holds is ingested once, by whichever process
reaches it first.`,
	Args: cobra.NoArgs,
	RunE: runReconcile,
}

var reconcileWait time.Duration

func init() {
	reconcileCmd.Flags().DurationVar(&reconcileWait, "wait", 30*time.Minute, "How long to wait for requeued documents")

	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(reconcileCmd)
}

func runList(cmd *cobra.Command, _ []string) error {
	if err := requireOwner(); err != nil {
		return err
	}
	ctx, cancel, application, err := bootstrap()
	if err != nil {
		return err
	}
	defer cancel()
	defer application.Close(time.Second)

	docs, err := application.Status.ListRecords(ctx, ownerID)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No documents.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tSIZE\tUPLOADED\tFILENAME")
	for _, doc := range docs {
		fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%s\n",
			doc.ID, doc.Status, doc.FileSize, doc.UploadedAt.Format(time.RFC3339), doc.Filename)
	}
	return w.Flush()
}

func runStatus(cmd *cobra.Command, args []string) error {
	if err := requireOwner(); err != nil {
		return err
	}
	id, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil || id == 0 {
		return fmt.Errorf("invalid document id %q", args[0])
	}

	ctx, cancel, application, err := bootstrap()
	if err != nil {
		return err
	}
	defer cancel()
	defer application.Close(time.Second)

	status, err := application.Status.GetStatus(ctx, uint(id), ownerID)
	if err != nil {
		return err
	}
	printStatus(cmd, uint(id), status)
	return nil
}

func runReconcile(cmd *cobra.Command, _ []string) error {
	ctx, cancel, application, err := bootstrap()
	if err != nil {
		return err
	}
	defer cancel()

	application.Dispatcher.Start(ctx)
	requeued, failed, err := application.Dispatcher.Recover(ctx)
	if err != nil {
		_ = application.Close(time.Second)
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Marked %d interrupted document(s) failed, requeued %d\n", failed, requeued)

	if err := application.Close(reconcileWait); err != nil {
		return fmt.Errorf("requeued documents did not finish: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Reconcile finished.")
	return nil
}

func printStatus(cmd *cobra.Command, id uint, status *domain.UploadStatus) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Document %d: %s\n", id, status.Filename)
	fmt.Fprintf(out, "  status:   %s\n", status.Status)
	fmt.Fprintf(out, "  progress: %.0f%%\n", status.Progress)
	if status.Message != "" {
		fmt.Fprintf(out, "  message:  %s\n", status.Message)
	}
}
