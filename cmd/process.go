package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/akhanna222/email2kg/internal/model"
)

var (
	processEmailSubject string
	processEmailBody    string
)

var processCmd = &cobra.Command{
	Use:   "process <file-or-directory>...",
	Short: "Process documents through extraction",
	Long: `Extracts text from the given files (pdf, xlsx, or plain text), classifies
each document, and extracts structured fields. Known layouts are handled by
learned templates; new layouts fall back to the LLM and teach a template
for next time.

Examples:
  # Process a single invoice
  email2kg process invoice.pdf

  # Process a directory of attachments with email context
  email2kg process ./inbox --subject "March invoices" --body "Attached as discussed"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runProcess,
}

func init() {
	processCmd.Flags().StringVar(&processEmailSubject, "subject", "", "email subject for context-aware extraction")
	processCmd.Flags().StringVar(&processEmailBody, "body", "", "email body for context-aware extraction")
	rootCmd.AddCommand(processCmd)
}

func runProcess(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	paths, err := collectFiles(args)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return eris.New("no files to process")
	}

	e, err := initEnv(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	email := model.EmailContext{Subject: processEmailSubject, Body: processEmailBody}
	result, err := e.Processor.ProcessBatch(ctx, paths, email)
	if err != nil {
		return err
	}

	for _, doc := range result.Processed {
		amount := "-"
		if v, ok := doc.ExtractedData["amount"]; ok {
			amount = fmt.Sprintf("%v", v)
		}
		fmt.Printf("%-40s %-15s amount=%s\n", doc.Filename, doc.DocumentType, amount)
	}
	for _, entry := range result.DLQ {
		fmt.Printf("%-40s FAILED (%s): %s\n", entry.Filename, entry.ErrorType, entry.Error)
	}

	zap.L().Info("process complete",
		zap.Int("processed", len(result.Processed)),
		zap.Int("failed", len(result.DLQ)),
	)
	if len(result.DLQ) > 0 {
		return eris.Errorf("%d of %d documents failed", len(result.DLQ), len(paths))
	}
	return nil
}

// collectFiles expands directories one level deep and keeps supported files.
func collectFiles(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, eris.Wrapf(err, "stat %s", arg)
		}
		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}

		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, eris.Wrapf(err, "read dir %s", arg)
		}
		for _, entry := range entries {
			if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
				continue
			}
			paths = append(paths, filepath.Join(arg, entry.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}
