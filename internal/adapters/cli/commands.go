package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kirillkom/tenant-rag/internal/core/ports"
)

func newIngestCommand(opts *rootOptions) *cobra.Command {
	var mimeType string
	cmd := &cobra.Command{
		Use:   "ingest [file]",
		Short: "Upload a pdf or text document for a tenant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, release, err := opts.services(cmd)
			if err != nil {
				return err
			}
			defer release()

			path := args[0]
			f, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("open %s: %w", path, err)
			}
			defer f.Close()

			if mimeType == "" {
				mimeType = mimeFromExtension(path)
			}
			result, err := svc.Docs.Upload(cmd.Context(), ports.UploadRequest{
				TenantID: opts.tenant,
				Filename: filepath.Base(path),
				MimeType: mimeType,
				Body:     f,
			})
			if err != nil {
				return fmt.Errorf("ingest failed: %w", err)
			}
			if opts.json {
				return printJSON(cmd, result)
			}
			cmd.Printf("Ingested %s as %s (%d chunks)\n", result.Document.Filename, result.Document.ID, len(result.Document.ChunkIDs))
			return nil
		},
	}
	cmd.Flags().StringVar(&mimeType, "mime", "", "mime type (defaults to the file extension)")
	return cmd
}

func newAskCommand(opts *rootOptions) *cobra.Command {
	var (
		name string
		k    int
	)
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer a question from the tenant's documents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, release, err := opts.services(cmd)
			if err != nil {
				return err
			}
			defer release()

			answer, err := svc.Query.Ask(cmd.Context(), ports.AskRequest{
				TenantID:   opts.tenant,
				TenantName: name,
				Question:   strings.Join(args, " "),
				K:          k,
			})
			if err != nil {
				return fmt.Errorf("ask failed: %w", err)
			}
			if opts.json {
				return printJSON(cmd, answer)
			}
			cmd.Println(answer.Text)
			for i, src := range answer.Sources {
				cmd.Printf("  [%d] %s (%.3f)\n", i+1, src.ID, src.Score)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "tenant display name used in the prompt")
	cmd.Flags().IntVarP(&k, "k", "k", 0, "number of chunks to retrieve (0 uses the default)")
	return cmd
}

func newDeleteCommand(opts *rootOptions) *cobra.Command {
	var chunkIDs []string
	cmd := &cobra.Command{
		Use:   "delete [document-id]",
		Short: "Delete a document or raw chunk ids",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && len(chunkIDs) == 0 {
				return fmt.Errorf("either a document id or --chunks is required")
			}
			svc, release, err := opts.services(cmd)
			if err != nil {
				return err
			}
			defer release()

			removed := 0
			if len(args) == 1 {
				n, err := svc.Docs.Delete(cmd.Context(), opts.tenant, args[0])
				if err != nil {
					return fmt.Errorf("delete failed: %w", err)
				}
				removed += n
			}
			if len(chunkIDs) > 0 {
				removed += svc.Cleaner.Cleanup(cmd.Context(), opts.tenant, chunkIDs)
			}
			if opts.json {
				return printJSON(cmd, map[string]int{"removed": removed})
			}
			cmd.Printf("Removed %d chunks\n", removed)
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&chunkIDs, "chunks", nil, "comma separated chunk ids to delete")
	return cmd
}

func newDocumentsCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "documents",
		Aliases: []string{"ls"},
		Short:   "List the tenant's documents",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, release, err := opts.services(cmd)
			if err != nil {
				return err
			}
			defer release()

			docs, err := svc.Docs.List(cmd.Context(), opts.tenant)
			if err != nil {
				return fmt.Errorf("list failed: %w", err)
			}
			if opts.json {
				return printJSON(cmd, docs)
			}
			if len(docs) == 0 {
				cmd.Println("No documents found.")
				return nil
			}
			for _, doc := range docs {
				cmd.Printf("%s  %-8s  %-9s  %3d chunks  %s\n",
					doc.ID, doc.SourceType, doc.Status, len(doc.ChunkIDs), doc.Filename)
			}
			return nil
		},
	}
}

func mimeFromExtension(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return "application/pdf"
	case ".md", ".markdown":
		return "text/markdown"
	default:
		return "text/plain"
	}
}
