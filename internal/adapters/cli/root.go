package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kirillkom/tenant-rag/internal/core/ports"
)

// Services are the use cases the operator commands drive.
type Services struct {
	Docs    ports.DocumentService
	Query   ports.QueryService
	Cleaner ports.ChunkCleaner
}

// Opener builds the services on first use and returns a release func.
type Opener func(ctx context.Context) (Services, func(), error)

type rootOptions struct {
	tenant string
	json   bool
	open   Opener
}

// NewRootCommand assembles ragctl. Backends are only opened when a subcommand runs.
func NewRootCommand(open Opener) *cobra.Command {
	opts := &rootOptions{open: open}

	root := &cobra.Command{
		Use:           "ragctl",
		Short:         "Operate the tenant knowledge base",
		Long:          "ragctl ingests, queries and deletes tenant documents using the same services as the API.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.tenant, "tenant", "t", "", "tenant id (required)")
	root.PersistentFlags().BoolVar(&opts.json, "json", false, "output results as JSON")

	root.AddCommand(
		newIngestCommand(opts),
		newAskCommand(opts),
		newDeleteCommand(opts),
		newDocumentsCommand(opts),
	)
	return root
}

func (o *rootOptions) services(cmd *cobra.Command) (Services, func(), error) {
	if strings.TrimSpace(o.tenant) == "" {
		return Services{}, nil, errors.New("--tenant is required")
	}
	if o.open == nil {
		return Services{}, nil, errors.New("services not configured")
	}
	svc, release, err := o.open(cmd.Context())
	if err != nil {
		return Services{}, nil, fmt.Errorf("open services: %w", err)
	}
	if release == nil {
		release = func() {}
	}
	return svc, release, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}
