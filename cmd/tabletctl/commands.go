package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jrife/tablets/catalog/catalogpb"
	"github.com/jrife/tablets/transport"
	"github.com/spf13/cobra"
)

// dialer connects to a catalog. The returned func closes the connection.
type dialer func(ctx context.Context, address string) (transport.CatalogService, func() error, error)

type options struct {
	address string
	timeout time.Duration
}

func newRootCommand(dial dialer) *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "tabletctl",
		Short:         "manage tablets",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&opts.address, "catalog", "127.0.0.1:7070", "address of the catalog")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "deadline of the request")

	// run dials the catalog and calls fn with a context bounded by the timeout
	run := func(fn func(ctx context.Context, cmd *cobra.Command, service transport.CatalogService, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), opts.timeout)
			defer cancel()

			service, closeConn, err := dial(ctx, opts.address)

			if err != nil {
				return fmt.Errorf("could not connect to catalog at %s: %w", opts.address, err)
			}

			defer closeConn()

			return fn(ctx, cmd, service, args)
		}
	}

	root.AddCommand(&cobra.Command{
		Use:   "replace <tablet-id>",
		Short: "replace a tablet with a new empty tablet over the same partition range",
		Args:  cobra.ExactArgs(1),
		RunE: run(func(ctx context.Context, cmd *cobra.Command, service transport.CatalogService, args []string) error {
			newTabletID, err := service.ReplaceTablet(ctx, args[0])

			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "replaced %s with %s\n", args[0], newTabletID)

			return nil
		}),
	})

	root.AddCommand(&cobra.Command{
		Use:   "get <tablet-id>",
		Short: "show a tablet",
		Args:  cobra.ExactArgs(1),
		RunE: run(func(ctx context.Context, cmd *cobra.Command, service transport.CatalogService, args []string) error {
			tablet, err := service.GetTablet(ctx, args[0])

			if err != nil {
				return err
			}

			printTablets(cmd.OutOrStdout(), []*catalogpb.TabletRecord{tablet})

			return nil
		}),
	})

	var all bool
	list := &cobra.Command{
		Use:   "list <table-id>",
		Short: "list the tablets of a table",
		Args:  cobra.ExactArgs(1),
		RunE: run(func(ctx context.Context, cmd *cobra.Command, service transport.CatalogService, args []string) error {
			tablets, err := service.ListTablets(ctx, args[0], all)

			if err != nil {
				return err
			}

			printTablets(cmd.OutOrStdout(), tablets)

			return nil
		}),
	}
	list.Flags().BoolVar(&all, "all", false, "include REPLACED and DELETED tablets")
	root.AddCommand(list)

	root.AddCommand(&cobra.Command{
		Use:   "status <tablet-id>",
		Short: "show the outcome of the last replacement of a tablet",
		Args:  cobra.ExactArgs(1),
		RunE: run(func(ctx context.Context, cmd *cobra.Command, service transport.CatalogService, args []string) error {
			request, err := service.ReplacementStatus(ctx, args[0])

			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%s\n", request.TabletId, request.Outcome, request.NewTabletId, request.Error)

			return nil
		}),
	})

	root.AddCommand(&cobra.Command{
		Use:   "tables",
		Short: "list tables",
		Args:  cobra.NoArgs,
		RunE: run(func(ctx context.Context, cmd *cobra.Command, service transport.CatalogService, args []string) error {
			tables, err := service.ListTables(ctx)

			if err != nil {
				return err
			}

			for _, table := range tables {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%d\n", table.TableId, table.Name, table.ReplicationFactor)
			}

			return nil
		}),
	})

	var splits []string
	var replicationFactor int
	createTable := &cobra.Command{
		Use:   "create-table <name>",
		Short: "create a table split at the given keys",
		Args:  cobra.ExactArgs(1),
		RunE: run(func(ctx context.Context, cmd *cobra.Command, service transport.CatalogService, args []string) error {
			splitPoints := make([][]byte, 0, len(splits))

			for _, split := range splits {
				splitPoints = append(splitPoints, []byte(split))
			}

			table, tablets, err := service.CreateTable(ctx, args[0], splitPoints, replicationFactor)

			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "created table %s\n", table.TableId)
			printTablets(cmd.OutOrStdout(), tablets)

			return nil
		}),
	}
	createTable.Flags().StringSliceVar(&splits, "split", nil, "split points, in increasing order")
	createTable.Flags().IntVar(&replicationFactor, "replication-factor", 0, "replicas per tablet, 0 for the catalog default")
	root.AddCommand(createTable)

	return root
}

func printTablets(w io.Writer, tablets []*catalogpb.TabletRecord) {
	for _, tablet := range tablets {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\tv%d\t%s\n", tablet.TabletId, tablet.TableId, tablet.PartitionRange.Format(), tablet.State, tablet.Version, strings.Join(tablet.ReplicaSet, ","))
	}
}
