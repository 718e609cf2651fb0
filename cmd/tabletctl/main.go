// tabletctl is the command line client of the tablet catalog
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jrife/tablets/transport"
	"github.com/jrife/tablets/transport/clients"
	"google.golang.org/grpc"
)

func dial(ctx context.Context, address string) (transport.CatalogService, func() error, error) {
	client, err := clients.Dial(ctx, address, grpc.WithInsecure())

	if err != nil {
		return nil, nil, err
	}

	return client, client.Close, nil
}

func main() {
	cmd := newRootCommand(dial)
	err := cmd.Execute()

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)

		if hint := hint(err); hint != "" {
			fmt.Fprintln(os.Stderr, hint)
		}

		if delay, ok := transport.RetryDelay(err); ok {
			fmt.Fprintf(os.Stderr, "retry after %s\n", delay.Round(time.Millisecond))
		}
	}

	os.Exit(exitCode(err))
}
