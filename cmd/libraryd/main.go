// Command libraryd runs the library-management REST service and its
// operational helpers.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:          "libraryd",
		Short:        "Library management REST service",
		SilenceUsage: true,
	}

	root.AddCommand(serveCmd(), migrateCmd(), createUserCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
