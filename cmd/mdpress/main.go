package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/labstack/gommon/log"

	"github.com/eringen/mdpress"
)

var commands = []string{"dev", "build"}

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run dispatches the single positional argument. An unknown or missing
// option prints the valid ones and still succeeds.
func run(ctx context.Context, args []string, stdout io.Writer) error {
	arg := ""
	if len(args) > 0 {
		arg = args[0]
	}
	switch arg {
	case "dev":
		return runDev(ctx)
	case "build":
		return runBuild(ctx, stdout)
	default:
		printInvalid(stdout, arg)
		return nil
	}
}

func printInvalid(w io.Writer, arg string) {
	fmt.Fprintf(w, "Invalid option: %s\n", arg)
	fmt.Fprintf(w, "Valid options: %s\n", strings.Join(commands, ", "))
}

func newApp() (*mdpress.App, error) {
	logger := log.New("mdpress")
	logger.SetLevel(log.INFO)
	return mdpress.New(mdpress.LoadConfig(), mdpress.WithLogger(logger))
}

func runDev(ctx context.Context) error {
	app, err := newApp()
	if err != nil {
		return err
	}
	defer app.Close()
	return app.Start(ctx)
}

func runBuild(ctx context.Context, stdout io.Writer) error {
	app, err := newApp()
	if err != nil {
		return err
	}
	defer app.Close()
	rec, err := app.Build(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "built %d pages and %d assets into %s\n", rec.Pages, rec.Assets, rec.OutputDir)
	return nil
}
