// Package cli implements asclepiusctl, a command-line client for nearest-facility
// lookups and driving routes.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"

	"github.com/UnknownOlympus/asclepius/internal/facilities"
	"github.com/UnknownOlympus/asclepius/internal/models"
	"github.com/UnknownOlympus/asclepius/internal/routing"
)

var unknownCommandPattern = regexp.MustCompile(`unknown command "([^"]+)"`)

// Seeder persists a facility list into the database.
type Seeder interface {
	InitSchema(ctx context.Context) error
	Seed(ctx context.Context, list []models.Facility) error
}

// Dependencies wires runtime services.
type Dependencies struct {
	NewProvider func(cfg routing.ProviderConfig) (routing.Provider, error)
	NewSource   func(path string, log *slog.Logger) facilities.Source
	OpenSeeder  func(ctx context.Context) (Seeder, func(), error)
	Getenv      func(key string) string
	Logger      *slog.Logger
	Version     string
}

func (d Dependencies) getenv(key string) string {
	if d.Getenv == nil {
		return ""
	}
	return d.Getenv(key)
}

func (d Dependencies) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return d.Logger
}

// Execute runs the CLI with injected dependencies and returns the process exit code.
func Execute(ctx context.Context, args []string, deps Dependencies, stdout io.Writer, stderr io.Writer) int {
	cmd := NewRootCommand(deps)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}

	if matches := unknownCommandPattern.FindStringSubmatch(err.Error()); len(matches) > 1 {
		_, _ = fmt.Fprintf(stderr, "No such command '%s'\n", matches[1])
		return 2
	}

	var usage *usageError
	if errors.As(err, &usage) {
		_, _ = fmt.Fprintln(stderr, usage.Error())
		return 2
	}

	_, _ = fmt.Fprintln(stderr, err.Error())
	return 1
}

// usageError marks bad flag values, reported with exit code 2.
type usageError struct {
	msg string
}

func (e *usageError) Error() string {
	return e.msg
}

func usagef(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}
