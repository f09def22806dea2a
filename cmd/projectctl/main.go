package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/GriffinCanCode/nodeflow/internal/project"
)

const usage = `usage: projectctl <command> [flags] <file>

commands:
  validate <file>              check a project file against the schema
  canonical <file>             print the canonical JSON form
  digest <file>                print the SHA-256 digest of the canonical form
  convert -to <format> <file>  re-encode as json, yaml or toml
`

var errUsage = errors.New("invalid usage")

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}

	var err error
	switch cmd, rest := args[0], args[1:]; cmd {
	case "validate":
		err = validate(rest, stdout)
	case "canonical":
		err = canonical(rest, stdout)
	case "digest":
		err = digest(rest, stdout)
	case "convert":
		err = convert(rest, stdout)
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
		return 0
	default:
		err = fmt.Errorf("unknown command %q: %w", cmd, errUsage)
	}

	switch {
	case err == nil:
		return 0
	case errors.Is(err, errUsage):
		fmt.Fprintf(stderr, "projectctl: %v\n\n%s", err, usage)
		return 2
	default:
		fmt.Fprintf(stderr, "projectctl: %v\n", err)
		return 1
	}
}

// read decodes and validates the single file argument
func read(args []string) (*project.Project, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("expected one file argument: %w", errUsage)
	}
	path := args[0]

	format, err := project.FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	raw, err := project.Decode(data, format)
	if err != nil {
		return nil, err
	}
	if err := project.ValidateMap(raw); err != nil {
		return nil, err
	}
	return project.Parse(raw)
}

func validate(args []string, stdout io.Writer) error {
	p, err := read(args)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "ok: %d scripts, %d addons\n", len(p.Scripts), len(p.Addons))
	return nil
}

func canonical(args []string, stdout io.Writer) error {
	p, err := read(args)
	if err != nil {
		return err
	}
	data, err := project.Canonical(p)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(stdout, "%s\n", data)
	return err
}

func digest(args []string, stdout io.Writer) error {
	p, err := read(args)
	if err != nil {
		return err
	}
	sum, err := project.Digest(p)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(stdout, sum)
	return err
}

func convert(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("convert", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	to := fs.String("to", "json", "output format: json, yaml or toml")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%v: %w", err, errUsage)
	}

	format, err := project.ParseFormat(*to)
	if err != nil {
		return err
	}
	p, err := read(fs.Args())
	if err != nil {
		return err
	}
	data, err := project.Encode(p, format)
	if err != nil {
		return err
	}
	_, err = stdout.Write(data)
	return err
}
