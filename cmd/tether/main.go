package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/alecthomas/kong"

	"github.com/broady/tether/internal/directive"
)

type CLI struct {
	Version VersionCmd `cmd:"" help:"Print version information."`
	Check   CheckCmd   `cmd:"" help:"Validate //tether:contract declarations without running them."`
	Routes  RoutesCmd  `cmd:"" help:"List the routes of every contract in a package."`
}

type VersionCmd struct{}

func (c *VersionCmd) Run(out io.Writer) error {
	fmt.Fprintln(out, Version())
	return nil
}

// PackageFlags selects the package to scan.
type PackageFlags struct {
	Package string `arg:"" optional:"" help:"Package to scan." default:"."`
	Dir     string `help:"Directory the package pattern is resolved in." short:"C"`
}

func (f PackageFlags) load() (*directive.Result, error) {
	result, err := directive.ParseDir(f.Package, f.Dir)
	if err != nil {
		return nil, err
	}
	if len(result.Contracts) == 0 {
		return nil, fmt.Errorf("no //tether:contract types found in %s", result.PackagePath)
	}
	return result, nil
}

type CheckCmd struct {
	PackageFlags `embed:""`
}

func (c *CheckCmd) Run(out io.Writer) error {
	result, err := c.load()
	if err != nil {
		return err
	}
	problems := result.Problems()
	for _, p := range problems {
		fmt.Fprintf(out, "✗ %s\n", p)
	}
	if len(problems) > 0 {
		return fmt.Errorf("%d problems in %s", len(problems), result.PackagePath)
	}
	for _, contract := range result.Contracts {
		fmt.Fprintf(out, "✓ %s: %d methods\n", contract.TypeName, len(contract.Methods))
	}
	return nil
}

type RoutesCmd struct {
	PackageFlags `embed:""`
}

func (c *RoutesCmd) Run(out io.Writer) error {
	result, err := c.load()
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, contract := range result.Contracts {
		for _, m := range contract.Methods {
			flags := ""
			if m.LongRunning {
				flags = "long-running"
			}
			fmt.Fprintf(tw, "%s.%s\t%s\t%s\t%s\n", contract.TypeName, m.Name, m.Verb, contract.Route(m), flags)
		}
	}
	return tw.Flush()
}

func options(out io.Writer) []kong.Option {
	return []kong.Option{
		kong.Name("tether"),
		kong.Description("Check and inspect declarative HTTP client contracts."),
		kong.UsageOnError(),
		kong.BindTo(out, (*io.Writer)(nil)),
	}
}

func main() {
	cli := &CLI{}
	ctx := kong.Parse(cli, options(os.Stdout)...)
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}
