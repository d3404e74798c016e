package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"schoolreport/internal/auth"
	"schoolreport/internal/report"
)

var errHelp = errors.New("help provided")

type generator interface {
	Generate(ctx context.Context, id string, params report.Params) (*report.Artifact, error)
}

type commandLine struct {
	gen    func() generator
	out    io.Writer
	issuer string
	key    string
	ttl    time.Duration
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  export -report ID -school ID [-class ID] [-date D | -start D -end D] [-format xlsx|csv] [-out DIR]")
	fmt.Fprintln(cli.out, "  token -sub NAME -role admin|teacher [-ttl 12h]")
	fmt.Fprintln(cli.out, "  list - print the report catalogue")
}

func (cli *commandLine) run(ctx context.Context, args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	switch args[1] {
	case "export":
		return cli.export(ctx, args[2:])
	case "token":
		return cli.token(args[2:])
	case "list":
		for _, s := range report.Catalogue() {
			fmt.Fprintf(cli.out, "%2d  %-18s %s\n", s.Number, s.ID, s.Title)
		}
		return nil
	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) export(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	fs.SetOutput(cli.out)
	var p report.Params
	id := fs.String("report", "", "Report id, see `list`.")
	outDir := fs.String("out", ".", "Directory the file is written to.")
	format := fs.String("format", "xlsx", "xlsx or csv.")
	fs.StringVar(&p.SchoolID, "school", "", "School id.")
	fs.StringVar(&p.ClassID, "class", "", "Class id.")
	fs.StringVar(&p.SchoolName, "school-name", "", "School name printed in the letterhead.")
	fs.StringVar(&p.ClassName, "class-name", "", "Class name printed under the title.")
	fs.StringVar(&p.Date, "date", "", "Single day, YYYY-MM-DD.")
	fs.StringVar(&p.StartDate, "start", "", "Range start, YYYY-MM-DD.")
	fs.StringVar(&p.EndDate, "end", "", "Range end, YYYY-MM-DD.")
	fs.StringVar(&p.AsOf, "as-of", "", "Reference day for ages, YYYY-MM-DD.")
	fs.StringVar(&p.AcademicYear, "year", "", "Academic year for BMI records.")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == "" || p.SchoolID == "" {
		fs.Usage()
		return errHelp
	}
	p.Format = report.Format(*format)

	art, err := cli.gen().Generate(ctx, *id, p)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(*outDir, art.Filename)
	if err := os.WriteFile(path, art.Data, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "%s: %d rows (degraded %d, skipped %d, truncated %v)\n",
		path, art.Rows, art.Degraded, art.Skipped, art.Truncated)
	return nil
}

func (cli *commandLine) token(args []string) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	fs.SetOutput(cli.out)
	sub := fs.String("sub", "", "Token subject, usually the user id.")
	role := fs.String("role", auth.RoleTeacher, "admin or teacher.")
	ttl := fs.Duration("ttl", cli.ttl, "Token lifetime.")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *sub == "" {
		fs.Usage()
		return errHelp
	}
	tok, err := auth.Issue(*sub, *role, cli.issuer, cli.key, *ttl)
	if err != nil {
		return err
	}
	fmt.Fprintln(cli.out, tok.AccessToken)
	return nil
}
