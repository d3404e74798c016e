package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schoolreport/internal/auth"
	"schoolreport/internal/report"
)

type stubGenerator struct {
	id  string
	got report.Params
}

func (s *stubGenerator) Generate(_ context.Context, id string, p report.Params) (*report.Artifact, error) {
	s.id, s.got = id, p
	return &report.Artifact{Filename: "roster_2026-10-16.csv", Data: []byte("a\n"), Rows: 1}, nil
}

func newCLI(gen *stubGenerator) (*commandLine, *bytes.Buffer) {
	var out bytes.Buffer
	return &commandLine{
		gen:    func() generator { return gen },
		out:    &out,
		issuer: "school-report",
		key:    "k",
		ttl:    time.Hour,
	}, &out
}

func TestRunUsage(t *testing.T) {
	cli, out := newCLI(&stubGenerator{})
	assert.ErrorIs(t, cli.run(context.Background(), []string{"reportctl"}), errHelp)
	assert.Contains(t, out.String(), "Usage:")
	assert.ErrorIs(t, cli.run(context.Background(), []string{"reportctl", "nope"}), errHelp)
}

func TestExport(t *testing.T) {
	gen := &stubGenerator{}
	cli, out := newCLI(gen)
	dir := filepath.Join(t.TempDir(), "out")

	err := cli.run(context.Background(), []string{"reportctl", "export",
		"-report", "class-roster", "-school", "s1", "-class", "c1", "-start", "2026-10-01", "-end", "2026-10-15",
		"-format", "csv", "-out", dir})
	require.NoError(t, err)

	assert.Equal(t, "class-roster", gen.id)
	assert.Equal(t, report.Params{SchoolID: "s1", ClassID: "c1", StartDate: "2026-10-01", EndDate: "2026-10-15", Format: report.FormatCSV}, gen.got)
	data, err := os.ReadFile(filepath.Join(dir, "roster_2026-10-16.csv"))
	require.NoError(t, err)
	assert.Equal(t, "a\n", string(data))
	assert.Contains(t, out.String(), "1 rows")

	assert.ErrorIs(t, cli.run(context.Background(), []string{"reportctl", "export", "-report", "class-roster"}), errHelp)
}

func TestToken(t *testing.T) {
	cli, out := newCLI(&stubGenerator{})
	require.NoError(t, cli.run(context.Background(), []string{"reportctl", "token", "-sub", "root", "-role", "admin"}))

	claims, err := auth.Parse(strings.TrimSpace(out.String()), "k", "school-report")
	require.NoError(t, err)
	assert.Equal(t, "root", claims.Subject)
	assert.Equal(t, auth.RoleAdmin, claims.Role)

	assert.Error(t, cli.run(context.Background(), []string{"reportctl", "token", "-sub", "x", "-role", "device"}))
}

func TestList(t *testing.T) {
	cli, out := newCLI(&stubGenerator{})
	require.NoError(t, cli.run(context.Background(), []string{"reportctl", "list"}))
	assert.Equal(t, len(report.All()), strings.Count(out.String(), "\n"))
	assert.Contains(t, out.String(), "ethnic-minority")
}
