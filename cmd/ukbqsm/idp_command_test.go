package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestIDPSummary(t *testing.T) {
	env := setupCLITestEnv(t)
	csv := "subject,session,Ventricles,WM\n1000011,2,0.01,nan\n1000023,2,0.03,0.05\n"
	path := filepath.Join(env.baseDir, "idps.csv")
	if err := os.WriteFile(path, []byte(csv), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}

	out, _, err := runCLI(t, []string{"idp", "summary", "--file", path}, env.configPath)
	if err != nil {
		t.Fatalf("idp summary: %v", err)
	}
	requireContains(t, out, "2 rows, 2 measures")
	requireContains(t, out, "Ventricles")
	requireContains(t, out, "0.02")
}

func TestIDPSummaryDefaultsToConfiguredFile(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, _, err := runCLI(t, []string{"idp", "summary"}, env.configPath); err == nil {
		t.Fatal("expected missing idp file to fail")
	}

	if err := os.WriteFile(env.cfg.Paths.IDPFile, []byte("subject,session,SN_L\n1000011,2,0.1\n"), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	out, _, err := runCLI(t, []string{"idp", "summary"}, env.configPath)
	if err != nil {
		t.Fatalf("idp summary: %v", err)
	}
	requireContains(t, out, env.cfg.Paths.IDPFile)
	requireContains(t, out, "SN_L")
}

func TestIDPSummaryUsesLatestRerun(t *testing.T) {
	env := setupCLITestEnv(t)
	csv := "subject,session,SN_L\n1000011,2,0.1\n1000023,2,0.3\n1000011,2,0.5\n"
	path := filepath.Join(env.baseDir, "idps.csv")
	if err := os.WriteFile(path, []byte(csv), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}

	out, _, err := runCLI(t, []string{"idp", "summary", "-f", path}, env.configPath)
	if err != nil {
		t.Fatalf("idp summary: %v", err)
	}
	requireContains(t, out, "2 rows, 1 measures")
	requireContains(t, out, "1 subject session with repeated rows")
	requireContains(t, out, "1000011 session 2")
	requireContains(t, out, "0.4")
}

func TestFormatStat(t *testing.T) {
	cases := map[float64]string{
		0.5:       "0.5",
		0.0123456: "0.01235",
		2:         "2",
	}
	for in, want := range cases {
		if got := formatStat(in); got != want {
			t.Fatalf("formatStat(%v) = %q, want %q", in, got, want)
		}
	}
}
