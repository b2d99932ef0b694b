package main

import (
	"os"
	"path/filepath"
	"testing"

	"ukbqsm/internal/reconcile"
	"ukbqsm/internal/subjects"
	"ukbqsm/internal/testsupport"
)

func seedFields(t *testing.T, env *cliTestEnv) {
	t.Helper()
	for _, f := range env.cfg.Fields {
		if f.Flat() {
			continue
		}
		ids := []string{"1000011", "1000023", "1000045"}
		if f.Name == "flair" {
			ids = ids[:2]
		}
		testsupport.WriteArchives(t, f.Dirs[0], f.Code, ids...)
	}
	testsupport.WriteFile(t, env.cfg.SubjectCompletionMarker("1000011", 2), 8)
}

func readTodo(t *testing.T, env *cliTestEnv) subjects.List {
	t.Helper()
	todo, err := subjects.ReadList(reconcile.ListPath(env.cfg.Paths.ListsDir, "todo"))
	if err != nil {
		t.Fatalf("read todo: %v", err)
	}
	return todo
}

func TestReconcileKeepsFailedSubjectTodo(t *testing.T) {
	env := setupCLITestEnv(t)
	seedFields(t, env)
	env.writeReferences(t)
	testsupport.MkdirAll(t, env.cfg.Paths.InputDir)

	if _, _, err := runCLI(t, []string{"pipeline", "run", "-s", "1000023"}, env.configPath, withExecutor(fakeTools())); err == nil {
		t.Fatal("expected run without inputs to fail")
	}
	if _, _, err := runCLI(t, []string{"subjects", "reconcile"}, env.configPath); err != nil {
		t.Fatalf("subjects reconcile: %v", err)
	}
	if todo := readTodo(t, env); !todo.Equal(subjects.List{"1000023"}) {
		t.Fatalf("failed subject should stay todo, got %v", todo)
	}

	env.writeInputs(t, "1000023", 2)
	if _, _, err := runCLI(t, []string{"pipeline", "run", "-s", "1000023"}, env.configPath, withExecutor(fakeTools())); err != nil {
		t.Fatalf("pipeline run: %v", err)
	}
	if _, _, err := runCLI(t, []string{"subjects", "reconcile"}, env.configPath); err != nil {
		t.Fatalf("subjects reconcile: %v", err)
	}
	if todo := readTodo(t, env); todo.Len() != 0 {
		t.Fatalf("completed subject should leave todo, got %v", todo)
	}
}

func TestSubjectsReconcileAndVerify(t *testing.T) {
	env := setupCLITestEnv(t)
	seedFields(t, env)

	out, _, err := runCLI(t, []string{"subjects", "reconcile"}, env.configPath)
	if err != nil {
		t.Fatalf("subjects reconcile: %v", err)
	}
	requireContains(t, out, "Lists written to "+env.cfg.Paths.ListsDir)
	requireContains(t, out, "no_flair")

	if todo := readTodo(t, env); !todo.Equal(subjects.List{"1000023"}) {
		t.Fatalf("unexpected todo list %v", todo)
	}
	noFlair, err := subjects.ReadList(reconcile.ListPath(env.cfg.Paths.ListsDir, "no_flair"))
	if err != nil {
		t.Fatalf("read no_flair: %v", err)
	}
	if !noFlair.Equal(subjects.List{"1000045"}) {
		t.Fatalf("unexpected no_flair list %v", noFlair)
	}

	out, _, err = runCLI(t, []string{"subjects", "verify"}, env.configPath)
	if err != nil {
		t.Fatalf("subjects verify: %v", err)
	}
	requireContains(t, out, "Summary verified")

	if err := os.WriteFile(reconcile.ListPath(env.cfg.Paths.ListsDir, "core"), nil, 0o644); err != nil {
		t.Fatalf("truncate core: %v", err)
	}
	out, _, err = runCLI(t, []string{"subjects", "verify"}, env.configPath)
	if err == nil {
		t.Fatal("expected verify to detect drift")
	}
	requireContains(t, out, "core")
}

func TestSubjectsSetOperations(t *testing.T) {
	env := setupCLITestEnv(t)
	a := env.writeList(t, "a.txt", "1000011", "1000023", "1000045")
	b := env.writeList(t, "b.txt", "1000023", "1000045", "1000099")

	cases := []struct {
		op   string
		want string
	}{
		{op: "intersect", want: "1000023\n1000045\n"},
		{op: "complement", want: "1000011\n"},
		{op: "union", want: "1000011\n1000023\n1000045\n1000099\n"},
	}
	for _, tc := range cases {
		t.Run(tc.op, func(t *testing.T) {
			out, _, err := runCLI(t, []string{"subjects", tc.op, a, b}, "")
			if err != nil {
				t.Fatalf("subjects %s: %v", tc.op, err)
			}
			if out != tc.want {
				t.Fatalf("subjects %s = %q, want %q", tc.op, out, tc.want)
			}
		})
	}
}

func TestSubjectsSetOperationRejectsUnsortedList(t *testing.T) {
	env := setupCLITestEnv(t)
	a := env.writeList(t, "a.txt", "1000045", "1000011")
	b := env.writeList(t, "b.txt", "1000011")
	if _, _, err := runCLI(t, []string{"subjects", "intersect", a, b}, ""); err == nil {
		t.Fatal("expected unsorted list to fail")
	}
}

func TestSubjectsExtract(t *testing.T) {
	dir := t.TempDir()
	testsupport.MkdirAll(t, filepath.Join(dir, "sub-1000023"), filepath.Join(dir, "sub-1000011"), filepath.Join(dir, "other"))

	out, _, err := runCLI(t, []string{"subjects", "extract", "--dir", dir, "--prefix", "sub-"}, "")
	if err != nil {
		t.Fatalf("subjects extract --prefix: %v", err)
	}
	if out != "1000011\n1000023\n" {
		t.Fatalf("unexpected prefixed output %q", out)
	}

	archives := t.TempDir()
	testsupport.WriteArchives(t, archives, "20252", "1000045", "1000011")
	out, _, err = runCLI(t, []string{"subjects", "extract", "-d", archives}, "")
	if err != nil {
		t.Fatalf("subjects extract: %v", err)
	}
	if out != "1000011\n1000045\n" {
		t.Fatalf("unexpected archive output %q", out)
	}

	if _, _, err := runCLI(t, []string{"subjects", "extract"}, ""); err == nil {
		t.Fatal("expected extract without --dir to fail")
	}
}
