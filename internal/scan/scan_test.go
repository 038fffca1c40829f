package scan

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/idelchi/fileculator/internal/config"
	"github.com/idelchi/fileculator/internal/locator"
	"github.com/idelchi/fileculator/internal/report"
)

func writeFile(t *testing.T, path string, size int) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, make([]byte, size), 0o644); err != nil {
		t.Fatal(err)
	}
}

func fixedClock() time.Time {
	return time.Date(2024, 5, 1, 12, 30, 0, 0, time.Local)
}

func readReport(t *testing.T, dir string) report.Report {
	t.Helper()

	r, err := report.Read(dir)
	if err != nil {
		t.Fatal(err)
	}

	return r
}

func TestRun_endToEnd(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "app1", "storage", "app", "file.txt"), 100)
	writeFile(t, filepath.Join(root, "app2", "storage", "app", "file.bin"), 2048)

	var out bytes.Buffer
	runner := &Runner{Out: &out, Now: fixedClock}

	summary, err := runner.Run(context.Background(), config.Config{Root: root, Depth: 1, StorageOnly: true})
	if err != nil {
		t.Fatal(err)
	}

	if summary.Written != 2 || summary.Failed != 0 || summary.Located != 2 {
		t.Errorf("unexpected summary: %+v", summary)
	}

	app1 := filepath.Join(root, "app1", "storage", "app")
	app2 := filepath.Join(root, "app2", "storage", "app")

	if got := readReport(t, app1); got.Size != 100 || got.WrittenAt != "2024-05-01 12:30:00.000000" {
		t.Errorf("app1 report = %+v", got)
	}
	if got := readReport(t, app2); got.Size != 2048 {
		t.Errorf("app2 report = %+v", got)
	}

	console := out.String()
	for _, want := range []string{
		app1 + " has 100 B of files",
		app2 + " has 2 KB of files",
		"Written in 2 directories.",
		"Finished at 2024-05-01 12:30:00.000000",
	} {
		if !strings.Contains(console, want) {
			t.Errorf("console output missing %q:\n%s", want, console)
		}
	}
}

func TestRun_depthTwo(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "client", "shop", "storage", "app", "a"), 10)
	writeFile(t, filepath.Join(root, "shallow", "storage", "app", "b"), 20)

	var out bytes.Buffer
	summary, err := (&Runner{Out: &out}).Run(context.Background(), config.Config{Root: root, Depth: 2, StorageOnly: true})
	if err != nil {
		t.Fatal(err)
	}

	if summary.Written != 1 {
		t.Fatalf("Written = %d, want 1", summary.Written)
	}
	if got := readReport(t, filepath.Join(root, "client", "shop", "storage", "app")); got.Size != 10 {
		t.Errorf("size = %d, want 10", got.Size)
	}
	if _, err := os.Stat(report.Path(filepath.Join(root, "shallow", "storage", "app"))); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("shallow project should not be reported, stat err = %v", err)
	}
}

func TestRun_depthTwoIgnoresShallowProjects(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "app1", "storage", "app", "file.txt"), 100)
	writeFile(t, filepath.Join(root, "app2", "storage", "app", "file.bin"), 2048)

	var out bytes.Buffer
	summary, err := (&Runner{Out: &out}).Run(context.Background(), config.Config{Root: root, Depth: 2, StorageOnly: true})
	if err != nil {
		t.Fatal(err)
	}

	if summary.Located != 0 || summary.Written != 0 {
		t.Errorf("unexpected summary: %+v", summary)
	}
	if !strings.Contains(out.String(), "Written in 0 directories.") {
		t.Errorf("unexpected output:\n%s", out.String())
	}
	for _, app := range []string{"app1", "app2"} {
		if _, err := os.Stat(report.Path(filepath.Join(root, app, "storage", "app"))); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("%s should not be reported, stat err = %v", app, err)
		}
	}
}

func TestRun_wholeProject(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "app1", "storage", "app", "upload"), 100)
	writeFile(t, filepath.Join(root, "app1", "vendor", "lib.php"), 900)
	writeFile(t, filepath.Join(root, "app1", ".env"), 24)

	var out bytes.Buffer
	if _, err := (&Runner{Out: &out}).Run(context.Background(), config.Config{Root: root, Depth: 1, StorageOnly: false}); err != nil {
		t.Fatal(err)
	}

	if got := readReport(t, filepath.Join(root, "app1", "storage", "app")); got.Size != 1024 {
		t.Errorf("size = %d, want 1024", got.Size)
	}
	if !strings.Contains(out.String(), "has 1 KB of files") {
		t.Errorf("unexpected output:\n%s", out.String())
	}
}

func TestRun_writeFailureIsIsolated(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "app1", "storage", "app", "file.txt"), 100)
	writeFile(t, filepath.Join(root, "app2", "storage", "app", "file.bin"), 2048)

	// A directory named like the report makes the write fail regardless of privileges.
	blocked := filepath.Join(root, "app1", "storage", "app")
	if err := os.Mkdir(report.Path(blocked), 0o755); err != nil {
		t.Fatal(err)
	}

	core, logs := observer.New(zapcore.ErrorLevel)

	var out bytes.Buffer
	summary, err := (&Runner{Out: &out, Log: zap.New(core)}).Run(
		context.Background(),
		config.Config{Root: root, Depth: 1, StorageOnly: true},
	)
	if err != nil {
		t.Fatal(err)
	}

	if summary.Written != 1 || summary.Failed != 1 {
		t.Errorf("unexpected summary: %+v", summary)
	}
	if got := readReport(t, filepath.Join(root, "app2", "storage", "app")); got.Size != 2048 {
		t.Errorf("app2 size = %d, want 2048", got.Size)
	}
	if !strings.Contains(out.String(), "Written in 1 directories.") {
		t.Errorf("unexpected output:\n%s", out.String())
	}
	if logs.Len() != 1 {
		t.Errorf("expected one logged failure, got %d", logs.Len())
	}
}

func TestRun_measureFailureIsIsolated(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission bits are not enforced for root")
	}

	root := t.TempDir()
	writeFile(t, filepath.Join(root, "app1", "storage", "app", "locked", "secret"), 10)
	writeFile(t, filepath.Join(root, "app2", "storage", "app", "file.bin"), 2048)

	locked := filepath.Join(root, "app1", "storage", "app", "locked")
	if err := os.Chmod(locked, 0o000); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chmod(locked, 0o755) })

	var out bytes.Buffer
	summary, err := (&Runner{Out: &out}).Run(context.Background(), config.Config{Root: root, Depth: 1, StorageOnly: true})
	if err != nil {
		t.Fatal(err)
	}

	if summary.Written != 1 || summary.Failed != 1 {
		t.Errorf("unexpected summary: %+v", summary)
	}
	if got := readReport(t, filepath.Join(root, "app2", "storage", "app")); got.Size != 2048 {
		t.Errorf("app2 size = %d, want 2048", got.Size)
	}
	if _, err := os.Stat(report.Path(filepath.Join(root, "app1", "storage", "app"))); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("app1 must not get a report, stat err = %v", err)
	}
	if !strings.Contains(out.String(), "measuring") {
		t.Errorf("measurement error not printed:\n%s", out.String())
	}
}

func TestRun_missingRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "missing")

	var out bytes.Buffer
	_, err := (&Runner{Out: &out}).Run(context.Background(), config.Config{Root: root, Depth: 2, StorageOnly: true})

	var notFound *locator.DirectoryNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected DirectoryNotFoundError, got %v", err)
	}
	if strings.Contains(out.String(), "Written in") {
		t.Errorf("aborted run should not print a summary:\n%s", out.String())
	}
}

func TestRun_noProjects(t *testing.T) {
	var out bytes.Buffer

	summary, err := (&Runner{Out: &out}).Run(context.Background(), config.Config{Root: t.TempDir(), Depth: 2, StorageOnly: true})
	if err != nil {
		t.Fatal(err)
	}
	if summary.Located != 0 || summary.Written != 0 {
		t.Errorf("unexpected summary: %+v", summary)
	}
	if !strings.Contains(out.String(), "Written in 0 directories.") {
		t.Errorf("unexpected output:\n%s", out.String())
	}
}

func TestRun_logsPreviousReport(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "app1", "storage", "app", "file.txt"), 300)

	dir := filepath.Join(root, "app1", "storage", "app")
	if err := report.Write(dir, report.Report{Size: 100, WrittenAt: "2024-04-30 12:30:00.000000"}); err != nil {
		t.Fatal(err)
	}

	prevFile, err := os.Stat(report.Path(dir))
	if err != nil {
		t.Fatal(err)
	}

	// The previous storage.json is itself a regular file in the measured tree.
	total := 300 + prevFile.Size()

	core, logs := observer.New(zapcore.DebugLevel)

	var out bytes.Buffer
	if _, err := (&Runner{Out: &out, Log: zap.New(core)}).Run(
		context.Background(),
		config.Config{Root: root, Depth: 1, StorageOnly: true},
	); err != nil {
		t.Fatal(err)
	}

	entries := logs.FilterMessage("replacing report").All()
	if len(entries) != 1 {
		t.Fatalf("expected one replacement log, got %d", len(entries))
	}

	fields := entries[0].ContextMap()
	if fields["previous_size"] != int64(100) || fields["delta"] != total-100 {
		t.Errorf("unexpected fields: %v", fields)
	}

	if got := readReport(t, dir); got.Size != total {
		t.Errorf("size = %d, want %d", got.Size, total)
	}
}
