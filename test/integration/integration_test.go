package integration

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

var (
	sqwatchBinary string
	fakeBin       string
	scancelLog    string
)

const fakeSqueue = `#!/bin/sh
if [ -n "$FAKE_SQUEUE_FAIL" ]; then
  echo "slurm_load_jobs error: Unable to contact slurm controller" >&2
  exit 1
fi
echo "101|train|RUNNING|gpu[01-02]|1:02:03|gpu|alice"
echo "102|eval|RUNNING|gpu03|0:10|gpu|alice"
echo "103|sweep|PENDING|(null)|0:00|gpu|alice"
`

const fakeSacct = `#!/bin/sh
echo "99|old|COMPLETED|gpu04|2:00:00|gpu|alice"
echo "101|train|RUNNING|gpu[01-02]|1:02:03|gpu|alice"
`

const fakeScancel = `#!/bin/sh
echo "$@" >> "$SCANCEL_LOG"
`

func TestMain(m *testing.M) {
	tmpDir, err := os.MkdirTemp("", "sqwatch-integration-*")
	if err != nil {
		panic(err)
	}
	defer os.RemoveAll(tmpDir)

	sqwatchBinary = filepath.Join(tmpDir, "sqwatch")
	cmd := exec.Command("go", "build", "-o", sqwatchBinary, "../../cmd/sqwatch")
	if err := cmd.Run(); err != nil {
		panic("failed to build sqwatch: " + err.Error())
	}

	fakeBin = filepath.Join(tmpDir, "bin")
	os.MkdirAll(fakeBin, 0755)
	for name, script := range map[string]string{
		"squeue":  fakeSqueue,
		"sacct":   fakeSacct,
		"scancel": fakeScancel,
	} {
		if err := os.WriteFile(filepath.Join(fakeBin, name), []byte(script), 0755); err != nil {
			panic(err)
		}
	}
	scancelLog = filepath.Join(tmpDir, "scancel.log")

	os.Exit(m.Run())
}

func runSqwatch(t *testing.T, env []string, stdin string, args ...string) (string, int) {
	t.Helper()
	cmd := exec.Command(sqwatchBinary, append([]string{"--source", "squeue"}, args...)...)
	cmd.Dir = t.TempDir()
	cmd.Env = append(os.Environ(),
		"HOME="+t.TempDir(),
		"PATH="+fakeBin+string(os.PathListSeparator)+os.Getenv("PATH"),
		"SCANCEL_LOG="+scancelLog,
	)
	cmd.Env = append(cmd.Env, env...)
	cmd.Stdin = strings.NewReader(stdin)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	code := 0
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code = exitErr.ExitCode()
		t.Logf("stderr: %s", stderr.String())
	} else if err != nil {
		t.Fatalf("run sqwatch: %v", err)
	}
	return stdout.String(), code
}

type psItem struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Status  string `json:"status"`
	Section string `json:"section"`
	Nodes   string `json:"nodes"`
}

func TestPsJSON(t *testing.T) {
	output, code := runSqwatch(t, nil, "", "ps", "--json", "--all")
	if code != 0 {
		t.Fatalf("ps exited %d", code)
	}

	var result struct {
		OK    bool     `json:"ok"`
		Items []psItem `json:"items"`
	}
	if err := json.Unmarshal([]byte(output), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\n%s", err, output)
	}
	if !result.OK {
		t.Error("expected ok=true")
	}

	var ids []string
	for _, item := range result.Items {
		ids = append(ids, item.ID)
	}
	// sacct rows still listed by squeue are not duplicated
	if got := strings.Join(ids, ","); got != "102,101,103,99" {
		t.Fatalf("unexpected ids: %s", got)
	}
	for _, item := range result.Items {
		if item.ID == "103" && item.Nodes != "" {
			t.Errorf("pending job should have no nodes, got %q", item.Nodes)
		}
		if item.ID == "99" && item.Section != "historical" {
			t.Errorf("completed job in section %q", item.Section)
		}
	}
}

func TestPsCollapsedByDefault(t *testing.T) {
	output, code := runSqwatch(t, nil, "", "ps")
	if code != 0 {
		t.Fatalf("ps exited %d", code)
	}
	if !strings.Contains(output, "SCHEDULED (1 hidden)") {
		t.Errorf("expected collapsed scheduled section:\n%s", output)
	}
	if strings.Contains(output, "sweep") {
		t.Errorf("collapsed job listed:\n%s", output)
	}
}

func TestPsSourceUnavailable(t *testing.T) {
	_, code := runSqwatch(t, []string{"FAKE_SQUEUE_FAIL=1"}, "", "ps")
	if code != 3 {
		t.Fatalf("expected exit 3, got %d", code)
	}
}

func TestPsInvalidFilter(t *testing.T) {
	_, code := runSqwatch(t, nil, "", "ps", "--filter", "(")
	if code != 2 {
		t.Fatalf("expected exit 2, got %d", code)
	}
}

func TestCancel(t *testing.T) {
	os.Remove(scancelLog)

	output, code := runSqwatch(t, nil, "", "cancel", "--yes", "101", "103")
	if code != 0 {
		t.Fatalf("cancel exited %d", code)
	}
	if !strings.Contains(output, "cancelled 2 jobs") {
		t.Errorf("unexpected output: %q", output)
	}

	logged, err := os.ReadFile(scancelLog)
	if err != nil {
		t.Fatalf("scancel not called: %v", err)
	}
	if strings.TrimSpace(string(logged)) != "101 103" {
		t.Errorf("scancel args = %q", logged)
	}
}

func TestCancelDeclined(t *testing.T) {
	os.Remove(scancelLog)

	output, code := runSqwatch(t, nil, "n\n", "cancel", "102")
	if code != 0 {
		t.Fatalf("cancel exited %d", code)
	}
	if !strings.Contains(output, "aborted") {
		t.Errorf("unexpected output: %q", output)
	}
	if _, err := os.Stat(scancelLog); !os.IsNotExist(err) {
		t.Errorf("scancel ran after a declined prompt")
	}
}

func TestCancelUnknownJob(t *testing.T) {
	_, code := runSqwatch(t, nil, "", "cancel", "--yes", "4242")
	if code != 2 {
		t.Fatalf("expected exit 2, got %d", code)
	}
}

func TestVersion(t *testing.T) {
	output, code := runSqwatch(t, nil, "", "version")
	if code != 0 {
		t.Fatalf("version exited %d", code)
	}
	if !strings.HasPrefix(output, "sqwatch ") {
		t.Errorf("unexpected version output: %q", output)
	}
}
