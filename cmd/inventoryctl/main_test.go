package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"inventorycore/testutil"
)

// labEnv points the CLI at a fresh sqlite file and filesystem blob root and
// returns the path of an import file holding the lab fixture.
func labEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("INVENTORYCORE_STORAGE_DRIVER", "sqlite")
	t.Setenv("INVENTORYCORE_SQLITE_PATH", filepath.Join(dir, "inventory.db"))
	t.Setenv("INVENTORYCORE_BLOB_DRIVER", "fs")
	t.Setenv("INVENTORYCORE_BLOB_FS_ROOT", filepath.Join(dir, "blobs"))
	t.Setenv("INVENTORYCORE_LOG_LEVEL", "silent")
	t.Setenv("INVENTORYCORE_USERNAME", "alice")
	t.Setenv("INVENTORYCORE_WORKBENCH_ID", "1")
	path := filepath.Join(dir, "lab.json")
	require.NoError(t, os.WriteFile(path, []byte(testutil.LabInventoryJSON), 0o600))
	return path
}

func run(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	args = append([]string{"--env-file", filepath.Join(t.TempDir(), "missing.env")}, args...)
	code := cli(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func importLab(t *testing.T) {
	t.Helper()
	path := labEnv(t)
	code, out, errOut := run(t, "import", path)
	require.Equal(t, exitOK, code, errOut)
	require.Contains(t, out, "imported")
}

func TestImportAndShow(t *testing.T) {
	importLab(t)

	code, out, errOut := run(t, "show", "SS1")
	require.Equal(t, exitOK, code, errOut)
	require.Contains(t, out, "Aliquot 1 (SS1)")
	require.Contains(t, out, "5 ml")
	require.Contains(t, out, "Box A (IC3)")
	require.Contains(t, out, "Row 1 of 2, Column 2 of 3")
	require.Contains(t, out, "2024-03-01 10:00")
	require.Regexp(t, `In Workbench\s+false`, out)

	code, out, errOut = run(t, "show", "SA1")
	require.Equal(t, exitOK, code, errOut)
	require.Contains(t, out, "Plasma (SA1)")
	require.NotContains(t, out, "Location")
}

func TestImportFromStdinSingleRecord(t *testing.T) {
	labEnv(t)
	var stdout, stderr bytes.Buffer
	a := &app{stdout: &stdout, stderr: &stderr}
	defer a.close()
	root := newRootCmd(a)
	root.SetArgs([]string{"import", "-"})
	root.SetIn(strings.NewReader(`{"id": 4, "globalId": "IC4", "type": "CONTAINER", "cType": "LIST", "name": "Shelf"}`))
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	require.NoError(t, root.Execute())
	require.Contains(t, stdout.String(), "created 1")
}

func TestImportErrors(t *testing.T) {
	dir := t.TempDir()
	labEnv(t)

	code, _, _ := run(t, "import", filepath.Join(dir, "absent.json"))
	require.Equal(t, exitUsage, code)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`[{"globalId": "XX1", "type": "SAMPLE"}]`), 0o600))
	code, _, errOut := run(t, "import", bad)
	require.Equal(t, exitUsage, code)
	require.Contains(t, errOut, "inventoryctl:")

	garbled := filepath.Join(dir, "garbled.json")
	require.NoError(t, os.WriteFile(garbled, []byte(`{not json`), 0o600))
	code, _, _ = run(t, "import", garbled)
	require.Equal(t, exitUsage, code)
}

func TestFindPrintsPath(t *testing.T) {
	importLab(t)
	code, out, errOut := run(t, "find", "SS1")
	require.Equal(t, exitOK, code, errOut)
	require.Equal(t, "Freezer -80 (IC2) > Box A (IC3) > Aliquot 1 (SS1)\n", out)

	code, _, _ = run(t, "find", "IC99")
	require.Equal(t, exitNotFound, code)
}

func TestTree(t *testing.T) {
	importLab(t)

	code, out, errOut := run(t, "tree")
	require.Equal(t, exitOK, code, errOut)
	require.Contains(t, out, "+ Freezer -80 (IC2)\n")
	require.NotContains(t, out, "Box A")

	code, out, _ = run(t, "tree", "--expand", "IC2")
	require.Equal(t, exitOK, code)
	require.Contains(t, out, "- Freezer -80 (IC2)\n  + Box A (IC3)\n")

	code, out, _ = run(t, "tree", "--all", "--query", "freezer")
	require.Equal(t, exitOK, code)
	require.Contains(t, out, "    Aliquot 1 (SS1)")
	require.NotContains(t, out, "Plasma")
}

func TestMove(t *testing.T) {
	importLab(t)

	code, out, errOut := run(t, "move", "SS1", "IC3", "--row", "2", "--col", "3")
	require.Equal(t, exitOK, code, errOut)
	require.Equal(t, "moved SS1 to IC3 at row 2, column 3\n", out)

	_, out, _ = run(t, "show", "SS1")
	require.Contains(t, out, "Row 2 of 2, Column 3 of 3")

	code, _, errOut = run(t, "move", "SS1", "IC3", "--row", "5", "--col", "1")
	require.Equal(t, exitBlocked, code)
	require.Contains(t, errOut, "block:")

	code, _, _ = run(t, "move", "SS1", "IC3")
	require.Equal(t, exitBlocked, code, "grid targets need a cell")

	code, out, errOut = run(t, "move", "SS1", "BE1")
	require.Equal(t, exitOK, code, errOut)
	require.Equal(t, "moved SS1 to BE1\n", out)
	_, out, _ = run(t, "show", "SS1")
	require.Regexp(t, `Previous Location\s+Box A`, out)
	require.Regexp(t, `In My Workbench\s+true`, out)

	code, _, _ = run(t, "move", "SS1", "IC99")
	require.Equal(t, exitNotFound, code)
}

func TestUsageErrors(t *testing.T) {
	labEnv(t)
	cases := map[string][]string{
		"missing args":    {"show"},
		"extra args":      {"delete", "SS1", "SS2"},
		"bad global id":   {"show", "XX1"},
		"unknown flag":    {"tree", "--nope"},
		"partial cell":    {"move", "SS1", "IC3", "--row", "1"},
		"negative cell":   {"move", "SS1", "IC3", "--row", "-1", "--col", "1"},
		"bad env default": {"show", "SS1"},
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			if name == "bad env default" {
				t.Setenv("INVENTORYCORE_STORAGE_DRIVER", "oracle")
			}
			code, _, _ := run(t, args...)
			require.Equal(t, exitUsage, code)
		})
	}
}

func TestAttachments(t *testing.T) {
	importLab(t)
	file := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(file, []byte("thawed once\n"), 0o600))

	code, out, errOut := run(t, "attachments", "SS1")
	require.Equal(t, exitOK, code, errOut)
	require.Equal(t, "SS1 has no attachments\n", out)

	code, out, errOut = run(t, "attach", "SS1", file)
	require.Equal(t, exitOK, code, errOut)
	require.Contains(t, out, "stored attachments/SS1/")
	require.Contains(t, out, "text/plain")

	code, out, _ = run(t, "attachments", "SS1")
	require.Equal(t, exitOK, code)
	require.Contains(t, out, "notes.txt")

	code, _, _ = run(t, "attach", "IC99", file)
	require.Equal(t, exitNotFound, code)
}

func TestDelete(t *testing.T) {
	importLab(t)

	code, _, errOut := run(t, "delete", "IC3")
	require.Equal(t, exitBlocked, code)
	require.Contains(t, errOut, "still holds")

	code, out, errOut := run(t, "delete", "SS1")
	require.Equal(t, exitOK, code, errOut)
	require.Equal(t, "deleted SS1\n", out)

	code, _, _ = run(t, "show", "SS1")
	require.Equal(t, exitNotFound, code)
}

func TestMetricsFlag(t *testing.T) {
	importLab(t)
	code, _, errOut := run(t, "--metrics", "move", "SS1", "BE1")
	require.Equal(t, exitOK, code, errOut)
	require.Contains(t, errOut, `inventorycore_service_operations_total{operation="move_record",result="success"} 1`)
}

func TestMainUsesExitFunc(t *testing.T) {
	labEnv(t)
	origExit := exitFunc
	defer func() { exitFunc = origExit }()
	got := -1
	exitFunc = func(code int) { got = code }
	origArgs := os.Args
	defer func() { os.Args = origArgs }()
	os.Args = []string{"inventoryctl", "show"}
	main()
	require.Equal(t, exitUsage, got)
}
