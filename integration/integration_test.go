//go:build integration

package integration

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"

	stdiorpc "github.com/wagiedev/stdio-rpc-go"
)

// binDir holds the example servers built by TestMain.
var binDir string

func TestMain(m *testing.M) {
	os.Exit(run(m))
}

func run(m *testing.M) int {
	if _, err := exec.LookPath("go"); err != nil {
		fmt.Fprintln(os.Stderr, "go toolchain not found, skipping integration tests")

		return 0
	}

	dir, err := os.MkdirTemp("", "stdio-rpc-integration-*")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)

		return 1
	}
	defer os.RemoveAll(dir)

	for _, name := range []string{"weather_server", "notes_server", "fs_server"} {
		cmd := exec.Command("go", "build", "-o", filepath.Join(dir, exe(name)), "../examples/"+name)
		cmd.Stdout = os.Stderr
		cmd.Stderr = os.Stderr

		if err := cmd.Run(); err != nil {
			fmt.Fprintf(os.Stderr, "build %s: %v\n", name, err)

			return 1
		}
	}

	binDir = dir

	return m.Run()
}

func exe(name string) string {
	if runtime.GOOS == "windows" {
		return name + ".exe"
	}

	return name
}

// server returns the path of a built example server.
func server(name string) string {
	return filepath.Join(binDir, exe(name))
}

// text returns the first text block of content.
func text(content []stdiorpc.McpContent) string {
	for _, c := range content {
		if t, ok := c.(*stdiorpc.McpTextContent); ok {
			return t.Text
		}
	}

	return ""
}
