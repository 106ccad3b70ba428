package app

import (
	"fmt"
	"os"

	"github.com/gookit/color"
	isatty "github.com/mattn/go-isatty"

	"github.com/forgeup/forgeup/internal/installer"
)

func stdoutIsTTY() bool {
	return isatty.IsTerminal(os.Stdout.Fd())
}

func stderrIsTTY() bool {
	return isatty.IsTerminal(os.Stderr.Fd())
}

func errorf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if stderrIsTTY() {
		color.Error.Println(msg)
		return
	}
	fmt.Fprintln(os.Stderr, "error: "+msg)
}

// printResults writes the per-component summary of a run. Colors are
// gated on stdout being a terminal so piped output stays plain.
func printResults(verb string, results []installer.Result) {
	useColor := stdoutIsTTY()

	for _, res := range results {
		label := res.Component.Identity()
		switch {
		case res.Failed():
			line := fmt.Sprintf("✗ %s: %s failed at %s: %v", label, verb, res.Phase, res.Err)
			if useColor {
				color.Red.Println(line)
			} else {
				fmt.Println(line)
			}
		case res.Skipped:
			line := fmt.Sprintf("- %s: already %s %s", label, res.Phase, res.Component.Version)
			if useColor {
				color.Gray.Println(line)
			} else {
				fmt.Println(line)
			}
		default:
			line := fmt.Sprintf("✓ %s: %s %s", label, verb, res.Component.Version)
			if res.Component.Version == "" {
				line = fmt.Sprintf("✓ %s: %s", label, verb)
			}
			if useColor {
				color.Green.Println(line)
			} else {
				fmt.Println(line)
			}
		}
	}
}

// printSourceHint tells the user how to activate the environment when the
// target requires sourcing a file.
func printSourceHint(inst *installer.Installer) {
	hint := inst.SourceHint()
	if hint == "" {
		return
	}
	fmt.Println()
	fmt.Println("To activate the environment in this and future shells, add to your shell profile:")
	if stdoutIsTTY() {
		color.Cyan.Printf("  %s\n", hint)
		return
	}
	fmt.Printf("  %s\n", hint)
}
