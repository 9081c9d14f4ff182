// Package hints builds the "hint:" lines appended to CLI error messages.
// Every non-empty hint starts with "\n  hint: " so callers can append it
// to an error string unconditionally.
package hints

import (
	"os"
	"strings"

	"github.com/alnah/go-tpl2pdf/internal/fileutil"
)

// ciEnvVars are set by the CI systems we know about.
var ciEnvVars = []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "BUILDKITE"}

// IsInContainer reports whether the process runs in a container.
// Replaced in tests.
var IsInContainer = func() bool {
	return fileutil.FileExists("/.dockerenv") || fileutil.FileExists("/run/.containerenv")
}

func inCI() bool {
	for _, name := range ciEnvVars {
		if os.Getenv(name) != "" {
			return true
		}
	}
	return false
}

// ForBrowserConnect suggests the rod environment variables that usually fix
// a browser that will not start. Sandbox advice is only given in CI or a
// container, where Chrome's sandbox is typically unavailable.
func ForBrowserConnect() string {
	var hints []string
	if os.Getenv("ROD_NO_SANDBOX") != "1" && (inCI() || IsInContainer()) {
		hints = append(hints, "set ROD_NO_SANDBOX=1 when running in a container or CI")
	}
	if os.Getenv("ROD_BROWSER_BIN") == "" {
		hints = append(hints, "set ROD_BROWSER_BIN to an installed Chrome or Chromium")
	}
	return formatHints(hints)
}

// ForTimeout returns a hint about raising the render timeout.
func ForTimeout() string {
	return format("templates that fetch many assets may need a longer --timeout or TPL2PDF_TIMEOUT")
}

// ForConfigNotFound points at --config, and at the first searched path under
// the user config directory when there is one.
func ForConfigNotFound(searchedPaths []string) string {
	for _, p := range searchedPaths {
		if strings.Contains(p, "go-tpl2pdf") {
			return format("use --config /path/to/file.yaml or create " + p)
		}
	}
	return format("use --config /path/to/file.yaml")
}

// ForOutputDirectory returns hints for missing or uncreatable output directories.
func ForOutputDirectory(forceCreate bool) string {
	if forceCreate {
		return format("check the output root's parent directory exists and is writable")
	}
	return format("create the directory or pass --force to create it")
}

// ForTemplateNotFound lists the templates found under the templates root.
func ForTemplateNotFound(available []string) string {
	if len(available) == 0 {
		return format("each template needs <templates>/<name>/template.html")
	}
	return format("available: " + strings.Join(available, ", "))
}

// ForPayload returns a hint for payloads that could not be serialized.
func ForPayload(raw bool) string {
	if raw {
		return ""
	}
	return format("--data must hold a JSON document; use --raw to write it unchanged")
}

const prefix = "\n  hint: "

func format(hint string) string {
	if hint == "" {
		return ""
	}
	return prefix + hint
}

func formatHints(hints []string) string {
	return format(strings.Join(hints, "; "))
}
