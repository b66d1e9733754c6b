package export

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// renderDOCX converts the report page to a Word document with pandoc. The
// embedded photos are data URIs, which pandoc extracts into the archive.
func renderDOCX(ctx context.Context, html, title string) ([]byte, error) {
	if _, err := exec.LookPath("pandoc"); err != nil {
		return nil, fmt.Errorf("%w: pandoc not installed", ErrDOCXDependencyMissing)
	}

	cmd := exec.CommandContext(ctx, "pandoc",
		"-f", "html",
		"-t", "docx",
		"--standalone",
		"--metadata", "title="+title,
		"--metadata", "lang=de-CH",
		"-o", "-",
	)
	cmd.Stdin = strings.NewReader(html)

	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("render docx %q: %s", title, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return nil, fmt.Errorf("render docx %q: %w", title, err)
	}
	return output, nil
}
