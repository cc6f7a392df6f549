package fanout

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

func pdfPageCount(path string) (int, error) {
	return api.PageCountFile(path)
}

// rasterizePDF renders every page to PNG at the configured DPI and returns
// the page images in page order. The page count is taken up front so a
// truncated pdftoppm run is detected rather than silently shortening the
// document.
func (f *FanOut) rasterizePDF(ctx context.Context, pdf []byte) ([][]byte, error) {
	tmpDir, err := os.MkdirTemp("", "ii-pdf-*")
	if err != nil {
		return nil, err
	}
	defer func() {
		if rerr := os.RemoveAll(tmpDir); rerr != nil {
			f.log.Warn("fanout.tmp_cleanup_failed", "dir", tmpDir, "error", rerr)
		}
	}()

	in := filepath.Join(tmpDir, "in.pdf")
	if err := os.WriteFile(in, pdf, 0o600); err != nil {
		return nil, err
	}

	count, err := f.pageCount(in)
	if err != nil {
		return nil, fmt.Errorf("page count: %w", err)
	}
	if count == 0 {
		return nil, fmt.Errorf("pdf has no pages")
	}
	if f.cfg.MaxPages > 0 && count > f.cfg.MaxPages {
		count = f.cfg.MaxPages
	}

	prefix := filepath.Join(tmpDir, "page")
	// pdftoppm -r <dpi> -png <in.pdf> <tmp/page>
	args := []string{"-r", fmt.Sprintf("%d", f.cfg.DPI), "-png"}
	if f.cfg.MaxPages > 0 {
		args = append(args, "-l", fmt.Sprintf("%d", count))
	}
	args = append(args, in, prefix)
	if _, errb, err := f.runner.Run(ctx, f.cfg.Pdftoppm, args...); err != nil {
		return nil, fmt.Errorf("pdftoppm: %w (%s)", err, truncate(string(errb), 512))
	}

	// generated as prefix-1.png, prefix-2.png, ... zero-padded by pdftoppm
	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(matches)
	if len(matches) == 0 {
		return nil, fmt.Errorf("pdftoppm produced no images")
	}
	if len(matches) != count {
		return nil, fmt.Errorf("pdftoppm rendered %d of %d pages", len(matches), count)
	}

	pages := make([][]byte, 0, len(matches))
	for _, m := range matches {
		b, err := os.ReadFile(m)
		if err != nil {
			return nil, err
		}
		pages = append(pages, b)
	}
	return pages, nil
}
