package build

import (
	"context"
	"io"
	"os"
	"path"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/olivejs/ginger/internal/config"
	gerrors "github.com/olivejs/ginger/internal/errors"
	"github.com/olivejs/ginger/internal/scanner"
	"github.com/olivejs/ginger/internal/vendor"
)

// CopyFonts copies every vendor font into dist/fonts, flattened to
// their base names.
func CopyFonts(ctx context.Context, opts *config.Options, sc *scanner.Scanner) (int, error) {
	resolved, err := vendor.Resolve(vendor.Options{Root: sc.Root(), Dir: opts.Paths.Vendor})
	if err != nil {
		return 0, err
	}

	appFonts, err := sc.Find(filepath.ToSlash(opts.Paths.Src), scanner.Ext(".eot", ".otf", ".svg", ".ttf", ".woff", ".woff2"))
	if err != nil {
		return 0, gerrors.NewIOError(gerrors.ErrCodeFileNotFound, "scanning fonts", err)
	}
	var fonts []string
	for _, f := range appFonts {
		if path.Base(path.Dir(f)) == "fonts" {
			fonts = append(fonts, f)
		}
	}
	fonts = append(resolved.Fonts, fonts...)

	dest := filepath.Join(opts.DistDir(), "fonts")
	jobs := make(map[string]string, len(fonts))
	for _, f := range fonts {
		jobs[sc.Abs(f)] = filepath.Join(dest, path.Base(f))
	}
	return len(jobs), copyAll(ctx, jobs)
}

// CopyAssets copies src/assets into dist/assets keeping the layout.
func CopyAssets(ctx context.Context, opts *config.Options, sc *scanner.Scanner) (int, error) {
	srcAssets := path.Join(filepath.ToSlash(opts.Paths.Src), "assets")
	files, err := sc.Find(srcAssets, nil)
	if err != nil {
		return 0, gerrors.NewIOError(gerrors.ErrCodeFileNotFound, "scanning assets", err)
	}

	dest := filepath.Join(opts.DistDir(), "assets")
	jobs := make(map[string]string, len(files))
	for _, f := range files {
		rel, err := filepath.Rel(filepath.FromSlash(srcAssets), filepath.FromSlash(f))
		if err != nil {
			continue
		}
		jobs[sc.Abs(f)] = filepath.Join(dest, rel)
	}
	return len(jobs), copyAll(ctx, jobs)
}

func copyAll(ctx context.Context, jobs map[string]string) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for src, dst := range jobs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := copyFile(src, dst); err != nil {
				return gerrors.NewIOError(gerrors.ErrCodeWriteFailed, "copying "+filepath.Base(src), err)
			}
			return nil
		})
	}
	return g.Wait()
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
