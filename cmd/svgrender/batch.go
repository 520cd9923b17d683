package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	goruntime "runtime"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/wippyai/svgpng/errors"
	"github.com/wippyai/svgpng/runtime"
)

type batchFailure struct {
	path string
	err  error
}

// runBatch renders every .svg under cfg.batch. A failing document does not
// stop the others; failures are listed at the end.
func runBatch(ctx context.Context, rt *runtime.Runtime, cfg *config, stderr io.Writer) error {
	paths, err := collectSVGs(cfg.batch)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no .svg files found in %s", cfg.batch)
	}

	jobs := cfg.jobs
	if jobs <= 0 {
		jobs = goruntime.GOMAXPROCS(0)
	}

	bar := progressbar.NewOptions(
		len(paths),
		progressbar.OptionSetWriter(stderr),
		progressbar.OptionSetWidth(30),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription(fmt.Sprintf("render(%d jobs)", jobs)),
		progressbar.OptionThrottle(200*time.Millisecond),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(stderr)
		}),
	)

	var (
		failures []batchFailure
		failMu   sync.Mutex
		written  int64
		outBytes int64
	)

	processOne := func(path string) error {
		target, err := batchTarget(cfg.batch, cfg.outDir, path)
		if err != nil {
			return err
		}
		opts := cfg.opts
		png, err := rt.RenderFile(ctx, path, &opts)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(target, png, 0o644); err != nil {
			return err
		}
		atomic.AddInt64(&written, 1)
		atomic.AddInt64(&outBytes, int64(len(png)))
		return nil
	}

	tasks := make(chan string)
	var wg sync.WaitGroup
	for i := 0; i < jobs; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range tasks {
				if err := processOne(path); err != nil {
					failMu.Lock()
					failures = append(failures, batchFailure{path: path, err: err})
					failMu.Unlock()
				}
				_ = bar.Add(1)
			}
		}()
	}

produceLoop:
	for _, path := range paths {
		select {
		case <-ctx.Done():
			break produceLoop
		case tasks <- path:
		}
	}
	close(tasks)
	wg.Wait()
	_ = bar.Finish()

	sort.Slice(failures, func(i, j int) bool { return failures[i].path < failures[j].path })
	for _, f := range failures {
		fmt.Fprintf(stderr, "  %s: [%s] %v\n", f.path, errors.ClassOf(f.err), f.err)
	}
	fmt.Fprintf(stderr, "rendered %d/%d documents (%d bytes)\n", atomic.LoadInt64(&written), len(paths), atomic.LoadInt64(&outBytes))

	if err := ctx.Err(); err != nil {
		return err
	}
	if len(failures) > 0 {
		return fmt.Errorf("%d of %d documents failed", len(failures), len(paths))
	}
	return nil
}

func collectSVGs(dir string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		if strings.EqualFold(filepath.Ext(d.Name()), ".svg") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}

// batchTarget maps an input under inDir to its .png path. With no outDir the
// PNG is written next to the input.
func batchTarget(inDir, outDir, path string) (string, error) {
	png := strings.TrimSuffix(path, filepath.Ext(path)) + ".png"
	if outDir == "" {
		return png, nil
	}
	rel, err := filepath.Rel(inDir, png)
	if err != nil {
		return "", err
	}
	return filepath.Join(outDir, rel), nil
}
