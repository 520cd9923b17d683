package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/term"

	svgpng "github.com/wippyai/svgpng"
	"github.com/wippyai/svgpng/engine"
	rerrors "github.com/wippyai/svgpng/errors"
	"github.com/wippyai/svgpng/runtime"
)

const usage = `Usage: svgrender -wasm <resvg.wasm> -in <file.svg> [-out <file.png>] [options]
       svgrender -wasm <resvg.wasm> -batch <dir> -outdir <dir> [-jobs N] [options]
       svgrender -wasm <resvg.wasm> -in <file.svg> -i  (interactive mode)

Options:
`

// config is everything parsed from the command line and the profile.
type config struct {
	wasm        string
	in          string
	out         string
	profile     string
	batch       string
	outDir      string
	cacheDir    string
	mounts      []engine.Mount
	fontPaths   []string
	opts        svgpng.Options
	jobs        int
	memoryPages uint
	interactive bool
	verbose     bool
}

type stringList []string

func (l *stringList) String() string { return strings.Join(*l, ",") }

func (l *stringList) Set(v string) error {
	*l = append(*l, v)
	return nil
}

func parseArgs(args []string, stderr io.Writer) (*config, error) {
	cfg := &config{}
	fs := flag.NewFlagSet("svgrender", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}

	var (
		width, height, dpi int
		zoom               float64
		fonts, mounts      stringList
		o                  svgpng.Options
	)

	fs.StringVar(&cfg.wasm, "wasm", os.Getenv("SVGPNG_RESVG_WASM"), "Path to the resvg wasm module (default $SVGPNG_RESVG_WASM)")
	fs.StringVar(&cfg.in, "in", "", "Input SVG file, - for stdin")
	fs.StringVar(&cfg.out, "out", "", "Output PNG file, - for stdout (default: input with .png)")
	fs.StringVar(&cfg.profile, "profile", "", "TOML option profile; flags override it")
	fs.StringVar(&cfg.batch, "batch", "", "Render every .svg under this directory")
	fs.StringVar(&cfg.outDir, "outdir", "", "Output directory for -batch (default: next to each input)")
	fs.IntVar(&cfg.jobs, "jobs", 0, "Concurrent renders for -batch (default GOMAXPROCS)")
	fs.StringVar(&cfg.cacheDir, "cache-dir", "", "Directory for the compiled module cache")
	fs.UintVar(&cfg.memoryPages, "memory-pages", 0, "Renderer memory limit in 64KiB pages (0 = no limit)")
	fs.BoolVar(&cfg.interactive, "i", false, "Interactive mode with TUI")
	fs.BoolVar(&cfg.verbose, "v", false, "Debug logging to stderr")
	fs.Var(&mounts, "mount", "Expose a host directory read-only as /host:/guest (repeatable)")

	fs.IntVar(&width, "width", 0, "Output width in pixels")
	fs.IntVar(&height, "height", 0, "Output height in pixels")
	fs.Float64Var(&zoom, "zoom", 0, "Zoom factor")
	fs.IntVar(&dpi, "dpi", svgpng.DefaultDPI, "DPI for physical units")
	fs.BoolVar(&o.SkipSystemFonts, "skip-system-fonts", false, "Do not load system fonts")
	fs.StringVar(&o.Background, "background", "", "Background color (CSS syntax)")
	fs.StringVar(&o.ExportID, "export-id", "", "Render only the element with this id")
	fs.BoolVar(&o.ExportAreaPage, "export-area-page", false, "Use the page as export area")
	fs.BoolVar(&o.ExportAreaDrawing, "export-area-drawing", false, "Use the drawing bounds as export area")
	fs.StringVar(&o.ResourcesDir, "resources-dir", "", "Guest directory for relative hrefs")
	fs.StringVar(&o.FontFile, "font-file", "", "Guest path of an extra font file")
	fs.StringVar(&o.FontDir, "font-dir", "", "Guest directory scanned for fonts")
	fs.Var(&fonts, "font", "Host font file loaded into memory (repeatable)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}

	if cfg.profile != "" {
		prof, err := LoadProfile(cfg.profile)
		if err != nil {
			return nil, err
		}
		cfg.opts = prof.Options()
		cfg.fontPaths = append(cfg.fontPaths, prof.Fonts...)
		for _, m := range prof.Mounts {
			mnt, err := parseMount(m)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", cfg.profile, err)
			}
			cfg.mounts = append(cfg.mounts, mnt)
		}
	}

	var visitErr error
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "width":
			cfg.opts.Width = svgpng.Ptr(width)
		case "height":
			cfg.opts.Height = svgpng.Ptr(height)
		case "zoom":
			cfg.opts.Zoom = svgpng.Ptr(float32(zoom))
		case "dpi":
			cfg.opts.DPI = dpi
		case "skip-system-fonts":
			cfg.opts.SkipSystemFonts = o.SkipSystemFonts
		case "background":
			cfg.opts.Background = o.Background
		case "export-id":
			cfg.opts.ExportID = o.ExportID
		case "export-area-page":
			cfg.opts.ExportAreaPage = o.ExportAreaPage
		case "export-area-drawing":
			cfg.opts.ExportAreaDrawing = o.ExportAreaDrawing
		case "resources-dir":
			cfg.opts.ResourcesDir = o.ResourcesDir
		case "font-file":
			cfg.opts.FontFile = o.FontFile
		case "font-dir":
			cfg.opts.FontDir = o.FontDir
		case "font":
			cfg.fontPaths = append(cfg.fontPaths, fonts...)
		case "mount":
			for _, m := range mounts {
				mnt, err := parseMount(m)
				if err != nil && visitErr == nil {
					visitErr = err
				}
				cfg.mounts = append(cfg.mounts, mnt)
			}
		}
	})
	if visitErr != nil {
		return nil, visitErr
	}

	switch {
	case cfg.wasm == "":
		return nil, errors.New("-wasm is required")
	case cfg.batch != "" && cfg.in != "":
		return nil, errors.New("-batch and -in are mutually exclusive")
	case cfg.batch == "" && cfg.in == "":
		return nil, errors.New("-in or -batch is required")
	case cfg.interactive && cfg.batch != "":
		return nil, errors.New("-i works on a single -in file")
	case cfg.interactive && cfg.in == "-":
		return nil, errors.New("-i needs a file, not stdin")
	}
	return cfg, nil
}

// parseMount parses "host:guest". The last colon splits, so Windows drive
// letters survive.
func parseMount(s string) (engine.Mount, error) {
	i := strings.LastIndex(s, ":")
	if i <= 0 || i == len(s)-1 {
		return engine.Mount{}, fmt.Errorf("invalid mount %q (expected /host:/guest)", s)
	}
	guest := s[i+1:]
	if !strings.HasPrefix(guest, "/") {
		return engine.Mount{}, fmt.Errorf("invalid mount %q: guest path must be absolute", s)
	}
	return engine.Mount{HostPath: s[:i], GuestPath: guest}, nil
}

func main() {
	cfg, err := parseArgs(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error (%s): %v\n", rerrors.ClassOf(err), err)
		os.Exit(1)
	}
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if !verbose {
		return zap.NewNop(), nil
	}
	return zap.NewDevelopment()
}

func run(cfg *config) error {
	ctx := context.Background()

	log, err := newLogger(cfg.verbose && !cfg.interactive)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer log.Sync()

	wasm, err := os.ReadFile(cfg.wasm)
	if err != nil {
		return fmt.Errorf("read wasm: %w", err)
	}

	if cfg.opts.Fonts, err = loadFonts(cfg.fontPaths, log); err != nil {
		return err
	}

	rtCfg := &runtime.Config{
		Config: engine.Config{
			MemoryLimitPages: uint32(cfg.memoryPages),
			CacheDir:         cfg.cacheDir,
			Mounts:           cfg.mounts,
			Stderr:           os.Stderr,
		},
		PoolSize: cfg.jobs,
		Logger:   log,
	}
	if cfg.interactive {
		rtCfg.Stderr = nil
	}

	rt, err := runtime.New(ctx, wasm, rtCfg)
	if err != nil {
		return err
	}
	defer rt.Close(ctx)

	switch {
	case cfg.interactive:
		return runInteractive(ctx, rt, cfg)
	case cfg.batch != "":
		return runBatch(ctx, rt, cfg, os.Stderr)
	}

	var png []byte
	if cfg.in == "-" {
		doc, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		png, err = rt.Render(ctx, string(doc), &cfg.opts)
		if err != nil {
			return err
		}
	} else {
		png, err = rt.RenderFile(ctx, cfg.in, &cfg.opts)
		if err != nil {
			return err
		}
	}

	return writeOutput(cfg, png)
}

func writeOutput(cfg *config, png []byte) error {
	out := cfg.out
	if out == "" {
		if cfg.in == "-" {
			out = "-"
		} else {
			out = strings.TrimSuffix(cfg.in, filepath.Ext(cfg.in)) + ".png"
		}
	}

	if out == "-" {
		if term.IsTerminal(int(os.Stdout.Fd())) {
			return errors.New("refusing to write PNG data to a terminal; use -out or a pipe")
		}
		_, err := os.Stdout.Write(png)
		return err
	}

	if err := os.WriteFile(out, png, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}
	fmt.Fprintf(os.Stderr, "wrote %s (%d bytes)\n", out, len(png))
	return nil
}
