package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	svgpng "github.com/wippyai/svgpng"
)

// Profile is a reusable set of render options stored as TOML:
//
//	width = 256
//	background = "#ffffff"
//	skip_system_fonts = true
//	fonts = ["fonts/Inter-Regular.ttf"]
//	mounts = ["./assets:/assets"]
//	resources_dir = "/assets"
//
// Relative host paths in fonts and mounts resolve against the profile's
// directory. Guest paths are used as written.
type Profile struct {
	Width             *int     `toml:"width"`
	Height            *int     `toml:"height"`
	Zoom              *float32 `toml:"zoom"`
	DPI               int      `toml:"dpi"`
	SkipSystemFonts   bool     `toml:"skip_system_fonts"`
	Background        string   `toml:"background"`
	ExportID          string   `toml:"export_id"`
	ExportAreaPage    bool     `toml:"export_area_page"`
	ExportAreaDrawing bool     `toml:"export_area_drawing"`
	ResourcesDir      string   `toml:"resources_dir"`
	FontFile          string   `toml:"font_file"`
	FontDir           string   `toml:"font_dir"`
	Fonts             []string `toml:"fonts"`
	Mounts            []string `toml:"mounts"`
}

func LoadProfile(path string) (*Profile, error) {
	p := &Profile{}
	md, err := toml.DecodeFile(path, p)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}

	base := filepath.Dir(path)
	for i, f := range p.Fonts {
		p.Fonts[i] = resolveHostPath(base, f)
	}
	for i, m := range p.Mounts {
		if j := strings.LastIndex(m, ":"); j > 0 {
			p.Mounts[i] = resolveHostPath(base, m[:j]) + m[j:]
		}
	}
	return p, nil
}

func resolveHostPath(base, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

// Options returns the render options the profile describes. Fonts are host
// paths and are not loaded here.
func (p *Profile) Options() svgpng.Options {
	return svgpng.Options{
		Width:             p.Width,
		Height:            p.Height,
		Zoom:              p.Zoom,
		DPI:               p.DPI,
		SkipSystemFonts:   p.SkipSystemFonts,
		Background:        p.Background,
		ExportID:          p.ExportID,
		ExportAreaPage:    p.ExportAreaPage,
		ExportAreaDrawing: p.ExportAreaDrawing,
		ResourcesDir:      p.ResourcesDir,
		FontFile:          p.FontFile,
		FontDir:           p.FontDir,
	}
}
