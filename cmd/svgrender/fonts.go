package main

import (
	"bytes"
	"fmt"
	"os"

	"github.com/go-text/typesetting/font"
	"go.uber.org/zap"
)

// loadFonts reads font files for in-memory loading. Files that do not parse
// as a single TrueType/OpenType face are still passed on; the renderer makes
// the final call.
func loadFonts(paths []string, log *zap.Logger) ([][]byte, error) {
	if len(paths) == 0 {
		return nil, nil
	}
	fonts := make([][]byte, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read font: %w", err)
		}
		if len(data) == 0 {
			return nil, fmt.Errorf("font %s is empty", path)
		}

		face, err := font.ParseTTF(bytes.NewReader(data))
		if err != nil {
			log.Warn("font not recognised, passing it to the renderer anyway",
				zap.String("path", path),
				zap.Error(err))
		} else {
			log.Debug("font loaded",
				zap.String("path", path),
				zap.Int("bytes", len(data)),
				zap.Uint16("upem", face.Upem()))
		}
		fonts = append(fonts, data)
	}
	return fonts, nil
}
