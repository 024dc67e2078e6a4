package bundle

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/danmuck/atlasctl/internal/atlas"
	"github.com/rs/zerolog/log"
)

const (
	GeneratorManifest = "manifest.json"
	BundleMetadata    = "atlas.json"
	BundleAtlasDir    = "atlas"
)

// CopiedFile maps one generator atlas file to its bundle name.
type CopiedFile struct {
	Original string `json:"original"`
	New      string `json:"new"`
	Index    int    `json:"index"`
}

type Result struct {
	OutputDir string          `json:"output_dir"`
	AtlasJSON string          `json:"atlas_json"`
	Copied    []CopiedFile    `json:"copied"`
	Missing   []string        `json:"missing,omitempty"`
	Images    int             `json:"images"`
	Atlases   int             `json:"atlases"`
	Document  *atlas.Document `json:"-"`
}

// Build reads <atlasDir>/manifest.json and writes the static bundle into outDir.
// Atlas files missing on disk are skipped and reported.
func Build(atlasDir, outDir string) (Result, error) {
	data, err := LoadGeneratorData(filepath.Join(atlasDir, GeneratorManifest))
	if err != nil {
		return Result{}, err
	}
	doc, err := Compress(data)
	if err != nil {
		return Result{}, err
	}
	if err := os.MkdirAll(filepath.Join(outDir, BundleAtlasDir), 0o755); err != nil {
		return Result{}, fmt.Errorf("bundle: create output: %w", err)
	}

	res := Result{
		OutputDir: outDir,
		AtlasJSON: filepath.Join(outDir, BundleMetadata),
		Copied:    make([]CopiedFile, 0, len(data.Atlases)),
		Images:    len(doc.Mapping),
		Atlases:   len(doc.Atlases),
		Document:  doc,
	}
	for i, src := range data.Atlases {
		if src.File == "" {
			continue
		}
		from := filepath.Join(atlasDir, src.File)
		name := strconv.Itoa(i) + filepath.Ext(src.File)
		sum, err := copyFile(from, filepath.Join(outDir, BundleAtlasDir, name))
		if os.IsNotExist(err) {
			log.Warn().Str("file", from).Msg("atlas file not found")
			res.Missing = append(res.Missing, src.File)
			continue
		}
		if err != nil {
			return Result{}, fmt.Errorf("bundle: copy %s: %w", src.File, err)
		}
		if doc.Atlases[i].SHA == "" {
			doc.Atlases[i].SHA = sum
		}
		res.Copied = append(res.Copied, CopiedFile{Original: src.File, New: name, Index: i})
		log.Debug().Msgf("bundle.Build copied %s -> %s", src.File, name)
	}

	if err := writeJSON(res.AtlasJSON, doc); err != nil {
		return Result{}, err
	}
	log.Info().
		Str("output", outDir).
		Int("images", res.Images).
		Int("atlases", res.Atlases).
		Int("copied", len(res.Copied)).
		Int("missing", len(res.Missing)).
		Msg("bundle built")
	return res, nil
}

// copyFile copies src to dst and returns the short sha256 of the contents.
func copyFile(src, dst string) (string, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return "", err
	}
	h := sha256.New()
	if _, err := io.Copy(io.MultiWriter(out, h), in); err != nil {
		_ = out.Close()
		return "", err
	}
	if err := out.Close(); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil))[:16], nil
}

// writeJSON writes v indented, without html escaping.
func writeJSON(path string, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}
