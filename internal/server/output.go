package server

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ironsheep/image-pipeline-mcp/internal/annotate"
	"github.com/ironsheep/image-pipeline-mcp/internal/pipeline"
)

// ManifestName is the sidecar written next to results in an output directory.
const ManifestName = "manifest.yaml"

// Manifest records every result written to an output directory. Entries are
// keyed by file name; writing a file again replaces its entry.
type Manifest struct {
	Version string          `yaml:"version"`
	Updated time.Time       `yaml:"updated"`
	Entries []ManifestEntry `yaml:"entries"`
}

// ManifestEntry describes one written result.
type ManifestEntry struct {
	File          string    `yaml:"file"`
	Source        string    `yaml:"source"`
	Operation     string    `yaml:"operation"`
	MIMEType      string    `yaml:"mime_type"`
	Dimensions    string    `yaml:"dimensions"`
	Quality       float64   `yaml:"quality"`
	OriginalSize  int64     `yaml:"original_size"`
	ProcessedSize int64     `yaml:"processed_size"`
	AltText       string    `yaml:"alt_text,omitempty"`
	Batch         string    `yaml:"batch,omitempty"`
	Written       time.Time `yaml:"written"`
}

// LoadManifest reads dir's manifest. A missing manifest is empty.
func LoadManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestName))
	if os.IsNotExist(err) {
		return &Manifest{Version: "1.0"}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal manifest: %w", err)
	}
	return &m, nil
}

func (m *Manifest) upsert(e ManifestEntry) {
	i := slices.IndexFunc(m.Entries, func(x ManifestEntry) bool { return x.File == e.File })
	if i == -1 {
		m.Entries = append(m.Entries, e)
		return
	}
	m.Entries[i] = e
}

func (m *Manifest) save(dir string) error {
	if m.Version == "" {
		m.Version = "1.0"
	}
	m.Updated = time.Now()

	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ManifestName), data, 0o644); err != nil {
		return fmt.Errorf("failed to save manifest: %w", err)
	}
	return nil
}

// imageOutput is the JSON shape of one processed image returned by a tool.
type imageOutput struct {
	*pipeline.ProcessedResult

	Dimensions        string `json:"dimensions"`
	OriginalSizeText  string `json:"original_size_text"`
	ProcessedSizeText string `json:"processed_size_text"`

	// Path is set when the result was written to an output directory,
	// Data (base64) otherwise.
	Path string `json:"path,omitempty"`
	Data string `json:"data,omitempty"`
}

func newImageOutput(r *pipeline.ProcessedResult) *imageOutput {
	return &imageOutput{
		ProcessedResult:   r,
		Dimensions:        r.Dimensions(),
		OriginalSizeText:  annotate.FormatFileSize(r.OriginalSize),
		ProcessedSizeText: annotate.FormatFileSize(r.ProcessedSize),
	}
}

// deliver writes results into dir and records them in its manifest, or
// inlines them as base64 when dir is empty. Written paths are evicted from
// the image cache since they may have replaced a cached source.
//
// File names are unique within one call: a second result with the same
// name (same base name from different directories) gets a _1, _2, ...
// suffix instead of overwriting the first.
func (s *Server) deliver(dir, batchID string, results []*pipeline.ProcessedResult) ([]*imageOutput, error) {
	results = uniqueFileNames(results)
	outputs := make([]*imageOutput, len(results))
	if dir == "" {
		for i, r := range results {
			outputs[i] = newImageOutput(r)
			outputs[i].Data = encodeBase64(r.Data)
		}
		return outputs, nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	manifest, err := LoadManifest(dir)
	if err != nil {
		return nil, err
	}

	for i, r := range results {
		path := filepath.Join(dir, r.FileName)
		if err := os.WriteFile(path, r.Data, 0o644); err != nil {
			return nil, fmt.Errorf("failed to save %s: %w", r.FileName, err)
		}
		s.cache.Evict(path)
		manifest.upsert(ManifestEntry{
			File:          r.FileName,
			Source:        r.Name,
			Operation:     string(r.Operation),
			MIMEType:      r.MIMEType,
			Dimensions:    r.Dimensions(),
			Quality:       r.Quality,
			OriginalSize:  r.OriginalSize,
			ProcessedSize: r.ProcessedSize,
			AltText:       r.AltText,
			Batch:         batchID,
			Written:       time.Now(),
		})
		outputs[i] = newImageOutput(r)
		outputs[i].Path = path
	}

	if err := manifest.save(dir); err != nil {
		return nil, err
	}
	return outputs, nil
}

// uniqueFileNames returns results with colliding FileNames suffixed. Renamed
// results are copies; the originals are left untouched.
func uniqueFileNames(results []*pipeline.ProcessedResult) []*pipeline.ProcessedResult {
	used := make(map[string]bool, len(results))
	out := make([]*pipeline.ProcessedResult, len(results))
	for i, r := range results {
		name := r.FileName
		ext := filepath.Ext(name)
		stem := strings.TrimSuffix(name, ext)
		for n := 1; used[name]; n++ {
			name = fmt.Sprintf("%s_%d%s", stem, n, ext)
		}
		used[name] = true

		if name != r.FileName {
			renamed := *r
			renamed.FileName = name
			r = &renamed
		}
		out[i] = r
	}
	return out
}

func encodeBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}
