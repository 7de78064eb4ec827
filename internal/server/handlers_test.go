package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ironsheep/image-pipeline-mcp/internal/pipeline"
)

// createTestImageFile writes a solid PNG named name into a temp directory
// and returns its path.
func createTestImageFile(t *testing.T, name string, width, height int, c color.Color) string {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}

	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create file: %v", err)
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		t.Fatalf("failed to encode image: %v", err)
	}
	return path
}

// createSplitImageFile writes a PNG whose left half is black and right half
// white, giving a strong vertical edge.
func createSplitImageFile(t *testing.T, name string, width, height int) string {
	t.Helper()

	img := image.NewGray(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := width / 2; x < width; x++ {
			img.SetGray(x, y, color.Gray{Y: 255})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode image: %v", err)
	}
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	return path
}

func writeGarbageFile(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("not an image"), 0o644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	return path
}

// callTool runs a tools/call request and decodes the JSON text content.
func callTool(t *testing.T, s *Server, name string, args map[string]interface{}) map[string]interface{} {
	t.Helper()

	resp := s.handleRequest(context.Background(), toolRequest(t, name, args))
	if resp == nil {
		t.Fatal("handleRequest returned nil")
	}
	if resp.Error != nil {
		t.Fatalf("Unexpected error: %+v", resp.Error)
	}

	result := resp.Result.(map[string]interface{})
	content := result["content"].([]map[string]interface{})
	if len(content) != 1 || content[0]["type"] != "text" {
		t.Fatalf("unexpected content: %v", content)
	}

	var out map[string]interface{}
	if err := json.Unmarshal([]byte(content[0]["text"].(string)), &out); err != nil {
		t.Fatalf("Failed to unmarshal tool result: %v", err)
	}
	return out
}

func toolRequest(t *testing.T, name string, args map[string]interface{}) *MCPRequest {
	t.Helper()
	params, err := json.Marshal(map[string]interface{}{"name": name, "arguments": args})
	if err != nil {
		t.Fatalf("failed to marshal params: %v", err)
	}
	return &MCPRequest{JSONRPC: "2.0", ID: 1, Method: "tools/call", Params: params}
}

func decodeData(t *testing.T, out map[string]interface{}) image.Image {
	t.Helper()
	raw, err := base64.StdEncoding.DecodeString(out["data"].(string))
	if err != nil {
		t.Fatalf("data is not base64: %v", err)
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("data is not an image: %v", err)
	}
	return img
}

func TestHandleToolsCall_ImageInfo(t *testing.T) {
	s := New(Options{})
	imgPath := createTestImageFile(t, "info.png", 100, 80, color.RGBA{255, 0, 0, 255})

	out := callTool(t, s, "image_info", map[string]interface{}{"path": imgPath})

	if out["width"] != float64(100) || out["height"] != float64(80) {
		t.Errorf("dimensions: got %vx%v, want 100x80", out["width"], out["height"])
	}
	if out["mime_type"] != "image/png" {
		t.Errorf("mime_type: got %v", out["mime_type"])
	}
	if out["file_size"] == "" || out["file_size"] == "0 Bytes" {
		t.Errorf("file_size: got %v", out["file_size"])
	}
}

func TestHandleToolsCall_ImageVerify(t *testing.T) {
	s := New(Options{})

	small := createTestImageFile(t, "small.png", 50, 50, color.RGBA{0, 0, 255, 255})
	out := callTool(t, s, "image_verify", map[string]interface{}{"path": small})
	if out["status"] != "warning" {
		t.Errorf("status: got %v, want warning", out["status"])
	}
	issues := out["issues"].([]interface{})
	if len(issues) != 2 {
		t.Errorf("expected low resolution and size issues, got %v", issues)
	}

	garbage := writeGarbageFile(t, "broken.png")
	out = callTool(t, s, "image_verify", map[string]interface{}{"path": garbage})
	if out["status"] != "invalid" {
		t.Errorf("status: got %v, want invalid", out["status"])
	}
}

func TestHandleToolsCall_ImageAltText(t *testing.T) {
	s := New(Options{})

	imgPath := createTestImageFile(t, "sunset-beach.png", 200, 100, color.RGBA{255, 0, 0, 255})
	out := callTool(t, s, "image_alt_text", map[string]interface{}{"path": imgPath})
	if out["alt_text"] != "Vibrant reddish toned scenic landscape view of sunset beach" {
		t.Errorf("alt_text: got %v", out["alt_text"])
	}
	if out["suggested_name"] != "sunset-beach-landscape" {
		t.Errorf("suggested_name: got %v", out["suggested_name"])
	}

	garbage := writeGarbageFile(t, "team-photo.png")
	out = callTool(t, s, "image_alt_text", map[string]interface{}{"path": garbage})
	if out["alt_text"] == "" {
		t.Error("undecodable image should still get a fallback description")
	}
}

func TestHandleToolsCall_ImageEdgeMap(t *testing.T) {
	s := New(Options{})
	imgPath := createSplitImageFile(t, "split.png", 40, 20)
	dir := t.TempDir()

	out := callTool(t, s, "image_edge_map", map[string]interface{}{"path": imgPath, "output_dir": dir})

	if out["file_name"] != "split_edges.png" {
		t.Errorf("file_name: got %v", out["file_name"])
	}
	if out["cartoon_edges"].(float64) == 0 {
		t.Error("black/white boundary should produce cartoon edges")
	}
	if out["sketch_edges"].(float64) < out["cartoon_edges"].(float64) {
		t.Error("sketch threshold is lower, so it should never see fewer edges")
	}
	// About 255 * (1 + 2 + 1) on both columns next to the boundary.
	if m := out["max_magnitude"].(float64); m < 1000 || m > 1020 {
		t.Errorf("max_magnitude: got %v, want ~1020", m)
	}
	if _, err := os.Stat(filepath.Join(dir, "split_edges.png")); err != nil {
		t.Errorf("edge map not written: %v", err)
	}
}

func TestHandleToolsCall_ConvertInline(t *testing.T) {
	s := New(Options{})
	imgPath := createTestImageFile(t, "logo.png", 300, 300, color.RGBA{10, 20, 30, 255})

	out := callTool(t, s, "image_convert", map[string]interface{}{
		"path":   imgPath,
		"format": "webp",
		"resize": map[string]interface{}{"width": "150"},
	})

	if out["file_name"] != "logo_converted.webp" {
		t.Errorf("file_name: got %v", out["file_name"])
	}
	if out["mime_type"] != "image/webp" {
		t.Errorf("mime_type: got %v", out["mime_type"])
	}
	if out["dimensions"] != "150x150" {
		t.Errorf("dimensions: got %v, want 150x150", out["dimensions"])
	}
	if out["path"] != nil {
		t.Errorf("inline result should not have a path: %v", out["path"])
	}
	if b := decodeData(t, out).Bounds(); b.Dx() != 150 || b.Dy() != 150 {
		t.Errorf("decoded size: got %v", b)
	}
}

func TestHandleToolsCall_CompressToOutputDir(t *testing.T) {
	s := New(Options{})
	imgPath := createTestImageFile(t, "holiday.png", 120, 90, color.RGBA{200, 100, 50, 255})
	dir := filepath.Join(t.TempDir(), "out")

	out := callTool(t, s, "image_compress", map[string]interface{}{
		"path":       imgPath,
		"mode":       "aggressive",
		"describe":   true,
		"output_dir": dir,
	})

	want := filepath.Join(dir, "holiday_compressed.png")
	if out["path"] != want {
		t.Errorf("path: got %v, want %s", out["path"], want)
	}
	if out["data"] != nil {
		t.Error("written result should not inline data")
	}
	if out["alt_text"] == "" || out["alt_text"] == "holiday" {
		t.Errorf("describe should produce a generated description, got %v", out["alt_text"])
	}
	if _, err := os.Stat(want); err != nil {
		t.Fatalf("result not written: %v", err)
	}

	m, err := LoadManifest(dir)
	if err != nil {
		t.Fatalf("LoadManifest failed: %v", err)
	}
	if len(m.Entries) != 1 || m.Entries[0].File != "holiday_compressed.png" {
		t.Fatalf("unexpected manifest entries: %+v", m.Entries)
	}
	if m.Entries[0].Operation != "compress" || m.Entries[0].Source != "holiday.png" {
		t.Errorf("unexpected manifest entry: %+v", m.Entries[0])
	}

	// Writing the same result again replaces its entry.
	callTool(t, s, "image_compress", map[string]interface{}{"path": imgPath, "output_dir": dir})
	m, err = LoadManifest(dir)
	if err != nil {
		t.Fatalf("LoadManifest failed: %v", err)
	}
	if len(m.Entries) != 1 {
		t.Errorf("expected 1 entry after rewrite, got %d", len(m.Entries))
	}
}

func TestHandleToolsCall_Upscale(t *testing.T) {
	s := New(Options{})
	imgPath := createTestImageFile(t, "tiny.png", 30, 20, color.RGBA{0, 128, 0, 255})

	out := callTool(t, s, "image_upscale", map[string]interface{}{"path": imgPath, "upscaleFactor": 4})

	if out["file_name"] != "tiny_upscaled_4x.png" {
		t.Errorf("file_name: got %v", out["file_name"])
	}
	if out["dimensions"] != "120x80" {
		t.Errorf("dimensions: got %v, want 120x80", out["dimensions"])
	}
}

func TestHandleToolsCall_Stylize(t *testing.T) {
	s := New(Options{})
	imgPath := createSplitImageFile(t, "photo.png", 40, 40)

	for _, style := range []string{"cartoon", "sketch"} {
		t.Run(style, func(t *testing.T) {
			out := callTool(t, s, "image_"+style, map[string]interface{}{"path": imgPath, "format": "png"})
			if out["file_name"] != "photo_"+style+".png" {
				t.Errorf("file_name: got %v", out["file_name"])
			}
			if out["dimensions"] != "40x40" {
				t.Errorf("dimensions: got %v", out["dimensions"])
			}
		})
	}
}

func TestHandleToolsCall_ProcessBatch(t *testing.T) {
	s := New(Options{})
	good1 := createTestImageFile(t, "a.png", 64, 64, color.RGBA{255, 255, 0, 255})
	good2 := createTestImageFile(t, "b.png", 32, 16, color.RGBA{0, 255, 255, 255})
	garbage := writeGarbageFile(t, "c.png")
	missing := filepath.Join(t.TempDir(), "missing.png")
	dir := t.TempDir()

	out := callTool(t, s, "image_process_batch", map[string]interface{}{
		"paths":      []string{good1, garbage, missing, good2},
		"operation":  "convert",
		"format":     "png",
		"output_dir": dir,
	})

	if out["succeeded"] != float64(2) || out["failed"] != float64(2) {
		t.Errorf("succeeded/failed: got %v/%v, want 2/2", out["succeeded"], out["failed"])
	}
	if out["batch"] == "" {
		t.Error("batch id should be set")
	}

	items := out["items"].([]interface{})
	if len(items) != 4 {
		t.Fatalf("expected 4 items, got %d", len(items))
	}
	wantNames := []string{"a.png", "c.png", "missing.png", "b.png"}
	for i, raw := range items {
		item := raw.(map[string]interface{})
		if item["index"] != float64(i) || item["name"] != wantNames[i] {
			t.Errorf("item %d: got index %v name %v", i, item["index"], item["name"])
		}
	}

	garbageItem := items[1].(map[string]interface{})
	if garbageItem["kind"] != string(pipeline.KindDecodeFailure) {
		t.Errorf("garbage kind: got %v, want %s", garbageItem["kind"], pipeline.KindDecodeFailure)
	}
	if items[2].(map[string]interface{})["error"] == "" {
		t.Error("missing file should report an error")
	}

	last := items[3].(map[string]interface{})["image"].(map[string]interface{})
	if last["file_name"] != "b_converted.png" || last["dimensions"] != "32x16" {
		t.Errorf("unexpected image for b.png: %v", last)
	}

	m, err := LoadManifest(dir)
	if err != nil {
		t.Fatalf("LoadManifest failed: %v", err)
	}
	if len(m.Entries) != 2 {
		t.Fatalf("expected 2 manifest entries, got %d", len(m.Entries))
	}
	for _, e := range m.Entries {
		if e.Batch != out["batch"] {
			t.Errorf("entry %s: batch %q, want %v", e.File, e.Batch, out["batch"])
		}
	}
}

func TestHandleToolsCall_ProcessBatch_SameBaseName(t *testing.T) {
	s := New(Options{})
	first := createTestImageFile(t, "photo.png", 10, 10, color.RGBA{255, 0, 0, 255})
	second := createTestImageFile(t, "photo.png", 30, 20, color.RGBA{0, 0, 255, 255})
	dir := t.TempDir()

	out := callTool(t, s, "image_process_batch", map[string]interface{}{
		"paths":      []string{first, second},
		"operation":  "convert",
		"format":     "png",
		"output_dir": dir,
	})

	items := out["items"].([]interface{})
	want := []struct{ file, dims string }{
		{"photo_converted.png", "10x10"},
		{"photo_converted_1.png", "30x20"},
	}
	for i, w := range want {
		img := items[i].(map[string]interface{})["image"].(map[string]interface{})
		if img["file_name"] != w.file || img["dimensions"] != w.dims {
			t.Errorf("item %d: got %v %v, want %s %s", i, img["file_name"], img["dimensions"], w.file, w.dims)
		}
		if img["path"] != filepath.Join(dir, w.file) {
			t.Errorf("item %d: path %v", i, img["path"])
		}

		f, err := os.Open(filepath.Join(dir, w.file))
		if err != nil {
			t.Fatalf("output %s missing: %v", w.file, err)
		}
		cfg, err := png.DecodeConfig(f)
		f.Close()
		if err != nil {
			t.Fatalf("output %s is not a png: %v", w.file, err)
		}
		if got := fmt.Sprintf("%dx%d", cfg.Width, cfg.Height); got != w.dims {
			t.Errorf("%s on disk is %s, want %s", w.file, got, w.dims)
		}
	}

	m, err := LoadManifest(dir)
	if err != nil {
		t.Fatalf("LoadManifest failed: %v", err)
	}
	if len(m.Entries) != 2 {
		t.Errorf("expected 2 manifest entries, got %d", len(m.Entries))
	}
}

func TestUniqueFileNames(t *testing.T) {
	in := []*pipeline.ProcessedResult{
		{FileName: "photo_converted.png"},
		{FileName: "photo_converted.png"},
		{FileName: "photo_converted_1.png"},
		{FileName: "other.png"},
	}

	out := uniqueFileNames(in)

	want := []string{"photo_converted.png", "photo_converted_1.png", "photo_converted_1_1.png", "other.png"}
	for i, w := range want {
		if out[i].FileName != w {
			t.Errorf("result %d: got %s, want %s", i, out[i].FileName, w)
		}
	}
	if in[1].FileName != "photo_converted.png" {
		t.Errorf("input was modified: %s", in[1].FileName)
	}
}

func TestHandleToolsCall_ProcessBatch_TooLarge(t *testing.T) {
	p := pipeline.New()
	s := New(Options{Pipeline: p, Runner: pipeline.NewRunner(p, pipeline.RunnerConfig{MaxBatch: 2}, nil)})

	resp := s.handleRequest(context.Background(), toolRequest(t, "image_process_batch", map[string]interface{}{
		"paths":     []string{"/a.png", "/b.png", "/c.png"},
		"operation": "convert",
	}))

	if resp.Error == nil || resp.Error.Code != codeToolFailed {
		t.Fatalf("expected tool failure, got %+v", resp)
	}
	if !strings.Contains(resp.Error.Data.(string), "limit is 2") {
		t.Errorf("unexpected error data: %v", resp.Error.Data)
	}
}

func TestHandleToolsCall_ProcessBatch_UnknownOperation(t *testing.T) {
	s := New(Options{})
	imgPath := createTestImageFile(t, "a.png", 10, 10, color.RGBA{0, 0, 0, 255})

	resp := s.handleRequest(context.Background(), toolRequest(t, "image_process_batch", map[string]interface{}{
		"paths":     []string{imgPath},
		"operation": "rotate",
	}))

	if resp.Error == nil || resp.Error.Code != codeToolFailed {
		t.Fatalf("expected tool failure, got %+v", resp)
	}
}

func TestHandleToolsCall_Errors(t *testing.T) {
	s := New(Options{})

	tests := []struct {
		name     string
		tool     string
		args     map[string]interface{}
		wantCode int
	}{
		{"unknown tool", "image_rotate", map[string]interface{}{}, codeToolFailed},
		{"missing path", "image_info", map[string]interface{}{}, codeToolFailed},
		{"non-existent file", "image_info", map[string]interface{}{"path": "/nonexistent/image.png"}, codeToolFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := s.handleRequest(context.Background(), toolRequest(t, tt.tool, tt.args))
			if resp.Error == nil {
				t.Fatal("expected error response")
			}
			if resp.Error.Code != tt.wantCode {
				t.Errorf("code: got %d, want %d", resp.Error.Code, tt.wantCode)
			}
			if resp.Error.Message != "Tool execution failed" {
				t.Errorf("message: got %q", resp.Error.Message)
			}
		})
	}
}

func TestHandleToolsCall_InvalidSettingsKind(t *testing.T) {
	s := New(Options{})
	imgPath := createTestImageFile(t, "a.png", 10, 10, color.RGBA{0, 0, 0, 255})

	resp := s.handleRequest(context.Background(), toolRequest(t, "image_convert", map[string]interface{}{
		"path": imgPath, "format": "tiff",
	}))
	if resp.Error == nil {
		t.Fatal("expected error response")
	}
	if !strings.Contains(resp.Error.Data.(string), string(pipeline.KindInvalidSettings)) {
		t.Errorf("error should name the kind: %v", resp.Error.Data)
	}
}

func TestHandleToolsCall_InvalidParams(t *testing.T) {
	s := New(Options{})
	req := &MCPRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "tools/call",
		Params:  []byte(`"not an object"`),
	}

	resp := s.handleRequest(context.Background(), req)

	if resp.Error == nil || resp.Error.Code != codeInvalidParams {
		t.Fatalf("expected -32602, got %+v", resp.Error)
	}
}

func TestExecuteTool_InvalidJSON(t *testing.T) {
	s := New(Options{})

	if _, err := s.executeTool(context.Background(), "image_info", []byte(`{invalid`)); err == nil {
		t.Error("executeTool should fail for invalid JSON")
	}
}
