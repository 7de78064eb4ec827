package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/png"
	"os"
	"path/filepath"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/ironsheep/image-pipeline-mcp/internal/annotate"
	"github.com/ironsheep/image-pipeline-mcp/internal/encoding"
	"github.com/ironsheep/image-pipeline-mcp/internal/imaging"
	"github.com/ironsheep/image-pipeline-mcp/internal/pipeline"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "image_convert", "image_process_batch").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments jsoniter.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, codeInvalidParams, "Invalid params", err.Error())
	}

	result, err := s.executeTool(ctx, params.Name, params.Arguments)
	if err != nil {
		s.log.Warn("tool failed", zap.String("tool", params.Name), zap.Error(err))
		return s.errorResponse(req.ID, codeToolFailed, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(ctx context.Context, name string, args jsoniter.RawMessage) (interface{}, error) {
	if len(args) == 0 {
		args = jsoniter.RawMessage("{}")
	}

	switch name {
	// Inspection
	case "image_info":
		return s.handleImageInfo(args)
	case "image_verify":
		return s.handleImageVerify(args)
	case "image_alt_text":
		return s.handleImageAltText(args)
	case "image_edge_map":
		return s.handleImageEdgeMap(args)

	// Transforms
	case "image_convert":
		return s.handleTransform(ctx, pipeline.OpConvert, args)
	case "image_compress":
		return s.handleTransform(ctx, pipeline.OpCompress, args)
	case "image_upscale":
		return s.handleTransform(ctx, pipeline.OpUpscale, args)
	case "image_cartoon":
		return s.handleTransform(ctx, pipeline.OpCartoon, args)
	case "image_sketch":
		return s.handleTransform(ctx, pipeline.OpSketch, args)

	// Batch
	case "image_process_batch":
		return s.handleProcessBatch(ctx, args)

	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// On marshal failure, returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

type pathArgs struct {
	Path string `json:"path"`
}

func parsePathArgs(args jsoniter.RawMessage) (pathArgs, error) {
	var a pathArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return a, err
	}
	if a.Path == "" {
		return a, errors.New("path is required")
	}
	return a, nil
}

// sourceFrom turns a cached image into a pipeline input. With describe set,
// the ALT text is generated from the file name and pixels.
func sourceFrom(src *imaging.Source, describe bool) pipeline.Source {
	in := pipeline.Source{
		Name:     src.Name(),
		MIMEType: src.MIMEType(),
		Image:    src.Image,
	}
	if describe {
		a := annotate.Describe(in.Name, src.Image)
		in.Annotation = &a
	}
	return in
}

// === Inspection Handlers ===

type imageInfoResult struct {
	*imaging.ImageInfo
	FileSize string `json:"file_size"`
}

func (s *Server) handleImageInfo(args jsoniter.RawMessage) (interface{}, error) {
	a, err := parsePathArgs(args)
	if err != nil {
		return nil, err
	}
	src, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	info := imaging.Info(src)
	return &imageInfoResult{ImageInfo: info, FileSize: annotate.FormatFileSize(info.FileSizeBytes)}, nil
}

type imageVerifyResult struct {
	annotate.Verification
	FileSizeBytes int64  `json:"file_size_bytes"`
	FileSize      string `json:"file_size"`
}

func (s *Server) handleImageVerify(args jsoniter.RawMessage) (interface{}, error) {
	a, err := parsePathArgs(args)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(a.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	size := int64(len(data))
	return &imageVerifyResult{
		Verification:  annotate.VerifyBytes(data),
		FileSizeBytes: size,
		FileSize:      annotate.FormatFileSize(size),
	}, nil
}

// handleImageAltText never fails on undecodable input: the description falls
// back to the file name.
func (s *Server) handleImageAltText(args jsoniter.RawMessage) (interface{}, error) {
	a, err := parsePathArgs(args)
	if err != nil {
		return nil, err
	}
	name := filepath.Base(a.Path)
	src, err := s.cache.Load(a.Path)
	if errors.Is(err, imaging.ErrDecode) {
		return annotate.Fallback(name), nil
	}
	if err != nil {
		return nil, err
	}
	return annotate.Describe(name, src.Image), nil
}

type edgeMapArgs struct {
	Path      string `json:"path"`
	OutputDir string `json:"output_dir"`
}

type edgeMapResult struct {
	FileName     string `json:"file_name"`
	Dimensions   string `json:"dimensions"`
	MaxMagnitude int32  `json:"max_magnitude"`

	// CartoonEdges and SketchEdges count the pixels the cartoon and sketch
	// filters would draw as lines.
	CartoonEdges int `json:"cartoon_edges"`
	SketchEdges  int `json:"sketch_edges"`

	Path string `json:"path,omitempty"`
	Data string `json:"data,omitempty"`
}

func (s *Server) handleImageEdgeMap(args jsoniter.RawMessage) (interface{}, error) {
	var a edgeMapArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Path == "" {
		return nil, errors.New("path is required")
	}
	src, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}

	grad := imaging.DetectEdges(src.Image)
	res := &edgeMapResult{
		FileName:   encoding.FileName(src.Name(), "edges", encoding.PNG.Extension()),
		Dimensions: fmt.Sprintf("%dx%d", grad.Width, grad.Height),
	}
	for _, m := range grad.Mag {
		res.MaxMagnitude = max(res.MaxMagnitude, m)
		if m > imaging.CartoonEdgeThreshold {
			res.CartoonEdges++
		}
		if m > imaging.SketchEdgeThreshold {
			res.SketchEdges++
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, grad.Image()); err != nil {
		return nil, fmt.Errorf("failed to encode edge map: %w", err)
	}

	dir := a.OutputDir
	if dir == "" {
		dir = s.outputDir
	}
	if dir == "" {
		res.Data = encodeBase64(buf.Bytes())
		return res, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	res.Path = filepath.Join(dir, res.FileName)
	if err := os.WriteFile(res.Path, buf.Bytes(), 0o644); err != nil {
		return nil, fmt.Errorf("failed to save %s: %w", res.FileName, err)
	}
	s.cache.Evict(res.Path)
	return res, nil
}

// === Transform Handlers ===

type transformArgs struct {
	Path      string `json:"path"`
	OutputDir string `json:"output_dir"`
	Describe  bool   `json:"describe"`
	pipeline.Settings
}

func (s *Server) handleTransform(ctx context.Context, op pipeline.Operation, args jsoniter.RawMessage) (interface{}, error) {
	a := transformArgs{Settings: pipeline.DefaultSettings()}
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Path == "" {
		return nil, errors.New("path is required")
	}
	src, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}

	res, err := s.pipeline.Process(ctx, sourceFrom(src, a.Describe), pipeline.Request{Operation: op, Settings: a.Settings})
	if err != nil {
		return nil, err
	}

	outputs, err := s.deliver(s.outputDirFor(a.OutputDir), "", []*pipeline.ProcessedResult{res})
	if err != nil {
		return nil, err
	}
	return outputs[0], nil
}

func (s *Server) outputDirFor(dir string) string {
	if dir != "" {
		return dir
	}
	return s.outputDir
}

// === Batch Handler ===

type batchArgs struct {
	Paths     []string `json:"paths"`
	Operation string   `json:"operation"`
	FailFast  *bool    `json:"fail_fast"`
	OutputDir string   `json:"output_dir"`
	Describe  bool     `json:"describe"`
	pipeline.Settings
}

type batchItem struct {
	Index int                `json:"index"`
	Name  string             `json:"name"`
	Path  string             `json:"path"`
	Image *imageOutput       `json:"image,omitempty"`
	Kind  pipeline.ErrorKind `json:"kind,omitempty"`
	Error string             `json:"error,omitempty"`
}

type batchResult struct {
	Batch     string             `json:"batch"`
	Operation pipeline.Operation `json:"operation"`
	Succeeded int                `json:"succeeded"`
	Failed    int                `json:"failed"`
	Elapsed   string             `json:"elapsed"`
	Items     []batchItem        `json:"items"`
}

// handleProcessBatch loads every path, runs the loaded images through the
// batch runner and reports one item per path in input order. Paths that
// cannot be loaded fail on their own without affecting the rest.
func (s *Server) handleProcessBatch(ctx context.Context, args jsoniter.RawMessage) (interface{}, error) {
	a := batchArgs{Settings: pipeline.DefaultSettings()}
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if len(a.Paths) == 0 {
		return nil, errors.New("paths is required")
	}

	runner := s.runner
	if a.FailFast != nil && *a.FailFast != runner.Config().FailFast {
		cfg := runner.Config()
		cfg.FailFast = *a.FailFast
		runner = pipeline.NewRunner(s.pipeline, cfg, s.log)
	}
	if limit := runner.Config().MaxBatch; len(a.Paths) > limit {
		return nil, fmt.Errorf("%w: %d images, limit is %d", pipeline.ErrBatchTooLarge, len(a.Paths), limit)
	}

	outcomes := make([]pipeline.Outcome, len(a.Paths))
	var sources []pipeline.Source
	var indices []int
	for i, path := range a.Paths {
		src, err := s.cache.Load(path)
		if err != nil {
			outcomes[i] = pipeline.FailedOutcome(i, filepath.Base(path), err)
			continue
		}
		sources = append(sources, sourceFrom(src, a.Describe))
		indices = append(indices, i)
	}

	batch, err := runner.Run(ctx, sources, pipeline.Request{
		Operation: pipeline.Operation(a.Operation),
		Settings:  a.Settings,
	})
	if err != nil {
		return nil, err
	}
	for j, o := range batch.Outcomes {
		o.Index = indices[j]
		outcomes[o.Index] = o
	}

	var results []*pipeline.ProcessedResult
	for _, o := range outcomes {
		if o.OK() {
			results = append(results, o.Result)
		}
	}
	images, err := s.deliver(s.outputDirFor(a.OutputDir), batch.ID, results)
	if err != nil {
		return nil, err
	}

	out := &batchResult{
		Batch:     batch.ID,
		Operation: batch.Operation,
		Elapsed:   batch.Elapsed.String(),
		Items:     make([]batchItem, len(outcomes)),
	}
	for i, o := range outcomes {
		item := batchItem{Index: i, Name: o.Name, Path: a.Paths[i], Kind: o.Kind, Error: o.Error}
		if o.OK() {
			item.Image, images = images[0], images[1:]
			out.Succeeded++
		} else {
			out.Failed++
		}
		out.Items[i] = item
	}
	return out, nil
}
