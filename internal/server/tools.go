package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

func pathProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Absolute path to the image file",
	}
}

func outputDirProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Directory to write results into (a manifest.yaml is kept there). When omitted, results are returned as base64.",
	}
}

func resizeProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "object",
		"description": "Optional resize. Width/height of 0 or empty mean 'not given'.",
		"properties": map[string]interface{}{
			"width":               map[string]interface{}{"type": []string{"integer", "string"}},
			"height":              map[string]interface{}{"type": []string{"integer", "string"}},
			"maintainAspectRatio": map[string]interface{}{"type": "boolean", "default": true},
			"fit": map[string]interface{}{
				"type":        "string",
				"enum":        []string{"cover", "contain", "fill"},
				"description": "How to reconcile aspect ratios when both width and height are given. Default cover.",
			},
		},
	}
}

func formatProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"enum":        []string{"jpeg", "png", "webp", "gif", "bmp"},
		"description": "Output format. Default jpeg.",
	}
}

func qualityProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "integer",
		"minimum":     10,
		"maximum":     100,
		"description": "Output quality for lossy formats. Default 90. PNG is always lossless.",
	}
}

func modeProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"enum":        []string{"smart", "aggressive", "balanced", "custom"},
		"description": "Compression mode: smart 75%, aggressive 60%, balanced 80%, custom uses customQuality. Default smart.",
	}
}

func optionsProperty() map[string]interface{} {
	flag := func(desc string) map[string]interface{} {
		return map[string]interface{}{"type": "boolean", "description": desc}
	}
	return map[string]interface{}{
		"type":        "object",
		"description": "Compression post-options; each enabled option lowers the quality factor.",
		"properties": map[string]interface{}{
			"removeMetadata":      flag("x0.95, default true"),
			"optimizeColors":      flag("x0.90, default true"),
			"progressiveEncoding": flag("x0.98"),
			"stripAlpha":          flag("x0.85"),
		},
	}
}

func describeProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "boolean",
		"description": "Generate ALT text for the result from the file name and colors.",
	}
}

func object(required []string, props map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Inspection
		{
			Name:        "image_info",
			Description: "Load an image file and return its dimensions, format, MIME type, alpha and file size.",
			InputSchema: object([]string{"path"}, map[string]interface{}{
				"path": pathProperty(),
			}),
		},
		{
			Name:        "image_verify",
			Description: "Check that a file decodes as an image and flag low resolution (<100px) or suspiciously small files (<1KB).",
			InputSchema: object([]string{"path"}, map[string]interface{}{
				"path": pathProperty(),
			}),
		},
		{
			Name:        "image_alt_text",
			Description: "Suggest ALT text (max 125 characters) and an SEO-friendly file name from the file name and dominant colors.",
			InputSchema: object([]string{"path"}, map[string]interface{}{
				"path": pathProperty(),
			}),
		},
		{
			Name:        "image_edge_map",
			Description: "Render the Sobel gradient magnitude of an image as a grayscale PNG and report how many pixels the cartoon and sketch filters treat as edges.",
			InputSchema: object([]string{"path"}, map[string]interface{}{
				"path":       pathProperty(),
				"output_dir": outputDirProperty(),
			}),
		},

		// Transforms
		{
			Name:        "image_convert",
			Description: "Re-encode an image to another format, optionally resizing it.",
			InputSchema: object([]string{"path", "format"}, map[string]interface{}{
				"path":       pathProperty(),
				"format":     formatProperty(),
				"quality":    qualityProperty(),
				"resize":     resizeProperty(),
				"describe":   describeProperty(),
				"output_dir": outputDirProperty(),
			}),
		},
		{
			Name:        "image_compress",
			Description: "Re-encode an image in its own format at a lower quality chosen by compression mode and options.",
			InputSchema: object([]string{"path"}, map[string]interface{}{
				"path": pathProperty(),
				"mode": modeProperty(),
				"customQuality": map[string]interface{}{
					"type":        "integer",
					"minimum":     0,
					"maximum":     100,
					"description": "Quality for custom mode. Default 85.",
				},
				"options":    optionsProperty(),
				"resize":     resizeProperty(),
				"describe":   describeProperty(),
				"output_dir": outputDirProperty(),
			}),
		},
		{
			Name:        "image_upscale",
			Description: "Enlarge an image 2x or 4x with high-quality interpolation. PNG, WebP and JPEG keep their format; others become PNG.",
			InputSchema: object([]string{"path"}, map[string]interface{}{
				"path": pathProperty(),
				"upscaleFactor": map[string]interface{}{
					"type":    "integer",
					"enum":    []int{2, 4},
					"default": 2,
				},
				"describe":   describeProperty(),
				"output_dir": outputDirProperty(),
			}),
		},
		{
			Name:        "image_cartoon",
			Description: "Cartoon filter: black outlines where the Sobel edge magnitude exceeds 80, saturated colors quantized to 8 levels elsewhere.",
			InputSchema: object([]string{"path"}, map[string]interface{}{
				"path":       pathProperty(),
				"format":     formatProperty(),
				"quality":    qualityProperty(),
				"resize":     resizeProperty(),
				"output_dir": outputDirProperty(),
			}),
		},
		{
			Name:        "image_sketch",
			Description: "Pencil sketch filter: white paper with gray strokes where the Sobel edge magnitude exceeds 30.",
			InputSchema: object([]string{"path"}, map[string]interface{}{
				"path":       pathProperty(),
				"format":     formatProperty(),
				"quality":    qualityProperty(),
				"resize":     resizeProperty(),
				"output_dir": outputDirProperty(),
			}),
		},

		// Batch
		{
			Name:        "image_process_batch",
			Description: "Apply one operation to up to 101 images. Each image succeeds or fails on its own; failures are reported per image.",
			InputSchema: object([]string{"paths", "operation"}, map[string]interface{}{
				"paths": map[string]interface{}{
					"type":        "array",
					"items":       map[string]interface{}{"type": "string"},
					"description": "Absolute paths of the images to process",
				},
				"operation": map[string]interface{}{
					"type": "string",
					"enum": []string{"convert", "compress", "upscale", "cartoon", "sketch"},
				},
				"format":  formatProperty(),
				"quality": qualityProperty(),
				"mode":    modeProperty(),
				"customQuality": map[string]interface{}{
					"type": "integer",
				},
				"upscaleFactor": map[string]interface{}{
					"type": "integer",
					"enum": []int{2, 4},
				},
				"options":  optionsProperty(),
				"resize":   resizeProperty(),
				"describe": describeProperty(),
				"fail_fast": map[string]interface{}{
					"type":        "boolean",
					"description": "Stop after the first failing image. Default from server configuration.",
				},
				"output_dir": outputDirProperty(),
			}),
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
