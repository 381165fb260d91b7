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

func integerProperty(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "integer",
		"description": description,
	}
}

// rectProperties describes a rectangle given as x1, y1 (inclusive) and
// x2, y2 (exclusive).
func rectProperties() map[string]interface{} {
	return map[string]interface{}{
		"x1": integerProperty("Left edge X coordinate (0-based)"),
		"y1": integerProperty("Top edge Y coordinate (0-based)"),
		"x2": integerProperty("Right edge X coordinate (exclusive)"),
		"y2": integerProperty("Bottom edge Y coordinate (exclusive)"),
	}
}

func rectObject(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "object",
		"description": description,
		"properties":  rectProperties(),
		"required":    []string{"x1", "y1", "x2", "y2"},
	}
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	cropProps := rectProperties()
	cropProps["path"] = pathProperty()
	cropProps["scale"] = map[string]interface{}{
		"type":        "number",
		"description": "Optional scale factor (e.g., 2.0 to double size). Default 1.0",
		"default":     1.0,
	}

	return []Tool{
		// Basic Image Information
		{
			Name:        "image_load",
			Description: "Load an image file and return its dimensions, format, color depth and file size. The decoded image is cached for later forensics calls.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "image_dimensions",
			Description: "Get the width and height of an image file.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
				},
				"required": []string{"path"},
			},
		},

		{
			Name:        "image_evict",
			Description: "Drop a decoded image from the server cache so the next call reads the file again. Without a path every cached image is dropped.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path of the image to drop. Omit to clear the cache",
					},
				},
			},
		},

		// Forensics
		{
			Name:        "forensics_list_analyzers",
			Description: "List the forensics analyzers this server knows about and whether each one is available.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
		{
			Name:        "forensics_copy_move",
			Description: "Detect copy-move forgery: regions of the image that were duplicated elsewhere in the same image. Returns ranked matches (source and target regions, offset, similarity), an overall confidence in [0, 1] and a base64 PNG overlay marking each match.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
					"image_base64": map[string]interface{}{
						"type":        "string",
						"description": "Base64-encoded image data to analyse instead of a file. Give either path or image_base64",
					},
					"block_size": map[string]interface{}{
						"type":        "integer",
						"description": "Side length of the square analysis blocks in pixels. Default 16",
						"default":     16,
					},
					"similarity_threshold": map[string]interface{}{
						"type":        "number",
						"description": "Minimum block similarity in (0, 1] for a match. Default 0.95",
						"default":     0.95,
					},
					"min_distance": map[string]interface{}{
						"type":        "integer",
						"description": "Minimum distance in pixels between matched block centers. Default 50",
						"default":     50,
					},
					"stride": map[string]interface{}{
						"type":        "integer",
						"description": "Step between block origins. Larger values are faster but coarser. Default 1",
						"default":     1,
					},
					"text_mask": map[string]interface{}{
						"type":        "string",
						"description": "Exclude text regions from matching: none, edges or ocr. Default from server config",
						"enum":        []string{"none", "edges", "ocr"},
					},
					"include_overlay": map[string]interface{}{
						"type":        "boolean",
						"description": "Return the overlay image as base64 PNG. Default true",
						"default":     true,
					},
				},
			},
		},
		{
			Name:        "forensics_crop_match",
			Description: "Crop a region reported by forensics_copy_move and return it as base64-encoded PNG, optionally scaled, for close inspection.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": cropProps,
				"required":   []string{"path", "x1", "y1", "x2", "y2"},
			},
		},
		{
			Name:        "forensics_compare_regions",
			Description: "Compare two regions of an image pixel by pixel. A cloned region scores close to 1.0 against its source.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path":    pathProperty(),
					"region1": rectObject("First region, usually a match's source_region"),
					"region2": rectObject("Second region, usually a match's target_region"),
				},
				"required": []string{"path", "region1", "region2"},
			},
		},
		{
			Name:        "forensics_text_mask",
			Description: "Find text regions that copy-move analysis would exclude. Repeated glyphs are genuine duplicates and otherwise show up as false matches.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
					"kind": map[string]interface{}{
						"type":        "string",
						"description": "Masking method: edges (heuristic, no OCR) or ocr (Tesseract). Default edges",
						"enum":        []string{"edges", "ocr"},
						"default":     "edges",
					},
					"language": map[string]interface{}{
						"type":        "string",
						"description": "Tesseract language for the ocr method. Default eng",
						"default":     "eng",
					},
				},
				"required": []string{"path"},
			},
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
