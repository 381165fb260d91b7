package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"log"

	"github.com/Molcarrus/image-forensics/internal/analysis"
	"github.com/Molcarrus/image-forensics/internal/forensics"
	"github.com/Molcarrus/image-forensics/internal/forensics/copymove"
	"github.com/Molcarrus/image-forensics/internal/imaging"
	"github.com/Molcarrus/image-forensics/internal/textmask"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "image_load", "forensics_copy_move").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Malformed arguments and out-of-range parameters return -32602; every other
// tool failure returns -32000 with the error string as data.
func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, codeInvalidParams, "Invalid params", err.Error())
	}

	result, err := s.executeTool(ctx, params.Name, params.Arguments)
	if err != nil {
		if errors.Is(err, forensics.ErrInvalidParameter) {
			return s.errorResponse(req.ID, codeInvalidParams, "Invalid params", err.Error())
		}
		log.Printf("Tool %s failed: %v", params.Name, err)
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
func (s *Server) executeTool(ctx context.Context, name string, args json.RawMessage) (interface{}, error) {
	switch name {
	// Basic Image Information
	case "image_load":
		return s.handleImageLoad(args)
	case "image_dimensions":
		return s.handleImageDimensions(args)
	case "image_evict":
		return s.handleImageEvict(args)

	// Forensics
	case "forensics_list_analyzers":
		return s.handleListAnalyzers()
	case "forensics_copy_move":
		return s.handleCopyMove(ctx, args)
	case "forensics_crop_match":
		return s.handleCropMatch(args)
	case "forensics_compare_regions":
		return s.handleCompareRegions(args)
	case "forensics_text_mask":
		return s.handleTextMask(args)

	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// decodeArgs unmarshals tool arguments into v. Decoding failures are
// reported as invalid parameters.
func decodeArgs(args json.RawMessage, v interface{}) error {
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	if err := json.Unmarshal(args, v); err != nil {
		return fmt.Errorf("%w: %w", forensics.ErrInvalidParameter, err)
	}
	return nil
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// On marshal failure it returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// === Basic Image Information Handlers ===

type imageLoadArgs struct {
	Path string `json:"path"`
}

func (s *Server) handleImageLoad(args json.RawMessage) (interface{}, error) {
	var a imageLoadArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	return imaging.LoadImageInfo(s.cache, a.Path)
}

func (s *Server) handleImageDimensions(args json.RawMessage) (interface{}, error) {
	var a imageLoadArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	return imaging.GetDimensions(s.cache, a.Path)
}

func (s *Server) handleImageEvict(args json.RawMessage) (interface{}, error) {
	var a imageLoadArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	out := map[string]interface{}{}
	if a.Path == "" {
		out["evicted"] = s.cache.Clear()
	} else if s.cache.Evict(a.Path) {
		out["evicted"] = 1
	} else {
		out["evicted"] = 0
	}
	out["cached"] = s.cache.Len()
	return out, nil
}

// === Forensics Handlers ===

func (s *Server) handleListAnalyzers() (interface{}, error) {
	return map[string]interface{}{
		"analyzers": analysis.Variants(),
		"default":   analysis.DefaultVariant,
	}, nil
}

type copyMoveArgs struct {
	Path                string   `json:"path"`
	ImageBase64         string   `json:"image_base64"`
	BlockSize           *int     `json:"block_size"`
	SimilarityThreshold *float64 `json:"similarity_threshold"`
	MinDistance         *int     `json:"min_distance"`
	Stride              *int     `json:"stride"`
	TextMask            string   `json:"text_mask"`
	IncludeOverlay      *bool    `json:"include_overlay"`
}

// copyMoveResult is the JSON shape of a forensics_copy_move response.
type copyMoveResult struct {
	Analyzer      string            `json:"analyzer"`
	Width         int               `json:"width"`
	Height        int               `json:"height"`
	Confidence    float64           `json:"confidence"`
	Matches       []copymove.Match  `json:"matches"`
	Excluded      []image.Rectangle `json:"excluded,omitempty"`
	Stats         copymove.Stats    `json:"stats"`
	OverlayBase64 string            `json:"overlay_base64,omitempty"`
	MimeType      string            `json:"mime_type,omitempty"`
}

func (s *Server) handleCopyMove(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a copyMoveArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}

	cfg := *s.cfg
	if a.BlockSize != nil {
		cfg.CopyMove.BlockSize = *a.BlockSize
	}
	if a.SimilarityThreshold != nil {
		cfg.CopyMove.SimilarityThreshold = *a.SimilarityThreshold
	}
	if a.MinDistance != nil {
		cfg.CopyMove.MinDistance = *a.MinDistance
	}
	if a.Stride != nil {
		cfg.CopyMove.Stride = *a.Stride
	}
	if a.TextMask != "" {
		cfg.TextMask = a.TextMask
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	img, err := s.loadImage(a.Path, a.ImageBase64)
	if err != nil {
		return nil, err
	}
	res, excluded, err := analysis.Run(ctx, &cfg, img)
	if err != nil {
		return nil, err
	}

	out := copyMoveResult{
		Analyzer:   res.Kind(),
		Width:      res.Width,
		Height:     res.Height,
		Confidence: res.Confidence,
		Matches:    res.Matches,
		Excluded:   textmask.Rectangles(excluded),
		Stats:      res.Stats,
	}
	if out.Matches == nil {
		out.Matches = []copymove.Match{}
	}
	if a.IncludeOverlay == nil || *a.IncludeOverlay {
		encoded, err := imaging.EncodePNGBase64(res.Overlay())
		if err != nil {
			return nil, err
		}
		out.OverlayBase64 = encoded
		out.MimeType = "image/png"
	}
	return out, nil
}

// loadImage returns the image given inline as base64 or, failing that, the
// cached image at path. Exactly one of the two must be set. Inline images
// are not cached.
func (s *Server) loadImage(path, encoded string) (image.Image, error) {
	switch {
	case path != "" && encoded != "":
		return nil, fmt.Errorf("%w: path and image_base64 are mutually exclusive", forensics.ErrInvalidParameter)
	case encoded != "":
		data, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("%w: image_base64: %w", forensics.ErrInvalidParameter, err)
		}
		img, _, err := imaging.Decode(data)
		if err != nil {
			return nil, fmt.Errorf("%w: image_base64: %w", forensics.ErrInvalidParameter, err)
		}
		return img, nil
	case path == "":
		return nil, fmt.Errorf("%w: path or image_base64 is required", forensics.ErrInvalidParameter)
	}
	return s.cache.Load(path)
}

type rectArgs struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

func (r rectArgs) rect() image.Rectangle {
	return image.Rect(r.X1, r.Y1, r.X2, r.Y2)
}

type cropMatchArgs struct {
	Path string `json:"path"`
	rectArgs
	Scale float64 `json:"scale"`
}

func (s *Server) handleCropMatch(args json.RawMessage) (interface{}, error) {
	var a cropMatchArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Scale == 0 {
		a.Scale = 1.0
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	return imaging.Crop(img, a.rect(), a.Scale)
}

type compareRegionsArgs struct {
	Path    string   `json:"path"`
	Region1 rectArgs `json:"region1"`
	Region2 rectArgs `json:"region2"`
}

func (s *Server) handleCompareRegions(args json.RawMessage) (interface{}, error) {
	var a compareRegionsArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	return imaging.CompareRegions(img, a.Region1.rect(), a.Region2.rect())
}

type textMaskArgs struct {
	Path     string `json:"path"`
	Kind     string `json:"kind"`
	Language string `json:"language"`
}

func (s *Server) handleTextMask(args json.RawMessage) (interface{}, error) {
	var a textMaskArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Kind == "" {
		a.Kind = "edges"
	}
	if a.Language == "" {
		a.Language = s.cfg.OCRLanguage
	}
	masker, err := textmask.New(a.Kind, a.Language)
	if err != nil {
		return nil, err
	}
	if masker == nil {
		return nil, fmt.Errorf("%w: text mask kind %q finds no regions", forensics.ErrInvalidParameter, a.Kind)
	}

	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	regions, err := masker.Regions(img)
	if err != nil {
		return nil, err
	}
	if regions == nil {
		regions = []textmask.Region{}
	}
	return map[string]interface{}{
		"kind":    a.Kind,
		"count":   len(regions),
		"regions": regions,
	}, nil
}
