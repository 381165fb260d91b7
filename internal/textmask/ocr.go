package textmask

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"github.com/otiai10/gosseract/v2"
)

// OCRMasker finds text with Tesseract word bounding boxes.
//
// Tesseract and the language data must be installed on the system.
type OCRMasker struct {
	// Language is the Tesseract language code, for example "eng".
	Language string

	// MinConfidence drops words Tesseract is less sure about, in [0, 1].
	MinConfidence float64

	// Padding grows every word box on each side.
	Padding int
}

// NewOCRMasker returns an OCR masker for language with default settings.
func NewOCRMasker(language string) *OCRMasker {
	if language == "" {
		language = "eng"
	}
	return &OCRMasker{Language: language, MinConfidence: 0.3, Padding: 3}
}

// Regions implements Masker.
func (m *OCRMasker) Regions(img image.Image) ([]Region, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode image for OCR: %w", err)
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(m.Language); err != nil {
		return nil, fmt.Errorf("failed to set language: %w", err)
	}
	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, fmt.Errorf("failed to get text regions: %w", err)
	}

	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	regions := make([]Region, 0, len(boxes))
	for _, box := range boxes {
		confidence := box.Confidence / 100.0
		if box.Word == "" || confidence < m.MinConfidence {
			continue
		}
		regions = append(regions, Region{
			Bounds:     pad(box.Box, m.Padding, w, h),
			Confidence: confidence,
		})
	}
	return mergeOverlapping(regions), nil
}
