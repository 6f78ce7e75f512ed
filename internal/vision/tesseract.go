package vision

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"strings"
	"sync"

	"github.com/otiai10/gosseract"
)

// TesseractEngine adapts a gosseract client to the Engine interface. One
// client is created per session; tesseract initialization is the single most
// expensive startup step, so the instance is reused for every cycle. The
// client is not safe for concurrent use and is serialized with a mutex,
// although the single-threaded loop never contends on it.
type TesseractEngine struct {
	mu     sync.Mutex
	client *gosseract.Client
}

// NewTesseractEngine starts a tesseract client for the given languages
// (tesseract names, e.g. "rus", "eng").
func NewTesseractEngine(languages []string) (*TesseractEngine, error) {
	if len(languages) == 0 {
		return nil, fmt.Errorf("tesseract engine needs at least one language")
	}
	client := gosseract.NewClient()
	if err := client.SetLanguage(languages...); err != nil {
		client.Close()
		return nil, fmt.Errorf("set tesseract languages %v: %w", languages, err)
	}
	return &TesseractEngine{client: client}, nil
}

// ReadText recognizes text line by line. Tesseract reports confidence on a
// 0-100 scale; spans are normalized to [0,1] before they leave the adapter.
func (e *TesseractEngine) ReadText(img image.Image) ([]RawSpan, error) {
	if img == nil {
		return nil, fmt.Errorf("read text from nil image")
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode image for tesseract: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.client.SetImageFromBytes(buf.Bytes()); err != nil {
		return nil, fmt.Errorf("set tesseract image: %w", err)
	}
	boxes, err := e.client.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		return nil, fmt.Errorf("tesseract bounding boxes: %w", err)
	}

	spans := make([]RawSpan, 0, len(boxes))
	for _, box := range boxes {
		text := strings.TrimSpace(box.Word)
		if text == "" {
			continue
		}
		spans = append(spans, RawSpan{
			Text:       text,
			Confidence: box.Confidence / 100,
			Quad:       rectQuad(box.Box),
		})
	}
	return spans, nil
}

// Close releases the tesseract client.
func (e *TesseractEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.client.Close()
}
