package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

func testImage(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func encodeJPEG(w, h int) []byte {
	var buf bytes.Buffer
	jpeg.Encode(&buf, testImage(w, h, color.RGBA{255, 0, 0, 255}), &jpeg.Options{Quality: 90})
	return buf.Bytes()
}

func encodePNG(w, h int) []byte {
	var buf bytes.Buffer
	png.Encode(&buf, testImage(w, h, color.RGBA{0, 0, 255, 255}))
	return buf.Bytes()
}

func TestProcessOutputsJPEG(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"jpeg input", encodeJPEG(100, 100)},
		{"png input", encodePNG(100, 100)},
	}

	for _, tt := range tests {
		result, err := Process(bytes.NewReader(tt.data))
		if err != nil {
			t.Fatalf("%s: Process: %v", tt.name, err)
		}
		if result.MIME != "image/jpeg" {
			t.Errorf("%s: expected image/jpeg output, got %s", tt.name, result.MIME)
		}
		if len(result.Data) == 0 {
			t.Errorf("%s: expected non-empty data", tt.name)
		}
	}
}

func TestProcessDownscale(t *testing.T) {
	result, err := Process(bytes.NewReader(encodeJPEG(2048, 1024)))
	if err != nil {
		t.Fatalf("Process large image: %v", err)
	}

	img, _, err := image.Decode(bytes.NewReader(result.Data))
	if err != nil {
		t.Fatalf("decoding result: %v", err)
	}
	bounds := img.Bounds()
	if bounds.Dx() != MaxDimension || bounds.Dy() != MaxDimension/2 {
		t.Errorf("expected %dx%d, got %dx%d", MaxDimension, MaxDimension/2, bounds.Dx(), bounds.Dy())
	}
}

func TestProcessSmallImageNotUpscaled(t *testing.T) {
	result, err := Process(bytes.NewReader(encodeJPEG(50, 50)))
	if err != nil {
		t.Fatalf("Process small image: %v", err)
	}

	img, _, err := image.Decode(bytes.NewReader(result.Data))
	if err != nil {
		t.Fatalf("decoding result: %v", err)
	}
	bounds := img.Bounds()
	if bounds.Dx() != 50 || bounds.Dy() != 50 {
		t.Errorf("small image should not be resized: got %dx%d", bounds.Dx(), bounds.Dy())
	}
}

func TestProcessRejectsNonImages(t *testing.T) {
	for _, data := range [][]byte{
		[]byte("not an image"),
		[]byte("GIF89a..."),
		{},
	} {
		if _, err := Process(bytes.NewReader(data)); err == nil {
			t.Errorf("expected error for %q", data)
		}
	}
}
