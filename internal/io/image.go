package ioutils

import (
	"bytes"
	"context"
	"image"
	_ "image/gif" // GIF decoder registration
	"image/jpeg"
	_ "image/png" // PNG decoder registration
	"net/http"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // YouTube thumbnails are frequently WebP
)

const jpegQuality = 90

// CoverOptions controls how cover art is prepared before it is embedded.
type CoverOptions struct {
	// MaxSize bounds both dimensions in pixels. Zero disables resizing.
	MaxSize int

	// ForceJPEG re-encodes any decodable image as JPEG.
	ForceJPEG bool
}

// ImageService prepares cover art for embedding in audio tags.
//
// Thumbnails served by video hosts are often WebP or oversized; ID3 readers
// handle baseline JPEG best, so the service can scale the picture down and
// re-encode it.
type ImageService struct{}

// NewImageService creates a new ImageService.
func NewImageService() *ImageService {
	return &ImageService{}
}

// PrepareCover applies opts to data and returns the resulting bytes with
// their MIME type. When the image cannot be decoded the original bytes are
// returned unchanged together with the sniffed content type.
func (s *ImageService) PrepareCover(ctx context.Context, data []byte, opts CoverOptions) ([]byte, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}

	mime := http.DetectContentType(data)
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return data, mime, nil
	}

	needsResize := opts.MaxSize > 0 && (img.Bounds().Dx() > opts.MaxSize || img.Bounds().Dy() > opts.MaxSize)
	needsEncode := opts.ForceJPEG && format != "jpeg"
	if !needsResize && !needsEncode {
		return data, mime, nil
	}

	if needsResize {
		img = scaleToFit(img, opts.MaxSize, opts.MaxSize)
	}

	out, err := encodeJPEG(img)
	if err != nil {
		return nil, "", err
	}
	return out, "image/jpeg", nil
}

func scaleToFit(img image.Image, maxWidth, maxHeight int) image.Image {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	if width > maxWidth || height > maxHeight {
		ratio := float64(width) / float64(height)
		if float64(maxWidth)/float64(maxHeight) > ratio {
			// Height is the limiting factor
			width = int(float64(maxHeight) * ratio)
			height = maxHeight
		} else {
			height = int(float64(maxWidth) / ratio)
			width = maxWidth
		}
	}
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}

func encodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
