package utils

import (
	"bytes"
	"errors"

	"github.com/disintegration/imaging"
)

const ThumbnailWidth = 256

// MakeThumbnail decodes a jpeg or png image and re-encodes it as a jpeg
// ThumbnailWidth pixels wide, keeping the aspect ratio.
func MakeThumbnail(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, errors.New("empty image")
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, err
	}
	thumbnail := imaging.Resize(img, ThumbnailWidth, 0, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumbnail, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
