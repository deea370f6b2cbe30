package chat

import (
	"bytes"
	"crypto/sha256"
	"image"
	"image/color"
	"image/png"
)

const avatarSize = 64

// PlaceholderAvatar draws a two-tone disc whose colors derive from seed.
func PlaceholderAvatar(seed string) []byte {
	sum := sha256.Sum256([]byte(seed))
	fg := color.RGBA{R: sum[0]/2 + 64, G: sum[1]/2 + 64, B: sum[2]/2 + 64, A: 255}
	bg := color.RGBA{R: 240, G: 240, B: 240, A: 255}

	img := image.NewRGBA(image.Rect(0, 0, avatarSize, avatarSize))
	c := avatarSize / 2
	r2 := c * c
	for y := 0; y < avatarSize; y++ {
		for x := 0; x < avatarSize; x++ {
			dx, dy := x-c, y-c
			if dx*dx+dy*dy <= r2 {
				img.Set(x, y, fg)
			} else {
				img.Set(x, y, bg)
			}
		}
	}

	var buf bytes.Buffer
	// encoding an in-memory RGBA image cannot fail
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}
