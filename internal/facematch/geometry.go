package facematch

import (
	"image"
	"math"

	"golang.org/x/image/draw"
)

// ComputeIoU calculates Intersection over Union between two boxes in the same coordinate system.
func ComputeIoU(a, b image.Rectangle) float64 {
	inter := a.Intersect(b)
	if inter.Empty() {
		return 0 // No intersection
	}

	intersection := float64(inter.Dx() * inter.Dy())
	union := float64(a.Dx()*a.Dy()+b.Dx()*b.Dy()) - intersection
	if union <= 0 {
		return 0
	}

	return intersection / union
}

// BBoxToRect converts a recognizer bbox [x1, y1, x2, y2] in pixels to a rectangle.
// Returns false if the bbox does not have four coordinates.
func BBoxToRect(bbox []float64) (image.Rectangle, bool) {
	if len(bbox) != 4 {
		return image.Rectangle{}, false
	}
	return image.Rect(
		int(math.Round(bbox[0])),
		int(math.Round(bbox[1])),
		int(math.Round(bbox[2])),
		int(math.Round(bbox[3])),
	), true
}

// ScaleRect multiplies every coordinate of r by factor.
// Used to map boxes found on a downscaled frame back to full resolution.
func ScaleRect(r image.Rectangle, factor float64) image.Rectangle {
	if factor <= 0 {
		return r
	}
	return image.Rect(
		int(math.Round(float64(r.Min.X)*factor)),
		int(math.Round(float64(r.Min.Y)*factor)),
		int(math.Round(float64(r.Max.X)*factor)),
		int(math.Round(float64(r.Max.Y)*factor)),
	)
}

// Downscale returns a copy of img shrunk by factor (0 < factor <= 1).
// The original image is returned untouched when no scaling is needed.
func Downscale(img image.Image, factor float64) image.Image {
	bounds := img.Bounds()
	if factor <= 0 || factor >= 1 || bounds.Empty() {
		return img
	}

	w := max(1, int(float64(bounds.Dx())*factor))
	h := max(1, int(float64(bounds.Dy())*factor))

	small := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(small, small.Bounds(), img, bounds, draw.Src, nil)
	return small
}

// PickFace returns the index of the box in faces that overlaps target the most.
// Returns -1 if no box reaches minIoU.
func PickFace(faces []image.Rectangle, target image.Rectangle, minIoU float64) int {
	best := -1
	bestIoU := 0.0
	for i, f := range faces {
		if iou := ComputeIoU(f, target); iou > bestIoU {
			bestIoU = iou
			best = i
		}
	}
	if best == -1 || bestIoU < minIoU {
		return -1
	}
	return best
}
