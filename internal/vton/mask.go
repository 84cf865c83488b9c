package vton

import (
	"context"
	"fmt"
	"image"

	"virtual-tryon-backend/internal/models"
)

// LabelMaps are the per-pixel segmentations of one subject image.
// DensePose holds body part indices 1-24 (0 is background). Parsing holds
// human-parsing classes 0-19 in the LIP scheme.
type LabelMaps struct {
	DensePose *image.Gray
	Parsing   *image.Gray
}

// BodyParser produces label maps for a normalized subject image.
type BodyParser interface {
	Parse(ctx context.Context, subject image.Image) (*LabelMaps, error)
}

// DensePose body parts.
const (
	dpTorsoBack      = 1
	dpTorsoFront     = 2
	dpRightHand      = 3
	dpLeftHand       = 4
	dpLeftFoot       = 5
	dpRightFoot      = 6
	dpUpperLegRightB = 7
	dpUpperLegLeftB  = 8
	dpUpperLegRightF = 9
	dpUpperLegLeftF  = 10
	dpLowerLegRightB = 11
	dpLowerLegLeftB  = 12
	dpLowerLegRightF = 13
	dpLowerLegLeftF  = 14
	dpUpperArmLeftI  = 15
	dpUpperArmRightI = 16
	dpUpperArmLeftO  = 17
	dpUpperArmRightO = 18
	dpLowerArmLeftI  = 19
	dpLowerArmRightI = 20
	dpLowerArmLeftO  = 21
	dpLowerArmRightO = 22
	dpHeadRight      = 23
	dpHeadLeft       = 24
)

// LIP human-parsing classes.
const (
	lipHair         = 2
	lipUpperClothes = 5
	lipDress        = 6
	lipCoat         = 7
	lipPants        = 9
	lipJumpsuits    = 10
	lipSkirt        = 12
	lipFace         = 13
	lipLeftArm      = 14
	lipRightArm     = 15
	lipLeftLeg      = 16
	lipRightLeg     = 17
	lipLeftShoe     = 18
	lipRightShoe    = 19
)

type labelSet map[uint8]bool

func labels(vs ...uint8) labelSet {
	s := make(labelSet, len(vs))
	for _, v := range vs {
		s[v] = true
	}
	return s
}

type slotRule struct {
	denseReplace   labelSet
	parseReplace   labelSet
	denseProtected labelSet
	parseProtected labelSet
}

var (
	upperDense = []uint8{
		dpTorsoBack, dpTorsoFront,
		dpUpperArmLeftI, dpUpperArmRightI, dpUpperArmLeftO, dpUpperArmRightO,
		dpLowerArmLeftI, dpLowerArmRightI, dpLowerArmLeftO, dpLowerArmRightO,
	}
	lowerDense = []uint8{
		dpUpperLegRightB, dpUpperLegLeftB, dpUpperLegRightF, dpUpperLegLeftF,
		dpLowerLegRightB, dpLowerLegLeftB, dpLowerLegRightF, dpLowerLegLeftF,
	}
	extremities = []uint8{dpRightHand, dpLeftHand, dpLeftFoot, dpRightFoot, dpHeadRight, dpHeadLeft}
)

var slotRules = map[models.GarmentType]slotRule{
	models.GarmentUpper: {
		denseReplace:   labels(upperDense...),
		parseReplace:   labels(lipUpperClothes, lipDress, lipCoat, lipLeftArm, lipRightArm),
		denseProtected: labels(dpRightHand, dpLeftHand, dpHeadRight, dpHeadLeft),
		parseProtected: labels(lipFace, lipHair, lipPants, lipSkirt, lipLeftLeg, lipRightLeg, lipLeftShoe, lipRightShoe),
	},
	models.GarmentLower: {
		denseReplace:   labels(lowerDense...),
		parseReplace:   labels(lipPants, lipSkirt, lipLeftLeg, lipRightLeg),
		denseProtected: labels(extremities...),
		parseProtected: labels(lipFace, lipHair, lipUpperClothes, lipCoat, lipLeftArm, lipRightArm, lipLeftShoe, lipRightShoe),
	},
	models.GarmentOverall: {
		denseReplace: labels(append(append([]uint8{}, upperDense...), lowerDense...)...),
		parseReplace: labels(
			lipUpperClothes, lipDress, lipCoat, lipPants, lipJumpsuits, lipSkirt,
			lipLeftArm, lipRightArm, lipLeftLeg, lipRightLeg,
		),
		denseProtected: labels(extremities...),
		parseProtected: labels(lipFace, lipHair, lipLeftShoe, lipRightShoe),
	},
}

const maskOn = 255

// MaskGenerator derives the inpainting region for a garment slot.
type MaskGenerator struct {
	parser BodyParser
}

func NewMaskGenerator(parser BodyParser) *MaskGenerator {
	return &MaskGenerator{parser: parser}
}

// Compute returns a mask the size of subject where 255 marks pixels to
// repaint.
func (g *MaskGenerator) Compute(ctx context.Context, subject image.Image, gt models.GarmentType) (*image.Gray, error) {
	maps, err := g.parser.Parse(ctx, subject)
	if err != nil {
		return nil, &MaskError{Reason: "body parsing", Err: err}
	}
	b := subject.Bounds()
	return BuildMask(maps, gt, b.Dx(), b.Dy())
}

// BuildMask applies the slot rules for gt to precomputed label maps.
func BuildMask(maps *LabelMaps, gt models.GarmentType, width, height int) (*image.Gray, error) {
	rule, ok := slotRules[gt]
	if !ok {
		return nil, &MaskError{Reason: fmt.Sprintf("unknown garment type %q", gt)}
	}
	if maps == nil || maps.DensePose == nil || maps.Parsing == nil {
		return nil, &MaskError{Reason: "label maps missing"}
	}
	for name, m := range map[string]*image.Gray{"densepose": maps.DensePose, "parsing": maps.Parsing} {
		if m.Bounds().Dx() != width || m.Bounds().Dy() != height {
			return nil, &MaskError{Reason: fmt.Sprintf(
				"%s map is %dx%d, subject is %dx%d",
				name, m.Bounds().Dx(), m.Bounds().Dy(), width, height,
			)}
		}
	}

	dp := maps.DensePose
	sp := maps.Parsing
	dpMin := dp.Bounds().Min
	spMin := sp.Bounds().Min

	mask := image.NewGray(image.Rect(0, 0, width, height))
	protected := make([]bool, width*height)
	person := false

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			d := dp.GrayAt(dpMin.X+x, dpMin.Y+y).Y
			s := sp.GrayAt(spMin.X+x, spMin.Y+y).Y
			if d != 0 || s != 0 {
				person = true
			}

			i := y*width + x
			if rule.denseProtected[d] || rule.parseProtected[s] {
				protected[i] = true
				continue
			}
			if rule.denseReplace[d] || rule.parseReplace[s] {
				mask.Pix[y*mask.Stride+x] = maskOn
			}
		}
	}

	if !person {
		return nil, &MaskError{Reason: "no person detected in subject image"}
	}

	radius := max(width, height) / 64
	dilate(mask, radius)

	empty := true
	for y := 0; y < height; y++ {
		row := mask.Pix[y*mask.Stride : y*mask.Stride+width]
		for x := range row {
			if protected[y*width+x] {
				row[x] = 0
			} else if row[x] != 0 {
				empty = false
			}
		}
	}
	if empty {
		return nil, &MaskError{Reason: fmt.Sprintf("no %s garment region found on subject", gt)}
	}

	return mask, nil
}

// dilate grows set pixels by radius in both axes (square structuring
// element) using two sliding-window passes.
func dilate(m *image.Gray, radius int) {
	if radius <= 0 {
		return
	}
	w, h := m.Bounds().Dx(), m.Bounds().Dy()
	tmp := make([]uint8, w*h)

	// Horizontal pass into tmp.
	for y := 0; y < h; y++ {
		row := m.Pix[y*m.Stride : y*m.Stride+w]
		count := 0
		for x := 0; x < radius && x < w; x++ {
			if row[x] != 0 {
				count++
			}
		}
		for x := 0; x < w; x++ {
			if add := x + radius; add < w && row[add] != 0 {
				count++
			}
			if drop := x - radius - 1; drop >= 0 && row[drop] != 0 {
				count--
			}
			if count > 0 {
				tmp[y*w+x] = maskOn
			}
		}
	}

	// Vertical pass back into m.
	for x := 0; x < w; x++ {
		count := 0
		for y := 0; y < radius && y < h; y++ {
			if tmp[y*w+x] != 0 {
				count++
			}
		}
		for y := 0; y < h; y++ {
			if add := y + radius; add < h && tmp[add*w+x] != 0 {
				count++
			}
			if drop := y - radius - 1; drop >= 0 && tmp[drop*w+x] != 0 {
				count--
			}
			if count > 0 {
				m.Pix[y*m.Stride+x] = maskOn
			} else {
				m.Pix[y*m.Stride+x] = 0
			}
		}
	}
}
