package render

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"strings"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"earnframe/internal/logging"
)

const (
	avatarSize   = 150
	avatarBorder = 3
	avatarLeft   = 40
	avatarTop    = 30
	margin       = 60
)

// AvatarLoader fetches and decodes a profile picture.
type AvatarLoader interface {
	Load(ctx context.Context, url string) (image.Image, error)
}

// Renderer draws cards. Fonts are parsed once; faces are built per call
// because opentype faces are not safe for concurrent use.
type Renderer struct {
	regular *opentype.Font
	bold    *opentype.Font
	Avatars AvatarLoader
}

func NewRenderer(avatars AvatarLoader) (*Renderer, error) {
	regular, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse regular font: %w", err)
	}
	bold, err := opentype.Parse(gobold.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse bold font: %w", err)
	}
	return &Renderer{regular: regular, bold: bold, Avatars: avatars}, nil
}

// PNG renders c and writes it as PNG.
func (r *Renderer) PNG(ctx context.Context, w io.Writer, c Card) error {
	img, err := r.Render(ctx, c)
	if err != nil {
		return err
	}
	return png.Encode(w, img)
}

// Render draws c onto a new image.
func (r *Renderer) Render(ctx context.Context, c Card) (*image.RGBA, error) {
	bg, err := ParseHex(c.Background)
	if err != nil {
		return nil, err
	}
	dst := image.NewRGBA(image.Rect(0, 0, Width, Height))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)

	type block struct {
		face  font.Face
		text  string
		color color.RGBA
	}
	var blocks []block
	if c.Title != "" {
		face, err := r.face(r.bold, 50)
		if err != nil {
			return nil, err
		}
		defer face.Close()
		for _, s := range wrap(face, c.Title, Width-2*margin) {
			blocks = append(blocks, block{face: face, text: s, color: color.RGBA{A: 0xff}})
		}
	}
	for _, l := range c.Lines {
		col := color.RGBA{A: 0xff}
		if l.Color != "" {
			if col, err = ParseHex(l.Color); err != nil {
				return nil, err
			}
		}
		size := l.Size
		if size <= 0 {
			size = 40
		}
		face, err := r.face(r.regular, size)
		if err != nil {
			return nil, err
		}
		defer face.Close()
		for _, s := range wrap(face, l.Text, Width-2*margin) {
			blocks = append(blocks, block{face: face, text: s, color: col})
		}
	}

	// Stack the blocks vertically around the centre.
	total := 0
	for _, b := range blocks {
		total += lineHeight(b.face)
	}
	y := (Height - total) / 2
	for _, b := range blocks {
		m := b.face.Metrics()
		y += m.Ascent.Ceil()
		d := font.Drawer{Dst: dst, Src: image.NewUniform(b.color), Face: b.face}
		d.Dot = fixed.P((Width-d.MeasureString(b.text).Ceil())/2, y)
		d.DrawString(b.text)
		y += m.Descent.Ceil() + lineGap(b.face)
	}

	if c.Avatar != nil {
		if err := r.drawAvatar(ctx, dst, *c.Avatar); err != nil {
			return nil, err
		}
	}
	return dst, nil
}

func (r *Renderer) drawAvatar(ctx context.Context, dst *image.RGBA, a Avatar) error {
	center := image.Pt(avatarLeft+avatarSize/2, avatarTop+avatarSize/2)
	radius := avatarSize / 2
	black := image.NewUniform(color.RGBA{A: 0xff})
	fillCircle(dst, &circle{center, radius + avatarBorder}, black)

	var pic image.Image
	if a.URL != "" && r.Avatars != nil {
		img, err := r.Avatars.Load(ctx, a.URL)
		if err != nil {
			logging.Warn("avatar_load_failed", map[string]any{"url": a.URL, "error": err})
		} else {
			pic = img
		}
	}
	box := image.Rect(center.X-radius, center.Y-radius, center.X+radius, center.Y+radius)
	if pic != nil {
		scaled := image.NewRGBA(image.Rect(0, 0, box.Dx(), box.Dy()))
		draw.CatmullRom.Scale(scaled, scaled.Bounds(), pic, squareCrop(pic.Bounds()), draw.Over, nil)
		draw.DrawMask(dst, box, scaled, image.Point{}, &circle{image.Pt(radius, radius), radius}, image.Point{}, draw.Over)
	} else {
		fillCircle(dst, &circle{center, radius}, image.NewUniform(color.RGBA{R: 0xcc, G: 0xcc, B: 0xcc, A: 0xff}))
		initial := a.Initial
		if initial == "" {
			initial = "U"
		}
		face, err := r.face(r.regular, 90)
		if err != nil {
			return err
		}
		defer face.Close()
		d := font.Drawer{Dst: dst, Src: image.NewUniform(color.RGBA{R: 0x33, G: 0x33, B: 0x33, A: 0xff}), Face: face}
		m := face.Metrics()
		textH := (m.Ascent + m.Descent).Ceil()
		d.Dot = fixed.P(center.X-d.MeasureString(initial).Ceil()/2, center.Y-textH/2+m.Ascent.Ceil())
		d.DrawString(initial)
	}

	if len(a.Captions) == 0 {
		return nil
	}
	face, err := r.face(r.regular, 26)
	if err != nil {
		return err
	}
	defer face.Close()
	y := avatarTop + avatarSize + avatarBorder + 10
	for _, capt := range a.Captions {
		y += face.Metrics().Ascent.Ceil()
		d := font.Drawer{Dst: dst, Src: black, Face: face}
		d.Dot = fixed.P(center.X-d.MeasureString(capt).Ceil()/2, y)
		d.DrawString(capt)
		y += face.Metrics().Descent.Ceil() + 6
	}
	return nil
}

func (r *Renderer) face(f *opentype.Font, size float64) (font.Face, error) {
	return opentype.NewFace(f, &opentype.FaceOptions{Size: size, DPI: 72, Hinting: font.HintingFull})
}

func lineHeight(f font.Face) int {
	m := f.Metrics()
	return (m.Ascent + m.Descent).Ceil() + lineGap(f)
}

func lineGap(f font.Face) int { return f.Metrics().Height.Ceil() / 4 }

// wrap breaks s into lines no wider than width pixels. A single word wider
// than width is kept on its own line.
func wrap(f font.Face, s string, width int) []string {
	words := strings.Fields(s)
	if len(words) == 0 {
		return nil
	}
	var out []string
	cur := words[0]
	for _, w := range words[1:] {
		next := cur + " " + w
		if font.MeasureString(f, next).Ceil() > width {
			out = append(out, cur)
			cur = w
			continue
		}
		cur = next
	}
	return append(out, cur)
}

func squareCrop(b image.Rectangle) image.Rectangle {
	side := b.Dx()
	if b.Dy() < side {
		side = b.Dy()
	}
	x0 := b.Min.X + (b.Dx()-side)/2
	y0 := b.Min.Y + (b.Dy()-side)/2
	return image.Rect(x0, y0, x0+side, y0+side)
}

func fillCircle(dst *image.RGBA, c *circle, src image.Image) {
	b := c.Bounds()
	draw.DrawMask(dst, b, src, image.Point{}, c, b.Min, draw.Over)
}

// circle is an alpha mask that is opaque inside the circle.
type circle struct {
	p image.Point
	r int
}

func (c *circle) ColorModel() color.Model { return color.AlphaModel }

func (c *circle) Bounds() image.Rectangle {
	return image.Rect(c.p.X-c.r, c.p.Y-c.r, c.p.X+c.r, c.p.Y+c.r)
}

func (c *circle) At(x, y int) color.Color {
	xx, yy, rr := float64(x-c.p.X)+0.5, float64(y-c.p.Y)+0.5, float64(c.r)
	if xx*xx+yy*yy < rr*rr {
		return color.Alpha{255}
	}
	return color.Alpha{0}
}
