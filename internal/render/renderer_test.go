package render

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

const testSecret = "0123456789abcdef"

func TestEncodeDecodeCard(t *testing.T) {
	signer, err := NewSigner(testSecret)
	if err != nil {
		t.Fatal(err)
	}
	c := Card{
		Background: "#E7C4E1",
		Title:      "Please like or recast",
		Lines:      []Line{{Text: "125.50 $MOXIE today", Size: 42}},
		Avatar:     &Avatar{Initial: "A", Captions: []string{"FID: 12345"}},
	}
	s, err := signer.Encode(c)
	if err != nil {
		t.Fatal(err)
	}
	got, err := signer.Decode(s)
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != c.Title || got.Lines[0].Text != c.Lines[0].Text || got.Avatar.Captions[0] != "FID: 12345" {
		t.Fatalf("card mismatch: %+v", got)
	}
}

func TestDecodeRejectsForeignCards(t *testing.T) {
	signer, _ := NewSigner(testSecret)
	other, _ := NewSigner("fedcba9876543210")
	forged, err := other.Encode(Card{Background: "#fff", Title: "1000000 $MOXIE today", Avatar: &Avatar{URL: "http://169.254.169.254/latest/meta-data/"}})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := signer.Decode(forged); !errors.Is(err, ErrCardSignature) {
		t.Fatalf("expected ErrCardSignature for foreign key, got %v", err)
	}

	genuine, _ := signer.Encode(Card{Background: "#fff", Title: "0.00 $MOXIE today"})
	parts := strings.Split(genuine, ".")
	parts[1] = base64.RawURLEncoding.EncodeToString([]byte(`{"card":{"bg":"#fff","t":"999 $MOXIE today"}}`))
	if _, err := signer.Decode(strings.Join(parts, ".")); !errors.Is(err, ErrCardSignature) {
		t.Fatalf("expected ErrCardSignature for edited payload, got %v", err)
	}
	if _, err := signer.Decode("!!!"); !errors.Is(err, ErrCardSignature) {
		t.Fatalf("expected ErrCardSignature for garbage, got %v", err)
	}
	if _, err := signer.Decode(strings.Repeat("a", maxEncoded+1)); !errors.Is(err, ErrCardTooLarge) {
		t.Fatalf("expected ErrCardTooLarge, got %v", err)
	}
	if _, err := NewSigner("short"); err == nil {
		t.Fatal("expected short secret to be refused")
	}
}

func TestParseHex(t *testing.T) {
	c, err := ParseHex("#1DA1F2")
	if err != nil || c != (color.RGBA{R: 0x1d, G: 0xa1, B: 0xf2, A: 0xff}) {
		t.Fatalf("got %v %v", c, err)
	}
	if c, err := ParseHex("#fff"); err != nil || c.R != 0xff {
		t.Fatalf("short form: %v %v", c, err)
	}
	if _, err := ParseHex("pink"); err == nil {
		t.Fatal("expected error")
	}
}

func TestRenderPNGSizeAndBackground(t *testing.T) {
	r, err := NewRenderer(nil)
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	card := Card{
		Background: "#E7C4E1",
		Title:      "Error: No FID",
		Lines:      []Line{{Text: "a very long line that should wrap across the width of the card because it keeps going and going", Size: 40}},
		Avatar:     &Avatar{Initial: "B", Captions: []string{"FID: 1", "Farscore: 0.83"}},
	}
	if err := r.PNG(context.Background(), &buf, card); err != nil {
		t.Fatal(err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if img.Bounds().Dx() != Width || img.Bounds().Dy() != Height {
		t.Fatalf("unexpected size %v", img.Bounds())
	}
	r8, g8, b8, _ := img.At(Width-1, Height-1).RGBA()
	if r8>>8 != 0xe7 || g8>>8 != 0xc4 || b8>>8 != 0xe1 {
		t.Fatalf("unexpected background at corner: %x %x %x", r8>>8, g8>>8, b8>>8)
	}
}

func TestRenderRejectsBadColour(t *testing.T) {
	r, _ := NewRenderer(nil)
	if _, err := r.Render(context.Background(), Card{Background: "nope"}); err == nil {
		t.Fatal("expected colour error")
	}
}

func TestHTTPAvatarsDecodesPNG(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 40, 20))
	for x := 0; x < 40; x++ {
		for y := 0; y < 20; y++ {
			src.Set(x, y, color.RGBA{R: 0xff, A: 0xff})
		}
	}
	var buf bytes.Buffer
	_ = png.Encode(&buf, src)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(buf.Bytes())
	}))
	defer ts.Close()

	loader := &HTTPAvatars{Client: ts.Client(), Timeout: time.Second}
	img, err := loader.Load(context.Background(), ts.URL+"/a.png")
	if err != nil {
		t.Fatal(err)
	}
	if img.Bounds().Dx() != 40 {
		t.Fatalf("unexpected bounds %v", img.Bounds())
	}

	r, _ := NewRenderer(loader)
	out, err := r.Render(context.Background(), Card{Background: "#ffffff", Avatar: &Avatar{URL: ts.URL + "/a.png"}})
	if err != nil {
		t.Fatal(err)
	}
	// centre of the avatar circle carries the red picture
	cr, cg, _, _ := out.At(avatarLeft+avatarSize/2, avatarTop+avatarSize/2).RGBA()
	if cr>>8 < 0xf0 || cg>>8 > 0x10 {
		t.Fatalf("avatar not drawn: r=%x g=%x", cr>>8, cg>>8)
	}
}

func TestAvatarFailureFallsBackToInitial(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer ts.Close()
	loader := &HTTPAvatars{Client: ts.Client(), Timeout: time.Second}
	r, _ := NewRenderer(loader)
	out, err := r.Render(context.Background(), Card{Background: "#ffffff", Avatar: &Avatar{URL: ts.URL, Initial: "Z"}})
	if err != nil {
		t.Fatal(err)
	}
	// the placeholder circle is grey near its left edge
	pr, _, _, _ := out.At(avatarLeft+5, avatarTop+avatarSize/2).RGBA()
	if pr>>8 != 0xcc {
		t.Fatalf("expected grey placeholder, got %x", pr>>8)
	}
}

// pngHeader is a PNG signature plus an IHDR chunk declaring w x h pixels.
func pngHeader(w, h uint32) []byte {
	var buf bytes.Buffer
	buf.Write([]byte("\x89PNG\r\n\x1a\n"))
	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:], w)
	binary.BigEndian.PutUint32(ihdr[4:], h)
	ihdr[8] = 8 // bit depth
	ihdr[9] = 6 // RGBA
	chunk := append([]byte("IHDR"), ihdr...)
	_ = binary.Write(&buf, binary.BigEndian, uint32(len(ihdr)))
	buf.Write(chunk)
	_ = binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(chunk))
	return buf.Bytes()
}

func TestAvatarRejectsHugeDimensions(t *testing.T) {
	body := pngHeader(30000, 30000)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(body)
	}))
	defer ts.Close()
	loader := &HTTPAvatars{Client: ts.Client(), Timeout: time.Second}
	if _, err := loader.Load(context.Background(), ts.URL); !errors.Is(err, ErrAvatarTooLarge) {
		t.Fatalf("expected ErrAvatarTooLarge, got %v", err)
	}
}

func TestAvatarRefusesInternalHosts(t *testing.T) {
	hits := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
	}))
	defer ts.Close()

	loader := NewHTTPAvatars(time.Second)
	for _, u := range []string{
		ts.URL + "/latest/meta-data/iam",
		"http://169.254.169.254/latest/meta-data/",
		"http://10.0.0.7/a.png",
		"file:///etc/passwd",
	} {
		if _, err := loader.Load(context.Background(), u); !errors.Is(err, ErrAvatarHost) {
			t.Fatalf("%s: expected ErrAvatarHost, got %v", u, err)
		}
	}
	if hits != 0 {
		t.Fatalf("internal server was contacted %d times", hits)
	}
}

func TestPublicOnlyDialHook(t *testing.T) {
	for addr, ok := range map[string]bool{
		"127.0.0.1:80":         false,
		"[::1]:443":            false,
		"169.254.169.254:80":   false,
		"192.168.1.10:8080":    false,
		"[::ffff:10.1.2.3]:80": false,
		"0.0.0.0:80":           false,
		"93.184.216.34:443":    true,
	} {
		err := publicOnly("tcp", addr, nil)
		if ok && err != nil {
			t.Errorf("%s: unexpected refusal %v", addr, err)
		}
		if !ok && !errors.Is(err, ErrAvatarHost) {
			t.Errorf("%s: expected ErrAvatarHost, got %v", addr, err)
		}
	}
}
