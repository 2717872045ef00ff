// Package render draws frame cards as 1200x630 PNG images.
package render

import (
	"errors"
	"fmt"
	"image/color"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

const (
	Width  = 1200
	Height = 630

	// maxEncoded bounds the card parameter accepted from image URLs.
	maxEncoded = 8 << 10
	maxLines   = 8
)

// Card describes one frame image. It is small enough to travel in a URL.
type Card struct {
	Background string  `json:"bg"`
	Title      string  `json:"t,omitempty"`
	Lines      []Line  `json:"l,omitempty"`
	Avatar     *Avatar `json:"a,omitempty"`
}

type Line struct {
	Text  string  `json:"x"`
	Size  float64 `json:"s"`
	Color string  `json:"c,omitempty"`
}

// Avatar is drawn in the top-left corner: the image at URL, or a placeholder
// circle with Initial when URL is empty or cannot be loaded.
type Avatar struct {
	URL      string   `json:"u,omitempty"`
	Initial  string   `json:"i,omitempty"`
	Captions []string `json:"cap,omitempty"`
}

var (
	ErrCardTooLarge = errors.New("card parameter too large")
	// ErrCardSignature marks a card that was not issued by this server.
	ErrCardSignature = errors.New("card signature invalid")
)

type cardClaims struct {
	Card Card `json:"card"`
	jwt.RegisteredClaims
}

// Signer issues and verifies the card parameter of image URLs. Cards are
// HS256 tokens so the image route only draws what the server produced.
type Signer struct {
	key []byte
}

func NewSigner(secret string) (*Signer, error) {
	if len(secret) < 16 {
		return nil, errors.New("card secret must be at least 16 characters")
	}
	return &Signer{key: []byte(secret)}, nil
}

// Encode serializes and signs c for use as a URL query value.
func (s *Signer) Encode(c Card) (string, error) {
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, cardClaims{Card: c}).SignedString(s.key)
	if err != nil {
		return "", err
	}
	if len(tok) > maxEncoded {
		return "", ErrCardTooLarge
	}
	return tok, nil
}

// Decode verifies and parses a value produced by Encode.
func (s *Signer) Decode(raw string) (Card, error) {
	if len(raw) > maxEncoded {
		return Card{}, ErrCardTooLarge
	}
	var claims cardClaims
	parsed, err := jwt.ParseWithClaims(raw, &claims, func(token *jwt.Token) (any, error) {
		return s.key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return Card{}, fmt.Errorf("%w: %v", ErrCardSignature, err)
	}
	if !parsed.Valid {
		return Card{}, ErrCardSignature
	}
	c := claims.Card
	if len(c.Lines) > maxLines {
		return Card{}, fmt.Errorf("card has %d lines, max %d", len(c.Lines), maxLines)
	}
	return c, nil
}

// ParseHex parses #rgb or #rrggbb.
func ParseHex(s string) (color.RGBA, error) {
	h := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(h) == 3 {
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
	}
	if len(h) != 6 {
		return color.RGBA{}, fmt.Errorf("invalid colour %q", s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid colour %q", s)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}
