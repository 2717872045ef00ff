package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"syscall"
	"time"

	"github.com/gen2brain/webp"
)

const (
	maxAvatarBytes = 5 << 20
	// maxAvatarSide bounds each dimension declared by an image header.
	maxAvatarSide = 4096
)

var (
	ErrAvatarTooLarge = errors.New("avatar dimensions too large")
	ErrAvatarHost     = errors.New("avatar host not allowed")
)

// HTTPAvatars downloads profile pictures over HTTP. The default client only
// connects to public addresses.
type HTTPAvatars struct {
	Client  *http.Client
	Timeout time.Duration
}

func NewHTTPAvatars(timeout time.Duration) *HTTPAvatars {
	dialer := &net.Dialer{Timeout: timeout, Control: publicOnly}
	return &HTTPAvatars{
		Client: &http.Client{Transport: &http.Transport{
			Proxy:               nil,
			DialContext:         dialer.DialContext,
			TLSHandshakeTimeout: timeout,
			MaxIdleConns:        16,
			IdleConnTimeout:     30 * time.Second,
		}},
		Timeout: timeout,
	}
}

func (h *HTTPAvatars) Load(ctx context.Context, rawURL string) (image.Image, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: scheme %q", ErrAvatarHost, u.Scheme)
	}
	if ip, err := netip.ParseAddr(u.Hostname()); err == nil && !publicAddr(ip) {
		return nil, fmt.Errorf("%w: %s", ErrAvatarHost, ip)
	}
	if h.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.Timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := h.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("avatar status %d", resp.StatusCode)
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxAvatarBytes))
	if err != nil {
		return nil, err
	}
	return decodeImage(b)
}

// decodeImage checks the declared dimensions before allocating pixels.
func decodeImage(b []byte) (image.Image, error) {
	isWebP := http.DetectContentType(b) == "image/webp"
	var cfg image.Config
	var err error
	if isWebP {
		cfg, err = webp.DecodeConfig(bytes.NewReader(b))
	} else {
		cfg, _, err = image.DecodeConfig(bytes.NewReader(b))
	}
	if err != nil {
		return nil, err
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width > maxAvatarSide || cfg.Height > maxAvatarSide {
		return nil, fmt.Errorf("%w: %dx%d", ErrAvatarTooLarge, cfg.Width, cfg.Height)
	}
	if isWebP {
		return webp.Decode(bytes.NewReader(b))
	}
	img, _, err := image.Decode(bytes.NewReader(b))
	return img, err
}

// publicOnly is a dialer control hook that refuses loopback, private,
// link-local and unspecified addresses after name resolution.
func publicOnly(network, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	ip, err := netip.ParseAddr(host)
	if err != nil {
		return err
	}
	if !publicAddr(ip) {
		return fmt.Errorf("%w: %s", ErrAvatarHost, ip)
	}
	return nil
}

func publicAddr(ip netip.Addr) bool {
	ip = ip.Unmap()
	return ip.IsValid() && !ip.IsLoopback() && !ip.IsPrivate() && !ip.IsLinkLocalUnicast() &&
		!ip.IsLinkLocalMulticast() && !ip.IsUnspecified() && !ip.IsMulticast()
}
