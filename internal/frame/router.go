package frame

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"earnframe/internal/logging"
	"earnframe/internal/metrics"
	"earnframe/internal/render"
)

// Router mounts the frame routes under the base path plus /healthz and
// /metrics at the root.
func (c *Controller) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(middleware.RealIP)
	r.Use(recoverMiddleware)
	r.Use(timingMiddleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", metrics.Handler())

	if base := c.base(); base != "" {
		r.Route(base, c.frameRoutes)
	} else {
		c.frameRoutes(r)
	}
	return r
}

func (c *Controller) frameRoutes(r chi.Router) {
	r.Get("/", c.handleLanding)
	r.Post("/", c.handleLanding)
	r.Get("/check", c.handleCheck)
	r.Post("/check", c.handleCheck)
	r.Get("/image", c.handleImage)
}

func (c *Controller) handleLanding(w http.ResponseWriter, r *http.Request) {
	c.respond(w, r, c.Landing())
}

func (c *Controller) handleCheck(w http.ResponseWriter, r *http.Request) {
	fid, in := c.identify(r.Context(), r)
	c.respond(w, r, c.Check(r.Context(), fid, in))
}

func (c *Controller) respond(w http.ResponseWriter, r *http.Request, f Frame) {
	var buf bytes.Buffer
	if err := c.writePage(&buf, f); err != nil {
		buf.Reset()
		if err := c.writePage(&buf, c.RenderError(err)); err != nil {
			logging.Error("frame_page_failed", map[string]any{"request_id": RequestID(r.Context()), "error": err})
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// handleImage always answers with a PNG. Cards this server did not sign are
// counted as rejects and answered with the error card; cards that fail to
// draw are render failures.
func (c *Controller) handleImage(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	card, err := c.Cards.Decode(r.URL.Query().Get("c"))
	if err != nil {
		metrics.IncCardReject(rejectReason(err))
		logging.Debug("card_rejected", map[string]any{"request_id": RequestID(r.Context()), "error": err})
		card = renderErrorCard(errors.New("invalid card"))
	} else if err = c.drawPNG(r, &buf, card); err != nil {
		c.RenderError(err)
		buf.Reset()
		card = renderErrorCard(err)
	}
	if buf.Len() == 0 {
		if err := c.drawPNG(r, &buf, card); err != nil {
			logging.Error("image_failed", map[string]any{"request_id": RequestID(r.Context()), "error": err})
			http.Error(w, "image unavailable", http.StatusInternalServerError)
			return
		}
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=60")
	_, _ = w.Write(buf.Bytes())
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, render.ErrCardTooLarge):
		return "too_large"
	case errors.Is(err, render.ErrCardSignature):
		return "signature"
	}
	return "invalid"
}

func (c *Controller) drawPNG(r *http.Request, buf *bytes.Buffer, card render.Card) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("render panic: %v", rec)
		}
	}()
	return c.Images.PNG(r.Context(), buf, card)
}
