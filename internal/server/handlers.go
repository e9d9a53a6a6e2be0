package server

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/AnyUserName/pixconv/internal/acquire"
	"github.com/AnyUserName/pixconv/internal/blob"
	"github.com/AnyUserName/pixconv/internal/format"
	"github.com/AnyUserName/pixconv/internal/hasher"
	"github.com/AnyUserName/pixconv/internal/pipeline"
	"github.com/AnyUserName/pixconv/internal/progress"
	"github.com/AnyUserName/pixconv/internal/shrink"
	"github.com/gofiber/fiber/v2"
)

// Response headers set by /api/convert.
const (
	HeaderFallback = "X-Pixconv-Fallback"
	HeaderSource   = "X-Pixconv-Source"
)

// convertRequest is the JSON body of /api/convert/url and the first
// websocket message. Exactly one of URL and Data should be set.
type convertRequest struct {
	URL    string   `json:"url,omitempty"`
	Data   string   `json:"data,omitempty"` // base64
	From   string   `json:"from,omitempty"`
	To     string   `json:"to"`
	Factor *float64 `json:"factor,omitempty"`
}

type urlResponse struct {
	URL      string `json:"url"`
	MIME     string `json:"mime"`
	Size     int    `json:"size"`
	Fallback bool   `json:"fallback"`
}

// toRequest builds a pipeline request. A body with neither url nor data
// produces an unset input, which the converter rejects.
func (s *Server) toRequest(r convertRequest) (pipeline.Request, error) {
	req := pipeline.Request{
		SourceType: r.From,
		TargetType: r.To,
		Factor:     s.factor(r.Factor),
	}
	switch {
	case r.URL != "":
		req.Input = acquire.FromURL(r.URL)
	case r.Data != "":
		data, err := base64.StdEncoding.DecodeString(r.Data)
		if err != nil {
			return req, fiber.NewError(fiber.StatusBadRequest, "data: invalid base64")
		}
		req.Input = acquire.FromBytes(data)
	}
	return req, nil
}

func (s *Server) factor(v *float64) shrink.Factor {
	if v == nil {
		def, _ := s.defaults()
		return shrink.ParseFactor(&def)
	}
	return shrink.ParseFactor(v)
}

func (s *Server) options(extra ...pipeline.Option) []pipeline.Option {
	_, q := s.defaults()
	opts := []pipeline.Option{}
	if q > 0 {
		opts = append(opts, pipeline.WithQuality(q))
	}
	return append(opts, extra...)
}

// convert runs one conversion and records metrics.
func (s *Server) convert(ctx context.Context, req pipeline.Request, extra ...pipeline.Option) (*pipeline.Result, error) {
	target := format.ResolveTarget(req.TargetType).String()
	start := time.Now()

	res, err := s.opts.Converter.Convert(ctx, req, s.options(extra...)...)
	s.metrics.duration.WithLabelValues(target).Observe(time.Since(start).Seconds())
	if err != nil {
		s.metrics.conversions.WithLabelValues(target, strconv.Itoa(statusFor(err))).Inc()
		return nil, err
	}

	s.metrics.conversions.WithLabelValues(target, "ok").Inc()
	s.metrics.inBytes.Observe(float64(res.InputSize))
	s.metrics.outBytes.Observe(float64(len(res.Data)))
	if res.FellBack {
		s.metrics.fallbacks.WithLabelValues(target).Inc()
	}
	return res, nil
}

// handleConvert converts the raw request body.
// POST /api/convert?from=image/png&to=image/webp&factor=0.5
func (s *Server) handleConvert(c *fiber.Ctx) error {
	var factor *float64
	if raw := c.Query("factor"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("factor: %v", err))
		}
		factor = &v
	}

	from := c.Query("from")
	if from == "" && strings.HasPrefix(c.Get(fiber.HeaderContentType), "image/") {
		from = c.Get(fiber.HeaderContentType)
	}

	res, err := s.convert(c.UserContext(), pipeline.Request{
		Input:      acquire.FromBytes(c.Body()),
		SourceType: from,
		TargetType: c.Query("to"),
		Factor:     s.factor(factor),
	})
	if err != nil {
		return err
	}

	c.Set(fiber.HeaderContentType, payloadMIME(res))
	c.Set(fiber.HeaderETag, hasher.ETag(res.Data))
	c.Set(HeaderFallback, strconv.FormatBool(res.FellBack))
	c.Set(HeaderSource, res.SourceFormat.ContentType())
	return c.Send(res.Data)
}

// payloadMIME labels returned bytes. A fallback returns the source
// bytes, so they carry the source type.
func payloadMIME(res *pipeline.Result) string {
	if res.FellBack {
		return res.SourceFormat.ContentType()
	}
	return res.MIMEType
}

// handleConvertURL converts and stores the result, returning its URL.
// POST /api/convert/url {"url": "...", "to": "image/avif"}
func (s *Server) handleConvertURL(c *fiber.Ctx) error {
	if s.opts.Store == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "no blob store configured")
	}
	var body convertRequest
	if err := c.BodyParser(&body); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("body: %v", err))
	}
	req, err := s.toRequest(body)
	if err != nil {
		return err
	}

	res, err := s.convert(c.UserContext(), req)
	if err != nil {
		return err
	}
	url, err := s.opts.Store.Put(c.UserContext(), res.Data, res.MIMEType)
	if err != nil {
		return fmt.Errorf("store result: %w", err)
	}

	return c.Status(fiber.StatusCreated).JSON(urlResponse{
		URL:      url,
		MIME:     res.MIMEType,
		Size:     len(res.Data),
		Fallback: res.FellBack,
	})
}

// handleImageProxy fetches a remote image and returns it unchanged, so
// browser clients can read images from hosts without CORS headers.
// GET /api/image?url=https://...
func (s *Server) handleImageProxy(c *fiber.Ctx) error {
	target := c.Query("url")
	if target == "" {
		return fiber.NewError(fiber.StatusBadRequest, "url parameter is required")
	}
	if s.opts.Fetcher == nil {
		return &acquire.Error{URL: target, Err: acquire.ErrNoNetwork}
	}

	data, err := s.opts.Fetcher.Fetch(c.UserContext(), target)
	if err != nil {
		return &acquire.Error{URL: target, Err: err}
	}

	c.Set(fiber.HeaderContentType, http.DetectContentType(data))
	c.Set(fiber.HeaderCacheControl, "public, max-age=3600")
	return c.Send(data)
}

type formatInfo struct {
	Name      string `json:"name"`
	MIME      string `json:"mime"`
	Extension string `json:"extension"`
}

// handleFormats lists encodable formats.
func (s *Server) handleFormats(c *fiber.Ctx) error {
	var out []formatInfo
	for _, f := range s.opts.Converter.Registry().Available() {
		out = append(out, formatInfo{Name: f.String(), MIME: f.MIMEType(), Extension: f.Extension()})
	}
	return c.JSON(out)
}

func (s *Server) handleBlobGet(c *fiber.Ctx) error {
	if s.opts.Blobs == nil {
		return fiber.ErrNotFound
	}
	data, mime, err := s.opts.Blobs.Get(c.Params("id"))
	if errors.Is(err, blob.ErrNotFound) {
		return fiber.ErrNotFound
	}
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, mime)
	c.Set(fiber.HeaderETag, hasher.ETag(data))
	return c.Send(data)
}

func (s *Server) handleBlobDelete(c *fiber.Ctx) error {
	if s.opts.Blobs == nil || !s.opts.Blobs.Revoke(c.Params("id")) {
		return fiber.ErrNotFound
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// wsProgress adapts a websocket to progress.Reporter.
type wsProgress struct {
	send func(v any) error
}

func (w wsProgress) Report(percent int, message string) error {
	return w.send(progress.Milestone{Percent: percent, Message: message})
}
