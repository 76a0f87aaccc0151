// Package server exposes the engine over HTTP.
package server

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v5"

	"github.com/ankit-chaubey/media-metadata-embed/core"
	"github.com/ankit-chaubey/media-metadata-embed/core/config"
	"github.com/ankit-chaubey/media-metadata-embed/core/engine"
	"github.com/ankit-chaubey/media-metadata-embed/core/logger"
)

// multipartMemory is how much of a form ParseMultipartForm keeps in memory
// before spilling file parts to disk.
const multipartMemory = 32 << 20

type Server struct {
	engine *engine.Engine
	cfg    config.Config
	log    logger.Logger
}

func NewServer(eng *engine.Engine, cfg config.Config, log logger.Logger) *Server {
	if eng == nil {
		eng = engine.New()
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Server{engine: eng, cfg: cfg, log: log}
}

func (s *Server) Register(e *echo.Echo) {
	e.POST("/v1/embed", s.handleEmbed)
	e.POST("/v1/extract", s.handleExtract)
	e.GET("/v1/formats", s.handleFormats)
	e.GET("/healthz", s.handleHealth)
}

type errorBody struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

func writeError(c *echo.Context, status int, errType, msg string) error {
	return c.JSON(status, map[string]any{
		"error": errorBody{Message: msg, Type: errType},
	})
}

// writeEngineError maps the engine's error kinds onto HTTP statuses.
func writeEngineError(c *echo.Context, err error) error {
	switch {
	case errors.Is(err, core.ErrUnsupportedFormat):
		return writeError(c, http.StatusUnsupportedMediaType, "unsupported_format", err.Error())
	case errors.Is(err, core.ErrPacketTooLarge):
		return writeError(c, http.StatusUnprocessableEntity, "packet_too_large", err.Error())
	case errors.Is(err, core.ErrMalformedContainer):
		return writeError(c, http.StatusUnprocessableEntity, "malformed_container", err.Error())
	case errors.Is(err, core.ErrCollaborator):
		return writeError(c, http.StatusBadGateway, "collaborator_error", err.Error())
	default:
		return writeError(c, http.StatusInternalServerError, "server_error", err.Error())
	}
}

type upload struct {
	name string
	mime string
	data []byte
}

// readUpload parses the multipart form and returns the "file" part. The
// MIME type comes from the "mime" field, then the part's Content-Type, then
// content sniffing.
func (s *Server) readUpload(c *echo.Context) (*upload, int, error) {
	req := c.Request()
	limit := s.cfg.Server.MaxUploadBytes
	if limit > 0 {
		if req.ContentLength > limit {
			return nil, http.StatusRequestEntityTooLarge, fmt.Errorf("upload of %d bytes exceeds limit of %d", req.ContentLength, limit)
		}
		req.Body = http.MaxBytesReader(nil, req.Body, limit)
	}
	if err := req.ParseMultipartForm(multipartMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return nil, http.StatusRequestEntityTooLarge, fmt.Errorf("upload exceeds limit of %d bytes", limit)
		}
		return nil, http.StatusBadRequest, fmt.Errorf("parse form: %w", err)
	}
	f, hdr, err := req.FormFile("file")
	if err != nil {
		return nil, http.StatusBadRequest, errors.New(`missing "file" part`)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, http.StatusBadRequest, fmt.Errorf("read file: %w", err)
	}

	mt := strings.TrimSpace(req.FormValue("mime"))
	if mt == "" {
		if ct, _, err := mime.ParseMediaType(hdr.Header.Get(echo.HeaderContentType)); err == nil && ct != echo.MIMEOctetStream {
			mt = ct
		}
	}
	if mt == "" {
		mt = s.engine.Detect(data, hdr.Filename)
	}
	return &upload{name: filepath.Base(hdr.Filename), mime: mt, data: data}, 0, nil
}

func (s *Server) handleEmbed(c *echo.Context) error {
	start := time.Now()
	reqID := uuid.NewString()
	c.Response().Header().Set(echo.HeaderXRequestID, reqID)
	log := s.log.With("request_id", reqID)

	up, status, err := s.readUpload(c)
	if err != nil {
		return writeError(c, status, "invalid_request_error", err.Error())
	}
	req := c.Request()
	rec := core.Record{
		Title:       req.FormValue("title"),
		Description: req.FormValue("description"),
		Keywords:    core.SplitKeywords(req.MultipartForm.Value["keywords"]),
	}

	if problems := s.cfg.Policy.Check(rec); len(problems) > 0 {
		if s.cfg.Policy.Enforce {
			log.Warn("policy rejected record", "file", up.name, "problems", problems)
			return writeError(c, http.StatusUnprocessableEntity, "policy_violation", strings.Join(problems, "; "))
		}
		log.Warn("record outside policy", "file", up.name, "problems", problems)
	}

	out, err := s.engine.Embed(up.data, up.mime, rec)
	if err != nil {
		log.Error("embed failed", "file", up.name, "mime", up.mime, "error", err)
		return writeEngineError(c, err)
	}
	log.Info("embedded",
		"file", up.name,
		"mime", up.mime,
		"in_bytes", len(up.data),
		"out_bytes", len(out),
		"duration", time.Since(start),
	)
	if up.name != "" && up.name != "." {
		c.Response().Header().Set(echo.HeaderContentDisposition, mime.FormatMediaType("attachment", map[string]string{"filename": up.name}))
	}
	return c.Blob(http.StatusOK, core.CanonicalMIME(core.FormatForMIME(up.mime)), out)
}

type extractResponse struct {
	File   string      `json:"file,omitempty"`
	Format string      `json:"format"`
	Record core.Record `json:"record"`
}

func (s *Server) handleExtract(c *echo.Context) error {
	up, status, err := s.readUpload(c)
	if err != nil {
		return writeError(c, status, "invalid_request_error", err.Error())
	}
	rec, err := s.engine.Extract(up.data, up.mime)
	if err != nil {
		s.log.Error("extract failed", "file", up.name, "mime", up.mime, "error", err)
		return writeEngineError(c, err)
	}
	s.log.Debug("extracted", "file", up.name, "mime", up.mime, "keywords", len(rec.Keywords))
	return c.JSON(http.StatusOK, extractResponse{
		File:   up.name,
		Format: core.CanonicalMIME(core.FormatForMIME(up.mime)),
		Record: rec,
	})
}

func (s *Server) handleFormats(c *echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{"formats": s.engine.Formats()})
}

func (s *Server) handleHealth(c *echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok", "version": core.Version})
}
