// Package api serves the compiler over HTTP.
package api

import (
	"encoding/json"
	"log/slog"

	"github.com/birdayz/xodc"
	"github.com/birdayz/xodc/kproject"
	"github.com/birdayz/xodc/ktype"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/hashicorp/hcl/v2/ext/typeexpr"
	"go.uber.org/multierr"
)

// HeaderRequestID carries the request id; a client supplied id is kept.
const HeaderRequestID = "X-Request-ID"

type server struct {
	log      *slog.Logger
	compiler *xodc.Compiler
}

// New creates the fiber app with all routes registered.
func New(log *slog.Logger, compiler *xodc.Compiler) *fiber.App {
	s := &server{log: log, compiler: compiler}

	app := fiber.New()
	app.Use(fiber.Handler(requestID))

	app.Get("/healthz", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/v1/types", s.types)
	app.Post("/v1/compile", s.compile)

	return app
}

func requestID(c fiber.Ctx) error {
	id := c.Get(HeaderRequestID)
	if id == "" {
		id = uuid.NewString()
	}
	c.Locals(HeaderRequestID, id)
	c.Set(HeaderRequestID, id)
	return c.Next()
}

type compileResponse struct {
	ID       string            `json:"id"`
	Code     string            `json:"code"`
	Topology []kproject.NodeID `json:"topology"`
	Digest   string            `json:"digest"`
	Cached   bool              `json:"cached"`
}

type errorResponse struct {
	ID     string   `json:"id"`
	Error  string   `json:"error"`
	Kind   string   `json:"kind"`
	Errors []string `json:"errors,omitempty"`
}

// compile accepts a project as the request body. With ?format=js the program
// is returned as plain JavaScript instead of a JSON envelope.
func (s *server) compile(c fiber.Ctx) error {
	id, _ := c.Locals(HeaderRequestID).(string)

	res, err := s.compiler.CompileJSON(c.Context(), c.Body())
	if err != nil {
		kind := xodc.ErrorKind(err)
		status := fiber.StatusUnprocessableEntity
		switch kind {
		case xodc.KindInvalidProject:
			status = fiber.StatusBadRequest
		case xodc.KindInternal, xodc.KindCanceled:
			status = fiber.StatusInternalServerError
			s.log.Error("Compile failed", "request_id", id, "error", err)
		}

		resp := errorResponse{ID: id, Error: err.Error(), Kind: kind}
		for _, e := range multierr.Errors(err) {
			resp.Errors = append(resp.Errors, e.Error())
		}
		return c.Status(status).JSON(resp)
	}

	s.log.Debug("Compiled", "request_id", id, "digest", res.Digest, "cached", res.Cached)

	if c.Query("format") == "js" {
		c.Set(fiber.HeaderContentType, "application/javascript; charset=utf-8")
		return c.SendString(res.Code)
	}
	return c.JSON(compileResponse{
		ID:       id,
		Code:     res.Code,
		Topology: res.Topology,
		Digest:   res.Digest,
		Cached:   res.Cached,
	})
}

type pinInfo struct {
	Key      kproject.PinKey `json:"key"`
	Type     string          `json:"type"`
	Default  json.RawMessage `json:"default,omitempty"`
	Required bool            `json:"required,omitempty"`
}

type typeInfo struct {
	Name        string    `json:"name"`
	Constructor string    `json:"constructor"`
	Inputs      []pinInfo `json:"inputs"`
	Outputs     []pinInfo `json:"outputs"`
}

func (s *server) types(c fiber.Ctx) error {
	reg := s.compiler.Types()
	out := make([]typeInfo, 0, reg.Len())
	for _, name := range reg.Names() {
		t, _ := reg.Lookup(name)
		out = append(out, typeInfo{
			Name:        t.Name,
			Constructor: t.Constructor,
			Inputs:      pins(t.Inputs),
			Outputs:     pins(t.Outputs),
		})
	}
	return c.JSON(fiber.Map{"types": out, "fingerprint": reg.Fingerprint()})
}

func pins(defs map[kproject.PinKey]*ktype.PinDef) []pinInfo {
	out := make([]pinInfo, 0, len(defs))
	for _, key := range kproject.Sorted(defs) {
		d := defs[key]
		typ := "any"
		if d.Typed {
			typ = typeexpr.TypeString(d.Type)
		}
		out = append(out, pinInfo{Key: key, Type: typ, Default: d.Default, Required: d.Required})
	}
	return out
}
