package api

import (
	"errors"
	"io"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/illegalcall/automark/internal/automark"
	"github.com/illegalcall/automark/internal/generator"
	"github.com/illegalcall/automark/internal/models"
)

type setModeRequest struct {
	Mode string `json:"mode"`
}

func (s *Server) handleGetGenerator(c *fiber.Ctx, sess *session) error {
	if c.QueryBool("check_instagram") {
		sess.generator.CheckInstagram(c.UserContext())
	}
	return c.JSON(sess.generator.Snapshot())
}

func (s *Server) handleSetMode(c *fiber.Ctx, sess *session) error {
	var req setModeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if err := sess.generator.SetMode(models.AdType(req.Mode)); err != nil {
		return c.Status(generatorStatus(err)).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(sess.generator.Snapshot())
}

// handleGenerate accepts either a JSON body or a multipart form. In upload
// mode the image comes in the "file" part.
func (s *Server) handleGenerate(c *fiber.Ctx, sess *session) error {
	var req models.GenerateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	in := generator.Input{
		Mode:        models.AdType(req.Mode),
		ProductName: req.ProductName,
		Description: req.Description,
	}
	if strings.HasPrefix(string(c.Request().Header.ContentType()), fiber.MIMEMultipartForm) {
		up, ok, err := readUpload(c)
		if err != nil {
			s.logger.Error("Failed to read uploaded file", "error", err)
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Failed to read uploaded file",
			})
		}
		if ok {
			in.Upload = &up
		}
	}

	snap, err := sess.generator.Submit(c.UserContext(), in)
	if err != nil {
		status := generatorStatus(err)
		msg := err.Error()
		if status >= fiber.StatusInternalServerError && snap.Message != "" {
			msg = snap.Message
		}
		if status == fiber.StatusInternalServerError {
			s.logger.Error("Generation failed", "mode", snap.Mode, "error", err)
		}
		return c.Status(status).JSON(fiber.Map{
			"error":     msg,
			"generator": snap,
		})
	}
	return c.JSON(snap)
}

func (s *Server) handleDownload(c *fiber.Ctx, sess *session) error {
	path, err := sess.generator.Download(c.UserContext())
	if err != nil {
		if errors.Is(err, generator.ErrNoImage) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": generator.MsgDownloadFailed,
		})
	}
	return c.JSON(fiber.Map{"path": path})
}

func readUpload(c *fiber.Ctx) (automark.Upload, bool, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return automark.Upload{}, false, err
	}
	files := form.File["file"]
	if len(files) == 0 {
		return automark.Upload{}, false, nil
	}
	fh := files[0]

	f, err := fh.Open()
	if err != nil {
		return automark.Upload{}, false, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return automark.Upload{}, false, err
	}
	return automark.Upload{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get(fiber.HeaderContentType),
		Data:        data,
	}, true, nil
}

// generatorStatus maps a generator error to a response status.
func generatorStatus(err error) int {
	switch {
	case errors.Is(err, generator.ErrInvalidMode), errors.Is(err, generator.ErrNoFileSelected):
		return fiber.StatusBadRequest
	case errors.Is(err, generator.ErrGenerationInFlight):
		return fiber.StatusConflict
	case errors.Is(err, generator.ErrClosed):
		return fiber.StatusGone
	}
	return backendStatus(err)
}
