package api

import (
	"errors"
	"net/url"

	"github.com/gofiber/fiber/v2"

	"github.com/illegalcall/automark/internal/automark"
	"github.com/illegalcall/automark/internal/instagram"
)

type postTypeRequest struct {
	PostType string `json:"post_type"`
}

type captionRequest struct {
	Caption string `json:"caption"`
}

func (s *Server) handleGetModal(c *fiber.Ctx, sess *session) error {
	return c.JSON(sess.modal.Snapshot())
}

// handleOpenModal opens the post dialog. Without a body the draft is taken
// from the session's current generated image.
func (s *Server) handleOpenModal(c *fiber.Ctx, sess *session) error {
	var draft instagram.PostDraft
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&draft); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid request body",
			})
		}
	}
	if draft.ImageURL == "" {
		snap := sess.generator.Snapshot()
		draft = instagram.PostDraft{
			ImageURL:    snap.Output.ImageURL,
			AdText:      snap.Output.ImageText,
			ProductName: snap.ProductName,
			Description: snap.Description,
		}
	}
	if draft.ImageURL == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "No generated image to post",
		})
	}

	snap, err := sess.modal.Open(c.UserContext(), draft)
	if err != nil {
		return c.Status(modalStatus(err)).JSON(fiber.Map{
			"error": err.Error(),
			"modal": snap,
		})
	}
	return c.JSON(snap)
}

func (s *Server) handleSetPostType(c *fiber.Ctx, sess *session) error {
	var req postTypeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if err := sess.modal.SetPostType(automark.PostType(req.PostType)); err != nil {
		return c.Status(modalStatus(err)).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(sess.modal.Snapshot())
}

func (s *Server) handleSetCaption(c *fiber.Ctx, sess *session) error {
	var req captionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if err := sess.modal.SetCaption(req.Caption); err != nil {
		return c.Status(modalStatus(err)).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(sess.modal.Snapshot())
}

func (s *Server) handleRegenerateCaption(c *fiber.Ctx, sess *session) error {
	snap, err := sess.modal.RegenerateCaption(c.UserContext())
	if err != nil {
		return c.Status(modalStatus(err)).JSON(fiber.Map{
			"error": err.Error(),
			"modal": snap,
		})
	}
	return c.JSON(snap)
}

func (s *Server) handlePost(c *fiber.Ctx, sess *session) error {
	snap, err := sess.modal.Post(c.UserContext())
	if err != nil {
		status := modalStatus(err)
		msg := err.Error()
		if status != fiber.StatusBadRequest && status != fiber.StatusConflict && snap.Error != "" {
			msg = snap.Error
		}
		return c.Status(status).JSON(fiber.Map{
			"error": msg,
			"modal": snap,
		})
	}
	return c.JSON(snap)
}

func (s *Server) handleCloseModal(c *fiber.Ctx, sess *session) error {
	sess.modal.Close()
	return c.JSON(sess.modal.Snapshot())
}

func (s *Server) handleGetSettings(c *fiber.Ctx) error {
	return c.JSON(s.settings.Refresh(c.UserContext()))
}

func (s *Server) handleConnect(c *fiber.Ctx) error {
	authURL, err := s.settings.Connect(c.UserContext())
	if err != nil {
		status := fiber.StatusBadRequest
		if !errors.Is(err, instagram.ErrNotConfigured) {
			s.logger.Error("Failed to initiate Instagram connection", "error", err)
			status = backendStatus(err)
		}
		msg := instagram.MsgConnectFailed
		if m := s.settings.Snapshot().Message; m != nil {
			msg = m.Text
		}
		return c.Status(status).JSON(fiber.Map{
			"error": msg,
		})
	}
	return c.JSON(fiber.Map{"auth_url": authURL})
}

func (s *Server) handleDisconnect(c *fiber.Ctx) error {
	if err := s.settings.Disconnect(c.UserContext()); err != nil {
		return c.Status(backendStatus(err)).JSON(fiber.Map{
			"error": instagram.MsgDisconnectFailed,
		})
	}
	return c.JSON(s.settings.Snapshot())
}

// handleInstagramCallback is where the OAuth flow lands once the user has
// authorised the app.
func (s *Server) handleInstagramCallback(c *fiber.Ctx) error {
	query := url.Values{}
	for k, v := range c.Queries() {
		query.Set(k, v)
	}
	return c.JSON(s.settings.HandleCallback(c.UserContext(), query))
}

func modalStatus(err error) int {
	switch {
	case errors.Is(err, instagram.ErrCaptionRequired),
		errors.Is(err, instagram.ErrCaptionTooLong),
		errors.Is(err, instagram.ErrInvalidPostType),
		errors.Is(err, instagram.ErrCaptionUnsupported):
		return fiber.StatusBadRequest
	case errors.Is(err, instagram.ErrBusy), errors.Is(err, instagram.ErrModalClosed):
		return fiber.StatusConflict
	}
	return backendStatus(err)
}
