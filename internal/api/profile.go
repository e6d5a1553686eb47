package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/illegalcall/automark/internal/events"
	"github.com/illegalcall/automark/internal/models"
	"github.com/illegalcall/automark/internal/profile"
)

func (s *Server) handleGetProfile(c *fiber.Ctx) error {
	return c.JSON(s.store.Profile())
}

func (s *Server) handleUpdateProfile(c *fiber.Ctx) error {
	var req models.ProfileUpdate
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	p, err := s.store.Update(c.UserContext(), req)
	if err != nil {
		if errors.Is(err, profile.ErrInvalidProfile) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		s.logger.Error("Failed to update profile", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to save profile",
		})
	}
	return c.JSON(p)
}

func (s *Server) handleResetProfile(c *fiber.Ctx) error {
	p, err := s.store.ResetProfile(c.UserContext())
	if err != nil {
		s.logger.Error("Failed to reset profile", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to save profile",
		})
	}
	return c.JSON(p)
}

func (s *Server) handleListAds(c *fiber.Ctx) error {
	ads := s.store.Ads()
	if t := c.Query("type"); t != "" {
		adType, err := models.ParseAdType(t)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		filtered := ads[:0]
		for _, ad := range ads {
			if ad.Type == adType {
				filtered = append(filtered, ad)
			}
		}
		ads = filtered
	}
	return c.JSON(fiber.Map{
		"ads":   ads,
		"total": len(ads),
	})
}

func (s *Server) handleGetAd(c *fiber.Ctx) error {
	ad, ok := s.store.Ad(c.Params("id"))
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Ad not found",
		})
	}
	return c.JSON(fiber.Map{"ad": ad})
}

func (s *Server) handleDeleteAd(c *fiber.Ctx) error {
	id := c.Params("id")
	ad, _ := s.store.Ad(id)

	removed, err := s.store.DeleteGeneratedAd(c.UserContext(), id)
	if err != nil {
		s.logger.Error("Failed to delete ad", "id", id, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to save profile",
		})
	}
	if !removed {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Ad not found",
		})
	}

	events.PublishAsync(s.publisher, models.Activity{
		Type:        models.ActivityAdDeleted,
		AdID:        id,
		AdType:      string(ad.Type),
		ProductName: ad.ProductName,
	})
	return c.SendStatus(fiber.StatusNoContent)
}
