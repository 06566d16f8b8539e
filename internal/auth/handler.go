package auth

import (
	"errors"

	"pos-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type MeResponse struct {
	ID          uint            `json:"id"`
	Name        string          `json:"name"`
	Email       string          `json:"email"`
	Role        models.UserRole `json:"role"`
	CompanyID   uint            `json:"company_id"`
	CompanyName string          `json:"company_name"`
}

// GET /api/auth/me
func MeHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		companyID, err := CompanyID(c)
		if err != nil {
			return err
		}

		var user models.User
		err = db.WithContext(c.UserContext()).
			Preload("Company").
			Where("id = ? AND company_id = ?", UserID(c), companyID).
			First(&user).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "user not found")
		}
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not load user")
		}

		resp := MeResponse{
			ID:        user.ID,
			Name:      user.Name,
			Email:     user.Email,
			Role:      user.Role,
			CompanyID: user.CompanyID,
		}
		if user.Company != nil {
			resp.CompanyName = user.Company.Name
		}
		return c.JSON(resp)
	}
}
