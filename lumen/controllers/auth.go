// lumen/controllers/auth.go
package controllers

import (
	"context"
	"fmt"
	"time"

	"lumen/lumen/config"
	"lumen/lumen/sources/psql/dao"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type AuthController struct {
	userDAO *dao.UserDAO
	cfg     config.Config
}

func NewAuthController(userDAO *dao.UserDAO, cfg config.Config) *AuthController {
	return &AuthController{
		userDAO: userDAO,
		cfg:     cfg,
	}
}

// Login resolves (or creates) the user and issues a session token. An
// anonymous login gets a generated guest identity with the anon claim set.
func (c *AuthController) Login(ctx context.Context, username string, anonymous bool) (string, error) {
	if anonymous {
		guest := fmt.Sprintf("guest-%s", uuid.New().String()[:8])
		user, err := c.userDAO.CreateUser(ctx, guest, guest+"@anonymous.local", true)
		if err != nil {
			return "", err
		}
		return c.sign(user.ID, true)
	}

	user, err := c.userDAO.GetUserByUsername(ctx, username)
	if err != nil {
		return "", err
	}
	if user == nil {
		email := username + "@example.com"
		user, err = c.userDAO.CreateUser(ctx, username, email, false)
		if err != nil {
			return "", err
		}
	}
	return c.sign(user.ID, false)
}

func (c *AuthController) sign(userID int, anonymous bool) (string, error) {
	claims := jwt.MapClaims{
		"user_id": userID,
		"anon":    anonymous,
		"exp":     time.Now().Add(24 * time.Hour).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(c.cfg.JWTSecret))
}
