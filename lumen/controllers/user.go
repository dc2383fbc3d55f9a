// lumen/controllers/user.go
package controllers

import (
	"context"

	"lumen/lumen/apperrors"
	"lumen/lumen/sources/psql/dao"
	"lumen/lumen/sources/psql/models"
)

type UserController struct {
	dao *dao.UserDAO
}

func NewUserController(dao *dao.UserDAO) *UserController {
	return &UserController{dao: dao}
}

func (c *UserController) GetUser(ctx context.Context, id int) (*models.User, error) {
	user, err := c.dao.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperrors.New(apperrors.NotFound, apperrors.DomainAuth, "user not found")
	}
	return user, nil
}

func (c *UserController) UpdateUser(ctx context.Context, id int, username, email string, fullName, imageURL *string) (*models.User, error) {
	user, err := c.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if username != "" {
		user.Username = username
	}
	if email != "" {
		user.Email = email
	}
	if fullName != nil {
		user.FullName = fullName
	}
	if imageURL != nil {
		user.ImageURL = imageURL
	}
	if err := c.dao.UpdateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}
