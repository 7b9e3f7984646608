package controller

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"souschef/service"
)

type UserController struct {
	Users *service.UserService
}

func (ctrl UserController) Register(c *gin.Context) {
	logger.Infof("[%s] Handling user registration request", c.GetString("requestId"))

	var input struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
		Nickname string `json:"nickname" binding:"max=255"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBindError(c, err)
		return
	}

	user, err := ctrl.Users.Register(c.Request.Context(), &service.User{
		Email:    input.Email,
		Password: input.Password,
		Nickname: input.Nickname,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	logger.Infof("[%s] User %s registered successfully", c.GetString("requestId"), user.ID)
	c.JSON(http.StatusCreated, gin.H{"message": "User registered successfully", "id": user.ID})
}

func (ctrl UserController) Login(c *gin.Context) {
	logger.Infof("[%s] Handling user login request", c.GetString("requestId"))

	var loginRequest struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&loginRequest); err != nil {
		respondBindError(c, err)
		return
	}

	token, err := ctrl.Users.Login(c.Request.Context(), &service.User{
		Email:    loginRequest.Email,
		Password: loginRequest.Password,
	})
	if errors.Is(err, service.ErrUnauthorized) {
		logger.Warnf("[%s] User %s failed to login", c.GetString("requestId"), loginRequest.Email)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}

	logger.Infof("[%s] User %s login successfully", c.GetString("requestId"), loginRequest.Email)
	c.JSON(http.StatusOK, gin.H{"token": token})
}
