// api/handlers/auth_handlers.go
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"componentlab/api/logger"
	"componentlab/api/models"
	"componentlab/api/store"
	"componentlab/api/utils"
)

// UserAccounts is the part of the user store the auth endpoints need.
type UserAccounts interface {
	CreateUser(ctx context.Context, name, email string, hashedPassword []byte) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

type AuthHandlers struct {
	Users  UserAccounts
	Tokens *utils.JWTManager
	log    *logger.Logger
}

func NewAuthHandlers(users UserAccounts, tokens *utils.JWTManager, log *logger.Logger) *AuthHandlers {
	return &AuthHandlers{Users: users, Tokens: tokens, log: log}
}

func (h *AuthHandlers) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.log.Error("Register: failed to hash password", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "Error al registrar usuario")
		return
	}

	user, err := h.Users.CreateUser(c.Request.Context(), strings.TrimSpace(req.Name), email, hashedPassword)
	if err != nil {
		if errors.Is(err, store.ErrEmailTaken) {
			respondError(c, http.StatusBadRequest, "El email ya está registrado")
			return
		}
		h.log.Error("Register: failed to create user", zap.Error(err), zap.String("email", email))
		respondError(c, http.StatusInternalServerError, "Error al registrar usuario")
		return
	}

	h.log.Info("User registered", zap.String("user_id", user.ID))
	h.respondWithToken(c, http.StatusCreated, "Usuario registrado exitosamente", user)
}

func (h *AuthHandlers) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	user, err := h.Users.GetUserByEmail(c.Request.Context(), email)
	if err != nil {
		if !errors.Is(err, store.ErrUserNotFound) {
			h.log.Error("Login: user lookup failed", zap.Error(err))
			respondError(c, http.StatusInternalServerError, "Error al iniciar sesión")
			return
		}
		respondError(c, http.StatusUnauthorized, "Credenciales inválidas")
		return
	}

	if err := bcrypt.CompareHashAndPassword(user.HashedPassword, []byte(req.Password)); err != nil {
		h.log.Debug("Login: password mismatch", zap.String("user_id", user.ID))
		respondError(c, http.StatusUnauthorized, "Credenciales inválidas")
		return
	}

	h.respondWithToken(c, http.StatusOK, "Login exitoso", user)
}

func (h *AuthHandlers) respondWithToken(c *gin.Context, status int, message string, user *models.User) {
	token, err := h.Tokens.Generate(user)
	if err != nil {
		h.log.Error("failed to generate JWT", zap.Error(err), zap.String("user_id", user.ID))
		respondError(c, http.StatusInternalServerError, "Error al generar token de autenticación")
		return
	}
	c.JSON(status, gin.H{
		"success": true,
		"message": message,
		"data":    models.AuthResponse{User: user.Public(), Token: token},
	})
}
