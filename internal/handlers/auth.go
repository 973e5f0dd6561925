package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"firebase.google.com/go/v4/auth"
	"github.com/anonto42/nano-social/backend/internal/middleware"
	"github.com/anonto42/nano-social/backend/internal/models"
	"github.com/anonto42/nano-social/backend/internal/repositories"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// TokenVerifier is the part of the Firebase auth client used for login
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	userRepository repositories.UserRepository
	firebaseAuth   TokenVerifier
	jwtSecret      string
	jwtTTL         time.Duration
	log            *zap.Logger
}

// NewAuthHandler creates a new AuthHandler. A nil verifier disables Firebase login.
func NewAuthHandler(userRepo repositories.UserRepository, verifier TokenVerifier, jwtSecret string, jwtTTL time.Duration, log *zap.Logger) *AuthHandler {
	return &AuthHandler{
		userRepository: userRepo,
		firebaseAuth:   verifier,
		jwtSecret:      jwtSecret,
		jwtTTL:         jwtTTL,
		log:            log,
	}
}

// RegisterAuthRoutes registers the public authentication routes
func (h *AuthHandler) RegisterAuthRoutes(g *echo.Group) {
	g.POST("/register", h.Register)
	g.POST("/login", h.Login)
	g.POST("/firebase-login", h.FirebaseLogin)
}

type authResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// Register handles local user registration with email and password
func (h *AuthHandler) Register(c echo.Context) error {
	var req models.RegisterRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	if _, err := h.userRepository.GetUserByEmail(req.Email); err == nil {
		return echo.NewHTTPError(http.StatusConflict, "User with this email already registered")
	}
	if _, err := h.userRepository.GetUserByUsername(req.Username); err == nil {
		return echo.NewHTTPError(http.StatusConflict, "Username already taken")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to hash password")
	}

	displayName := req.DisplayName
	if displayName == "" {
		displayName = req.Username
	}
	user := &models.User{
		Username:    req.Username,
		Email:       strings.ToLower(req.Email),
		DisplayName: displayName,
		Password:    string(hashedPassword),
	}
	if err := h.userRepository.CreateUser(user); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return echo.NewHTTPError(http.StatusConflict, "User already registered")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	token, err := middleware.SignToken(h.jwtSecret, h.jwtTTL, user)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to generate token after signup")
	}

	h.log.Info("user registered", zap.Uint("user_id", user.ID), zap.String("username", user.Username))
	return respond(c, http.StatusCreated, authResponse{Token: token, User: user})
}

// Login handles local user authentication with email and password
func (h *AuthHandler) Login(c echo.Context) error {
	var req models.LoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	user, err := h.userRepository.GetUserByEmail(req.Email)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid email or password")
	}
	if user.Password == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "Account uses Firebase login")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid email or password")
	}
	if !user.IsActive {
		return echo.NewHTTPError(http.StatusForbidden, "Account is deactivated")
	}

	token, err := middleware.SignToken(h.jwtSecret, h.jwtTTL, user)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to generate token")
	}
	return respond(c, http.StatusOK, authResponse{Token: token, User: user})
}

// FirebaseLoginRequest defines the request body for Firebase login
type FirebaseLoginRequest struct {
	IDToken string `json:"idToken" validate:"required"`
}

// FirebaseLogin verifies a Firebase ID token and issues a local JWT,
// linking or creating the local account as needed.
func (h *AuthHandler) FirebaseLogin(c echo.Context) error {
	if h.firebaseAuth == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "Firebase login is not configured")
	}

	var req FirebaseLoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	token, err := h.firebaseAuth.VerifyIDToken(c.Request().Context(), req.IDToken)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid Firebase ID token")
	}

	uid := token.UID
	email, _ := token.Claims["email"].(string)
	name, _ := token.Claims["name"].(string)
	if email == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Firebase account has no email")
	}

	user, err := h.userRepository.GetUserByFirebaseUID(uid)
	switch {
	case err == nil:
	case errors.Is(err, repositories.ErrNotFound):
		user, err = h.linkOrCreate(uid, email, name)
		if err != nil {
			return err
		}
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "Database error")
	}

	if !user.IsActive {
		return echo.NewHTTPError(http.StatusForbidden, "Account is deactivated")
	}

	localJWT, err := middleware.SignToken(h.jwtSecret, h.jwtTTL, user)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to generate local JWT")
	}
	return respond(c, http.StatusOK, authResponse{Token: localJWT, User: user})
}

func (h *AuthHandler) linkOrCreate(uid, email, name string) (*models.User, error) {
	user, err := h.userRepository.GetUserByEmail(email)
	if err == nil {
		user.FirebaseUID = &uid
		if err := h.userRepository.UpdateUser(user); err != nil {
			return nil, echo.NewHTTPError(http.StatusInternalServerError, "Failed to link Firebase account")
		}
		return user, nil
	}
	if !errors.Is(err, repositories.ErrNotFound) {
		return nil, echo.NewHTTPError(http.StatusInternalServerError, "Database error")
	}

	username, err := h.freeUsername(email)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusInternalServerError, "Database error")
	}
	if name == "" {
		name = username
	}
	user = &models.User{
		Username:    username,
		Email:       strings.ToLower(email),
		DisplayName: name,
		FirebaseUID: &uid,
	}
	if err := h.userRepository.CreateUser(user); err != nil {
		return nil, echo.NewHTTPError(http.StatusInternalServerError, "Failed to create user")
	}
	h.log.Info("user created from firebase login", zap.Uint("user_id", user.ID))
	return user, nil
}

// freeUsername derives an unused username from the email's local part
func (h *AuthHandler) freeUsername(email string) (string, error) {
	base := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			return r
		}
		return -1
	}, strings.ToLower(strings.SplitN(email, "@", 2)[0]))
	if len(base) < 3 {
		base = "user" + base
	}
	if len(base) > 24 {
		base = base[:24]
	}

	candidate := base
	for i := 1; i < 100; i++ {
		_, err := h.userRepository.GetUserByUsername(candidate)
		if errors.Is(err, repositories.ErrNotFound) {
			return candidate, nil
		}
		if err != nil {
			return "", err
		}
		candidate = fmt.Sprintf("%s%d", base, i)
	}
	return "", errors.New("no free username")
}
