package auth

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"meteor-store/internal/engine"
	"meteor-store/internal/query"
	"meteor-store/internal/record"
	"meteor-store/internal/store"
)

// Reserved system models. They live in the same memory store as user
// data but are not declared in the schema and never reachable through
// the dynamic entity routes.
const (
	usersModel  = "_users"
	tokensModel = "_refresh_tokens"
)

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	store     *store.Store
	jwtSecret string
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(s *store.Store, jwtSecret string) *AuthHandler {
	return &AuthHandler{store: s, jwtSecret: jwtSecret}
}

// Bootstrap creates the initial admin user when no users exist yet.
func (h *AuthHandler) Bootstrap(email, password string) error {
	users := h.store.Model(usersModel)
	if users.Len() > 0 {
		return nil
	}
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	id := uuid.New().String()
	rec := record.FromMap(usersModel, map[string]any{
		"id":            id,
		"email":         email,
		"password_hash": hash,
		"roles":         []any{"admin"},
		"active":        true,
	})
	users.Put(id, rec)
	log.Printf("Bootstrapped admin user %s", email)
	return nil
}

// Register handles POST /api/auth/register.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&body); err != nil {
		return engine.NewAppError("INVALID_PAYLOAD", 400, "Invalid request body")
	}
	if body.Email == "" || body.Password == "" {
		return engine.NewAppError("INVALID_PAYLOAD", 400, "Email and password are required")
	}

	if _, ok := h.findUserByEmail(body.Email); ok {
		return engine.ConflictError("A user with this email already exists")
	}

	hash, err := HashPassword(body.Password)
	if err != nil {
		return err
	}
	id := uuid.New().String()
	rec := record.FromMap(usersModel, map[string]any{
		"id":            id,
		"email":         body.Email,
		"password_hash": hash,
		"roles":         []any{"user"},
		"active":        true,
	})
	h.store.Model(usersModel).Put(id, rec)

	return c.Status(201).JSON(fiber.Map{"data": fiber.Map{"id": id, "email": body.Email}})
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&body); err != nil {
		return engine.NewAppError("INVALID_PAYLOAD", 400, "Invalid request body")
	}
	if body.Email == "" || body.Password == "" {
		return engine.UnauthorizedError("Email and password are required")
	}

	user, ok := h.findUserByEmail(body.Email)
	if !ok {
		return engine.UnauthorizedError("Invalid email or password")
	}

	if active, _ := userField(user, "active").(bool); !active {
		return engine.UnauthorizedError("Account is disabled")
	}

	passwordHash, _ := userField(user, "password_hash").(string)
	if !CheckPassword(body.Password, passwordHash) {
		return engine.UnauthorizedError("Invalid email or password")
	}

	userID, _ := userField(user, "id").(string)
	roles := extractRoles(userField(user, "roles"))

	pair, err := h.generateTokenPair(userID, roles)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": pair})
}

// Refresh handles POST /api/auth/refresh.
func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	var body struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := c.BodyParser(&body); err != nil {
		return engine.NewAppError("INVALID_PAYLOAD", 400, "Invalid request body")
	}
	if body.RefreshToken == "" {
		return engine.UnauthorizedError("Refresh token is required")
	}

	tokens := h.store.Model(tokensModel)
	tok, ok := tokens.Get(body.RefreshToken)
	if !ok {
		return engine.UnauthorizedError("Invalid refresh token")
	}

	expiresAt, _ := userField(tok, "expires_at").(time.Time)
	if time.Now().After(expiresAt) {
		tokens.Delete(body.RefreshToken)
		return engine.UnauthorizedError("Refresh token expired")
	}

	userID, _ := userField(tok, "user_id").(string)
	user, ok := h.store.Model(usersModel).Get(userID)
	if !ok {
		tokens.Delete(body.RefreshToken)
		return engine.UnauthorizedError("Invalid refresh token")
	}
	if active, _ := userField(user, "active").(bool); !active {
		return engine.UnauthorizedError("Account is disabled")
	}

	// Rotation: the used token is gone either way.
	tokens.Delete(body.RefreshToken)

	pair, err := h.generateTokenPair(userID, extractRoles(userField(user, "roles")))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": pair})
}

func (h *AuthHandler) generateTokenPair(userID string, roles []string) (*TokenPair, error) {
	access, err := GenerateAccessToken(userID, roles, h.jwtSecret)
	if err != nil {
		return nil, err
	}

	refresh := GenerateRefreshToken()
	rec := record.FromMap(tokensModel, map[string]any{
		"token":      refresh,
		"user_id":    userID,
		"expires_at": time.Now().Add(RefreshTokenTTL),
	})
	h.store.Model(tokensModel).Put(refresh, rec)

	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (h *AuthHandler) findUserByEmail(email string) (*record.Record, bool) {
	sel := query.Selector{"email": map[string]any{"equals": email}}
	matches := query.Execute(usersModel, "id", sel, h.store)
	if len(matches) == 0 {
		return nil, false
	}
	return matches[0], true
}

func userField(rec *record.Record, name string) any {
	v, _ := rec.Field(name)
	return v
}

func extractRoles(v any) []string {
	var roles []string
	switch list := v.(type) {
	case []string:
		return list
	case []any:
		for _, r := range list {
			if s, ok := r.(string); ok {
				roles = append(roles, s)
			}
		}
	}
	return roles
}

// RegisterAuthRoutes mounts the authentication endpoints.
func RegisterAuthRoutes(app *fiber.App, h *AuthHandler) {
	grp := app.Group("/api/auth")
	grp.Post("/register", h.Register)
	grp.Post("/login", h.Login)
	grp.Post("/refresh", h.Refresh)
}
