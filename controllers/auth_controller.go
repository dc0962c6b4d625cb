package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"gorm.io/gorm"

	"github.com/joshshshshs/mymacroai-sub002/config"
	"github.com/joshshshshs/mymacroai-sub002/models"
	"github.com/joshshshshs/mymacroai-sub002/utils"
)

const tokenDuration = 72 * time.Hour

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_\-]{3,32}$`)

// AuthController handles registration, login and OAuth flows.
type AuthController struct {
	DB *gorm.DB
}

func NewAuthController(db *gorm.DB) *AuthController {
	return &AuthController{DB: db}
}

type registerRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email"`
	Password string `json:"password" binding:"required"`
	Timezone string `json:"timezone"`
}

// Register creates a local account.
func (ac *AuthController) Register(ctx *gin.Context) {
	var req registerRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40001, "invalid request payload")
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	if !usernamePattern.MatchString(req.Username) {
		utils.Error(ctx, http.StatusBadRequest, 40002, "username must be 3-32 chars of letters, digits, _ or -")
		return
	}
	if len(req.Password) < 8 || len(req.Password) > 72 {
		utils.Error(ctx, http.StatusBadRequest, 40003, "password must be 8-72 characters")
		return
	}
	if req.Timezone != "" {
		if _, err := time.LoadLocation(req.Timezone); err != nil {
			utils.Error(ctx, http.StatusBadRequest, 40004, "unknown timezone")
			return
		}
	}

	var count int64
	ac.DB.Model(&models.User{}).Where("username = ?", req.Username).Count(&count)
	if count > 0 {
		utils.Error(ctx, http.StatusConflict, 40901, "username already taken")
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50001, "failed to create account")
		return
	}

	user := models.User{
		Username:     req.Username,
		Email:        strings.TrimSpace(req.Email),
		PasswordHash: hash,
		Provider:     "local",
		RegisterIP:   ctx.ClientIP(),
		Timezone:     req.Timezone,
	}
	if err := ac.DB.Create(&user).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50001, "failed to create account")
		return
	}

	token, err := utils.GenerateToken(user.ID, user.Username, tokenDuration)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50002, "failed to issue token")
		return
	}

	utils.Success(ctx, gin.H{"token": token, "user": sanitizeUserResponse(&user)})
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login authenticates a local account and issues a JWT.
func (ac *AuthController) Login(ctx *gin.Context) {
	var req loginRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40001, "invalid request payload")
		return
	}

	var user models.User
	if err := ac.DB.Where("username = ?", strings.TrimSpace(req.Username)).First(&user).Error; err != nil {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "invalid username or password")
		return
	}
	if user.Provider != "local" || !utils.CheckPassword(user.PasswordHash, req.Password) {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "invalid username or password")
		return
	}

	token, err := utils.GenerateToken(user.ID, user.Username, tokenDuration)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50002, "failed to issue token")
		return
	}

	utils.Success(ctx, gin.H{"token": token, "user": sanitizeUserResponse(&user)})
}

// Logout revokes the presented token until its natural expiry.
func (ac *AuthController) Logout(ctx *gin.Context) {
	authHeader := ctx.GetHeader("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		tokenString := strings.TrimSpace(parts[1])
		if claims, err := utils.ParseToken(tokenString); err == nil {
			utils.BlacklistToken(tokenString, claims.ExpiresAt.Time)
		}
	}
	utils.Success(ctx, gin.H{"message": "logged out"})
}

// Me returns the authenticated user's profile.
func (ac *AuthController) Me(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		return
	}

	var user models.User
	if err := ac.DB.First(&user, userID).Error; err != nil {
		utils.Error(ctx, http.StatusNotFound, 40401, "user not found")
		return
	}
	utils.Success(ctx, sanitizeUserResponse(&user))
}

type updateProfileRequest struct {
	Signature *string `json:"signature"`
	AvatarURL *string `json:"avatar_url"`
	Timezone  *string `json:"timezone"`
}

// UpdateProfile updates mutable profile fields of the current user.
func (ac *AuthController) UpdateProfile(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		return
	}

	var req updateProfileRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40001, "invalid request payload")
		return
	}

	var user models.User
	if err := ac.DB.First(&user, userID).Error; err != nil {
		utils.Error(ctx, http.StatusNotFound, 40401, "user not found")
		return
	}

	if req.Signature != nil {
		sig := utils.Sanitize(*req.Signature)
		if runes := []rune(sig); len(runes) > 255 {
			sig = string(runes[:255])
		}
		user.Signature = sig
	}
	if req.AvatarURL != nil {
		user.AvatarURL = strings.TrimSpace(*req.AvatarURL)
	}
	if req.Timezone != nil {
		tz := strings.TrimSpace(*req.Timezone)
		if tz != "" {
			if _, err := time.LoadLocation(tz); err != nil {
				utils.Error(ctx, http.StatusBadRequest, 40004, "unknown timezone")
				return
			}
		}
		user.Timezone = tz
	}

	if err := ac.DB.Save(&user).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50003, "failed to update profile")
		return
	}

	utils.InvalidateByPrefix(fmt.Sprintf("user:%d:", user.ID))
	utils.Success(ctx, sanitizeUserResponse(&user))
}

// OAuthRedirect starts the Google OAuth authorization code flow.
func (ac *AuthController) OAuthRedirect(ctx *gin.Context) {
	conf := oauthConfig()
	if conf.ClientID == "" {
		utils.Error(ctx, http.StatusServiceUnavailable, 50310, "oauth login is not configured")
		return
	}

	state := uuid.NewString()
	utils.SaveState(state, 10*time.Minute)
	ctx.Redirect(http.StatusFound, conf.AuthCodeURL(state))
}

// OAuthCallback finishes the Google flow and issues a JWT.
func (ac *AuthController) OAuthCallback(ctx *gin.Context) {
	state := ctx.Query("state")
	if state == "" || !utils.ConsumeState(state) {
		utils.Error(ctx, http.StatusBadRequest, 40020, "invalid or expired oauth state")
		return
	}

	code := ctx.Query("code")
	if code == "" {
		utils.Error(ctx, http.StatusBadRequest, 40021, "missing authorization code")
		return
	}

	conf := oauthConfig()
	token, err := conf.Exchange(ctx.Request.Context(), code)
	if err != nil {
		utils.Error(ctx, http.StatusBadGateway, 50210, "oauth code exchange failed")
		return
	}

	gu, err := fetchGoogleUser(ctx.Request.Context(), conf, token)
	if err != nil {
		utils.Error(ctx, http.StatusBadGateway, 50211, "failed to fetch oauth profile")
		return
	}

	user, err := ac.findOrCreateOAuthUser(gu, ctx.ClientIP())
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50001, "failed to create account")
		return
	}

	jwtToken, err := utils.GenerateToken(user.ID, user.Username, tokenDuration)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50002, "failed to issue token")
		return
	}

	utils.Success(ctx, gin.H{"token": jwtToken, "user": sanitizeUserResponse(user)})
}

type googleUser struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

func oauthConfig() *oauth2.Config {
	c := config.Get()
	return &oauth2.Config{
		ClientID:     c.GoogleClientID,
		ClientSecret: c.GoogleClientSecret,
		RedirectURL:  fmt.Sprintf("%s/api/v1/auth/oauth/google/callback", c.OAuthRedirectBase),
		Scopes:       []string{"openid", "profile", "email"},
		Endpoint:     google.Endpoint,
	}
}

func fetchGoogleUser(ctx context.Context, conf *oauth2.Config, token *oauth2.Token) (*googleUser, error) {
	client := conf.Client(ctx, token)
	resp, err := client.Get("https://www.googleapis.com/oauth2/v2/userinfo")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo endpoint returned %d", resp.StatusCode)
	}

	var gu googleUser
	if err := json.NewDecoder(resp.Body).Decode(&gu); err != nil {
		return nil, err
	}
	if gu.ID == "" {
		return nil, errors.New("userinfo response missing subject")
	}
	return &gu, nil
}

func (ac *AuthController) findOrCreateOAuthUser(gu *googleUser, clientIP string) (*models.User, error) {
	var user models.User
	err := ac.DB.Where("provider = ? AND provider_id = ?", "google", gu.ID).First(&user).Error
	if err == nil {
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	username, err := ac.ensureUniqueUsername(sanitizeUsername(gu.Name))
	if err != nil {
		return nil, err
	}

	user = models.User{
		Username:   username,
		Email:      gu.Email,
		Provider:   "google",
		ProviderID: gu.ID,
		AvatarURL:  gu.Picture,
		RegisterIP: clientIP,
	}
	if err := ac.DB.Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (ac *AuthController) ensureUniqueUsername(base string) (string, error) {
	if base == "" {
		base = "user"
	}
	candidate := base
	for i := 0; i < 20; i++ {
		var count int64
		if err := ac.DB.Model(&models.User{}).Where("username = ?", candidate).Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s_%s", base, uuid.NewString()[:8])
	}
	return "", errors.New("could not allocate unique username")
}

func sanitizeUsername(name string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('_')
		}
	}
	s := b.String()
	if len(s) > 32 {
		s = s[:32]
	}
	return s
}

func sanitizeUserResponse(user *models.User) gin.H {
	return gin.H{
		"id":         user.ID,
		"username":   user.Username,
		"email":      user.Email,
		"provider":   user.Provider,
		"avatar_url": user.AvatarURL,
		"signature":  user.Signature,
		"timezone":   user.Timezone,
		"created_at": user.CreatedAt,
	}
}
