package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/ajbunielteam/SysGranTES/internal/model"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

const (
	accessTokenDuration  = 15 * time.Minute
	refreshTokenDuration = 30 * 24 * time.Hour
)

type StudentAccounts interface {
	GetStudent(ctx context.Context, id int) (*model.Student, error)
	GetByAwardNumber(ctx context.Context, awardNumber string) (*model.Student, error)
	TouchLogin(ctx context.Context, id int) error
}

type RefreshTokens interface {
	StoreRefreshToken(ctx context.Context, subject, tokenHash string, expiresAt time.Time) error
	ValidateRefreshToken(ctx context.Context, tokenHash string) (string, error)
	RevokeRefreshToken(ctx context.Context, tokenHash string) error
}

// AdminAccount is the single configured administrator.
type AdminAccount struct {
	ID       int
	Username string
	Password string
}

type AuthService struct {
	students  StudentAccounts
	tokens    RefreshTokens
	admin     AdminAccount
	jwtSecret []byte
	now       func() time.Time
}

func NewAuthService(students StudentAccounts, tokens RefreshTokens, admin AdminAccount, jwtSecret string) *AuthService {
	return &AuthService{
		students:  students,
		tokens:    tokens,
		admin:     admin,
		jwtSecret: []byte(jwtSecret),
		now:       time.Now,
	}
}

func (s *AuthService) AdminLogin(ctx context.Context, req *model.AdminLoginRequest) (*model.AuthResponse, error) {
	userOK := subtle.ConstantTimeCompare([]byte(strings.TrimSpace(req.Username)), []byte(s.admin.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(req.Password), []byte(s.admin.Password)) == 1
	if !userOK || !passOK || s.admin.Password == "" {
		return nil, ErrInvalidCredentials
	}

	admin := model.AsAdmin(s.admin.ID)
	tokens, err := s.generateTokenPair(ctx, admin)
	if err != nil {
		return nil, err
	}
	return &model.AuthResponse{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		Participant:  admin,
	}, nil
}

// StudentLogin signs a student in with the award number and password they
// received on approval.
func (s *AuthService) StudentLogin(ctx context.Context, req *model.StudentLoginRequest) (*model.AuthResponse, error) {
	st, err := s.students.GetByAwardNumber(ctx, strings.TrimSpace(req.AwardNumber))
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(st.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	p := model.AsStudent(st.ID)
	tokens, err := s.generateTokenPair(ctx, p)
	if err != nil {
		return nil, err
	}

	_ = s.students.TouchLogin(ctx, st.ID)

	return &model.AuthResponse{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		Participant:  p,
		Student:      st,
	}, nil
}

func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*model.TokenPair, error) {
	tokenHash := hashToken(refreshToken)

	subject, err := s.tokens.ValidateRefreshToken(ctx, tokenHash)
	if err != nil {
		return nil, ErrInvalidToken
	}
	p, err := model.ParseParticipant(subject)
	if err != nil {
		return nil, ErrInvalidToken
	}

	// Revoke old token
	_ = s.tokens.RevokeRefreshToken(ctx, tokenHash)

	if p.IsStudent() {
		if _, err := s.students.GetStudent(ctx, p.ID); err != nil {
			return nil, ErrInvalidToken
		}
	}
	return s.generateTokenPair(ctx, p)
}

func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	return s.tokens.RevokeRefreshToken(ctx, hashToken(refreshToken))
}

// ValidateAccessToken returns the participant the token was issued to.
func (s *AuthService) ValidateAccessToken(tokenString string) (model.Participant, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return model.Participant{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return model.Participant{}, ErrInvalidToken
	}

	sub, _ := claims["sub"].(string)
	p, err := model.ParseParticipant(sub)
	if err != nil {
		return model.Participant{}, ErrInvalidToken
	}
	return p, nil
}

func (s *AuthService) generateTokenPair(ctx context.Context, p model.Participant) (*model.TokenPair, error) {
	now := s.now()
	accessClaims := jwt.MapClaims{
		"sub":  p.Key(),
		"role": string(p.Role),
		"uid":  strconv.Itoa(p.ID),
		"iat":  now.Unix(),
		"exp":  now.Add(accessTokenDuration).Unix(),
	}
	accessToken := jwt.NewWithClaims(jwt.SigningMethodHS256, accessClaims)
	accessStr, err := accessToken.SignedString(s.jwtSecret)
	if err != nil {
		return nil, errors.Wrap(err, "sign access token")
	}

	refreshBytes := make([]byte, 32)
	if _, err := rand.Read(refreshBytes); err != nil {
		return nil, errors.Wrap(err, "generate refresh token")
	}
	refreshStr := hex.EncodeToString(refreshBytes)

	tokenHash := hashToken(refreshStr)
	expiresAt := now.Add(refreshTokenDuration)
	if err := s.tokens.StoreRefreshToken(ctx, p.Key(), tokenHash, expiresAt); err != nil {
		return nil, errors.Wrap(err, "store refresh token")
	}

	return &model.TokenPair{
		AccessToken:  accessStr,
		RefreshToken: refreshStr,
	}, nil
}

func hashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// HashPassword is used when an approved application becomes a login.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", errors.Wrap(err, "hash password")
	}
	return string(hash), nil
}
