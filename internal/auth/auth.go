// Package auth issues and validates the JWT bearer tokens used by the API
// and provides the privilege gating middleware.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/netgrid/netgrid/internal/auth/permission"
	"github.com/netgrid/netgrid/internal/auth/session"
	"github.com/netgrid/netgrid/internal/domain"
	"github.com/netgrid/netgrid/pkg/log"
	"golang.org/x/crypto/bcrypt"
)

type PersonProvider interface {
	GetByUsername(ctx context.Context, username string) (domain.Person, error)
	GetByID(ctx context.Context, userID int64) (domain.Person, error)
}

type UserAuthClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type Authentication struct {
	persons       PersonProvider
	tokenSecret   string
	tokenLifetime time.Duration
}

func NewAuthentication(persons PersonProvider, tokenSecret string, tokenLifetime time.Duration) *Authentication {
	return &Authentication{persons: persons, tokenSecret: tokenSecret, tokenLifetime: tokenLifetime}
}

// Login checks the password against the stored bcrypt hash and mints a
// bearer token for the user.
func (u *Authentication) Login(ctx context.Context, username string, password string) (string, domain.Person, error) {
	person, errPerson := u.persons.GetByUsername(ctx, username)
	if errPerson != nil {
		// Burn a comparison anyway so failures take the same time whether
		// the username exists or not.
		_ = bcrypt.CompareHashAndPassword([]byte("$2a$10$000000000000000000000uGJBMLcVvoZleXYSpfkmrqF3byyFIGZW"), []byte(password))

		return "", domain.Person{}, domain.ErrAuthentication
	}

	if !person.IsActive {
		return "", domain.Person{}, domain.ErrAuthentication
	}

	if errCompare := bcrypt.CompareHashAndPassword([]byte(person.PasswordHash), []byte(password)); errCompare != nil {
		return "", domain.Person{}, domain.ErrAuthentication
	}

	token, errToken := u.NewUserToken(person)
	if errToken != nil {
		return "", domain.Person{}, errToken
	}

	return token, person, nil
}

func (u *Authentication) NewUserToken(person domain.Person) (string, error) {
	nowTime := time.Now()

	claims := UserAuthClaims{
		Role: person.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "netgrid",
			Subject:   strconv.FormatInt(person.UserID, 10),
			ExpiresAt: jwt.NewNumericDate(nowTime.Add(u.tokenLifetime)),
			IssuedAt:  jwt.NewNumericDate(nowTime),
			NotBefore: jwt.NewNumericDate(nowTime),
		},
	}

	tokenWithClaims := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signedToken, errSigned := tokenWithClaims.SignedString([]byte(u.tokenSecret))
	if errSigned != nil {
		return "", errors.Join(errSigned, domain.ErrSignToken)
	}

	return signedToken, nil
}

func (u *Authentication) userIDFromToken(token string) (int64, error) {
	claims := &UserAuthClaims{}

	tkn, errParseClaims := jwt.ParseWithClaims(token, claims, func(_ *jwt.Token) (any, error) {
		return []byte(u.tokenSecret), nil
	})
	if errParseClaims != nil {
		if errors.Is(errParseClaims, jwt.ErrTokenExpired) {
			return 0, domain.ErrExpired
		}

		return 0, domain.ErrAuthentication
	}

	if !tkn.Valid {
		return 0, domain.ErrAuthentication
	}

	userID, errParse := strconv.ParseInt(claims.Subject, 10, 64)
	if errParse != nil || userID <= 0 {
		return 0, domain.ErrAuthentication
	}

	return userID, nil
}

func tokenFromHeader(ctx *gin.Context) (string, error) {
	hdr := ctx.GetHeader("Authorization")
	if hdr == "" {
		return "", domain.ErrAuthHeader
	}

	pcs := strings.Split(hdr, " ")
	if len(pcs) != 2 || !strings.EqualFold(pcs[0], "Bearer") || pcs[1] == "" {
		return "", domain.ErrMalformedAuthHeader
	}

	return pcs[1], nil
}

// Middleware resolves the bearer token into a profile and rejects requests
// below the required privilege level.
func (u *Authentication) Middleware(level permission.Privilege) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		token, errToken := tokenFromHeader(ctx)
		if errToken != nil {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"message": "authentication required", "code": "unauthenticated", "success": false,
			})

			return
		}

		userID, errFromToken := u.userIDFromToken(token)
		if errFromToken != nil {
			status := http.StatusUnauthorized
			ctx.AbortWithStatusJSON(status, gin.H{
				"message": errFromToken.Error(), "code": "unauthenticated", "success": false,
			})

			return
		}

		person, errGetPerson := u.persons.GetByID(ctx, userID)
		if errGetPerson != nil || !person.IsActive {
			if errGetPerson != nil {
				slog.Error("Failed to load person during auth", log.ErrAttr(errGetPerson))
			}

			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"message": "authentication required", "code": "unauthenticated", "success": false,
			})

			return
		}

		profile := domain.Profile{
			UserID:     person.UserID,
			Username:   person.Username,
			Permission: permission.FromRole(person.Role),
			RemoteAddr: ctx.ClientIP(),
			UserAgent:  ctx.Request.UserAgent(),
		}

		if profile.Permission < level {
			ctx.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"message": "permission denied", "code": "forbidden", "success": false,
			})

			return
		}

		ctx.Set(session.CtxKeyProfile, profile)
		ctx.Next()
	}
}

// HashPassword produces the bcrypt hash stored for a user.
func HashPassword(password string) (string, error) {
	hash, errHash := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if errHash != nil {
		return "", errors.Join(errHash, domain.ErrInternal)
	}

	return string(hash), nil
}
