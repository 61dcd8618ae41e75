// Package session exposes the authenticated profile stored on the request
// context by the auth middleware.
package session

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/netgrid/netgrid/internal/domain"
)

const CtxKeyProfile = "user_profile"

var ErrNotLoggedIn = errors.New("not logged in")

// CurrentProfile returns the profile the auth middleware attached to the
// request, or false when the request is unauthenticated.
func CurrentProfile(ctx *gin.Context) (domain.Profile, bool) {
	maybeProfile, found := ctx.Get(CtxKeyProfile)
	if !found {
		return domain.Profile{}, false
	}

	profile, ok := maybeProfile.(domain.Profile)

	return profile, ok
}
