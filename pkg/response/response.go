package response

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"anoa.com/yamdb/internal/authz"
	"anoa.com/yamdb/internal/logging"
	"anoa.com/yamdb/pkg/apperror"
	"anoa.com/yamdb/pkg/ratelimiter"
	"anoa.com/yamdb/pkg/validator"
)

const principalKey = "principal"

// SetPrincipal stores the resolved caller on the request context.
func SetPrincipal(c *gin.Context, p authz.Principal) {
	c.Set(principalKey, p)
}

// GetPrincipal returns the caller, or authz.Anonymous when none was resolved.
func GetPrincipal(c *gin.Context) authz.Principal {
	v, exists := c.Get(principalKey)
	if !exists {
		return authz.Anonymous
	}
	p, ok := v.(authz.Principal)
	if !ok {
		return authz.Anonymous
	}
	return p
}

// ParamID parses a positive numeric route parameter.
func ParamID(c *gin.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid %s: %w", name, apperror.ErrNotFound)
	}
	return uint(id), nil
}

// ResponseError standardized error response
func ResponseError(c *gin.Context, err error) {
	if fields := validator.FieldErrors(err); fields != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "fields": fields})
		return
	}

	var validationErr *apperror.ValidationError
	if errors.As(err, &validationErr) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "fields": validationErr.Fields})
		return
	}

	var rateLimitErr *ratelimiter.RateLimitError
	if errors.As(err, &rateLimitErr) {
		c.Header("Retry-After", fmt.Sprintf("%.0f", rateLimitErr.RetryAfter.Seconds()))
	}

	code := apperror.MapErrorToStatus(err)

	if code == http.StatusInternalServerError {
		logging.Error().Err(err).Str("path", c.Request.URL.Path).Msg("internal error")
		c.JSON(code, gin.H{"error": apperror.ErrInternal.Error()})
		return
	}

	c.JSON(code, gin.H{"error": err.Error()})
}

// BindError reports request decoding failures. Malformed JSON is a 400 too.
func BindError(c *gin.Context, err error) {
	if validator.FieldErrors(err) != nil {
		ResponseError(c, err)
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
