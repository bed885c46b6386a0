package handler

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tclass-api/internal/middleware"
	"github.com/noah-isme/tclass-api/internal/models"
	appErrors "github.com/noah-isme/tclass-api/pkg/errors"
	"github.com/noah-isme/tclass-api/pkg/response"
)

// requireClaims writes 401 and returns false when the request is anonymous.
func requireClaims(c *gin.Context) (*models.JWTClaims, bool) {
	claims := middleware.Claims(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthenticated)
		return nil, false
	}
	return claims, true
}

// pageParams reads page and per_page (page_size is accepted as an alias).
func pageParams(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	raw := c.Query("per_page")
	if raw == "" {
		raw = c.Query("page_size")
	}
	size, _ := strconv.Atoi(raw)
	return models.NormalizePage(page, size)
}

func queryBool(c *gin.Context, key string) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(c.Query(key)))
	return err == nil && v
}

func requestMeta(c *gin.Context) models.RequestMeta {
	return models.RequestMeta{IP: c.ClientIP(), UserAgent: c.GetHeader("User-Agent")}
}

func bindJSON(c *gin.Context, dest interface{}, message string) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.Validation(err, message))
		return false
	}
	return true
}
