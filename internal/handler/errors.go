package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"freelancehub/internal/apperr"
	"freelancehub/internal/service/auth"
	"freelancehub/pkg/logger"
)

// IdentityKey is the gin context key holding the caller's auth.Identity.
const IdentityKey = "identity"

// CurrentIdentity returns the identity set by the auth middleware.
func CurrentIdentity(c *gin.Context) (auth.Identity, bool) {
	v, ok := c.Get(IdentityKey)
	if !ok {
		return auth.Identity{}, false
	}
	id, ok := v.(auth.Identity)
	return id, ok
}

// mustIdentity 读取当前用户，缺失时直接写 401
func mustIdentity(c *gin.Context) (auth.Identity, bool) {
	id, ok := CurrentIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated", "kind": apperr.KindUnauthorized})
		return auth.Identity{}, false
	}
	return id, true
}

// writeError maps an apperr kind to its status and writes
// {"error": message, "kind": kind, "field": field}.
func writeError(c *gin.Context, log *zap.Logger, err error) {
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		ae = apperr.Internal("internal server error", err)
	}

	if ae.Kind == apperr.KindInternal {
		logger.WithTrace(c.Request.Context(), log).Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
	}

	body := gin.H{"error": ae.Message, "kind": ae.Kind}
	if ae.Field != "" {
		body["field"] = ae.Field
	}
	c.JSON(apperr.HTTPStatus(ae.Kind), body)
}

func pathID(c *gin.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validation(name, "must be a positive integer")
	}
	return id, nil
}

func queryFloat(c *gin.Context, name string) (*float64, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, apperr.Validation(name, "must be a number")
	}
	return &v, nil
}

func queryInt(c *gin.Context, name string) (*int, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, apperr.Validation(name, "must be an integer")
	}
	return &v, nil
}

// queryIDs accepts both ?skills=1&skills=2 and ?skills=1,2.
func queryIDs(c *gin.Context, name string) ([]int64, error) {
	var ids []int64
	for _, raw := range c.QueryArray(name) {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.ParseInt(part, 10, 64)
			if err != nil {
				return nil, apperr.Validation(name, "must be a list of integer ids")
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// badBody 请求体无法解析；JSON 类型不匹配时带上出错的字段
func badBody(c *gin.Context, err error) {
	body := gin.H{"error": "invalid request", "kind": apperr.KindValidation}
	var te *json.UnmarshalTypeError
	if errors.As(err, &te) && te.Field != "" {
		body["error"] = "unexpected " + te.Value + " value"
		body["field"] = te.Field
	}
	c.JSON(http.StatusBadRequest, body)
}
