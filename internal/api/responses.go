package api

import (
	"net/http"

	"market-service/internal/apperr"
	"market-service/internal/util"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// respond writes the success envelope with payload merged in
func respond(c *gin.Context, status int, payload gin.H) {
	body := gin.H{"success": true}
	for k, v := range payload {
		body[k] = v
	}
	c.JSON(status, body)
}

// respondError maps err to its HTTP status and the failure envelope.
// Internal details are logged, never returned.
func respondError(c *gin.Context, err error) {
	typed := apperr.As(err)
	if typed == nil {
		typed = apperr.Internal(err, "unexpected error")
	}

	meta := apperr.MetadataFor(typed.Code())
	msg := meta.PublicMessage
	if meta.ShowMessage && typed.Message() != "" {
		msg = typed.Message()
	}

	dump := apperr.DumpOf(err)
	fields := []zap.Field{
		zap.String("request_id", c.GetString(requestIDKey)),
		zap.String("method", c.Request.Method),
		zap.String("path", c.FullPath()),
		zap.Int("status", meta.HTTPStatus),
		zap.String("error", dump.TopMessage),
		zap.String("error_code", string(dump.Code)),
		zap.Strings("error_chain", dump.Chain),
	}
	if dump.PGCode != "" {
		fields = append(fields,
			zap.String("pg_code", dump.PGCode),
			zap.String("pg_constraint", dump.PGConstraint),
			zap.String("pg_table", dump.PGTable),
			zap.String("pg_detail", dump.PGDetail))
	}

	logger := util.GetLogger()
	if meta.HTTPStatus >= http.StatusInternalServerError {
		logger.Error("Request failed", fields...)
	} else {
		logger.Info("Request rejected", fields...)
	}

	c.AbortWithStatusJSON(meta.HTTPStatus, gin.H{
		"success": false,
		"code":    string(typed.Code()),
		"message": msg,
	})
}
