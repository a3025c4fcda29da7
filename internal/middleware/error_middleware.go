package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/ecommerce-api/internal/config"
)

const (
	internalErrorMessage = "Something went wrong!"
	internalErrorDetail  = "Internal server error"
)

// ErrorHandler завершающий обработчик ошибок: перехватывает панику и ошибки из c.Errors
// и отвечает 500. Текст ошибки отдается клиенту только в режиме development.
// Должен стоять внутри middleware, которые подменяют c.Writer и пишут в него при выходе (gzip),
// иначе к моменту проверки ответ уже отправлен со статусом 200.
func ErrorHandler(mode config.Mode, logger *zap.Logger) gin.HandlerFunc {
	logger = logger.Named("http")
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			err, ok := rec.(error)
			if !ok {
				err = fmt.Errorf("%v", rec)
			}
			logger.Error("Panic recovered",
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path),
				zap.Error(err),
				zap.Stack("stack"),
			)
			respondInternalError(c, mode, err)
		}()

		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err
		logger.Error("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Error(err),
		)
		respondInternalError(c, mode, err)
	}
}

func respondInternalError(c *gin.Context, mode config.Mode, err error) {
	if c.Writer.Written() {
		c.Abort()
		return
	}
	detail := internalErrorDetail
	if mode.IsDevelopment() && err != nil {
		detail = err.Error()
	}
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
		"message": internalErrorMessage,
		"error":   detail,
	})
}

// NotFound отвечает на запросы к несуществующим маршрутам
func NotFound() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"message": "Route not found"})
	}
}
