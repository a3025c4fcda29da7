package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/yourusername/ecommerce-api/internal/config"
)

var (
	productionMethods  = []string{"GET", "POST", "PUT", "DELETE"}
	productionHeaders  = []string{"Content-Type", "Authorization"}
	developmentMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	developmentHeaders = []string{"Content-Type", "Authorization", "X-Requested-With"}
)

// CORSPolicy выбирается один раз при старте и не меняется во время работы
type CORSPolicy struct {
	// AllowedOrigin единственный разрешенный origin; "*" означает любой (режим development)
	AllowedOrigin    string
	AllowedMethods   []string
	AllowedHeaders   []string
	AllowCredentials bool
	MaxAge           time.Duration
}

// NewCORSPolicy возвращает политику для режима окружения: в production разрешен только frontendURL,
// в остальных режимах любой origin.
func NewCORSPolicy(mode config.Mode, frontendURL string) CORSPolicy {
	if mode.IsProduction() {
		return CORSPolicy{
			AllowedOrigin:    strings.TrimRight(frontendURL, "/"),
			AllowedMethods:   productionMethods,
			AllowedHeaders:   productionHeaders,
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}
	}
	return CORSPolicy{
		AllowedOrigin:    "*",
		AllowedMethods:   developmentMethods,
		AllowedHeaders:   developmentHeaders,
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
}

// Wildcard сообщает, разрешен ли любой origin
func (p CORSPolicy) Wildcard() bool {
	return p.AllowedOrigin == "*"
}

// Allows проверяет origin запроса
func (p CORSPolicy) Allows(origin string) bool {
	return p.Wildcard() || origin == p.AllowedOrigin
}

func (p CORSPolicy) libraryConfig() cors.Config {
	return cors.Config{
		// Функция вместо AllowOrigins: credentials требуют отражать конкретный origin вместо "*"
		AllowOriginFunc:           p.Allows,
		AllowMethods:              p.AllowedMethods,
		AllowHeaders:              p.AllowedHeaders,
		AllowCredentials:          p.AllowCredentials,
		MaxAge:                    p.MaxAge,
		OptionsResponseStatusCode: http.StatusOK,
	}
}

// CORS применяет политику. Любой OPTIONS-запрос завершается здесь со статусом 200,
// до обработчиков маршрутов.
func CORS(policy CORSPolicy) gin.HandlerFunc {
	handler := cors.New(policy.libraryConfig())
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		crossOrigin := origin != "" && !sameOrigin(c.Request, origin)

		if crossOrigin && policy.Allows(origin) {
			handler(c)
			if c.Request.Method == http.MethodOptions && !c.IsAborted() {
				c.AbortWithStatus(http.StatusOK)
			}
			return
		}

		policy.writeHeaders(c, origin)
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
		}
	}
}

// writeHeaders выставляет заголовки политики для запросов, которые не обработала библиотека:
// без Origin, same-origin и с чужим origin. Чужой origin не отражается.
func (p CORSPolicy) writeHeaders(c *gin.Context, origin string) {
	allowOrigin := p.AllowedOrigin
	if p.Wildcard() && origin != "" {
		allowOrigin = origin
	}
	h := c.Writer.Header()
	h.Add("Vary", "Origin")
	h.Set("Access-Control-Allow-Origin", allowOrigin)
	if p.AllowCredentials {
		h.Set("Access-Control-Allow-Credentials", "true")
	}
	if c.Request.Method == http.MethodOptions {
		h.Set("Access-Control-Allow-Methods", strings.Join(p.AllowedMethods, ","))
		h.Set("Access-Control-Allow-Headers", strings.Join(p.AllowedHeaders, ","))
	}
}

func sameOrigin(r *http.Request, origin string) bool {
	return origin == "http://"+r.Host || origin == "https://"+r.Host
}
