package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/ecommerce-api/pkg/database"
)

// isoMillis формат времени в ответах служебных маршрутов
const isoMillis = "2006-01-02T15:04:05.000Z07:00"

var redactedHeaders = map[string]struct{}{
	"authorization": {},
	"cookie":        {},
}

// StateReporter сообщает состояние подключения к хранилищу
type StateReporter interface {
	State() database.State
}

// HealthHandler служебные маршруты: health check и диагностика CORS
type HealthHandler struct {
	db  StateReporter
	now func() time.Time
}

// NewHealthHandler создает обработчик служебных маршрутов
func NewHealthHandler(db StateReporter) *HealthHandler {
	return &HealthHandler{db: db, now: time.Now}
}

// RegisterRoutes регистрирует маршруты под /api
func (h *HealthHandler) RegisterRoutes(group *gin.RouterGroup) {
	group.GET("/health", h.Health)
	group.GET("/debug/cors", h.DebugCORS)
}

// Health отвечает 200, пока процесс жив. Состояние БД только сообщается и на статус не влияет.
func (h *HealthHandler) Health(c *gin.Context) {
	dbState := database.StateDisconnected.String()
	if h.db != nil {
		dbState = h.db.State().String()
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    "OK",
		"message":   "Server is running",
		"timestamp": h.timestamp(),
		"cors":      "enabled",
		"database":  dbState,
	})
}

// DebugCORS возвращает origin и заголовки запроса; учетные данные скрываются
func (h *HealthHandler) DebugCORS(c *gin.Context) {
	headers := make(map[string]string, len(c.Request.Header)+1)
	for name, values := range c.Request.Header {
		key := strings.ToLower(name)
		if _, ok := redactedHeaders[key]; ok {
			headers[key] = "[redacted]"
			continue
		}
		headers[key] = strings.Join(values, ", ")
	}
	if c.Request.Host != "" {
		headers["host"] = c.Request.Host
	}

	c.JSON(http.StatusOK, gin.H{
		"message":   "CORS is working!",
		"origin":    c.GetHeader("Origin"),
		"headers":   headers,
		"timestamp": h.timestamp(),
	})
}

func (h *HealthHandler) timestamp() string {
	return h.now().UTC().Format(isoMillis)
}
