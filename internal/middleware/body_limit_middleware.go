package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	bodyTooLargeMessage = "Request entity too large"
	fileTooLargeMessage = "File size limit has been reached"
)

// BodyLimit ограничивает размер тела запроса значением bodyLimit, а для multipart/form-data
// дополнительно размер каждого файла значением fileLimit. Превышение завершает запрос с 413.
func BodyLimit(bodyLimit, fileLimit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body == nil || c.Request.Body == http.NoBody {
			c.Next()
			return
		}
		if c.Request.ContentLength > bodyLimit {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"message": bodyTooLargeMessage})
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, bodyLimit)

		if c.ContentType() != gin.MIMEMultipartPOSTForm {
			c.Next()
			return
		}

		// Вся форма умещается в bodyLimit, поэтому файлы остаются в памяти и не пишутся во временные файлы
		if err := c.Request.ParseMultipartForm(bodyLimit); err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"message": bodyTooLargeMessage})
				return
			}
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "Malformed multipart body"})
			return
		}

		for _, headers := range c.Request.MultipartForm.File {
			for _, fh := range headers {
				if fh.Size > fileLimit {
					_ = c.Request.MultipartForm.RemoveAll()
					c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"message": fileTooLargeMessage})
					return
				}
			}
		}
		c.Next()
	}
}
