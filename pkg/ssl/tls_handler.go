package ssl

import (
	"strconv"

	"chatbot_server/pkg/util/file"
	"chatbot_server/pkg/zlog"

	"github.com/gin-gonic/gin"
	"github.com/unrolled/secure"
	"go.uber.org/zap"
)

// Enabled 证书与私钥都存在时才启用 HTTPS
func Enabled(certFile, keyFile string) bool {
	return certFile != "" && keyFile != "" && file.Exists(certFile) && file.Exists(keyFile)
}

// TlsHandler 启用 HTTPS 时把 HTTP 请求重定向到 host:port，并补充常用安全响应头
func TlsHandler(host string, port int, certFile, keyFile string) gin.HandlerFunc {
	secureMiddleware := secure.New(secure.Options{
		SSLRedirect:        Enabled(certFile, keyFile),
		SSLHost:            host + ":" + strconv.Itoa(port),
		FrameDeny:          true,
		ContentTypeNosniff: true,
	})
	return func(c *gin.Context) {
		if err := secureMiddleware.Process(c.Writer, c.Request); err != nil {
			// Process 已经写出重定向或错误响应
			zlog.Debug("secure middleware stopped request", zap.Error(err))
			c.Abort()
			return
		}
		// 重定向时 Process 返回 nil 但已写出响应
		if status := c.Writer.Status(); status > 300 && status < 399 {
			c.Abort()
			return
		}
		c.Next()
	}
}
