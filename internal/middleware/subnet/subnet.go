// Package subnet ограничивает служебные маршруты доверенными подсетями.
package subnet

import (
	"net"
	"net/http"
	"strings"

	"github.com/Popolzen/shortlink/internal/model"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ParseSubnets разбирает список CIDR через запятую. Пустые элементы пропускаются.
func ParseSubnets(list string) ([]*net.IPNet, error) {
	var nets []*net.IPNet
	for _, cidr := range strings.Split(list, ",") {
		cidr = strings.TrimSpace(cidr)
		if cidr == "" {
			continue
		}
		_, ipNet, err := net.ParseCIDR(cidr)
		if err != nil {
			return nil, err
		}
		nets = append(nets, ipNet)
	}
	return nets, nil
}

// TrustedSubnetMiddleware пропускает запрос, только если X-Real-IP входит в одну из подсетей.
// Пустой или невалидный список закрывает доступ всем.
//
//	internal := r.Group("/api/internal")
//	internal.Use(subnet.TrustedSubnetMiddleware("10.0.0.0/8,192.168.1.0/24", log))
func TrustedSubnetMiddleware(trustedSubnet string, log *zap.SugaredLogger) gin.HandlerFunc {
	nets, err := ParseSubnets(trustedSubnet)
	if err != nil {
		log.Errorw("ошибка парсинга CIDR", "cidr", trustedSubnet, "error", err)
		nets = nil
	}

	return func(c *gin.Context) {
		if len(nets) == 0 {
			deny(c)
			return
		}

		realIP := c.GetHeader("X-Real-IP")
		ip := net.ParseIP(realIP)
		if ip == nil {
			log.Infow("доступ запрещен: нет или невалидный X-Real-IP", "ip", realIP, "uri", c.Request.RequestURI)
			deny(c)
			return
		}

		for _, n := range nets {
			if n.Contains(ip) {
				c.Next()
				return
			}
		}

		log.Infow("доступ запрещен: IP вне доверенной подсети", "ip", realIP, "subnet", trustedSubnet)
		deny(c)
	}
}

func deny(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusForbidden, model.ErrorResponse{Error: model.ErrForbidden.Error()})
}
