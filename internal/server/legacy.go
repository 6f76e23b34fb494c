package server

import (
	"github.com/gin-gonic/gin"
)

// registerLegacyRoutes answers the retired endpoints of the previous engine
// generation. They return 410 Gone unconditionally; the replacement routes
// live under registerAPIRoutes.
func (s *Server) registerLegacyRoutes() {
	v1 := s.engine.Group("/v1")

	v1.POST("/links", s.LegacyGone)
	v1.POST("/placements/batch", s.LegacyGone)
}

func (s *Server) LegacyGone(c *gin.Context) {
	AbortWithError(c, ErrGone)
}
