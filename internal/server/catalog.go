package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hedgeline/engine/internal/llm"
	"github.com/hedgeline/engine/pkg/api"
)

func (s *Server) listAnalysts(c *gin.Context) {
	analysts := s.registry.List()
	c.JSON(http.StatusOK, api.AnalystsListResponse{
		Analysts: analysts,
		Count:    len(analysts),
	})
}

func (s *Server) listModels(c *gin.Context) {
	c.JSON(http.StatusOK, api.ModelsListResponse{
		Models:       llm.Models(),
		OllamaModels: llm.OllamaModels(),
	})
}
