package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hedgeline/engine/internal/pipeline"
	"github.com/hedgeline/engine/pkg/api"
)

var (
	ErrInvalidJSON = errors.New("invalid JSON request")
	ErrRunFailed   = errors.New("pipeline run failed")
)

func (s *Server) createRun(c *gin.Context) {
	var req api.RunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{
			Error:  fmt.Sprintf("%s: %v", ErrInvalidJSON, err),
			Status: http.StatusBadRequest,
		})
		return
	}

	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{
			Error:  err.Error(),
			Status: http.StatusBadRequest,
		})
		return
	}

	res, err := s.pipeline.Run(c.Request.Context(), &req)
	if err == nil {
		c.JSON(http.StatusOK, res)
		return
	}

	if errors.Is(err, pipeline.ErrUnknownAnalyst) {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{
			Error:  err.Error(),
			Status: http.StatusBadRequest,
		})
		return
	}
	c.JSON(http.StatusInternalServerError, api.ErrorResponse{
		Error:  fmt.Sprintf("%s: %v", ErrRunFailed, err),
		Status: http.StatusInternalServerError,
	})
}
