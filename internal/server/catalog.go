package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

func (s *Server) ListFoods(c *gin.Context) {
	page, err := bindPagination(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	foods, err := s.catalogSvc.ListFoods(c.Request.Context(), page)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, foods)
}

func (s *Server) GetFood(c *gin.Context) {
	id, err := pathInt64(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	food, err := s.catalogSvc.GetFood(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, food)
}

func (s *Server) ListCategories(c *gin.Context) {
	page, err := bindPagination(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	categories, err := s.catalogSvc.ListCategories(c.Request.Context(), page)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, categories)
}

// GetCategory accepts either the numeric id or the slug.
func (s *Server) GetCategory(c *gin.Context) {
	idOrSlug := strings.TrimSpace(c.Param("id"))
	if idOrSlug == "" {
		AbortWithError(c, ErrNotFound)
		return
	}
	category, err := s.catalogSvc.GetCategory(c.Request.Context(), idOrSlug)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, category)
}

func (s *Server) ListNutrients(c *gin.Context) {
	page, err := bindPagination(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	nutrients, err := s.catalogSvc.ListNutrients(c.Request.Context(), page)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, nutrients)
}

func (s *Server) GetNutrient(c *gin.Context) {
	id, err := pathInt64(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	nutrient, err := s.catalogSvc.GetNutrient(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, nutrient)
}
