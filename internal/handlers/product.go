// internal/handlers/product.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/javajoker/marketflow/internal/i18n"
	"github.com/javajoker/marketflow/internal/services"
	"github.com/javajoker/marketflow/internal/utils"
)

type ProductHandler struct {
	productService *services.ProductService
}

func NewProductHandler(productService *services.ProductService) *ProductHandler {
	return &ProductHandler{
		productService: productService,
	}
}

// GET /products
func (h *ProductHandler) GetProducts(c *gin.Context) {
	params := utils.GetPaginationParams(c)

	products, err := h.productService.Search(c.Request.Context(), params.Search)
	if err != nil {
		respondError(c, err)
		return
	}

	if !params.Enabled {
		utils.SuccessResponse(c, products)
		return
	}

	start, end := utils.PageBounds(len(products), params)
	result := utils.CreatePaginationResult(products[start:end], int64(len(products)), params)
	utils.PaginatedResponse(c, result)
}

// DELETE /products/:id?confirm=true
func (h *ProductHandler) DeleteProduct(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	identity, ok := utils.GetIdentityFromContext(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	confirmed := c.Query("confirm") == "true"
	products, err := h.productService.Delete(c.Request.Context(), c.Param("id"), confirmed, identity)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message":  i18n.T(lang, i18n.KeyProductDeleted),
		"products": products,
	})
}
