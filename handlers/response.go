package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"componentlab/api/middleware"
	"componentlab/api/tracking"
)

const validationMessage = "Errores de validación"

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"success": false, "message": message})
}

func respondValidation(c *gin.Context, fields []tracking.FieldError) {
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"message": validationMessage,
		"errors":  fields,
	})
}

// respondBindError answers a failed ShouldBindJSON: field errors when the body
// decoded but broke a rule, a plain 400 when it did not decode at all.
func respondBindError(c *gin.Context, err error) {
	if fields := middleware.FieldErrors(err); len(fields) > 0 {
		respondValidation(c, fields)
		return
	}
	respondError(c, http.StatusBadRequest, "Cuerpo de la solicitud inválido")
}
