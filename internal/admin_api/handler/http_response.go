package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sendbulk-reconciler/internal/admin_api/middleware"
)

// Error codes of the response envelope
const (
	CodeBadRequest          = "BAD_REQUEST"
	CodeValidationFailed    = "VALIDATION_FAILED"
	CodeNotFound            = "NOT_FOUND"
	CodeConflict            = "CONFLICT"
	CodeInsufficientCredit  = "INSUFFICIENT_CREDIT"
	CodeServiceUnavailable  = "SERVICE_UNAVAILABLE"
	CodeInternalServerError = "INTERNAL_SERVER_ERROR"
)

// Response is the envelope of every API response
type Response struct {
	Data          interface{} `json:"data,omitempty"`
	Error         *ErrorInfo  `json:"error,omitempty"`
	CorrelationID string      `json:"correlation_id,omitempty"`
	Meta          *MetaInfo   `json:"meta,omitempty"`
}

type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// MetaInfo describes the page of a list response
type MetaInfo struct {
	Page       int   `json:"page"`
	PerPage    int   `json:"per_page"`
	TotalPages int   `json:"total_pages"`
	TotalItems int64 `json:"total_items"`
}

func newMetaInfo(page, perPage int, totalItems int64) *MetaInfo {
	totalPages := int(totalItems / int64(perPage))
	if totalItems%int64(perPage) > 0 {
		totalPages++
	}
	return &MetaInfo{
		Page:       page,
		PerPage:    perPage,
		TotalPages: totalPages,
		TotalItems: totalItems,
	}
}

func respond(c *gin.Context, statusCode int, response *Response) {
	response.CorrelationID = middleware.GetCorrelationID(c)
	c.JSON(statusCode, response)
}

// RespondWithData sends data in the envelope
func RespondWithData(c *gin.Context, statusCode int, data interface{}) {
	respond(c, statusCode, &Response{Data: data})
}

// RespondWithError sends an error in the envelope
func RespondWithError(c *gin.Context, statusCode int, code, message string) {
	respond(c, statusCode, &Response{Error: &ErrorInfo{Code: code, Message: message}})
}

// RespondWithPaginatedData sends one page of a list with its meta block
func RespondWithPaginatedData(c *gin.Context, data interface{}, page, perPage int, totalItems int64) {
	respond(c, http.StatusOK, &Response{Data: data, Meta: newMetaInfo(page, perPage, totalItems)})
}

func RespondOK(c *gin.Context, data interface{}) {
	RespondWithData(c, http.StatusOK, data)
}

func RespondCreated(c *gin.Context, data interface{}) {
	RespondWithData(c, http.StatusCreated, data)
}

func RespondAccepted(c *gin.Context, data interface{}) {
	RespondWithData(c, http.StatusAccepted, data)
}

func RespondBadRequest(c *gin.Context, message string) {
	RespondWithError(c, http.StatusBadRequest, CodeBadRequest, message)
}

// RespondValidationFailed reports input that parsed but broke a business rule
func RespondValidationFailed(c *gin.Context, message string) {
	RespondWithError(c, http.StatusBadRequest, CodeValidationFailed, message)
}

func RespondNotFound(c *gin.Context, message string) {
	if message == "" {
		message = "Resource not found"
	}
	RespondWithError(c, http.StatusNotFound, CodeNotFound, message)
}

func RespondConflict(c *gin.Context, message string) {
	RespondWithError(c, http.StatusConflict, CodeConflict, message)
}

func RespondInsufficientCredit(c *gin.Context) {
	RespondWithError(c, http.StatusUnprocessableEntity, CodeInsufficientCredit, "Insufficient credit")
}

func RespondServiceUnavailable(c *gin.Context, message string) {
	RespondWithError(c, http.StatusServiceUnavailable, CodeServiceUnavailable, message)
}

func RespondInternalError(c *gin.Context) {
	RespondWithError(c, http.StatusInternalServerError, CodeInternalServerError, "An internal server error occurred")
}
