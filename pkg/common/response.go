package common

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Envelope is the standard API response shape. Successful responses carry
// the resource under its semantic key ("delivery", "payment", ...); error
// responses carry a machine-readable code plus a human message:
//
//	{"success": true, "delivery": {...}, "meta": {...}}
//	{"success": false, "error": "ALREADY_ASSIGNED", "message": "..."}
type Envelope map[string]interface{}

// Meta contains metadata for paginated responses
type Meta struct {
	Limit      int         `json:"limit,omitempty"`
	Offset     int         `json:"offset,omitempty"`
	Total      int64       `json:"total,omitempty"`
	TotalPages int         `json:"total_pages,omitempty"`
	Stats      interface{} `json:"stats,omitempty"`
}

// SuccessResponse sends a successful response with the resource under key.
func SuccessResponse(c *gin.Context, key string, data interface{}) {
	c.JSON(http.StatusOK, Envelope{
		"success": true,
		key:       data,
	})
}

// SuccessResponseWithMeta sends a successful paginated response.
func SuccessResponseWithMeta(c *gin.Context, key string, data interface{}, meta *Meta) {
	c.JSON(http.StatusOK, Envelope{
		"success": true,
		key:       data,
		"meta":    meta,
	})
}

// SuccessEnvelope sends a successful response carrying several resources.
func SuccessEnvelope(c *gin.Context, fields Envelope) {
	body := Envelope{"success": true}
	for k, v := range fields {
		body[k] = v
	}
	c.JSON(http.StatusOK, body)
}

// CreatedResponse sends a created response with the resource under key.
func CreatedResponse(c *gin.Context, key string, data interface{}) {
	c.JSON(http.StatusCreated, Envelope{
		"success": true,
		key:       data,
	})
}

// CreatedEnvelope sends a created response carrying several resources.
func CreatedEnvelope(c *gin.Context, fields Envelope) {
	body := Envelope{"success": true}
	for k, v := range fields {
		body[k] = v
	}
	c.JSON(http.StatusCreated, body)
}

// ErrorResponse sends an error response with a generic code for the status.
func ErrorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, Envelope{
		"success": false,
		"error":   errorCodeForStatus(statusCode),
		"message": message,
	})
}

// ErrorResponseWithCode sends an error response with an explicit code.
func ErrorResponseWithCode(c *gin.Context, statusCode int, errorCode, message string) {
	c.JSON(statusCode, Envelope{
		"success": false,
		"error":   errorCode,
		"message": message,
	})
}

// AppErrorResponse sends an AppError response
func AppErrorResponse(c *gin.Context, err *AppError) {
	code := err.ErrorCode
	if code == "" {
		code = errorCodeForStatus(err.Code)
	}
	c.JSON(err.Code, Envelope{
		"success": false,
		"error":   code,
		"message": err.Message,
	})
}

func errorCodeForStatus(statusCode int) string {
	switch statusCode {
	case http.StatusBadRequest:
		return CodeValidation
	case http.StatusUnauthorized:
		return CodeUnauthorized
	case http.StatusForbidden:
		return CodeForbidden
	case http.StatusNotFound:
		return CodeNotFound
	case http.StatusConflict:
		return CodeConflict
	case http.StatusServiceUnavailable:
		return CodeDependency
	default:
		return CodeInternal
	}
}
