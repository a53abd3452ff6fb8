// Package response renders the uniform API envelope. Every body,
// success or failure, has the same {success, message, data, meta?}
// shape so clients need a single parsing path.
package response

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

type Envelope struct {
	Success bool    `json:"success"`
	Message *string `json:"message"`
	Data    any     `json:"data"`
	Meta    any     `json:"meta,omitempty"`
}

// OK writes a success envelope.
func OK(c *gin.Context, status int, message string, data any) {
	c.JSON(status, Envelope{Success: true, Message: msgPtr(message), Data: data})
}

// Fail writes a failure envelope with a null data field.
func Fail(c *gin.Context, status int, message string) {
	c.JSON(status, Envelope{Success: false, Message: msgPtr(message)})
}

// ValidationFailed writes a 422 envelope carrying field-level messages
// in data, e.g. {"title": ["The title field is required."]}.
func ValidationFailed(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make(map[string][]string, len(verrs))
		for _, fe := range verrs {
			name := strings.ToLower(fe.Field())
			fields[name] = append(fields[name], fieldMessage(name, fe))
		}
		c.JSON(http.StatusUnprocessableEntity, Envelope{
			Success: false,
			Message: msgPtr("The given data was invalid."),
			Data:    fields,
		})
		return
	}
	Fail(c, http.StatusUnprocessableEntity, "The given data was invalid.")
}

func fieldMessage(name string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("The %s field is required.", name)
	case "email":
		return fmt.Sprintf("The %s must be a valid email address.", name)
	case "max":
		return fmt.Sprintf("The %s may not be greater than %s characters.", name, fe.Param())
	default:
		return fmt.Sprintf("The %s field is invalid.", name)
	}
}

func msgPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
