package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Location names the part of the request that failed validation.
type Location string

const (
	InBody  Location = "body"
	InQuery Location = "query"
	InPath  Location = "id"
)

// BindJSON decodes the body into dst and reports a 400 on failure. It returns false when the
// request has already been answered.
func BindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		BadRequest(c, DescribeBindError(err, InBody))
		return false
	}
	return true
}

// BindQuery binds query parameters into dst and reports a 400 on failure.
func BindQuery(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindQuery(dst); err != nil {
		BadRequest(c, DescribeBindError(err, InQuery))
		return false
	}
	return true
}

// PathID reads the :id path parameter and reports a 400 unless it is a uuid.
func PathID(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		BadRequest(c, fmt.Sprintf("Issue with %s: must be a valid id", InPath))
		return "", false
	}
	return id, true
}

// DescribeBindError renders binding and validation failures as one readable line.
func DescribeBindError(err error, loc Location) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		issues := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			issues = append(issues, describeField(fe))
		}
		return fmt.Sprintf("Issue with request %s: %s", loc, strings.Join(issues, "; "))
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case loc == InBody && (errors.Is(err, io.EOF) || errors.As(err, &syntaxErr)):
		return "A JSON body must be supplied"
	case errors.As(err, &typeErr):
		return fmt.Sprintf("Issue with request %s: %s must be of type %s", loc, typeErr.Field, typeErr.Type.String())
	}
	return fmt.Sprintf("Issue with request %s: %s", loc, err.Error())
}

func describeField(fe validator.FieldError) string {
	field := jsonFieldName(fe)
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	case "uuid", "uuid4":
		return fmt.Sprintf("%s must be a valid id", field)
	case "len":
		return fmt.Sprintf("%s must have length %s", field, fe.Param())
	case "numeric":
		return fmt.Sprintf("%s must be numeric", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	}
	return fmt.Sprintf("%s failed %q", field, fe.Tag())
}

// jsonFieldName lower-cases the first rune so messages match the wire names.
func jsonFieldName(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		ns = ns[i+1:]
	}
	if ns == "" {
		ns = fe.Field()
	}
	parts := strings.Split(ns, ".")
	for i, p := range parts {
		if p != "" {
			parts[i] = strings.ToLower(p[:1]) + p[1:]
		}
	}
	return strings.Join(parts, ".")
}
