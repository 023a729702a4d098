package http

import (
	"errors"
	"net/http"
	"reflect"
	"strings"

	domain "github.com/aq2208/gorder-store/internal/entity"
	"github.com/aq2208/gorder-store/internal/logging"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var statusByKind = map[string]int{
	"validation_failed":   http.StatusBadRequest,
	"product_unavailable": http.StatusBadRequest,
	"insufficient_stock":  http.StatusConflict,
	"invalid_transition":  http.StatusConflict,
	"not_found":           http.StatusNotFound,
	"forbidden":           http.StatusForbidden,
	"unauthenticated":     http.StatusUnauthorized,
	"conflict":            http.StatusConflict,
}

// writeError renders err as {"error": kind, "message": ...} plus kind-specific
// details. Internal errors are logged and reported generically.
func writeError(c *gin.Context, err error) {
	kind := domain.Kind(err)
	status, ok := statusByKind[kind]
	if !ok {
		logging.From(c).Error("request failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal", "message": "internal server error"})
		return
	}

	body := gin.H{"error": kind, "message": err.Error()}
	var (
		ve *domain.ValidationError
		se *domain.StockError
		ue *domain.UnavailableError
	)
	switch {
	case errors.As(err, &ve):
		body["message"] = "validation failed"
		body["fields"] = ve.Fields
	case errors.As(err, &se):
		body["productId"] = se.ProductID
		body["available"] = se.Available
	case errors.As(err, &ue):
		body["productId"] = ue.ProductID
	}
	c.AbortWithStatusJSON(status, body)
}

// bindError turns a gin binding failure into a validation error.
func bindError(err error) error {
	v := &domain.ValidationError{}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		v.Add("request", "is malformed")
		return v
	}
	for _, fe := range verrs {
		v.Add(fieldPath(fe.Namespace()), tagMessage(fe))
	}
	return v
}

// fieldPath drops the request struct name: "tokenReq.email" -> "email".
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func tagMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min", "gte":
		return "must be at least " + fe.Param()
	case "max", "lte":
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of " + strings.ReplaceAll(fe.Param(), " ", ", ")
	default:
		return "is invalid"
	}
}

// useJSONFieldNames makes validator report fields by their json (or form) names.
func useJSONFieldNames() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, tag := range []string{"json", "form"} {
			name, _, _ := strings.Cut(f.Tag.Get(tag), ",")
			if name == "-" {
				return ""
			}
			if name != "" {
				return name
			}
		}
		return f.Name
	})
}
