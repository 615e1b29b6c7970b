package middleware

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"componentlab/api/tracking"
)

// RegisterValidators installs the custom rules on gin's binding validator and
// makes field errors report JSON names.
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return fmt.Errorf("unexpected binding validator engine %T", binding.Validator.Engine())
	}
	v.RegisterTagNameFunc(jsonFieldName)
	return v.RegisterValidation("notblank", validateNotBlank)
}

func jsonFieldName(f reflect.StructField) string {
	name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	if name == "-" || name == "" {
		return f.Name
	}
	return name
}

func validateNotBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

var fieldMessages = map[string]string{
	"TrackRequest.nombre.notblank":      "El nombre del componente es requerido",
	"TrackRequest.accion.notblank":      "La acción es requerida",
	"TrackRequest.tipo_usuario.oneof":   `tipo_usuario debe ser "anonymous" o "registered"`,
	"TrackRequest.usuario.uuid":         "ID de usuario inválido",
	"RegisterRequest.nombre.notblank":   "El nombre es requerido",
	"RegisterRequest.nombre.min":        "El nombre debe tener al menos 2 caracteres",
	"RegisterRequest.email.required":    "El email es requerido",
	"RegisterRequest.email.email":       "Email inválido",
	"RegisterRequest.password.required": "La contraseña es requerida",
	"RegisterRequest.password.min":      "La contraseña debe tener al menos 6 caracteres",
	"LoginRequest.email.required":       "El email es requerido",
	"LoginRequest.email.email":          "Email inválido",
	"LoginRequest.password.required":    "La contraseña es requerida",
}

// FieldErrors converts binding validation failures into the API's field error
// list. It returns nil when err is not a validation failure.
func FieldErrors(err error) []tracking.FieldError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := make([]tracking.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		msg, ok := fieldMessages[fe.Namespace()+"."+fe.Tag()]
		if !ok {
			msg = genericMessage(fe)
		}
		out = append(out, tracking.FieldError{Field: fe.Field(), Message: msg})
	}
	return out
}

func genericMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "notblank":
		return "Este campo es requerido"
	case "min":
		return "Valor demasiado corto"
	case "max":
		return "Valor demasiado largo"
	default:
		return "Valor inválido"
	}
}
