package server

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"bookexchange/internal/app"
)

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, tag := range []string{"json", "form"} {
			name := strings.Split(f.Tag.Get(tag), ",")[0]
			if name != "" && name != "-" {
				return name
			}
		}
		return f.Name
	})
	return v
}

// bind decodes the request into req and runs struct validation. Failures
// come back as *app.ValidationError.
func (s *Server) bind(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		var httpErr *echo.HTTPError
		if errors.As(err, &httpErr) && httpErr.Code == http.StatusRequestEntityTooLarge {
			return err
		}
		return &app.ValidationError{Message: "invalid request body"}
	}
	if err := s.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return &app.ValidationError{Field: verrs[0].Field(), Message: validationMessage(verrs[0])}
		}
		return &app.ValidationError{Message: "invalid request"}
	}
	return nil
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "email":
		return fmt.Sprintf("%s is not a valid email", fe.Field())
	case "max":
		return fmt.Sprintf("%s is too long", fe.Field())
	case "min", "gte", "lte":
		return fmt.Sprintf("%s is out of range", fe.Field())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	case "eqfield":
		return fmt.Sprintf("%s does not match", fe.Field())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}

// formUpload opens the named multipart file. It returns a nil upload when the
// field is absent; the caller must run the returned close func.
func formUpload(c echo.Context, field string) (*app.Upload, func(), error) {
	noop := func() {}
	fh, err := c.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return nil, noop, nil
	}
	if err != nil {
		var httpErr *echo.HTTPError
		if errors.As(err, &httpErr) {
			return nil, noop, err
		}
		return nil, noop, &app.ValidationError{Field: field, Message: "invalid multipart upload"}
	}
	return openUpload(fh)
}

// requireUpload is formUpload for endpoints where the file is mandatory.
func requireUpload(c echo.Context, field string) (*app.Upload, func(), error) {
	up, closeFn, err := formUpload(c, field)
	if err != nil {
		return nil, closeFn, err
	}
	if up == nil {
		return nil, closeFn, &app.ValidationError{Field: field, Message: field + " file is required"}
	}
	return up, closeFn, nil
}

func openUpload(fh *multipart.FileHeader) (*app.Upload, func(), error) {
	f, err := fh.Open()
	if err != nil {
		return nil, func() {}, fmt.Errorf("open upload: %w", err)
	}
	return &app.Upload{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get(echo.HeaderContentType),
		Size:        fh.Size,
		Body:        f,
	}, func() { _ = f.Close() }, nil
}
