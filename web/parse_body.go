package web

import (
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"reflect"
	"strconv"
	"strings"
)

// ErrUnsupportedContentType is returned by ParseBody for media types it
// cannot decode.
var ErrUnsupportedContentType = errors.New("content type not supported")

const maxMultipartMemory = 10 << 20

// ParseBody parses the HTTP request body into dst based on the
// Content-Type header. dst must be a pointer to a struct.
//
// Supported content types:
//   - application/x-www-form-urlencoded, multipart/form-data, text/plain:
//     `form:"fieldname"` struct tags map form fields to struct fields.
//   - application/json: `json` struct tags.
//   - application/xml, text/xml: `xml` struct tags.
//
// Form fields may be strings, signed and unsigned integers, floats, bools
// ("on"/"off", "1"/"0", "yes"/"no", "true"/"false") or slices of those.
// The "required" tag option rejects a request missing the field:
//
//	type LoginForm struct {
//	    SessionID string `form:"sid,required"`
//	    UserID    string `form:"uid"`
//	}
func ParseBody(r *http.Request, dst any) error {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnsupportedContentType, err)
	}

	switch mediaType {
	case "application/x-www-form-urlencoded", "multipart/form-data", "text/plain":
		return parseBodyForm(r, mediaType, dst)
	case "application/json":
		return parseBodyJSON(r, dst)
	case "application/xml", "text/xml":
		return parseBodyXML(r, dst)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedContentType, mediaType)
	}
}

// parseBodyForm maps form values onto the `form` tagged fields of dst.
func parseBodyForm(r *http.Request, mediaType string, dst any) error {
	var err error
	if mediaType == "multipart/form-data" {
		err = r.ParseMultipartForm(maxMultipartMemory)
	} else {
		err = r.ParseForm()
	}
	if err != nil {
		return fmt.Errorf("failed to parse form: %w", err)
	}

	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Pointer || rv.Elem().Kind() != reflect.Struct {
		return errors.New("destination must be a pointer to a struct")
	}

	rv = rv.Elem()
	rt := rv.Type()

	for i := 0; i < rv.NumField(); i++ {
		field := rv.Field(i)
		if !field.CanSet() {
			continue
		}

		formTag := rt.Field(i).Tag.Get("form")
		if formTag == "" || formTag == "-" {
			continue
		}

		fieldName, options, _ := strings.Cut(formTag, ",")
		required := false
		for _, option := range strings.Split(options, ",") {
			if option == "required" {
				required = true
			}
		}

		formValues := r.Form[fieldName]
		if len(formValues) == 0 {
			if required {
				return fmt.Errorf("required field '%s' is missing", fieldName)
			}
			continue
		}

		if err := bindFieldValue(field, formValues); err != nil {
			return fmt.Errorf("failed to bind field '%s': %w", fieldName, err)
		}
	}

	return nil
}

// bindFieldValue converts and assigns form values to a struct field.
func bindFieldValue(field reflect.Value, values []string) error {
	if len(values) == 0 {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(values[0])

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		val, err := strconv.ParseInt(values[0], 10, field.Type().Bits())
		if err != nil {
			return fmt.Errorf("invalid integer value: %s", values[0])
		}
		field.SetInt(val)

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		val, err := strconv.ParseUint(values[0], 10, field.Type().Bits())
		if err != nil {
			return fmt.Errorf("invalid unsigned integer value: %s", values[0])
		}
		field.SetUint(val)

	case reflect.Float32, reflect.Float64:
		val, err := strconv.ParseFloat(values[0], field.Type().Bits())
		if err != nil {
			return fmt.Errorf("invalid float value: %s", values[0])
		}
		field.SetFloat(val)

	case reflect.Bool:
		switch strings.ToLower(values[0]) {
		case "on", "1", "yes", "true":
			field.SetBool(true)
		case "off", "0", "no", "false", "":
			field.SetBool(false)
		default:
			return fmt.Errorf("invalid boolean value: %s", values[0])
		}

	case reflect.Slice:
		slice := reflect.MakeSlice(field.Type(), len(values), len(values))
		for i, value := range values {
			if err := bindFieldValue(slice.Index(i), []string{value}); err != nil {
				return fmt.Errorf("failed to bind slice element at index %d: %w", i, err)
			}
		}
		field.Set(slice)

	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}

	return nil
}

func parseBodyJSON(r *http.Request, dst any) error {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return err
	}
	return json.Unmarshal(body, dst)
}

func parseBodyXML(r *http.Request, dst any) error {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return err
	}
	return xml.Unmarshal(body, dst)
}
