package api

import (
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
)

// NonFieldErrors - ключ ошибок, не относящихся к конкретному полю.
const NonFieldErrors = "__all__"

// максимальный размер тела формы.
const maxFormSize = 1 << 20

// Form - описание формы в ответе: значения полей и ошибки.
type Form struct {
	Fields map[string]string   `json:"fields"`
	Errors map[string][]string `json:"errors,omitempty"`
}

func newForm(fields ...string) *Form {
	f := Form{Fields: make(map[string]string, len(fields))}
	for _, name := range fields {
		f.Fields[name] = ""
	}
	return &f
}

// AddError добавляет ошибку к полю.
func (f *Form) AddError(field, msg string) {
	if f.Errors == nil {
		f.Errors = make(map[string][]string)
	}
	f.Errors[field] = append(f.Errors[field], msg)
}

// Valid сообщает, что ошибок нет.
func (f *Form) Valid() bool { return len(f.Errors) == 0 }

// parseForm читает значения полей из тела запроса.
// Принимает application/json и application/x-www-form-urlencoded.
func parseForm(r *http.Request, fields ...string) (*Form, error) {
	f := newForm(fields...)

	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "application/json" {
		var m map[string]string
		if err := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxFormSize)).Decode(&m); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadInput, err)
		}
		for _, name := range fields {
			f.Fields[name] = m[name]
		}
		return f, nil
	}

	r.Body = http.MaxBytesReader(nil, r.Body, maxFormSize)
	if err := r.ParseForm(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadInput, err)
	}
	for _, name := range fields {
		f.Fields[name] = r.PostForm.Get(name)
	}
	return f, nil
}
