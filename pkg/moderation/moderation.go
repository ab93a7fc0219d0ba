// пакет moderation проверяет текст комментариев
// на содержание запрещенных слов.
package moderation

import (
	"fmt"
	"strings"

	strip "github.com/grokify/html-strip-tags-go"
)

// Field - имя поля формы комментария.
const Field = "text"

// сообщения об ошибках валидации.
const (
	Warning  = "Не ругайтесь!"
	Required = "Обязательное поле."
)

// BadWords - запрещенные слова по умолчанию.
var BadWords = []string{"редиска", "негодяй"}

// ValidationError - ошибка валидации поля формы.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Filter проверяет текст по списку запрещенных слов
// без учета регистра.
type Filter struct {
	words []string
}

// New возвращает [*Filter]. Без аргументов используются [BadWords].
func New(words ...string) *Filter {
	if len(words) == 0 {
		words = BadWords
	}
	f := Filter{words: make([]string, 0, len(words))}
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" {
			continue
		}
		f.words = append(f.words, w)
	}
	return &f
}

// Parse разбирает список слов, разделенных запятыми,
// например значение переменной окружения.
func Parse(s string) *Filter {
	return New(strings.Split(s, ",")...)
}

// Words возвращает копию списка запрещенных слов.
func (f *Filter) Words() []string {
	return append([]string(nil), f.words...)
}

// Banned проверяет, содержит ли текст запрещенные слова.
// Текст проверяется как есть и без html-тегов, чтобы
// слово, разбитое тегами, тоже находилось.
func (f *Filter) Banned(text string) bool {
	return f.contains(text) || f.contains(Clean(text))
}

func (f *Filter) contains(text string) bool {
	text = strings.ToLower(text)
	for i := range f.words {
		if strings.Contains(text, f.words[i]) {
			return true
		}
	}
	return false
}

// Validate проверяет текст и возвращает его без пробелов по краям.
// Сам текст не меняется. При ошибке возвращает [*ValidationError].
func (f *Filter) Validate(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", &ValidationError{Field: Field, Message: Required}
	}
	if f.Banned(text) {
		return "", &ValidationError{Field: Field, Message: Warning}
	}
	return text, nil
}

// Clean удаляет html-теги и пробелы по краям.
func Clean(text string) string {
	return strings.TrimSpace(strip.StripTags(text))
}
