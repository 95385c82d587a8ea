package extractor

import (
	"errors"
	"unicode/utf8"
)

func decodePlainText(raw []byte) (string, error) {
	if !utf8.Valid(raw) {
		return "", errors.New("text document is not valid UTF-8")
	}
	return string(raw), nil
}
