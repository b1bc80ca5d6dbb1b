package kserde

import (
	"errors"
	"unicode/utf8"
)

var ErrInvalidProgram = errors.New("program is not valid UTF-8")

// ProgramSerializer encodes emitted source text as is.
var ProgramSerializer Serializer[string] = func(code string) ([]byte, error) {
	return []byte(code), nil
}

var ProgramDeserializer Deserializer[string] = func(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", ErrInvalidProgram
	}
	return string(data), nil
}

// Program is the serde for emitted programs.
var Program = Serde[string]{
	Serializer:   ProgramSerializer,
	Deserializer: ProgramDeserializer,
}
