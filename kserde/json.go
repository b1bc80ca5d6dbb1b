package kserde

import (
	"encoding/json"

	"github.com/birdayz/xodc/kproject"
)

func JSONSerializer[T any]() Serializer[T] {
	return func(t T) ([]byte, error) {
		return json.Marshal(t)
	}
}

func JSONDeserializer[T any]() Deserializer[T] {
	return func(b []byte) (T, error) {
		var deserialized T
		if err := json.Unmarshal(b, &deserialized); err != nil {
			return *new(T), err
		}
		return deserialized, nil
	}
}

func JSON[T any]() Serde[T] {
	return Serde[T]{
		Serializer:   JSONSerializer[T](),
		Deserializer: JSONDeserializer[T](),
	}
}

// ProjectDeserializer decodes and validates a JSON project. Pin literals
// keep their original number text.
var ProjectDeserializer Deserializer[*kproject.Project] = kproject.Parse

// ProjectJSON is the serde for projects in their editor JSON form.
var ProjectJSON = Serde[*kproject.Project]{
	Serializer:   JSONSerializer[*kproject.Project](),
	Deserializer: ProjectDeserializer,
}
