// Package kproto carries projects as protobuf messages.
//
// Projects travel as google.protobuf.Struct, which mirrors the editor JSON
// form, so no generated code is needed on either side. Struct numbers are
// doubles: pin literals come back in their shortest float form (1.50 becomes
// 1.5) and integers beyond 2^53 lose precision.
package kproto

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/birdayz/xodc/kproject"
	"github.com/birdayz/xodc/kserde"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// ContentType is the record header value announcing a protobuf payload.
const ContentType = "application/x-protobuf"

// Serializer returns a protobuf serializer for any proto.Message type.
func Serializer[T proto.Message]() kserde.Serializer[T] {
	return func(v T) ([]byte, error) {
		return proto.Marshal(v)
	}
}

// Deserializer returns a protobuf deserializer. newFn creates an empty
// message to decode into.
func Deserializer[T proto.Message](newFn func() T) kserde.Deserializer[T] {
	return func(data []byte) (T, error) {
		msg := newFn()
		if err := proto.Unmarshal(data, msg); err != nil {
			var zero T
			return zero, err
		}
		return msg, nil
	}
}

// ProjectToStruct converts a project into its Struct form. Numeric pin
// literals are converted to float64.
func ProjectToStruct(p *kproject.Project) (*structpb.Struct, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return structpb.NewStruct(m)
}

// ProjectFromStruct converts a Struct back into a validated project.
func ProjectFromStruct(s *structpb.Struct) (*kproject.Project, error) {
	data, err := json.Marshal(s.AsMap())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", kproject.ErrInvalidProject, err)
	}
	return kproject.Decode(bytes.NewReader(data))
}

var structSerializer = Serializer[*structpb.Struct]()
var structDeserializer = Deserializer(func() *structpb.Struct { return &structpb.Struct{} })

// Project is the serde for projects encoded as google.protobuf.Struct.
var Project = kserde.Serde[*kproject.Project]{
	Serializer: func(p *kproject.Project) ([]byte, error) {
		s, err := ProjectToStruct(p)
		if err != nil {
			return nil, err
		}
		return structSerializer(s)
	},
	Deserializer: func(data []byte) (*kproject.Project, error) {
		s, err := structDeserializer(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", kproject.ErrInvalidProject, err)
		}
		return ProjectFromStruct(s)
	},
}
