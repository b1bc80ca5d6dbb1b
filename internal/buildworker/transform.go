package buildworker

import (
	"context"

	"github.com/birdayz/xodc"
	"github.com/birdayz/xodc/kproject"
	"github.com/birdayz/xodc/kproto"
	"github.com/birdayz/xodc/kserde"
	"github.com/twmb/franz-go/pkg/kgo"
)

// Record headers.
const (
	HeaderContentType = "content-type"
	HeaderDigest      = "xodc-digest"
	HeaderError       = "xodc-error"
	HeaderErrorKind   = "xodc-error-kind"
)

const contentTypeJS = "application/javascript"

// Compiler compiles one project. *xodc.Compiler implements it.
type Compiler interface {
	Compile(ctx context.Context, p *kproject.Project) (*xodc.Result, error)
}

// Transform compiles the project carried by in and returns the record to
// publish on topic. The output keeps the input key. Projects that fail to
// decode or compile yield a record with an empty value and error headers;
// only failures unrelated to the input are returned as errors.
func Transform(ctx context.Context, c Compiler, in *kgo.Record, topic string) (*kgo.Record, error) {
	out := &kgo.Record{
		Topic: topic,
		Key:   in.Key,
	}

	p, err := projectSerde(in).Deserializer(in.Value)
	if err != nil {
		return withError(out, err), nil
	}

	res, err := c.Compile(ctx, p)
	if err != nil {
		if !xodc.IsCompileError(err) {
			return nil, err
		}
		return withError(out, err), nil
	}

	out.Value, err = kserde.ProgramSerializer(res.Code)
	if err != nil {
		return nil, err
	}
	out.Headers = []kgo.RecordHeader{
		{Key: HeaderContentType, Value: []byte(contentTypeJS)},
		{Key: HeaderDigest, Value: []byte(res.Digest)},
	}
	return out, nil
}

func projectSerde(in *kgo.Record) kserde.Serde[*kproject.Project] {
	if header(in, HeaderContentType) == kproto.ContentType {
		return kproto.Project
	}
	return kserde.ProjectJSON
}

func withError(out *kgo.Record, err error) *kgo.Record {
	out.Value = []byte{}
	out.Headers = []kgo.RecordHeader{
		{Key: HeaderError, Value: []byte(err.Error())},
		{Key: HeaderErrorKind, Value: []byte(xodc.ErrorKind(err))},
	}
	return out
}

func header(r *kgo.Record, key string) string {
	for _, h := range r.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}
