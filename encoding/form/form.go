package form

import (
	"net/url"

	"github.com/go-playground/form/v4"
	"github.com/go-upf/upf/encoding"
)

const Name = "x-www-form-urlencoded"

var (
	encoder = form.NewEncoder()
	decoder = form.NewDecoder()
)

func init() {
	decoder.SetTagName("json")
	encoder.SetTagName("json")
	encoding.RegisterCodec(codec{})
}

type codec struct{}

func (codec) Marshal(v interface{}) ([]byte, error) {
	vs, err := encoder.Encode(v)
	if err != nil {
		return nil, err
	}
	for k, vv := range vs {
		if len(vv) == 0 {
			delete(vs, k)
		}
	}
	return []byte(vs.Encode()), nil
}

func (codec) Unmarshal(data []byte, v interface{}) error {
	vs, err := url.ParseQuery(string(data))
	if err != nil {
		return err
	}
	return decoder.Decode(v, vs)
}

func (codec) Name() string {
	return Name
}
