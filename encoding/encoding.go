package encoding

import (
	"strings"
	"sync"
)

type Codec interface {
	Marshal(v interface{}) ([]byte, error)
	Unmarshal(data []byte, v interface{}) error
	Name() string
}

var (
	l      sync.RWMutex
	codecs = make(map[string]Codec)
)

func RegisterCodec(codec Codec) {
	if codec == nil {
		panic("register nil codec")
	}
	if len(codec.Name()) == 0 {
		panic("register codec with empty name")
	}
	l.Lock()
	codecs[strings.ToLower(codec.Name())] = codec
	l.Unlock()
}

func GetCodec(name string) Codec {
	l.RLock()
	defer l.RUnlock()
	return codecs[strings.ToLower(name)]
}
