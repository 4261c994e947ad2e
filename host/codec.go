package host

import (
	"fmt"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/unicode"
)

// Codec converts between UTF-8 strings and the engine's native text
type Codec interface {
	Encode(s string) ([]byte, error)
	Decode(native []byte) (string, error)
}

var (
	// GB18030 is the native encoding of CoolQ engines
	GB18030 Codec = NewCodec(simplifiedchinese.GB18030)

	// UTF8 passes text through, replacing invalid sequences
	UTF8 Codec = NewCodec(unicode.UTF8)
)

type textCodec struct {
	enc encoding.Encoding
}

// NewCodec wraps an x/text encoding
func NewCodec(enc encoding.Encoding) Codec {
	return textCodec{enc: enc}
}

func (c textCodec) Encode(s string) ([]byte, error) {
	b, err := c.enc.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, fmt.Errorf("host: encode text: %w", err)
	}
	return b, nil
}

func (c textCodec) Decode(native []byte) (string, error) {
	b, err := c.enc.NewDecoder().Bytes(native)
	if err != nil {
		return "", fmt.Errorf("host: decode text: %w", err)
	}
	return string(b), nil
}
