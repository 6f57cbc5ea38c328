package wire

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fxamacker/cbor/v2"
)

// Format names accepted by New.
const (
	FormatJSON = "json"
	FormatCBOR = "cbor"
)

// Codec encodes and decodes wire payloads.
type Codec interface {
	// Name returns the format name ("json" or "cbor").
	Name() string

	// ContentType returns the MIME type of encoded payloads.
	ContentType() string

	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// New returns the codec for format. The empty string selects JSON.
func New(format string) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", FormatJSON:
		return JSON, nil
	case FormatCBOR:
		return CBOR, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// JSON is the encoding/json codec.
var JSON Codec = jsonCodec{}

// CBOR is the deterministic CBOR codec.
var CBOR Codec

type jsonCodec struct{}

func (jsonCodec) Name() string        { return FormatJSON }
func (jsonCodec) ContentType() string { return "application/json" }

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return nil
}

// cborCodec uses canonical key ordering so identical states encode to
// identical bytes, which keeps retained topics stable.
type cborCodec struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

func init() {
	encOpts := cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
	}
	enc, err := encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR encoder mode: %v", err))
	}

	decOpts := cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyEnforcedAPF,
		IndefLength: cbor.IndefLengthAllowed,
	}
	dec, err := decOpts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR decoder mode: %v", err))
	}

	CBOR = cborCodec{enc: enc, dec: dec}
}

func (cborCodec) Name() string        { return FormatCBOR }
func (cborCodec) ContentType() string { return "application/cbor" }

func (c cborCodec) Marshal(v any) ([]byte, error) {
	return c.enc.Marshal(v)
}

func (c cborCodec) Unmarshal(data []byte, v any) error {
	if err := c.dec.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return nil
}
