// ABOUTME: Decoder interface definition
// ABOUTME: Common interface for all audio decoders plus a codec factory
package decode

import (
	"fmt"

	"github.com/Sendspin/sendspin-client/pkg/audio"
)

// Decoder decodes audio in various formats to PCM int32 samples
type Decoder interface {
	// Decode converts one stream payload to interleaved samples
	Decode(data []byte) ([]int32, error)

	// Close releases decoder resources
	Close() error
}

// New returns a decoder for the format's codec
func New(format audio.Format) (Decoder, error) {
	switch format.Codec {
	case "pcm":
		return NewPCM(format)
	case "opus":
		return NewOpus(format)
	case "flac":
		return NewFLAC(format)
	default:
		return nil, fmt.Errorf("unsupported codec: %s", format.Codec)
	}
}
