// ABOUTME: Kinds of transport-level messages carried on a SendSpin connection
// ABOUTME: Shared by the engine and transport implementations
package protocol

// MessageKind distinguishes text control messages from binary frames
type MessageKind int

const (
	TextMessage MessageKind = iota + 1
	BinaryMessage
)

func (k MessageKind) String() string {
	switch k {
	case TextMessage:
		return "text"
	case BinaryMessage:
		return "binary"
	default:
		return "unknown"
	}
}
