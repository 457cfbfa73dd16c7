package padding

import "errors"

// BlockSize is the padding bucket. Padded bodies hide the exact plaintext
// length from anyone observing ciphertext sizes.
const BlockSize = 160

var ErrInvalidPadding = errors.New("invalid padding")

// Pad appends a 0x80 terminator and zero fill so that len(body)+1 lands on a
// BlockSize boundary.
func Pad(body []byte) []byte {
	size := paddedLength(len(body)+1) - 1
	out := make([]byte, size)
	copy(out, body)
	out[len(body)] = 0x80
	return out
}

// Unpad strips zero fill and the terminator. Bodies without a terminator are
// returned unchanged, since some senders never padded.
func Unpad(padded []byte) ([]byte, error) {
	for i := len(padded) - 1; i >= 0; i-- {
		switch padded[i] {
		case 0x00:
			continue
		case 0x80:
			return padded[:i], nil
		default:
			return padded, nil
		}
	}
	return nil, ErrInvalidPadding
}

func paddedLength(n int) int {
	blocks := n / BlockSize
	if n%BlockSize != 0 {
		blocks++
	}
	return blocks * BlockSize
}
