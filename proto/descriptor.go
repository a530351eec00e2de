package proto

// DefaultBufferSize is the chunk size used on the data channel when the
// peer does not request another.
const DefaultBufferSize = 4096

// TransferDescriptor describes a file about to cross the data channel.
// The sender computes it before the transfer and carries it in the
// request (upload) or response (download) payload so the receiver can
// size-check the stream and verify the digest afterwards.
type TransferDescriptor struct {
	FilePath     string `json:"file_path"`
	FileSize     int64  `json:"file_size"`
	BufferSize   int    `json:"buffer_size"`
	Checksum     string `json:"checksum"`
	TransmitPort int    `json:"transmit_port,omitempty"`
}
