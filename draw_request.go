package lotto

import "time"

// DrawRequest is the outbound message of the draw handshake. It carries the
// encrypted selection handle the oracle has to decrypt.
type DrawRequest struct {
	ID           RequestID
	Round        uint64
	Handle       Handle
	Participants int
	IssuedAt     time.Time
}

// Fulfillment is the inbound message of the draw handshake.
type Fulfillment struct {
	RequestID RequestID
	// Result is the decrypted selection value, interpreted by the Selector.
	Result      []byte
	Attestation []byte
}
