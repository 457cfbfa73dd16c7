package model

import "time"

type EnvelopeType int32

const (
	EnvelopeSessionMessage     EnvelopeType = 6
	EnvelopeClosedGroupMessage EnvelopeType = 7
)

// Namespaces on a storage node.
const (
	NamespaceUnauthenticatedClosedGroup = -10
	NamespaceDefault                    = 0
	NamespaceClosedGroupMessages        = 11
)

// DefaultTTL is the protocol maximum for stored messages.
var DefaultTTL = (14 * 24 * time.Hour).Milliseconds()

type (
	// Envelope is the wire record; only the codec looks inside Content.
	Envelope struct {
		Type      EnvelopeType
		Timestamp uint64
		Source    string
		Content   []byte
	}

	SnodeMessage struct {
		Recipient string `json:"pubkey"`
		// Data is base64 encoded.
		Data      string `json:"data"`
		TTL       int64  `json:"ttl"`
		Timestamp int64  `json:"timestamp"`
	}

	StoreResult struct {
		Hash      string `json:"hash"`
		Timestamp int64  `json:"timestamp"`
	}

	SwarmAuth struct {
		AccountID  string
		SigningKey []byte
	}

	// RetrievedMessage is a stored swarm message as returned by a node.
	RetrievedMessage struct {
		Hash      string `json:"hash"`
		Namespace int    `json:"namespace"`
		Data      string `json:"data"`
		Timestamp int64  `json:"timestamp"`
		Expiry    int64  `json:"expiration"`
	}
)
