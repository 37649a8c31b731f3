// Package core defines sentinel errors.
package core

import "errors"

// Sentinel errors shared by every layer of the header toolkit.
var (
	// Header decoding errors
	ErrPacketTooShort   = errors.New("pktforge: packet too short")
	ErrUnsupportedProto = errors.New("pktforge: unsupported protocol")
	ErrInvalidHeader    = errors.New("pktforge: invalid header")

	// Checksum errors
	ErrAddrFamily = errors.New("pktforge: address family mismatch")

	// Template errors
	ErrUnknownLayer  = errors.New("pktforge: unknown layer type")
	ErrInvalidField  = errors.New("pktforge: invalid field value")
	ErrEmptyTemplate = errors.New("pktforge: template has no layers")

	// Configuration errors
	ErrConfigInvalid = errors.New("pktforge: invalid configuration")
)
