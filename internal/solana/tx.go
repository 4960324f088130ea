package solana

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/mr-tron/base58"
)

const signatureLength = 64

// versionPrefix marks a versioned (v0) message.
const versionPrefix = 0x80

var ErrMalformedTransaction = errors.New("malformed transaction")

// SystemProgramID is the all-zero system program address.
var SystemProgramID PublicKey

// SignTransaction places kp's signature over the message of a serialized, partially signed
// transaction, such as the swap transaction returned by a router. Both legacy and v0
// messages are accepted.
func SignTransaction(raw []byte, kp *Keypair) ([]byte, error) {
	sigCount, n, err := decodeCompactU16(raw)
	if err != nil {
		return nil, err
	}
	sigStart := n
	msgStart := sigStart + sigCount*signatureLength
	if sigCount == 0 || msgStart >= len(raw) {
		return nil, fmt.Errorf("signature section: %w", ErrMalformedTransaction)
	}
	message := raw[msgStart:]

	header := message
	if message[0]&versionPrefix != 0 {
		header = message[1:]
	}
	if len(header) < 3 {
		return nil, fmt.Errorf("message header: %w", ErrMalformedTransaction)
	}
	required := int(header[0])
	keyCount, kn, err := decodeCompactU16(header[3:])
	if err != nil {
		return nil, err
	}
	keys := header[3+kn:]
	if len(keys) < keyCount*PublicKeyLength || required > keyCount || required != sigCount {
		return nil, fmt.Errorf("account keys: %w", ErrMalformedTransaction)
	}

	signer := kp.PublicKey()
	slot := -1
	for i := 0; i < required; i++ {
		if bytes.Equal(keys[i*PublicKeyLength:(i+1)*PublicKeyLength], signer[:]) {
			slot = i
			break
		}
	}
	if slot < 0 {
		return nil, fmt.Errorf("signer %s is not a required signer: %w", signer, ErrMalformedTransaction)
	}

	out := make([]byte, len(raw))
	copy(out, raw)
	copy(out[sigStart+slot*signatureLength:], kp.Sign(message))
	return out, nil
}

// BuildTransfer builds and signs a legacy SystemProgram transfer of lamports from kp to to.
func BuildTransfer(kp *Keypair, to PublicKey, lamports uint64, recentBlockhash string) ([]byte, error) {
	from := kp.PublicKey()
	if from == to {
		return nil, fmt.Errorf("transfer to self: %w", ErrMalformedTransaction)
	}
	if lamports == 0 {
		return nil, fmt.Errorf("transfer of zero lamports: %w", ErrMalformedTransaction)
	}
	hash, err := base58.Decode(recentBlockhash)
	if err != nil || len(hash) != 32 {
		return nil, fmt.Errorf("blockhash %q: %w", recentBlockhash, ErrMalformedTransaction)
	}

	var msg bytes.Buffer
	// header: one signer (the payer), no read-only signers, one read-only unsigned (system program)
	msg.Write([]byte{1, 0, 1})
	msg.Write(encodeCompactU16(3))
	msg.Write(from[:])
	msg.Write(to[:])
	msg.Write(SystemProgramID[:])
	msg.Write(hash)

	data := make([]byte, 12)
	binary.LittleEndian.PutUint32(data[0:4], 2) // SystemInstruction::Transfer
	binary.LittleEndian.PutUint64(data[4:12], lamports)

	msg.Write(encodeCompactU16(1))
	msg.WriteByte(2) // program id index
	msg.Write(encodeCompactU16(2))
	msg.Write([]byte{0, 1})
	msg.Write(encodeCompactU16(len(data)))
	msg.Write(data)

	message := msg.Bytes()
	var tx bytes.Buffer
	tx.Write(encodeCompactU16(1))
	tx.Write(kp.Sign(message))
	tx.Write(message)
	return tx.Bytes(), nil
}

// TransactionSignature returns the base58 first signature of a serialized transaction,
// which is also its transaction id.
func TransactionSignature(raw []byte) (string, error) {
	count, n, err := decodeCompactU16(raw)
	if err != nil {
		return "", err
	}
	if count == 0 || len(raw) < n+signatureLength {
		return "", ErrMalformedTransaction
	}
	return base58.Encode(raw[n : n+signatureLength]), nil
}

func encodeCompactU16(v int) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v == 0 {
			return append(out, b)
		}
		out = append(out, b|0x80)
	}
}

func decodeCompactU16(b []byte) (value, size int, err error) {
	for i := 0; i < 3; i++ {
		if i >= len(b) {
			return 0, 0, fmt.Errorf("compact-u16: %w", ErrMalformedTransaction)
		}
		value |= int(b[i]&0x7f) << (7 * i)
		if b[i]&0x80 == 0 {
			return value, i + 1, nil
		}
	}
	return 0, 0, fmt.Errorf("compact-u16 overflow: %w", ErrMalformedTransaction)
}
