package redisstore

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"time"

	"github.com/MrEthical07/goAccount/model"
)

const recordVersion1 = 1

var errInvalidRecord = errors.New("invalid verification record")

// record layout v1:
//
//	version u8 | used u8 | attempts u16 | expires i64 | created i64 | usedAt i64 |
//	len u16 + type | len u16 + account id
//
// Times are unix nanoseconds; usedAt is 0 when unused.
func encodeToken(t *model.VerificationToken) ([]byte, error) {
	if len(t.AccountID) > 65535 || len(t.Type) > 65535 {
		return nil, errors.New("verification record field too long")
	}
	if t.Attempts < 0 || t.Attempts > 65535 {
		return nil, errors.New("verification attempts out of range")
	}

	var buf bytes.Buffer
	buf.WriteByte(recordVersion1)
	if t.Used {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}

	var usedAt int64
	if t.UsedAt != nil {
		usedAt = t.UsedAt.UnixNano()
	}

	fixed := []any{
		uint16(t.Attempts),
		t.ExpiresAt.UnixNano(),
		t.CreatedAt.UnixNano(),
		usedAt,
	}
	for _, v := range fixed {
		if err := binary.Write(&buf, binary.BigEndian, v); err != nil {
			return nil, err
		}
	}

	for _, s := range []string{string(t.Type), t.AccountID} {
		if err := binary.Write(&buf, binary.BigEndian, uint16(len(s))); err != nil {
			return nil, err
		}
		buf.WriteString(s)
	}
	return buf.Bytes(), nil
}

func decodeToken(hash string, data []byte) (*model.VerificationToken, error) {
	r := bytes.NewReader(data)

	version, err := r.ReadByte()
	if err != nil {
		return nil, errInvalidRecord
	}
	if version != recordVersion1 {
		return nil, errInvalidRecord
	}
	used, err := r.ReadByte()
	if err != nil {
		return nil, errInvalidRecord
	}

	var (
		attempts                   uint16
		expires, created, usedAtNs int64
	)
	for _, v := range []any{&attempts, &expires, &created, &usedAtNs} {
		if err := binary.Read(r, binary.BigEndian, v); err != nil {
			return nil, errInvalidRecord
		}
	}

	typ, err := readString(r)
	if err != nil {
		return nil, err
	}
	accountID, err := readString(r)
	if err != nil {
		return nil, err
	}

	t := &model.VerificationToken{
		Token:     hash,
		AccountID: accountID,
		Type:      model.TokenType(typ),
		ExpiresAt: time.Unix(0, expires).UTC(),
		CreatedAt: time.Unix(0, created).UTC(),
		Used:      used == 1,
		Attempts:  int(attempts),
	}
	if usedAtNs != 0 {
		at := time.Unix(0, usedAtNs).UTC()
		t.UsedAt = &at
	}
	return t, nil
}

func readString(r *bytes.Reader) (string, error) {
	var n uint16
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return "", errInvalidRecord
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", errInvalidRecord
	}
	return string(b), nil
}
