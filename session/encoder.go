package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

const sessionFormatVersionV1 = 1

// ErrCorruptRecord is returned by Decode when a persisted blob cannot be
// parsed. Callers treat it as an absent session, never as a partial one.
var ErrCorruptRecord = errors.New("corrupt session record")

func writeString(buf *bytes.Buffer, s string) error {
	if len(s) > 65535 {
		return errors.New("session field too long")
	}
	if err := binary.Write(buf, binary.BigEndian, uint16(len(s))); err != nil {
		return err
	}
	buf.WriteString(s)
	return nil
}

func readString(r *bytes.Reader) (string, error) {
	var n uint16
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return "", err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}

// Encode serializes a session into the versioned binary record persisted
// by RedisPersistence. Identity and token travel in one blob so they can
// never be stored out of sync.
func Encode(s *Session) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(sessionFormatVersionV1)

	for _, field := range []string{
		s.Identity.ID,
		s.Identity.Phone,
		s.Identity.Email,
		s.Identity.Name,
		string(s.Identity.Role),
		s.Token,
	} {
		if err := writeString(&buf, field); err != nil {
			return nil, err
		}
	}

	if err := binary.Write(&buf, binary.BigEndian, int64(s.Identity.LoyaltyPoints)); err != nil {
		return nil, err
	}

	if len(s.Identity.FavoriteSalons) > 65535 {
		return nil, errors.New("too many favorite salons")
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(s.Identity.FavoriteSalons))); err != nil {
		return nil, err
	}
	for salonID := range s.Identity.FavoriteSalons {
		if err := writeString(&buf, salonID); err != nil {
			return nil, err
		}
	}

	if len(s.Identity.PerSalonPoints) > 65535 {
		return nil, errors.New("too many per-salon point entries")
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(s.Identity.PerSalonPoints))); err != nil {
		return nil, err
	}
	for salonID, points := range s.Identity.PerSalonPoints {
		if err := writeString(&buf, salonID); err != nil {
			return nil, err
		}
		if err := binary.Write(&buf, binary.BigEndian, int64(points)); err != nil {
			return nil, err
		}
	}

	return buf.Bytes(), nil
}

// Decode parses a persisted session record. Any structural problem,
// including an unknown version byte or a missing token, yields
// ErrCorruptRecord.
func Decode(data []byte) (*Session, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil || version != sessionFormatVersionV1 {
		return nil, ErrCorruptRecord
	}

	s := &Session{}

	fields := []*string{
		&s.Identity.ID,
		&s.Identity.Phone,
		&s.Identity.Email,
		&s.Identity.Name,
	}
	for _, dst := range fields {
		v, err := readString(reader)
		if err != nil {
			return nil, ErrCorruptRecord
		}
		*dst = v
	}

	role, err := readString(reader)
	if err != nil {
		return nil, ErrCorruptRecord
	}
	s.Identity.Role = Role(role)

	token, err := readString(reader)
	if err != nil {
		return nil, ErrCorruptRecord
	}
	s.Token = token

	var points int64
	if err := binary.Read(reader, binary.BigEndian, &points); err != nil {
		return nil, ErrCorruptRecord
	}
	s.Identity.LoyaltyPoints = int(points)

	var favCount uint16
	if err := binary.Read(reader, binary.BigEndian, &favCount); err != nil {
		return nil, ErrCorruptRecord
	}
	if favCount > 0 {
		s.Identity.FavoriteSalons = make(map[string]struct{}, favCount)
		for i := 0; i < int(favCount); i++ {
			salonID, err := readString(reader)
			if err != nil {
				return nil, ErrCorruptRecord
			}
			s.Identity.FavoriteSalons[salonID] = struct{}{}
		}
	}

	var perSalonCount uint16
	if err := binary.Read(reader, binary.BigEndian, &perSalonCount); err != nil {
		return nil, ErrCorruptRecord
	}
	if perSalonCount > 0 {
		s.Identity.PerSalonPoints = make(map[string]int, perSalonCount)
		for i := 0; i < int(perSalonCount); i++ {
			salonID, err := readString(reader)
			if err != nil {
				return nil, ErrCorruptRecord
			}
			var p int64
			if err := binary.Read(reader, binary.BigEndian, &p); err != nil {
				return nil, ErrCorruptRecord
			}
			s.Identity.PerSalonPoints[salonID] = int(p)
		}
	}

	// A session without identity or token is fail-safe logged out.
	if s.Identity.ID == "" || s.Token == "" {
		return nil, ErrCorruptRecord
	}

	return s, nil
}
