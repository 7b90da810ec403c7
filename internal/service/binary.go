package service

import (
	"encoding/binary"
	"errors"

	"github.com/StoryBB/StoryBB-sub002/internal/model"
)

var errShortSnapshot = errors.New("board order snapshot truncated")

// BoardOrder 版块排序快照，按分区顺序、分区内先序排列
type BoardOrder []model.BoardOrderEntry

// MarshalBinary 序列化 BoardOrder
// 格式：count(4) 后接每项 id(4) cat(4) parent(4) level(2) order(4) nameLen(2) name
func (o BoardOrder) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 0, 4+len(o)*32)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(o)))
	for _, e := range o {
		buf = binary.BigEndian.AppendUint32(buf, uint32(e.ID))
		buf = binary.BigEndian.AppendUint32(buf, uint32(e.Category))
		buf = binary.BigEndian.AppendUint32(buf, uint32(e.Parent))
		buf = binary.BigEndian.AppendUint16(buf, uint16(e.Level))
		buf = binary.BigEndian.AppendUint32(buf, uint32(e.Order))

		name := e.Name
		if len(name) > 0xFFFF {
			name = name[:0xFFFF]
		}
		buf = binary.BigEndian.AppendUint16(buf, uint16(len(name)))
		buf = append(buf, name...)
	}
	return buf, nil
}

// UnmarshalBinary 反序列化 BoardOrder
func (o *BoardOrder) UnmarshalBinary(data []byte) error {
	if len(data) < 4 {
		return errShortSnapshot
	}
	count := int(binary.BigEndian.Uint32(data))
	offset := 4

	out := make(BoardOrder, 0, count)
	for i := 0; i < count; i++ {
		if len(data) < offset+20 {
			return errShortSnapshot
		}
		var e model.BoardOrderEntry
		e.ID = int(binary.BigEndian.Uint32(data[offset:]))
		e.Category = int(binary.BigEndian.Uint32(data[offset+4:]))
		e.Parent = int(binary.BigEndian.Uint32(data[offset+8:]))
		e.Level = int(binary.BigEndian.Uint16(data[offset+12:]))
		e.Order = int(binary.BigEndian.Uint32(data[offset+14:]))
		nameLen := int(binary.BigEndian.Uint16(data[offset+18:]))
		offset += 20

		if len(data) < offset+nameLen {
			return errShortSnapshot
		}
		e.Name = string(data[offset : offset+nameLen])
		offset += nameLen
		out = append(out, e)
	}
	*o = out
	return nil
}
