package backend

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/meshchain/execcore/core/types"
)

// Row and table-metadata values are stored as length-prefixed field
// lists rather than a delimited string: field values are arbitrary
// bytes up to 16 MiB (spec.md §3's MaxFieldValueLength) and may contain
// any separator a delimiter-based encoding would need, so each field
// name and value is framed with its own uvarint length instead.

func encodeEntry(e *types.Entry) []byte {
	fields := e.Fields()
	var buf bytes.Buffer
	writeUvarint(&buf, uint64(len(fields)))
	for _, f := range fields {
		v, _ := e.Get(f)
		writeString(&buf, f)
		writeString(&buf, v)
	}
	return buf.Bytes()
}

func decodeEntry(data []byte) (*types.Entry, error) {
	r := bytes.NewReader(data)
	n, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, fmt.Errorf("backend: decode entry field count: %w", err)
	}
	e := types.NewEntry()
	for i := uint64(0); i < n; i++ {
		name, err := readString(r)
		if err != nil {
			return nil, fmt.Errorf("backend: decode entry field name: %w", err)
		}
		value, err := readString(r)
		if err != nil {
			return nil, fmt.Errorf("backend: decode entry field value: %w", err)
		}
		e.Set(name, value)
	}
	return e, nil
}

func encodeTableMeta(m types.TableMeta) []byte {
	var buf bytes.Buffer
	writeString(&buf, m.KeyField)
	writeString(&buf, m.ValueFieldString())
	return buf.Bytes()
}

func decodeTableMeta(table string, data []byte) (types.TableMeta, error) {
	r := bytes.NewReader(data)
	keyField, err := readString(r)
	if err != nil {
		return types.TableMeta{}, fmt.Errorf("backend: decode table meta key field: %w", err)
	}
	valueFieldCSV, err := readString(r)
	if err != nil {
		return types.TableMeta{}, fmt.Errorf("backend: decode table meta value fields: %w", err)
	}
	return types.TableMeta{
		TableName:   table,
		KeyField:    keyField,
		ValueFields: types.SplitValueFieldString(valueFieldCSV),
	}, nil
}

func writeUvarint(buf *bytes.Buffer, n uint64) {
	var tmp [binary.MaxVarintLen64]byte
	k := binary.PutUvarint(tmp[:], n)
	buf.Write(tmp[:k])
}

func writeString(buf *bytes.Buffer, s string) {
	writeUvarint(buf, uint64(len(s)))
	buf.WriteString(s)
}

func readString(r *bytes.Reader) (string, error) {
	n, err := binary.ReadUvarint(r)
	if err != nil {
		return "", err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}
