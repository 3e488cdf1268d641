package memory

import (
	"bytes"
	"encoding/json"
	"sort"

	"github.com/pkg/errors"

	"inventorycore/pkg/domain"
)

// RecordRow is one durable row of the record table.
type RecordRow struct {
	GlobalID domain.GlobalID
	Type     domain.RecordType
	ParentID *domain.GlobalID
	Payload  []byte
}

// RowChanges lists the rows a durable store writes and deletes so that its
// table matches a snapshot. Written holds the payload of every row once the
// changes are applied.
type RowChanges struct {
	Upserts []RecordRow
	Deletes []domain.GlobalID
	Written map[domain.GlobalID][]byte
}

// Empty reports whether nothing needs writing.
func (c RowChanges) Empty() bool { return len(c.Upserts) == 0 && len(c.Deletes) == 0 }

// DiffRows compares next with the payloads last written. Rows come out
// ordered by global id.
func DiffRows(written map[domain.GlobalID][]byte, next Snapshot) (RowChanges, error) {
	out := RowChanges{Written: make(map[domain.GlobalID][]byte, len(next.Records))}
	for id, rec := range next.Records {
		payload, err := json.Marshal(rec)
		if err != nil {
			return RowChanges{}, errors.Wrapf(err, "encode record %s", id)
		}
		out.Written[id] = payload
		if prev, ok := written[id]; ok && bytes.Equal(prev, payload) {
			continue
		}
		row := RecordRow{GlobalID: id, Type: rec.Type, Payload: payload}
		if rec.ParentID != nil {
			parent := *rec.ParentID
			row.ParentID = &parent
		}
		out.Upserts = append(out.Upserts, row)
	}
	for id := range written {
		if _, ok := next.Records[id]; !ok {
			out.Deletes = append(out.Deletes, id)
		}
	}
	sort.Slice(out.Upserts, func(i, j int) bool { return out.Upserts[i].GlobalID < out.Upserts[j].GlobalID })
	sort.Slice(out.Deletes, func(i, j int) bool { return out.Deletes[i] < out.Deletes[j] })
	return out, nil
}

// DecodeRow restores a record from its row payload. The row's global id
// wins over the one in the payload.
func DecodeRow(id domain.GlobalID, payload []byte) (StoredRecord, error) {
	var rec StoredRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		return StoredRecord{}, errors.Wrapf(err, "decode record %s", id)
	}
	rec.GlobalID = id
	return rec, nil
}
