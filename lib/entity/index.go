// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package entity

import (
	"encoding/json"
	"fmt"
)

// EntityIndex is the insertion-ordered set of index records of one
// tenant, keyed by record id. It serializes as a JSON array of
// records in insertion order; each record carries its own key.
//
// Values held by the object cache are shared between readers and are
// never mutated in place: mutations go through Clone.
type EntityIndex struct {
	Tenant string

	order   []string
	records map[string]IndexRecord
}

// NewEntityIndex returns an empty index for tenant.
func NewEntityIndex(tenant string) EntityIndex {
	return EntityIndex{Tenant: tenant, records: make(map[string]IndexRecord)}
}

func (x EntityIndex) Kind() string     { return string(KindEntityIndex) }
func (x EntityIndex) ObjectID() string { return IndexObjectID }
func (x EntityIndex) TenantID() string { return x.Tenant }

// Len returns the number of records.
func (x EntityIndex) Len() int { return len(x.order) }

// Get returns the record with the given id.
func (x EntityIndex) Get(id string) (IndexRecord, bool) {
	record, ok := x.records[id]
	return record, ok
}

// Records returns all records in insertion order.
func (x EntityIndex) Records() []IndexRecord {
	records := make([]IndexRecord, 0, len(x.order))
	for _, id := range x.order {
		records = append(records, x.records[id])
	}
	return records
}

// Clone returns an index that shares no storage with x.
func (x EntityIndex) Clone() EntityIndex {
	clone := EntityIndex{
		Tenant:  x.Tenant,
		order:   make([]string, len(x.order)),
		records: make(map[string]IndexRecord, len(x.records)),
	}
	copy(clone.order, x.order)
	for id, record := range x.records {
		clone.records[id] = record
	}
	return clone
}

// Put inserts or replaces a record. A replaced record keeps its
// position.
func (x *EntityIndex) Put(record IndexRecord) {
	if x.records == nil {
		x.records = make(map[string]IndexRecord)
	}
	if _, exists := x.records[record.ID]; !exists {
		x.order = append(x.order, record.ID)
	}
	x.records[record.ID] = record
}

// Remove deletes the record with the given id and reports whether it
// was present.
func (x *EntityIndex) Remove(id string) bool {
	if _, exists := x.records[id]; !exists {
		return false
	}
	delete(x.records, id)
	for position, candidate := range x.order {
		if candidate == id {
			x.order = append(x.order[:position:position], x.order[position+1:]...)
			break
		}
	}
	return true
}

type indexWire struct {
	ID      string        `json:"id"`
	Tenant  string        `json:"tenant"`
	Records []IndexRecord `json:"records"`
}

func (x EntityIndex) MarshalJSON() ([]byte, error) {
	return json.Marshal(indexWire{ID: IndexObjectID, Tenant: x.Tenant, Records: x.Records()})
}

func (x *EntityIndex) UnmarshalJSON(data []byte) error {
	var wire indexWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	index := NewEntityIndex(wire.Tenant)
	for _, record := range wire.Records {
		if _, duplicate := index.records[record.ID]; duplicate {
			return fmt.Errorf("entity index of %q lists %q twice", wire.Tenant, record.ID)
		}
		index.Put(record)
	}
	*x = index
	return nil
}
