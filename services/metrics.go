package services

import "sync/atomic"

type Metrics struct {
	heartbeats    atomic.Uint64
	statusLookups atomic.Uint64
	bulkLookups   atomic.Uint64
	bulkIDs       atomic.Uint64
	storeErrors   atomic.Uint64
	activeSockets atomic.Int64
}

func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) IncHeartbeat() {
	m.heartbeats.Add(1)
}

func (m *Metrics) IncStatus() {
	m.statusLookups.Add(1)
}

func (m *Metrics) IncBulk(ids int) {
	m.bulkLookups.Add(1)
	m.bulkIDs.Add(uint64(ids))
}

func (m *Metrics) IncStoreError() {
	m.storeErrors.Add(1)
}

func (m *Metrics) IncSocket() {
	m.activeSockets.Add(1)
}

func (m *Metrics) DecSocket() {
	m.activeSockets.Add(-1)
}

func (m *Metrics) Snapshot() map[string]any {
	return map[string]any{
		"heartbeats_total":     m.heartbeats.Load(),
		"status_lookups_total": m.statusLookups.Load(),
		"bulk_lookups_total":   m.bulkLookups.Load(),
		"bulk_ids_total":       m.bulkIDs.Load(),
		"store_errors_total":   m.storeErrors.Load(),
		"active_websockets":    m.activeSockets.Load(),
	}
}
