package types

import "time"

// ListenerInfo holds the runtime listening info of the echo gateway.
type ListenerInfo struct {
	Address string `json:"address"`
	Port    int    `json:"port"`
}

// PoolStats is a point-in-time view of the worker pool.
type PoolStats struct {
	Size      int    `json:"size"`
	Running   int    `json:"running"`
	Waiting   uint64 `json:"waiting"`
	Submitted uint64 `json:"submitted"`
	Failed    uint64 `json:"failed"`
}

// TrafficStats 用于报告流量统计信息
type TrafficStats struct {
	Accepted int64  `json:"accepted"`
	Active   int64  `json:"active"`
	BytesIn  uint64 `json:"bytes_in"`
	BytesOut uint64 `json:"bytes_out"`
}

// Status is the snapshot served by the status API.
type Status struct {
	StartedAt time.Time     `json:"started_at"`
	Cores     int           `json:"cores"`
	Listener  *ListenerInfo `json:"listener,omitempty"`
	Pool      PoolStats     `json:"pool"`
	Traffic   TrafficStats  `json:"traffic"`
}

// StatusProvider is implemented by the application server.
type StatusProvider interface {
	GetStatus() *Status
}
