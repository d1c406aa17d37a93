// Package store provides the append-only, commit-oriented audit store for
// rendered port configurations. Every change the orchestrator makes is
// committed here before it is pushed to a device, so the store is an intent
// log: it records what was asked for, not what the network confirmed.
package store

import (
	"time"
)

// Operations recorded in the store.
const (
	OpConfigure = "configure"
	OpRollback  = "rollback"
)

// Record is one immutable commit in a (device, interface) history segment.
// Records are only ever appended; rollback creates a new record carrying the
// target's configuration text.
type Record struct {
	ID         string    `json:"id"`
	Device     string    `json:"device"`
	Interface  string    `json:"interface"`
	Commands   []string  `json:"commands"`
	ConfigText string    `json:"config_text"`
	Author     string    `json:"author"`
	Message    string    `json:"message"`
	Timestamp  time.Time `json:"timestamp"`
	Parent     string    `json:"parent,omitempty"`      // previous commit on this segment
	Operation  string    `json:"operation"`             // configure or rollback
	RollbackOf string    `json:"rollback_of,omitempty"` // target commit for rollback records
}

// Summary is the compact history view returned by History.
type Summary struct {
	ID        string    `json:"commit_hash"`
	Device    string    `json:"device"`
	Interface string    `json:"interface"`
	Author    string    `json:"author"`
	Message   string    `json:"message"`
	Operation string    `json:"operation"`
	Timestamp time.Time `json:"timestamp"`
}

func (r *Record) summary() Summary {
	return Summary{
		ID:        r.ID,
		Device:    r.Device,
		Interface: r.Interface,
		Author:    r.Author,
		Message:   r.Message,
		Operation: r.Operation,
		Timestamp: r.Timestamp,
	}
}
