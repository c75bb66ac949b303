package document

import (
	"sync"
	"time"
)

// Document is the single shared text every session converges on. Writes
// replace the whole content; there is no history or merge.
type Document struct {
	mu        sync.RWMutex
	content   string
	updatedAt time.Time
}

// Snapshot is a point-in-time view of the document.
type Snapshot struct {
	Content   string    `json:"content"`
	Length    int       `json:"length"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// New returns a document holding initial.
func New(initial string) *Document {
	return &Document{content: initial, updatedAt: time.Now().UTC()}
}

// Content returns the current text.
func (d *Document) Content() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.content
}

// Set overwrites the text.
func (d *Document) Set(content string) {
	d.mu.Lock()
	d.content = content
	d.updatedAt = time.Now().UTC()
	d.mu.Unlock()
}

// Snapshot returns the current text with its metadata.
func (d *Document) Snapshot() Snapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return Snapshot{
		Content:   d.content,
		Length:    len(d.content),
		UpdatedAt: d.updatedAt,
	}
}
