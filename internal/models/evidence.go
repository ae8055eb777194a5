package models

import (
	"time"
)

type EvidenceFile struct {
	Name         string    `json:"name"`
	Path         string    `json:"path"`
	Size         int64     `json:"size"`
	URL          string    `json:"url,omitempty"`
	LastModified time.Time `json:"lastModified"`
}
