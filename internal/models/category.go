package models

import "time"

// Category is one node of the hierarchical course category tree. The tree is
// owned by the host application; coursearc reads nodes and creates missing
// ones under a configured root when placing restored courses.
type Category struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	ParentID    int64     `json:"parent_id"`
	Visible     bool      `json:"visible"`
	TimeCreated time.Time `json:"time_created"`
}

// Course is the entity backups are taken of and restores are imported into.
type Course struct {
	ID          int64     `json:"id"`
	FullName    string    `json:"full_name"`
	CategoryID  int64     `json:"category_id"`
	TimeCreated time.Time `json:"time_created"`
}
