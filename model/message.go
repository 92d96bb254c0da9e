package model

import "path/filepath"

// Placement records where a single source message lands in the destination tree.
type Placement struct {
	Source  string
	RelPath string
	Bucket  string
	Name    string
	Dated   bool
}

// Target returns the destination path of the message below root.
func (p Placement) Target(root string) string {
	return filepath.Join(root, p.Bucket, p.Name)
}
