package importer

import "context"

// Survey classifies every visible file below root without copying anything
// and returns the number of messages per bucket.
func Survey(ctx context.Context, root string) (map[string]int, error) {
	buckets := make(map[string]int)
	err := Walk(ctx, root, Visitor{File: func(f File) error {
		bucket, _ := Classify(f.Path)
		buckets[bucket]++
		return nil
	}})
	if err != nil {
		return nil, err
	}
	return buckets, nil
}
