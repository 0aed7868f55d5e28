package helpers

// Batch splits items into consecutive slices of at most batchSize. A non-positive size yields one batch.
func Batch[T any](items []T, batchSize int) [][]T {
	batches := make([][]T, 0)
	if batchSize <= 0 {
		batchSize = len(items)
	}
	for i := 0; i < len(items); i += batchSize {
		end := min(i+batchSize, len(items))
		batches = append(batches, items[i:end])
	}
	return batches
}
